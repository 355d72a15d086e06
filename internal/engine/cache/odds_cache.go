package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache guarda as odds implícitas correntes de uma corrida no Redis.
// O odds-worker escreve a cada aposta; a API lê com fallback pro banco.
type Cache struct{ R *redis.Client }

func New(r *redis.Client) *Cache { return &Cache{R: r} }

func keyRace(raceID string) string { return "odds:race:" + raceID }

func (c *Cache) GetOdds(ctx context.Context, raceID string, dst any) (bool, error) {
	b, err := c.R.Get(ctx, keyRace(raceID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *Cache) SetOdds(ctx context.Context, raceID string, v any, ttl time.Duration) error {
	b, _ := json.Marshal(v)
	return c.R.Set(ctx, keyRace(raceID), b, ttl).Err()
}

// Invalidate remove as odds da corrida do cache (usado logo após uma aposta,
// antes do odds-worker reprocessar).
func (c *Cache) Invalidate(ctx context.Context, raceID string) error {
	return c.R.Del(ctx, keyRace(raceID)).Err()
}
