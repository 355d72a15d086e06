package closer

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Repo fecha as corridas cujo cutoff já venceu.
type Repo interface {
	CloseExpired(ctx context.Context) ([]string, error)
}

// Closer roda em loop fechando corridas vencidas — o caminho automático do
// UPCOMING -> CLOSED (o explícito é a rota do oráculo). A rejeição de apostas
// no cutoff não depende desse loop: o PlaceBet checa o relógio na transação.
type Closer struct {
	Log      *zap.Logger
	Repo     Repo
	Interval time.Duration

	OnClosed func(raceID string) // métricas
}

// Run bloqueia até o contexto ser cancelado.
func (c *Closer) Run(ctx context.Context) {
	interval := c.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Closer) tick(ctx context.Context) {
	tctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ids, err := c.Repo.CloseExpired(tctx)
	if err != nil {
		c.Log.Warn("close expired races", zap.Error(err))
		return
	}
	for _, id := range ids {
		c.Log.Info("race auto-closed at cutoff", zap.String("raceId", id))
		if c.OnClosed != nil {
			c.OnClosed(id)
		}
	}
}
