package oddsworker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/harshithanethi/flare-bets-hub/internal/engine/dto"
	"github.com/harshithanethi/flare-bets-hub/internal/engine/odds"
	"github.com/harshithanethi/flare-bets-hub/internal/engine/repo"
	"github.com/harshithanethi/flare-bets-hub/internal/engine/ws"
	"github.com/harshithanethi/flare-bets-hub/pkg/contracts/events"
)

// OddsTTL é a validade do snapshot de odds no Redis. Curta de propósito:
// o worker reescreve a cada aposta e a API tem fallback pro banco.
const OddsTTL = 30 * time.Second

// MessageReader abstrai o consumer Kafka (satisfeita por *kafka.Reader).
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Reader lê o estado corrente dos pools no banco do engine.
type Reader interface {
	GetRace(ctx context.Context, raceID string) (*repo.Race, error)
	GetDrivers(ctx context.Context, raceID string) ([]repo.Driver, error)
}

// CacheWriter grava o snapshot de odds da corrida no Redis.
type CacheWriter interface {
	SetOdds(ctx context.Context, raceID string, v any, ttl time.Duration) error
}

// Broadcaster publica o snapshot no canal Pub/Sub consumido pelo hub WS.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Params são os parâmetros de cálculo das odds (mesmos do engine).
type Params struct {
	FeeBps      int64
	OddsCeiling float64
}

// Processor consome bet_placed, recalcula as odds implícitas da corrida a
// partir dos pools e propaga o snapshot: Redis (leitura da API) e Pub/Sub
// (broadcast WebSocket).
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log       *zap.Logger
	Reader    MessageReader
	Repo      Reader
	Cache     CacheWriter
	Broadcast Broadcaster
	Params    Params

	OnConsumed  func()       // métricas (counter++)
	OnCached    func()       // métricas
	OnBroadcast func()       // métricas
	OnError     func(string) // métricas por fase
}

// Run inicia o loop principal de consumo e processamento das mensagens Kafka
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			if p.OnError != nil {
				p.OnError("read")
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed() // callback de métrica: mensagem consumida
		}

		var ev events.BetPlaced
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			p.Log.Warn("invalid message", zap.Error(err))
			if p.OnError != nil {
				p.OnError("decode")
			}
			continue
		}

		if err := p.refresh(ctx, ev.RaceID); err != nil {
			p.Log.Warn("odds refresh failed", zap.String("raceId", ev.RaceID), zap.Error(err))
		}
	}
}

// refresh recomputa o snapshot de odds da corrida e o propaga.
func (p *Processor) refresh(ctx context.Context, raceID string) error {
	snapshot, err := p.Snapshot(ctx, raceID)
	if err != nil {
		if p.OnError != nil {
			p.OnError("db")
		}
		return err
	}

	// Atualiza cache Redis com as odds correntes
	if err := p.Cache.SetOdds(ctx, raceID, snapshot, OddsTTL); err != nil {
		p.Log.Warn("redis set failed", zap.Error(err))
		if p.OnError != nil {
			p.OnError("cache")
		}
		// não bloqueia o broadcast se falhar o cache
	} else if p.OnCached != nil {
		p.OnCached() // callback de métrica: cache atualizado
	}

	// Broadcast via Pub/Sub para os clientes WebSocket
	payload, err := json.Marshal(ws.OddsUpdate{RaceID: raceID, Payload: snapshot})
	if err != nil {
		return err
	}
	if err := p.Broadcast.Publish(ctx, ws.PubSubChannel, payload); err != nil {
		if p.OnError != nil {
			p.OnError("pubsub")
		}
		return err
	}
	if p.OnBroadcast != nil {
		p.OnBroadcast() // callback de métrica: broadcast concluído
	}
	return nil
}

// Snapshot monta as odds implícitas de todos os pilotos da corrida,
// no mesmo formato servido pela API do engine.
func (p *Processor) Snapshot(ctx context.Context, raceID string) ([]dto.DriverResponse, error) {
	race, err := p.Repo.GetRace(ctx, raceID)
	if err != nil {
		return nil, err
	}
	drivers, err := p.Repo.GetDrivers(ctx, raceID)
	if err != nil {
		return nil, err
	}

	out := make([]dto.DriverResponse, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, dto.DriverResponse{
			DriverID:        d.DriverID,
			Name:            d.Name,
			CarNumber:       d.CarNumber,
			Team:            d.Team,
			TotalStakeCents: d.TotalStakeCents,
			ImpliedOdds:     odds.Implied(d.TotalStakeCents, race.TotalPoolCents, p.Params.FeeBps, p.Params.OddsCeiling),
		})
	}
	return out, nil
}
