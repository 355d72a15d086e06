package payout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/harshithanethi/flare-bets-hub/pkg/contracts/events"
)

// MessageReader abstrai o consumer Kafka (satisfeita por *kafka.Reader).
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Wallet credita prêmios na carteira do usuário (wallet-service via HTTP).
type Wallet interface {
	Credit(ctx context.Context, userID string, cents int64, externalRef string) (walletID string, duplicate bool, err error)
}

// Store efetiva o payout no banco do engine.
type Store interface {
	MarkExecuted(ctx context.Context, payoutID, betID, providerRef string) error
}

// Publisher publica o desfecho de cada payout.
type Publisher interface {
	PublishPayoutCompleted(ctx context.Context, e events.PayoutCompleted) error
	PublishDLQ(ctx context.Context, key string, payload []byte) error
}

// Processor consome payout_requested, credita a carteira e marca o payout
// como executado. A idempotência fica no wallet-service (external_ref=betId),
// então reprocessar a mesma mensagem nunca paga duas vezes.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	Wallet Wallet
	Store  Store
	Publ   Publisher

	Retries int // tentativas de crédito antes da DLQ (default 3)

	OnConsumed func()       // métricas (counter++)
	OnExecuted func()       // métricas
	OnError    func(string) // métricas por fase
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

		var ev events.PayoutRequested
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			p.Log.Warn("invalid message", zap.Error(err))
			if p.OnError != nil {
				p.OnError("decode")
			}
			continue
		}

		if err := p.processOne(ctx, &ev, m.Value); err != nil {
			p.Log.Error("process payout", zap.String("payoutId", ev.PayoutID), zap.Error(err))
			// Backoff simples para evitar flood em caso de erro
			time.Sleep(500 * time.Millisecond)
		}
	}
}

// processOne executa o fluxo de um payout:
// 1. Credita o prêmio na carteira (com retry; falha persistente vai p/ DLQ)
// 2. Marca o payout como EXECUTED e grava a referência na aposta
// 3. Publica evento payout_completed no Kafka
func (p *Processor) processOne(ctx context.Context, ev *events.PayoutRequested, raw []byte) error {
	retries := p.Retries
	if retries <= 0 {
		retries = 3
	}

	walletID, duplicate, err := p.Wallet.Credit(ctx, ev.UserID, ev.AmountCents, ev.BetID)
	for i := 0; err != nil && i < retries; i++ {
		time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
		walletID, duplicate, err = p.Wallet.Credit(ctx, ev.UserID, ev.AmountCents, ev.BetID)
	}
	if err != nil {
		if p.OnError != nil {
			p.OnError("credit")
		}
		if derr := p.Publ.PublishDLQ(ctx, ev.PayoutID, raw); derr != nil {
			p.Log.Error("dlq publish", zap.Error(derr))
		}
		return err
	}
	if duplicate {
		p.Log.Info("crédito já aplicado, seguindo em frente",
			zap.String("betId", ev.BetID), zap.String("walletId", walletID))
	}

	if err := p.Store.MarkExecuted(ctx, ev.PayoutID, ev.BetID, walletID); err != nil {
		if p.OnError != nil {
			p.OnError("db")
		}
		return err
	}
	if p.OnExecuted != nil {
		p.OnExecuted() // callback de métrica: payout efetivado
	}

	evc := events.PayoutCompleted{
		PayoutID:    ev.PayoutID,
		BetID:       ev.BetID,
		UserID:      ev.UserID,
		AmountCents: ev.AmountCents,
		Status:      "EXECUTED",
		ProviderRef: walletID,
		Ts:          time.Now(),
	}
	return p.Publ.PublishPayoutCompleted(ctx, evc)
}
