package producer

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/harshithanethi/flare-bets-hub/internal/shared/kafka"
	"github.com/harshithanethi/flare-bets-hub/pkg/contracts/events"
)

// KafkaPublisher publica os desfechos do payout-worker.
type KafkaPublisher struct {
	CompletedWriter *kafkago.Writer
	DLQWriter       *kafkago.Writer // opcional
}

func (p *KafkaPublisher) PublishPayoutCompleted(ctx context.Context, e events.PayoutCompleted) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return kafka.WriteJSON(ctx, p.CompletedWriter, e.PayoutID, b)
}

func (p *KafkaPublisher) PublishDLQ(ctx context.Context, key string, payload []byte) error {
	if p.DLQWriter == nil {
		return nil
	}
	return kafka.WriteJSON(ctx, p.DLQWriter, key, payload)
}
