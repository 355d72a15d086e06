package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/harshithanethi/flare-bets-hub/pkg/contracts/events"
)

// KafkaPublisher publica os eventos do engine-service (apostas e claims).
type KafkaPublisher struct {
	BetPlacedWriter *kafka.Writer
	PayoutWriter    *kafka.Writer
}

func NewKafkaPublisher(betPlaced, payout *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{BetPlacedWriter: betPlaced, PayoutWriter: payout}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.BetPlacedWriter.WriteMessages(ctx, kafka.Message{Key: []byte(e.RaceID), Value: b})
}

func (p *KafkaPublisher) PublishPayoutRequested(ctx context.Context, e events.PayoutRequested) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.PayoutWriter.WriteMessages(ctx, kafka.Message{Key: []byte(e.BetID), Value: b})
}
