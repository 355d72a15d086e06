package payout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harshithanethi/flare-bets-hub/pkg/contracts/events"
)

// queueReader entrega as mensagens enfileiradas e depois cancela o contexto
// para encerrar o loop do Processor.
type queueReader struct {
	msgs   []kafka.Message
	cancel context.CancelFunc
}

func (q *queueReader) ReadMessage(_ context.Context) (kafka.Message, error) {
	if len(q.msgs) == 0 {
		q.cancel()
		return kafka.Message{}, context.Canceled
	}
	m := q.msgs[0]
	q.msgs = q.msgs[1:]
	return m, nil
}

type fakeWallet struct {
	credits  map[string]int64 // externalRef -> total creditado
	failures int              // falha as primeiras N chamadas
	calls    int
}

func (f *fakeWallet) Credit(_ context.Context, _ string, cents int64, externalRef string) (string, bool, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", false, errors.New("wallet unavailable")
	}
	if f.credits == nil {
		f.credits = map[string]int64{}
	}
	if _, ok := f.credits[externalRef]; ok {
		return "w-1", true, nil
	}
	f.credits[externalRef] = cents
	return "w-1", false, nil
}

type fakeStore struct {
	executed map[string]string // payoutID -> providerRef
	fail     error
}

func (f *fakeStore) MarkExecuted(_ context.Context, payoutID, _, providerRef string) error {
	if f.fail != nil {
		return f.fail
	}
	if f.executed == nil {
		f.executed = map[string]string{}
	}
	f.executed[payoutID] = providerRef
	return nil
}

type fakePublisher struct {
	completed []events.PayoutCompleted
	dlq       [][]byte
}

func (f *fakePublisher) PublishPayoutCompleted(_ context.Context, e events.PayoutCompleted) error {
	f.completed = append(f.completed, e)
	return nil
}

func (f *fakePublisher) PublishDLQ(_ context.Context, _ string, payload []byte) error {
	f.dlq = append(f.dlq, payload)
	return nil
}

func message(t *testing.T, ev events.PayoutRequested) kafka.Message {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(ev.PayoutID), Value: b}
}

func request() events.PayoutRequested {
	return events.PayoutRequested{
		PayoutID:    "p1",
		BetID:       "b1",
		UserID:      "u1",
		RaceID:      "race-1",
		AmountCents: 200,
	}
}

func TestProcessor_CreditsAndExecutes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wallet := &fakeWallet{}
	store := &fakeStore{}
	pub := &fakePublisher{}
	p := &Processor{
		Log:    zap.NewNop(),
		Reader: &queueReader{msgs: []kafka.Message{message(t, request())}, cancel: cancel},
		Wallet: wallet,
		Store:  store,
		Publ:   pub,
	}

	err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled) // loop só sai por cancelamento

	assert.Equal(t, int64(200), wallet.credits["b1"])
	assert.Equal(t, "w-1", store.executed["p1"])
	require.Len(t, pub.completed, 1)
	assert.Equal(t, "EXECUTED", pub.completed[0].Status)
	assert.Empty(t, pub.dlq)
}

func TestProcessor_RedeliveryDoesNotPayTwice(t *testing.T) {
	ev := request()
	wallet := &fakeWallet{}
	store := &fakeStore{}
	pub := &fakePublisher{}
	p := &Processor{Log: zap.NewNop(), Wallet: wallet, Store: store, Publ: pub}

	raw, _ := json.Marshal(ev)
	require.NoError(t, p.processOne(context.Background(), &ev, raw))
	require.NoError(t, p.processOne(context.Background(), &ev, raw))

	assert.Equal(t, int64(200), wallet.credits["b1"])
	assert.Len(t, pub.completed, 2) // evento sai de novo, mas o crédito não
}

func TestProcessor_RetriesBeforeDLQ(t *testing.T) {
	ev := request()
	wallet := &fakeWallet{failures: 2}
	store := &fakeStore{}
	pub := &fakePublisher{}
	p := &Processor{Log: zap.NewNop(), Wallet: wallet, Store: store, Publ: pub, Retries: 3}

	raw, _ := json.Marshal(ev)
	require.NoError(t, p.processOne(context.Background(), &ev, raw))

	assert.Equal(t, 3, wallet.calls) // 2 falhas + 1 sucesso
	assert.Equal(t, int64(200), wallet.credits["b1"])
	assert.Empty(t, pub.dlq)
}

func TestProcessor_ExhaustedRetriesGoToDLQ(t *testing.T) {
	ev := request()
	wallet := &fakeWallet{failures: 10}
	store := &fakeStore{}
	pub := &fakePublisher{}
	p := &Processor{Log: zap.NewNop(), Wallet: wallet, Store: store, Publ: pub, Retries: 2}

	raw, _ := json.Marshal(ev)
	err := p.processOne(context.Background(), &ev, raw)
	require.Error(t, err)

	assert.Empty(t, store.executed)
	assert.Empty(t, pub.completed)
	require.Len(t, pub.dlq, 1)
}

func TestProcessor_StoreFailureKeepsCompletedUnpublished(t *testing.T) {
	ev := request()
	wallet := &fakeWallet{}
	store := &fakeStore{fail: errors.New("db down")}
	pub := &fakePublisher{}
	p := &Processor{Log: zap.NewNop(), Wallet: wallet, Store: store, Publ: pub}

	raw, _ := json.Marshal(ev)
	require.Error(t, p.processOne(context.Background(), &ev, raw))
	assert.Empty(t, pub.completed)
}
