package oddsworker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harshithanethi/flare-bets-hub/internal/engine/dto"
	"github.com/harshithanethi/flare-bets-hub/internal/engine/repo"
	"github.com/harshithanethi/flare-bets-hub/internal/engine/ws"
	"github.com/harshithanethi/flare-bets-hub/pkg/contracts/events"
)

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

type fakeRepo struct {
	race    *repo.Race
	drivers []repo.Driver
}

func (f *fakeRepo) GetRace(_ context.Context, raceID string) (*repo.Race, error) {
	if f.race == nil || f.race.ID != raceID {
		return nil, repo.ErrRaceNotFound
	}
	return f.race, nil
}

func (f *fakeRepo) GetDrivers(_ context.Context, _ string) ([]repo.Driver, error) {
	return f.drivers, nil
}

type fakeCache struct {
	sets map[string]any
}

func (f *fakeCache) SetOdds(_ context.Context, raceID string, v any, _ time.Duration) error {
	if f.sets == nil {
		f.sets = map[string]any{}
	}
	f.sets[raceID] = v
	return nil
}

type fakeBroadcaster struct {
	channel  string
	payloads [][]byte
}

func (f *fakeBroadcaster) Publish(_ context.Context, channel string, payload []byte) error {
	f.channel = channel
	f.payloads = append(f.payloads, payload)
	return nil
}

func betPlacedMsg(t *testing.T, raceID string) kafka.Message {
	t.Helper()
	b, err := json.Marshal(events.BetPlaced{BetID: "b1", RaceID: raceID, DriverID: "VER", StakeCents: 100})
	require.NoError(t, err)
	return kafka.Message{Key: []byte("b1"), Value: b}
}

func TestProcessor_RefreshesCacheAndBroadcasts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rep := &fakeRepo{
		race: &repo.Race{ID: "race-1", TotalPoolCents: 400},
		drivers: []repo.Driver{
			{DriverID: "VER", TotalStakeCents: 100},
			{DriverID: "NOR", TotalStakeCents: 300},
		},
	}
	cache := &fakeCache{}
	bc := &fakeBroadcaster{}
	p := &Processor{
		Log:       zap.NewNop(),
		Reader:    &queueReader{msgs: []kafka.Message{betPlacedMsg(t, "race-1")}, cancel: cancel},
		Repo:      rep,
		Cache:     cache,
		Broadcast: bc,
		Params:    Params{FeeBps: 0, OddsCeiling: 100.0},
	}

	err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	snapshot, ok := cache.sets["race-1"].([]dto.DriverResponse)
	require.True(t, ok)
	require.Len(t, snapshot, 2)
	assert.InDelta(t, 4.0, snapshot[0].ImpliedOdds, 1e-9) // 400/100
	assert.InDelta(t, 400.0/300.0, snapshot[1].ImpliedOdds, 1e-9)

	assert.Equal(t, ws.PubSubChannel, bc.channel)
	require.Len(t, bc.payloads, 1)
	var upd ws.OddsUpdate
	require.NoError(t, json.Unmarshal(bc.payloads[0], &upd))
	assert.Equal(t, "race-1", upd.RaceID)
}

func TestProcessor_AppliesRake(t *testing.T) {
	rep := &fakeRepo{
		race:    &repo.Race{ID: "race-1", TotalPoolCents: 200},
		drivers: []repo.Driver{{DriverID: "VER", TotalStakeCents: 100}},
	}
	p := &Processor{Log: zap.NewNop(), Repo: rep, Params: Params{FeeBps: 1000, OddsCeiling: 100.0}}

	snapshot, err := p.Snapshot(context.Background(), "race-1")
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.InDelta(t, 1.8, snapshot[0].ImpliedOdds, 1e-9) // 200*0.9/100
}

func TestProcessor_UnknownRace(t *testing.T) {
	p := &Processor{Log: zap.NewNop(), Repo: &fakeRepo{}}

	_, err := p.Snapshot(context.Background(), "missing")
	assert.ErrorIs(t, err, repo.ErrRaceNotFound)
}

func TestProcessor_EmptyPoolsUseCeiling(t *testing.T) {
	rep := &fakeRepo{
		race:    &repo.Race{ID: "race-1", TotalPoolCents: 0},
		drivers: []repo.Driver{{DriverID: "VER", TotalStakeCents: 0}},
	}
	p := &Processor{Log: zap.NewNop(), Repo: rep, Params: Params{FeeBps: 500, OddsCeiling: 100.0}}

	snapshot, err := p.Snapshot(context.Background(), "race-1")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, snapshot[0].ImpliedOdds, 1e-9)
}
