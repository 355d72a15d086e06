package closer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeRepo struct {
	mu      sync.Mutex
	expired []string
	calls   int
}

func (f *fakeRepo) CloseExpired(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := f.expired
	f.expired = nil
	return out, nil
}

func TestCloser_ClosesExpiredRaces(t *testing.T) {
	f := &fakeRepo{expired: []string{"race-1", "race-2"}}

	var mu sync.Mutex
	var closed []string
	c := &Closer{
		Log:      zap.NewNop(),
		Repo:     f,
		Interval: 10 * time.Millisecond,
		OnClosed: func(id string) {
			mu.Lock()
			closed = append(closed, id)
			mu.Unlock()
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"race-1", "race-2"}, closed)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.GreaterOrEqual(t, f.calls, 2)
}
