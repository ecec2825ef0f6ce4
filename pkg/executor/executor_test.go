package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/igolaizola/pocketbot/pkg/signal"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	lock     sync.Mutex
	times    []time.Time
	selected []string
}

func (r *recorder) Execute(ctx context.Context, direction signal.Direction, stake decimal.Decimal) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.times = append(r.times, time.Now())
	return nil
}

func (r *recorder) Select(ctx context.Context, pair string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.selected = append(r.selected, pair)
	return nil
}

func TestDry(t *testing.T) {
	ex := NewDry(zerolog.Nop())
	require.NoError(t, ex.Execute(context.Background(), signal.Buy, decimal.NewFromInt(1)))
	err := ex.Execute(context.Background(), "", decimal.NewFromInt(1))
	assert.True(t, errors.Is(err, ErrUnknownDirection))
}

func TestThrottle(t *testing.T) {
	rec := &recorder{}
	ex := Throttle(rec, 50*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ex.Execute(context.Background(), signal.Sell, decimal.NewFromInt(1))
		}()
	}
	wg.Wait()

	require.Len(t, rec.times, 3)
	first, last := rec.times[0], rec.times[0]
	for _, tm := range rec.times {
		if tm.Before(first) {
			first = tm
		}
		if tm.After(last) {
			last = tm
		}
	}
	assert.GreaterOrEqual(t, last.Sub(first), 90*time.Millisecond)

	sel, ok := ex.(Selector)
	require.True(t, ok)
	require.NoError(t, sel.Select(context.Background(), "EURUSD"))
	assert.Equal(t, []string{"EURUSD"}, rec.selected)
}

func TestThrottleCanceled(t *testing.T) {
	ex := Throttle(&recorder{}, time.Hour)
	require.NoError(t, ex.Execute(context.Background(), signal.Buy, decimal.NewFromInt(1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, ex.Execute(ctx, signal.Buy, decimal.NewFromInt(1)))
}

func TestThrottleDisabled(t *testing.T) {
	rec := &recorder{}
	assert.Same(t, Executor(rec), Throttle(rec, 0))
}
