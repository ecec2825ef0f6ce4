// Package executor defines how trades reach the trading platform.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/igolaizola/pocketbot/pkg/signal"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Executor places a single trade on the platform.
type Executor interface {
	Execute(ctx context.Context, direction signal.Direction, stake decimal.Decimal) error
}

// Selector is implemented by executors that must switch the active asset
// before trading it.
type Selector interface {
	Select(ctx context.Context, pair string) error
}

var ErrUnknownDirection = errors.New("executor: unknown direction")

// Validate returns ErrUnknownDirection for anything other than BUY or SELL.
func Validate(direction signal.Direction) error {
	switch direction {
	case signal.Buy, signal.Sell:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDirection, direction)
	}
}

type dry struct {
	log zerolog.Logger
}

// NewDry returns an executor that only logs trades.
func NewDry(log zerolog.Logger) Executor {
	return &dry{log: log}
}

func (d *dry) Execute(ctx context.Context, direction signal.Direction, stake decimal.Decimal) error {
	if err := Validate(direction); err != nil {
		return err
	}
	d.log.Info().Str("direction", string(direction)).Str("stake", stake.String()).Msg("dry trade")
	return nil
}

func (d *dry) Select(ctx context.Context, pair string) error {
	d.log.Info().Str("pair", pair).Msg("dry select")
	return nil
}

type throttled struct {
	Executor
	limiter *rate.Limiter
}

// Throttle limits how often the wrapped executor is called. Trades from
// different signals often share the same instant and input injection
// can't interleave.
func Throttle(ex Executor, every time.Duration) Executor {
	if every <= 0 {
		return ex
	}
	return &throttled{
		Executor: ex,
		limiter:  rate.NewLimiter(rate.Every(every), 1),
	}
}

func (t *throttled) Execute(ctx context.Context, direction signal.Direction, stake decimal.Decimal) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("executor: couldn't wait for rate limiter: %w", err)
	}
	return t.Executor.Execute(ctx, direction, stake)
}

func (t *throttled) Select(ctx context.Context, pair string) error {
	s, ok := t.Executor.(Selector)
	if !ok {
		return nil
	}
	return s.Select(ctx, pair)
}
