// Package hotkey trades by injecting the platform keyboard shortcuts into
// the focused browser window.
package hotkey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-vgo/robotgo"
	"github.com/igolaizola/pocketbot/pkg/executor"
	"github.com/igolaizola/pocketbot/pkg/signal"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var ErrNotDetected = errors.New("hotkey: asset not detected")

type Config struct {
	// Detect returns the asset currently displayed. Selection is skipped
	// when it is nil.
	Detect      func(ctx context.Context) (string, error)
	MaxAttempts int
	SwitchDelay time.Duration
}

type Executor struct {
	cfg Config
	log zerolog.Logger
	tap func(key string, args ...interface{}) error
}

func New(cfg Config, log zerolog.Logger) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 50
	}
	if cfg.SwitchDelay <= 0 {
		cfg.SwitchDelay = 5 * time.Second
	}
	return &Executor{
		cfg: cfg,
		log: log,
		tap: robotgo.KeyTap,
	}
}

// Execute presses shift+w to buy or shift+s to sell. The stake is whatever
// amount is configured on the platform.
func (e *Executor) Execute(ctx context.Context, direction signal.Direction, stake decimal.Decimal) error {
	if err := executor.Validate(direction); err != nil {
		return err
	}
	key := "w"
	if direction == signal.Sell {
		key = "s"
	}
	if err := e.tap(key, "shift"); err != nil {
		return fmt.Errorf("hotkey: couldn't press shift+%s: %w", key, err)
	}
	e.log.Info().Str("direction", string(direction)).Str("stake", stake.String()).Msg("trade placed")
	return nil
}

// Select cycles favorite assets with shift+tab until the detected asset
// matches the pair or the attempts are exhausted.
func (e *Executor) Select(ctx context.Context, pair string) error {
	if e.cfg.Detect == nil {
		e.log.Debug().Str("pair", pair).Msg("no asset detector, skipping selection")
		return nil
	}
	for attempt := 0; ; attempt++ {
		current, err := e.cfg.Detect(ctx)
		if err != nil {
			e.log.Warn().Err(err).Msg("couldn't detect asset")
		}
		if err == nil && SameAsset(current, pair) {
			e.log.Info().Str("pair", pair).Msg("asset selected")
			return nil
		}
		if attempt >= e.cfg.MaxAttempts {
			return fmt.Errorf("%w: %s after %d attempts", ErrNotDetected, pair, attempt)
		}
		if err := e.tap("tab", "shift"); err != nil {
			return fmt.Errorf("hotkey: couldn't press shift+tab: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.cfg.SwitchDelay):
		}
	}
}

// SameAsset compares asset names ignoring case, separators and spaces, so
// "EUR/USD OTC" matches "eurusd-otc".
func SameAsset(a, b string) bool {
	return normalize(a) == normalize(b)
}

func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '-', '_', ' ', '\t', '\n':
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(s)))
}
