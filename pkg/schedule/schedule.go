// Package schedule turns signals into trades fired at their entry and
// martingale times.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/igolaizola/pocketbot/pkg/control"
	"github.com/igolaizola/pocketbot/pkg/executor"
	"github.com/igolaizola/pocketbot/pkg/metrics"
	"github.com/igolaizola/pocketbot/pkg/settings"
	"github.com/igolaizola/pocketbot/pkg/signal"
	"github.com/igolaizola/pocketbot/pkg/trade"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Job is a trade waiting for its time. Step 0 is the primary trade, step n
// is the n-th martingale step.
type Job struct {
	Pair      string
	Direction signal.Direction
	Stake     decimal.Decimal
	Step      int
	Time      string
	At        time.Time
}

type Config struct {
	State    *control.State
	Executor executor.Executor
	Settings func() settings.Settings
	// Location of the signal times, UTC when nil.
	Location *time.Location
	Store    trade.Store
	Log      zerolog.Logger
	// Notify receives human readable messages about fired trades.
	Notify func(v ...interface{})
	Now    func() time.Time
}

type Scheduler struct {
	state    *control.State
	exec     executor.Executor
	settings func() settings.Settings
	loc      *time.Location
	store    trade.Store
	log      zerolog.Logger
	notify   func(v ...interface{})
	now      func() time.Time
	wg       sync.WaitGroup
}

func New(cfg Config) *Scheduler {
	s := &Scheduler{
		state:    cfg.State,
		exec:     cfg.Executor,
		settings: cfg.Settings,
		loc:      cfg.Location,
		store:    cfg.Store,
		log:      cfg.Log,
		notify:   cfg.Notify,
		now:      cfg.Now,
	}
	if s.settings == nil {
		s.settings = settings.Default
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.notify == nil {
		s.notify = func(...interface{}) {}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Plan computes the trades of a signal relative to now. Times that can't be
// parsed are returned as errors and left out of the plan.
func (s *Scheduler) Plan(sig *signal.Signal, now time.Time) ([]Job, []error) {
	set := s.settings()
	direction := sig.Direction
	if direction == "" {
		direction = signal.Buy
	}

	var jobs []Job
	var errs []error
	at, err := signal.Today(sig.EntryTime, now, s.loc)
	if err != nil {
		errs = append(errs, fmt.Errorf("schedule: couldn't resolve entry time: %w", err))
	} else {
		if sig.OTC == "-4" && set.OTCShift > 0 {
			at = at.Add(set.OTCShift)
		}
		jobs = append(jobs, Job{
			Pair:      sig.CurrencyPair,
			Direction: direction,
			Stake:     set.BaseStake,
			Time:      sig.EntryTime,
			At:        at,
		})
	}

	for i, t := range sig.MartingaleTimes {
		step := i + 1
		if step > set.MaxMartingale {
			break
		}
		at, err := signal.Today(t, now, s.loc)
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule: couldn't resolve martingale %d time: %w", step, err))
			continue
		}
		jobs = append(jobs, Job{
			Pair:      sig.CurrencyPair,
			Direction: direction,
			Stake:     Stake(set.BaseStake, step),
			Step:      step,
			Time:      t,
			At:        at,
		})
	}
	return jobs, errs
}

// Stake returns the stake of a martingale step, doubling the base stake on
// each step.
func Stake(base decimal.Decimal, step int) decimal.Decimal {
	if step <= 0 {
		return base
	}
	return base.Mul(two.Pow(decimal.NewFromInt(int64(step))))
}

var two = decimal.NewFromInt(2)

// OnSignal schedules the trades of an actionable signal while trading is
// enabled and returns how many were scheduled. Each trade waits in its own
// goroutine bound to ctx.
func (s *Scheduler) OnSignal(ctx context.Context, sig *signal.Signal) int {
	if !s.state.Active() {
		metrics.SignalsTotal.WithLabelValues("inactive").Inc()
		s.log.Debug().Msg("trading disabled, ignoring signal")
		return 0
	}
	if sig == nil || !sig.Actionable() {
		metrics.SignalsTotal.WithLabelValues("ignored").Inc()
		return 0
	}
	metrics.SignalsTotal.WithLabelValues("actionable").Inc()

	jobs, errs := s.Plan(sig, s.now())
	for _, err := range errs {
		s.log.Warn().Err(err).Str("pair", sig.CurrencyPair).Msg("trade skipped")
	}
	for _, job := range jobs {
		s.launch(ctx, job)
	}
	return len(jobs)
}

// Wait blocks until every launched trade has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) launch(ctx context.Context, job Job) {
	s.wg.Add(1)
	metrics.PendingTrades.Inc()
	go func() {
		defer s.wg.Done()
		defer metrics.PendingTrades.Dec()
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("schedule: trade panicked: %v", r)
				s.log.Error().Err(err).Str("pair", job.Pair).Int("step", job.Step).Msg("trade failed")
				metrics.TradesTotal.WithLabelValues(string(job.Direction), "panic").Inc()
				s.record(job, s.now(), err)
			}
		}()
		s.run(ctx, job)
	}()
	s.log.Info().
		Str("pair", job.Pair).
		Str("direction", string(job.Direction)).
		Str("stake", job.Stake.String()).
		Int("step", job.Step).
		Time("at", job.At).
		Msg("trade scheduled")
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	if sel, ok := s.exec.(executor.Selector); ok && job.Step == 0 {
		if err := sel.Select(ctx, job.Pair); err != nil {
			s.log.Warn().Err(err).Str("pair", job.Pair).Msg("couldn't select asset, trading current one")
		}
	}

	if delay := job.At.Sub(s.now()); delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			s.log.Warn().Str("pair", job.Pair).Int("step", job.Step).Msg("pending trade dropped")
			return
		case <-timer.C:
		}
	}

	err := s.exec.Execute(ctx, job.Direction, job.Stake)
	s.record(job, s.now(), err)
	if err != nil {
		result := "error"
		if errors.Is(err, context.Canceled) {
			result = "canceled"
		}
		metrics.TradesTotal.WithLabelValues(string(job.Direction), result).Inc()
		s.log.Error().Err(err).Str("pair", job.Pair).Int("step", job.Step).Msg("trade failed")
		s.notify(fmt.Sprintf("❌ %s %s %s failed: %v", job.Pair, job.Direction, job.Stake, err))
		return
	}
	metrics.TradesTotal.WithLabelValues(string(job.Direction), "ok").Inc()
	emoji := "🟩"
	if job.Direction == signal.Sell {
		emoji = "🟥"
	}
	label := "entry"
	if job.Step > 0 {
		label = fmt.Sprintf("martingale %d", job.Step)
	}
	s.notify(fmt.Sprintf("%s %s %s %s (%s)", emoji, job.Pair, job.Direction, job.Stake, label))
}

func (s *Scheduler) record(job Job, fired time.Time, err error) {
	if s.store == nil {
		return
	}
	t := &trade.Trade{
		Time:      fired,
		Scheduled: job.At,
		Pair:      job.Pair,
		Direction: job.Direction,
		Stake:     job.Stake,
		Step:      job.Step,
	}
	if err != nil {
		t.Error = err.Error()
	}
	if err := s.store.Update(t); err != nil {
		s.log.Error().Err(err).Msg("couldn't record trade")
	}
}
