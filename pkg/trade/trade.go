package trade

import (
	"fmt"
	"time"

	"github.com/igolaizola/pocketbot/pkg/signal"
	"github.com/shopspring/decimal"
)

// Trade is a journal entry for a single fired call, either the primary
// trade of a signal or one of its martingale steps.
type Trade struct {
	Time      time.Time
	Scheduled time.Time
	Pair      string
	Direction signal.Direction
	Stake     decimal.Decimal
	Step      int
	Error     string
}

// keyLayout is a fixed width layout, RFC3339Nano trims trailing zeros and
// breaks lexicographic order.
const keyLayout = "2006-01-02T15:04:05.000000000Z"

// KeyTime formats a time the way it prefixes trade keys.
func KeyTime(t time.Time) string {
	return t.UTC().Format(keyLayout)
}

// Key identifies the trade in ordered stores. It starts with the fire time
// so keys sort chronologically.
func (t *Trade) Key() string {
	return fmt.Sprintf("%s/%s/%d", KeyTime(t.Time), t.Pair, t.Step)
}

func (t *Trade) Failed() bool {
	return t.Error != ""
}

type Summary struct {
	Total      int
	Failed     int
	Buys       int
	Sells      int
	Martingale int
	Staked     decimal.Decimal
}

// Summarize aggregates trades. Failed trades are counted but their stake is
// not added to the staked amount.
func Summarize(trades []*Trade) Summary {
	var s Summary
	for _, t := range trades {
		s.Total++
		if t.Failed() {
			s.Failed++
			continue
		}
		switch t.Direction {
		case signal.Buy:
			s.Buys++
		case signal.Sell:
			s.Sells++
		}
		if t.Step > 0 {
			s.Martingale++
		}
		s.Staked = s.Staked.Add(t.Stake)
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("trades: %d (🟩 %d 🟥 %d, martingale %d, failed %d)\nstaked: %s",
		s.Total, s.Buys, s.Sells, s.Martingale, s.Failed, s.Staked.StringFixed(2))
}
