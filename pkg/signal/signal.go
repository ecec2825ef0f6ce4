package signal

import (
	"regexp"
	"strings"
	"time"
)

type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

type Timeframe string

const (
	M1 Timeframe = "M1"
	M5 Timeframe = "M5"
)

// Interval returns the spacing between martingale steps for the timeframe.
func (t Timeframe) Interval() time.Duration {
	if t == M1 {
		return time.Minute
	}
	return 5 * time.Minute
}

type Signal struct {
	CurrencyPair    string    `json:"currency_pair"`
	Direction       Direction `json:"direction"`
	EntryTime       string    `json:"entry_time"`
	Timeframe       Timeframe `json:"timeframe"`
	MartingaleTimes []string  `json:"martingale_times"`
	OTC             string    `json:"otc"`
}

// Actionable reports whether the signal carries enough data to be traded.
func (s *Signal) Actionable() bool {
	return s.CurrencyPair != "" && s.EntryTime != ""
}

type Parser interface {
	Parse(text string) *Signal
}

// annaMarker identifies messages from the "Anna Signals" vendor, which omit
// martingale levels and expect two implicit ones.
const annaMarker = "anna signals"

type parser struct {
	pair       *regexp.Regexp
	direction  *regexp.Regexp
	entry      *regexp.Regexp
	timeframe  *regexp.Regexp
	martingale *regexp.Regexp
	otc        *regexp.Regexp
	log        func(v ...interface{})
}

func NewParser(log func(v ...interface{})) Parser {
	if log == nil {
		log = func(...interface{}) {}
	}
	return &parser{
		pair:       regexp.MustCompile(`(?:Pair:|CURRENCY PAIR:|🇺🇸|📊)\s*([\w/\-]+)`),
		direction:  regexp.MustCompile(`(?i)(BUY|SELL|CALL|PUT|🔼|🟥|🟩)`),
		entry:      regexp.MustCompile(`(?:Entry Time:|Entry at|TIME \(UTC-03:00\):)\s*(\d{2}:\d{2}(?::\d{2})?)`),
		timeframe:  regexp.MustCompile(`Expiration:?\s*(M1|M5|1 Minute|5 Minute)`),
		martingale: regexp.MustCompile(`(?:Level \d+|level(?: at)?|PROTECTION).*?\s*(\d{2}:\d{2})`),
		otc:        regexp.MustCompile(`(?i)(?:OTC|UTC)\s*([+-])0?(\d{1,2})`),
		log:        log,
	}
}

func (p *parser) Parse(text string) *Signal {
	sig := &Signal{
		MartingaleTimes: []string{},
	}

	if m := p.pair.FindStringSubmatch(text); m != nil {
		sig.CurrencyPair = strings.TrimSpace(m[1])
	}

	if m := p.direction.FindStringSubmatch(text); m != nil {
		switch strings.ToUpper(m[1]) {
		case "BUY", "CALL", "🟩", "🔼":
			sig.Direction = Buy
		default:
			sig.Direction = Sell
		}
	}

	if m := p.entry.FindStringSubmatch(text); m != nil {
		sig.EntryTime = m[1]
	}

	if m := p.timeframe.FindStringSubmatch(text); m != nil {
		switch m[1] {
		case "M1", "1 Minute":
			sig.Timeframe = M1
		default:
			sig.Timeframe = M5
		}
	}

	for _, m := range p.martingale.FindAllStringSubmatch(text, -1) {
		sig.MartingaleTimes = append(sig.MartingaleTimes, m[1])
	}

	if m := p.otc.FindStringSubmatch(text); m != nil {
		sig.OTC = m[1] + m[2]
	}

	if strings.Contains(strings.ToLower(text), annaMarker) && len(sig.MartingaleTimes) == 0 && sig.EntryTime != "" {
		times, err := annaMartingale(sig.EntryTime, sig.Timeframe)
		if err != nil {
			p.log("signal: couldn't apply anna martingale:", err)
		} else {
			sig.MartingaleTimes = times
		}
	}
	return sig
}

// annaMartingale synthesizes two martingale steps after the entry time,
// keeping the precision of the entry time.
func annaMartingale(entry string, tf Timeframe) ([]string, error) {
	t, layout, err := ParseClock(entry)
	if err != nil {
		return nil, err
	}
	interval := tf.Interval()
	return []string{
		t.Add(interval).Format(layout),
		t.Add(2 * interval).Format(layout),
	}, nil
}
