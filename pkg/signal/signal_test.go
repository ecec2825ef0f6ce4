package signal

import (
	"reflect"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want *Signal
	}{
		{
			name: "basic signal",
			msg: `Pair: EURUSD
BUY
Entry Time: 14:05
Expiration: M1`,
			want: &Signal{
				CurrencyPair:    "EURUSD",
				Direction:       Buy,
				EntryTime:       "14:05",
				Timeframe:       M1,
				MartingaleTimes: []string{},
			},
		},
		{
			name: "anna signals without levels",
			msg: `Anna Signals
Pair: EURUSD
BUY
Entry Time: 14:05
Expiration: M1`,
			want: &Signal{
				CurrencyPair:    "EURUSD",
				Direction:       Buy,
				EntryTime:       "14:05",
				Timeframe:       M1,
				MartingaleTimes: []string{"14:06", "14:07"},
			},
		},
		{
			name: "anna signals five minutes with seconds",
			msg: `ANNA SIGNALS 🚀
📊 GBP/JPY-OTC
🟥 PUT
Entry at 09:58:30
Expiration 5 Minute`,
			want: &Signal{
				CurrencyPair:    "GBP/JPY-OTC",
				Direction:       Sell,
				EntryTime:       "09:58:30",
				Timeframe:       M5,
				MartingaleTimes: []string{"10:03:30", "10:08:30"},
			},
		},
		{
			name: "anna signals without timeframe uses five minutes",
			msg: `anna signals
CURRENCY PAIR: AUDCAD
CALL
Entry Time: 23:58`,
			want: &Signal{
				CurrencyPair:    "AUDCAD",
				Direction:       Buy,
				EntryTime:       "23:58",
				MartingaleTimes: []string{"00:03", "00:08"},
			},
		},
		{
			name: "anna signals explicit levels win",
			msg: `Anna Signals
Pair: EURUSD
SELL
Entry Time: 14:05
Level 1 at 14:10
Level 2 at 14:15`,
			want: &Signal{
				CurrencyPair:    "EURUSD",
				Direction:       Sell,
				EntryTime:       "14:05",
				MartingaleTimes: []string{"14:10", "14:15"},
			},
		},
		{
			name: "anna signals without entry time",
			msg:  `Anna Signals Pair: EURUSD BUY`,
			want: &Signal{
				CurrencyPair:    "EURUSD",
				Direction:       Buy,
				MartingaleTimes: []string{},
			},
		},
		{
			name: "anna signals with malformed entry time",
			msg: `Anna Signals
Pair: EURUSD
Entry Time: 29:99`,
			want: &Signal{
				CurrencyPair:    "EURUSD",
				EntryTime:       "29:99",
				MartingaleTimes: []string{},
			},
		},
		{
			name: "martingale levels keep textual order",
			msg: `🇺🇸 USD/JPY
🔼 UP
TIME (UTC-03:00): 10:30
Expiration: M5
1st level at 10:40
PROTECTION 👉 10:35`,
			want: &Signal{
				CurrencyPair:    "USD/JPY",
				Direction:       Buy,
				EntryTime:       "10:30",
				Timeframe:       M5,
				MartingaleTimes: []string{"10:40", "10:35"},
				OTC:             "-3",
			},
		},
		{
			name: "lowercase direction",
			msg: `Pair: EURGBP
direction: sell
Entry Time: 08:00`,
			want: &Signal{
				CurrencyPair:    "EURGBP",
				Direction:       Sell,
				EntryTime:       "08:00",
				MartingaleTimes: []string{},
			},
		},
		{
			name: "otc marker",
			msg: `Pair: EURUSD
BUY
Entry Time: 14:05 (OTC-4)`,
			want: &Signal{
				CurrencyPair:    "EURUSD",
				Direction:       Buy,
				EntryTime:       "14:05",
				MartingaleTimes: []string{},
				OTC:             "-4",
			},
		},
		{
			name: "no labels",
			msg:  "good morning traders, results coming soon",
			want: &Signal{
				MartingaleTimes: []string{},
			},
		},
		{
			name: "empty",
			msg:  "",
			want: &Signal{
				MartingaleTimes: []string{},
			},
		},
	}

	parser := NewParser(t.Log)
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := parser.Parse(tt.msg)
			if !reflect.DeepEqual(*got, *tt.want) {
				t.Errorf("got: %+v, want: %+v", got, tt.want)
			}
		})
	}
}

func TestActionable(t *testing.T) {
	parser := NewParser(nil)
	if parser.Parse("Pair: EURUSD BUY").Actionable() {
		t.Error("signal without entry time must not be actionable")
	}
	if parser.Parse("BUY Entry Time: 10:00").Actionable() {
		t.Error("signal without pair must not be actionable")
	}
	if !parser.Parse("Pair: EURUSD Entry Time: 10:00").Actionable() {
		t.Error("signal with pair and entry time must be actionable")
	}
}

func TestToday(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "14:05", want: time.Date(2024, 3, 10, 14, 5, 0, 0, time.UTC)},
		{in: "16:30:15", want: time.Date(2024, 3, 10, 16, 30, 15, 0, time.UTC)},
		{in: "24:00", wantErr: true},
		{in: "1405", wantErr: true},
	}
	for _, tt := range tests {
		got, err := Today(tt.in, now, time.UTC)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatal(err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("%s: got %s, want %s", tt.in, got, tt.want)
		}
	}
}
