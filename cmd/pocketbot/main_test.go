package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	sig "github.com/igolaizola/pocketbot/pkg/signal"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want *sig.Signal
		err  error
	}{
		{
			name: "basic",
			msg:  "Pair: EURUSD\nBUY\nEntry Time: 14:05\nExpiration: M1",
			want: &sig.Signal{
				CurrencyPair:    "EURUSD",
				Direction:       sig.Buy,
				EntryTime:       "14:05",
				Timeframe:       sig.M1,
				MartingaleTimes: []string{},
			},
		},
		{
			name: "anna signals",
			msg:  "Anna Signals\nPair: EURUSD\nBUY\nEntry Time: 14:05\nExpiration: M1",
			want: &sig.Signal{
				CurrencyPair:    "EURUSD",
				Direction:       sig.Buy,
				EntryTime:       "14:05",
				Timeframe:       sig.M1,
				MartingaleTimes: []string{"14:06", "14:07"},
			},
		},
		{
			name: "chatter",
			msg:  "good morning traders",
			want: &sig.Signal{
				MartingaleTimes: []string{},
			},
			err: errNotActionable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := parse(strings.NewReader(tt.msg), &out)
			if !errors.Is(err, tt.err) {
				t.Fatalf("got error %v, want %v", err, tt.err)
			}
			var got sig.Signal
			if err := json.Unmarshal(out.Bytes(), &got); err != nil {
				t.Fatalf("couldn't decode output %q: %v", out.String(), err)
			}
			if !reflect.DeepEqual(&got, tt.want) {
				t.Errorf("got %+v, want %+v", &got, tt.want)
			}
		})
	}
}

func TestCheckSource(t *testing.T) {
	tests := []struct {
		name  string
		flags sourceFlags
		ok    bool
	}{
		{"bot", sourceFlags{source: "bot", token: "t", controlChat: 1}, true},
		{"bot without token", sourceFlags{source: "bot", controlChat: 1}, false},
		{"bot without control chat", sourceFlags{source: "bot", token: "t"}, false},
		{"mtproto bot", sourceFlags{source: "mtproto", apiID: 1, apiHash: "h", mtprotoBot: true, token: "t"}, true},
		{"mtproto bot without token", sourceFlags{source: "mtproto", apiID: 1, apiHash: "h", mtprotoBot: true}, false},
		{"mtproto user", sourceFlags{source: "mtproto", apiID: 1, apiHash: "h", phone: "+34600000000"}, true},
		{"mtproto user without phone", sourceFlags{source: "mtproto", apiID: 1, apiHash: "h"}, false},
		{"mtproto without api", sourceFlags{source: "mtproto", mtprotoBot: true, token: "t"}, false},
		{"unknown", sourceFlags{source: "irc"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkSource(tt.flags)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected error")
			}
		})
	}
}
