package control

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestOnCommand(t *testing.T) {
	tests := []struct {
		name     string
		commands []string
		want     bool
	}{
		{name: "initial state", want: false},
		{name: "start", commands: []string{"/start"}, want: true},
		{name: "start then stop", commands: []string{"/start", "/stop"}, want: false},
		{name: "stop then start", commands: []string{"/stop", "/start"}, want: true},
		{name: "case and spaces", commands: []string{"  /START now "}, want: true},
		{name: "unknown keeps state", commands: []string{"/start", "/status", "hello"}, want: true},
		{name: "bot suffix", commands: []string{"/start@pocketbot", "/stop@pocketbot"}, want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			state := &State{}
			h := NewHandler(state, zerolog.Nop())
			for _, c := range tt.commands {
				h.OnCommand(c)
			}
			if got := state.Active(); got != tt.want {
				t.Errorf("got active %t, want %t", got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := map[string]Command{
		"/start":        Start,
		"/stop":         Stop,
		" /Stop trades": Stop,
		"start":         None,
		"Pair: EURUSD":  None,
		"":              None,
	}
	for in, want := range tests {
		if got := Parse(in); got != want {
			t.Errorf("%q: got %q, want %q", in, got, want)
		}
	}
}
