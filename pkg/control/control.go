// Package control holds the trading-enabled flag and the administrative
// commands that toggle it.
package control

import (
	"strings"
	"sync/atomic"

	"github.com/igolaizola/pocketbot/pkg/metrics"
	"github.com/rs/zerolog"
)

type Command string

const (
	Start Command = "/start"
	Stop  Command = "/stop"
	None  Command = ""
)

// State is the trading-enabled flag. The zero value is inactive.
type State struct {
	active atomic.Bool
}

func (s *State) Active() bool {
	return s.active.Load()
}

func (s *State) Set(active bool) {
	s.active.Store(active)
	metrics.SetActive(active)
}

// IsCommand reports whether the text is an administrative command.
func IsCommand(text string) bool {
	return Parse(text) != None
}

// Parse returns the command the text starts with, ignoring case and
// surrounding whitespace.
func Parse(text string) Command {
	cmd := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.HasPrefix(cmd, string(Start)):
		return Start
	case strings.HasPrefix(cmd, string(Stop)):
		return Stop
	default:
		return None
	}
}

type Handler struct {
	state *State
	log   zerolog.Logger
}

func NewHandler(state *State, log zerolog.Logger) *Handler {
	return &Handler{state: state, log: log}
}

// OnCommand applies an administrative command to the trading state and
// returns the recognized command. Unknown text is logged and ignored.
func (h *Handler) OnCommand(text string) Command {
	cmd := Parse(text)
	if cmd != None {
		metrics.CommandsTotal.WithLabelValues(string(cmd)).Inc()
	}
	switch cmd {
	case Start:
		h.state.Set(true)
		h.log.Info().Msg("trading enabled")
	case Stop:
		h.state.Set(false)
		h.log.Info().Msg("trading disabled")
	default:
		h.log.Debug().Str("text", text).Msg("ignoring unknown command")
	}
	return cmd
}
