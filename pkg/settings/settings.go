// Package settings holds the stake settings the scheduler reads for every
// signal, optionally loaded from a YAML file and reloaded when it changes.
package settings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// MartingaleLimit bounds the martingale depth, the last step stakes
// 2^MartingaleLimit times the base stake.
const MartingaleLimit = 30

// Settings tunes stakes and martingale depth.
type Settings struct {
	BaseStake     decimal.Decimal
	MaxMartingale int
	// OTCShift is added to entry times of signals announced in OTC-4.
	// Zero leaves entry times untouched.
	OTCShift time.Duration
}

// Default matches the values the bot has always traded with.
func Default() Settings {
	return Settings{
		BaseStake:     decimal.NewFromInt(1),
		MaxMartingale: 2,
	}
}

func (s Settings) Validate() error {
	if !s.BaseStake.IsPositive() {
		return fmt.Errorf("settings: base stake must be positive: %s", s.BaseStake)
	}
	if s.MaxMartingale < 0 {
		return fmt.Errorf("settings: max martingale can't be negative: %d", s.MaxMartingale)
	}
	if s.MaxMartingale > MartingaleLimit {
		return fmt.Errorf("settings: max martingale can't exceed %d: %d", MartingaleLimit, s.MaxMartingale)
	}
	if s.OTCShift < 0 {
		return fmt.Errorf("settings: otc shift can't be negative: %s", s.OTCShift)
	}
	return nil
}

type file struct {
	BaseStake     *string `yaml:"base_stake"`
	MaxMartingale *int    `yaml:"max_martingale"`
	OTCShift      *string `yaml:"otc_shift"`
}

// Load reads a YAML settings file. Missing keys keep the values of base.
func Load(path string, base Settings) (Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return Settings{}, fmt.Errorf("settings: couldn't open %s: %w", path, err)
	}
	defer f.Close()

	var raw file
	if err := yaml.NewDecoder(f).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("settings: couldn't decode %s: %w", path, err)
	}
	s := base
	if raw.BaseStake != nil {
		d, err := decimal.NewFromString(*raw.BaseStake)
		if err != nil {
			return Settings{}, fmt.Errorf("settings: invalid base stake %q: %w", *raw.BaseStake, err)
		}
		s.BaseStake = d
	}
	if raw.MaxMartingale != nil {
		s.MaxMartingale = *raw.MaxMartingale
	}
	if raw.OTCShift != nil {
		d, err := time.ParseDuration(*raw.OTCShift)
		if err != nil {
			return Settings{}, fmt.Errorf("settings: invalid otc shift %q: %w", *raw.OTCShift, err)
		}
		s.OTCShift = d
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Holder shares the current settings between the reloader and readers.
type Holder struct {
	v atomic.Value
}

func NewHolder(s Settings) *Holder {
	h := &Holder{}
	h.Set(s)
	return h
}

func (h *Holder) Get() Settings {
	return h.v.Load().(Settings)
}

func (h *Holder) Set(s Settings) {
	h.v.Store(s)
}

// Watch reloads the settings file into the holder each time it is written
// until the context is done. Invalid files are logged and ignored.
func Watch(ctx context.Context, path string, h *Holder, log zerolog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settings: couldn't create watcher: %w", err)
	}
	defer w.Close()

	// Editors usually replace the file, so the directory is watched.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("settings: couldn't watch %s: %w", path, err)
	}
	name := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			s, err := Load(path, h.Get())
			if err != nil {
				log.Warn().Err(err).Msg("settings not reloaded")
				continue
			}
			h.Set(s)
			log.Info().
				Str("base_stake", s.BaseStake.String()).
				Int("max_martingale", s.MaxMartingale).
				Dur("otc_shift", s.OTCShift).
				Msg("settings reloaded")
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("settings watcher error")
		}
	}
}
