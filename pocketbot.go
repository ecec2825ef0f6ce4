package pocketbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/igolaizola/pocketbot/pkg/api"
	"github.com/igolaizola/pocketbot/pkg/control"
	"github.com/igolaizola/pocketbot/pkg/executor"
	"github.com/igolaizola/pocketbot/pkg/executor/browser"
	"github.com/igolaizola/pocketbot/pkg/executor/hotkey"
	"github.com/igolaizola/pocketbot/pkg/mtproto"
	"github.com/igolaizola/pocketbot/pkg/schedule"
	"github.com/igolaizola/pocketbot/pkg/settings"
	"github.com/igolaizola/pocketbot/pkg/signal"
	"github.com/igolaizola/pocketbot/pkg/telegram"
	"github.com/igolaizola/pocketbot/pkg/trade"
	"github.com/igolaizola/pocketbot/pkg/trade/bolt"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

var version = "v241017a"

type Config struct {
	DB       string
	Location *time.Location

	// Message source: "bot" uses the telegram bot API, "mtproto" a client
	// session.
	Source        string
	Token         string
	ControlChatID int64
	SignalChatID  int64
	MTProto       mtproto.Config

	// Executor: "dry", "hotkey" or "browser".
	Executor    string
	Browser     bool
	BrowserCfg  browser.Config
	Hotkey      hotkey.Config
	MinInterval time.Duration

	Settings     settings.Settings
	SettingsPath string

	APIAddr   string
	Report    string
	Retention time.Duration
	Active    bool
}

type Bot struct {
	runners      []func(context.Context) error
	ctx          context.Context
	cancel       context.CancelFunc
	log          zerolog.Logger
	notify       func(v ...interface{})
	parser       signal.Parser
	state        *control.State
	commands     *control.Handler
	scheduler    *schedule.Scheduler
	store        trade.Store
	settings     *settings.Holder
	settingsPath string
	report       string
	retention    time.Duration
	closers      []io.Closer
}

func NewBot(cfg Config, log zerolog.Logger) (*Bot, error) {
	b := &Bot{
		ctx:          context.TODO(),
		log:          log,
		notify:       func(v ...interface{}) { log.Info().Msg(strings.TrimSpace(fmt.Sprintln(v...))) },
		parser:       signal.NewParser(func(v ...interface{}) { log.Warn().Msg(fmt.Sprint(v...)) }),
		state:        &control.State{},
		settingsPath: cfg.SettingsPath,
		report:       cfg.Report,
		retention:    cfg.Retention,
	}
	b.commands = control.NewHandler(b.state, log)
	b.state.Set(cfg.Active)

	set := cfg.Settings
	if cfg.SettingsPath != "" {
		var err error
		set, err = settings.Load(cfg.SettingsPath, set)
		if err != nil {
			return nil, fmt.Errorf("pocketbot: couldn't load settings: %w", err)
		}
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	b.settings = settings.NewHolder(set)

	store, err := bolt.New(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("pocketbot: couldn't create db: %w", err)
	}
	b.store = store
	b.closers = append(b.closers, store)

	// Telegram bot, used for notifications and optionally as message source
	var tgbot *telegram.Bot
	if cfg.Token != "" && cfg.ControlChatID != 0 {
		tgbot, err = telegram.New(cfg.Token, cfg.ControlChatID, log)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("pocketbot: couldn't create telegram bot: %w", err)
		}
		b.notify = tgbot.Print
		b.runners = append(b.runners, tgbot.Run)
		tgbot.HandleCommand("status", func(_ string) {
			b.notify(b.status())
		})
	}
	switch cfg.Source {
	case "bot":
		if tgbot == nil {
			b.Close()
			return nil, errors.New("pocketbot: telegram bot source needs token and control chat")
		}
		tgbot.HandleChat(cfg.SignalChatID, b.handle)
	case "mtproto":
		listener := mtproto.New(cfg.MTProto, log, b.handle)
		b.runners = append(b.runners, listener.Run)
	default:
		b.Close()
		return nil, fmt.Errorf("pocketbot: unknown message source %q", cfg.Source)
	}

	ex, err := b.newExecutor(cfg)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.scheduler = schedule.New(schedule.Config{
		State:    b.state,
		Executor: executor.Throttle(ex, cfg.MinInterval),
		Settings: b.settings.Get,
		Location: cfg.Location,
		Store:    b.store,
		Log:      log,
		Notify:   func(v ...interface{}) { b.notify(v...) },
	})

	if cfg.APIAddr != "" {
		srv := api.NewServer(cfg.APIAddr, b.state, b.commands, b.store, log)
		b.runners = append(b.runners, srv.Run)
	}
	return b, nil
}

func (b *Bot) newExecutor(cfg Config) (executor.Executor, error) {
	var session *browser.Session
	if cfg.Browser || cfg.Executor == "browser" {
		var err error
		session, err = browser.New(cfg.BrowserCfg, b.log)
		if err != nil {
			return nil, fmt.Errorf("pocketbot: couldn't start browser: %w", err)
		}
		b.closers = append(b.closers, session)
		if err := session.Login(context.Background()); err != nil {
			if !errors.Is(err, browser.ErrLoginTimeout) {
				return nil, err
			}
			// The user may still finish the login by hand
			b.log.Warn().Err(err).Msg("login may not have completed")
		}
	}
	switch cfg.Executor {
	case "dry":
		return executor.NewDry(b.log), nil
	case "hotkey":
		hcfg := cfg.Hotkey
		if session != nil && hcfg.Detect == nil {
			hcfg.Detect = session.Current
		}
		return hotkey.New(hcfg, b.log), nil
	case "browser":
		return session, nil
	default:
		return nil, fmt.Errorf("pocketbot: unknown executor %q", cfg.Executor)
	}
}

func (b *Bot) Run(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)
	defer b.cancel()
	b.notify(fmt.Sprintf("🤖 pocketbot running\n- version: %s\n- trading: %t", version, b.state.Active()))

	if b.settingsPath != "" {
		go func() {
			if err := settings.Watch(b.ctx, b.settingsPath, b.settings, b.log); err != nil {
				b.log.Error().Err(err).Msg("settings watcher stopped")
			}
		}()
	}
	if b.report != "" {
		c := cron.New()
		if _, err := c.AddFunc(b.report, b.dailyReport); err != nil {
			return fmt.Errorf("pocketbot: invalid report schedule %q: %w", b.report, err)
		}
		c.Start()
		defer c.Stop()
	}

	var wg sync.WaitGroup
	errC := make(chan error, len(b.runners))
	for _, run := range b.runners {
		run := run
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(b.ctx); err != nil && !errors.Is(err, context.Canceled) {
				errC <- err
				b.cancel()
			}
		}()
	}
	wg.Wait()
	b.scheduler.Wait()
	close(errC)
	return <-errC
}

func (b *Bot) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// handle processes messages one at a time: administrative commands toggle
// trading and anything else is parsed as a signal.
func (b *Bot) handle(text string) {
	if control.IsCommand(text) {
		switch b.commands.OnCommand(text) {
		case control.Start:
			b.notify("▶️ trading enabled")
		case control.Stop:
			b.notify("⏸️ trading disabled")
		}
		return
	}
	sig := b.parser.Parse(text)
	if !sig.Actionable() {
		b.log.Debug().Str("text", text).Msg("message is not a signal")
		return
	}
	b.log.Info().
		Str("pair", sig.CurrencyPair).
		Str("direction", string(sig.Direction)).
		Str("entry", sig.EntryTime).
		Str("timeframe", string(sig.Timeframe)).
		Strs("martingale", sig.MartingaleTimes).
		Msg("signal parsed")
	if n := b.scheduler.OnSignal(b.ctx, sig); n > 0 {
		b.notify(fmt.Sprintf("⚡ %s %s at %s (%d trades)", sig.CurrencyPair, sig.Direction, sig.EntryTime, n))
	}
}

func (b *Bot) status() string {
	set := b.settings.Get()
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "trading: %t\nbase stake: %s\nmax martingale: %d\n", b.state.Active(), set.BaseStake, set.MaxMartingale)
	now := time.Now()
	trades, err := b.store.List(now.Add(-24*time.Hour), now)
	if err != nil {
		fmt.Fprintf(sb, "couldn't list trades: %v", err)
		return sb.String()
	}
	sb.WriteString(trade.Summarize(trades).String())
	return sb.String()
}

// dailyReport summarizes the last day of trades and prunes journal entries
// older than the retention.
func (b *Bot) dailyReport() {
	now := time.Now()
	trades, err := b.store.List(now.Add(-24*time.Hour), now)
	if err != nil {
		b.log.Error().Err(err).Msg("couldn't list trades for report")
		return
	}
	b.notify("📊 daily report\n" + trade.Summarize(trades).String())

	if b.retention <= 0 {
		return
	}
	old, err := b.store.List(time.Time{}, now.Add(-b.retention))
	if err != nil {
		b.log.Error().Err(err).Msg("couldn't list old trades")
		return
	}
	for _, t := range old {
		if err := b.store.Delete(t); err != nil {
			b.log.Error().Err(err).Msg("couldn't delete old trade")
		}
	}
	if len(old) > 0 {
		b.log.Info().Int("trades", len(old)).Msg("old trades pruned")
	}
}
