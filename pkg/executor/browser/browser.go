// Package browser drives a Chrome session: it logs into the platform and
// trades by clicking the call and put buttons.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/igolaizola/pocketbot/pkg/executor"
	"github.com/igolaizola/pocketbot/pkg/executor/hotkey"
	"github.com/igolaizola/pocketbot/pkg/signal"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var ErrLoginTimeout = errors.New("browser: login not completed")

type Config struct {
	ExecPath    string
	UserDataDir string
	Headless    bool

	LoginURL string
	Email    string
	Password string
	// LoginTimeout bounds the wait for a manual captcha after submitting.
	LoginTimeout time.Duration
	PollInterval time.Duration

	BuySelector    string
	SellSelector   string
	AmountSelector string
	AssetSelector  string
	SearchSelector string
	ActionTimeout  time.Duration
}

func (c *Config) defaults() {
	if c.LoginURL == "" {
		c.LoginURL = "https://pocketoption.com/en/login/"
	}
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = 180 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.BuySelector == "" {
		c.BuySelector = ".btn-call"
	}
	if c.SellSelector == "" {
		c.SellSelector = ".btn-put"
	}
	if c.AmountSelector == "" {
		c.AmountSelector = ".value__val input"
	}
	if c.AssetSelector == "" {
		c.AssetSelector = ".current-symbol"
	}
	if c.SearchSelector == "" {
		c.SearchSelector = ".search__field input"
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 10 * time.Second
	}
}

type Session struct {
	cfg         Config
	log         zerolog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// New launches Chrome with automation hints disabled. The session lives
// until Close is called.
func New(cfg Config, log zerolog.Logger) (*Session, error) {
	cfg.defaults()
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("start-maximized", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("excludeSwitches", "enable-automation"),
		chromedp.Flag("useAutomationExtension", false),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// Start the browser
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("browser: couldn't start chrome: %w", err)
	}
	return &Session{
		cfg:         cfg,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
	}, nil
}

func (s *Session) Close() error {
	s.cancel()
	s.allocCancel()
	return nil
}

// run executes actions in the browser tab bounded by the action timeout
// and the caller's context.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(tctx, actions...)
}

// Login fills the credentials and submits the form. A captcha may need to be
// solved by hand, so the URL is polled until the trading page is reached.
func (s *Session) Login(ctx context.Context) error {
	if err := s.run(ctx, time.Minute,
		chromedp.Navigate(s.cfg.LoginURL),
		chromedp.WaitVisible(`input[name="email"]`, chromedp.ByQuery),
		chromedp.SetValue(`input[name="email"]`, "", chromedp.ByQuery),
		chromedp.SendKeys(`input[name="email"]`, s.cfg.Email, chromedp.ByQuery),
		chromedp.SetValue(`input[name="password"]`, "", chromedp.ByQuery),
		chromedp.SendKeys(`input[name="password"]`, s.cfg.Password, chromedp.ByQuery),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery, chromedp.NodeVisible),
	); err != nil {
		return fmt.Errorf("browser: couldn't submit login form: %w", err)
	}
	s.log.Info().Msg("login submitted, waiting for trading page (solve the captcha if asked)")

	deadline := time.Now().Add(s.cfg.LoginTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}
		var url string
		if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Location(&url)); err != nil {
			s.log.Warn().Err(err).Msg("couldn't read location")
			continue
		}
		if LoggedIn(url) {
			s.log.Info().Str("url", url).Msg("login successful")
			return nil
		}
		s.log.Debug().Str("url", url).Msg("still on login page")
	}
	return fmt.Errorf("%w after %s", ErrLoginTimeout, s.cfg.LoginTimeout)
}

// LoggedIn reports whether the url belongs to the logged-in area.
func LoggedIn(url string) bool {
	return strings.Contains(url, "dashboard") || strings.Contains(url, "trade")
}

// Current returns the asset displayed on the trading page.
func (s *Session) Current(ctx context.Context) (string, error) {
	var text string
	if err := s.run(ctx, s.cfg.ActionTimeout,
		chromedp.Text(s.cfg.AssetSelector, &text, chromedp.ByQuery, chromedp.NodeVisible),
	); err != nil {
		return "", fmt.Errorf("browser: couldn't read current asset: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Select opens the asset list and searches the pair when it isn't the
// current one.
func (s *Session) Select(ctx context.Context, pair string) error {
	current, err := s.Current(ctx)
	if err == nil && hotkey.SameAsset(current, pair) {
		return nil
	}
	if err := s.run(ctx, s.cfg.ActionTimeout,
		chromedp.Click(s.cfg.AssetSelector, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.WaitVisible(s.cfg.SearchSelector, chromedp.ByQuery),
		chromedp.SetValue(s.cfg.SearchSelector, "", chromedp.ByQuery),
		chromedp.SendKeys(s.cfg.SearchSelector, pair+"\r", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("browser: couldn't search asset %s: %w", pair, err)
	}
	current, err = s.Current(ctx)
	if err != nil {
		return err
	}
	if !hotkey.SameAsset(current, pair) {
		return fmt.Errorf("browser: asset %s selected instead of %s", current, pair)
	}
	s.log.Info().Str("pair", pair).Msg("asset selected")
	return nil
}

// Execute sets the amount and clicks the call (BUY) or put (SELL) button.
func (s *Session) Execute(ctx context.Context, direction signal.Direction, stake decimal.Decimal) error {
	if err := executor.Validate(direction); err != nil {
		return err
	}
	sel := s.cfg.BuySelector
	if direction == signal.Sell {
		sel = s.cfg.SellSelector
	}
	if err := s.run(ctx, s.cfg.ActionTimeout,
		chromedp.SetValue(s.cfg.AmountSelector, stake.String(), chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible),
	); err != nil {
		return fmt.Errorf("browser: couldn't place %s trade: %w", direction, err)
	}
	s.log.Info().Str("direction", string(direction)).Str("stake", stake.String()).Msg("trade placed")
	return nil
}
