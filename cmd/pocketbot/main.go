package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/igolaizola/pocketbot"
	"github.com/igolaizola/pocketbot/pkg/executor/browser"
	"github.com/igolaizola/pocketbot/pkg/executor/hotkey"
	"github.com/igolaizola/pocketbot/pkg/logger"
	"github.com/igolaizola/pocketbot/pkg/mtproto"
	"github.com/igolaizola/pocketbot/pkg/settings"
	sig "github.com/igolaizola/pocketbot/pkg/signal"
	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/shopspring/decimal"
)

func main() {
	// Create signal based context
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, os.Kill)
	go func() {
		select {
		case <-c:
			cancel()
		case <-ctx.Done():
			cancel()
		}
		signal.Stop(c)
	}()

	// Environment files are optional
	_ = godotenv.Load()

	// Launch command
	cmd := newCommand()
	if err := cmd.ParseAndRun(ctx, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func newCommand() *ffcli.Command {
	fs := flag.NewFlagSet("pocketbot", flag.ExitOnError)

	return &ffcli.Command{
		ShortUsage: "pocketbot [flags] <subcommand>",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newRunCommand(),
			newParseCommand(),
		},
	}
}

func newRunCommand() *ffcli.Command {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	db := fs.String("db", "pocketbot.db", "trade journal path")
	location := fs.String("location", "UTC", "time zone of signal times")
	logLevel := fs.String("log-level", "info", "log level")
	console := fs.Bool("log-console", false, "human readable logs")

	source := fs.String("source", "bot", "message source (bot, mtproto)")
	token := fs.String("telegram-token", "", "telegram bot token")
	controlChat := fs.Int64("telegram-control-chat", 0, "telegram chat id for notifications and commands")
	signalChat := fs.Int64("telegram-signal-chat", 0, "telegram chat id to read signals")
	apiID := fs.Int("telegram-api-id", 0, "telegram api id (mtproto)")
	apiHash := fs.String("telegram-api-hash", "", "telegram api hash (mtproto)")
	session := fs.String("telegram-session", "pocketbot.session", "telegram session file (mtproto)")
	phone := fs.String("telegram-phone", "", "telegram phone for user login (mtproto)")
	mtprotoBot := fs.Bool("telegram-mtproto-bot", true, "login to mtproto with the bot token")

	exec := fs.String("executor", "dry", "trade executor (dry, hotkey, browser)")
	useBrowser := fs.Bool("browser", false, "open and login to the platform in chrome")
	chromePath := fs.String("chrome-path", "", "chrome executable path")
	chromeData := fs.String("chrome-user-data", "/tmp/chrome-user-data", "chrome user data dir")
	headless := fs.Bool("chrome-headless", false, "run chrome headless")
	loginURL := fs.String("login-url", "https://pocketoption.com/en/login/", "platform login url")
	email := fs.String("email", "", "platform email")
	password := fs.String("password", "", "platform password")
	loginTimeout := fs.Duration("login-timeout", 180*time.Second, "time to wait for login completion")
	buySelector := fs.String("buy-selector", ".btn-call", "buy button css selector")
	sellSelector := fs.String("sell-selector", ".btn-put", "sell button css selector")
	maxAttempts := fs.Int("switch-attempts", 50, "max asset switches with hotkeys")
	switchDelay := fs.Duration("switch-delay", 5*time.Second, "wait between asset switches")
	minInterval := fs.Duration("min-interval", 500*time.Millisecond, "min interval between trades")

	baseStake := fs.String("base-stake", "1", "stake of the entry trade")
	maxMartingale := fs.Int("max-martingale", 2, "max martingale steps")
	otcShift := fs.Duration("otc-shift", 0, "shift applied to OTC-4 entry times (0 disables it)")
	settingsPath := fs.String("settings", "", "yaml stake settings file, reloaded on change (optional)")

	apiAddr := fs.String("api-addr", ":8080", "health and state api address (empty disables it)")
	report := fs.String("report", "0 21 * * *", "daily report cron schedule (empty disables it)")
	retention := fs.Duration("retention", 30*24*time.Hour, "trade journal retention")
	active := fs.Bool("active", false, "start with trading enabled")
	dry := fs.Bool("dry", false, "force dry executor")

	return &ffcli.Command{
		Name:       "run",
		ShortUsage: "pocketbot run [flags]",
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ff.PlainParser),
			ff.WithEnvVarPrefix("POCKETBOT"),
		},
		ShortHelp: "run pocketbot",
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			if *db == "" {
				return errors.New("missing db path")
			}
			if *dry {
				*exec = "dry"
				if !strings.HasSuffix(*db, ".dry.db") {
					*db = fmt.Sprintf("%s.dry.db", strings.TrimSuffix(*db, ".db"))
				}
			}
			loc, err := time.LoadLocation(*location)
			if err != nil {
				return fmt.Errorf("invalid location: %w", err)
			}
			stake, err := decimal.NewFromString(*baseStake)
			if err != nil {
				return fmt.Errorf("invalid base stake: %w", err)
			}
			if err := checkSource(sourceFlags{
				source:      *source,
				token:       *token,
				controlChat: *controlChat,
				apiID:       *apiID,
				apiHash:     *apiHash,
				mtprotoBot:  *mtprotoBot,
				phone:       *phone,
			}); err != nil {
				return err
			}
			if *signalChat == 0 {
				return errors.New("missing telegram signal chat")
			}
			if (*useBrowser || *exec == "browser") && (*email == "" || *password == "") {
				return errors.New("missing platform credentials")
			}

			mtcfg := mtproto.Config{
				ID:      *apiID,
				Hash:    *apiHash,
				Session: *session,
				Phone:   *phone,
				Code:    stdinCode,
				ChatID:  *signalChat,
			}
			if *mtprotoBot {
				mtcfg.BotToken = *token
			}

			l := logger.New(*logLevel, *console)
			bot, err := pocketbot.NewBot(pocketbot.Config{
				DB:            *db,
				Location:      loc,
				Source:        *source,
				Token:         *token,
				ControlChatID: *controlChat,
				SignalChatID:  *signalChat,
				MTProto:       mtcfg,
				Executor:      *exec,
				Browser:       *useBrowser,
				BrowserCfg: browser.Config{
					ExecPath:     *chromePath,
					UserDataDir:  *chromeData,
					Headless:     *headless,
					LoginURL:     *loginURL,
					Email:        *email,
					Password:     *password,
					LoginTimeout: *loginTimeout,
					BuySelector:  *buySelector,
					SellSelector: *sellSelector,
				},
				Hotkey: hotkey.Config{
					MaxAttempts: *maxAttempts,
					SwitchDelay: *switchDelay,
				},
				MinInterval: *minInterval,
				Settings: settings.Settings{
					BaseStake:     stake,
					MaxMartingale: *maxMartingale,
					OTCShift:      *otcShift,
				},
				SettingsPath: *settingsPath,
				APIAddr:      *apiAddr,
				Report:       *report,
				Retention:    *retention,
				Active:       *active,
			}, l)
			if err != nil {
				return err
			}
			defer bot.Close()
			return bot.Run(ctx)
		},
	}
}

func newParseCommand() *ffcli.Command {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)

	return &ffcli.Command{
		Name:       "parse",
		ShortUsage: "pocketbot parse < message.txt",
		ShortHelp:  "parse a signal message from stdin and print it as json",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return parse(os.Stdin, os.Stdout)
		},
	}
}

var errNotActionable = errors.New("signal is not actionable")

// parse prints the signal parsed from r as indented json.
func parse(r io.Reader, w io.Writer) error {
	text, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("couldn't read message: %w", err)
	}
	s := sig.NewParser(log.Println).Parse(string(text))
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("couldn't encode signal: %w", err)
	}
	if !s.Actionable() {
		return errNotActionable
	}
	return nil
}

type sourceFlags struct {
	source      string
	token       string
	controlChat int64
	apiID       int
	apiHash     string
	mtprotoBot  bool
	phone       string
}

// checkSource validates the flags needed by the message source.
func checkSource(f sourceFlags) error {
	switch f.source {
	case "bot":
		if f.token == "" {
			return errors.New("missing telegram token")
		}
		if f.controlChat == 0 {
			return errors.New("missing telegram control chat")
		}
	case "mtproto":
		if f.apiID == 0 || f.apiHash == "" {
			return errors.New("missing telegram api id or hash")
		}
		if f.mtprotoBot && f.token == "" {
			return errors.New("missing telegram token for mtproto bot login")
		}
		if !f.mtprotoBot && f.phone == "" {
			return errors.New("missing telegram phone")
		}
	default:
		return fmt.Errorf("unknown source %q", f.source)
	}
	return nil
}

func stdinCode(ctx context.Context) (string, error) {
	fmt.Print("Enter telegram code: ")
	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("couldn't read code: %w", err)
	}
	return code, nil
}
