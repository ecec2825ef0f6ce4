package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	tb "gopkg.in/tucnak/telebot.v2"
)

type Bot struct {
	bot      *tb.Bot
	chat     *tb.Chat
	boot     time.Time
	messages chan string
	log      zerolog.Logger
}

// New creates a bot that reports to the control chat. Incoming messages
// are dispatched once Run is called.
func New(token string, controlChatID int64, log zerolog.Logger) (*Bot, error) {
	b, err := tb.NewBot(tb.Settings{
		Token:  token,
		Poller: &tb.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: couldn't create bot: %w", err)
	}
	chat, err := b.ChatByID(strconv.FormatInt(controlChatID, 10))
	if err != nil {
		return nil, fmt.Errorf("telegram: couldn't get chat %d: %w", controlChatID, err)
	}
	return &Bot{
		bot:      b,
		chat:     chat,
		boot:     time.Now(),
		messages: make(chan string, 100),
		log:      log,
	}, nil
}

// HandleChat forwards text messages and channel posts from the chat, or
// from the control chat, to the handler. Messages sent before the bot
// started are skipped.
func (b *Bot) HandleChat(chatID int64, handler func(string)) {
	h := func(m *tb.Message) {
		if m.Chat == nil || (m.Chat.ID != chatID && m.Chat.ID != b.chat.ID) {
			return
		}
		if m.Time().Before(b.boot) {
			return
		}
		text := m.Text
		if text == "" {
			text = m.Caption
		}
		if text == "" {
			return
		}
		b.log.Debug().Int64("chat", m.Chat.ID).Str("text", text).Msg("message received")
		handler(text)
	}
	b.bot.Handle(tb.OnText, h)
	b.bot.Handle(tb.OnChannelPost, h)
}

// HandleCommand registers a command only accepted from the control chat.
func (b *Bot) HandleCommand(command string, handler func(string)) {
	b.bot.Handle(fmt.Sprintf("/%s", command), func(m *tb.Message) {
		if m.Chat.ID != b.chat.ID {
			return
		}
		if m.Time().Before(b.boot) {
			return
		}
		handler(m.Payload)
	})
}

func (b *Bot) Run(ctx context.Context) error {
	go b.bot.Start()
	defer b.bot.Stop()
	defer b.bot.Send(b.chat, "🛑 bot stopping")
	var msg string
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg = <-b.messages:
		}
		opts := tb.ModeDefault
		if strings.Contains(msg, "`") {
			opts = tb.ModeMarkdown
		}
		if _, err := b.bot.Send(b.chat, msg, opts); err != nil {
			b.log.Error().Err(err).Msg("couldn't send telegram message")
		}
		select {
		case <-ctx.Done():
			return nil
		// Wait to avoid rate limit errors
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Print logs the message and queues it for the control chat. Messages are
// dropped when the queue is full.
func (b *Bot) Print(v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintln(v...))
	b.log.Info().Msg(msg)
	select {
	case b.messages <- msg:
	default:
		b.log.Warn().Msg("telegram queue full, message dropped")
	}
}
