package mtproto

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
)

type Config struct {
	ID      int
	Hash    string
	Session string
	// BotToken logs in as a bot, otherwise Phone and Code are used for a
	// user login.
	BotToken string
	Phone    string
	Code     func(context.Context) (string, error)
	// ChatID is the chat to listen to, either as a bare peer id or in the
	// bot API form (-100 prefixed for channels).
	ChatID int64
}

type Listener struct {
	cfg      Config
	fromID   int64
	log      zerolog.Logger
	callback func(string)
}

func New(cfg Config, log zerolog.Logger, callback func(string)) *Listener {
	return &Listener{
		cfg:      cfg,
		fromID:   PeerID(cfg.ChatID),
		log:      log,
		callback: callback,
	}
}

// PeerID converts a bot API chat id to the MTProto peer id.
func PeerID(chatID int64) int64 {
	s := strconv.FormatInt(chatID, 10)
	if strings.HasPrefix(s, "-100") {
		id, err := strconv.ParseInt(strings.TrimPrefix(s, "-100"), 10, 64)
		if err == nil {
			return id
		}
	}
	if chatID < 0 {
		return -chatID
	}
	return chatID
}

func (l *Listener) Run(ctx context.Context) error {
	dispatcher := tg.NewUpdateDispatcher()
	client := telegram.NewClient(l.cfg.ID, l.cfg.Hash, telegram.Options{
		SessionStorage: &session.FileStorage{
			Path: l.cfg.Session,
		},
		UpdateHandler: dispatcher,
	})

	dispatcher.OnNewMessage(func(ctx context.Context, entities tg.Entities, u *tg.UpdateNewMessage) error {
		l.handle(u.Message)
		return nil
	})
	dispatcher.OnNewChannelMessage(func(ctx context.Context, entities tg.Entities, u *tg.UpdateNewChannelMessage) error {
		l.handle(u.Message)
		return nil
	})

	return client.Run(ctx, func(ctx context.Context) error {
		if err := l.auth(ctx, client); err != nil {
			return fmt.Errorf("mtproto: couldn't authenticate: %w", err)
		}
		l.log.Info().Int64("chat", l.fromID).Msg("listening for mtproto messages")
		<-ctx.Done()
		return nil
	})
}

func (l *Listener) auth(ctx context.Context, client *telegram.Client) error {
	if l.cfg.BotToken != "" {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return err
		}
		if status.Authorized {
			return nil
		}
		_, err = client.Auth().Bot(ctx, l.cfg.BotToken)
		return err
	}
	codePrompt := func(ctx context.Context, sentCode *tg.AuthSentCode) (string, error) {
		code, err := l.cfg.Code(ctx)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(code), nil
	}
	flow := auth.NewFlow(
		auth.CodeOnly(l.cfg.Phone, auth.CodeAuthenticatorFunc(codePrompt)),
		auth.SendCodeOptions{},
	)
	return client.Auth().IfNecessary(ctx, flow)
}

func (l *Listener) handle(msg tg.MessageClass) {
	m, ok := msg.(*tg.Message)
	if !ok || m.Out {
		return
	}
	peerID, err := fromPeer(m.PeerID)
	if err != nil {
		l.log.Warn().Err(err).Msg("couldn't get message peer")
		return
	}
	if peerID != l.fromID {
		return
	}
	l.log.Debug().Int64("chat", peerID).Str("text", m.Message).Msg("message received")
	l.callback(m.Message)
}

func fromPeer(p tg.PeerClass) (id int64, err error) {
	switch v := p.(type) {
	case *tg.PeerUser:
		return int64(v.UserID), nil
	case *tg.PeerChannel:
		return int64(v.ChannelID), nil
	case *tg.PeerChat:
		return int64(v.ChatID), nil
	}
	return 0, fmt.Errorf("mtproto: invalid peer: %T", p)
}
