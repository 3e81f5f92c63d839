// README: Telegram transport for travellers; forwards every message to the dialogue engine.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"tripdesk/internal/dialogue"
)

const userKeyPrefix = "tg:"

var ErrNotTelegramUser = errors.New("telegram: user key is not a telegram user")

// TurnHandler is implemented by *dialogue.Engine.
type TurnHandler interface {
	Handle(ctx context.Context, turn dialogue.Turn) (dialogue.Reply, error)
}

// UserKey is the dialogue key of a Telegram user.
func UserKey(id int64) string { return userKeyPrefix + strconv.FormatInt(id, 10) }

// ParseUserKey returns the Telegram user id behind a dialogue key.
func ParseUserKey(key string) (int64, bool) {
	rest, ok := strings.CutPrefix(key, userKeyPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	return id, err == nil
}

// Bot runs the traveller-facing bot.
type Bot struct {
	bot     *tele.Bot
	engine  TurnHandler
	timeout time.Duration
	log     *zap.Logger
}

func NewBot(token string, engine TurnHandler, timeout time.Duration, log *zap.Logger) (*Bot, error) {
	b, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	adapter := &Bot{bot: b, engine: engine, timeout: timeout, log: log.Named("telegram")}
	adapter.setupHandlers()
	return adapter, nil
}

// Tele exposes the underlying bot, e.g. for an operator notifier sharing the token.
func (b *Bot) Tele() *tele.Bot { return b.bot }

// Start polls until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	b.log.Info("starting telegram bot", zap.String("username", b.bot.Me.Username))
	go func() {
		<-ctx.Done()
		b.bot.Stop()
	}()
	b.bot.Start()
	return nil
}

func (b *Bot) setupHandlers() {
	for _, cmd := range []string{"/start", "/help", "/cancel"} {
		b.bot.Handle(cmd, b.handleMessage)
	}
	b.bot.Handle(tele.OnText, b.handleMessage)
}

func (b *Bot) handleMessage(c tele.Context) error {
	_ = c.Notify(tele.Typing)

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	sender := c.Sender()
	reply, err := b.engine.Handle(ctx, dialogue.Turn{
		UserKey:  UserKey(sender.ID),
		UserName: displayName(sender),
		Text:     c.Text(),
	})
	if err != nil {
		b.log.Error("handle telegram message", zap.Int64("user_id", sender.ID), zap.Error(err))
		return c.Send(dialogue.TextServiceUnavailable)
	}
	for _, msg := range reply.Messages {
		if err := sendLongMessage(c, msg); err != nil {
			return err
		}
	}
	return nil
}

// SendTo delivers text to the traveller behind a dialogue key.
func (b *Bot) SendTo(userKey, text string) error {
	id, ok := ParseUserKey(userKey)
	if !ok {
		return ErrNotTelegramUser
	}
	_, err := b.bot.Send(tele.ChatID(id), text)
	return err
}

func displayName(u *tele.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if u.Username != "" {
		if name == "" {
			return "@" + u.Username
		}
		return name + " (@" + u.Username + ")"
	}
	return name
}

// sendLongMessage splits text that exceeds Telegram's 4096 char limit.
func sendLongMessage(c tele.Context, text string) error {
	for _, chunk := range splitMessage(text, 4000) {
		if err := c.Send(chunk); err != nil {
			return err
		}
	}
	return nil
}

// splitMessage cuts text into chunks of at most limit bytes on rune boundaries.
func splitMessage(text string, limit int) []string {
	var out []string
	for len(text) > limit {
		cut := limit
		for cut > 0 && !utf8RuneStart(text[cut]) {
			cut--
		}
		out = append(out, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
