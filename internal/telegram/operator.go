// README: Operator channel; new-trip notifications and the trip status commands.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"tripdesk/internal/modules/trip"
)

const (
	TextBadID        = "Trip id must be a number."
	TextNotFound     = "Trip not found."
	TextBadParams    = "Usage: /price <id> <amount> [details]"
	TextInvalidState = "That status change is not allowed for this trip."
	TextNoTrips      = "No trips with that status."
)

type operatorPayload struct {
	ID          int64  `json:"id"`
	User        string `json:"user"`
	UserName    string `json:"user_name,omitempty"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Date        string `json:"date"`
	Transport   string `json:"transport"`
	Time        string `json:"time,omitempty"`
	Baggage     string `json:"baggage,omitempty"`
	Passengers  string `json:"passengers,omitempty"`
}

// NotificationText is the operator message for a new trip.
func NotificationText(t *trip.Trip) (string, error) {
	body, err := json.MarshalIndent(operatorPayload{
		ID:          t.ID,
		User:        t.UserKey,
		UserName:    t.UserName,
		Origin:      t.Origin,
		Destination: t.Destination,
		Date:        t.Date,
		Transport:   t.Transport,
		Time:        t.Time,
		Baggage:     t.Baggage,
		Passengers:  t.Passengers,
	}, "", "  ")
	if err != nil {
		return "", err
	}
	return "New trip request:\n" + string(body), nil
}

// OperatorNotifier posts new trips to the operator chat.
type OperatorNotifier struct {
	bot  *tele.Bot
	chat tele.ChatID
}

func NewOperatorNotifier(bot *tele.Bot, chatID int64) *OperatorNotifier {
	return &OperatorNotifier{bot: bot, chat: tele.ChatID(chatID)}
}

func (n *OperatorNotifier) NotifyOperator(_ context.Context, t *trip.Trip) error {
	text, err := NotificationText(t)
	if err != nil {
		return fmt.Errorf("render operator notification: %w", err)
	}
	if _, err := n.bot.Send(n.chat, text); err != nil {
		return fmt.Errorf("send operator notification: %w", err)
	}
	return nil
}

// OperatorService is implemented by *trip.Service.
type OperatorService interface {
	Accept(ctx context.Context, id int64) (*trip.Trip, error)
	SetPrice(ctx context.Context, id int64, price string) (*trip.Trip, error)
	Confirm(ctx context.Context, id int64) (*trip.Trip, error)
	Reject(ctx context.Context, id int64) (*trip.Trip, error)
	List(ctx context.Context, status trip.Status, limit int) ([]trip.Trip, error)
}

// TravellerMessenger reaches the traveller who owns a trip.
type TravellerMessenger interface {
	SendTo(userKey, text string) error
}

// StatusText tells the traveller about a status change.
func StatusText(t *trip.Trip) string {
	switch t.Status {
	case trip.StatusAccepted:
		return fmt.Sprintf("Trip #%d to %s on %s was accepted. The operator will send you the price shortly.", t.ID, t.Destination, t.Date)
	case trip.StatusAwaitingPayment:
		price := ""
		if t.Price != nil {
			price = *t.Price
		}
		return fmt.Sprintf("Trip #%d to %s: the price is %s. The operator will tell you how to pay.", t.ID, t.Destination, price)
	case trip.StatusConfirmed:
		return fmt.Sprintf("Trip #%d to %s on %s is confirmed. Have a good trip!", t.ID, t.Destination, t.Date)
	case trip.StatusRejected:
		return fmt.Sprintf("Unfortunately trip #%d to %s on %s was declined.", t.ID, t.Destination, t.Date)
	}
	return fmt.Sprintf("Trip #%d is now %s.", t.ID, t.Status)
}

// OperatorCommands executes operator commands and reports back in plain text.
type OperatorCommands struct {
	trips     OperatorService
	traveller TravellerMessenger
	log       *zap.Logger
}

// NewOperatorCommands builds the command set. traveller may be nil.
func NewOperatorCommands(trips OperatorService, traveller TravellerMessenger, log *zap.Logger) *OperatorCommands {
	if log == nil {
		log = zap.NewNop()
	}
	return &OperatorCommands{trips: trips, traveller: traveller, log: log}
}

// Run executes cmd ("accept", "price", "confirm", "reject" or "list") with its arguments.
func (o *OperatorCommands) Run(ctx context.Context, cmd string, args []string) string {
	if cmd == "list" {
		return o.list(ctx, args)
	}
	if len(args) == 0 {
		return TextBadID
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return TextBadID
	}

	var t *trip.Trip
	switch cmd {
	case "accept":
		t, err = o.trips.Accept(ctx, id)
	case "price":
		if len(args) < 2 {
			return TextBadParams
		}
		t, err = o.trips.SetPrice(ctx, id, strings.Join(args[1:], " "))
	case "confirm":
		t, err = o.trips.Confirm(ctx, id)
	case "reject":
		t, err = o.trips.Reject(ctx, id)
	default:
		return TextBadParams
	}
	switch {
	case errors.Is(err, trip.ErrNotFound):
		return TextNotFound
	case errors.Is(err, trip.ErrInvalidState), errors.Is(err, trip.ErrConflict):
		return TextInvalidState
	case errors.Is(err, trip.ErrBadRequest):
		return TextBadParams
	case err != nil:
		o.log.Error("operator command failed", zap.String("cmd", cmd), zap.Int64("trip_id", id), zap.Error(err))
		return "Failed: " + err.Error()
	}

	o.notifyTraveller(t)
	return fmt.Sprintf("Trip #%d is now %s.", t.ID, t.Status)
}

func (o *OperatorCommands) notifyTraveller(t *trip.Trip) {
	if o.traveller == nil {
		return
	}
	if err := o.traveller.SendTo(t.UserKey, StatusText(t)); err != nil && !errors.Is(err, ErrNotTelegramUser) {
		o.log.Warn("notify traveller", zap.Int64("trip_id", t.ID), zap.Error(err))
	}
}

func (o *OperatorCommands) list(ctx context.Context, args []string) string {
	status := trip.StatusPending
	if len(args) > 0 {
		s, ok := trip.ParseStatus(args[0])
		if !ok {
			return "Unknown status " + strconv.Quote(args[0])
		}
		status = s
	}
	trips, err := o.trips.List(ctx, status, trip.DefaultListLimit)
	if err != nil {
		o.log.Error("list trips", zap.Error(err))
		return "Failed: " + err.Error()
	}
	if len(trips) == 0 {
		return TextNoTrips
	}
	var b strings.Builder
	for i, t := range trips {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "#%d %s → %s %s %s [%s] %s", t.ID, t.Origin, t.Destination, t.Date, t.Transport, t.Status, t.UserName)
	}
	return b.String()
}

// OperatorBot serves the operator commands in Telegram.
type OperatorBot struct {
	bot     *tele.Bot
	cmds    *OperatorCommands
	allowed int64
	log     *zap.Logger
}

// NewOperatorBot builds the operator bot. Commands are accepted only from allowedChat when it is non-zero.
func NewOperatorBot(token string, cmds *OperatorCommands, allowedChat int64, log *zap.Logger) (*OperatorBot, error) {
	b, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create operator bot: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	ob := &OperatorBot{bot: b, cmds: cmds, allowed: allowedChat, log: log.Named("operator_bot")}
	for _, name := range []string{"accept", "price", "confirm", "reject", "list"} {
		name := name
		b.Handle("/"+name, func(c tele.Context) error { return ob.handle(c, name) })
	}
	return ob, nil
}

func (o *OperatorBot) Tele() *tele.Bot { return o.bot }

func (o *OperatorBot) Start(ctx context.Context) error {
	o.log.Info("starting operator bot", zap.String("username", o.bot.Me.Username))
	go func() {
		<-ctx.Done()
		o.bot.Stop()
	}()
	o.bot.Start()
	return nil
}

func (o *OperatorBot) handle(c tele.Context, name string) error {
	if o.allowed != 0 && c.Chat().ID != o.allowed {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.Send(o.cmds.Run(ctx, name, c.Args()))
}
