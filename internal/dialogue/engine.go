// README: Dialogue state machine; sequences reconciliation, completion, confirmation, extra questions and dispatch.
package dialogue

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tripdesk/internal/modules/trip"
	"tripdesk/internal/nlu"
	"tripdesk/internal/routes"
	"tripdesk/internal/session"
	"tripdesk/internal/slots"
)

var ErrNoUser = errors.New("dialogue: turn without user key")

const (
	// languageShare is the part of the remaining turn deadline given to language calls.
	languageShare = 0.8
	// storageTimeout bounds each state or trip write. Writes are not cut short by the turn deadline.
	storageTimeout = 5 * time.Second
)

// Assistant is the language side of a turn. *nlu.Client implements it.
type Assistant interface {
	Complete(ctx context.Context, req nlu.CompleteRequest) nlu.Completion
	ClassifyYesNo(ctx context.Context, text string) nlu.Answer
	GenerateQuestion(ctx context.Context, field slots.Field, fallback string) string
	GenerateConfirmation(ctx context.Context, s slots.SlotSet, fallback string) string
	GenerateFallback(ctx context.Context, text, fallback string) string
	NormalizeTime(ctx context.Context, text string) (string, bool)
	ParseHistoryRequest(ctx context.Context, text string) nlu.HistoryRequest
}

// Trips is the trip storage used by a conversation. *trip.Service implements it.
type Trips interface {
	Save(ctx context.Context, cmd trip.SaveCommand) (*trip.Trip, error)
	History(ctx context.Context, userKey string, limit int) ([]trip.Trip, error)
	CancelByDestination(ctx context.Context, userKey, destination string) (*trip.Trip, error)
}

type Notifier interface {
	NotifyOperator(ctx context.Context, t *trip.Trip) error
}

// RouteSearch is best-effort and returns an empty list on any failure. *routes.Dispatcher implements it.
type RouteSearch interface {
	Search(ctx context.Context, q routes.Query) []routes.Option
}

type Config struct {
	// ConfidenceThreshold marks known fields below it as missing.
	ConfidenceThreshold float64
	// GreetInterval is the idle time after which the greeting is shown again.
	GreetInterval time.Duration
	// SessionTTL is the idle time after which a stored conversation is discarded.
	SessionTTL time.Duration
	Now        func() time.Time
}

type Deps struct {
	Store      session.Store
	Reconciler *slots.Reconciler
	Vocabulary *slots.Vocabulary
	Assistant  Assistant
	Trips      Trips
	Notifier   Notifier    // optional
	Routes     RouteSearch // optional
}

type Turn struct {
	UserKey  string
	UserName string
	Text     string
}

type Reply struct {
	Messages []string `json:"replies"`
}

type Engine struct {
	states     *stateStore
	reconciler *slots.Reconciler
	vocab      *slots.Vocabulary
	assistant  Assistant
	trips      Trips
	notifier   Notifier
	routes     RouteSearch
	cfg        Config
	locks      *KeyedMutex
	log        *zap.Logger
}

func NewEngine(deps Deps, cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.5
	}
	if cfg.GreetInterval <= 0 {
		cfg.GreetInterval = 2 * time.Hour
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		states:     &stateStore{store: deps.Store, log: log},
		reconciler: deps.Reconciler,
		vocab:      deps.Vocabulary,
		assistant:  deps.Assistant,
		trips:      deps.Trips,
		notifier:   deps.Notifier,
		routes:     deps.Routes,
		cfg:        cfg,
		locks:      NewKeyedMutex(),
		log:        log,
	}
}

// turnResult is what a phase handler decided.
type turnResult struct {
	messages []string
	done     bool // conversation finished; state is deleted
	cleared  bool // the handler already deleted the state
}

// Handle processes one user message. Turns of one user never overlap; the state is
// persisted before Handle returns. Storage failures produce the service-unavailable reply
// and leave the stored state untouched.
func (e *Engine) Handle(ctx context.Context, turn Turn) (Reply, error) {
	if turn.UserKey == "" {
		return Reply{}, ErrNoUser
	}
	unlock := e.locks.Lock(turn.UserKey)
	defer unlock()

	log := e.log.With(zap.String("turn_id", uuid.NewString()), zap.String("user", turn.UserKey))
	text := strings.TrimSpace(turn.Text)
	now := e.cfg.Now()

	st, found, err := e.states.load(ctx, turn.UserKey)
	if err != nil {
		log.Error("load dialogue state", zap.Error(err))
		return unavailableReply(), nil
	}
	if found && now.Sub(st.LastSeen) > e.cfg.SessionTTL {
		log.Debug("discarding idle conversation", zap.Time("last_seen", st.LastSeen))
		found = false
	}
	greet := !found || now.Sub(st.LastSeen) > e.cfg.GreetInterval
	if !found {
		st = newState()
	}

	switch {
	case isCommand(text, "/start"):
		return e.finish(ctx, log, turn.UserKey, turnResult{messages: []string{TextGreeting}, done: true})
	case isCommand(text, "/help"):
		return Reply{Messages: []string{TextHelp}}, nil
	case isCancel(text, st.Phase):
		return e.finish(ctx, log, turn.UserKey, turnResult{messages: []string{TextCancelled}, done: true})
	}

	lctx, cancel := languageContext(ctx)
	defer cancel()

	var res turnResult
	switch st.Phase {
	case PhaseConfirming:
		res, err = e.confirm(lctx, st, text)
	case PhaseExtraQuestions:
		res, err = e.extra(lctx, st, text)
	case PhaseAwaitingDispatch:
		res, err = e.dispatch(lctx, log, st, turn, text)
	default:
		res, err = e.collect(lctx, st, turn, text)
	}
	if err != nil {
		if errors.Is(err, errStorage) {
			log.Error("turn aborted", zap.Error(err))
			return unavailableReply(), nil
		}
		return Reply{}, err
	}
	log.Debug("turn handled",
		zap.String("phase", string(st.Phase)),
		zap.Int("filled", st.Slots.Filled()),
		zap.Bool("done", res.done),
	)

	if greet && text != "" {
		res.messages = append([]string{TextGreeting}, res.messages...)
	}
	if res.cleared {
		return Reply{Messages: res.messages}, nil
	}
	if !res.done {
		st.LastSeen = now
		sctx, cancel := storageContext(ctx)
		defer cancel()
		if err := e.states.save(sctx, turn.UserKey, st); err != nil {
			log.Error("save dialogue state", zap.Error(err))
			return unavailableReply(), nil
		}
		return Reply{Messages: res.messages}, nil
	}
	return e.finish(ctx, log, turn.UserKey, res)
}

// languageContext leaves part of the turn deadline for persisting the turn.
func languageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(float64(time.Until(deadline))*languageShare))
}

// storageContext keeps ctx values but not its cancellation.
func storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), storageTimeout)
}

func (e *Engine) finish(ctx context.Context, log *zap.Logger, key string, res turnResult) (Reply, error) {
	ctx, cancel := storageContext(ctx)
	defer cancel()
	if err := e.states.delete(ctx, key); err != nil {
		log.Error("delete dialogue state", zap.Error(err))
		return unavailableReply(), nil
	}
	return Reply{Messages: res.messages}, nil
}

func unavailableReply() Reply {
	return Reply{Messages: []string{TextServiceUnavailable}}
}

func isCommand(text, cmd string) bool {
	f := strings.Fields(strings.ToLower(text))
	return len(f) > 0 && (f[0] == cmd || strings.HasPrefix(f[0], cmd+"@"))
}

var cancelWords = map[string]bool{"cancel": true, "stop": true, "отмена": true, "отменить": true, "стоп": true}

// isCancel recognises an explicit cancel. While confirming, any mention of cancelling counts.
func isCancel(text string, phase Phase) bool {
	t := strings.ToLower(strings.Trim(text, " .!"))
	if isCommand(t, "/cancel") || cancelWords[t] {
		return true
	}
	return phase == PhaseConfirming && (strings.Contains(t, "cancel") || strings.Contains(t, "отмен"))
}

// collect runs one collecting turn: history requests, reconciliation, re-asks, completion
// and the switch to confirmation.
func (e *Engine) collect(ctx context.Context, st *State, turn Turn, text string) (turnResult, error) {
	if text == "" {
		return turnResult{messages: []string{e.ask(ctx, st, firstMissing(st.Slots))}}, nil
	}
	if req := e.assistant.ParseHistoryRequest(ctx, text); req.Action != nlu.HistoryNone {
		return e.history(ctx, turn, text, req)
	}

	next, changes := e.reconciler.Reconcile(ctx, st.Slots, text, st.LastQuestion)
	if sameSlots(st.Slots, next) && next.IsEmpty() {
		return turnResult{messages: []string{e.assistant.GenerateFallback(ctx, text, TextFallback)}}, nil
	}
	// Nothing new mid-collection still runs completion and asks for the next gap.
	return e.advance(ctx, st, text, next, changes), nil
}

// advance writes reconciled slots and picks the next prompt.
func (e *Engine) advance(ctx context.Context, st *State, text string, next slots.SlotSet, changes slots.ChangeSet) turnResult {
	prior := st.LastQuestion
	st.Slots = next
	st.Phase = PhaseCollecting

	var msgs []string
	if len(changes) > 0 {
		msgs = append(msgs, changesText(changes))
	}
	if f, low := st.Slots.LowConfidence(e.cfg.ConfidenceThreshold); low {
		return turnResult{messages: append(msgs, e.reask(ctx, st, f))}
	}

	var transportQuestion string
	if missing := st.Slots.Missing(); len(missing) > 0 {
		c := e.assistant.Complete(ctx, nlu.CompleteRequest{
			Known:             st.Slots,
			Missing:           missing,
			LastQuestion:      prior.Text,
			UserInput:         text,
			TransportFallback: DefaultQuestion(slots.FieldTransport),
		})
		st.Slots = e.reconciler.ApplyCompletion(ctx, st.Slots, c.Update, text, prior)
		transportQuestion = c.TransportQuestion
		if f, low := st.Slots.LowConfidence(e.cfg.ConfidenceThreshold); low {
			return turnResult{messages: append(msgs, e.reask(ctx, st, f))}
		}
	}

	if len(st.Slots.Missing()) > 0 {
		if transportQuestion != "" && st.Slots.Transport == "" {
			st.LastQuestion = slots.Question{Field: slots.FieldTransport, Text: transportQuestion}
			return turnResult{messages: append(msgs, transportQuestion)}
		}
		return turnResult{messages: append(msgs, e.ask(ctx, st, firstMissing(st.Slots)))}
	}

	st.Phase = PhaseConfirming
	confirmation := e.assistant.GenerateConfirmation(ctx, st.Slots, confirmationTemplate(st.Slots))
	st.LastQuestion = slots.Question{Text: confirmation}
	return turnResult{messages: append(msgs, confirmation)}
}

func (e *Engine) ask(ctx context.Context, st *State, f slots.Field) string {
	q := e.assistant.GenerateQuestion(ctx, f, DefaultQuestion(f))
	st.LastQuestion = slots.Question{Field: f, Text: q}
	return q
}

// reask clears a low-confidence field and asks for it again.
func (e *Engine) reask(ctx context.Context, st *State, f slots.Field) string {
	value := st.Slots.Get(f)
	st.Slots.Set(f, "", 0)
	return unsureText(f, value) + " " + e.ask(ctx, st, f)
}

func firstMissing(s slots.SlotSet) slots.Field {
	if m := s.Missing(); len(m) > 0 {
		return m[0]
	}
	return slots.FieldOrigin
}

func sameSlots(a, b slots.SlotSet) bool {
	for _, f := range slots.Fields {
		if a.Get(f) != b.Get(f) || a.Conf(f) != b.Conf(f) {
			return false
		}
	}
	return true
}

func (e *Engine) history(ctx context.Context, turn Turn, text string, req nlu.HistoryRequest) (turnResult, error) {
	sctx, cancel := storageContext(ctx)
	defer cancel()
	switch req.Action {
	case nlu.HistoryShow:
		trips, err := e.trips.History(sctx, turn.UserKey, req.Limit)
		if err != nil {
			return turnResult{}, errors.Join(errStorage, err)
		}
		if len(trips) == 0 {
			return turnResult{messages: []string{TextNoTrips}}, nil
		}
		return turnResult{messages: []string{historyText(trips)}}, nil
	case nlu.HistoryCancel:
		dest := req.Destination
		if c, ok := e.vocab.Lookup(dest); ok {
			dest = c
		}
		if dest == "" {
			if c, ok := e.vocab.Find(text); ok {
				dest = c
			}
		}
		if dest == "" {
			return turnResult{messages: []string{TextAskCancelCity}}, nil
		}
		t, err := e.trips.CancelByDestination(sctx, turn.UserKey, dest)
		switch {
		case errors.Is(err, trip.ErrNotFound), errors.Is(err, trip.ErrInvalidState):
			return turnResult{messages: []string{TextTripNotFound}}, nil
		case err != nil:
			return turnResult{}, errors.Join(errStorage, err)
		}
		return turnResult{messages: []string{tripCancelledText(t)}}, nil
	}
	return turnResult{}, nil
}

// confirm handles the answer to the confirmation sentence.
func (e *Engine) confirm(ctx context.Context, st *State, text string) (turnResult, error) {
	switch e.assistant.ClassifyYesNo(ctx, text) {
	case nlu.AnswerYes:
		st.Phase = PhaseExtraQuestions
		st.PendingExtra = append([]Extra(nil), ExtraQuestions...)
		st.Extras = map[Extra]string{}
		return turnResult{messages: []string{e.askExtra(st)}}, nil
	case nlu.AnswerNo:
		// "No, from Kazan" carries the correction in the same message.
		if next, changes := e.reconciler.Reconcile(ctx, st.Slots, text, slots.Question{}); !sameSlots(st.Slots, next) {
			return e.advance(ctx, st, text, next, changes), nil
		}
		st.Phase = PhaseCollecting
		st.LastQuestion = slots.Question{Text: TextWhatToChange}
		return turnResult{messages: []string{TextWhatToChange}}, nil
	}
	if next, changes := e.reconciler.Reconcile(ctx, st.Slots, text, slots.Question{}); !sameSlots(st.Slots, next) {
		return e.advance(ctx, st, text, next, changes), nil
	}
	return turnResult{messages: []string{TextYesNo, st.LastQuestion.Text}}, nil
}

func (e *Engine) askExtra(st *State) string {
	q := extraQuestions[st.PendingExtra[0]]
	st.LastQuestion = slots.Question{Text: q}
	return q
}

// extra records the answer to the current enrichment question and asks the next one.
func (e *Engine) extra(ctx context.Context, st *State, text string) (turnResult, error) {
	if len(st.PendingExtra) == 0 {
		st.Phase = PhaseAwaitingDispatch
		st.LastQuestion = slots.Question{Text: TextAskSearch}
		return turnResult{messages: []string{TextAskSearch}}, nil
	}
	cur := st.PendingExtra[0]
	value := text
	if cur == ExtraTime {
		if v, ok := e.assistant.NormalizeTime(ctx, text); ok {
			value = v
		}
	}
	if st.Extras == nil {
		st.Extras = map[Extra]string{}
	}
	st.Extras[cur] = value
	st.PendingExtra = st.PendingExtra[1:]

	if len(st.PendingExtra) > 0 {
		return turnResult{messages: []string{e.askExtra(st)}}, nil
	}
	st.Phase = PhaseAwaitingDispatch
	st.LastQuestion = slots.Question{Text: TextAskSearch}
	return turnResult{messages: []string{TextAskSearch}}, nil
}

// dispatch saves the trip and notifies the operator whatever the answer; only the route
// lookup depends on it. The state is deleted before the trip is saved, so a retried turn
// can never save or notify twice.
func (e *Engine) dispatch(ctx context.Context, log *zap.Logger, st *State, turn Turn, text string) (turnResult, error) {
	var msgs []string
	if e.assistant.ClassifyYesNo(ctx, text) == nlu.AnswerYes && e.routes != nil {
		opts := e.routes.Search(ctx, routes.Query{
			Origin:      st.Slots.Origin,
			Destination: st.Slots.Destination,
			Date:        st.Slots.Date,
			Transport:   string(st.Slots.Transport),
		})
		if len(opts) > 0 {
			msgs = append(msgs, routesText(opts))
		} else {
			msgs = append(msgs, TextRoutesNotFound)
		}
	}

	sctx, cancel := storageContext(ctx)
	defer cancel()
	if err := e.states.delete(sctx, turn.UserKey); err != nil {
		return turnResult{}, err
	}
	t, err := e.trips.Save(sctx, trip.SaveCommand{
		UserKey:     turn.UserKey,
		UserName:    turn.UserName,
		Origin:      st.Slots.Origin,
		Destination: st.Slots.Destination,
		Date:        st.Slots.Date,
		Transport:   string(st.Slots.Transport),
		Time:        st.Extras[ExtraTime],
		Baggage:     st.Extras[ExtraBaggage],
		Passengers:  st.Extras[ExtraPassengers],
	})
	if err != nil {
		// Put the conversation back so the user can retry.
		if rerr := e.states.save(sctx, turn.UserKey, st); rerr != nil {
			log.Error("restore dialogue state", zap.Error(rerr))
		}
		return turnResult{}, errors.Join(errStorage, err)
	}
	log.Info("trip dispatched", zap.Int64("trip_id", t.ID))

	if e.notifier != nil {
		if err := e.notifier.NotifyOperator(sctx, t); err != nil {
			log.Warn("notify operator", zap.Int64("trip_id", t.ID), zap.Error(err))
		}
	}
	return turnResult{messages: append(msgs, TextRequestSent), done: true, cleared: true}, nil
}
