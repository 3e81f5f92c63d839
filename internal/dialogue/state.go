// README: Conversation state per user and its persistence through the session store.
package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tripdesk/internal/session"
	"tripdesk/internal/slots"
)

type Phase string

const (
	PhaseCollecting       Phase = "collecting"
	PhaseConfirming       Phase = "confirming"
	PhaseExtraQuestions   Phase = "extra_questions"
	PhaseAwaitingDispatch Phase = "awaiting_dispatch_consent"
)

// Extra is an optional enrichment field asked after confirmation.
type Extra string

const (
	ExtraTime       Extra = "time"
	ExtraBaggage    Extra = "baggage"
	ExtraPassengers Extra = "passengers"
)

// ExtraQuestions is the fixed order of enrichment questions.
var ExtraQuestions = []Extra{ExtraTime, ExtraBaggage, ExtraPassengers}

type State struct {
	Slots        slots.SlotSet    `json:"slots"`
	Phase        Phase            `json:"phase"`
	LastQuestion slots.Question   `json:"last_question"`
	PendingExtra []Extra          `json:"pending_extra_questions,omitempty"`
	Extras       map[Extra]string `json:"extras,omitempty"`
	LastSeen     time.Time        `json:"last_seen"`
}

func newState() *State {
	return &State{Phase: PhaseCollecting}
}

// errStorage marks failures that abort a turn with the service-unavailable reply.
var errStorage = errors.New("dialogue: storage failure")

type stateStore struct {
	store session.Store
	log   *zap.Logger
}

// load returns the stored state, or found=false when there is none. A document that no
// longer decodes is discarded and treated as absent.
func (s *stateStore) load(ctx context.Context, key string) (*State, bool, error) {
	doc, err := s.store.Get(ctx, key)
	if errors.Is(err, session.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: load: %v", errStorage, err)
	}
	var st State
	if err := json.Unmarshal(doc, &st); err != nil {
		s.log.Warn("discarding undecodable dialogue state", zap.String("user", key), zap.Error(err))
		return nil, false, nil
	}
	if st.Phase == "" {
		st.Phase = PhaseCollecting
	}
	return &st, true, nil
}

func (s *stateStore) save(ctx context.Context, key string, st *State) error {
	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal dialogue state: %w", err)
	}
	if err := s.store.Set(ctx, key, doc); err != nil {
		return fmt.Errorf("%w: save: %v", errStorage, err)
	}
	return nil
}

func (s *stateStore) delete(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, session.ErrNotFound) {
		return fmt.Errorf("%w: delete: %v", errStorage, err)
	}
	return nil
}
