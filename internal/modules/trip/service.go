// README: Trip service; saving confirmed requests, traveller history and the operator workflow.
package trip

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("trip not found")
	ErrInvalidState = errors.New("invalid trip status transition")
	ErrConflict     = errors.New("trip status changed concurrently")
	ErrBadRequest   = errors.New("bad request")
)

const (
	DefaultListLimit = 20
	cancelScanLimit  = 20
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

type SaveCommand struct {
	UserKey     string
	UserName    string
	Origin      string
	Destination string
	Date        string
	Transport   string
	Time        string
	Baggage     string
	Passengers  string
}

// Save records a confirmed request as pending.
func (s *Service) Save(ctx context.Context, cmd SaveCommand) (*Trip, error) {
	if cmd.UserKey == "" || cmd.Origin == "" || cmd.Destination == "" || cmd.Date == "" || cmd.Transport == "" {
		return nil, ErrBadRequest
	}
	now := s.now()
	t := &Trip{
		UserKey:     cmd.UserKey,
		UserName:    cmd.UserName,
		Origin:      cmd.Origin,
		Destination: cmd.Destination,
		Date:        cmd.Date,
		Transport:   cmd.Transport,
		Time:        cmd.Time,
		Baggage:     cmd.Baggage,
		Passengers:  cmd.Passengers,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	id, err := s.repo.Create(ctx, t)
	if err != nil {
		return nil, err
	}
	t.ID = id
	return t, nil
}

// History returns the traveller's latest trips, newest first.
func (s *Service) History(ctx context.Context, userKey string, limit int) ([]Trip, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.repo.ListByUser(ctx, userKey, limit)
}

// CancelByDestination rejects the traveller's newest active trip to destination.
func (s *Service) CancelByDestination(ctx context.Context, userKey, destination string) (*Trip, error) {
	if strings.TrimSpace(destination) == "" {
		return nil, ErrNotFound
	}
	trips, err := s.repo.ListByUser(ctx, userKey, cancelScanLimit)
	if err != nil {
		return nil, err
	}
	for _, t := range trips {
		if t.Active() && strings.EqualFold(t.Destination, destination) {
			return s.transition(ctx, t.ID, StatusRejected, nil)
		}
	}
	return nil, ErrNotFound
}

func (s *Service) Get(ctx context.Context, id int64) (*Trip, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, status Status, limit int) ([]Trip, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.repo.ListByStatus(ctx, status, limit)
}

func (s *Service) Accept(ctx context.Context, id int64) (*Trip, error) {
	return s.transition(ctx, id, StatusAccepted, nil)
}

// SetPrice records the quoted price and moves the trip to awaiting_payment.
func (s *Service) SetPrice(ctx context.Context, id int64, price string) (*Trip, error) {
	price = strings.TrimSpace(price)
	if price == "" {
		return nil, ErrBadRequest
	}
	return s.transition(ctx, id, StatusAwaitingPayment, &price)
}

func (s *Service) Confirm(ctx context.Context, id int64) (*Trip, error) {
	return s.transition(ctx, id, StatusConfirmed, nil)
}

func (s *Service) Reject(ctx context.Context, id int64) (*Trip, error) {
	return s.transition(ctx, id, StatusRejected, nil)
}

func (s *Service) transition(ctx context.Context, id int64, to Status, price *string) (*Trip, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(t.Status, to) {
		return nil, ErrInvalidState
	}
	ok, err := s.repo.UpdateStatus(ctx, id, t.Status, to, price)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	return s.repo.Get(ctx, id)
}
