package usage

import (
	"context"
	"errors"
)

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Consume deducts one chat turn from the user's monthly allowance.
// A missing row is initialised and the deduction retried once.
func (s *Service) Consume(ctx context.Context, userKey string) error {
	err := s.store.Consume(ctx, userKey)
	if !errors.Is(err, ErrQuotaExceeded) {
		return err
	}
	if initErr := s.store.EnsureUser(ctx, userKey); initErr != nil {
		return initErr
	}
	return s.store.Consume(ctx, userKey)
}

func (s *Service) Remaining(ctx context.Context, userKey string) (int, error) {
	return s.store.Remaining(ctx, userKey)
}
