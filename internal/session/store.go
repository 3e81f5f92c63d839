// README: Keyed document store for in-progress dialogue state.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotFound    = errors.New("session: not found")
	ErrUnavailable = errors.New("session: storage unavailable")
)

// Store keeps one JSON document per key. Set is an upsert and is safe for concurrent use
// across keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, doc []byte) error
	Delete(ctx context.Context, key string) error
}

// Sweeper is implemented by stores without native expiry.
type Sweeper interface {
	SweepIdle(ctx context.Context, before time.Time) (int64, error)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

// RunSweeper deletes documents idle for longer than ttl on every tick until ctx ends.
func RunSweeper(ctx context.Context, s Sweeper, interval, ttl time.Duration, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepIdle(ctx, time.Now().Add(-ttl))
			if err != nil {
				log.Error("sweep idle dialogue state", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("swept idle dialogue state", zap.Int64("deleted", n))
			}
		}
	}
}
