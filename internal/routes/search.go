// README: Route and flight search boundary; best-effort lookups that never block a booking.
package routes

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

var ErrUnsupportedTransport = errors.New("routes: unsupported transport")

type Query struct {
	Origin      string
	Destination string
	Date        string // YYYY-MM-DD
	Transport   string
}

type Option struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Provider string `json:"provider"`
}

// Searcher returns options for a query, or an empty list when there are none.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Option, error)
}

// Dispatcher routes a query to the searchers registered for its transport.
type Dispatcher struct {
	byTransport map[string][]Searcher
	timeout     time.Duration
	log         *zap.Logger
}

func NewDispatcher(timeout time.Duration, log *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{byTransport: map[string][]Searcher{}, timeout: timeout, log: log}
}

// Register adds s for transport. Searchers are consulted in registration order.
func (d *Dispatcher) Register(transport string, s Searcher) {
	d.byTransport[transport] = append(d.byTransport[transport], s)
}

// Search returns the first non-empty option list. Errors and timeouts are logged and
// treated as "no options".
func (d *Dispatcher) Search(ctx context.Context, q Query) []Option {
	searchers, ok := d.byTransport[q.Transport]
	if !ok {
		d.log.Debug("no route search for transport", zap.String("transport", q.Transport), zap.Error(ErrUnsupportedTransport))
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	for _, s := range searchers {
		opts, err := s.Search(ctx, q)
		if err != nil {
			d.log.Warn("route search failed",
				zap.String("transport", q.Transport),
				zap.String("origin", q.Origin),
				zap.String("destination", q.Destination),
				zap.Error(err),
			)
			continue
		}
		if len(opts) > 0 {
			return opts
		}
	}
	return nil
}
