// README: Trip service tests against the SQLite and Postgres repositories.
package trip

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripdesk/internal/infra"
	"tripdesk/internal/testutil"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusAccepted, true},
		{StatusAccepted, StatusAwaitingPayment, true},
		{StatusAwaitingPayment, StatusConfirmed, true},
		// rejection from every open state
		{StatusPending, StatusRejected, true},
		{StatusAccepted, StatusRejected, true},
		{StatusAwaitingPayment, StatusRejected, true},
		// terminal states
		{StatusConfirmed, StatusRejected, false},
		{StatusRejected, StatusPending, false},
		// skipping states
		{StatusPending, StatusConfirmed, false},
		{StatusPending, StatusAwaitingPayment, false},
		{StatusAccepted, StatusConfirmed, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus("awaiting_payment")
	assert.True(t, ok)
	assert.Equal(t, StatusAwaitingPayment, s)

	_, ok = ParseStatus("lost")
	assert.False(t, ok)
}

func newSQLiteService(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()
	db, err := infra.NewSQLite(ctx, filepath.Join(t.TempDir(), "trips.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewSQLiteStore(db)
	require.NoError(t, store.Migrate(ctx))
	return NewService(store)
}

func newPGService(t *testing.T) *Service {
	return NewService(NewPGStore(testutil.OpenPostgres(t, "trips")))
}

func repositories(t *testing.T) map[string]func(*testing.T) *Service {
	return map[string]func(*testing.T) *Service{
		"sqlite":   newSQLiteService,
		"postgres": newPGService,
	}
}

func saveTrip(t *testing.T, svc *Service, user, destination string) *Trip {
	t.Helper()
	tr, err := svc.Save(context.Background(), SaveCommand{
		UserKey: user, UserName: "Anna", Origin: "Grodno", Destination: destination,
		Date: "2025-08-01", Transport: "bus", Time: "09:00", Passengers: "2",
	})
	require.NoError(t, err)
	return tr
}

func TestService_OperatorWorkflow(t *testing.T) {
	for name, open := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			svc := open(t)
			ctx := context.Background()
			saved := saveTrip(t, svc, "tg:1", "Minsk")
			assert.Positive(t, saved.ID)
			assert.Equal(t, StatusPending, saved.Status)

			got, err := svc.Accept(ctx, saved.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusAccepted, got.Status)

			got, err = svc.SetPrice(ctx, saved.ID, " 45 BYN ")
			require.NoError(t, err)
			assert.Equal(t, StatusAwaitingPayment, got.Status)
			require.NotNil(t, got.Price)
			assert.Equal(t, "45 BYN", *got.Price)

			got, err = svc.Confirm(ctx, saved.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusConfirmed, got.Status)
			require.NotNil(t, got.Price, "price survives later transitions")
			assert.Equal(t, "09:00", got.Time)
			assert.Equal(t, "2", got.Passengers)

			_, err = svc.Reject(ctx, saved.ID)
			assert.ErrorIs(t, err, ErrInvalidState)
		})
	}
}

func TestService_Errors(t *testing.T) {
	svc := newSQLiteService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, SaveCommand{UserKey: "tg:1", Origin: "Grodno"})
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.Accept(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	tr := saveTrip(t, svc, "tg:1", "Minsk")
	_, err = svc.SetPrice(ctx, tr.ID, "  ")
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = svc.SetPrice(ctx, tr.ID, "10")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestService_HistoryAndList(t *testing.T) {
	svc := newSQLiteService(t)
	ctx := context.Background()

	first := saveTrip(t, svc, "tg:1", "Minsk")
	second := saveTrip(t, svc, "tg:1", "Vilnius")
	saveTrip(t, svc, "tg:2", "Brest")

	hist, err := svc.History(ctx, "tg:1", 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, second.ID, hist[0].ID, "newest first")
	assert.Equal(t, first.ID, hist[1].ID)

	hist, err = svc.History(ctx, "tg:1", 1)
	require.NoError(t, err)
	assert.Len(t, hist, 1)

	_, err = svc.Accept(ctx, first.ID)
	require.NoError(t, err)
	pending, err := svc.List(ctx, StatusPending, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
	accepted, err := svc.List(ctx, StatusAccepted, 0)
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, first.ID, accepted[0].ID)
}

func TestService_CancelByDestination(t *testing.T) {
	svc := newSQLiteService(t)
	ctx := context.Background()

	older := saveTrip(t, svc, "tg:1", "Minsk")
	newer := saveTrip(t, svc, "tg:1", "Minsk")
	other := saveTrip(t, svc, "tg:2", "Minsk")

	got, err := svc.CancelByDestination(ctx, "tg:1", "minsk")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)
	assert.Equal(t, StatusRejected, got.Status)

	got, err = svc.CancelByDestination(ctx, "tg:1", "Minsk")
	require.NoError(t, err)
	assert.Equal(t, older.ID, got.ID)

	_, err = svc.CancelByDestination(ctx, "tg:1", "Minsk")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.CancelByDestination(ctx, "tg:1", " ")
	assert.ErrorIs(t, err, ErrNotFound)

	untouched, err := svc.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, untouched.Status)
}

func TestService_ConcurrentAcceptReject(t *testing.T) {
	svc := newPGService(t)
	ctx := context.Background()
	tr := saveTrip(t, svc, "tg:1", "Minsk")

	start := make(chan struct{})
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, op := range []func(context.Context, int64) (*Trip, error){svc.Accept, svc.Reject} {
		wg.Add(1)
		go func(op func(context.Context, int64) (*Trip, error)) {
			defer wg.Done()
			<-start
			_, err := op(ctx, tr.ID)
			errs <- err
		}(op)
	}
	close(start)
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		}
	}
	assert.GreaterOrEqual(t, ok, 1)

	final, err := svc.Get(ctx, tr.ID)
	require.NoError(t, err)
	assert.Contains(t, []Status{StatusAccepted, StatusRejected}, final.Status)
}
