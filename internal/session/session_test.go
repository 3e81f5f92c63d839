// README: Store contract tests for the memory, Redis and Postgres backends.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"tripdesk/internal/testutil"
)

func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()
	key := "tg:" + uuid.NewString()

	_, err := s.Get(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, key, []byte(`{"phase":"collecting"}`)))
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"phase":"collecting"}`, string(got))

	require.NoError(t, s.Set(ctx, key, []byte(`{"phase":"confirming"}`)))
	got, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"phase":"confirming"}`, string(got))

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, key), "deleting a missing key is not an error")
}

type userDoc struct {
	User  int `json:"user"`
	Round int `json:"round"`
}

// runConcurrentUpserts has many users write, read and delete their own keys at once.
// Every user must only ever see its own latest document.
func runConcurrentUpserts(t *testing.T, s Store) {
	ctx := context.Background()
	prefix := "tg:" + uuid.NewString() + ":"
	const users, rounds = 32, 5
	key := func(i int) string { return fmt.Sprintf("%s%d", prefix, i) }

	var g errgroup.Group
	for i := 0; i < users; i++ {
		g.Go(func() error {
			for round := 0; round < rounds; round++ {
				doc, _ := json.Marshal(userDoc{User: i, Round: round})
				if err := s.Set(ctx, key(i), doc); err != nil {
					return err
				}
				raw, err := s.Get(ctx, key(i))
				if err != nil {
					return err
				}
				var got userDoc
				if err := json.Unmarshal(raw, &got); err != nil {
					return err
				}
				if got.User != i || got.Round != round {
					return fmt.Errorf("user %d round %d read %+v", i, round, got)
				}
			}
			if i%2 == 0 {
				return s.Delete(ctx, key(i))
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for i := 0; i < users; i++ {
		raw, err := s.Get(ctx, key(i))
		if i%2 == 0 {
			assert.ErrorIs(t, err, ErrNotFound, key(i))
			continue
		}
		require.NoError(t, err)
		var got userDoc
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, userDoc{User: i, Round: rounds - 1}, got)
		require.NoError(t, s.Delete(ctx, key(i)))
	}
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_ConcurrentUsers(t *testing.T) {
	runConcurrentUpserts(t, NewMemoryStore())
}

func TestMemoryStore_CopiesDocuments(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	doc := []byte(`{"a":1}`)
	require.NoError(t, s.Set(ctx, "k", doc))
	doc[2] = 'b'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))
}

func TestMemoryStore_SweepIdle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 7, 28, 10, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return base }
	require.NoError(t, s.Set(ctx, "old", []byte(`{}`)))
	s.now = func() time.Time { return base.Add(3 * time.Hour) }
	require.NoError(t, s.Set(ctx, "fresh", []byte(`{}`)))

	n, err := s.SweepIdle(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, "fresh")
	assert.NoError(t, err)
}

func TestRunSweeper_StopsWithContext(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Set(context.Background(), "k", []byte(`{}`)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunSweeper(ctx, s, 5*time.Millisecond, -time.Hour, nil)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := s.Get(context.Background(), "k")
		return err == ErrNotFound
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TRIPDESK_TEST_REDIS")
	if addr == "" {
		t.Skip("TRIPDESK_TEST_REDIS not set; skipping Redis-backed tests")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewRedisStore(rdb, time.Minute)
	runStoreContract(t, s)
	runConcurrentUpserts(t, s)

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "ttl-check", []byte(`{}`)))
	ttl, err := rdb.TTL(ctx, stateKey("ttl-check")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
	require.NoError(t, s.Delete(ctx, "ttl-check"))
}

func TestRedisStore_Unavailable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	_, err := NewRedisStore(rdb, time.Minute).Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPostgresStore(t *testing.T) {
	db := testutil.OpenPostgres(t, "dialogue_state")
	s := NewPostgresStore(db)
	runStoreContract(t, s)
	runConcurrentUpserts(t, s)

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "idle", []byte(`{}`)))
	n, err := s.SweepIdle(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
