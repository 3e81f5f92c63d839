// README: Dialogue state in Postgres as one JSONB row per user key.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var doc []byte
	err := s.db.QueryRow(ctx, `SELECT state FROM dialogue_state WHERE user_key = $1`, key).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	return doc, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, doc []byte) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO dialogue_state (user_key, state, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (user_key) DO UPDATE
		SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		key, string(doc),
	)
	if err != nil {
		return unavailable("set", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM dialogue_state WHERE user_key = $1`, key); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

func (s *PostgresStore) SweepIdle(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM dialogue_state WHERE updated_at < $1`, before)
	if err != nil {
		return 0, unavailable("sweep", err)
	}
	return tag.RowsAffected(), nil
}
