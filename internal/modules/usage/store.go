package usage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store handles nlu_usage persistence.
type Store struct {
	db    *pgxpool.Pool
	quota int
	now   func() time.Time
}

// NewStore returns a Store granting quota turns per month. Non-positive quota uses the default.
func NewStore(db *pgxpool.Pool, quota int) *Store {
	if quota <= 0 {
		quota = DefaultMonthlyQuota
	}
	return &Store{db: db, quota: quota, now: time.Now}
}

func (s *Store) month() string { return s.now().Format("2006-01") }

// Consume atomically checks the monthly quota and deducts one turn.
// It resets the counter when last_reset_month is behind the current month.
// Returns ErrQuotaExceeded when 0 rows are updated (quota exhausted or user absent).
func (s *Store) Consume(ctx context.Context, userKey string) error {
	now := s.month()

	tag, err := s.db.Exec(ctx, `
		UPDATE nlu_usage SET
			turns_remaining = CASE WHEN last_reset_month != $1 THEN $2 - 1 ELSE turns_remaining - 1 END,
			last_reset_month = $1
		WHERE user_key = $3 AND (last_reset_month < $1 OR turns_remaining > 0)
	`, now, s.quota, userKey)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrQuotaExceeded
	}
	return nil
}

// EnsureUser inserts a row for userKey with the full allowance; existing rows are left alone.
func (s *Store) EnsureUser(ctx context.Context, userKey string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO nlu_usage (user_key, turns_remaining, last_reset_month)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_key) DO NOTHING
	`, userKey, s.quota, s.month())
	return err
}

// Remaining reports the turns left this month; unknown users have the full allowance.
func (s *Store) Remaining(ctx context.Context, userKey string) (int, error) {
	var remaining int
	var month string
	err := s.db.QueryRow(ctx, `SELECT turns_remaining, last_reset_month FROM nlu_usage WHERE user_key = $1`, userKey).
		Scan(&remaining, &month)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.quota, nil
	}
	if err != nil {
		return 0, err
	}
	if month != s.month() {
		return s.quota, nil
	}
	return remaining, nil
}
