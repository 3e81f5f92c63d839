// README: Trip store backed by PostgreSQL.
package trip

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists trips. UpdateStatus is a compare-and-set on the current status.
type Repository interface {
	Create(ctx context.Context, t *Trip) (int64, error)
	Get(ctx context.Context, id int64) (*Trip, error)
	ListByUser(ctx context.Context, userKey string, limit int) ([]Trip, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]Trip, error)
	UpdateStatus(ctx context.Context, id int64, from, to Status, price *string) (bool, error)
}

const tripColumns = `id, user_key, user_name, origin, destination, date, transport,
	time, baggage, passengers, status, price, created_at, updated_at`

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, t *Trip) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO trips (
			user_key, user_name, origin, destination, date, transport,
			time, baggage, passengers, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING id`,
		t.UserKey, t.UserName, t.Origin, t.Destination, t.Date, t.Transport,
		t.Time, t.Baggage, t.Passengers, string(t.Status), t.CreatedAt,
	).Scan(&id)
	return id, err
}

func (s *PGStore) Get(ctx context.Context, id int64) (*Trip, error) {
	row := s.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, id)
	t, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *PGStore) ListByUser(ctx context.Context, userKey string, limit int) ([]Trip, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+tripColumns+` FROM trips
		WHERE user_key = $1
		ORDER BY id DESC
		LIMIT $2`, userKey, limit)
	if err != nil {
		return nil, err
	}
	return collectTrips(rows)
}

func (s *PGStore) ListByStatus(ctx context.Context, status Status, limit int) ([]Trip, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+tripColumns+` FROM trips
		WHERE status = $1
		ORDER BY id DESC
		LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, err
	}
	return collectTrips(rows)
}

func (s *PGStore) UpdateStatus(ctx context.Context, id int64, from, to Status, price *string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET status = $1,
		    price = COALESCE($2, price),
		    updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		string(to), price, id, string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// rowScanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*Trip, error) {
	var t Trip
	var status string
	err := row.Scan(
		&t.ID, &t.UserKey, &t.UserName, &t.Origin, &t.Destination, &t.Date, &t.Transport,
		&t.Time, &t.Baggage, &t.Passengers, &status, &t.Price, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	return &t, nil
}

func collectTrips(rows pgx.Rows) ([]Trip, error) {
	defer rows.Close()
	var out []Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
