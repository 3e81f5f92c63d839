// README: Trip store on an embedded SQLite file for single-node deployments.
package trip

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS trips (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_key    TEXT NOT NULL,
	user_name   TEXT NOT NULL DEFAULT '',
	origin      TEXT NOT NULL,
	destination TEXT NOT NULL,
	date        TEXT NOT NULL,
	transport   TEXT NOT NULL,
	time        TEXT NOT NULL DEFAULT '',
	baggage     TEXT NOT NULL DEFAULT '',
	passengers  TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'pending',
	price       TEXT,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS trips_user_key_idx ON trips (user_key, id);
CREATE INDEX IF NOT EXISTS trips_status_idx ON trips (status, id);
`

// SQLiteStore keeps timestamps as unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Migrate creates the schema when it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return err
}

func (s *SQLiteStore) Create(ctx context.Context, t *Trip) (int64, error) {
	now := t.CreatedAt.UnixMilli()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trips (
			user_key, user_name, origin, destination, date, transport,
			time, baggage, passengers, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserKey, t.UserName, t.Origin, t.Destination, t.Date, t.Transport,
		t.Time, t.Baggage, t.Passengers, string(t.Status), now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*Trip, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = ?`, id)
	t, err := scanSQLiteTrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLiteStore) ListByUser(ctx context.Context, userKey string, limit int) ([]Trip, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+tripColumns+` FROM trips
		WHERE user_key = ?
		ORDER BY id DESC
		LIMIT ?`, userKey, limit)
	if err != nil {
		return nil, err
	}
	return collectSQLiteTrips(rows)
}

func (s *SQLiteStore) ListByStatus(ctx context.Context, status Status, limit int) ([]Trip, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+tripColumns+` FROM trips
		WHERE status = ?
		ORDER BY id DESC
		LIMIT ?`, string(status), limit)
	if err != nil {
		return nil, err
	}
	return collectSQLiteTrips(rows)
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id int64, from, to Status, price *string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trips
		SET status = ?,
		    price = COALESCE(?, price),
		    updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), price, time.Now().UnixMilli(), id, string(from),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func scanSQLiteTrip(row rowScanner) (*Trip, error) {
	var t Trip
	var status string
	var created, updated int64
	err := row.Scan(
		&t.ID, &t.UserKey, &t.UserName, &t.Origin, &t.Destination, &t.Date, &t.Transport,
		&t.Time, &t.Baggage, &t.Passengers, &status, &t.Price, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	t.CreatedAt = time.UnixMilli(created)
	t.UpdatedAt = time.UnixMilli(updated)
	return &t, nil
}

func collectSQLiteTrips(rows *sql.Rows) ([]Trip, error) {
	defer rows.Close()
	var out []Trip
	for rows.Next() {
		t, err := scanSQLiteTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
