// Package postgres implements subscription.Store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/phanta1313/tgbot-sales/internal/subscription"
)

var _ subscription.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS subscribers (
	user_id         BIGINT PRIMARY KEY,
	sub_expire_date DATE NOT NULL
)`

// Store holds the connection pool. Open it once at process start and Close
// it at shutdown; individual settlements borrow connections per query.
type Store struct {
	db *sql.DB
}

// Open connects, pings and creates the schema if it does not exist yet.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Get returns (nil, nil) when the user has no record. "Never subscribed" is
// an absent value, not an error.
func (s *Store) Get(ctx context.Context, userID int64) (*subscription.Subscriber, error) {
	rec := subscription.Subscriber{UserID: userID}
	err := s.db.QueryRowContext(ctx,
		`SELECT sub_expire_date FROM subscribers WHERE user_id = $1`,
		userID,
	).Scan(&rec.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get", err)
	}
	rec.ExpiresAt = subscription.Day(rec.ExpiresAt)
	return &rec, nil
}

// Upsert is a single conditional write keyed by user_id, so two settlements
// for the same user cannot race the row itself. Every branch of the caller's
// policy goes through this same per-user statement.
func (s *Store) Upsert(ctx context.Context, userID int64, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers (user_id, sub_expire_date)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET sub_expire_date = EXCLUDED.sub_expire_date`,
		userID, subscription.Day(expiresAt),
	)
	if err != nil {
		return wrap("upsert", err)
	}
	return nil
}

func (s *Store) ListExpiringOn(ctx context.Context, day time.Time) ([]subscription.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, sub_expire_date FROM subscribers WHERE sub_expire_date = $1`,
		subscription.Day(day),
	)
	if err != nil {
		return nil, wrap("list_expiring", err)
	}
	defer rows.Close()

	var subs []subscription.Subscriber
	for rows.Next() {
		var rec subscription.Subscriber
		if err := rows.Scan(&rec.UserID, &rec.ExpiresAt); err != nil {
			return nil, wrap("list_expiring", err)
		}
		rec.ExpiresAt = subscription.Day(rec.ExpiresAt)
		subs = append(subs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list_expiring", err)
	}
	return subs, nil
}

func wrap(op string, err error) *subscription.StoreError {
	return &subscription.StoreError{Op: op, Kind: kindOf(err), Err: err}
}

// kindOf maps driver errors onto the store error taxonomy. PostgreSQL error
// classes: 23 integrity violation, 40 transaction rollback, 08 connection.
func kindOf(err error) subscription.ErrorKind {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "23":
			return subscription.ErrConstraint
		case "40":
			return subscription.ErrConflict
		}
		return subscription.ErrConnectivity
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return subscription.ErrConnectivity
	}
	return subscription.ErrConnectivity
}
