package subscription

import (
	"context"
	"fmt"
	"time"
)

// Store is the persistence boundary for subscriber records. Implementations
// must make Upsert atomic per user_id so concurrent settlements for the same
// user cannot lose updates.
type Store interface {
	// Get returns the subscriber record, or (nil, nil) when none exists.
	Get(ctx context.Context, userID int64) (*Subscriber, error)

	// Upsert inserts the record or overwrites its expiry date.
	Upsert(ctx context.Context, userID int64, expiresAt time.Time) error

	// ListExpiringOn returns all subscribers whose expiry date equals day.
	ListExpiringOn(ctx context.Context, day time.Time) ([]Subscriber, error)

	// Close releases the underlying connection pool.
	Close() error
}

// ErrorKind classifies store failures for the settlement coordinator.
type ErrorKind int

const (
	// ErrConnectivity covers unreachable database, timeouts and bad
	// connections. Retryable.
	ErrConnectivity ErrorKind = iota
	// ErrConstraint covers integrity violations. A primary-key collision
	// here indicates a logic error, not a transient condition.
	ErrConstraint
	// ErrConflict covers serialization failures and deadlocks. Retryable.
	ErrConflict
)

func (k ErrorKind) String() string {
	switch k {
	case ErrConstraint:
		return "constraint"
	case ErrConflict:
		return "conflict"
	default:
		return "connectivity"
	}
}

// StoreError wraps a storage failure with the operation that produced it.
type StoreError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Retryable reports whether repeating the operation can possibly succeed.
func (e *StoreError) Retryable() bool { return e.Kind != ErrConstraint }
