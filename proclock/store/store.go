package store

import (
	"context"
	"time"
)

// Record is the persisted state of the exclusive process lock. At most one
// valid record exists at any time; the token proves a specific acquisition
// instance and is the sole authority for a non-forced release.
type Record struct {
	Owner      string        `json:"owner"`
	Token      string        `json:"token"`
	AcquiredAt time.Time     `json:"acquired_at"`
	Duration   time.Duration `json:"duration"`
}

// ExpiresAt returns the instant the record becomes stale.
func (r Record) ExpiresAt() time.Time {
	return r.AcquiredAt.Add(r.Duration)
}

// IsExpired reports whether the record is stale at the given instant.
// A stale record must be treated as absent by all readers.
func (r Record) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt())
}

// Store is the persistence substrate of the lock record. Implementations must
// make TryAcquire an atomic create-if-absent: under concurrent acquisition
// attempts exactly one caller succeeds and the rest observe ErrAlreadyLocked,
// never partial writes and never a silent overwrite.
type Store interface {
	// TryAcquire atomically creates the record. It returns ErrAlreadyLocked
	// if a record already exists, without blocking or retrying.
	TryAcquire(ctx context.Context, rec Record) error

	// Get returns the current record without evaluating staleness.
	// It returns ErrNotLocked if no record exists. A malformed record is
	// deleted and reported as ErrCorrupted.
	Get(ctx context.Context) (Record, error)

	// Release deletes the record when owner and token both match, or
	// unconditionally when force is true. It returns ErrPermissionDenied on
	// a credential mismatch and ErrNotLocked if no record exists.
	Release(ctx context.Context, owner, token string, force bool) error

	// Extend rewrites the duration field of the live record. It returns
	// ErrNotLocked if no record exists.
	Extend(ctx context.Context, d time.Duration) error
}
