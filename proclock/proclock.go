package proclock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"k8s.io/utils/clock"

	"github.com/CertX-AI/NirmatAI-WebApp/internal"
	"github.com/CertX-AI/NirmatAI-WebApp/proclock/store"
)

// ErrInvalidOwner means an acquisition was attempted without an identity.
var ErrInvalidOwner = errors.New("owner cannot be empty")

// Info is the ownership metadata of the current lock record.
type Info struct {
	Owner      string
	AcquiredAt time.Time
}

// Locker grants at most one active processing session across all concurrent
// viewers of the application. The store's atomic create-if-absent is the only
// mutual-exclusion primitive; expiration keeps a crashed holder from
// deadlocking the system forever.
//
// The default duration is owned by the Locker instance, not by package-level
// state, and may only grow. Concurrent Remaining and Extend calls race on a
// single scalar, which is benign: no stronger guarantee is promised.
type Locker struct {
	store           store.Store
	clock           clock.Clock
	defaultDuration atomic.Duration
}

// New creates a Locker on top of the given store.
func New(s store.Store, defaultDuration time.Duration) (*Locker, error) {
	if s == nil {
		return nil, errors.New("store cannot be nil")
	}
	if defaultDuration <= 0 {
		return nil, errors.New("default duration must be positive")
	}
	l := &Locker{store: s, clock: clock.RealClock{}}
	l.defaultDuration.Store(defaultDuration)
	return l, nil
}

// Acquire attempts to atomically create the lock record for owner and returns
// the token that authorizes a later Release. It returns ErrAlreadyLocked if a
// record exists, without blocking or retrying, and ErrInvalidOwner for an
// empty owner.
func (l *Locker) Acquire(ctx context.Context, owner string) (string, error) {
	if strings.TrimSpace(owner) == "" {
		return "", ErrInvalidOwner
	}

	rec := store.Record{
		Owner:      owner,
		Token:      uuid.NewString(),
		AcquiredAt: l.clock.Now(),
		Duration:   l.defaultDuration.Load(),
	}
	if err := l.store.TryAcquire(ctx, rec); err != nil {
		if errors.Is(err, store.ErrAlreadyLocked) {
			internal.GetLogger().Printf("Lock record already exists")
		}
		return "", err
	}
	internal.GetLogger().Printf("Lock acquired by %s", owner)
	return rec.Token, nil
}

// IsLocked reports whether a valid lock record exists. A stale record is
// reclaimed as a side effect so the system self-heals from a crashed or
// abandoned holder. Missing, stale, or corrupted state never raises: only a
// valid record yields true.
func (l *Locker) IsLocked(ctx context.Context) bool {
	rec, err := l.store.Get(ctx)
	if err != nil {
		l.reportReadError(err)
		return false
	}

	if rec.IsExpired(l.clock.Now()) {
		if err := l.store.Release(ctx, "", "", true); err != nil && !errors.Is(err, store.ErrNotLocked) {
			internal.GetLogger().Printf("Failed to remove stale lock record, err: %v", err)
		} else {
			internal.GetLogger().Printf("Stale lock record removed")
		}
		return false
	}
	return true
}

// Info returns the owner and acquisition time of the current record without
// evaluating staleness or deleting anything.
func (l *Locker) Info(ctx context.Context) (Info, bool) {
	rec, err := l.store.Get(ctx)
	if err != nil {
		l.reportReadError(err)
		return Info{}, false
	}
	return Info{Owner: rec.Owner, AcquiredAt: rec.AcquiredAt}, true
}

// Remaining returns the time left before the lock expires, clamped to zero.
// The second return value is false when no record exists.
func (l *Locker) Remaining(ctx context.Context) (time.Duration, bool) {
	rec, err := l.store.Get(ctx)
	if err != nil {
		l.reportReadError(err)
		return 0, false
	}

	remaining := rec.ExpiresAt().Sub(l.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Release deletes the record only if both owner and token match the caller's
// held values. A missing record is a logged no-op; a credential mismatch
// returns ErrPermissionDenied and leaves the record intact.
func (l *Locker) Release(ctx context.Context, owner, token string) error {
	err := l.store.Release(ctx, owner, token, false)
	switch {
	case err == nil:
		internal.GetLogger().Printf("Lock released by %s", owner)
		return nil
	case errors.Is(err, store.ErrNotLocked):
		internal.GetLogger().Printf("Lock record does not exist when attempting to release")
		return nil
	case errors.Is(err, store.ErrCorrupted):
		internal.GetLogger().Printf("Corrupted lock record removed")
		return nil
	case errors.Is(err, store.ErrPermissionDenied):
		internal.GetLogger().Printf("Attempted to release lock without matching owner and token")
		return ErrPermissionDenied
	default:
		return err
	}
}

// ForceRelease deletes the record bypassing the token check. Used for expiry
// cleanup.
func (l *Locker) ForceRelease(ctx context.Context) error {
	err := l.store.Release(ctx, "", "", true)
	switch {
	case err == nil:
		internal.GetLogger().Printf("Lock released forcibly")
		return nil
	case errors.Is(err, store.ErrNotLocked):
		internal.GetLogger().Printf("Lock record does not exist when attempting to release")
		return nil
	default:
		return err
	}
}

// Extend raises the default lock duration and, if a record exists, rewrites
// its duration field. It reports false without touching anything when d is
// not strictly greater than the current default: the validity window may
// grow, never shrink.
func (l *Locker) Extend(ctx context.Context, d time.Duration) (bool, error) {
	if d <= l.defaultDuration.Load() {
		internal.GetLogger().Printf("Requested duration is not greater than the current default, not extended")
		return false, nil
	}
	l.defaultDuration.Store(d)

	err := l.store.Extend(ctx, d)
	switch {
	case err == nil:
		internal.GetLogger().Printf("Lock duration extended to %s", d)
		return true, nil
	case errors.Is(err, store.ErrNotLocked):
		internal.GetLogger().Printf("Lock duration updated in memory, no active record to modify")
		return true, nil
	case errors.Is(err, store.ErrCorrupted):
		internal.GetLogger().Printf("Corrupted lock record removed")
		return true, nil
	default:
		return false, err
	}
}

// DefaultDuration returns the currently configured default validity window.
func (l *Locker) DefaultDuration() time.Duration {
	return l.defaultDuration.Load()
}

func (l *Locker) reportReadError(err error) {
	switch {
	case errors.Is(err, store.ErrNotLocked):
	case errors.Is(err, store.ErrCorrupted):
		internal.GetLogger().Printf("Corrupted lock record removed")
	default:
		internal.GetLogger().Printf("Failed to read lock record, err: %v", err)
	}
}
