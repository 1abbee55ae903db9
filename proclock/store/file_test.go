package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "nirmatai_webapp.lock"))
}

func testRecord(owner string) Record {
	return Record{
		Owner:      owner,
		Token:      uuid.NewString(),
		AcquiredAt: time.Now(),
		Duration:   30 * time.Minute,
	}
}

func TestFileStoreTryAcquire(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)

	require.NoError(t, s.TryAcquire(ctx, testRecord("alice123")))
	_, err := os.Stat(s.Path())
	require.NoError(t, err)

	require.ErrorIs(t, s.TryAcquire(ctx, testRecord("alice123")), ErrAlreadyLocked)
	require.ErrorIs(t, s.TryAcquire(ctx, testRecord("bob45678")), ErrAlreadyLocked)
}

func TestFileStoreConcurrentAcquire(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)

	const attempts = 32
	var wg sync.WaitGroup
	successes := make(chan string, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := testRecord("alice123")
			if err := s.TryAcquire(ctx, rec); err == nil {
				successes <- rec.Token
			}
		}()
	}
	wg.Wait()
	close(successes)

	var winners []string
	for token := range successes {
		winners = append(winners, token)
	}
	require.Len(t, winners, 1)

	rec, err := s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, winners[0], rec.Token)
}

func TestFileStoreGet(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)

	_, err := s.Get(ctx)
	require.ErrorIs(t, err, ErrNotLocked)

	want := testRecord("alice123")
	require.NoError(t, s.TryAcquire(ctx, want))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, want.Owner, got.Owner)
	require.Equal(t, want.Token, got.Token)
	require.WithinDuration(t, want.AcquiredAt, got.AcquiredAt, time.Millisecond)
	require.Equal(t, want.Duration, got.Duration)
}

func TestFileStoreGetPythonFormat(t *testing.T) {
	// Record written by the original web application.
	ctx := context.Background()
	s := newFileStore(t)
	data := "alice123\n550e8400-e29b-41d4-a716-446655440000\n1730000000.123456\n1800"
	require.NoError(t, os.WriteFile(s.Path(), []byte(data), 0o644))

	rec, err := s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "alice123", rec.Owner)
	require.Equal(t, "550e8400-e29b-41d4-a716-446655440000", rec.Token)
	require.WithinDuration(t, time.Unix(1730000000, 123456000), rec.AcquiredAt, time.Millisecond)
	require.Equal(t, 30*time.Minute, rec.Duration)
}

func TestFileStoreGetCorrupted(t *testing.T) {
	ctx := context.Background()

	for name, data := range map[string]string{
		"garbage":         "not a lock record",
		"too few lines":   "alice123\ntoken",
		"bad timestamp":   "alice123\ntoken\nnot-a-number\n1800",
		"bad duration":    "alice123\ntoken\n1730000000\nsoon",
		"missing owner":   "\ntoken\n1730000000\n1800",
		"missing token":   "alice123\n\n1730000000\n1800",
	} {
		t.Run(name, func(t *testing.T) {
			s := newFileStore(t)
			require.NoError(t, os.WriteFile(s.Path(), []byte(data), 0o644))

			_, err := s.Get(ctx)
			require.ErrorIs(t, err, ErrCorrupted)

			// The malformed record must have been repaired by deletion.
			_, err = os.Stat(s.Path())
			require.True(t, os.IsNotExist(err))
		})
	}
}

func TestFileStoreRelease(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)

	require.ErrorIs(t, s.Release(ctx, "alice123", "token", false), ErrNotLocked)
	require.ErrorIs(t, s.Release(ctx, "", "", true), ErrNotLocked)

	rec := testRecord("alice123")
	require.NoError(t, s.TryAcquire(ctx, rec))

	require.ErrorIs(t, s.Release(ctx, "alice123", "wrong-token", false), ErrPermissionDenied)
	require.ErrorIs(t, s.Release(ctx, "bob45678", rec.Token, false), ErrPermissionDenied)

	// Mismatches must leave the record intact.
	got, err := s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, rec.Token, got.Token)

	require.NoError(t, s.Release(ctx, "alice123", rec.Token, false))
	_, err = s.Get(ctx)
	require.ErrorIs(t, err, ErrNotLocked)
}

func TestFileStoreForceRelease(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)

	require.NoError(t, s.TryAcquire(ctx, testRecord("alice123")))
	require.NoError(t, s.Release(ctx, "", "", true))

	_, err := s.Get(ctx)
	require.ErrorIs(t, err, ErrNotLocked)
}

func TestFileStoreExtend(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)

	require.ErrorIs(t, s.Extend(ctx, time.Hour), ErrNotLocked)

	rec := testRecord("alice123")
	require.NoError(t, s.TryAcquire(ctx, rec))
	require.NoError(t, s.Extend(ctx, 50*time.Minute))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 50*time.Minute, got.Duration)
	require.Equal(t, rec.Token, got.Token)
	require.WithinDuration(t, rec.AcquiredAt, got.AcquiredAt, time.Millisecond)
}
