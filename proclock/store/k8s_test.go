package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"k8s.io/client-go/kubernetes/fake"
)

func newKubernetesStore(t *testing.T) *KubernetesStore {
	t.Helper()
	return NewKubernetesStore(fake.NewSimpleClientset(), "default", "nirmatai-webapp")
}

func TestKubernetesStoreTryAcquire(t *testing.T) {
	ctx := context.Background()
	s := newKubernetesStore(t)

	rec := testRecord("alice123")
	rec.AcquiredAt = rec.AcquiredAt.Truncate(time.Microsecond)
	require.NoError(t, s.TryAcquire(ctx, rec))
	require.ErrorIs(t, s.TryAcquire(ctx, testRecord("bob45678")), ErrAlreadyLocked)

	got, err := s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, rec.Owner, got.Owner)
	require.Equal(t, rec.Token, got.Token)
	require.WithinDuration(t, rec.AcquiredAt, got.AcquiredAt, time.Second)
	require.Equal(t, rec.Duration, got.Duration)
}

func TestKubernetesStoreRelease(t *testing.T) {
	ctx := context.Background()
	s := newKubernetesStore(t)

	require.ErrorIs(t, s.Release(ctx, "alice123", "token", false), ErrNotLocked)

	rec := testRecord("alice123")
	require.NoError(t, s.TryAcquire(ctx, rec))
	require.ErrorIs(t, s.Release(ctx, "alice123", "wrong-token", false), ErrPermissionDenied)
	require.ErrorIs(t, s.Release(ctx, "bob45678", rec.Token, false), ErrPermissionDenied)
	require.NoError(t, s.Release(ctx, rec.Owner, rec.Token, false))

	_, err := s.Get(ctx)
	require.ErrorIs(t, err, ErrNotLocked)
}

func TestKubernetesStoreForceRelease(t *testing.T) {
	ctx := context.Background()
	s := newKubernetesStore(t)

	require.NoError(t, s.TryAcquire(ctx, testRecord("alice123")))
	require.NoError(t, s.Release(ctx, "", "", true))

	_, err := s.Get(ctx)
	require.ErrorIs(t, err, ErrNotLocked)
}

func TestKubernetesStoreExtend(t *testing.T) {
	ctx := context.Background()
	s := newKubernetesStore(t)

	require.ErrorIs(t, s.Extend(ctx, time.Hour), ErrNotLocked)

	rec := testRecord("alice123")
	require.NoError(t, s.TryAcquire(ctx, rec))
	require.NoError(t, s.Extend(ctx, 50*time.Minute))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 50*time.Minute, got.Duration)
	require.Equal(t, rec.Token, got.Token)
}
