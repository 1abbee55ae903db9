package store

import (
	"context"
	"fmt"
	"time"

	coordinationv1 "k8s.io/api/coordination/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const tokenAnnotation = "nirmatai.certx.ai/lock-token"

// KubernetesStore keeps the lock record in a coordination/v1 Lease object.
// The API server rejects a Create for an existing Lease, which gives the
// same create-if-absent guarantee as an exclusive file creation. The token
// travels in an annotation since the Lease spec has no field for it.
type KubernetesStore struct {
	client    kubernetes.Interface
	namespace string
	name      string
}

// NewKubernetesStore creates a Lease-backed lock store.
func NewKubernetesStore(client kubernetes.Interface, namespace, name string) *KubernetesStore {
	return &KubernetesStore{client: client, namespace: namespace, name: name}
}

func (s *KubernetesStore) TryAcquire(ctx context.Context, rec Record) error {
	seconds := int32(rec.Duration / time.Second)
	acquired := metav1.NewMicroTime(rec.AcquiredAt)
	lease := &coordinationv1.Lease{
		ObjectMeta: metav1.ObjectMeta{
			Name:        s.name,
			Namespace:   s.namespace,
			Annotations: map[string]string{tokenAnnotation: rec.Token},
		},
		Spec: coordinationv1.LeaseSpec{
			HolderIdentity:       &rec.Owner,
			AcquireTime:          &acquired,
			LeaseDurationSeconds: &seconds,
		},
	}

	_, err := s.client.CoordinationV1().Leases(s.namespace).Create(ctx, lease, metav1.CreateOptions{})
	if err != nil {
		if apierrors.IsAlreadyExists(err) {
			return ErrAlreadyLocked
		}
		return fmt.Errorf("create lease: %w", err)
	}
	return nil
}

func (s *KubernetesStore) Get(ctx context.Context) (Record, error) {
	rec, _, err := s.get(ctx)
	return rec, err
}

func (s *KubernetesStore) Release(ctx context.Context, owner, token string, force bool) error {
	rec, lease, err := s.get(ctx)
	if err != nil {
		return err
	}
	if !force && (rec.Owner != owner || rec.Token != token) {
		return ErrPermissionDenied
	}

	// The UID precondition keeps the delete from removing a lease that was
	// released and re-acquired after our read.
	opts := metav1.DeleteOptions{
		Preconditions: &metav1.Preconditions{UID: &lease.UID},
	}
	if err := s.client.CoordinationV1().Leases(s.namespace).Delete(ctx, s.name, opts); err != nil {
		if apierrors.IsNotFound(err) || apierrors.IsConflict(err) {
			return ErrNotLocked
		}
		return fmt.Errorf("delete lease: %w", err)
	}
	return nil
}

func (s *KubernetesStore) Extend(ctx context.Context, d time.Duration) error {
	_, lease, err := s.get(ctx)
	if err != nil {
		return err
	}

	seconds := int32(d / time.Second)
	lease.Spec.LeaseDurationSeconds = &seconds
	if _, err := s.client.CoordinationV1().Leases(s.namespace).Update(ctx, lease, metav1.UpdateOptions{}); err != nil {
		if apierrors.IsNotFound(err) {
			return ErrNotLocked
		}
		return fmt.Errorf("update lease: %w", err)
	}
	return nil
}

func (s *KubernetesStore) get(ctx context.Context) (Record, *coordinationv1.Lease, error) {
	lease, err := s.client.CoordinationV1().Leases(s.namespace).Get(ctx, s.name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return Record{}, nil, ErrNotLocked
		}
		return Record{}, nil, fmt.Errorf("get lease: %w", err)
	}

	token := lease.Annotations[tokenAnnotation]
	if lease.Spec.HolderIdentity == nil || *lease.Spec.HolderIdentity == "" ||
		token == "" || lease.Spec.AcquireTime == nil || lease.Spec.LeaseDurationSeconds == nil {
		s.client.CoordinationV1().Leases(s.namespace).Delete(ctx, s.name, metav1.DeleteOptions{})
		return Record{}, nil, ErrCorrupted
	}

	rec := Record{
		Owner:      *lease.Spec.HolderIdentity,
		Token:      token,
		AcquiredAt: lease.Spec.AcquireTime.Time,
		Duration:   time.Duration(*lease.Spec.LeaseDurationSeconds) * time.Second,
	}
	return rec, lease, nil
}
