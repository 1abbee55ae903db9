package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdStore keeps the lock record in a single etcd key attached to a lease
// whose TTL equals the record duration. Creation is guarded by a
// create-revision transaction, so concurrent acquisitions are serialized by
// the etcd server.
type EtcdStore struct {
	client *clientv3.Client
	key    string
}

// NewEtcdStore creates an etcd-backed lock store under the given key.
func NewEtcdStore(client *clientv3.Client, key string) *EtcdStore {
	return &EtcdStore{client: client, key: key}
}

func (s *EtcdStore) TryAcquire(ctx context.Context, rec Record) error {
	val, err := json.Marshal(toWireRecord(rec))
	if err != nil {
		return fmt.Errorf("marshal lock record: %w", err)
	}

	lease, err := s.client.Grant(ctx, leaseSeconds(rec.Duration))
	if err != nil {
		return fmt.Errorf("grant lease: %w", err)
	}

	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(s.key), "=", 0)).
		Then(clientv3.OpPut(s.key, string(val), clientv3.WithLease(lease.ID))).
		Commit()
	if err != nil {
		s.client.Revoke(context.Background(), lease.ID)
		return fmt.Errorf("put lock record: %w", err)
	}
	if !resp.Succeeded {
		s.client.Revoke(context.Background(), lease.ID)
		return ErrAlreadyLocked
	}
	return nil
}

func (s *EtcdStore) Get(ctx context.Context) (Record, error) {
	rec, _, _, err := s.get(ctx)
	return rec, err
}

func (s *EtcdStore) Release(ctx context.Context, owner, token string, force bool) error {
	rec, rev, _, err := s.get(ctx)
	if err != nil {
		return err
	}
	if !force && (rec.Owner != owner || rec.Token != token) {
		return ErrPermissionDenied
	}

	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(s.key), "=", rev)).
		Then(clientv3.OpDelete(s.key)).
		Commit()
	if err != nil {
		return fmt.Errorf("delete lock record: %w", err)
	}
	if !resp.Succeeded {
		return ErrNotLocked
	}
	return nil
}

func (s *EtcdStore) Extend(ctx context.Context, d time.Duration) error {
	rec, rev, oldLease, err := s.get(ctx)
	if err != nil {
		return err
	}
	rec.Duration = d

	remaining := time.Until(rec.ExpiresAt())
	if remaining <= 0 {
		return ErrNotLocked
	}
	val, err := json.Marshal(toWireRecord(rec))
	if err != nil {
		return fmt.Errorf("marshal lock record: %w", err)
	}

	lease, err := s.client.Grant(ctx, leaseSeconds(remaining))
	if err != nil {
		return fmt.Errorf("grant lease: %w", err)
	}
	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(s.key), "=", rev)).
		Then(clientv3.OpPut(s.key, string(val), clientv3.WithLease(lease.ID))).
		Commit()
	if err != nil {
		s.client.Revoke(context.Background(), lease.ID)
		return fmt.Errorf("update lock record: %w", err)
	}
	if !resp.Succeeded {
		s.client.Revoke(context.Background(), lease.ID)
		return ErrNotLocked
	}
	if oldLease != clientv3.NoLease {
		s.client.Revoke(context.Background(), oldLease)
	}
	return nil
}

func (s *EtcdStore) get(ctx context.Context) (Record, int64, clientv3.LeaseID, error) {
	resp, err := s.client.Get(ctx, s.key)
	if err != nil {
		return Record{}, 0, clientv3.NoLease, fmt.Errorf("get lock record: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return Record{}, 0, clientv3.NoLease, ErrNotLocked
	}

	kv := resp.Kvs[0]
	var rec wireRecord
	if err := json.Unmarshal(kv.Value, &rec); err != nil || rec.Owner == "" || rec.Token == "" {
		s.client.Delete(ctx, s.key)
		return Record{}, 0, clientv3.NoLease, ErrCorrupted
	}
	return fromWireRecord(rec), kv.ModRevision, clientv3.LeaseID(kv.Lease), nil
}

// leaseSeconds rounds a duration up to whole seconds since etcd lease TTLs
// have second granularity.
func leaseSeconds(d time.Duration) int64 {
	seconds := int64(d / time.Second)
	if d%time.Second != 0 || seconds == 0 {
		seconds++
	}
	return seconds
}
