package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lua keeps release and extend atomic on the server, so a concurrent holder
// change between read and delete can never remove someone else's record.
var (
	releaseScript = redis.NewScript(`
local val = redis.call("get", KEYS[1])
if not val then
	return 0
end
if ARGV[3] == "1" then
	redis.call("del", KEYS[1])
	return 1
end
local rec = cjson.decode(val)
if rec["owner"] == ARGV[1] and rec["token"] == ARGV[2] then
	redis.call("del", KEYS[1])
	return 1
end
return -1`)

	extendScript = redis.NewScript(`
if redis.call("exists", KEYS[1]) == 0 then
	return 0
end
redis.call("set", KEYS[1], ARGV[1], "px", ARGV[2])
return 1`)
)

// wireRecord is the JSON wire form of a Record, with the same fields as the
// four-line file format so any reader can interpret it.
type wireRecord struct {
	Owner           string  `json:"owner"`
	Token           string  `json:"token"`
	AcquiredAt      float64 `json:"acquired_at"`
	DurationSeconds float64 `json:"duration"`
}

// RedisStore keeps the lock record in a single redis key. The server-side
// TTL equals the record duration, so a crashed holder's record expires
// without any reader having to reclaim it.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore creates a redis-backed lock store under the given key.
func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) TryAcquire(ctx context.Context, rec Record) error {
	val, err := json.Marshal(toWireRecord(rec))
	if err != nil {
		return fmt.Errorf("marshal lock record: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key, val, rec.Duration).Result()
	if err != nil {
		return fmt.Errorf("setnx lock record: %w", err)
	}
	if !ok {
		return ErrAlreadyLocked
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context) (Record, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotLocked
		}
		return Record{}, fmt.Errorf("get lock record: %w", err)
	}

	var rec wireRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil || rec.Owner == "" || rec.Token == "" {
		s.client.Del(ctx, s.key)
		return Record{}, ErrCorrupted
	}
	return fromWireRecord(rec), nil
}

func (s *RedisStore) Release(ctx context.Context, owner, token string, force bool) error {
	forceArg := "0"
	if force {
		forceArg = "1"
	}
	res, err := releaseScript.Run(ctx, s.client, []string{s.key}, owner, token, forceArg).Int()
	if err != nil {
		return fmt.Errorf("release lock record: %w", err)
	}
	switch res {
	case 0:
		return ErrNotLocked
	case -1:
		return ErrPermissionDenied
	}
	return nil
}

func (s *RedisStore) Extend(ctx context.Context, d time.Duration) error {
	rec, err := s.Get(ctx)
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
	res, err := extendScript.Run(ctx, s.client, []string{s.key}, val, remaining.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("extend lock record: %w", err)
	}
	if res == 0 {
		return ErrNotLocked
	}
	return nil
}

func toWireRecord(rec Record) wireRecord {
	return wireRecord{
		Owner:           rec.Owner,
		Token:           rec.Token,
		AcquiredAt:      float64(rec.AcquiredAt.UnixNano()) / float64(time.Second),
		DurationSeconds: rec.Duration.Seconds(),
	}
}

func fromWireRecord(rec wireRecord) Record {
	return Record{
		Owner:      rec.Owner,
		Token:      rec.Token,
		AcquiredAt: time.Unix(0, int64(rec.AcquiredAt*float64(time.Second))),
		Duration:   time.Duration(rec.DurationSeconds * float64(time.Second)),
	}
}
