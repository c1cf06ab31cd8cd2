package receipts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
	"github.com/google/uuid"
)

const defaultLockTTL = 30 * time.Second

// Lock guards writes to the sessions of one purchase order and workflow.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFactory returns the lock for a purchase order and workflow.
type LockFactory func(referenceID string, workflow enums.Workflow) (Lock, error)

// redisStore defines the operations used by RedisLock.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfEquals(ctx context.Context, key, value string) (bool, error)
}

type lockKeyer interface {
	redisStore
	LockKey(referenceID, workflow string) string
}

// RedisLock is a SETNX lock with a TTL so a crashed writer cannot hold an order forever.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

// NewRedisLock constructs a lock on key. A non-positive ttl falls back to 30s.
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for session lock")
	}
	if key == "" {
		return nil, errors.New("session lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// NewRedisLockFactory builds per-order locks keyed by the client's lock namespace.
func NewRedisLockFactory(client lockKeyer, ttl time.Duration) LockFactory {
	return func(referenceID string, workflow enums.Workflow) (Lock, error) {
		return NewRedisLock(client, client.LockKey(referenceID, workflow.String()), ttl)
	}
}

// Acquire reports false without error when another writer holds the lock.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire session lock %s: %w", l.key, err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release is a no-op when the lock expired or was taken over by another owner.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	if _, err := l.client.DeleteIfEquals(ctx, l.key, l.owner); err != nil {
		return fmt.Errorf("release session lock %s: %w", l.key, err)
	}
	l.owner = ""
	return nil
}
