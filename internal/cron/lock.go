package cron

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// DefaultLockKey is shared by every cron worker replica.
const DefaultLockKey = "storefront:cron:lock"

// defaultLockTTL bounds how long a crashed worker can hold the cycle.
const defaultLockTTL = 10 * time.Minute

// Lock coordinates exclusive cron runs across replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)
}

// RedisLock is a single-key Redis lock. The stored value names the holder,
// and release is a compare-and-delete so a replica whose TTL lapsed cannot
// free a lock another replica has since taken.
type RedisLock struct {
	client lockStore
	key    string
	ttl    time.Duration
	holder string
}

func NewRedisLock(client lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		key = DefaultLockKey
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	holder := holderID()
	ok, err := l.client.SetNX(ctx, l.key, holder, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.holder = holder
	}
	return ok, nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	if l.holder == "" {
		return nil
	}
	holder := l.holder
	l.holder = ""
	if _, err := l.client.DeleteIfValue(ctx, l.key, holder); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}

// holderID is readable in redis-cli: "<hostname>:<uuid>".
func holderID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return host + ":" + uuid.NewString()
}
