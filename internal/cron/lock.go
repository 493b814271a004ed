package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 10 * time.Minute

var (
	errLockStoreRequired = errors.New("cron lock: store is required")
	errLockKeyRequired   = errors.New("cron lock: key is required")
)

// Lock coordinates exclusive cron runs across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, owner string) (bool, error)
}

// RedisLock is a TTL lease in redis. Each successful Acquire mints a fresh
// owner token and Release only deletes the key while that token still holds it.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration
	held  string
}

func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errLockStoreRequired
	case key == "":
		return nil, errLockKeyRequired
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	won, err := l.store.AcquireLock(ctx, l.key, token, l.ttl)
	switch {
	case err != nil:
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	case won:
		l.held = token
	}
	return won, nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	token := l.held
	if token == "" {
		return nil
	}
	l.held = ""
	// false means the lease expired and someone else owns the key now
	if _, err := l.store.ReleaseLock(ctx, l.key, token); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
