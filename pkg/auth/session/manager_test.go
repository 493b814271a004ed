package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (s *memStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = fmt.Sprint(value)
	return nil
}

func (s *memStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return v, nil
}

func (s *memStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = fmt.Sprint(value)
	return true, nil
}

func (s *memStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *memStore) AccessSessionKey(id string) string { return "sess:" + id }
func (s *memStore) LockKey(scope, id string) string   { return "lock:" + scope + ":" + id }

func newTestManager(t *testing.T) (*Manager, *memStore) {
	t.Helper()
	store := &memStore{data: map[string]string{}}
	m, err := newManager(store, config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60})
	require.NoError(t, err)
	return m, store
}

func TestNewManagerValidatesTTL(t *testing.T) {
	store := &memStore{data: map[string]string{}}

	_, err := newManager(store, config.JWTConfig{ExpirationMinutes: 15})
	assert.Error(t, err)

	_, err = newManager(store, config.JWTConfig{ExpirationMinutes: 60, RefreshTokenTTLMinutes: 60})
	assert.ErrorContains(t, err, "must exceed")

	_, err = NewManager(nil, config.JWTConfig{})
	assert.Error(t, err)
}

func TestGenerateStoresOnlyDigest(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	token, err := m.Generate(ctx, "access-1", "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	stored := store.data["sess:access-1"]
	assert.NotContains(t, stored, token)
	assert.Contains(t, stored, digest(token))

	_, err = m.Generate(ctx, " ", "user-1")
	assert.ErrorIs(t, err, errAccessIDRequired)
}

func TestRotate(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	token, err := m.Generate(ctx, "access-1", "user-1")
	require.NoError(t, err)

	_, _, err = m.Rotate(ctx, "access-1", "user-1", "wrong")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, _, err = m.Rotate(ctx, "access-1", "user-2", token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	newID, newToken, err := m.Rotate(ctx, "access-1", "user-1", token)
	require.NoError(t, err)
	assert.NotEqual(t, "access-1", newID)
	assert.NotEqual(t, token, newToken)
	assert.NotContains(t, store.data, "sess:access-1")

	ok, err := m.HasSession(ctx, newID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, _, err = m.Rotate(ctx, "access-1", "user-1", token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRotateRefusesSecondClaim(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	token, err := m.Generate(ctx, "access-1", "user-1")
	require.NoError(t, err)
	store.data["lock:session-rotate:access-1"] = "user-1"

	_, _, err = m.Rotate(ctx, "access-1", "user-1", token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.Contains(t, store.data, "sess:access-1")
}

func TestRevokeAndHasSession(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Generate(ctx, "access-9", "user-9")
	require.NoError(t, err)

	ok, err := m.HasSession(ctx, "access-9")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.Revoke(ctx, "access-9"))
	ok, err = m.HasSession(ctx, "access-9")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = m.Rotate(ctx, "access-9", "user-9", "anything")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.Error(t, m.Revoke(ctx, ""))
}
