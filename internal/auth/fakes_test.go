package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cinbrain/shortlinks/internal/cache"
	"github.com/cinbrain/shortlinks/internal/errx"
)

/***************
 * Mocks
 ***************/

var errTestUnavailable = errors.New("connection refused")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory cache.Store. Setting err makes every operation
// fail with it; now controls TTL expiry.
type memStore struct {
	mu   sync.Mutex
	data map[string]memEntry
	err  error
	now  func() time.Time
}

type memEntry struct {
	value    string
	expireAt time.Time
}

func newMemStore() *memStore {
	return &memStore{
		data: make(map[string]memEntry),
		now:  time.Now,
	}
}

func (m *memStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	e := memEntry{value: value}
	if ttl > 0 {
		e.expireAt = m.now().Add(ttl)
	}
	m.data[key] = e
	return nil
}

func (m *memStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	e, ok := m.data[key]
	if !ok {
		return "", cache.ErrMiss
	}
	if !e.expireAt.IsZero() && m.now().After(e.expireAt) {
		delete(m.data, key)
		return "", cache.ErrMiss
	}
	return e.value, nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.data, key)
	return nil
}

func (m *memStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	e, ok := m.data[key]
	if !ok {
		return false, nil
	}
	if !e.expireAt.IsZero() && m.now().After(e.expireAt) {
		delete(m.data, key)
		return false, nil
	}
	return true, nil
}

func (m *memStore) Incr(ctx context.Context, key string) (int64, error) {
	return 0, cache.ErrUnavailable
}

func (m *memStore) RPush(ctx context.Context, key string, values ...string) error {
	return cache.ErrUnavailable
}

func (m *memStore) LPopCount(ctx context.Context, key string, count int) ([]string, error) {
	return nil, cache.ErrUnavailable
}

func (m *memStore) LLen(ctx context.Context, key string) (int64, error) {
	return 0, cache.ErrUnavailable
}

var _ cache.Store = (*memStore)(nil)

// mockUserStore implements UserStore for testing.
type mockUserStore struct {
	getByEmailFunc     func(ctx context.Context, email string) (User, error)
	getByIDFunc        func(ctx context.Context, id uuid.UUID) (User, error)
	updatePasswordFunc func(ctx context.Context, id uuid.UUID, passwordHash string) error
}

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (User, error) {
	if m.getByEmailFunc != nil {
		return m.getByEmailFunc(ctx, email)
	}
	return User{}, errx.E("users.GetByEmail", errx.NotFound, errors.New("user not found"))
}

func (m *mockUserStore) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return User{}, errx.E("users.GetByID", errx.NotFound, errors.New("user not found"))
}

func (m *mockUserStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	if m.updatePasswordFunc != nil {
		return m.updatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}
