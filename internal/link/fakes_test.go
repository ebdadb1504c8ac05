package link

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cinbrain/shortlinks/internal/cache"
	"github.com/cinbrain/shortlinks/internal/errx"
)

/***************
 * Mocks
 ***************/

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory cache.Store. Setting err makes every operation
// fail with it, simulating an unavailable volatile store.
type memStore struct {
	mu    sync.Mutex
	data  map[string]memEntry
	lists map[string][]string
	err   error
	now   func() time.Time
}

type memEntry struct {
	value    string
	expireAt time.Time // zero means no expiry
}

func newMemStore() *memStore {
	return &memStore{
		data:  make(map[string]memEntry),
		lists: make(map[string][]string),
		now:   time.Now,
	}
}

func (m *memStore) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

func (m *memStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	e := memEntry{value: value}
	if ttl > 0 {
		e.expireAt = m.clock().Add(ttl)
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
	if !e.expireAt.IsZero() && m.clock().After(e.expireAt) {
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
	delete(m.lists, key)
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
	if !e.expireAt.IsZero() && m.clock().After(e.expireAt) {
		delete(m.data, key)
		return false, nil
	}
	return true, nil
}

func (m *memStore) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	n := int64(0)
	if e, ok := m.data[key]; ok {
		parsed, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, errors.New("value is not an integer")
		}
		n = parsed
	}
	n++
	e := m.data[key]
	e.value = strconv.FormatInt(n, 10)
	m.data[key] = e
	return n, nil
}

func (m *memStore) RPush(ctx context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.lists[key] = append(m.lists[key], values...)
	return nil
}

func (m *memStore) LPopCount(ctx context.Context, key string, count int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	list := m.lists[key]
	if len(list) == 0 {
		return nil, nil
	}
	if count > len(list) {
		count = len(list)
	}
	popped := append([]string(nil), list[:count]...)
	m.lists[key] = list[count:]
	return popped, nil
}

func (m *memStore) LLen(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	return int64(len(m.lists[key])), nil
}

var _ cache.Store = (*memStore)(nil)

// mockRepository implements Repository for testing.
type mockRepository struct {
	createFunc          func(ctx context.Context, l Link) (Link, error)
	getBySlugFunc       func(ctx context.Context, slug string) (Link, error)
	updateFunc          func(ctx context.Context, l Link) (Link, error)
	deleteFunc          func(ctx context.Context, slug string, userID uuid.UUID) error
	incrementClicksFunc func(ctx context.Context, slug string, delta int64) error
}

func (m *mockRepository) Create(ctx context.Context, l Link) (Link, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, l)
	}
	l.ID = uuid.New()
	l.CreatedAt = time.Now()
	l.UpdatedAt = time.Now()
	return l, nil
}

func (m *mockRepository) GetBySlug(ctx context.Context, slug string) (Link, error) {
	if m.getBySlugFunc != nil {
		return m.getBySlugFunc(ctx, slug)
	}
	return Link{}, errx.E("repo.GetBySlug", errx.NotFound, errors.New("not found"))
}

func (m *mockRepository) Update(ctx context.Context, l Link) (Link, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, l)
	}
	l.UpdatedAt = time.Now()
	return l, nil
}

func (m *mockRepository) Delete(ctx context.Context, slug string, userID uuid.UUID) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, slug, userID)
	}
	return nil
}

func (m *mockRepository) IncrementClicks(ctx context.Context, slug string, delta int64) error {
	if m.incrementClicksFunc != nil {
		return m.incrementClicksFunc(ctx, slug, delta)
	}
	return nil
}

// mockRecorder captures Record calls.
type mockRecorder struct {
	mu    sync.Mutex
	slugs []string
}

func (m *mockRecorder) Record(ctx context.Context, slug string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slugs = append(m.slugs, slug)
}

func (m *mockRecorder) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.slugs...)
}

// mockSlugGenerator implements sluggen.Generator for testing.
type mockSlugGenerator struct {
	generateFunc func(length int) (string, error)
	slugs        []string
	callCount    int
}

func (m *mockSlugGenerator) Generate(length int) (string, error) {
	m.callCount++

	if m.generateFunc != nil {
		return m.generateFunc(length)
	}
	if m.slugs != nil {
		idx := m.callCount - 1
		if idx >= 0 && idx < len(m.slugs) {
			return m.slugs[idx], nil
		}
	}
	return "abc1234", nil
}
