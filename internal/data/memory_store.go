package data

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/DevRickLin/chat-moderator/internal/biz/repo"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStateStore is a process-local repo.StateStore
type MemoryStateStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

// NewMemoryStateStore creates an empty in-memory store
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{items: make(map[string]memoryItem), now: time.Now}
}

func (s *MemoryStateStore) live(it memoryItem) bool {
	return it.expiresAt.IsZero() || s.now().Before(it.expiresAt)
}

func (s *MemoryStateStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[key]
	if !ok || !s.live(it) {
		return nil, false, nil
	}
	out := make([]byte, len(it.value))
	copy(out, it.value)
	return out, true, nil
}

func (s *MemoryStateStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		it.expiresAt = s.now().Add(ttl)
	}
	s.items[key] = it
	return nil
}

func (s *MemoryStateStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.items, k)
	}
	return nil
}

func (s *MemoryStateStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k, it := range s.items {
		if strings.HasPrefix(k, prefix) && s.live(it) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// PurgeExpired drops expired items
func (s *MemoryStateStore) PurgeExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, it := range s.items {
		if !s.live(it) {
			delete(s.items, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStateStore) Close() error { return nil }

var _ repo.StateStore = (*MemoryStateStore)(nil)
