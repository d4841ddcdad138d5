package cache

import (
	"context"
	"sync"
	"time"

	"github.com/storefront-pipeline/internal/infrastructure/eventbus"
)

// MemoryStore is the single-process IdempotencyStore used when no Redis
// address is configured. Expired keys are purged by a background loop.
type MemoryStore struct {
	mu        sync.RWMutex
	expires   map[string]time.Time
	now       func() time.Time
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewMemoryStore(cleanupEvery time.Duration) *MemoryStore {
	s := &MemoryStore{
		expires: make(map[string]time.Time),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if cleanupEvery > 0 {
		s.wg.Add(1)
		go s.cleanupLoop(cleanupEvery)
	}
	return s
}

func (s *MemoryStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if exp, ok := s.expires[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.expires[key] = now.Add(ttl)
	return true, nil
}

func (s *MemoryStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exp, ok := s.expires[key]
	return ok && s.now().Before(exp), nil
}

// Close stops the cleanup loop. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.expires)
}

func (s *MemoryStore) cleanupLoop(every time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.purge()
		}
	}
}

func (s *MemoryStore) purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, exp := range s.expires {
		if !now.Before(exp) {
			delete(s.expires, k)
		}
	}
}

var _ eventbus.IdempotencyStore = (*MemoryStore)(nil)
