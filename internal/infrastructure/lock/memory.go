package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erp/stocksync/internal/domain/stocksync"
)

type entry struct {
	token     uuid.UUID
	expiresAt time.Time
}

// MemoryBatchLocker implements stocksync.BatchLocker within one process.
// Locks expire after their TTL like their Redis counterparts.
type MemoryBatchLocker struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

var _ stocksync.BatchLocker = (*MemoryBatchLocker)(nil)

// NewMemoryBatchLocker creates an in-process locker
func NewMemoryBatchLocker() *MemoryBatchLocker {
	return &MemoryBatchLocker{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Acquire takes key without waiting. A held, unexpired key yields
// stocksync.ErrLockNotObtained.
func (l *MemoryBatchLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.entries[key]; ok && now.Before(e.expiresAt) {
		return nil, fmt.Errorf("%w: %s", stocksync.ErrLockNotObtained, key)
	}

	token := uuid.New()
	l.entries[key] = entry{token: token, expiresAt: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		// a lock that expired and was re-taken belongs to someone else
		if e, ok := l.entries[key]; ok && e.token == token {
			delete(l.entries, key)
		}
		return nil
	}, nil
}
