package usage

import (
	"fmt"
	"sync"
	"time"

	"github.com/sellora/sellora/internal/pkg/cache"
)

// WarningThrottle limits usage warnings to one batched notification per
// seller per rolling window.
type WarningThrottle interface {
	// Allow reports whether a warning may be sent now and, when it may,
	// claims the window.
	Allow(sellerID uint, window time.Duration) (bool, error)
}

type redisThrottle struct{}

// NewRedisThrottle returns a throttle backed by the shared cache. The claim
// is a SETNX with the window as TTL.
func NewRedisThrottle() WarningThrottle {
	return &redisThrottle{}
}

func (t *redisThrottle) Allow(sellerID uint, window time.Duration) (bool, error) {
	key := fmt.Sprintf("usage:warn:%d", sellerID)
	return cache.SetNX(key, time.Now().Unix(), window)
}

type memoryThrottle struct {
	mu   sync.Mutex
	seen map[uint]time.Time
}

// NewMemoryThrottle returns an in-process throttle used in tests and as a
// fallback when no cache is configured.
func NewMemoryThrottle() WarningThrottle {
	return &memoryThrottle{seen: make(map[uint]time.Time)}
}

func (t *memoryThrottle) Allow(sellerID uint, window time.Duration) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if last, ok := t.seen[sellerID]; ok && now.Sub(last) < window {
		return false, nil
	}
	t.seen[sellerID] = now
	return true, nil
}
