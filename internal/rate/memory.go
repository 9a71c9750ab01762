package rate

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter: mismo algoritmo fixed-window que RedisLimiter pero sobre
// go-cache. Para desarrollo y despliegues de un solo nodo sin Redis.
type MemoryLimiter struct {
	cache  *gocache.Cache
	Max    int64
	Window time.Duration
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		cache:  gocache.New(window, 2*window),
		Max:    int64(max),
		Window: window,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.Window)
	cacheKey := fmt.Sprintf("%s:%d", key, winStart.Unix())

	// Add solo gana en el primer hit de la ventana y fija el TTL;
	// Increment no lo modifica.
	_ = l.cache.Add(cacheKey, int64(0), l.Window)
	hits, err := l.cache.IncrementInt64(cacheKey, 1)
	if err != nil {
		// El contador expiró entre Add e Increment; recrear.
		l.cache.Set(cacheKey, int64(1), l.Window)
		hits = 1
	}

	ttl := winStart.Add(l.Window).Sub(now)
	allowed := hits <= l.Max
	remaining := l.Max - hits
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		Allowed:     allowed,
		Remaining:   remaining,
		CurrentHits: hits,
		WindowTTL:   ttl,
	}
	if !allowed {
		res.RetryAfter = ttl
	}
	return res, nil
}
