package quota

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/spacesedan/bluesense/config"
)

const (
	KEY_PREFIX = "bluesense:quota:"
	KEY_TTL    = 48 * time.Hour
)

// Counter stores the per-day call count. The Valkey client satisfies it
// when several replicas must share a budget.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Decr(ctx context.Context, key string) error
}

// Limiter enforces the per-minute spacing and the daily budget for
// scoring calls. A zero limit disables that direction.
type Limiter struct {
	mu sync.Mutex

	counter    Counter
	dailyLimit int64

	interval time.Duration
	lastCall time.Time

	now func() time.Time
}

func NewLimiter(cfg config.Quota, counter Counter) *Limiter {
	requestsPerDay := cfg.RequestsPerDay
	if requestsPerDay < 0 {
		requestsPerDay = 0
	}

	requestsPerMinute := cfg.RequestsPerMinute
	if requestsPerMinute < 0 {
		requestsPerMinute = 0
	}

	var interval time.Duration
	if requestsPerMinute > 0 {
		interval = time.Minute / time.Duration(requestsPerMinute)
	}

	if counter == nil {
		counter = NewMemoryCounter()
	}

	return &Limiter{
		counter:    counter,
		dailyLimit: int64(requestsPerDay),
		interval:   interval,
		now:        time.Now,
	}
}

// WaitAndReserve applies both limits before a scoring call.
//   - daily budget exhausted: (false, nil), the caller must skip the call.
//   - context done while waiting: (false, ctx.Err()).
func (l *Limiter) WaitAndReserve(ctx context.Context) (bool, error) {
	if err := l.waitForSlot(ctx); err != nil {
		return false, err
	}

	if l.dailyLimit <= 0 {
		return true, nil
	}

	key := KEY_PREFIX + l.now().UTC().Format("2006-01-02")
	used, err := l.counter.Incr(ctx, key, KEY_TTL)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		slog.Warn("[Quota] Counter unavailable, allowing call",
			slog.String("error", err.Error()))
		return true, nil
	}

	if used > l.dailyLimit {
		if err := l.counter.Decr(ctx, key); err != nil {
			slog.Warn("[Quota] Failed to release reservation", slog.String("error", err.Error()))
		}
		return false, nil
	}
	return true, nil
}

func (l *Limiter) waitForSlot(ctx context.Context) error {
	for {
		l.mu.Lock()

		now := l.now()
		var delay time.Duration
		if l.interval > 0 && !l.lastCall.IsZero() {
			delay = l.lastCall.Add(l.interval).Sub(now)
		}

		if delay <= 0 {
			l.lastCall = now
			l.mu.Unlock()
			return nil
		}

		l.mu.Unlock()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// MemoryCounter keeps counts in process. Only the most recent key is
// retained since keys roll over daily.
type MemoryCounter struct {
	mu     sync.Mutex
	key    string
	counts int64
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{}
}

func (m *MemoryCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key != key {
		m.key = key
		m.counts = 0
	}
	m.counts++
	return m.counts, nil
}

func (m *MemoryCounter) Decr(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key == key && m.counts > 0 {
		m.counts--
	}
	return nil
}
