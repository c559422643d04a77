// Package ratelimit throttles HTTP clients with per-client token buckets.
package ratelimit

import (
	"sync"
	"time"
)

// bucket is a token bucket refilled continuously at rate tokens per second
type bucket struct {
	capacity   float64
	rate       float64
	tokens     float64
	lastRefill time.Time
	lastSeen   time.Time
}

func (b *bucket) refill(now time.Time) {
	b.tokens = min(b.capacity, b.tokens+now.Sub(b.lastRefill).Seconds()*b.rate)
	b.lastRefill = now
}

// untilFull reports how long the bucket needs to refill completely
func (b *bucket) untilFull() time.Duration {
	missing := b.capacity - b.tokens
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / b.rate * float64(time.Second))
}

// Info describes the limit applied to one request
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter tracks a bucket per client and rule
type Limiter struct {
	cfg *Config
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a limiter. A nil config uses DefaultConfig. Idle buckets
// are swept in the background until Stop is called.
func NewLimiter(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	l := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	if cfg.Enabled && cfg.CleanupInterval > 0 {
		go l.sweepLoop(cfg.CleanupInterval)
	}
	return l
}

// Allow consumes a token for the client on the rule matching method and path
func (l *Limiter) Allow(clientID, method, path string) Info {
	if !l.cfg.Enabled || l.cfg.Allowlist[clientID] {
		return Info{Allowed: true}
	}
	if l.cfg.Blocklist[clientID] {
		return Info{}
	}

	rule := l.cfg.Match(method, path)
	if rule.Limit <= 0 {
		return Info{Allowed: true}
	}

	key := clientID + " " + rule.Method + " " + rule.Path
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		capacity := rule.Burst
		if capacity <= 0 {
			capacity = rule.Limit
		}
		b = &bucket{
			capacity:   float64(capacity),
			rate:       float64(rule.Limit) / rule.Window.Seconds(),
			tokens:     float64(capacity),
			lastRefill: now,
		}
		l.buckets[key] = b
	}
	b.lastSeen = now
	b.refill(now)

	info := Info{Limit: rule.Limit}
	if b.tokens >= 1 {
		b.tokens--
		info.Allowed = true
	} else {
		info.RetryAfter = time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
	}
	info.Remaining = int(b.tokens)
	info.ResetTime = now.Add(b.untilFull())
	return info
}

func (l *Limiter) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep(l.now().Add(-time.Hour))
		case <-l.stop:
			return
		}
	}
}

// sweep drops buckets not used since cutoff
func (l *Limiter) sweep(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Stop ends the background sweep
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}
