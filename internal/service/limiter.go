package service

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// DefaultLimiterEntries bounds how many emails a LoginLimiter tracks at once.
const DefaultLimiterEntries = 10_000

// LoginLimiter throttles failed login attempts per email. At most maxEntries
// emails are tracked and the least recently seen one is dropped first.
// Entries idle for longer than ttl expire.
type LoginLimiter struct {
	mu       sync.Mutex
	attempts *expirable.LRU[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// NewLoginLimiter allows burst attempts per email refilled at perSecond.
// maxEntries <= 0 uses DefaultLimiterEntries.
func NewLoginLimiter(perSecond float64, burst int, ttl time.Duration, maxEntries int) *LoginLimiter {
	if maxEntries <= 0 {
		maxEntries = DefaultLimiterEntries
	}

	return &LoginLimiter{
		attempts: expirable.NewLRU[string, *rate.Limiter](maxEntries, nil, ttl),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow consumes one attempt for email and reports whether it was available.
func (l *LoginLimiter) Allow(email string) bool {
	key := limiterKey(email)

	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.attempts.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
	}
	// Re-adding renews the idle deadline and marks the key as recently used.
	l.attempts.Add(key, lim)

	return lim.AllowN(l.now(), 1)
}

// Reset forgets email after a successful login, so only failures accumulate.
func (l *LoginLimiter) Reset(email string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.attempts.Remove(limiterKey(email))
}

func (l *LoginLimiter) len() int {
	return l.attempts.Len()
}

func limiterKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
