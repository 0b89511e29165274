// Package ratelimit throttles API requests per client with token buckets.
package ratelimit

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"mercator-hq/fieldguard/pkg/config"
	"mercator-hq/fieldguard/pkg/server/auth"
)

// KeyFunc identifies the client of a request.
type KeyFunc func(r *http.Request) string

// ClientKey identifies authenticated requests by API key name and all
// others by remote IP.
func ClientKey(r *http.Request) string {
	if info, ok := auth.KeyFromContext(r.Context()); ok {
		return "key:" + info.Name
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// Limiter keeps one bucket per client and evicts buckets idle for longer
// than the idle timeout.
type Limiter struct {
	rate    float64
	burst   int64
	idle    time.Duration
	keyFunc KeyFunc
	logger  *slog.Logger

	mu        sync.Mutex
	buckets   map[string]*TokenBucket
	lastSweep time.Time
}

// New creates a limiter allowing rate requests per second per client with
// bursts of burst.
func New(rate float64, burst int, idle time.Duration, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		rate:      rate,
		burst:     int64(burst),
		idle:      idle,
		keyFunc:   ClientKey,
		logger:    logger.With("component", "ratelimit"),
		buckets:   make(map[string]*TokenBucket),
		lastSweep: time.Now(),
	}
}

// FromConfig creates a limiter from the server rate limit section.
func FromConfig(cfg *config.RateLimitConfig, logger *slog.Logger) *Limiter {
	return New(cfg.RequestsPerSecond, cfg.Burst, cfg.IdleTimeout, logger)
}

// WithKeyFunc replaces the client identification.
func (l *Limiter) WithKeyFunc(fn KeyFunc) *Limiter {
	l.keyFunc = fn
	return l
}

// Allow takes a token for client.
func (l *Limiter) Allow(client string) (allowed bool, remaining int64, retryAfter time.Duration) {
	bucket := l.bucket(client)
	allowed, remaining = bucket.Take()
	if !allowed {
		retryAfter = bucket.RetryAfter()
	}
	return allowed, remaining, retryAfter
}

// Clients returns the number of tracked clients.
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) bucket(client string) *TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if l.idle > 0 && now.Sub(l.lastSweep) >= l.idle {
		for k, b := range l.buckets {
			if now.Sub(b.idleSince()) >= l.idle {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[client]
	if !ok {
		b = NewTokenBucket(l.burst, l.rate)
		l.buckets[client] = b
	}
	return b
}

// Handle rejects requests over the limit with 429.
func (l *Limiter) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := l.keyFunc(r)
		allowed, remaining, retryAfter := l.Allow(client)

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(l.burst, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if allowed {
			next.ServeHTTP(w, r)
			return
		}

		l.logger.Debug("rate limit exceeded", "client", client, "path", r.URL.Path)
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
	})
}
