package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"fintrack/internal/log"
)

// Limiter counts requests per client key in fixed one-minute windows.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*window
	now     func() time.Time

	limit         int
	window        time.Duration
	mutationsOnly bool

	rejected     atomic.Int64
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	logger       *log.Logger
}

type window struct {
	start    time.Time
	requests int
}

type Config struct {
	Name              string
	RequestsPerMinute int
	CleanupInterval   time.Duration
	// MutationsOnly leaves GET and HEAD requests unlimited.
	MutationsOnly bool
}

func DefaultConfig() Config {
	return Config{
		Name:              "default",
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
		MutationsOnly:     true,
	}
}

func NewLimiter(config Config, logger *log.Logger) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.Name == "" {
		config.Name = def.Name
	}
	l := &Limiter{
		clients:       make(map[string]*window),
		now:           time.Now,
		limit:         config.RequestsPerMinute,
		window:        time.Minute,
		mutationsOnly: config.MutationsOnly,
		stopCleanup:   make(chan struct{}),
		logger:        logger.WithComponent(log.ComponentRateLimit).With("limiter", config.Name),
	}
	go l.cleanupLoop(config.CleanupInterval)
	return l
}

// Allow records one request for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.clients[key]
	if !ok || now.Sub(w.start) >= l.window {
		l.clients[key] = &window{start: now, requests: 1}
		return true
	}
	w.requests++
	return w.requests <= l.limit
}

// RetryAfter is the number of seconds until key's window resets.
func (l *Limiter) RetryAfter(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.clients[key]
	if !ok {
		return 0
	}
	left := l.window - l.now().Sub(w.start)
	if left <= 0 {
		return 0
	}
	return int(left.Round(time.Second) / time.Second)
}

func (l *Limiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-2 * l.window)
	for key, w := range l.clients {
		if w.start.Before(cutoff) {
			delete(l.clients, key)
		}
	}
}

func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *Limiter) Rejected() int64 {
	return l.rejected.Load()
}

func (l *Limiter) Stop() {
	l.shutdownOnce.Do(func() { close(l.stopCleanup) })
}

// Middleware rejects requests over the limit. onLimit renders the rejection;
// when nil a plain 429 is written.
func (l *Limiter) Middleware(key func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.mutationsOnly && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
				next.ServeHTTP(w, r)
				return
			}
			k := key(r)
			if l.Allow(k) {
				next.ServeHTTP(w, r)
				return
			}
			l.rejected.Add(1)
			l.logger.Warn("Rate limit exceeded",
				log.FieldClientIP, k,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", strconv.Itoa(max(1, l.RetryAfter(k))))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "Too many requests, slow down.", http.StatusTooManyRequests)
		})
	}
}
