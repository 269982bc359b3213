// Package ratelimit implements a process-local fixed-window request counter.
// State lives for the process lifetime only; running more than one instance
// needs an external shared counter instead.
package ratelimit

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

type clientWindow struct {
	count   int
	resetAt time.Time
}

type Limiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	clients map[string]*clientWindow
	now     func() time.Time // Overridable in tests
}

func NewLimiter(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:     max,
		window:  window,
		clients: make(map[string]*clientWindow),
		now:     time.Now,
	}
}

// Allow reports whether the client identified by key may make another request.
// The check and increment happen under one lock hold so two concurrent
// requests on the same key cannot both pass the threshold. Stale keys are
// never evicted; the map grows with the number of distinct clients seen.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	window, ok := l.clients[key]
	if !ok || now.After(window.resetAt) {
		l.clients[key] = &clientWindow{count: 1, resetAt: now.Add(l.window)}
		return true
	}

	if window.count >= l.max {
		return false
	}

	window.count++
	return true
}

// KeyFromRequest derives the rate-limit key from the client address headers.
// All clients without an identifiable address share the "unknown" bucket.
func KeyFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return "unknown"
}
