package security

import (
	"sync"
	"time"
)

// RequestLimiter bounds the request rate per client using a sliding
// one-minute window. Each client key tracks timestamps of its recent
// requests; keys with no requests inside the window are dropped so the
// map does not grow with client churn.
type RequestLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[string][]time.Time
	now     func() time.Time
}

// NewRequestLimiter creates a limiter allowing perMinute requests per
// client key. perMinute must be positive.
func NewRequestLimiter(perMinute int) *RequestLimiter {
	return &RequestLimiter{
		limit:   perMinute,
		window:  time.Minute,
		clients: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow reports whether a request from the given client key is within
// the limit, recording it if so.
func (l *RequestLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	events := l.clients[key]
	i := 0
	for i < len(events) && events[i].Before(cutoff) {
		i++
	}
	events = events[i:]

	if len(events) >= l.limit {
		if len(events) == 0 {
			delete(l.clients, key)
		} else {
			l.clients[key] = events
		}
		return false
	}

	l.clients[key] = append(events, now)
	l.evictIdle(cutoff)
	return true
}

// evictIdle drops client keys whose every event has left the window.
// Called with the mutex held.
func (l *RequestLimiter) evictIdle(cutoff time.Time) {
	for key, events := range l.clients {
		if len(events) == 0 || events[len(events)-1].Before(cutoff) {
			delete(l.clients, key)
		}
	}
}
