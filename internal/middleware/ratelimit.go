package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/templui/evidencekit/internal/ctxkeys"
	"github.com/templui/evidencekit/internal/metrics"
)

// UploadLimiter is a sliding-window counter keyed by caller. Stale keys are
// swept lazily, at most once per window.
type UploadLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
}

func NewUploadLimiter(limit int, window time.Duration) *UploadLimiter {
	return &UploadLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

// Allow records a hit for key and reports whether it fits in the window
func (l *UploadLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	recent := prune(l.hits[key], cutoff)
	if len(recent) >= l.limit {
		l.hits[key] = recent
		return false
	}
	l.hits[key] = append(recent, now)
	return true
}

// Keys reports how many callers are tracked
func (l *UploadLimiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

func (l *UploadLimiter) sweep(cutoff time.Time) {
	for key, hits := range l.hits {
		if len(prune(hits, cutoff)) == 0 {
			delete(l.hits, key)
		}
	}
}

// prune drops hits at or before cutoff; hits are in ascending order.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

// RateLimit allows limit uploads per window per caller. Authenticated
// requests are counted per user so one account cannot spread its writes over
// several addresses; anonymous ones fall back to the client IP.
func RateLimit(limit int, window time.Duration) func(http.HandlerFunc) http.HandlerFunc {
	limiter := NewUploadLimiter(limit, window)

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := callerKey(r)
			if !limiter.Allow(key) {
				kind, _, _ := strings.Cut(key, ":")
				metrics.RateLimited.WithLabelValues(kind).Inc()
				slog.Warn("upload rate limit exceeded", "caller", key, "path", r.URL.Path)
				w.Header().Set("Retry-After", retryAfter(limiter.window))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"too many requests"}`))
				return
			}
			next(w, r)
		}
	}
}

func callerKey(r *http.Request) string {
	session := ctxkeys.Session(r.Context())
	if session.Authenticated() {
		return "user:" + session.UserID
	}
	return "ip:" + clientIP(r)
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func retryAfter(window time.Duration) string {
	secs := int(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
