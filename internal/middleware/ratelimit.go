package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

type window struct {
	count   int
	resetAt time.Time
}

// RateLimiter allows limit requests per caller in each fixed window. Callers are keyed by user id
// when the request is authenticated and by remote address otherwise.
type RateLimiter struct {
	mu      sync.Mutex
	callers map[string]*window
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	rl := &RateLimiter{
		callers: make(map[string]*window),
		limit:   limit,
		window:  period,
		now:     time.Now,
	}

	go func() {
		for range time.Tick(period) {
			rl.sweep()
		}
	}()

	return rl
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, w := range rl.callers {
		if now.After(w.resetAt) {
			delete(rl.callers, key)
		}
	}
}

// allow counts one request for key and reports whether it is within the limit, plus the time
// left until the window resets.
func (rl *RateLimiter) allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.callers[key]
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(rl.window)}
		rl.callers[key] = w
	}
	w.count++
	return w.count <= rl.limit, w.resetAt.Sub(now)
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if userID := GetUserID(r.Context()); userID != uuid.Nil {
			key = userID.String()
		}

		ok, wait := rl.allow(key)
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.", r)
			return
		}

		next.ServeHTTP(w, r)
	})
}
