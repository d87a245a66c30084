package api

import (
	"net/http"
	"sync"

	"github.com/aneupi/finance-engine/generic"
	"golang.org/x/time/rate"
)

// AdminLimiter keeps one token bucket per administrator.
type AdminLimiter struct {
	mu       sync.Mutex
	limiters map[generic.AdminID]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewAdminLimiter allows rps requests per second per admin with the given
// burst. A non-positive rps disables limiting.
func NewAdminLimiter(rps float64, burst int) *AdminLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &AdminLimiter{
		limiters: make(map[generic.AdminID]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Allow consumes one token of admin's bucket.
func (l *AdminLimiter) Allow(admin generic.AdminID) bool {
	l.mu.Lock()
	lim, ok := l.limiters[admin]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[admin] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Middleware answers 429 once the authenticated admin exhausts the bucket.
// It must run after Authenticator.Middleware.
func (l *AdminLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin, ok := AdminFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, ErrMissingToken.Error())
			return
		}
		if !l.Allow(admin) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
