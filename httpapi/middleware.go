package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type contextKey string

const requestIDKey contextKey = "request-id"

// RequestIDFromContext returns the request ID stored by requestLogger, or
// "" if none is present.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestLogger assigns each inbound request a request ID (propagated via
// the X-Request-ID header, generated with google/uuid if absent), and
// logs method/path/status/duration through logr once the handler
// completes — grounded on the teacher's RequestLogger middleware,
// generalized from raw JSON log.Printf calls to structured logr fields so
// it composes with whatever logr sink the process is configured with
// (zapr in production, testr in tests).
func requestLogger(log logr.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}
			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			r = r.WithContext(ctx)
			w.Header().Set("X-Request-ID", requestID)

			wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			fields := []any{
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.status,
				"duration_ms", duration.Milliseconds(),
				"remote_addr", r.RemoteAddr,
			}
			switch {
			case wrapped.status >= 500:
				log.Error(nil, "request failed", fields...)
			case wrapped.status >= 400:
				log.Info("request rejected", fields...)
			default:
				log.Info("request handled", fields...)
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// originThrottle is an optional per-client-IP inbound rate limiter,
// protecting this service's own HTTP surface from being overwhelmed
// (distinct from the authenticated HTTP client's own policies, which
// spec.md §6 treats as out of scope). Built on golang.org/x/time/rate's
// token bucket rather than the teacher's hand-rolled atomic bucket, since
// x/time/rate is already part of the pack's dependency surface and
// implements the same algorithm without reinventing it.
type originThrottle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

func newOriginThrottle(rps float64, burst int) *originThrottle {
	return &originThrottle{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

func (t *originThrottle) allow(key string) bool {
	t.mu.Lock()
	l, ok := t.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(t.rps), t.burst)
		t.limiters[key] = l
	}
	t.mu.Unlock()
	return l.Allow()
}

func rateLimited(throttle *originThrottle) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if !throttle.allow(key) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	return r.RemoteAddr
}

func chain(h http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
