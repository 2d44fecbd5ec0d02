package server

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Sternrassler/quotegate/pkg/fetcher"
	"github.com/Sternrassler/quotegate/pkg/logging"
)

// CorrelationHeader carries the request correlation ID in both directions.
const CorrelationHeader = "X-Correlation-ID"

const maxCorrelationIDLen = 128

// correlationID reuses a caller-supplied ID or generates one, echoes it and
// stores a request logger carrying it in the context.
func correlationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationHeader)
		if id == "" || len(id) > maxCorrelationIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(CorrelationHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithCorrelationID(r.Context(), id)))
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log := logging.Annotate(r.Context(), s.log)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// ipRateLimit counts every request against the client IP and exposes the
// quota in X-RateLimit-* headers.
func (s *Server) ipRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := s.limiter.CheckClient(r.Context(), clientIP(r))

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt(time.Now()).UnixMilli(), 10))

		if !d.Allowed {
			retryAfter := d.RetryAfterSeconds()
			h.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":      "Too many requests",
				"message":    fmt.Sprintf("Rate limit exceeded. Max %d requests %s.", d.Limit, per(s.limiter.Rules().IP.Window)),
				"retryAfter": retryAfter,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// symbolRateLimit counts requests per normalized ticker. Unparseable
// symbols pass through so the handler can reject them.
func (s *Server) symbolRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := chi.URLParam(r, "symbol")
		ticker, err := fetcher.NormalizeSymbol(symbol)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		d := s.limiter.CheckSymbol(r.Context(), ticker)
		if !d.Allowed {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":   "Too many requests for this symbol",
				"message": fmt.Sprintf("Rate limit exceeded for symbol %s. Max %d requests %s.", symbol, d.Limit, per(s.limiter.Rules().Symbol.Window)),
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func per(window time.Duration) string {
	switch window {
	case time.Minute:
		return "per minute"
	case time.Hour:
		return "per hour"
	default:
		return "per " + window.String()
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
