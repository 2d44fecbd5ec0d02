package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/quotegate/pkg/fetcher"
	"github.com/Sternrassler/quotegate/pkg/logging"
	"github.com/Sternrassler/quotegate/pkg/ratelimit"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Success: false, Message: message})
}

// statusFor maps a fetch failure to its HTTP status.
func statusFor(err error) int {
	var fe *fetcher.Error
	if !errors.As(err, &fe) {
		return http.StatusInternalServerError
	}

	switch fe.Kind {
	case fetcher.KindClientRequest:
		return http.StatusBadRequest
	case fetcher.KindRateLimited:
		return http.StatusTooManyRequests
	case fetcher.KindUpstreamUnavailable:
		if errors.Is(err, fetcher.ErrPriceNotFound) {
			return http.StatusNotFound
		}
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as an ErrorResponse. Unclassified errors are logged
// and hidden behind a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := logging.Annotate(r.Context(), s.log)

	var fe *fetcher.Error
	if !errors.As(err, &fe) {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeMessage(w, status, "Internal Server Error")
		return
	}

	if fe.Kind == fetcher.KindRateLimited && fe.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(ratelimit.CeilSeconds(fe.RetryAfter), 10))
	}

	logger.Warn().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("Request rejected")
	writeMessage(w, status, fe.PublicMessage())
}
