package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	operatorContextKey contextKey = "operator"

	// operatorEmailHeader carries the authenticated operator identity set by
	// the fronting auth proxy. The service itself keeps no sessions.
	operatorEmailHeader = "X-Auth-Request-Email"
)

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		requestID := uuid.NewString()
		start := time.Now()
		next.ServeHTTP(rec, r)

		event := accessLogEvent(r.URL.Path, rec.statusCode)
		event.
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.statusCode).
			Str("remote_addr", r.RemoteAddr).
			Dur("duration", time.Since(start)).
			Msg("http request completed")
	})
}

// AllowListMiddleware rejects requests whose operator identity is missing
// (401) or not on the configured allow-list (403).
func AllowListMiddleware(allowedEmails []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedEmails))
	for _, email := range allowedEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			allowed[email] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := strings.TrimSpace(r.Header.Get(operatorEmailHeader))
			if email == "" {
				log.Warn().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("request rejected: missing operator identity")
				writeError(w, http.StatusUnauthorized, "missing operator identity")
				return
			}

			if _, ok := allowed[strings.ToLower(email)]; !ok {
				log.Warn().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("operator", email).
					Msg("request rejected: operator not on allow-list")
				writeError(w, http.StatusForbidden, "operator not allowed")
				return
			}

			ctx := context.WithValue(r.Context(), operatorContextKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func operatorFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(operatorContextKey).(string)
	return email, ok && email != ""
}

func accessLogEvent(path string, statusCode int) *zerolog.Event {
	switch {
	case statusCode >= http.StatusInternalServerError:
		return log.Error()
	case statusCode >= http.StatusBadRequest:
		return log.Warn()
	case path == "/health":
		return log.Debug()
	default:
		return log.Info()
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	writeJSON(w, statusCode, map[string]interface{}{
		"status":  "success",
		"message": message,
		"data":    data,
	})
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]interface{}{
		"status": "error",
		"error":  message,
	})
}
