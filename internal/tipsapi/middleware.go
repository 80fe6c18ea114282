package tipsapi

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/rafaeljc/tipsengine/internal/logger"
	"github.com/rafaeljc/tipsengine/internal/observability"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

// maxRequestIDLength caps caller supplied ids before they reach the logs.
const maxRequestIDLength = 128

// RequestID propagates the caller's X-Request-Id or assigns a UUID, and
// stores it where chi's middleware.GetReqID finds it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger injects a request-scoped logger, logs each completed request
// and records the API metrics by route pattern.
func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx, reqLog := logger.With(logger.WithContext(r.Context(), a.logger),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		duration := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		// The pattern is only known after routing.
		route := "unmatched"
		if rc := chi.RouteContext(ctx); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		observability.APIReqDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())
		observability.APIReqTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()

		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}

		reqLog.Log(ctx, level, "HTTP request completed",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("duration", duration),
			slog.String("remote_ip", r.RemoteAddr),
		)
	})
}

// authenticateAPIKey accepts "Authorization: Bearer <key>" or "X-API-Key"
// and compares the key's SHA-256 against the configured hash in constant time.
func (a *API) authenticateAPIKey(next http.Handler) http.Handler {
	expected, err := hex.DecodeString(a.cfg.APIKeyHash)
	if err != nil || len(expected) != sha256.Size {
		panic("tipsapi: API key hash must be a hex encoded SHA-256 digest")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
				key = strings.TrimSpace(token)
			}
		}

		if key == "" {
			writeError(w, r, http.StatusUnauthorized, "ERR_UNAUTHORIZED", "API key is required")
			return
		}

		sum := sha256.Sum256([]byte(key))
		if subtle.ConstantTimeCompare(sum[:], expected) != 1 {
			logger.FromContext(r.Context()).Warn("rejected admin request with invalid API key")
			writeError(w, r, http.StatusUnauthorized, "ERR_UNAUTHORIZED", "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Code: code, Message: message})
}
