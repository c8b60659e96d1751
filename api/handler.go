// Package api provides the HTTP surface for a Cadence service: event push
// routes for transports that deliver over HTTP, internal job routes for the
// scheduler, and introspection.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/xraph/cadence"
	"github.com/xraph/cadence/dispatch"
	"github.com/xraph/cadence/signature"
)

// maxEventBody bounds inbound envelope reads.
const maxEventBody = 1 << 20 // 1 MiB

// Handler is the root HTTP handler for a Cadence service.
type Handler struct {
	cadence *cadence.Cadence
	secret  string
	logger  *slog.Logger
	mux     *http.ServeMux
}

// NewHandler creates a new service handler. secret authenticates internal
// job routes; empty disables the check (local development only).
func NewHandler(c *cadence.Cadence, secret string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		cadence: c,
		secret:  secret,
		logger:  logger,
		mux:     http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /healthz", h.health)
	h.mux.HandleFunc("GET /subscriptions", h.listSubscriptions)
	h.mux.HandleFunc("POST /events/{binding}", h.pushEvent)
	h.mux.HandleFunc("POST /internal/jobs/{name}", h.runJob)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.withMiddleware(h.mux).ServeHTTP(w, r)
}

func (h *Handler) withMiddleware(next http.Handler) http.Handler {
	return h.panicRecovery(h.logging(next))
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.logger.Info("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *Handler) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.cadence.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listSubscriptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.cadence.Bindings())
}

// pushEvent accepts an envelope delivered over HTTP push. The status code is
// the redelivery contract: 2xx acknowledges (processed or permanently
// dropped), 503 asks the pusher to redeliver.
func (h *Handler) pushEvent(w http.ResponseWriter, r *http.Request) {
	route := "/events/" + r.PathValue("binding")

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	defer r.Body.Close()

	outcome, ok := h.cadence.DispatchRoute(r.Context(), route, raw)
	if !ok {
		writeError(w, http.StatusNotFound, "no subscription for route "+route)
		return
	}

	status := http.StatusOK
	if outcome == dispatch.Retry {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"outcome": outcome.String()})
}

// runJob executes a scheduler-triggered job. Requests must carry a valid
// HMAC signature when a secret is configured.
func (h *Handler) runJob(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	defer r.Body.Close()

	if !h.verifySignature(r, raw) {
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	name := r.PathValue("name")
	affected, err := h.cadence.RunJob(r.Context(), name)
	if err != nil {
		status, msg := mapError(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"job":      name,
		"affected": affected,
	})
}

func (h *Handler) verifySignature(r *http.Request, body []byte) bool {
	if h.secret == "" {
		return true
	}
	ts, err := strconv.ParseInt(r.Header.Get(signature.HeaderTimestamp), 10, 64)
	if err != nil {
		return false
	}
	sig := r.Header.Get(signature.HeaderSignature)
	return signature.VerifyWithTolerance(body, h.secret, ts, sig, signature.DefaultTolerance)
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// JSON helpers.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
