package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"garage/internal/config"
	"garage/internal/database"
	"garage/internal/domain"
	"garage/internal/export"
	"garage/internal/metrics"
	"garage/internal/service"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the service request lifecycle over HTTP.
type HTTPServer struct {
	cfg       config.APIConfig
	requests  *service.RequestService
	progress  *service.ProgressService
	exporter  *export.Exporter
	rateStore domain.RateLimitStore
	server    *http.Server
	auth      *HTTPAuth
	logger    zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	requests *service.RequestService,
	progress *service.ProgressService,
	exporter *export.Exporter,
	rateStore domain.RateLimitStore,
	logger zerolog.Logger,
) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:       cfg,
		requests:  requests,
		progress:  progress,
		exporter:  exporter,
		rateStore: rateStore,
		logger:    logger.With().Str("component", "http_api").Logger(),
	}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/requests", srv.handleRequests)
	mux.HandleFunc("/api/v1/requests/export", srv.handleExport)
	mux.HandleFunc("/api/v1/requests/", srv.handleRequestByID)
	mux.HandleFunc("/health", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the full middleware chain, used by tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRequestByID dispatches /api/v1/requests/{id}[/action].
func (s *HTTPServer) handleRequestByID(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/v1/requests/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	parts := strings.SplitN(rest, "/", 2)

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch action {
	case "":
		s.handleGetRequest(w, r, id)
	case "transition":
		s.handleTransition(w, r, id)
	case "assign":
		s.handleAssign(w, r, id)
	case "payment":
		s.handlePayment(w, r, id)
	case "history":
		s.handleHistory(w, r, id)
	case "progress":
		s.handleProgress(w, r, id)
	case "photos":
		s.handlePhotos(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// checkActorWriteLimit throttles mutating calls per actor through the
// shared rate-limit store. Store errors fail open.
func (s *HTTPServer) checkActorWriteLimit(ctx context.Context, actorID int64) bool {
	if s.rateStore == nil || actorID == 0 {
		return true
	}

	limit := s.cfg.RateLimit.ActorWrites
	window := time.Duration(s.cfg.RateLimit.ActorWindow) * time.Second
	if limit <= 0 || window <= 0 {
		return true
	}

	allowed, err := s.rateStore.CheckRateLimit(ctx, actorID, limit, window)
	if err != nil {
		s.logger.Warn().Err(err).Int64("actor_id", actorID).Msg("rate limit check failed")
		return true
	}
	return allowed
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(endpointLabel(r))
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// endpointLabel collapses per-request paths into a bounded label set.
func endpointLabel(r *http.Request) string {
	path := r.URL.Path
	if !strings.HasPrefix(path, "/api/v1/requests") {
		return path
	}
	rest := strings.TrimPrefix(path, "/api/v1/requests")
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		return "/api/v1/requests"
	}
	if rest == "export" {
		return "/api/v1/requests/export"
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) == 2 {
		return "/api/v1/requests/{id}/" + parts[1]
	}
	return "/api/v1/requests/{id}"
}

// writeServiceError maps engine errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, database.ErrConcurrentModification):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrInvalidTransition),
		errors.Is(err, database.ErrMissingField),
		errors.Is(err, database.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, database.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, database.ErrUploadFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
