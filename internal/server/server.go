// Package server provides the HTTP REST API for the hiring platform.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jonathan/perfect-fit/internal/applications"
	"github.com/jonathan/perfect-fit/internal/assessment"
	"github.com/jonathan/perfect-fit/internal/authoring"
	"github.com/jonathan/perfect-fit/internal/jobroles"
	"github.com/jonathan/perfect-fit/internal/server/middleware"
	"github.com/jonathan/perfect-fit/internal/server/ratelimit"
	"go.uber.org/zap"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the API routes to.
type Deps struct {
	Jobs         *jobroles.Lifecycle
	Applications *applications.Service
	Assessments  *assessment.Pipeline
	Drafts       *authoring.Drafter
	Store        Pinger
	JWT          *JWTService
	RateLimiter  *ratelimit.Limiter
	Log          *zap.Logger
}

// Config holds server configuration
type Config struct {
	Port int
}

// Server represents the HTTP server
type Server struct {
	httpServer   *http.Server
	jobs         *jobroles.Lifecycle
	applications *applications.Service
	assessments  *assessment.Pipeline
	drafts       *authoring.Drafter
	store        Pinger
	jwtService   *JWTService
	rateLimiter  *ratelimit.Limiter
	log          *zap.Logger
}

// New creates a new server instance
func New(cfg Config, deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	limiter := deps.RateLimiter
	if limiter == nil {
		limiter = ratelimit.NewLimiter(nil)
	}
	drafts := deps.Drafts
	if drafts == nil {
		drafts = authoring.New(nil, log)
	}

	s := &Server{
		jobs:         deps.Jobs,
		applications: deps.Applications,
		assessments:  deps.Assessments,
		drafts:       drafts,
		store:        deps.Store,
		jwtService:   deps.JWT,
		rateLimiter:  limiter,
		log:          log,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler builds the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.withRateLimit(s.withLogging(s.withCORS(s.routes())))
}

func (s *Server) routes() *http.ServeMux {
	auth := middleware.AuthMiddleware(s.jwtService.AsTokenValidator())
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	// Job roles
	mux.HandleFunc("GET /jobs/public", s.handleListPublicJobs)
	mux.Handle("POST /jobs", protected(s.handleCreateJob))
	mux.Handle("GET /jobs", protected(s.handleListJobs))
	mux.Handle("GET /jobs/pending", protected(s.handleListPendingJobs))
	mux.Handle("POST /jobs/generate", protected(s.handleGenerateDraft))
	mux.Handle("GET /jobs/{id}", protected(s.handleGetJob))
	mux.Handle("PATCH /jobs/{id}", protected(s.handleEditJob))
	mux.Handle("DELETE /jobs/{id}", protected(s.handleDeleteJob))
	mux.Handle("PATCH /jobs/{id}/approve", protected(s.handleApproveJob))
	mux.Handle("PATCH /jobs/{id}/reject", protected(s.handleRejectJob))
	mux.Handle("PATCH /jobs/{id}/close", protected(s.handleCloseJob))
	mux.Handle("PATCH /jobs/{id}/reopen", protected(s.handleReopenJob))
	mux.Handle("GET /jobs/{id}/approvals", protected(s.handleListApprovals))
	mux.Handle("GET /jobs/{id}/applications", protected(s.handleListJobApplications))

	// Applications
	mux.Handle("POST /applications/{job_id}", protected(s.handleApply))
	mux.Handle("GET /applications/me", protected(s.handleListMyApplications))
	mux.Handle("GET /applications", protected(s.handleListApplications))
	mux.Handle("GET /applications/{app_id}", protected(s.handleGetApplication))
	mux.Handle("PUT /applications/{app_id}/status", protected(s.handleUpdateApplicationStatus))

	// Technical assessments
	mux.Handle("POST /applications/{app_id}/technical-assessment/submit", protected(s.handleSubmitAssessment))
	mux.Handle("GET /applications/{app_id}/technical-assessment", protected(s.handleGetAssessment))

	return mux
}

// Start listens until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.rateLimiter.Stop()
	s.log.Info("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)
		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)

		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status written by downstream handlers.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		}
		if rec.status >= http.StatusInternalServerError {
			s.log.Warn("request completed", fields...)
			return
		}
		s.log.Info("request completed", fields...)
	})
}

// handleHealth reports liveness and store reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// extractClientID extracts the client identifier from the request.
// It uses the IP address from RemoteAddr; forwarded headers are not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "Rate limit exceeded. Please try again later.",
		"code":      "rate_limit_exceeded",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	s.log.Info("rate limit exceeded",
		zap.String("client", s.extractClientID(r)),
		zap.String("path", r.URL.Path),
		zap.Int("limit", info.Limit))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
