// Package server provides the HTTP capture endpoint that lead forms post to
// during local testing, journaling every submission it receives.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/leadform/internal/db"
	"github.com/jonathan/leadform/internal/identity"
	"github.com/jonathan/leadform/internal/server/ratelimit"
	"github.com/jonathan/leadform/internal/submission"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBodyBytes     = 1 << 20
)

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	journal     db.Journal
	rateLimiter *ratelimit.Limiter
	logger      *zap.Logger
}

// Config holds server configuration
type Config struct {
	Port        int
	DatabaseURL string
	Logger      *zap.Logger
	// Journal overrides the storage selected from DatabaseURL.
	Journal db.Journal
	// RateLimit overrides the environment rate limit configuration.
	RateLimit *ratelimit.Config
}

// New creates a new server instance
func New(ctx context.Context, cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	journal := cfg.Journal
	if journal == nil {
		var err error
		journal, err = openJournal(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
	}

	limits := cfg.RateLimit
	if limits == nil {
		var err error
		if limits, err = ratelimit.LoadConfig(); err != nil {
			journal.Close()
			return nil, fmt.Errorf("failed to load rate limit config: %w", err)
		}
	}

	s := &Server{
		journal:     journal,
		rateLimiter: ratelimit.NewLimiter(limits),
		logger:      logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /submit", s.handleSubmit)
	mux.HandleFunc("GET /submissions", s.handleListSubmissions)
	mux.HandleFunc("GET /submissions/{id}", s.handleGetSubmission)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(mux))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

func openJournal(ctx context.Context, databaseURL string, logger *zap.Logger) (db.Journal, error) {
	if databaseURL == "" {
		logger.Info("no database configured, journaling submissions in memory")
		return db.NewMemory(0), nil
	}
	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// Handler returns the server's root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		s.Close()
		return fmt.Errorf("server error: %w", err)
	}
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.Close()
	s.logger.Info("server stopped")
	return nil
}

// Close releases the rate limiter and the journal.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	s.journal.Close()
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
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
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// handleSubmit records a url-encoded form post. The durable id cookie fills
// the domo_id field when the form left it blank.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.errorFrom(w, &ErrValidation{Field: "body", Message: err.Error()})
		return
	}

	fields := make(map[string][]string, len(r.PostForm))
	for name, values := range r.PostForm {
		fields[name] = append([]string(nil), values...)
	}
	sub := &db.Submission{
		FormName:   r.PostForm.Get(submission.FormNameField),
		RemoteAddr: s.extractClientID(r),
		Fields:     fields,
	}
	if sub.Get(submission.DurableIDField) == "" {
		if did := identity.FromHTTP(r.Cookies()).Get(identity.DurableCookie); did != "" {
			sub.Fields[submission.DurableIDField] = []string{did}
		}
	}

	if err := s.journal.Save(r.Context(), sub); err != nil {
		s.logger.Error("failed to save submission", zap.Error(err))
		s.errorFrom(w, err)
		return
	}

	s.logger.Info("submission captured",
		zap.String("id", sub.ID.String()),
		zap.String("form", sub.FormName),
		zap.String("domo_id", sub.Get(submission.DurableIDField)),
		zap.Int("fields", len(sub.Fields)),
	)
	w.Header().Set("X-Submission-ID", sub.ID.String())
	w.WriteHeader(http.StatusNoContent)
}

// handleListSubmissions returns the most recent submissions, newest first
func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.errorFrom(w, &ErrValidation{Field: "limit", Message: "must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}

	submissions, err := s.journal.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list submissions", zap.Error(err))
		s.errorFrom(w, err)
		return
	}
	if submissions == nil {
		submissions = []db.Submission{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"submissions": submissions,
		"count":       len(submissions),
	})
}

// handleGetSubmission returns one submission by ID
func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		s.errorFrom(w, &ErrValidation{Field: "id", Message: "invalid submission ID"})
		return
	}

	sub, err := s.journal.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get submission", zap.Error(err))
		s.errorFrom(w, err)
		return
	}
	if sub == nil {
		s.errorFrom(w, &ErrNotFound{ID: raw})
		return
	}
	s.jsonResponse(w, http.StatusOK, sub)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("error encoding JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

func (s *Server) errorFrom(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	s.errorResponse(w, status, message)
}

// extractClientID extracts the client identifier from the request.
// It uses the IP address from RemoteAddr.
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
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		retry := int(info.RetryAfter.Seconds())
		response["retry_after"] = retry
		w.Header().Set("Retry-After", strconv.Itoa(retry))
	}

	s.logger.Warn("rate limit exceeded",
		zap.Int("limit", info.Limit),
		zap.Time("reset", info.ResetTime),
	)
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
