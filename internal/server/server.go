package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/jonathan/job-tracker/internal/config"
	"github.com/jonathan/job-tracker/internal/pipeline"
	"github.com/jonathan/job-tracker/internal/server/middleware"
	"github.com/jonathan/job-tracker/internal/server/ratelimit"
	"github.com/jonathan/job-tracker/internal/types"
)

// Store is the persistence the HTTP API reads and writes.
type Store interface {
	pipeline.Store

	ListEmailEvents(ctx context.Context, filter types.EventFilter) ([]types.EmailEvent, error)
	MarkEventReviewed(ctx context.Context, id uuid.UUID, label *types.Label) (*types.EmailEvent, error)
	GetEmailSummary(ctx context.Context, userID uuid.UUID) (*types.EmailSummary, error)

	CreateApplication(ctx context.Context, app *types.JobApplication) error
	GetApplication(ctx context.Context, id uuid.UUID) (*types.JobApplication, error)
	ListApplications(ctx context.Context, filter types.ApplicationFilter) ([]types.JobApplication, error)
	SetApplicationStatus(ctx context.Context, appID uuid.UUID, to types.Status) (*types.JobApplication, error)

	UpsertMailConnection(ctx context.Context, c *types.MailConnection) error
	DeleteMailConnection(ctx context.Context, userID uuid.UUID) error

	ListSyncRuns(ctx context.Context, userID uuid.UUID, limit int) ([]types.SyncSummary, error)
	Ping(ctx context.Context) error
}

// TokenSealer encrypts OAuth tokens for storage on a mail connection.
type TokenSealer interface {
	SealToken(userID uuid.UUID, token *oauth2.Token) ([]byte, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	store       Store
	service     *pipeline.Service
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService

	tokens             TokenSealer
	setIMAPPassword    func(account, password string) error
	deleteIMAPPassword func(account string) error

	syncMu  sync.Mutex
	syncing map[uuid.UUID]bool

	now func() time.Time
}

// Config holds server configuration
type Config struct {
	Port int
	// RateLimit defaults to ratelimit.LoadConfig() when nil
	RateLimit *ratelimit.Config
	// JWT enables bearer-token authentication when set
	JWT *config.JWTConfig
	// Tokens seals Gmail refresh tokens submitted with a connection
	Tokens TokenSealer
	// SetIMAPPassword stores IMAP passwords submitted with a connection
	SetIMAPPassword func(account, password string) error
	// DeleteIMAPPassword removes the password of a deleted IMAP connection
	DeleteIMAPPassword func(account string) error
}

// New creates a new server instance
func New(cfg Config, store Store, service *pipeline.Service) *Server {
	s := &Server{
		store:              store,
		service:            service,
		tokens:             cfg.Tokens,
		setIMAPPassword:    cfg.SetIMAPPassword,
		deleteIMAPPassword: cfg.DeleteIMAPPassword,
		syncing:            make(map[uuid.UUID]bool),
		now:                time.Now,
	}

	rlConfig := cfg.RateLimit
	if rlConfig == nil {
		rlConfig = ratelimit.LoadConfig()
	}
	s.rateLimiter = ratelimit.NewLimiter(rlConfig)

	if cfg.JWT != nil {
		s.jwtService = NewJWTService(cfg.JWT)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute, // Long timeout for streamed syncs
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	// Single-email operations
	mux.HandleFunc("POST /classify", s.handleClassify)
	mux.HandleFunc("POST /users/{user_id}/match", s.handleMatchPreview)

	// Sync
	mux.HandleFunc("POST /users/{user_id}/sync", s.handleSync)
	mux.HandleFunc("POST /users/{user_id}/sync/stream", s.handleSyncStream)
	mux.HandleFunc("GET /users/{user_id}/sync-runs", s.handleListSyncRuns)

	// Email events
	mux.HandleFunc("GET /users/{user_id}/events", s.handleListEvents)
	mux.HandleFunc("GET /users/{user_id}/summary", s.handleSummary)
	mux.HandleFunc("POST /events/{id}/review", s.handleReviewEvent)
	mux.HandleFunc("POST /events/{id}/process", s.handleProcessEvent)

	// Applications
	mux.HandleFunc("GET /users/{user_id}/applications", s.handleListApplications)
	mux.HandleFunc("POST /users/{user_id}/applications", s.handleCreateApplication)
	mux.HandleFunc("GET /applications/{id}", s.handleGetApplication)
	mux.HandleFunc("PUT /applications/{id}/status", s.handleUpdateApplicationStatus)

	// Mail connection
	mux.HandleFunc("GET /users/{user_id}/connection", s.handleGetConnection)
	mux.HandleFunc("PUT /users/{user_id}/connection", s.handlePutConnection)
	mux.HandleFunc("DELETE /users/{user_id}/connection", s.handleDeleteConnection)

	var h http.Handler = mux
	if s.jwtService != nil {
		h = middleware.AuthMiddleware(s.jwtService.AsTokenValidator(), "/health")(h)
	}
	return s.withRateLimit(s.withLogging(s.withCORS(h)))
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.rateLimiter.Stop()

	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

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

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the logging middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("[%s] %s %d in %v (%s)", r.Method, r.URL.Path, rec.status, time.Since(start), r.RemoteAddr)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// errorFrom writes err with the status HTTPStatus maps it to.
func (s *Server) errorFrom(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("[server] internal error: %v", err)
		s.errorResponse(w, status, "Database error: "+err.Error())
		return
	}
	s.errorResponse(w, status, err.Error())
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr; X-Forwarded-For is not trusted.
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
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d Reset=%s",
		info.Limit, info.Remaining, info.ResetTime.Format(time.RFC3339))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
