// Package api serves the indexer's operational endpoints: liveness and
// replay progress. It is not a query API over the indexed entities.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/yield-indexer/internal/circuitbreaker"
	"github.com/yield-indexer/internal/logging"
	"github.com/yield-indexer/internal/worker"
)

// StatusProvider reports replay progress
type StatusProvider interface {
	Status() worker.Status
}

// BreakerProvider exposes a circuit breaker guarding an optional dependency
type BreakerProvider interface {
	Breaker() *circuitbreaker.CircuitBreaker
}

// Server represents the ops HTTP server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	status     StatusProvider
	breakers   []BreakerProvider
	components map[string]func() interface{}
	config     *ServerConfig
	logger     *logging.Logger
	started    time.Time
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// StaleAfter marks the indexer unhealthy when no poll completed for this long; zero disables the check
	StaleAfter time.Duration
}

// NewServer creates a new ops server instance.
func NewServer(config *ServerConfig, status StatusProvider, logger *logging.Logger, breakers ...BreakerProvider) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	s := &Server{
		router:     mux.NewRouter(),
		status:     status,
		breakers:   breakers,
		components: make(map[string]func() interface{}),
		config:     config,
		logger:     logger.ForSubsystem("api"),
		started:    time.Now().UTC(),
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CompressionMiddleware)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, fmt.Sprintf("no route for %s", r.URL.Path))
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// AddComponent reports snapshot() under name in /status
func (s *Server) AddComponent(name string, snapshot func() interface{}) {
	s.components[name] = snapshot
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// HealthResponse is the /healthz body
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	RunID   string `json:"runId"`
	Reason  string `json:"reason,omitempty"`
}

// StatusResponse is the /status body
type StatusResponse struct {
	worker.Status
	Uptime     string                 `json:"uptime"`
	Breakers   []circuitbreaker.Stats `json:"breakers,omitempty"`
	Components map[string]interface{} `json:"components,omitempty"`
}

// handleHealth reports 503 once the replay loop stopped or went stale.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.status.Status()
	resp := HealthResponse{Status: "healthy", Service: "yield-indexer", RunID: st.RunID}

	switch {
	case !st.Running:
		resp.Status, resp.Reason = "unhealthy", "indexer is not running"
	case s.config.StaleAfter > 0 && !st.LastPoll.IsZero() && time.Since(st.LastPoll) > s.config.StaleAfter:
		resp.Status, resp.Reason = "unhealthy", fmt.Sprintf("no poll since %s", st.LastPoll.Format(time.RFC3339))
	}

	code := http.StatusOK
	if resp.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status: s.status.Status(),
		Uptime: time.Since(s.started).Truncate(time.Second).String(),
	}
	for _, b := range s.breakers {
		resp.Breakers = append(resp.Breakers, b.Breaker().GetStats())
	}
	if len(s.components) > 0 {
		resp.Components = make(map[string]interface{}, len(s.components))
		for name, snapshot := range s.components {
			resp.Components[name] = snapshot()
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("starting ops server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down ops server")
	return s.httpServer.Shutdown(ctx)
}
