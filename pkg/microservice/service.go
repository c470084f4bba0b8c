package microservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// BaseConfig holds common configuration fields for all services.
type BaseConfig struct {
	LogLevel    string `yaml:"log_level"`
	HTTPPort    string `yaml:"http_port"`
	ServiceName string `yaml:"service_name"`
}

// HealthCheck reports the state of whatever the server fronts. The details
// are included in the /healthz body; a non-nil error turns it into a 503.
type HealthCheck func(ctx context.Context) (map[string]interface{}, error)

// BaseServer provides the HTTP plumbing shared by services: listening,
// request ids, request logging, /healthz and graceful shutdown.
type BaseServer struct {
	logger     zerolog.Logger
	httpPort   string
	health     HealthCheck
	httpServer *http.Server
	mux        *http.ServeMux
	actualAddr string
	mu         sync.RWMutex
}

// NewBaseServer creates a server listening on httpPort. A nil health check
// always reports healthy.
func NewBaseServer(logger zerolog.Logger, httpPort string, health HealthCheck) *BaseServer {
	s := &BaseServer{
		logger:   logger.With().Str("component", "HTTPServer").Logger(),
		httpPort: httpPort,
		health:   health,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.httpServer = &http.Server{
		Addr:    httpPort,
		Handler: s.withRequestLogging(s.mux),
	}
	return s
}

// Start begins serving in a background goroutine. Request contexts derive
// from ctx, so lookups still in flight stop waiting once ctx is done.
func (s *BaseServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpPort)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", s.httpPort, err)
	}

	s.mu.Lock()
	s.actualAddr = listener.Addr().String()
	s.mu.Unlock()

	s.httpServer.BaseContext = func(net.Listener) context.Context {
		return s.logger.WithContext(ctx)
	}

	s.logger.Info().Str("address", s.actualAddr).Msg("HTTP server starting to listen")

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	return nil
}

// Shutdown gracefully stops the HTTP server, respecting the provided context's deadline.
func (s *BaseServer) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Error during HTTP server shutdown.")
		return err
	}
	s.logger.Info().Msg("HTTP server stopped.")
	return nil
}

// GetHTTPPort returns the port actually bound, which differs from the
// configured one when it was ":0".
func (s *BaseServer) GetHTTPPort() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, port, err := net.SplitHostPort(s.actualAddr)
	if err != nil {
		return s.httpPort
	}
	return ":" + port
}

// Mux returns the underlying ServeMux.
func (s *BaseServer) Mux() *http.ServeMux {
	return s.mux
}

func (s *BaseServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"status": "ok"}
	status := http.StatusOK
	if s.health != nil {
		details, err := s.health(r.Context())
		for k, v := range details {
			body[k] = v
		}
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Health check failed.")
			body["status"] = "unavailable"
			body["error"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, r, status, body)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode response.")
	}
}
