package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Server is the HTTP front of the classifier service.
type Server struct {
	server *http.Server
	config ServerConfig
}

// ServerConfig holds server settings.
type ServerConfig struct {
	Port           int
	Timeout        time.Duration
	AllowedOrigins []string
}

// DefaultServerConfig returns sensible defaults. The timeout is generous
// because /api/train runs a full training pass inline.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8080,
		Timeout:        10 * time.Minute,
		AllowedOrigins: []string{"*"},
	}
}

// NewServer builds the routing table and middleware chain around svc.
func NewServer(config ServerConfig, svc *Service, hub *Hub) *Server {
	mux := http.NewServeMux()
	RegisterHandlers(mux, svc)
	if hub != nil {
		mux.HandleFunc("GET /ws/progress", hub.HandleWS)
	}

	chain := Chain(
		RecoveryMiddleware,
		LoggerMiddleware,
		CORSMiddleware(config.AllowedOrigins),
		TimeoutMiddleware(config.Timeout),
	)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      chain(mux),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: config.Timeout,
			IdleTimeout:  120 * time.Second,
		},
		config: config,
	}
}

// Start blocks serving requests.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
