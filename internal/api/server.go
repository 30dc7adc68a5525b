package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/onap/policy-clamp-acm/internal/commissioning"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/config"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/database"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/logging"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/metrics"
	"github.com/onap/policy-clamp-acm/internal/instantiation"
	"github.com/onap/policy-clamp-acm/internal/store"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ConnectionChecker reports broker connectivity. *mqtt.Client satisfies it.
type ConnectionChecker interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config        config.APIConfig
	WS            config.WebSocketConfig
	Metrics       config.MetricsConfig
	Logger        *logging.Logger
	Provider      *instantiation.Provider
	Commissioning *commissioning.Service
	Participants  store.ParticipantStore

	// Optional collaborators
	Prometheus *metrics.Metrics
	DB         *database.DB
	MQTT       ConnectionChecker
	Hub        *Hub // If set, the server uses this hub instead of creating its own

	Version string
}

// Server is the HTTP API server of the ACM runtime.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg           config.APIConfig
	wsCfg         config.WebSocketConfig
	metricsCfg    config.MetricsConfig
	logger        *logging.Logger
	provider      *instantiation.Provider
	commissioning *commissioning.Service
	participants  store.ParticipantStore
	prometheus    *metrics.Metrics
	db            *database.DB
	mqtt          ConnectionChecker
	version       string
	startTime     time.Time
	server        *http.Server
	hub           *Hub
	cancel        context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, provider, commissioning, participants)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Provider == nil {
		return nil, fmt.Errorf("instantiation provider is required")
	}
	if deps.Commissioning == nil {
		return nil, fmt.Errorf("commissioning service is required")
	}
	if deps.Participants == nil {
		return nil, fmt.Errorf("participant store is required")
	}

	return &Server{
		cfg:           deps.Config,
		wsCfg:         deps.WS,
		metricsCfg:    deps.Metrics,
		logger:        deps.Logger,
		provider:      deps.Provider,
		commissioning: deps.Commissioning,
		participants:  deps.Participants,
		prometheus:    deps.Prometheus,
		db:            deps.DB,
		mqtt:          deps.MQTT,
		hub:           deps.Hub,
		version:       deps.Version,
		startTime:     time.Now(),
	}, nil
}

// Hub returns the WebSocket hub, creating it if Start has not run yet.
// The runtime wires aggregator and recorder listeners to it.
func (s *Server) Hub() *Hub {
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, builds the router and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for the hub's lifetime
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.Hub().Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
