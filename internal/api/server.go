package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-iobridge/internal/audit"
	"github.com/nerrad567/gray-logic-iobridge/internal/bridges/mqttbridge"
	"github.com/nerrad567/gray-logic-iobridge/internal/channel"
	"github.com/nerrad567/gray-logic-iobridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-iobridge/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-iobridge/internal/notify"
	"github.com/nerrad567/gray-logic-iobridge/internal/policy"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Controller is the registry surface the API drives.
// *channel.Registry satisfies it.
type Controller interface {
	SetOutputState(ctx context.Context, deviceID string, index int, desired bool, requestID string, force bool) (bool, error)
	SetDefaultOutputStates(ctx context.Context, deviceID, pattern, requestID string) []policy.Policy
	GetStates(requestID string) int
	Channels() []channel.Channel
	Stats() channel.Stats
}

// HealthSource reports bridge health. *mqttbridge.Bridge satisfies it.
type HealthSource interface {
	Health() mqttbridge.HealthMessage
}

// ConnectionChecker reports broker connectivity. *mqtt.Client satisfies it.
type ConnectionChecker interface {
	IsConnected() bool
}

// DispatcherStats reports notification queue counters. *notify.Dispatcher satisfies it.
type DispatcherStats interface {
	Stats() notify.DispatcherStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	// Registry is required.
	Registry Controller

	// Optional collaborators; missing ones are omitted from health and metrics.
	Health     HealthSource
	MQTT       ConnectionChecker
	Dispatcher DispatcherStats
	DB         DBStatser

	// Audit records every command received over HTTP. Optional.
	Audit audit.Repository

	// Gatherer backs the Prometheus /metrics endpoint. Defaults to the
	// global registry.
	Gatherer prometheus.Gatherer

	// Hub, if set, is used instead of creating one. The notification
	// dispatcher delivers stream events to it.
	Hub *Hub

	Version string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	registry   Controller
	health     HealthSource
	mqtt       ConnectionChecker
	dispatcher DispatcherStats
	db         DBStatser
	audit      audit.Repository
	gatherer   prometheus.Gatherer
	version    string
	startTime  time.Time
	tickets    *ticketStore
	server     *http.Server
	hub        *Hub
	cancel     context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("channel registry is required")
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		registry:   deps.Registry,
		health:     deps.Health,
		mqtt:       deps.MQTT,
		dispatcher: deps.Dispatcher,
		db:         deps.DB,
		audit:      deps.Audit,
		gatherer:   gatherer,
		version:    deps.Version,
		startTime:  time.Now(),
		tickets:    newTicketStore(),
		hub:        deps.Hub,
	}
	if s.hub == nil {
		s.hub = NewHub(deps.WS, deps.Logger)
	}
	return s, nil
}

// Hub returns the WebSocket hub, for registration as a notification sink.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the fully wired router. Start serves it; tests use it
// directly with httptest.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.tickets.cleanLoop(srvCtx)

	if s.secCfg.JWT.Secret == "" {
		s.logger.Warn("API authentication disabled: security.jwt.secret is empty")
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// HealthCheck verifies the API server is running.
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
