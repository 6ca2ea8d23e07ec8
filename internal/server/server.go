// FilePath: internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/itsatony/etbridge/api"
	"github.com/itsatony/etbridge/api/resources"
	"github.com/itsatony/etbridge/internal/bridge"
	"github.com/itsatony/etbridge/internal/cleanup"
	"github.com/itsatony/etbridge/internal/config"
	"github.com/itsatony/etbridge/internal/database"
	"github.com/itsatony/etbridge/internal/homeassistant"
	"github.com/itsatony/etbridge/internal/issues"
	"github.com/itsatony/etbridge/internal/monitoring"
	"github.com/itsatony/etbridge/internal/repository/sqldb"
	"github.com/itsatony/etbridge/internal/submission"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	nuts "github.com/vaudience/go-nuts"
)

// Server represents our HTTP server
type Server struct {
	config     *config.Config
	srv        *http.Server
	db         database.DB
	rdb        *redis.Client
	bridge     *bridge.Service
	monitoring *monitoring.Service
}

// New creates a new server instance
func New(cfg *config.Config) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:     cfg,
		srv:        srv,
		monitoring: monitoring.NewService(cfg.Monitoring),
	}
}

// Start serves requests until ctx is done or the listener fails, then shuts
// everything down. The returned error is the cause of an abnormal stop.
func (s *Server) Start(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Initialize services
	router, err := s.initialize(initCtx)
	if err != nil {
		s.close()
		return err
	}

	// Set up cleanup event handlers
	s.setupCleanupHandlers()

	s.srv.Handler = s.wrap(router)

	// Start server
	serveErr := make(chan error, 1)
	go func() {
		nuts.L.Infof("[Server] Starting server on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	return s.waitForShutdown(ctx, serveErr)
}

// initialize connects the stores, loads all entries and builds the router
func (s *Server) initialize(ctx context.Context) (http.Handler, error) {
	db, err := database.Open(ctx, s.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	s.rdb = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", s.config.Redis.Host, s.config.Redis.Port),
		Password: s.config.Redis.Password,
		DB:       s.config.Redis.DB,
	})
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	nuts.L.Infof("[Server] Connected to Redis at %s", s.rdb.Options().Addr)

	ha := homeassistant.NewClient(homeassistant.Config{
		URL:     s.config.HomeAssistant.URL,
		Token:   s.config.HomeAssistant.Token,
		Timeout: s.config.HomeAssistant.RequestTimeout,
	})
	issueStore := issues.NewStore(s.rdb, ha, s.config.Locale)

	s.bridge = bridge.New(
		s.config.EnergyTracker,
		sqldb.NewEntryRepository(db),
		sqldb.NewDeviceRepository(db),
		issueStore,
		ha,
		s.monitoring,
	)
	if err := s.bridge.Validate(); err != nil {
		return nil, err
	}
	if err := s.bridge.LoadAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	sender := submission.NewService(s.bridge, ha, issueStore)
	res := resources.NewResources(s.bridge, sender, issueStore, s.config.Locale)
	res.SetHealthCheck(s.handleHealth())
	return api.NewRouter(res, s.config.Auth.Token), nil
}

// wrap adds panic recovery, access logging and CORS around h
func (s *Server) wrap(h http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.config.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "Authorization", "Accept-Language"},
	})
	h = c.Handler(h)
	h = handlers.CombinedLoggingHandler(os.Stdout, h)
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
}

// waitForShutdown waits for interrupt signal and gracefully shuts down the server
// waitForShutdown blocks until ctx is done or the listener fails. Runtimes
// and stores are released on both paths.
func (s *Server) waitForShutdown(ctx context.Context, serveErr <-chan error) error {
	var cause error
	select {
	case <-ctx.Done():
		nuts.L.Infof("[Server] Shutting down server...")
	case err := <-serveErr:
		cause = fmt.Errorf("error starting server: %w", err)
		nuts.L.Errorf("[Server] %v", cause)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil && cause == nil {
		cause = fmt.Errorf("error shutting down server: %w", err)
	}
	if s.bridge != nil {
		s.bridge.StopAll(shutdownCtx)
	}
	s.close()

	if cause != nil {
		return cause
	}
	nuts.L.Infof("[Server] Server shut down successfully")
	return nil
}

func (s *Server) close() {
	s.monitoring.Close()
	if s.rdb != nil {
		s.rdb.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// handleHealth returns a simple health check handler
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"status":  "ok",
			"version": nuts.GetVersion(),
			"events":  s.monitoring.EventCounts(),
		}
		if s.db != nil {
			if err := s.db.Ping(r.Context()); err != nil {
				body["status"] = "degraded"
				body["database"] = err.Error()
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(body)
	}
}

func (s *Server) setupCleanupHandlers() {
	// Handle entry deletion events
	s.bridge.Cleanup.OnCleanup(cleanup.EventEntryDeleted, func(id string) {
		nuts.L.Infof("[Cleanup] Entry %s and all associated data deleted", id)
		s.monitoring.RecordEvent("entry_deletion", map[string]string{
			"entry_id": id,
		})
	})

	// Handle device list deletion events
	s.bridge.Cleanup.OnCleanup(cleanup.EventDevicesDeleted, func(id string) {
		nuts.L.Infof("[Cleanup] Persisted devices of entry %s deleted", id)
		s.monitoring.RecordEvent("devices_deletion", map[string]string{
			"entry_id": id,
		})
	})

	// Handle issue dismissal events
	s.bridge.Cleanup.OnCleanup(cleanup.EventIssuesDismissed, func(id string) {
		nuts.L.Infof("[Cleanup] Repair issues of entry %s dismissed", id)
		s.monitoring.RecordEvent("issues_dismissal", map[string]string{
			"entry_id": id,
		})
	})
}
