package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/handlers"
	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"

	"github.com/cardrop/proximity-hub/api"
	"github.com/cardrop/proximity-hub/api/middleware"
	"github.com/cardrop/proximity-hub/internal/cleanup"
	"github.com/cardrop/proximity-hub/internal/config"
	"github.com/cardrop/proximity-hub/internal/database"
	"github.com/cardrop/proximity-hub/internal/ingest"
	"github.com/cardrop/proximity-hub/internal/monitoring"
	"github.com/cardrop/proximity-hub/internal/proximity"
	"github.com/cardrop/proximity-hub/internal/repository/postgres"
)

// Server owns the HTTP listener and the lifecycle of every background
// component: MQTT ingest, per-user meet matchers, and the retention sweep.
type Server struct {
	config     *config.Config
	srv        *http.Server
	db         database.DB
	service    *proximity.Service
	pool       *proximity.MatcherPool
	retention  *cleanup.RetentionService
	ingestor   *ingest.Ingestor
	monitoring *monitoring.Service
}

// New creates a new server instance
func New(cfg *config.Config) *Server {
	return &Server{config: cfg}
}

// Start wires all components and begins listening for requests. It blocks
// until an interrupt signal arrives, then shuts everything down in reverse
// order of startup.
func (s *Server) Start() error {
	if err := s.initialize(); err != nil {
		return err
	}

	go func() {
		nuts.L.Infof("[Server] Starting server on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nuts.L.Errorf("[Server] Error starting server: %v", err)
			os.Exit(1)
		}
	}()

	return s.waitForShutdown()
}

func (s *Server) initialize() error {
	db, err := database.New(s.config.Database.Postgres)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = db

	detections, err := postgres.NewDetectionRepository(db)
	if err != nil {
		return fmt.Errorf("failed to initialize detection repository: %w", err)
	}
	highlights, err := postgres.NewHighlightRepository(db)
	if err != nil {
		return fmt.Errorf("failed to initialize highlight repository: %w", err)
	}
	meets := postgres.NewMeetRepository(db)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", s.config.Redis.Host, s.config.Redis.Port),
		Password: s.config.Redis.Password,
		DB:       s.config.Redis.DB,
	})
	gate := proximity.NewRedisCooldownGate(redisClient, s.config.Proximity.DetectionCooldown)

	s.service = proximity.New(detections, highlights, gate)
	if err := s.service.Validate(); err != nil {
		return err
	}

	s.pool = proximity.NewMatcherPool(meets, s.config.Proximity.MeetPollInterval)
	s.monitoring = monitoring.NewService()

	s.retention = cleanup.New(detections, highlights, s.config.Proximity.DetectionRetention)
	s.setupCleanupHandlers()
	s.retention.Start(context.Background(), s.config.Proximity.SweepInterval)

	s.ingestor = ingest.New(s.config.MQTT, s.service, s.config.Proximity.IngestBuffer)
	if err := s.ingestor.Start(); err != nil {
		return fmt.Errorf("failed to start beacon ingest: %w", err)
	}

	router := api.NewRouter(s.service, s.pool, s.monitoring, middleware.KeycloakConfig{
		URL:          s.config.Keycloak.URL,
		Realm:        s.config.Keycloak.Realm,
		ClientID:     s.config.Keycloak.ClientID,
		ClientSecret: s.config.Keycloak.ClientSecret,
	}, s.handleHealth())

	handler := handlers.CORS(
		handlers.AllowedOrigins(s.config.Server.AllowedOrigins),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete}),
	)(router)
	handler = handlers.CombinedLoggingHandler(os.Stdout, handler)

	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      handler,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	return nil
}

// waitForShutdown waits for interrupt signal and gracefully shuts down the server
func (s *Server) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	nuts.L.Infof("[Server] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	s.ingestor.Stop()
	s.pool.StopAll()
	s.retention.Stop()

	if err := s.db.Close(); err != nil {
		nuts.L.Warnf("[Server] Error closing database: %v", err)
	}

	nuts.L.Infof("[Server] Server shut down successfully")
	return nil
}

// handleHealth returns a simple health check handler
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := s.db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","version":"` + nuts.GetVersion() + `"}`))
	}
}

func (s *Server) setupCleanupHandlers() {
	s.retention.OnCleanup("detections.purged", func(count string) {
		nuts.L.Infof("[Cleanup] Purged %s old detections", count)
		s.monitoring.RecordEvent("detection_purge", map[string]string{
			"count": count,
		})
	})

	s.retention.OnCleanup("highlights.purged", func(count string) {
		nuts.L.Infof("[Cleanup] Purged %s expired highlights", count)
		s.monitoring.RecordEvent("highlight_purge", map[string]string{
			"count": count,
		})
	})
}
