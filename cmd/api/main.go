package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/graphstudio/engine/internal/api"
	"github.com/graphstudio/engine/internal/api/handlers"
	"github.com/graphstudio/engine/internal/models"
	"github.com/graphstudio/engine/internal/realtime"
	"github.com/graphstudio/engine/internal/repository"
	"github.com/graphstudio/engine/internal/services"
	"github.com/graphstudio/engine/pkg/config"
	"github.com/graphstudio/engine/pkg/database"
	"github.com/graphstudio/engine/pkg/logger"
)

func main() {
	cfg := config.MustLoad()

	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("starting graph studio engine",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
	)

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.DatabaseURL, cfg.AppEnv != "production")
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := models.AutoMigrate(db); err != nil {
		log.Fatal("failed to migrate schema", zap.Error(err))
	}
	log.Info("database ready")

	// Repositories
	projectRepo := repository.NewProjectRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	graphRepo := repository.NewGraphRepository(db)

	// Realtime hub and services; the hub needs the services for join
	// resolution and snapshots, the services need the hub for fan-out.
	wsSettings := &realtime.Settings{
		WriteTimeout:   cfg.WSWriteTimeout,
		PingInterval:   cfg.WSPingInterval,
		PongWait:       cfg.WSPongWait,
		MaxMessageLen:  cfg.WSMaxMessageLen,
		SendBufferSize: 64,
		ResolveTimeout: 5 * time.Second,
	}
	var hub *realtime.Hub
	sessionSvc := services.NewSessionService(projectRepo, sessionRepo, deferredBroadcaster{&hub})
	graphSvc := services.NewGraphService(graphRepo, deferredBroadcaster{&hub})
	hub = realtime.NewHub(sessionSvc, graphSvc, wsSettings)

	router := api.NewRouter(api.Dependencies{
		Resolver:        sessionSvc,
		ProjectsHandler: handlers.NewProjectsHandler(sessionSvc, hub),
		GraphHandler:    handlers.NewGraphHandler(graphSvc),
		SyncHandler:     handlers.NewSyncHandler(graphSvc, hub),
		WSHandler:       hub.ServeWS,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	hub.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("shutdown complete")
}

// deferredBroadcaster lets the services and the hub reference each other
// without a constructor cycle: the hub pointer is filled in after the
// services exist, before the server starts accepting requests.
type deferredBroadcaster struct {
	hub **realtime.Hub
}

func (d deferredBroadcaster) BroadcastToProject(projectID, event string, payload any) {
	if h := *d.hub; h != nil {
		h.BroadcastToProject(projectID, event, payload)
	}
}

func (d deferredBroadcaster) CloseProject(projectID string) {
	if h := *d.hub; h != nil {
		h.CloseProject(projectID)
	}
}
