package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mr1hm/go-triage-queue/internal/api"
	"github.com/mr1hm/go-triage-queue/internal/config"
	"github.com/mr1hm/go-triage-queue/internal/dispatch"
	"github.com/mr1hm/go-triage-queue/internal/handoff"
	"github.com/mr1hm/go-triage-queue/internal/ingestion"
	"github.com/mr1hm/go-triage-queue/internal/logging"
	"github.com/mr1hm/go-triage-queue/internal/models"
	"github.com/mr1hm/go-triage-queue/internal/queue"
	"github.com/mr1hm/go-triage-queue/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup("triage-queue", cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port, "doctor_id", cfg.Queue.DoctorID)

	if dir := filepath.Dir(cfg.DB.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logging.Fatalf("Failed to create data directory: %v", err)
		}
	}
	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := ingestion.NewClient(cfg.Backend.BaseURL, ingestion.Paths{
		AITriage:   cfg.Backend.AITriagePath,
		Booking:    cfg.Backend.BookingPath,
		Doctor:     cfg.Backend.DoctorPath,
		CaseStatus: cfg.Backend.CaseStatusPath,
	}, nil)

	broadcaster := handoff.NewBroadcaster()
	if cfg.Handoff.URL != "" {
		_, ch := broadcaster.Subscribe()
		go handoff.NewForwarder(cfg.Handoff.URL, nil).Run(ctx, ch)
	}

	svc := dispatch.NewService(client, queue.New(), db, broadcaster, dispatch.Options{
		DoctorID:        cfg.Queue.DoctorID,
		DefaultLocation: models.Location{Lat: cfg.Queue.DefaultLatitude, Lng: cfg.Queue.DefaultLongitude},
		PollInterval:    cfg.Queue.PollInterval,
		LocationTimeout: cfg.Queue.LocationTimeout,
	})
	if err := svc.Restore(ctx); err != nil {
		slog.Error("failed to restore case statuses", "error", err)
	}
	svc.Start(ctx)

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimitRPS))

	handler := api.NewHandler(svc, db)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	svc.Stop()
	broadcaster.Close() // ends the forwarder
	cancel()

	slog.Info("shutdown complete")
}
