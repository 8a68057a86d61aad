package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lysyi3m/intel-comb/app/api"
	"github.com/lysyi3m/intel-comb/app/archive"
	"github.com/lysyi3m/intel-comb/app/cfg"
	"github.com/lysyi3m/intel-comb/app/database"
	"github.com/lysyi3m/intel-comb/app/extract"
	"github.com/lysyi3m/intel-comb/app/fetch"
	"github.com/lysyi3m/intel-comb/app/ingest"
	"github.com/lysyi3m/intel-comb/app/metrics"
	"github.com/lysyi3m/intel-comb/app/sources"
	"github.com/lysyi3m/intel-comb/app/tasks"
)

func main() {
	// A .env file is optional; environment variables win either way.
	_ = godotenv.Load()

	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Intel Comb server...", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	store, err := archive.NewStore(appCfg.ArchiveFile)
	if err != nil {
		slog.Error("Failed to load event archive", "path", appCfg.ArchiveFile, "error", err)
		os.Exit(1)
	}
	slog.Info("Event archive loaded", "path", appCfg.ArchiveFile, "events", store.Count())
	metrics.ArchiveEvents.Set(float64(store.Count()))

	configCache := sources.NewConfigCache(appCfg.SourcesDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load source configurations", "dir", appCfg.SourcesDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Source configurations loaded", "dir", appCfg.SourcesDir, "count", configCache.GetConfigCount())

	sourceRepo := database.NewSourceRepository(db)
	syncRepo := database.NewSyncStateRepository(db)

	fetcher := fetch.NewClient(appCfg.UserAgent, 30*time.Second)
	extractor := extract.NewClient(appCfg.ExtractorURL, appCfg.ExtractorAPIKey, 2*time.Minute)
	orchestrator := ingest.NewOrchestrator(fetcher, extractor, store, sourceRepo)

	scheduler := tasks.NewScheduler(configCache, sourceRepo, syncRepo, orchestrator)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Background scheduler started", "workers", appCfg.WorkerCount)

	handler := api.NewHandler(store, configCache, sourceRepo, syncRepo, orchestrator, extractor, scheduler)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port, "api_enabled", appCfg.APIAccessKey != "")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully...")

	// A running scan stops at the next page boundary.
	orchestrator.Abort()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}
