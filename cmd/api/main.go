package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reelscope/internal/api"
	"reelscope/internal/api/handler"
	"reelscope/internal/config"
	"reelscope/internal/domain"
	"reelscope/internal/indexer"
	"reelscope/internal/job"
	"reelscope/internal/logger"
	"reelscope/internal/pipeline"
	"reelscope/internal/procedure"
	"reelscope/internal/results"
	"reelscope/internal/storage"
	"reelscope/internal/store"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	lg := logger.NewDefault()
	logger.SetDefaultLogger(lg)
	defer logger.Sync()

	// Storage backend: durable store when reachable, in-memory fallback
	// otherwise. Startup never fails solely because the database is down.
	st := store.Open(&cfg.Database, lg)

	jobs := job.NewManager(st, lg)
	res := results.NewManager(st)

	// Analysis procedures served by external HTTP runners
	registry := procedure.NewRegistry()
	procedure.RegisterHTTPProcedures(registry, &cfg.Procedures)

	// Remote bulk-indexing service, only when credentials are configured
	var ix *indexer.Indexer
	if cfg.MultimodalEnabled() {
		client := indexer.NewClient(&indexer.ClientConfig{
			BaseURL:        cfg.Indexer.BaseURL,
			APIKey:         cfg.Indexer.APIKey,
			IndexID:        cfg.Indexer.IndexID,
			RequestTimeout: cfg.Indexer.RequestTimeout,
		})
		ix = indexer.New(client, st, &cfg.Indexer, lg)
		registry.Register(domain.AnalysisMultimodal, procedure.NewMultimodalProcedure(ix, cfg.Indexer.Temperature))
		lg.Info("Remote indexing service configured, multimodal analysis enabled")
	} else {
		lg.Warn("Remote indexing service not configured, multimodal analysis disabled")
	}

	// Upload workspace owns per-job temp directories
	ws, err := api.NewWorkspace(cfg.Upload.TempDir, cfg.Pipeline.DirRetention, lg)
	if err != nil {
		lg.WithError(err).Fatal("Failed to initialize upload workspace")
	}

	// Pipeline router executes jobs with a bounded CPU worker pool
	router := pipeline.NewRouter(jobs, res, registry, cfg.Pipeline.Workers, lg)
	router.SetReclaimFunc(func(dir string) {
		if err := ws.Reclaim(dir); err != nil {
			lg.WithError(err).Warn("Failed to reclaim working dir")
		}
	})
	jobs.SetCanceller(router)
	jobs.SetReclaimer(ws)

	// Optional source-video archive
	archive, err := storage.New(&cfg.Archive)
	if err != nil {
		lg.WithError(err).Fatal("Failed to initialize video archive")
	}
	if s3, ok := archive.(*storage.S3Storage); ok {
		if err := s3.EnsureBucket(context.Background()); err != nil {
			lg.WithError(err).Fatal("Failed to ensure archive bucket")
		}
	}

	analyzeHandler := handler.NewAnalyzeHandler(jobs, res, router, ws, ix, archive, cfg.Upload)

	engine := api.SetupRouter(cfg, st, analyzeHandler, lg)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: engine,
	}

	// Start server in goroutine
	go func() {
		lg.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.WithError(err).Fatal("Server forced to shutdown")
	}

	lg.Info("Server exited")
}
