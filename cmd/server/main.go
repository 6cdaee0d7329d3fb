package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"autocloud.com/car-insurance-estimator/internal/api"
	"autocloud.com/car-insurance-estimator/internal/app"
	"autocloud.com/car-insurance-estimator/internal/config"
	"autocloud.com/car-insurance-estimator/internal/logger"
	"autocloud.com/car-insurance-estimator/internal/store"
)

func main() {
	// Command line flag for reference data ingestion
	ingestFile := flag.String("ingest", "", "Load reference costs from a Markdown table into the SQLite database and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logr, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logr.Sync()
	if !cfg.DotEnvLoaded {
		logr.Info("No .env file found, relying on environment variables")
	}

	if *ingestFile != "" {
		if err := runIngest(*ingestFile, cfg.DatabaseURL, logr); err != nil {
			logr.Errorf("Reference cost ingestion failed: %v", err)
			logr.Sync()
			os.Exit(1)
		}
		return
	}

	application, err := app.New(context.Background(), cfg, logr)
	if err != nil {
		logr.Fatalf("Failed to initialize estimator: %v", err)
	}
	defer application.Close()

	apiHandler := api.NewAPIHandler(application.Estimator, cfg.MaxUploadBytes(), logr)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	// No WriteTimeout: a report streams for as long as the model keeps sending.
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logr.Infof("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatalf("Could not listen on %s: %v", serverAddr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logr.Errorf("Server forced to shutdown: %v", err)
	}

	logr.Info("Server exiting gracefully")
}

// runIngest loads a Markdown table of reference costs into the SQLite database at dsn.
func runIngest(path, dsn string, logr *zap.SugaredLogger) error {
	logr.Infof("Starting reference cost ingestion from %s...", path)
	dbStore, err := store.NewSQLiteStore(dsn, logr)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer dbStore.Close()

	n, err := dbStore.IngestFromFile(path)
	if err != nil {
		return err
	}
	logr.Infof("Ingestion complete. Stored %d rows in %s. Exiting.", n, dsn)
	return nil
}
