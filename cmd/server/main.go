package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"climate-api/internal/config"
	"climate-api/internal/handlers"
	"climate-api/internal/repository"
	"climate-api/internal/services"
	"climate-api/pkg/database"
	"climate-api/pkg/logging"
	"climate-api/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate already rejected unknown levels
	logLevel, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.NewStructuredLogger("climate-api", version, logLevel)

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting climate API server", logging.Fields{
		"version":     version,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_driver":   cfg.Database.Driver,
		"dataset":     cfg.Database.Path,
	})

	metricsCollector := metrics.NewCollector("climate_api")

	db, err := database.Open(cfg.DatabaseOptions(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to open dataset", logging.Fields{}, err)
	}
	defer db.Close()

	if err := db.ValidateSchema(ctx, repository.RequiredSchema); err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Dataset schema mismatch", logging.Fields{}, err)
	}
	recordDatasetRows(ctx, db, logger, metricsCollector)

	climateRepo := repository.NewClimateRepository(db, logger, metricsCollector)
	climateService := services.NewClimateService(climateRepo, logger, metricsCollector)
	climateHandler := handlers.NewClimateHandler(climateService, logger, metricsCollector)

	router := mux.NewRouter()
	climateHandler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}

// recordDatasetRows publishes table sizes once at startup; the dataset is
// opened read-only so they cannot change while serving.
func recordDatasetRows(ctx context.Context, db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) {
	for _, table := range repository.RequiredSchema {
		rows, err := db.CountRows(ctx, table.Name)
		if err != nil {
			logger.Warn(ctx, "[STARTUP_WARN] Failed to count dataset rows", logging.Fields{
				"table": table.Name,
				"error": err.Error(),
			})
			continue
		}

		metricsCollector.SetDatasetRows(table.Name, rows)
		logger.Info(ctx, "[STARTUP] Dataset table loaded", logging.Fields{
			"table": table.Name,
			"rows":  rows,
		})
	}
}
