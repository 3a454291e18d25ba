// Command inspect checks a climate dataset offline: it validates the
// schema the API needs and prints a JSON summary of what it holds.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"climate-api/internal/config"
	"climate-api/internal/repository"
	"climate-api/internal/services"
	"climate-api/pkg/database"
	"climate-api/pkg/logging"
	"climate-api/pkg/metrics"
)

func main() {
	dataset := flag.String("dataset", "", "Dataset path, overrides DATASET_PATH")
	pretty := flag.Bool("pretty", false, "Indent the JSON summary")
	verbose := flag.Bool("verbose", false, "Log every query at debug level")
	timeout := flag.Duration("timeout", 30*time.Second, "Time limit for the inspection")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *dataset != "" {
		cfg.Database.Path = *dataset
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logLevel, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.NewStructuredLogger("climate-inspect", "1.0.0", logLevel)
	logger.SetOutput(os.Stderr)
	if *verbose {
		logger.SetLevel(logging.DebugLevel)
	}

	if err := run(ctx, cfg, logger, os.Stdout, *pretty); err != nil {
		fmt.Fprintf(os.Stderr, "Inspection failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logging.StructuredLogger, out io.Writer, pretty bool) error {
	metricsCollector := metrics.NewCollectorWith("climate_inspect", prometheus.NewRegistry())

	db, err := database.Open(cfg.DatabaseOptions(), logger, metricsCollector)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.ValidateSchema(ctx, repository.RequiredSchema); err != nil {
		return err
	}

	repo := repository.NewClimateRepository(db, logger, metricsCollector)
	summary, err := services.NewClimateService(repo, logger, metricsCollector).Summary(ctx)
	if err != nil {
		return fmt.Errorf("failed to summarize dataset: %w", err)
	}

	enc := json.NewEncoder(out)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(summary)
}
