// Command report builds the per-district crime summary from a crimes file and
// an offense-code lookup and writes it to the output folder.
//
// Usage:
//
//	go run ./cmd/report \
//	  --crimes_file data/mock/crimes.csv \
//	  --codes_file data/mock/offense_codes.csv \
//	  --output_folder output
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/crime-district-report/internal/adapter/csvfile"
	kafkaadapter "github.com/couchcryptid/crime-district-report/internal/adapter/kafka"
	"github.com/couchcryptid/crime-district-report/internal/adapter/parquetfile"
	"github.com/couchcryptid/crime-district-report/internal/adapter/postgres"
	s3adapter "github.com/couchcryptid/crime-district-report/internal/adapter/s3"
	"github.com/couchcryptid/crime-district-report/internal/config"
	"github.com/couchcryptid/crime-district-report/internal/domain"
	"github.com/couchcryptid/crime-district-report/internal/observability"
	"github.com/couchcryptid/crime-district-report/internal/pipeline"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := run(ctx, cfg, logger, metrics)

	if cfg.MetricsTextfile != "" {
		if err := observability.WriteTextfile(cfg.MetricsTextfile, prometheus.DefaultGatherer); err != nil {
			logger.Error("metrics export failed", "error", err)
		}
	}

	if runErr != nil {
		logger.Error("report failed", "error", runErr)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	median, err := domain.NewMedianEstimator(cfg.MedianStrategy, cfg.MedianEpsilon)
	if err != nil {
		return err
	}

	var store *s3adapter.Client
	if cfg.UsesS3() {
		store, err = s3adapter.NewClient(cfg, logger)
		if err != nil {
			return err
		}
		logger.Info("object storage enabled", "endpoint", cfg.S3Endpoint)
	}

	reader := csvfile.NewReader(cfg.CrimesFile, cfg.CodesFile, opener(store), logger)

	artifact, err := buildArtifact(cfg, store, logger)
	if err != nil {
		return err
	}

	sinks, closers, err := buildSinks(ctx, cfg, logger)
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Error("sink close error", "error", err)
			}
		}
	}()
	if err != nil {
		return err
	}

	logger.Info("report started",
		"crimes_file", cfg.CrimesFile,
		"codes_file", cfg.CodesFile,
		"output_folder", cfg.OutputFolder,
		"median_strategy", cfg.MedianStrategy,
	)

	p := pipeline.New(reader, artifact, sinks, median, logger, metrics)
	if _, err := p.Run(ctx); err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}
	return nil
}

// opener reads s3:// locations through the object store and everything else
// from the local filesystem.
func opener(store *s3adapter.Client) csvfile.Opener {
	if store == nil {
		return csvfile.OpenLocal
	}
	return func(ctx context.Context, location string) (io.ReadCloser, error) {
		if config.IsS3(location) {
			return store.Open(ctx, location)
		}
		return csvfile.OpenLocal(ctx, location)
	}
}

// buildArtifact picks the object store uploader for s3:// output and the
// local folder writer otherwise.
func buildArtifact(cfg *config.Config, store *s3adapter.Client, logger *slog.Logger) (pipeline.Artifact, error) {
	if config.IsS3(cfg.OutputFolder) {
		return s3adapter.NewUploader(store, cfg.OutputFolder, logger)
	}
	return parquetfile.NewWriter(cfg.OutputFolder, logger), nil
}

// buildSinks assembles the optional sinks. They run after the artifact is
// staged and before it is committed.
func buildSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.Loaders, []io.Closer, error) {
	var (
		sinks   pipeline.Loaders
		closers []io.Closer
	)

	if cfg.KafkaEnabled() {
		publisher := kafkaadapter.NewPublisher(cfg, logger)
		sinks = append(sinks, publisher)
		closers = append(closers, publisher)
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaReportTopic)
	}

	if cfg.DatabaseURL != "" {
		db, err := postgres.NewWriter(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, closers, err
		}
		sinks = append(sinks, db)
		closers = append(closers, db)
		logger.Info("postgres sink enabled")
	}

	return sinks, closers, nil
}
