package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/couchcryptid/storm-wave-etl/internal/adapter/csvsource"
	"github.com/couchcryptid/storm-wave-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/storm-wave-etl/internal/adapter/kafka"
	"github.com/couchcryptid/storm-wave-etl/internal/adapter/shapefile"
	"github.com/couchcryptid/storm-wave-etl/internal/adapter/spectrafile"
	"github.com/couchcryptid/storm-wave-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/storm-wave-etl/internal/adapter/tablecsv"
	"github.com/couchcryptid/storm-wave-etl/internal/adapter/xlsx"
	"github.com/couchcryptid/storm-wave-etl/internal/config"
	"github.com/couchcryptid/storm-wave-etl/internal/domain"
	"github.com/couchcryptid/storm-wave-etl/internal/observability"
	"github.com/couchcryptid/storm-wave-etl/internal/pipeline"
	"github.com/couchcryptid/storm-wave-etl/internal/report"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	if err := run(cfg, logger, metrics, os.Stdout); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, out io.Writer) error {
	opts := []pipeline.Option{pipeline.WithWorkers(cfg.Workers)}

	aligned := alignmentInputsPresent(cfg, logger)
	if aligned {
		opts = append(opts, pipeline.WithAlignment(
			csvsource.NewTrackReader(cfg.TracksDir, logger),
			csvsource.NewGridReader(cfg.GridPath, logger),
		))
	}

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Error("close error", "error", err)
			}
		}
	}()

	if cfg.WantsFormat(config.FormatCSV) {
		opts = append(opts, pipeline.WithTableLoaders(tablecsv.NewWriter(cfg.OutputDir)))
	}
	if cfg.WantsFormat(config.FormatXLSX) {
		opts = append(opts, pipeline.WithTableLoaders(xlsx.NewWriter(cfg.OutputDir)))
	}
	if cfg.WantsFormat(config.FormatSQLite) {
		store, err := sqlite.Open(filepath.Join(cfg.OutputDir, sqlite.FileName))
		if err != nil {
			return err
		}
		closers = append(closers, store)
		opts = append(opts, pipeline.WithTableLoaders(store), pipeline.WithWindowLoaders(store))
	}
	if cfg.WantsFormat(config.FormatShapefile) {
		opts = append(opts, pipeline.WithWindowLoaders(shapefile.NewWriter(cfg.OutputDir)))
	}
	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger)
		closers = append(closers, writer)
		opts = append(opts, pipeline.WithWindowLoaders(writer))
		logger.Info("kafka window publication enabled", "topic", cfg.KafkaSinkTopic)
	}

	transformer := pipeline.NewTransformer(cfg.Analysis, logger)
	p, err := pipeline.New(spectrafile.NewReader(cfg.SpectraSources, logger), transformer, cfg.Analysis, logger, metrics, opts...)
	if err != nil {
		return err
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	res, runErr := p.Run(ctx)
	if runErr == nil {
		var alignment *domain.Alignment
		if aligned {
			alignment = &res.Alignment
		}
		fmt.Fprintln(out, report.Render(res.Table, alignment))
		if cfg.ServeAfterRun {
			logger.Info("serving analysis windows until interrupted", "addr", cfg.HTTPAddr)
			<-ctx.Done()
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
	return runErr
}

// alignmentInputsPresent reports whether both the track directory and the
// grid file exist. The spectra branch runs either way.
func alignmentInputsPresent(cfg *config.Config, logger *slog.Logger) bool {
	for _, path := range []string{cfg.TracksDir, cfg.GridPath} {
		if path == "" {
			logger.Info("model alignment disabled", "reason", "input path not set")
			return false
		}
		if _, err := os.Stat(path); err != nil {
			logger.Warn("model alignment disabled", "path", path, "error", err)
			return false
		}
	}
	return true
}
