package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/storm-wave-etl/internal/domain"
)

// Output formats accepted in OUTPUT_FORMATS.
const (
	FormatCSV       = "csv"
	FormatXLSX      = "xlsx"
	FormatSQLite    = "sqlite"
	FormatShapefile = "shapefile"
)

var knownFormats = []string{FormatCSV, FormatXLSX, FormatSQLite, FormatShapefile}

// SpectraSource names the raw spectral input of one sensor: a file or a
// directory of files.
type SpectraSource struct {
	Sensor string
	Path   string
}

// Config holds all run settings, populated from environment variables.
type Config struct {
	SpectraSources []SpectraSource
	TracksDir      string
	GridPath       string

	Analysis domain.AnalysisConfig
	Workers  int

	OutputDir     string
	OutputFormats []string

	// Kafka publication of analysis windows; disabled when no brokers are set.
	KafkaBrokers       []string
	KafkaSinkTopic     string
	BatchSize          int
	BatchFlushInterval time.Duration

	HTTPAddr        string
	ServeAfterRun   bool
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// KafkaEnabled reports whether windows should be published.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// WantsFormat reports whether the named output format is enabled.
func (c *Config) WantsFormat(f string) bool { return slices.Contains(c.OutputFormats, f) }

// Load reads configuration from environment variables, applying defaults where
// unset. The analysis settings are validated before returning; any error is
// fatal to the run.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}
	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	sources, err := parseSources(sharedcfg.EnvOrDefault("SPECTRA_SOURCES",
		"swim=data/wave_spectra/SWI_WV1,sar=data/wave_spectra/SENT1"))
	if err != nil {
		return nil, err
	}
	analysis, err := loadAnalysis()
	if err != nil {
		return nil, err
	}
	workers, err := parsePositiveInt("WORKERS", runtime.NumCPU())
	if err != nil {
		return nil, err
	}
	formats, err := parseFormats(sharedcfg.EnvOrDefault("OUTPUT_FORMATS", "csv,sqlite"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		SpectraSources:     sources,
		TracksDir:          sharedcfg.EnvOrDefault("TRACKS_DIR", "data/satellite"),
		GridPath:           sharedcfg.EnvOrDefault("GRID_PATH", "data/era5/swh.csv"),
		Analysis:           analysis,
		Workers:            workers,
		OutputDir:          sharedcfg.EnvOrDefault("OUTPUT_DIR", "output"),
		OutputFormats:      formats,
		KafkaBrokers:       sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "analysis-windows"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		ServeAfterRun:      sharedcfg.EnvOrDefault("SERVE_AFTER_RUN", "false") == "true",
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
	}

	if cfg.KafkaEnabled() && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("OUTPUT_DIR is required")
	}
	return cfg, nil
}

func loadAnalysis() (domain.AnalysisConfig, error) {
	box, err := domain.ParseBoundingBox(sharedcfg.EnvOrDefault("REGION_BBOX", "-50,-30,-45,-20"))
	if err != nil {
		return domain.AnalysisConfig{}, fmt.Errorf("REGION_BBOX: %w", err)
	}
	start, err := domain.ParseDate(sharedcfg.EnvOrDefault("DATE_START", "2024-02-12"))
	if err != nil {
		return domain.AnalysisConfig{}, &domain.ConfigError{Field: "DATE_START", Reason: err.Error()}
	}
	end, err := domain.ParseDate(sharedcfg.EnvOrDefault("DATE_END", "2024-02-16T23:59:59Z"))
	if err != nil {
		return domain.AnalysisConfig{}, &domain.ConfigError{Field: "DATE_END", Reason: err.Error()}
	}
	halfWidth, err := time.ParseDuration(sharedcfg.EnvOrDefault("ALIGN_HALF_WIDTH", "30m"))
	if err != nil {
		return domain.AnalysisConfig{}, &domain.ConfigError{Field: "ALIGN_HALF_WIDTH", Reason: err.Error()}
	}
	threshold, err := parseFloat("PARTITION_THRESHOLD_HZ", domain.DefaultPartitionThreshold)
	if err != nil {
		return domain.AnalysisConfig{}, err
	}
	maxKm, err := parseFloat("COLLOCATE_MAX_KM", domain.DefaultCollocateMaxKm)
	if err != nil {
		return domain.AnalysisConfig{}, err
	}

	a := domain.AnalysisConfig{
		Box:                box,
		Window:             domain.DateWindow{Start: start, End: end},
		HalfWidth:          halfWidth,
		PartitionThreshold: threshold,
		CollocateMaxKm:     maxKm,
	}
	if err := a.Validate(); err != nil {
		return domain.AnalysisConfig{}, err
	}
	return a, nil
}

// parseSources reads "sensor=path[,sensor=path...]".
func parseSources(s string) ([]SpectraSource, error) {
	var out []SpectraSource
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sensor, path, ok := strings.Cut(part, "=")
		sensor, path = strings.TrimSpace(sensor), strings.TrimSpace(path)
		if !ok || sensor == "" || path == "" {
			return nil, fmt.Errorf("invalid SPECTRA_SOURCES entry %q, want sensor=path", part)
		}
		if seen[sensor] {
			return nil, fmt.Errorf("invalid SPECTRA_SOURCES: sensor %q listed twice", sensor)
		}
		seen[sensor] = true
		out = append(out, SpectraSource{Sensor: sensor, Path: path})
	}
	return out, nil
}

func parseFormats(s string) ([]string, error) {
	var out []string
	for _, f := range strings.Split(s, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if !slices.Contains(knownFormats, f) {
			return nil, fmt.Errorf("invalid OUTPUT_FORMATS: unknown format %q", f)
		}
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &domain.ConfigError{Field: key, Reason: fmt.Sprintf("%q is not a number", s)}
	}
	return v, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}
