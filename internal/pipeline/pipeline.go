package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/storm-wave-etl/internal/domain"
	"github.com/couchcryptid/storm-wave-etl/internal/observability"
)

// SpectraExtractor reads every raw spectral record from the configured sources.
type SpectraExtractor interface {
	ExtractSpectra(ctx context.Context) ([]domain.RawSpectrum, error)
}

// TrackExtractor reads along-track observations. Points come back normalized.
type TrackExtractor interface {
	ExtractTracks(ctx context.Context) (domain.TrackBatch, error)
}

// GridExtractor reads long-format grid samples. Positions come back normalized.
type GridExtractor interface {
	ExtractGrid(ctx context.Context) (domain.GridBatch, error)
}

// Transformer converts one raw spectrum into a table row or a drop.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawSpectrum) domain.SpectrumResult
}

// TableLoader writes the parameter table to a destination.
type TableLoader interface {
	Name() string
	LoadTable(ctx context.Context, table domain.ParameterTable) error
}

// WindowLoader hands the analysis windows, frame by frame, to a destination.
type WindowLoader interface {
	Name() string
	LoadWindows(ctx context.Context, a domain.Alignment) error
}

// Result is everything a run produced.
type Result struct {
	Table     domain.ParameterTable
	Alignment domain.Alignment
}

// Pipeline orchestrates one batch run: spectra through the parameter engine
// into the table, and tracks and grid frames through alignment into windows.
type Pipeline struct {
	spectra     SpectraExtractor
	tracks      TrackExtractor
	grid        GridExtractor
	transformer Transformer
	tables      []TableLoader
	windows     []WindowLoader
	cfg         domain.AnalysisConfig
	workers     int
	logger      *slog.Logger
	metrics     *observability.Metrics

	ready  atomic.Bool
	mu     sync.RWMutex
	result *Result
}

// Option configures optional pipeline stages.
type Option func(*Pipeline)

// WithAlignment enables the temporal branch.
func WithAlignment(tracks TrackExtractor, grid GridExtractor) Option {
	return func(p *Pipeline) {
		p.tracks = tracks
		p.grid = grid
	}
}

// WithTableLoaders adds destinations for the parameter table.
func WithTableLoaders(loaders ...TableLoader) Option {
	return func(p *Pipeline) { p.tables = append(p.tables, loaders...) }
}

// WithWindowLoaders adds destinations for the analysis windows.
func WithWindowLoaders(loaders ...WindowLoader) Option {
	return func(p *Pipeline) { p.windows = append(p.windows, loaders...) }
}

// WithWorkers bounds the number of records transformed concurrently.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// New creates a Pipeline. The configuration must already be valid; New
// re-checks it so that a bad value can never reach the stages.
func New(e SpectraExtractor, t Transformer, cfg domain.AnalysisConfig, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		spectra:     e,
		transformer: t,
		cfg:         cfg,
		workers:     1,
		logger:      logger,
		metrics:     metrics,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// CheckReadiness returns nil once a run has completed, or an error describing
// why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("analysis run has not completed yet")
	}
	return nil
}

// Ready reports whether a run has completed.
func (p *Pipeline) Ready() bool { return p.ready.Load() }

// Windows returns the analysis windows of the last completed run.
func (p *Pipeline) Windows() []domain.AnalysisWindow {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.result == nil {
		return nil
	}
	return p.result.Alignment.Windows
}

// Run executes one full analysis. Per-record failures are logged, counted and
// skipped; extractor and loader failures abort the run. The context is
// checked between stages.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	p.logger.Info("pipeline started", "workers", p.workers)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	table, err := p.runSpectra(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var alignment domain.Alignment
	if p.tracks != nil && p.grid != nil {
		alignment, err = p.runAlignment(ctx, &table.Report)
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Table: table, Alignment: alignment}
	if err := p.load(ctx, res); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.result = res
	p.mu.Unlock()
	p.ready.Store(true)

	r := table.Report
	p.logger.Info("pipeline finished",
		"parsed", r.Parsed,
		"dropped_parse_error", r.DroppedParse,
		"dropped_range_error", r.DroppedRange,
		"filtered_out", r.FilteredOut,
		"rows", r.Rows,
		"rows_with_undefined_parameters", r.UndefinedRows,
		"windows", r.Windows,
		"collocated_pairs", r.CollocatedPairs,
	)
	return res, nil
}

// runSpectra extracts all raw records, transforms them on a bounded worker
// pool and assembles the table. Result order does not matter; the table sorts.
func (p *Pipeline) runSpectra(ctx context.Context) (domain.ParameterTable, error) {
	start := time.Now()
	raws, err := p.spectra.ExtractSpectra(ctx)
	if err != nil {
		return domain.ParameterTable{}, fmt.Errorf("extract spectra: %w", err)
	}
	p.observeStage("extract", start)

	start = time.Now()
	results := make([]domain.SpectrumResult, len(raws))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, raw := range raws {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.transformer.Transform(gctx, raw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.ParameterTable{}, err
	}
	p.observeStage("transform", start)

	for _, res := range results {
		switch {
		case res.Err != nil:
			reason := domain.ClassifyDrop(res.Err)
			p.logger.Warn("spectral record dropped", "record_id", res.RecordID, "reason", reason, "error", res.Err)
			p.metrics.RecordsDropped.WithLabelValues(string(reason)).Inc()
		case res.Filtered:
			p.metrics.RecordsParsed.Inc()
			p.metrics.RecordsFiltered.Inc()
		default:
			p.metrics.RecordsParsed.Inc()
			if res.Row.HasUndefined() {
				p.metrics.UndefinedRows.Inc()
			}
		}
	}

	start = time.Now()
	table := domain.BuildTable(results)
	p.observeStage("table", start)
	return table, nil
}

// runAlignment ingests tracks and grid samples, assembles hourly frames and
// builds the analysis windows. Counts are recorded on report.
func (p *Pipeline) runAlignment(ctx context.Context, report *domain.RunReport) (domain.Alignment, error) {
	start := time.Now()
	tracks, err := p.tracks.ExtractTracks(ctx)
	if err != nil {
		return domain.Alignment{}, fmt.Errorf("extract tracks: %w", err)
	}
	grid, err := p.grid.ExtractGrid(ctx)
	if err != nil {
		return domain.Alignment{}, fmt.Errorf("extract grid: %w", err)
	}
	p.observeStage("extract", start)

	for _, d := range tracks.Dropped {
		p.logger.Warn("track row dropped", "record_id", d.RecordID, "reason", d.Reason, "error", d.Error)
	}
	for _, d := range grid.Dropped {
		p.logger.Warn("grid row dropped", "record_id", d.RecordID, "reason", d.Reason, "error", d.Error)
	}

	start = time.Now()
	frames, skipped := domain.AssembleGridFrames(grid.Samples)
	if len(skipped) > 0 {
		p.logger.Warn("grid samples off the hour skipped", "count", len(skipped))
	}
	alignment, filtered, err := domain.BuildAlignment(frames, tracks.Points, p.cfg)
	if err != nil {
		return domain.Alignment{}, fmt.Errorf("align: %w", err)
	}
	p.observeStage("align", start)

	report.TrackPoints = len(tracks.Points) - filtered
	report.TrackDropped = len(tracks.Dropped)
	report.TrackFiltered = filtered
	report.GridFrames = len(frames)
	report.GridSkipped = len(skipped) + len(grid.Dropped)
	report.Windows = len(alignment.Windows)
	report.CollocatedPairs = len(alignment.Pairs)

	p.metrics.TrackPoints.WithLabelValues("kept").Add(float64(report.TrackPoints))
	p.metrics.TrackPoints.WithLabelValues("dropped").Add(float64(report.TrackDropped))
	p.metrics.TrackPoints.WithLabelValues("filtered").Add(float64(filtered))
	p.metrics.GridFrames.Add(float64(len(frames)))
	p.metrics.WindowsBuilt.Add(float64(len(alignment.Windows)))
	p.metrics.CollocatedPairs.Add(float64(len(alignment.Pairs)))
	for _, w := range alignment.Windows {
		report.WindowPoints += w.Len()
		p.metrics.WindowPoints.Observe(float64(w.Len()))
		p.logger.Debug("window aligned", "frame", w.Frame.Timestamp, "points", w.Len())
	}
	return alignment, nil
}

// load runs every loader. A failing loader does not stop the others; all
// failures are returned together.
func (p *Pipeline) load(ctx context.Context, res *Result) error {
	start := time.Now()
	defer p.observeStage("load", start)

	var errs []error
	for _, l := range p.tables {
		if err := l.LoadTable(ctx, res.Table); err != nil {
			p.logger.Error("table load failed", "sink", l.Name(), "error", err)
			errs = append(errs, fmt.Errorf("load table to %s: %w", l.Name(), err))
			continue
		}
		p.metrics.RowsWritten.WithLabelValues(l.Name()).Add(float64(len(res.Table.Rows)))
		p.logger.Info("table written", "sink", l.Name(), "rows", len(res.Table.Rows))
	}
	if p.tracks == nil || p.grid == nil {
		return errors.Join(errs...)
	}
	for _, l := range p.windows {
		if err := l.LoadWindows(ctx, res.Alignment); err != nil {
			p.logger.Error("window load failed", "sink", l.Name(), "error", err)
			errs = append(errs, fmt.Errorf("load windows to %s: %w", l.Name(), err))
			continue
		}
		p.metrics.WindowsPublished.WithLabelValues(l.Name()).Add(float64(len(res.Alignment.Windows)))
		p.logger.Info("windows written", "sink", l.Name(), "windows", len(res.Alignment.Windows))
	}
	return errors.Join(errs...)
}

func (p *Pipeline) observeStage(stage string, start time.Time) {
	p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
