package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-wave-etl/internal/domain"
	"github.com/couchcryptid/storm-wave-etl/internal/observability"
	"github.com/couchcryptid/storm-wave-etl/internal/pipeline"
)

// --- mocks ---

type mockSpectra struct {
	raws []domain.RawSpectrum
	err  error
}

func (m *mockSpectra) ExtractSpectra(context.Context) ([]domain.RawSpectrum, error) {
	return m.raws, m.err
}

type mockTracks struct{ batch domain.TrackBatch }

func (m *mockTracks) ExtractTracks(context.Context) (domain.TrackBatch, error) { return m.batch, nil }

type mockGrid struct{ batch domain.GridBatch }

func (m *mockGrid) ExtractGrid(context.Context) (domain.GridBatch, error) { return m.batch, nil }

type mockTableLoader struct {
	name   string
	err    error
	mu     sync.Mutex
	tables []domain.ParameterTable
}

func (m *mockTableLoader) Name() string { return m.name }

func (m *mockTableLoader) LoadTable(_ context.Context, t domain.ParameterTable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables = append(m.tables, t)
	return m.err
}

type mockWindowLoader struct {
	alignments []domain.Alignment
}

func (m *mockWindowLoader) Name() string { return "mock" }

func (m *mockWindowLoader) LoadWindows(_ context.Context, a domain.Alignment) error {
	m.alignments = append(m.alignments, a)
	return nil
}

// --- helpers ---

var eventDay = time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC)

func testConfig() domain.AnalysisConfig {
	return domain.AnalysisConfig{
		Box:                domain.BoundingBox{West: -50, East: -30, South: -45, North: -20},
		Window:             domain.DateWindow{Start: time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 2, 16, 23, 59, 59, 0, time.UTC)},
		HalfWidth:          30 * time.Minute,
		PartitionThreshold: 0.13,
		CollocateMaxKm:     50,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// spectrumText renders one record in the raw text layout with nValues energy
// values, all equal to value.
func spectrumText(ts time.Time, lon, lat float64, nValues int, value float64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %.2f %.2f 1.5 8.0\n", ts.Format("200601021504"), lon, lat)
	v := strconv.FormatFloat(value, 'g', -1, 64)
	for i := 0; i < nValues; i++ {
		sb.WriteString(v)
		if (i+1)%domain.NumDirections == 0 || i == nValues-1 {
			sb.WriteString("\n")
		} else {
			sb.WriteString(" ")
		}
	}
	return sb.String()
}

func splitRecords(t *testing.T, text string) []domain.RawSpectrum {
	t.Helper()
	raws, err := domain.SplitSpectra(strings.NewReader(text), domain.SensorSWIM, "SWI_WV1")
	require.NoError(t, err)
	return raws
}

func newPipeline(t *testing.T, raws []domain.RawSpectrum, opts ...pipeline.Option) (*pipeline.Pipeline, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	cfg := testConfig()
	p, err := pipeline.New(&mockSpectra{raws: raws}, pipeline.NewTransformer(cfg, discardLogger()), cfg, discardLogger(), metrics, opts...)
	require.NoError(t, err)
	return p, metrics
}

// --- tests ---

func TestPipeline_Run_DropsShortRecordAndCountsIt(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(eventDay))
	t.Cleanup(func() { domain.SetClock(nil) })

	text := spectrumText(eventDay.Add(12*time.Hour), 318.25, -24.1, 720, 0.01) +
		spectrumText(eventDay.Add(13*time.Hour), 318.50, -24.3, 700, 0.01) + // short block
		spectrumText(eventDay.Add(14*time.Hour), 10.00, -24.3, 720, 0.01) // outside the box
	loader := &mockTableLoader{name: "csv"}
	p, metrics := newPipeline(t, splitRecords(t, text), pipeline.WithTableLoaders(loader))

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	table := res.Table
	require.Len(t, table.Rows, 1)
	assert.Equal(t, eventDay.Add(12*time.Hour), table.Rows[0].Timestamp)
	assert.InDelta(t, -41.75, table.Rows[0].Longitude, 1e-9)

	r := table.Report
	assert.Equal(t, 2, r.Parsed)
	assert.Equal(t, 1, r.DroppedParse)
	assert.Equal(t, 0, r.DroppedRange)
	assert.Equal(t, 1, r.FilteredOut)
	require.Len(t, r.Dropped, 1)
	assert.Contains(t, r.Dropped[0].Error, "row 30 has 4 values, want 24")
	assert.Equal(t, eventDay, r.GeneratedAt)

	require.Len(t, loader.tables, 1)
	if diff := cmp.Diff(table.Rows, loader.tables[0].Rows); diff != "" {
		t.Errorf("loaded rows mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RecordsDropped.WithLabelValues("parse")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RowsWritten.WithLabelValues("csv")))
	assert.True(t, p.Ready())
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_Alignment(t *testing.T) {
	frame := eventDay.Add(12 * time.Hour)
	inside, err := domain.NewTrackPoint("swot", frame.Add(20*time.Minute), -30, 320, 3.1)
	require.NoError(t, err)
	away, err := domain.NewTrackPoint("swot", frame.Add(45*time.Minute), -30, 320, 3.3)
	require.NoError(t, err)

	tracks := &mockTracks{batch: domain.TrackBatch{
		Points:  []domain.TrackPoint{away, inside},
		Dropped: []domain.DroppedRecord{{RecordID: "swot:a.csv:7", Reason: domain.DropParse, Error: "bad time"}},
	}}
	grid := &mockGrid{batch: domain.GridBatch{Samples: []domain.GridSample{
		{Timestamp: frame, Latitude: -30, Longitude: -40, Value: 3},
		{Timestamp: frame, Latitude: -29.5, Longitude: -40, Value: 3.2},
	}}}
	windows := &mockWindowLoader{}

	p, metrics := newPipeline(t, nil, pipeline.WithAlignment(tracks, grid), pipeline.WithWindowLoaders(windows))
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Alignment.Windows, 1)
	assert.Equal(t, []domain.TrackPoint{inside}, res.Alignment.Windows[0].Points())
	require.Len(t, res.Alignment.Pairs, 1)
	assert.InDelta(t, -0.1, res.Alignment.Overall.Bias, 1e-12)

	r := res.Table.Report
	assert.Equal(t, 2, r.TrackPoints)
	assert.Equal(t, 1, r.TrackDropped)
	assert.Equal(t, 1, r.GridFrames)
	assert.Equal(t, 1, r.Windows)
	assert.Equal(t, 1, r.WindowPoints)
	assert.Equal(t, 1, r.CollocatedPairs)

	require.Len(t, windows.alignments, 1)
	assert.Len(t, p.Windows(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WindowsBuilt))
}

func TestPipeline_Run_WorkerCountDoesNotChangeOutput(t *testing.T) {
	var sb strings.Builder
	for i := range 40 {
		ts := eventDay.Add(time.Duration(i%5) * time.Hour)
		sb.WriteString(spectrumText(ts, 315+float64(i)*0.1, -30-float64(i%7), 720, 0.001*float64(i+1)))
	}
	raws := splitRecords(t, sb.String())

	serial, _ := newPipeline(t, raws, pipeline.WithWorkers(1))
	parallel, _ := newPipeline(t, raws, pipeline.WithWorkers(8))

	a, err := serial.Run(context.Background())
	require.NoError(t, err)
	b, err := parallel.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, a.Table.Rows, 40)
	if diff := cmp.Diff(a.Table.Rows, b.Table.Rows); diff != "" {
		t.Errorf("rows differ between worker counts (-serial +parallel):\n%s", diff)
	}
	assert.True(t, domain.RowsOrdered(b.Table.Rows))
}

func TestPipeline_Run_ExtractError(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	cfg := testConfig()
	p, err := pipeline.New(&mockSpectra{err: errors.New("disk gone")}, pipeline.NewTransformer(cfg, discardLogger()), cfg, discardLogger(), metrics)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
	assert.False(t, p.Ready())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_LoaderErrorsAreCollected(t *testing.T) {
	failing := &mockTableLoader{name: "sqlite", err: errors.New("locked")}
	ok := &mockTableLoader{name: "csv"}
	p, _ := newPipeline(t, nil, pipeline.WithTableLoaders(failing, ok))

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite")
	assert.Len(t, ok.tables, 1, "later loaders still run")
	assert.False(t, p.Ready())
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	raws := splitRecords(t, spectrumText(eventDay, 318, -30, 720, 0.01))
	loader := &mockTableLoader{name: "csv"}
	p, _ := newPipeline(t, raws, pipeline.WithTableLoaders(loader), pipeline.WithWorkers(2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, loader.tables)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Box.West, cfg.Box.East = cfg.Box.East, cfg.Box.West

	_, err := pipeline.New(&mockSpectra{}, pipeline.NewTransformer(cfg, discardLogger()), cfg, discardLogger(), observability.NewMetricsForTesting())
	var ce *domain.ConfigError
	assert.ErrorAs(t, err, &ce)
}
