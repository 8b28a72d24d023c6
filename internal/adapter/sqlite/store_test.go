package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-wave-etl/internal/domain"
)

var ts = time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testTable() domain.ParameterTable {
	tp, dir := 11.5, 135.0
	return domain.ParameterTable{
		Columns: domain.Columns,
		Rows: []domain.ParameterRow{
			{RecordID: "sar:b:1", Timestamp: ts, Sensor: "sar", Latitude: -30, Longitude: -35},
			{RecordID: "swim:a:1", Timestamp: ts, Sensor: "swim", Latitude: -24.1, Longitude: -41.75,
				SWH: 4.5, PeakPeriod: &tp, MeanDirection: &dir, SWHWindSea: 1, SWHSwell: 4.4},
		},
		Report: domain.RunReport{
			Parsed: 3, DroppedRange: 1, Rows: 2, UndefinedRows: 2,
			Dropped:     []domain.DroppedRecord{{RecordID: "swim:a:4", Reason: domain.DropRange, Error: "m0 out of range"}},
			GeneratedAt: ts.Add(time.Hour),
		},
	}
}

func TestStore_LoadTable(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	assert.Equal(t, "sqlite", s.Name())

	require.NoError(t, s.LoadTable(ctx, testTable()))

	runID, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), runID)

	rows, err := s.Rows(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, testTable().Rows, rows)
	assert.Nil(t, rows[0].PeakPeriod, "undefined values come back as NULL")

	report, err := s.RunCounts(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Parsed)
	assert.Equal(t, 1, report.DroppedRange)
	assert.Equal(t, 2, report.UndefinedRows)
	assert.True(t, report.GeneratedAt.Equal(ts.Add(time.Hour)))

	var dropped int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM dropped_records WHERE run_id = ?", runID).Scan(&dropped))
	assert.Equal(t, 1, dropped)
}

func TestStore_RunsAreSeparate(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	require.NoError(t, s.LoadTable(ctx, testTable()))
	require.NoError(t, s.LoadTable(ctx, domain.ParameterTable{Columns: domain.Columns}))

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), latest)

	rows, err := s.Rows(ctx, latest)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = s.Rows(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestStore_LoadWindows(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	require.NoError(t, s.LoadTable(ctx, testTable()))

	frame := domain.GridFrame{
		Timestamp: ts,
		Lats:      []float64{-30},
		Lons:      []float64{-40},
		Values:    [][]float64{{3}},
	}
	points := []domain.TrackPoint{
		{Timestamp: ts.Add(10 * time.Minute), Latitude: -30, Longitude: -40, WaveHeight: 3.5, Sensor: "swot"},
		{Timestamp: ts.Add(-5 * time.Minute), Latitude: -30.1, Longitude: -40, WaveHeight: 2.5, Sensor: "swot"},
	}
	windows, err := domain.Align([]domain.GridFrame{frame}, points, domain.DefaultHalfWidth)
	require.NoError(t, err)
	pairs := domain.Collocate(windows, domain.DefaultCollocateMaxKm)
	a := domain.Alignment{
		Windows:  windows,
		Pairs:    pairs,
		Overall:  domain.Compare(pairs),
		BySensor: domain.CompareBySensor(pairs),
	}

	require.NoError(t, s.LoadWindows(ctx, a))

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM window_points WHERE run_id = 1").Scan(&n))
	assert.Equal(t, 2, n)
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM matched_pairs WHERE run_id = 1").Scan(&n))
	assert.Equal(t, 2, n)

	var bias float64
	require.NoError(t, s.db.QueryRow("SELECT n, bias FROM compare_stats WHERE run_id = 1 AND sensor = 'all'").Scan(&n, &bias))
	assert.Equal(t, 2, n)
	assert.InDelta(t, 0, bias, 1e-12)
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM compare_stats WHERE run_id = 1").Scan(&n))
	assert.Equal(t, 2, n, "overall plus one sensor")
}

func TestStore_LoadWindowsWithoutTableStampsRunFromClock(t *testing.T) {
	frozen := time.Date(2024, 2, 15, 6, 30, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(frozen))
	t.Cleanup(func() { domain.SetClock(nil) })

	ctx := context.Background()
	s := openMemory(t)
	require.NoError(t, s.LoadWindows(ctx, domain.Alignment{}))

	id, err := s.LatestRun(ctx)
	require.NoError(t, err)
	r, err := s.RunCounts(ctx, id)
	require.NoError(t, err)
	assert.True(t, frozen.Equal(r.GeneratedAt), "got %v", r.GeneratedAt)
	assert.Zero(t, r.Parsed)
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", FileName)
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.LoadTable(context.Background(), testTable()))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	runID, err := s.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), runID)
}
