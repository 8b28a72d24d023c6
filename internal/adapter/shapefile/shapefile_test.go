package shapefile

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	shp "github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-wave-etl/internal/domain"
)

func TestWriter_LoadWindows(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC)
	frame := domain.GridFrame{
		Timestamp: ts,
		Lats:      []float64{-30},
		Lons:      []float64{-40},
		Values:    [][]float64{{3.25}},
	}
	points := []domain.TrackPoint{
		{Timestamp: ts.Add(10 * time.Minute), Latitude: -30, Longitude: -40, WaveHeight: 3.5, Sensor: "swot"},
		{Timestamp: ts.Add(20 * time.Minute), Latitude: -35, Longitude: -45, WaveHeight: 2, Sensor: "swot"},
	}
	windows, err := domain.Align([]domain.GridFrame{frame}, points, domain.DefaultHalfWidth)
	require.NoError(t, err)
	pairs := domain.Collocate(windows, domain.DefaultCollocateMaxKm)
	require.Len(t, pairs, 1, "second point is too far from the only node")

	w := NewWriter(dir)
	assert.Equal(t, "shapefile", w.Name())
	require.NoError(t, w.LoadWindows(context.Background(), domain.Alignment{Windows: windows, Pairs: pairs}))

	r, err := shp.Open(filepath.Join(dir, FileName))
	require.NoError(t, err)
	defer r.Close()
	assert.Len(t, r.Fields(), len(fields))

	var got []*shp.Point
	for r.Next() {
		n, shape := r.Shape()
		p, ok := shape.(*shp.Point)
		require.True(t, ok)
		got = append(got, p)

		assert.Equal(t, "2024-02-14T12:00:00Z", r.ReadAttribute(n, fieldFrame))
		assert.Equal(t, "swot", r.ReadAttribute(n, fieldSensor))
		if n == 0 {
			assert.Equal(t, "2024-02-14T12:10:00Z", r.ReadAttribute(n, fieldTime))
			assert.InDelta(t, 3.5, attrFloat(t, r, n, fieldSWH), 1e-9)
			assert.InDelta(t, 3.25, attrFloat(t, r, n, fieldModel), 1e-9)
			assert.InDelta(t, 0, attrFloat(t, r, n, fieldDistance), 1e-9)
		}
	}
	require.Len(t, got, 2)
	assert.Equal(t, shp.Point{X: -40, Y: -30}, *got[0])
	assert.Equal(t, shp.Point{X: -45, Y: -35}, *got[1])
}

func TestWriter_ColumnIndexesMatchFieldNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewWriter(dir).LoadWindows(context.Background(), domain.Alignment{}))

	r, err := shp.Open(filepath.Join(dir, FileName))
	require.NoError(t, err)
	defer r.Close()

	name := func(i int) string {
		n := r.Fields()[i].Name
		return strings.TrimRight(string(n[:]), "\x00")
	}
	assert.Equal(t, "FRAME", name(fieldFrame))
	assert.Equal(t, "OBS_TIME", name(fieldTime))
	assert.Equal(t, "SENSOR", name(fieldSensor))
	assert.Equal(t, "SWH", name(fieldSWH))
	assert.Equal(t, "MODEL_SWH", name(fieldModel))
	assert.Equal(t, "DIST_KM", name(fieldDistance))
}

func TestWriter_NoWindows(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewWriter(dir).LoadWindows(context.Background(), domain.Alignment{}))

	r, err := shp.Open(filepath.Join(dir, FileName))
	require.NoError(t, err)
	defer r.Close()
	assert.False(t, r.Next())
}

func attrFloat(t *testing.T, r *shp.Reader, row, field int) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(r.ReadAttribute(row, field), 64)
	require.NoError(t, err)
	return v
}
