package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrackPoint(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	p, err := NewTrackPoint("swot", time.Date(2024, 2, 14, 9, 0, 0, 0, loc), -30, 320, 4.2)
	require.NoError(t, err)
	assert.Equal(t, at(12, 0), p.Timestamp)
	assert.Equal(t, time.UTC, p.Timestamp.Location())
	assert.InDelta(t, -40, p.Longitude, 1e-9)
	assert.Equal(t, "swot", p.Sensor)

	for _, h := range []float64{-0.1, math.NaN(), math.Inf(1)} {
		_, err := NewTrackPoint("swot", at(12, 0), -30, -40, h)
		var re *RangeError
		assert.ErrorAs(t, err, &re)
	}

	_, err = NewTrackPoint("swot", at(12, 0), -91, -40, 1)
	assert.Error(t, err)
}

func TestAssembleGridFrames(t *testing.T) {
	samples := []GridSample{
		{Timestamp: at(13, 0), Latitude: -30, Longitude: -40, Value: 2},
		{Timestamp: at(12, 0), Latitude: -29.5, Longitude: -40, Value: 1.5},
		{Timestamp: at(12, 0), Latitude: -30, Longitude: -39.5, Value: 1.2},
		{Timestamp: at(12, 0), Latitude: -30, Longitude: -40, Value: 1.0},
		{Timestamp: at(12, 30), Latitude: -30, Longitude: -40, Value: 9},
	}

	frames, skipped := AssembleGridFrames(samples)
	require.Len(t, frames, 2)
	require.Len(t, skipped, 1)
	assert.Equal(t, at(12, 30), skipped[0].Timestamp)

	f := frames[0]
	assert.Equal(t, at(12, 0), f.Timestamp)
	assert.Equal(t, []float64{-30, -29.5}, f.Lats)
	assert.Equal(t, []float64{-40, -39.5}, f.Lons)
	assert.Equal(t, 1.0, f.Values[0][0])
	assert.Equal(t, 1.2, f.Values[0][1])
	assert.Equal(t, 1.5, f.Values[1][0])
	assert.True(t, math.IsNaN(f.Values[1][1]), "unsampled node is missing")

	assert.Equal(t, at(13, 0), frames[1].Timestamp)
}

func TestGridFrame_Nearest(t *testing.T) {
	f := GridFrame{
		Timestamp: at(12, 0),
		Lats:      []float64{-31, -30, -29},
		Lons:      []float64{-41, -40, -39},
		Values: [][]float64{
			{1, 2, 3},
			{4, 5, math.NaN()},
			{7, 8, 9},
		},
	}

	n, ok := f.Nearest(-30.2, -40.4)
	require.True(t, ok)
	assert.Equal(t, GridNode{Latitude: -30, Longitude: -40, Value: 5}, n)

	n, ok = f.Nearest(-50, -10) // clamps to the corner
	require.True(t, ok)
	assert.Equal(t, 3.0, n.Value)

	n, ok = f.Nearest(-30.5, -40)
	require.True(t, ok)
	assert.Equal(t, -31.0, n.Latitude, "ties go to the lower node")

	_, ok = f.Nearest(-30, -39)
	assert.False(t, ok, "missing cell")

	_, ok = GridFrame{}.Nearest(0, 0)
	assert.False(t, ok)
}

func TestGridFrame_Crop(t *testing.T) {
	f := GridFrame{
		Timestamp: at(12, 0),
		Lats:      []float64{-50, -40, -30, -20, -10},
		Lons:      []float64{-60, -45, -30, -15},
		Values: [][]float64{
			{1, 2, 3, 4},
			{5, 6, 7, 8},
			{9, 10, 11, 12},
			{13, 14, 15, 16},
			{17, 18, 19, 20},
		},
	}
	c := f.Crop(BoundingBox{West: -50, East: -30, South: -45, North: -20})
	assert.Equal(t, []float64{-40, -30, -20}, c.Lats)
	assert.Equal(t, []float64{-45, -30}, c.Lons)
	assert.Equal(t, [][]float64{{6, 7}, {10, 11}, {14, 15}}, c.Values)

	c.Values[0][0] = 99
	assert.Equal(t, 6.0, f.Values[1][1], "crop is a copy")
	assert.Equal(t, "frame 2024-02-14T12:00:00Z (3x2)", c.String())
}
