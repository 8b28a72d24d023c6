package domain

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"time"
)

// TrackPoint is one along-track satellite wave-height observation.
type TrackPoint struct {
	Timestamp  time.Time `json:"timestamp"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	WaveHeight float64   `json:"wave_height"`
	Sensor     string    `json:"sensor"`
}

// NewTrackPoint normalizes the position and checks the wave height. It is the
// ingestion point for track data.
func NewTrackPoint(sensor string, ts time.Time, lat, lon, height float64) (TrackPoint, error) {
	nlat, nlon, err := NormalizePosition(lat, lon)
	if err != nil {
		return TrackPoint{}, err
	}
	if math.IsNaN(height) || math.IsInf(height, 0) || height < 0 {
		return TrackPoint{}, &RangeError{Field: "wave height", Value: height, Limit: "finite, >= 0"}
	}
	return TrackPoint{
		Timestamp:  ts.UTC(),
		Latitude:   nlat,
		Longitude:  nlon,
		WaveHeight: height,
		Sensor:     sensor,
	}, nil
}

// GridSample is one long-format grid cell: a value at a node and an hour.
// Positions are already normalized.
type GridSample struct {
	Timestamp time.Time
	Latitude  float64
	Longitude float64
	Value     float64 // NaN over land
}

// GridFrame is a gridded wave-height field at one on-the-hour timestamp.
// Values is indexed [lat][lon]; both axes are ascending. Missing cells are NaN.
type GridFrame struct {
	Timestamp time.Time   `json:"timestamp"`
	Lats      []float64   `json:"lats"`
	Lons      []float64   `json:"lons"`
	Values    [][]float64 `json:"-"`
}

// GridNode is a single lattice node of a frame.
type GridNode struct {
	Latitude  float64
	Longitude float64
	Value     float64
}

// Nearest returns the lattice node closest to (lat, lon) along each axis. ok is
// false for an empty frame or a missing (NaN) cell.
func (g GridFrame) Nearest(lat, lon float64) (GridNode, bool) {
	if len(g.Lats) == 0 || len(g.Lons) == 0 {
		return GridNode{}, false
	}
	i := nearestIndex(g.Lats, lat)
	j := nearestIndex(g.Lons, lon)
	v := g.Values[i][j]
	if math.IsNaN(v) {
		return GridNode{}, false
	}
	return GridNode{Latitude: g.Lats[i], Longitude: g.Lons[j], Value: v}, true
}

// nearestIndex finds the element of an ascending axis closest to x; ties go to
// the lower index.
func nearestIndex(axis []float64, x float64) int {
	k := sort.SearchFloat64s(axis, x)
	switch {
	case k == 0:
		return 0
	case k == len(axis):
		return len(axis) - 1
	case x-axis[k-1] <= axis[k]-x:
		return k - 1
	default:
		return k
	}
}

// AssembleGridFrames groups long-format samples into one frame per hour.
// Samples off the hour are returned in skipped rather than snapped. Frames
// come back in strictly increasing time order.
func AssembleGridFrames(samples []GridSample) (frames []GridFrame, skipped []GridSample) {
	byTime := make(map[time.Time][]GridSample)
	for _, s := range samples {
		ts := s.Timestamp.UTC()
		if !ts.Equal(ts.Truncate(time.Hour)) {
			skipped = append(skipped, s)
			continue
		}
		byTime[ts] = append(byTime[ts], s)
	}

	stamps := make([]time.Time, 0, len(byTime))
	for ts := range byTime {
		stamps = append(stamps, ts)
	}
	slices.SortFunc(stamps, func(a, b time.Time) int { return a.Compare(b) })

	frames = make([]GridFrame, 0, len(stamps))
	for _, ts := range stamps {
		frames = append(frames, buildFrame(ts, byTime[ts]))
	}
	return frames, skipped
}

func buildFrame(ts time.Time, samples []GridSample) GridFrame {
	lats := make([]float64, 0, len(samples))
	lons := make([]float64, 0, len(samples))
	for _, s := range samples {
		lats = append(lats, s.Latitude)
		lons = append(lons, s.Longitude)
	}
	slices.Sort(lats)
	slices.Sort(lons)
	lats = slices.Compact(lats)
	lons = slices.Compact(lons)

	values := make([][]float64, len(lats))
	for i := range values {
		row := make([]float64, len(lons))
		for j := range row {
			row[j] = math.NaN()
		}
		values[i] = row
	}
	for _, s := range samples {
		i, _ := slices.BinarySearch(lats, s.Latitude)
		j, _ := slices.BinarySearch(lons, s.Longitude)
		values[i][j] = s.Value
	}
	return GridFrame{Timestamp: ts, Lats: lats, Lons: lons, Values: values}
}

// Crop returns a copy of the frame restricted to the nodes inside box.
func (g GridFrame) Crop(box BoundingBox) GridFrame {
	i0, i1 := axisRange(g.Lats, box.South, box.North)
	j0, j1 := axisRange(g.Lons, box.West, box.East)
	out := GridFrame{
		Timestamp: g.Timestamp,
		Lats:      slices.Clone(g.Lats[i0:i1]),
		Lons:      slices.Clone(g.Lons[j0:j1]),
		Values:    make([][]float64, 0, i1-i0),
	}
	for i := i0; i < i1; i++ {
		out.Values = append(out.Values, slices.Clone(g.Values[i][j0:j1]))
	}
	return out
}

func axisRange(axis []float64, lo, hi float64) (int, int) {
	start := sort.SearchFloat64s(axis, lo)
	end := sort.Search(len(axis), func(i int) bool { return axis[i] > hi })
	if end < start {
		end = start
	}
	return start, end
}

// String summarizes the frame for logs.
func (g GridFrame) String() string {
	return fmt.Sprintf("frame %s (%dx%d)", g.Timestamp.Format(time.RFC3339), len(g.Lats), len(g.Lons))
}

// TrackBatch is the output of track ingestion: the valid points and the rows
// that were rejected.
type TrackBatch struct {
	Points  []TrackPoint
	Dropped []DroppedRecord
}

// GridBatch is the output of grid ingestion.
type GridBatch struct {
	Samples []GridSample
	Dropped []DroppedRecord
}
