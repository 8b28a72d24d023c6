package domain

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// DefaultHalfWidth is the half-width of an analysis window around its frame.
const DefaultHalfWidth = 30 * time.Minute

// ErrFramesNotIncreasing is returned by Align when frame timestamps repeat or
// go backwards.
var ErrFramesNotIncreasing = errors.New("grid frames are not strictly increasing")

// AnalysisWindow pairs one grid frame with the track points observed within
// the half-width of its timestamp. The points are a view into the sorted point
// set shared by all windows of one Align call: Start and End bound the view
// (half-open) and the slice returned by Points must not be modified.
type AnalysisWindow struct {
	Frame  GridFrame
	Start  int
	End    int
	points []TrackPoint
}

// Points returns the window's observations in (timestamp, sensor) order.
func (w AnalysisWindow) Points() []TrackPoint {
	return w.points[w.Start:w.End:w.End]
}

// Len is the number of points in the window.
func (w AnalysisWindow) Len() int { return w.End - w.Start }

// Sensors counts the window's points per sensor.
func (w AnalysisWindow) Sensors() map[string]int {
	counts := make(map[string]int)
	for _, p := range w.Points() {
		counts[p.Sensor]++
	}
	return counts
}

// SortTrackPoints orders points by timestamp, then sensor, keeping the input
// order of equal keys.
func SortTrackPoints(points []TrackPoint) {
	slices.SortStableFunc(points, func(a, b TrackPoint) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.Sensor, b.Sensor)
	})
}

// Align builds one window per frame holding every point with
// |point.Timestamp - frame.Timestamp| <= halfWidth. Both bounds are inclusive,
// so a point exactly between two frames belongs to both windows. The input is
// left untouched: points are sorted once into a single shared copy, and every
// window is an index range into that copy found by binary search.
// Frames must be strictly increasing in time. Points are never deduplicated.
func Align(frames []GridFrame, points []TrackPoint, halfWidth time.Duration) ([]AnalysisWindow, error) {
	if halfWidth < 0 {
		return nil, &ConfigError{Field: "half-width", Reason: fmt.Sprintf("%s is negative", halfWidth)}
	}
	for i := 1; i < len(frames); i++ {
		if !frames[i].Timestamp.After(frames[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: frame %d at %s follows %s", ErrFramesNotIncreasing, i,
				frames[i].Timestamp.Format(time.RFC3339), frames[i-1].Timestamp.Format(time.RFC3339))
		}
	}

	sorted := slices.Clone(points)
	SortTrackPoints(sorted)

	windows := make([]AnalysisWindow, len(frames))
	for i, f := range frames {
		lo := f.Timestamp.Add(-halfWidth)
		hi := f.Timestamp.Add(halfWidth)
		start := sort.Search(len(sorted), func(k int) bool { return !sorted[k].Timestamp.Before(lo) })
		end := sort.Search(len(sorted), func(k int) bool { return sorted[k].Timestamp.After(hi) })
		windows[i] = AnalysisWindow{Frame: f, Start: start, End: end, points: sorted}
	}
	return windows, nil
}
