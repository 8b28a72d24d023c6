package domain

import (
	"math"
	"time"
)

// Alignment is the result of the temporal branch: the analysis windows, the
// collocated pairs drawn from them and their comparison statistics.
type Alignment struct {
	Windows  []AnalysisWindow
	Pairs    []MatchedPair
	Overall  CompareStats
	BySensor map[string]CompareStats
}

// BuildAlignment restricts frames and points to the configured region and
// period, aligns them and collocates each window's points with its frame.
// Points must already be normalized. It returns the number of points removed
// by the filter along with the alignment.
func BuildAlignment(frames []GridFrame, points []TrackPoint, cfg AnalysisConfig) (Alignment, int, error) {
	f := cfg.Filter()

	kept := make([]TrackPoint, 0, len(points))
	for _, p := range points {
		if f.Keep(p.Latitude, p.Longitude, p.Timestamp) {
			kept = append(kept, p)
		}
	}
	var inPeriod []GridFrame
	for _, g := range frames {
		if cfg.Window.Contains(g.Timestamp) {
			inPeriod = append(inPeriod, g.Crop(cfg.Box))
		}
	}

	windows, err := Align(inPeriod, kept, cfg.HalfWidth)
	if err != nil {
		return Alignment{}, 0, err
	}
	pairs := Collocate(windows, cfg.CollocateMaxKm)
	return Alignment{
		Windows:  windows,
		Pairs:    pairs,
		Overall:  Compare(pairs),
		BySensor: CompareBySensor(pairs),
	}, len(points) - len(kept), nil
}

// WindowMessage is the wire form of an analysis window, as published to Kafka
// and streamed to rendering clients. Missing grid cells are null.
type WindowMessage struct {
	Frame   time.Time      `json:"frame"`
	Lats    []float64      `json:"lats"`
	Lons    []float64      `json:"lons"`
	Values  [][]*float64   `json:"values"`
	Points  []TrackPoint   `json:"points"`
	Sensors map[string]int `json:"sensors"`
}

// NewWindowMessage converts a window for publication.
func NewWindowMessage(w AnalysisWindow) WindowMessage {
	values := make([][]*float64, len(w.Frame.Values))
	for i, row := range w.Frame.Values {
		values[i] = make([]*float64, len(row))
		for j, v := range row {
			if !math.IsNaN(v) {
				values[i][j] = ptr(v)
			}
		}
	}
	points := w.Points()
	if points == nil {
		points = []TrackPoint{}
	}
	return WindowMessage{
		Frame:   w.Frame.Timestamp,
		Lats:    w.Frame.Lats,
		Lons:    w.Frame.Lons,
		Values:  values,
		Points:  points,
		Sensors: w.Sensors(),
	}
}
