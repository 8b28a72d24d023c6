package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BoundingBox is a rectangular region in normalized coordinates. All four
// edges are inclusive. Boxes that straddle the ±180° seam are not supported.
type BoundingBox struct {
	West  float64 `json:"west"`
	East  float64 `json:"east"`
	South float64 `json:"south"`
	North float64 `json:"north"`
}

// ParseBoundingBox reads "west,east,south,north".
func ParseBoundingBox(s string) (BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, &ConfigError{Field: "bounding box", Reason: fmt.Sprintf("want west,east,south,north, got %q", s)}
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingBox{}, &ConfigError{Field: "bounding box", Reason: fmt.Sprintf("%q is not a number", p)}
		}
		v[i] = f
	}
	return BoundingBox{West: v[0], East: v[1], South: v[2], North: v[3]}, nil
}

// Validate rejects inverted or out-of-range boxes. A box whose west edge is
// east of its east edge is rejected even if it was meant to cross the seam.
func (b BoundingBox) Validate() error {
	switch {
	case b.West < -180 || b.West >= 180 || b.East < -180 || b.East >= 180:
		return &ConfigError{Field: "bounding box", Reason: fmt.Sprintf("longitudes %v..%v outside [-180, 180)", b.West, b.East)}
	case b.South < -90 || b.North > 90:
		return &ConfigError{Field: "bounding box", Reason: fmt.Sprintf("latitudes %v..%v outside [-90, 90]", b.South, b.North)}
	case b.West >= b.East:
		return &ConfigError{Field: "bounding box", Reason: fmt.Sprintf("west %v must be less than east %v (seam-crossing boxes are unsupported)", b.West, b.East)}
	case b.South >= b.North:
		return &ConfigError{Field: "bounding box", Reason: fmt.Sprintf("south %v must be less than north %v", b.South, b.North)}
	}
	return nil
}

// Contains reports whether a normalized position lies in the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

// DateWindow is a closed UTC time interval.
type DateWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate rejects an interval that ends before it starts.
func (w DateWindow) Validate() error {
	if w.End.Before(w.Start) {
		return &ConfigError{Field: "date window", Reason: fmt.Sprintf("end %s is before start %s",
			w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))}
	}
	return nil
}

// Contains reports whether t falls inside the window, both ends included.
func (w DateWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Filter restricts records to a region and a period.
type Filter struct {
	Box    BoundingBox
	Window DateWindow
}

// Keep reports whether a record at (lat, lon, t) passes both constraints.
func (f Filter) Keep(lat, lon float64, t time.Time) bool {
	return f.Box.Contains(lat, lon) && f.Window.Contains(t)
}

// ParseDate accepts RFC 3339 timestamps or bare YYYY-MM-DD dates (UTC midnight).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
