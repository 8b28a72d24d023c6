package domain

import (
	"fmt"
	"math"
	"time"
)

// Spectral grid shared by the SWIM and SAR products.
const (
	NumFrequencies = 30
	NumDirections  = 24

	firstFrequency = 0.0345 // Hz
	frequencyRatio = 1.1
	firstDirection = 7.5  // degrees
	directionStep  = 15.0 // degrees
)

// Sensor identifiers for the spectral products.
const (
	SensorSWIM = "swim"
	SensorSAR  = "sar"
)

// Frequencies returns the 30-bin geometric frequency axis in Hz:
// f1 = 0.0345, fi = 1.1*f(i-1).
func Frequencies() []float64 {
	f := make([]float64, NumFrequencies)
	f[0] = firstFrequency
	for i := 1; i < NumFrequencies; i++ {
		f[i] = f[i-1] * frequencyRatio
	}
	return f
}

// Directions returns the 24-bin direction axis in degrees (7.5 to 352.5,
// oceanographic "coming from" convention).
func Directions() []float64 {
	d := make([]float64, NumDirections)
	for i := range d {
		d[i] = firstDirection + float64(i)*directionStep
	}
	return d
}

// validateAxes checks that the frequency axis is positive and strictly
// increasing and that the directions are equally spaced around the circle.
func validateAxes(freqs, dirs []float64) error {
	if len(freqs) != NumFrequencies {
		return fmt.Errorf("frequency axis has %d bins, want %d", len(freqs), NumFrequencies)
	}
	if len(dirs) != NumDirections {
		return fmt.Errorf("direction axis has %d bins, want %d", len(dirs), NumDirections)
	}
	for i, f := range freqs {
		if !(f > 0) {
			return fmt.Errorf("frequency bin %d is not positive: %v", i, f)
		}
		if i > 0 && f <= freqs[i-1] {
			return fmt.Errorf("frequency axis not strictly increasing at bin %d", i)
		}
	}
	step := 360.0 / NumDirections
	for i := 1; i < len(dirs); i++ {
		if math.Abs(dirs[i]-dirs[i-1]-step) > 1e-9 {
			return fmt.Errorf("direction bin %d is not spaced %v degrees from its neighbour", i, step)
		}
	}
	return nil
}

// SpectrumRecord is one directional wave spectrum observation. Energy is a
// dense [NumFrequencies][NumDirections] matrix of spectral density in
// m²/Hz/deg, indexed (frequency, direction). Records are immutable once parsed.
type SpectrumRecord struct {
	ID          string
	Sensor      string
	Timestamp   time.Time
	Latitude    float64
	Longitude   float64
	Params      []float64 // extra numeric header fields, sensor specific
	Frequencies []float64
	Directions  []float64
	Energy      [][]float64
}

// RawSpectrum is an unparsed spectral record as split out of a source file:
// the header line and the numeric block that follows it.
type RawSpectrum struct {
	Sensor string
	Source string // file the record came from
	Line   int    // 1-based line of the header within Source
	Header string
	Body   []string
}

// ID identifies a raw record for drop reporting.
func (r RawSpectrum) ID() string {
	return fmt.Sprintf("%s:%s:%d", r.Sensor, r.Source, r.Line)
}
