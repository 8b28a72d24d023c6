package domain

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SwellDominatedFraction is the swell fraction above which a spectrum counts
// as swell dominated.
const SwellDominatedFraction = 0.8

// Stats are descriptive statistics of one parameter. N counts defined values
// only; the remaining fields are zero when N is 0.
type Stats struct {
	N      int     `json:"n"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
}

// Describe computes Stats over xs.
func Describe(xs []float64) Stats {
	if len(xs) == 0 {
		return Stats{}
	}
	m, std := stat.PopMeanStdDev(xs, nil)
	return Stats{
		N:      len(xs),
		Min:    floats.Min(xs),
		Max:    floats.Max(xs),
		Mean:   m,
		Median: median(xs),
		Std:    std,
	}
}

// SensorSummary describes the rows of one sensor.
type SensorSummary struct {
	Sensor         string   `json:"sensor"`
	Rows           int      `json:"rows"`
	SWH            Stats    `json:"swh"`
	PeakPeriod     Stats    `json:"peak_period"`
	MeanDirection  *float64 `json:"mean_direction"` // circular mean of the row directions
	SwellDominated int      `json:"swell_dominated"`
}

// Summarize groups table rows by sensor, in sensor order.
func Summarize(rows []ParameterRow) []SensorSummary {
	bySensor := make(map[string][]ParameterRow)
	for _, r := range rows {
		bySensor[r.Sensor] = append(bySensor[r.Sensor], r)
	}
	sensors := make([]string, 0, len(bySensor))
	for s := range bySensor {
		sensors = append(sensors, s)
	}
	slices.Sort(sensors)

	out := make([]SensorSummary, 0, len(sensors))
	for _, s := range sensors {
		out = append(out, summarizeSensor(s, bySensor[s]))
	}
	return out
}

func summarizeSensor(sensor string, rows []ParameterRow) SensorSummary {
	var swh, tp []float64
	var sx, sy float64
	var ndir, swell int
	for _, r := range rows {
		swh = append(swh, r.SWH)
		if r.PeakPeriod != nil {
			tp = append(tp, *r.PeakPeriod)
		}
		if r.MeanDirection != nil {
			rad := *r.MeanDirection * math.Pi / 180
			sx += math.Cos(rad)
			sy += math.Sin(rad)
			ndir++
		}
		if r.SwellFraction != nil && *r.SwellFraction > SwellDominatedFraction {
			swell++
		}
	}
	s := SensorSummary{
		Sensor:         sensor,
		Rows:           len(rows),
		SWH:            Describe(swh),
		PeakPeriod:     Describe(tp),
		SwellDominated: swell,
	}
	if ndir > 0 && math.Hypot(sx, sy)/float64(ndir) >= resultantEpsilon {
		d := math.Mod(math.Atan2(sy, sx)*180/math.Pi+360, 360)
		if d >= 360 {
			d = 0
		}
		s.MeanDirection = ptr(d)
	}
	return s
}
