package domain

import (
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const earthRadiusKm = 6371.0

// HaversineKm is the great-circle distance between two positions in km.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// MatchedPair is a track observation and the grid value at the nearest node of
// its window's frame.
type MatchedPair struct {
	Frame      time.Time  `json:"frame"`
	Point      TrackPoint `json:"point"`
	Grid       GridNode   `json:"grid"`
	DistanceKm float64    `json:"distance_km"`
}

// Collocate matches every window point with the nearest grid node of the
// window's frame. Points whose nearest node is missing or farther than maxKm
// are left unmatched. A point that sits in two windows yields two pairs.
func Collocate(windows []AnalysisWindow, maxKm float64) []MatchedPair {
	var pairs []MatchedPair
	for _, w := range windows {
		for _, p := range w.Points() {
			node, ok := w.Frame.Nearest(p.Latitude, p.Longitude)
			if !ok {
				continue
			}
			d := HaversineKm(p.Latitude, p.Longitude, node.Latitude, node.Longitude)
			if d > maxKm {
				continue
			}
			pairs = append(pairs, MatchedPair{Frame: w.Frame.Timestamp, Point: p, Grid: node, DistanceKm: d})
		}
	}
	return pairs
}

// CompareStats describes how a modelled series tracks an observed one.
// Bias and RMSE are model minus observation; the regression is model on
// observation. Fields that need two or more pairs, or non-zero variance, are
// nil when undefined.
type CompareStats struct {
	N            int      `json:"n"`
	MeanObserved float64  `json:"mean_observed"`
	MeanModel    float64  `json:"mean_model"`
	StdObserved  float64  `json:"std_observed"`
	StdModel     float64  `json:"std_model"`
	Bias         float64  `json:"bias"`
	RMSE         float64  `json:"rmse"`
	ScatterIndex *float64 `json:"scatter_index"`
	Pearson      *float64 `json:"pearson_r"`
	Slope        *float64 `json:"slope"`
	Intercept    *float64 `json:"intercept"`
}

// Compare computes statistics over matched pairs: observed is the track wave
// height, model the grid value.
func Compare(pairs []MatchedPair) CompareStats {
	obs := make([]float64, len(pairs))
	mod := make([]float64, len(pairs))
	for i, p := range pairs {
		obs[i] = p.Point.WaveHeight
		mod[i] = p.Grid.Value
	}
	return compareSeries(obs, mod)
}

// CompareBySensor splits the pairs by track sensor and compares each group.
func CompareBySensor(pairs []MatchedPair) map[string]CompareStats {
	groups := make(map[string][]MatchedPair)
	for _, p := range pairs {
		groups[p.Point.Sensor] = append(groups[p.Point.Sensor], p)
	}
	out := make(map[string]CompareStats, len(groups))
	for sensor, g := range groups {
		out[sensor] = Compare(g)
	}
	return out
}

func compareSeries(obs, mod []float64) CompareStats {
	n := len(obs)
	s := CompareStats{N: n}
	if n == 0 {
		return s
	}
	s.MeanObserved, s.StdObserved = stat.PopMeanStdDev(obs, nil)
	s.MeanModel, s.StdModel = stat.PopMeanStdDev(mod, nil)

	s.Bias = s.MeanModel - s.MeanObserved
	s.RMSE = floats.Distance(mod, obs, 2) / math.Sqrt(float64(n))
	if s.MeanObserved != 0 {
		s.ScatterIndex = ptr(s.RMSE / s.MeanObserved)
	}
	if n >= 2 && s.StdObserved > 0 {
		intercept, slope := stat.LinearRegression(obs, mod, nil, false)
		s.Slope = ptr(slope)
		s.Intercept = ptr(intercept)
		if s.StdModel > 0 {
			s.Pearson = ptr(stat.Correlation(obs, mod, nil))
		}
	}
	return s
}

// median averages the two middle values on even n; gonum's quantile
// estimators return one of them instead.
func median(xs []float64) float64 {
	s := slices.Clone(xs)
	slices.Sort(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
