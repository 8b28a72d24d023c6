package domain

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// DefaultPartitionThreshold separates wind sea (f > threshold) from swell
// (f <= threshold), in Hz.
const DefaultPartitionThreshold = 0.13

// resultantEpsilon is the smallest mean resultant length treated as a
// defined direction. Below it the weighted unit vectors cancel.
const resultantEpsilon = 1e-9

// IntegratedParameters are the scalar sea-state parameters derived from one
// spectrum. Nil pointers mark parameters that are mathematically undefined for
// the record (zero energy, or directions that cancel exactly); they are never
// replaced by 0 or NaN.
type IntegratedParameters struct {
	M0                float64  `json:"m0"`
	SWH               float64  `json:"swh"`
	PeakFrequency     *float64 `json:"peak_frequency"`
	PeakPeriod        *float64 `json:"peak_period"`
	MeanDirection     *float64 `json:"mean_direction"`
	DirectionalSpread *float64 `json:"directional_spread"`
	WindSeaFraction   *float64 `json:"windsea_fraction"`
	SwellFraction     *float64 `json:"swell_fraction"`
	SWHWindSea        float64  `json:"swh_windsea"`
	SWHSwell          float64  `json:"swh_swell"`
}

// HasUndefined reports whether any parameter is missing.
func (p IntegratedParameters) HasUndefined() bool {
	return p.PeakPeriod == nil || p.MeanDirection == nil || p.DirectionalSpread == nil ||
		p.WindSeaFraction == nil || p.SwellFraction == nil
}

// FrequencyBinWidths returns the width of each frequency bin: the spacing to
// the next bin, with the last bin extrapolated at the same ratio so that a
// geometric axis gets widths proportional to frequency throughout.
func FrequencyBinWidths(freqs []float64) []float64 {
	n := len(freqs)
	df := make([]float64, n)
	switch n {
	case 0:
		return df
	case 1:
		df[0] = freqs[0] * (frequencyRatio - 1)
		return df
	}
	for i := 0; i < n-1; i++ {
		df[i] = freqs[i+1] - freqs[i]
	}
	df[n-1] = freqs[n-1] * (freqs[n-1]/freqs[n-2] - 1)
	return df
}

// ComputeParameters integrates a spectrum into its sea-state parameters.
//
//	m0     = sum_f sum_d E(f,d) * df(f) * dθ      (dθ = 15 deg)
//	Hs     = 4 * sqrt(m0)
//	Tp     = 1 / f of the largest direction-integrated bin (lowest index on ties)
//	θm, σθ = weighted circular mean and sqrt(-2 ln R) of sum_f E(f,d) per direction
//
// Energy above threshold Hz is wind sea; at or below it, swell.
func ComputeParameters(rec SpectrumRecord, threshold float64) (IntegratedParameters, error) {
	nf, nd := len(rec.Frequencies), len(rec.Directions)
	if len(rec.Energy) != nf {
		return IntegratedParameters{}, parseErrorf(rec.ID, "energy has %d rows for %d frequencies", len(rec.Energy), nf)
	}
	for i, row := range rec.Energy {
		if len(row) != nd {
			return IntegratedParameters{}, parseErrorf(rec.ID, "energy row %d has %d columns for %d directions", i, len(row), nd)
		}
	}
	if nf == 0 || nd < 2 {
		return IntegratedParameters{}, parseErrorf(rec.ID, "spectral axes too short (%dx%d)", nf, nd)
	}

	df := FrequencyBinWidths(rec.Frequencies)
	dTheta := rec.Directions[1] - rec.Directions[0]

	// Direction-integrated 1-D spectrum and its per-bin energy.
	rowSums := make([]float64, nf)
	for i, row := range rec.Energy {
		for _, e := range row {
			rowSums[i] += e
		}
	}
	binEnergy := make([]float64, nf)
	vecmath.MulBlock(binEnergy, rowSums, df)

	var m0, windSea float64
	for i, e := range binEnergy {
		e *= dTheta
		m0 += e
		if rec.Frequencies[i] > threshold {
			windSea += e
		}
	}
	swell := m0 - windSea
	if math.IsNaN(m0) || math.IsInf(m0, 0) {
		return IntegratedParameters{}, &RangeError{Field: "m0", Value: m0, Limit: "finite"}
	}

	p := IntegratedParameters{
		M0:         m0,
		SWH:        4 * math.Sqrt(m0),
		SWHWindSea: 4 * math.Sqrt(windSea),
		SWHSwell:   4 * math.Sqrt(math.Max(swell, 0)),
	}
	if m0 == 0 {
		return p, nil
	}

	peak := 0
	for i := 1; i < nf; i++ {
		if rowSums[i] > rowSums[peak] {
			peak = i
		}
	}
	fp := rec.Frequencies[peak]
	p.PeakFrequency = ptr(fp)
	p.PeakPeriod = ptr(1 / fp)

	wsFrac := windSea / m0
	p.WindSeaFraction = ptr(wsFrac)
	p.SwellFraction = ptr(1 - wsFrac)

	mean, spread, ok := circularStats(rec.Energy, rec.Directions)
	if ok {
		p.MeanDirection = ptr(mean)
		p.DirectionalSpread = ptr(spread)
	}
	return p, nil
}

// circularStats returns the energy-weighted circular mean direction in
// [0, 360) and the circular standard deviation, both in degrees. ok is false
// when the resultant vector vanishes and neither quantity is defined.
//
// Each direction is weighted by its raw energy summed over frequency; the
// frequency bin widths do not enter.
func circularStats(energy [][]float64, dirs []float64) (mean, spread float64, ok bool) {
	nd := len(dirs)

	weights := make([]float64, nd)
	for _, row := range energy {
		for d := 0; d < nd; d++ {
			weights[d] += row[d]
		}
	}

	cosTheta := make([]float64, nd)
	sinTheta := make([]float64, nd)
	for i, deg := range dirs {
		rad := deg * math.Pi / 180
		cosTheta[i] = math.Cos(rad)
		sinTheta[i] = math.Sin(rad)
	}
	vecmath.MulBlockInPlace(cosTheta, weights)
	vecmath.MulBlockInPlace(sinTheta, weights)

	var sx, sy, total float64
	for i := range weights {
		sx += cosTheta[i]
		sy += sinTheta[i]
		total += weights[i]
	}
	if total <= 0 {
		return 0, 0, false
	}

	r := math.Hypot(sx, sy) / total
	if r < resultantEpsilon {
		return 0, 0, false
	}
	r = math.Min(r, 1)

	mean = math.Mod(math.Atan2(sy, sx)*180/math.Pi, 360)
	if mean < 0 {
		mean += 360
	}
	if mean >= 360 {
		mean = 0
	}
	spread = math.Sqrt(-2*math.Log(r)) * 180 / math.Pi
	return mean, spread, true
}

func ptr(v float64) *float64 { return &v }
