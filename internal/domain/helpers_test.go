package domain

import (
	"strconv"
	"strings"
	"time"
)

const testHeaderSWIM = "202402141200 318.25 -24.10 1.7 9.3"

var testTime = time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC)

// energyBody renders a 30x24 block, one frequency row per line.
func energyBody(energy func(f, d int) float64) []string {
	lines := make([]string, NumFrequencies)
	for i := range lines {
		cells := make([]string, NumDirections)
		for j := range cells {
			cells[j] = strconv.FormatFloat(energy(i, j), 'g', -1, 64)
		}
		lines[i] = strings.Join(cells, " ")
	}
	return lines
}

func rawSWIM(header string, body []string) RawSpectrum {
	return RawSpectrum{Sensor: SensorSWIM, Source: "SWI_WV1", Line: 1, Header: header, Body: body}
}

// newRecord builds a parsed record on the standard axes without going through
// the text format.
func newRecord(energy func(f, d int) float64) SpectrumRecord {
	e := make([][]float64, NumFrequencies)
	for i := range e {
		e[i] = make([]float64, NumDirections)
		for j := range e[i] {
			e[i][j] = energy(i, j)
		}
	}
	return SpectrumRecord{
		ID:          "swim:test:1",
		Sensor:      SensorSWIM,
		Timestamp:   testTime,
		Latitude:    -24.1,
		Longitude:   -41.75,
		Frequencies: Frequencies(),
		Directions:  Directions(),
		Energy:      e,
	}
}

func singleBin(fi, dj int, value float64) func(f, d int) float64 {
	return func(f, d int) float64 {
		if f == fi && d == dj {
			return value
		}
		return 0
	}
}

func zeroEnergy(int, int) float64 { return 0 }

func testConfig() AnalysisConfig {
	return AnalysisConfig{
		Box:                BoundingBox{West: -50, East: -30, South: -45, North: -20},
		Window:             DateWindow{Start: time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 2, 16, 23, 59, 59, 0, time.UTC)},
		HalfWidth:          DefaultHalfWidth,
		PartitionThreshold: DefaultPartitionThreshold,
		CollocateMaxKm:     DefaultCollocateMaxKm,
	}
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 2, 14, hour, minute, 0, 0, time.UTC)
}
