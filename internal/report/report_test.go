package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/storm-wave-etl/internal/domain"
)

func testTable() domain.ParameterTable {
	ts := time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC)
	tp, dir, swell := 12.0, 90.0, 0.9
	return domain.ParameterTable{
		Columns: domain.Columns,
		Rows: []domain.ParameterRow{
			{Timestamp: ts, Sensor: "swim", SWH: 4, PeakPeriod: &tp, MeanDirection: &dir, SwellFraction: &swell},
			{Timestamp: ts, Sensor: "swim", SWH: 2},
		},
		Report: domain.RunReport{Parsed: 5, DroppedParse: 2, DroppedRange: 1, Rows: 2, UndefinedRows: 1, GeneratedAt: ts},
	}
}

func TestRender_TableOnly(t *testing.T) {
	out := Render(testTable(), nil)

	assert.Contains(t, out, "Wave spectra run")
	assert.Contains(t, out, "2024-02-14T12:00:00Z")
	assert.Contains(t, out, "undefined rows")
	assert.Contains(t, out, "swim")
	assert.Contains(t, out, "3.00", "mean swh")
	assert.Contains(t, out, "12.00", "median peak period")
	assert.NotContains(t, out, "Model alignment")
}

func TestRender_WithAlignment(t *testing.T) {
	table := testTable()
	table.Report.GridFrames = 24
	table.Report.Windows = 24
	table.Report.CollocatedPairs = 2
	slope := 1.1
	a := domain.Alignment{
		Overall:  domain.CompareStats{N: 2, Bias: 0.25, RMSE: 0.5, Slope: &slope},
		BySensor: map[string]domain.CompareStats{"swot": {N: 2, Bias: 0.25, RMSE: 0.5}},
	}

	out := Render(table, &a)

	assert.Contains(t, out, "Model alignment")
	assert.Contains(t, out, "all")
	assert.Contains(t, out, "swot")
	assert.Contains(t, out, "0.25")
	assert.Contains(t, out, "1.10")
}

func TestRender_Empty(t *testing.T) {
	out := Render(domain.ParameterTable{}, &domain.Alignment{})
	assert.Contains(t, out, "Wave spectra run")
	assert.NotContains(t, out, "Sensors")
	assert.NotContains(t, out, "bias")
}
