package main

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/storm-wave-etl/internal/domain"
)

func validRow(ts time.Time, sensor string) domain.ParameterRow {
	tp, dir, spread, ws, sw := 10.0, 200.0, 30.0, 0.2, 0.8
	swh := 2.0
	return domain.ParameterRow{
		Timestamp: ts, Sensor: sensor, Latitude: -30, Longitude: -40,
		SWH: swh, PeakPeriod: &tp, MeanDirection: &dir, DirectionalSpread: &spread,
		WindSeaFraction: &ws, SwellFraction: &sw,
		SWHWindSea: swh * math.Sqrt(ws), SWHSwell: swh * math.Sqrt(sw),
	}
}

func TestPhases_ValidTable(t *testing.T) {
	ts := time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC)
	rows := []domain.ParameterRow{
		validRow(ts, "sar"),
		validRow(ts, "swim"),
		{Timestamp: ts.Add(time.Hour), Sensor: "swim", Latitude: -25, Longitude: -35},
	}
	for _, p := range []*phase{validateOrder(rows), validateRanges(rows), validatePartition(rows), validateUndefined(rows)} {
		assert.True(t, p.passed(), "%s: %v", p.name, p.errors)
	}
}

func TestValidateOrder(t *testing.T) {
	ts := time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC)
	p := validateOrder([]domain.ParameterRow{validRow(ts, "swim"), validRow(ts, "sar")})
	assert.False(t, p.passed())
}

func TestValidateRanges(t *testing.T) {
	ts := time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC)
	bad := validRow(ts, "swim")
	dir := 360.0
	bad.MeanDirection = &dir
	bad.Longitude = 180

	p := validateRanges([]domain.ParameterRow{bad})
	assert.Len(t, p.errors, 2)
}

func TestValidatePartition(t *testing.T) {
	ts := time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC)
	bad := validRow(ts, "swim")
	bad.SWHSwell = 0
	ws := 0.5
	bad.WindSeaFraction = &ws

	p := validatePartition([]domain.ParameterRow{bad})
	assert.Len(t, p.errors, 2)
}

func TestValidateUndefined(t *testing.T) {
	ts := time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC)
	bad := validRow(ts, "swim")
	bad.DirectionalSpread = nil
	bad.SwellFraction = nil

	p := validateUndefined([]domain.ParameterRow{bad})
	assert.Len(t, p.errors, 2)
}

func TestCompareTables(t *testing.T) {
	ts := time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC)
	want := []domain.ParameterRow{validRow(ts, "swim")}
	got := []domain.ParameterRow{validRow(ts, "swim")}
	got[0].RecordID = "swim:f:1"
	got[0].SWH += 1e-12

	assert.True(t, compareTables("same", want, got).passed())

	got[0].Sensor = "sar"
	assert.False(t, compareTables("differs", want, got).passed())
	assert.False(t, compareTables("short", want, nil).passed())
}
