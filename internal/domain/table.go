package domain

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Columns is the fixed schema of the parameter table, in output order.
var Columns = []string{
	"timestamp",
	"sensor",
	"latitude",
	"longitude",
	"swh",
	"peak_period",
	"mean_direction",
	"directional_spread",
	"windsea_fraction",
	"swell_fraction",
	"swh_windsea",
	"swh_swell",
}

// ParameterRow is one spectrum reduced to its location and parameters. The
// energy matrix is not retained. Nil parameters are undefined and are written
// as empty cells.
type ParameterRow struct {
	RecordID          string    `json:"record_id"`
	Timestamp         time.Time `json:"timestamp"`
	Sensor            string    `json:"sensor"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	SWH               float64   `json:"swh"`
	PeakPeriod        *float64  `json:"peak_period"`
	MeanDirection     *float64  `json:"mean_direction"`
	DirectionalSpread *float64  `json:"directional_spread"`
	WindSeaFraction   *float64  `json:"windsea_fraction"`
	SwellFraction     *float64  `json:"swell_fraction"`
	SWHWindSea        float64   `json:"swh_windsea"`
	SWHSwell          float64   `json:"swh_swell"`
}

// NewParameterRow flattens a record and its parameters into a table row.
func NewParameterRow(rec SpectrumRecord, p IntegratedParameters) ParameterRow {
	return ParameterRow{
		RecordID:          rec.ID,
		Timestamp:         rec.Timestamp,
		Sensor:            rec.Sensor,
		Latitude:          rec.Latitude,
		Longitude:         rec.Longitude,
		SWH:               p.SWH,
		PeakPeriod:        p.PeakPeriod,
		MeanDirection:     p.MeanDirection,
		DirectionalSpread: p.DirectionalSpread,
		WindSeaFraction:   p.WindSeaFraction,
		SwellFraction:     p.SwellFraction,
		SWHWindSea:        p.SWHWindSea,
		SWHSwell:          p.SWHSwell,
	}
}

// HasUndefined reports whether any parameter of the row is missing.
func (r ParameterRow) HasUndefined() bool {
	return r.PeakPeriod == nil || r.MeanDirection == nil || r.DirectionalSpread == nil ||
		r.WindSeaFraction == nil || r.SwellFraction == nil
}

// Cells returns the row's values in Columns order. Undefined parameters are
// nil; everything else is a time.Time, string or float64.
func (r ParameterRow) Cells() []any {
	return []any{
		r.Timestamp,
		r.Sensor,
		r.Latitude,
		r.Longitude,
		r.SWH,
		optional(r.PeakPeriod),
		optional(r.MeanDirection),
		optional(r.DirectionalSpread),
		optional(r.WindSeaFraction),
		optional(r.SwellFraction),
		r.SWHWindSea,
		r.SWHSwell,
	}
}

// Strings renders the row for delimited output. Undefined cells are empty.
func (r ParameterRow) Strings() []string {
	cells := r.Cells()
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = FormatCell(c)
	}
	return out
}

// FormatCell renders one table cell as text.
func FormatCell(c any) string {
	switch v := c.(type) {
	case nil:
		return ""
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func optional(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// DroppedRecord identifies a record left out of the table and why.
type DroppedRecord struct {
	RecordID string     `json:"record_id"`
	Reason   DropReason `json:"reason"`
	Error    string     `json:"error"`
}

// RunReport summarizes a run. The spectral counts are filled by BuildTable;
// the track, grid and window counts by the alignment stage.
type RunReport struct {
	Parsed        int             `json:"parsed"`
	DroppedParse  int             `json:"dropped_parse_error"`
	DroppedRange  int             `json:"dropped_range_error"`
	FilteredOut   int             `json:"filtered_out"`
	Rows          int             `json:"rows"`
	UndefinedRows int             `json:"rows_with_undefined_parameters"`
	Dropped       []DroppedRecord `json:"dropped,omitempty"`

	TrackPoints     int `json:"track_points"`
	TrackDropped    int `json:"track_dropped"`
	TrackFiltered   int `json:"track_filtered_out"`
	GridFrames      int `json:"grid_frames"`
	GridSkipped     int `json:"grid_samples_skipped"`
	Windows         int `json:"windows"`
	WindowPoints    int `json:"window_points"`
	CollocatedPairs int `json:"collocated_pairs"`

	GeneratedAt time.Time `json:"generated_at"`
}

// ParameterTable is the assembled, sorted output of the spectral branch.
type ParameterTable struct {
	Columns []string       `json:"columns"`
	Rows    []ParameterRow `json:"rows"`
	Report  RunReport      `json:"report"`
}

// BuildTable collects per-record results into the parameter table. Failed
// records are counted by drop reason; filtered records are counted but not
// kept. Rows are sorted by timestamp then sensor, with position and record ID
// as final tie-breakers so the output does not depend on result order.
func BuildTable(results []SpectrumResult) ParameterTable {
	if n := len(ParameterRow{}.Cells()); n != len(Columns) {
		panic(fmt.Sprintf("parameter row has %d cells for %d columns", n, len(Columns)))
	}

	t := ParameterTable{Columns: slices.Clone(Columns)}
	for _, res := range results {
		if res.Err != nil {
			reason := ClassifyDrop(res.Err)
			switch reason {
			case DropRange:
				t.Report.DroppedRange++
			default:
				t.Report.DroppedParse++
			}
			t.Report.Dropped = append(t.Report.Dropped, DroppedRecord{
				RecordID: res.RecordID,
				Reason:   reason,
				Error:    res.Err.Error(),
			})
			continue
		}
		t.Report.Parsed++
		if res.Filtered {
			t.Report.FilteredOut++
			continue
		}
		if res.Row.HasUndefined() {
			t.Report.UndefinedRows++
		}
		t.Rows = append(t.Rows, res.Row)
	}

	SortRows(t.Rows)
	slices.SortFunc(t.Report.Dropped, func(a, b DroppedRecord) int {
		return strings.Compare(a.RecordID, b.RecordID)
	})
	t.Report.Rows = len(t.Rows)
	t.Report.GeneratedAt = clock.Now()
	return t
}

// SortRows applies the table's deterministic row order.
func SortRows(rows []ParameterRow) {
	slices.SortStableFunc(rows, compareRows)
}

func compareRows(a, b ParameterRow) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	return cmp.Or(
		strings.Compare(a.Sensor, b.Sensor),
		cmp.Compare(a.Latitude, b.Latitude),
		cmp.Compare(a.Longitude, b.Longitude),
		strings.Compare(a.RecordID, b.RecordID),
	)
}

// RowsOrdered reports whether rows are in the table's order.
func RowsOrdered(rows []ParameterRow) bool {
	return slices.IsSortedFunc(rows, compareRows)
}
