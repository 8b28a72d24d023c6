package xlsx

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/storm-wave-etl/internal/domain"
)

func TestWriter_LoadTable(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC)
	tp, frac := 11.5, 0.9
	table := domain.ParameterTable{
		Columns: domain.Columns,
		Rows: []domain.ParameterRow{
			{Timestamp: ts, Sensor: "sar", Latitude: -30, Longitude: -35},
			{Timestamp: ts, Sensor: "swim", Latitude: -24.1, Longitude: -41.75, SWH: 4.5, PeakPeriod: &tp, SwellFraction: &frac},
		},
		Report: domain.RunReport{
			Parsed: 3, DroppedParse: 1, Rows: 2, UndefinedRows: 2,
			Dropped: []domain.DroppedRecord{{RecordID: "swim:x:1", Reason: domain.DropParse, Error: "bad"}},
		},
	}

	w := NewWriter(dir)
	assert.Equal(t, "xlsx", w.Name())
	require.NoError(t, w.LoadTable(context.Background(), table))

	f, err := excelize.OpenFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetParameters, SheetSummary, SheetDropped}, f.GetSheetList())

	rows, err := f.GetRows(SheetParameters)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, domain.Columns, rows[0])
	assert.Equal(t, "2024-02-14T12:00:00Z", rows[1][0])
	assert.Equal(t, "11.5", rows[2][5])
	assert.Equal(t, "", rows[2][6], "undefined direction is an empty cell")

	parsed, err := f.GetCellValue(SheetSummary, "B2")
	require.NoError(t, err)
	assert.Equal(t, "3", parsed)

	swell, err := f.GetCellValue(SheetSummary, "G12")
	require.NoError(t, err)
	assert.Equal(t, "1", swell)

	dropped, err := f.GetRows(SheetDropped)
	require.NoError(t, err)
	assert.Equal(t, []string{"swim:x:1", "parse", "bad"}, dropped[1])
}
