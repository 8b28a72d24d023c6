// Package xlsx exports the parameter table and run report as an Excel workbook.
package xlsx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/storm-wave-etl/internal/domain"
)

// FileName is the workbook written into the output directory.
const FileName = "wave_parameters.xlsx"

// Sheet names.
const (
	SheetParameters = "parameters"
	SheetSummary    = "summary"
	SheetDropped    = "dropped"
)

// Writer writes the workbook. It implements pipeline.TableLoader.
type Writer struct {
	dir string
}

// NewWriter creates a Writer targeting dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Name() string { return "xlsx" }

// LoadTable writes one sheet of rows, one of per-sensor statistics and run
// counts, and one of dropped records.
func (w *Writer) LoadTable(_ context.Context, table domain.ParameterTable) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetParameters); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeParameters(f, table); err != nil {
		return err
	}
	if err := writeSummary(f, table); err != nil {
		return err
	}
	if err := writeDropped(f, table.Report.Dropped); err != nil {
		return err
	}

	path := filepath.Join(w.dir, FileName)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func writeParameters(f *excelize.File, table domain.ParameterTable) error {
	header := make([]any, len(table.Columns))
	for i, c := range table.Columns {
		header[i] = c
	}
	if err := setRow(f, SheetParameters, 1, header); err != nil {
		return err
	}
	for i, r := range table.Rows {
		cells := r.Cells()
		// Timestamps are written as text so the sheet reads the same in every locale.
		cells[0] = r.Timestamp.UTC().Format(time.RFC3339)
		if err := setRow(f, SheetParameters, i+2, cells); err != nil {
			return err
		}
	}
	return f.SetPanes(SheetParameters, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeSummary(f *excelize.File, table domain.ParameterTable) error {
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("add sheet %s: %w", SheetSummary, err)
	}
	r := table.Report
	rows := [][]any{
		{"metric", "value"},
		{"parsed", r.Parsed},
		{"dropped_parse_error", r.DroppedParse},
		{"dropped_range_error", r.DroppedRange},
		{"filtered_out", r.FilteredOut},
		{"rows", r.Rows},
		{"rows_with_undefined_parameters", r.UndefinedRows},
		{"generated_at", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{},
		{"sensor", "rows", "swh_mean", "swh_max", "tp_mean", "mean_direction", "swell_dominated"},
	}
	for _, s := range domain.Summarize(table.Rows) {
		var dir any
		if s.MeanDirection != nil {
			dir = *s.MeanDirection
		}
		rows = append(rows, []any{s.Sensor, s.Rows, s.SWH.Mean, s.SWH.Max, s.PeakPeriod.Mean, dir, s.SwellDominated})
	}
	for i, row := range rows {
		if err := setRow(f, SheetSummary, i+1, row); err != nil {
			return err
		}
	}
	return nil
}

func writeDropped(f *excelize.File, dropped []domain.DroppedRecord) error {
	if _, err := f.NewSheet(SheetDropped); err != nil {
		return fmt.Errorf("add sheet %s: %w", SheetDropped, err)
	}
	if err := setRow(f, SheetDropped, 1, []any{"record_id", "reason", "error"}); err != nil {
		return err
	}
	for i, d := range dropped {
		if err := setRow(f, SheetDropped, i+2, []any{d.RecordID, string(d.Reason), d.Error}); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
