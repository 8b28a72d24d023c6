// Package tablecsv writes the parameter table as a delimited file and reads it
// back for validation.
package tablecsv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/couchcryptid/storm-wave-etl/internal/domain"
)

// File names written into the output directory.
const (
	TableFile   = "wave_parameters.csv"
	DroppedFile = "dropped_records.csv"
)

// Writer writes the table to a directory. It implements pipeline.TableLoader.
type Writer struct {
	dir string
}

// NewWriter creates a Writer targeting dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Name() string { return "csv" }

// LoadTable writes the rows and the dropped-record list.
func (w *Writer) LoadTable(_ context.Context, table domain.ParameterTable) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := writeFile(filepath.Join(w.dir, TableFile), func(out io.Writer) error {
		return WriteTable(out, table)
	}); err != nil {
		return err
	}
	return writeFile(filepath.Join(w.dir, DroppedFile), func(out io.Writer) error {
		return writeDropped(out, table.Report.Dropped)
	})
}

// WriteTable writes the header and rows. Undefined parameters are empty cells.
func WriteTable(out io.Writer, table domain.ParameterTable) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(table.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range table.Rows {
		if err := cw.Write(r.Strings()); err != nil {
			return fmt.Errorf("write row %s: %w", r.RecordID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeDropped(out io.Writer, dropped []domain.DroppedRecord) error {
	cw := csv.NewWriter(out)
	if err := cw.Write([]string{"record_id", "reason", "error"}); err != nil {
		return err
	}
	for _, d := range dropped {
		if err := cw.Write([]string{d.RecordID, string(d.Reason), d.Error}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// ReadTable parses a file written by WriteTable. The header must match the
// table schema exactly.
func ReadTable(in io.Reader) ([]domain.ParameterRow, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = len(domain.Columns)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read table: empty file")
	}
	if !slices.Equal(records[0], domain.Columns) {
		return nil, fmt.Errorf("read table: header %v does not match schema %v", records[0], domain.Columns)
	}

	rows := make([]domain.ParameterRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("read table line %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(rec []string) (domain.ParameterRow, error) {
	ts, err := time.Parse(time.RFC3339, rec[0])
	if err != nil {
		return domain.ParameterRow{}, err
	}
	var (
		row  = domain.ParameterRow{Timestamp: ts, Sensor: rec[1]}
		ferr error
	)
	req := func(s string) float64 {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil && ferr == nil {
			ferr = err
		}
		return v
	}
	opt := func(s string) *float64 {
		if s == "" {
			return nil
		}
		v := req(s)
		return &v
	}
	row.Latitude = req(rec[2])
	row.Longitude = req(rec[3])
	row.SWH = req(rec[4])
	row.PeakPeriod = opt(rec[5])
	row.MeanDirection = opt(rec[6])
	row.DirectionalSpread = opt(rec[7])
	row.WindSeaFraction = opt(rec[8])
	row.SwellFraction = opt(rec[9])
	row.SWHWindSea = req(rec[10])
	row.SWHSwell = req(rec[11])
	return row, ferr
}
