// Package csvsource reads along-track satellite observations and long-format
// gridded wave heights from CSV files.
package csvsource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-wave-etl/internal/domain"
)

// Column aliases accepted in the header row.
var (
	timeColumns  = []string{"time", "datetime", "timestamp"}
	latColumns   = []string{"latitude", "lat"}
	lonColumns   = []string{"longitude", "lon"}
	trackColumns = []string{"value", "swh", "swh_sat"}
	gridColumns  = []string{"swh", "value"}
)

// timeLayouts are tried in order for the time column.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// TrackReader reads per-sensor track CSVs: one sub-directory per sensor, each
// holding any number of *.csv files. It implements pipeline.TrackExtractor.
type TrackReader struct {
	dir    string
	logger *slog.Logger
}

// NewTrackReader creates a TrackReader rooted at dir.
func NewTrackReader(dir string, logger *slog.Logger) *TrackReader {
	return &TrackReader{dir: dir, logger: logger}
}

// ExtractTracks reads every sensor directory. Rows that fail to parse or lie
// outside the valid coordinate range are dropped and reported.
func (r *TrackReader) ExtractTracks(ctx context.Context) (domain.TrackBatch, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return domain.TrackBatch{}, fmt.Errorf("read tracks dir: %w", err)
	}

	var batch domain.TrackBatch
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sensor := e.Name()
		files, err := filepath.Glob(filepath.Join(r.dir, sensor, "*.csv"))
		if err != nil {
			return domain.TrackBatch{}, fmt.Errorf("glob %s tracks: %w", sensor, err)
		}
		slices.Sort(files)
		for _, path := range files {
			if err := ctx.Err(); err != nil {
				return domain.TrackBatch{}, err
			}
			n, err := r.readTrackFile(path, sensor, &batch)
			if err != nil {
				return domain.TrackBatch{}, err
			}
			r.logger.Debug("track file read", "sensor", sensor, "source", path, "points", n)
		}
	}
	r.logger.Info("tracks read", "dir", r.dir, "points", len(batch.Points), "dropped", len(batch.Dropped))
	return batch, nil
}

func (r *TrackReader) readTrackFile(path, sensor string, batch *domain.TrackBatch) (int, error) {
	source := sensor + ":" + filepath.Base(path)
	n := 0
	err := eachRow(path, [][]string{timeColumns, latColumns, lonColumns, trackColumns},
		func(line int, vals []string) {
			id := fmt.Sprintf("%s:%d", source, line)
			ts, lat, lon, h, err := parseRow(vals)
			if err == nil {
				var p domain.TrackPoint
				p, err = domain.NewTrackPoint(sensor, ts, lat, lon, h)
				if err == nil {
					batch.Points = append(batch.Points, p)
					n++
					return
				}
			}
			batch.Dropped = append(batch.Dropped, drop(id, err))
		})
	return n, err
}

// GridReader reads a long-format grid file with one row per node and hour.
// It implements pipeline.GridExtractor.
type GridReader struct {
	path   string
	logger *slog.Logger
}

// NewGridReader creates a GridReader for path.
func NewGridReader(path string, logger *slog.Logger) *GridReader {
	return &GridReader{path: path, logger: logger}
}

// ExtractGrid reads every sample. Empty or "nan" values are kept as missing
// cells; malformed rows are dropped and reported.
func (r *GridReader) ExtractGrid(ctx context.Context) (domain.GridBatch, error) {
	if err := ctx.Err(); err != nil {
		return domain.GridBatch{}, err
	}
	source := "grid:" + filepath.Base(r.path)
	var batch domain.GridBatch
	err := eachRow(r.path, [][]string{timeColumns, latColumns, lonColumns, gridColumns},
		func(line int, vals []string) {
			id := fmt.Sprintf("%s:%d", source, line)
			ts, lat, lon, v, err := parseRow(vals)
			if err == nil {
				lat, lon, err = domain.NormalizePosition(lat, lon)
			}
			if err != nil {
				batch.Dropped = append(batch.Dropped, drop(id, err))
				return
			}
			batch.Samples = append(batch.Samples, domain.GridSample{Timestamp: ts, Latitude: lat, Longitude: lon, Value: v})
		})
	if err != nil {
		return domain.GridBatch{}, err
	}
	r.logger.Info("grid read", "path", r.path, "samples", len(batch.Samples), "dropped", len(batch.Dropped))
	return batch, nil
}

// eachRow opens a CSV file, locates the wanted columns by header name and
// calls fn with their values for every data row. line is the 1-based line.
func eachRow(path string, want [][]string, fn func(line int, vals []string)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", path, err)
	}
	idx, err := columnIndexes(header, want)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			fn(pe.StartLine, nil)
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		line, _ := cr.FieldPos(0)
		fn(line, pick(rec, idx))
	}
}

// pick returns the wanted fields of rec, or nil when the row is too short.
func pick(rec []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, c := range idx {
		if c >= len(rec) {
			return nil
		}
		out[i] = rec[c]
	}
	return out
}

func columnIndexes(header []string, want [][]string) ([]int, error) {
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	idx := make([]int, len(want))
	for i, aliases := range want {
		idx[i] = -1
		for _, a := range aliases {
			if j := slices.Index(norm, a); j >= 0 {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return nil, fmt.Errorf("missing column %s", strings.Join(aliases, "|"))
		}
	}
	return idx, nil
}

// parseRow decodes (time, lat, lon, value). A missing value parses as NaN.
func parseRow(vals []string) (time.Time, float64, float64, float64, error) {
	if vals == nil {
		return time.Time{}, 0, 0, 0, &domain.ParseError{Reason: "malformed csv row"}
	}
	ts, err := parseTime(vals[0])
	if err != nil {
		return time.Time{}, 0, 0, 0, err
	}
	lat, err := parseFloat("latitude", vals[1])
	if err != nil {
		return time.Time{}, 0, 0, 0, err
	}
	lon, err := parseFloat("longitude", vals[2])
	if err != nil {
		return time.Time{}, 0, 0, 0, err
	}
	v := math.NaN()
	if s := strings.TrimSpace(vals[3]); s != "" && !strings.EqualFold(s, "nan") {
		if v, err = parseFloat("value", s); err != nil {
			return time.Time{}, 0, 0, 0, err
		}
	}
	return ts, lat, lon, v, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &domain.ParseError{Reason: fmt.Sprintf("time %q not recognised", s)}
}

func parseFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, &domain.ParseError{Reason: fmt.Sprintf("%s %q is not numeric", field, s)}
	}
	return v, nil
}

func drop(id string, err error) domain.DroppedRecord {
	return domain.DroppedRecord{RecordID: id, Reason: domain.ClassifyDrop(err), Error: err.Error()}
}
