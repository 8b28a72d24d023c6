// Package sqlite persists the parameter table, run reports and collocation
// results in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/storm-wave-etl/internal/domain"
)

// FileName is the database written into the output directory.
const FileName = "wave_analysis.db"

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		generated_at TEXT NOT NULL,
		parsed INTEGER NOT NULL,
		dropped_parse INTEGER NOT NULL,
		dropped_range INTEGER NOT NULL,
		filtered_out INTEGER NOT NULL,
		row_count INTEGER NOT NULL,
		undefined_rows INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS parameter_rows (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		record_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		sensor TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		swh REAL NOT NULL,
		peak_period REAL,
		mean_direction REAL,
		directional_spread REAL,
		windsea_fraction REAL,
		swell_fraction REAL,
		swh_windsea REAL NOT NULL,
		swh_swell REAL NOT NULL,
		PRIMARY KEY (run_id, record_id)
	);
	CREATE INDEX IF NOT EXISTS idx_parameter_rows_time ON parameter_rows(run_id, timestamp, sensor);
	CREATE TABLE IF NOT EXISTS dropped_records (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		record_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		error TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS window_points (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		frame TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		sensor TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		wave_height REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_window_points_frame ON window_points(run_id, frame);
	CREATE TABLE IF NOT EXISTS matched_pairs (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		frame TEXT NOT NULL,
		sensor TEXT NOT NULL,
		observed REAL NOT NULL,
		model REAL NOT NULL,
		distance_km REAL NOT NULL
	);
	CREATE TABLE IF NOT EXISTS compare_stats (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		sensor TEXT NOT NULL,
		n INTEGER NOT NULL,
		bias REAL NOT NULL,
		rmse REAL NOT NULL,
		scatter_index REAL,
		pearson_r REAL,
		slope REAL,
		intercept REAL,
		PRIMARY KEY (run_id, sensor)
	);
`

// overallSensor labels the all-sensor comparison row.
const overallSensor = "all"

// Store writes runs into one database. It implements pipeline.TableLoader and
// pipeline.WindowLoader; windows loaded after a table belong to the same run.
type Store struct {
	db    *sql.DB
	runID int64
}

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	_, _ = db.Exec("PRAGMA journal_mode=WAL")
	_, _ = db.Exec("PRAGMA synchronous=NORMAL")

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Name() string { return "sqlite" }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// LoadTable records a new run with its rows and dropped records in one
// transaction.
func (s *Store) LoadTable(ctx context.Context, table domain.ParameterTable) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	runID, err := insertRun(ctx, tx, table.Report)
	if err != nil {
		return err
	}

	rowStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO parameter_rows (run_id, record_id, timestamp, sensor, latitude, longitude, swh,
			peak_period, mean_direction, directional_spread, windsea_fraction, swell_fraction,
			swh_windsea, swh_swell)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare row insert: %w", err)
	}
	defer rowStmt.Close()
	for _, r := range table.Rows {
		if _, err := rowStmt.ExecContext(ctx, runID, r.RecordID, formatTime(r.Timestamp), r.Sensor,
			r.Latitude, r.Longitude, r.SWH,
			nullable(r.PeakPeriod), nullable(r.MeanDirection), nullable(r.DirectionalSpread),
			nullable(r.WindSeaFraction), nullable(r.SwellFraction),
			r.SWHWindSea, r.SWHSwell); err != nil {
			return fmt.Errorf("insert row %s: %w", r.RecordID, err)
		}
	}

	for _, d := range table.Report.Dropped {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO dropped_records (run_id, record_id, reason, error) VALUES (?, ?, ?, ?)",
			runID, d.RecordID, string(d.Reason), d.Error); err != nil {
			return fmt.Errorf("insert dropped record %s: %w", d.RecordID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.runID = runID
	return nil
}

// LoadWindows stores the window points, matched pairs and comparison
// statistics of the current run.
func (s *Store) LoadWindows(ctx context.Context, a domain.Alignment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	runID := s.runID
	if runID == 0 {
		if runID, err = insertRun(ctx, tx, domain.RunReport{GeneratedAt: domain.Now()}); err != nil {
			return err
		}
	}

	for _, w := range a.Windows {
		frame := formatTime(w.Frame.Timestamp)
		for _, p := range w.Points() {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO window_points (run_id, frame, timestamp, sensor, latitude, longitude, wave_height)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				runID, frame, formatTime(p.Timestamp), p.Sensor, p.Latitude, p.Longitude, p.WaveHeight); err != nil {
				return fmt.Errorf("insert window point: %w", err)
			}
		}
	}
	for _, p := range a.Pairs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO matched_pairs (run_id, frame, sensor, observed, model, distance_km)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, formatTime(p.Frame), p.Point.Sensor, p.Point.WaveHeight, p.Grid.Value, p.DistanceKm); err != nil {
			return fmt.Errorf("insert matched pair: %w", err)
		}
	}
	stats := map[string]domain.CompareStats{overallSensor: a.Overall}
	for sensor, st := range a.BySensor {
		stats[sensor] = st
	}
	for sensor, st := range stats {
		if st.N == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO compare_stats (run_id, sensor, n, bias, rmse, scatter_index, pearson_r, slope, intercept)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, sensor, st.N, st.Bias, st.RMSE,
			nullable(st.ScatterIndex), nullable(st.Pearson), nullable(st.Slope), nullable(st.Intercept)); err != nil {
			return fmt.Errorf("insert compare stats %s: %w", sensor, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.runID = runID
	return nil
}

// Rows returns the stored rows of a run in table order.
func (s *Store) Rows(ctx context.Context, runID int64) ([]domain.ParameterRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, timestamp, sensor, latitude, longitude, swh,
			peak_period, mean_direction, directional_spread, windsea_fraction, swell_fraction,
			swh_windsea, swh_swell
		FROM parameter_rows WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()

	var out []domain.ParameterRow
	for rows.Next() {
		var (
			r                          domain.ParameterRow
			ts                         string
			tp, dir, spread, ws, swell sql.NullFloat64
		)
		if err := rows.Scan(&r.RecordID, &ts, &r.Sensor, &r.Latitude, &r.Longitude, &r.SWH,
			&tp, &dir, &spread, &ws, &swell, &r.SWHWindSea, &r.SWHSwell); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if r.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parsing stored timestamp %q: %w", ts, err)
		}
		r.PeakPeriod = fromNull(tp)
		r.MeanDirection = fromNull(dir)
		r.DirectionalSpread = fromNull(spread)
		r.WindSeaFraction = fromNull(ws)
		r.SwellFraction = fromNull(swell)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	domain.SortRows(out)
	return out, nil
}

// LatestRun returns the id of the most recent run, or 0 when there is none.
func (s *Store) LatestRun(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(id) FROM runs").Scan(&id); err != nil {
		return 0, fmt.Errorf("querying latest run: %w", err)
	}
	return id.Int64, nil
}

// RunCounts returns the report counts stored for a run.
func (s *Store) RunCounts(ctx context.Context, runID int64) (domain.RunReport, error) {
	var (
		r  domain.RunReport
		ts string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT generated_at, parsed, dropped_parse, dropped_range, filtered_out, row_count, undefined_rows
		FROM runs WHERE id = ?`, runID).
		Scan(&ts, &r.Parsed, &r.DroppedParse, &r.DroppedRange, &r.FilteredOut, &r.Rows, &r.UndefinedRows)
	if err == sql.ErrNoRows {
		return domain.RunReport{}, fmt.Errorf("run %d not found", runID)
	}
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("querying run %d: %w", runID, err)
	}
	if r.GeneratedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return domain.RunReport{}, fmt.Errorf("parsing run timestamp: %w", err)
	}
	return r, nil
}

func insertRun(ctx context.Context, tx *sql.Tx, r domain.RunReport) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (generated_at, parsed, dropped_parse, dropped_range, filtered_out, row_count, undefined_rows)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		formatTime(r.GeneratedAt), r.Parsed, r.DroppedParse, r.DroppedRange, r.FilteredOut, r.Rows, r.UndefinedRows)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}
	return id, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func nullable(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func fromNull(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
