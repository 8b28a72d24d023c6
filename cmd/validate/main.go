// Command validate re-checks a written parameter table: row order, parameter
// ranges, partition consistency and undefined markers. Optionally it compares
// the table against an expected fixture (from genmock) and against the latest
// run stored in the SQLite output.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -table output/wave_parameters.csv \
//	  -expected data/mock/expected/wave_parameters.csv \
//	  -db output/wave_analysis.db
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/couchcryptid/storm-wave-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/storm-wave-etl/internal/adapter/tablecsv"
	"github.com/couchcryptid/storm-wave-etl/internal/domain"
)

// tolerance absorbs the decimal round trip of the written table.
const tolerance = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	tablePath := flag.String("table", "", "path to the written parameter table CSV")
	expectedPath := flag.String("expected", "", "optional expected table CSV to compare against")
	dbPath := flag.String("db", "", "optional SQLite output to compare against")
	flag.Parse()

	if *tablePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*tablePath, *expectedPath, *dbPath); code != 0 {
		os.Exit(code)
	}
}

func run(tablePath, expectedPath, dbPath string) int {
	fmt.Println("=== Wave Parameter Table Validation ===")
	fmt.Println()

	rows, err := loadTable(tablePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load table: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateOrder(rows),
		validateRanges(rows),
		validatePartition(rows),
		validateUndefined(rows),
	}

	if expectedPath != "" {
		expected, err := loadTable(expectedPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load expected table: %v\n", err)
			return 1
		}
		phases = append(phases, compareTables("Expected fixture parity", expected, rows))
	}

	if dbPath != "" {
		stored, report, err := loadLatestRun(dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load database: %v\n", err)
			return 1
		}
		p := compareTables("SQLite parity", stored, rows)
		if report.Rows != len(stored) {
			p.errorf("run report counts %d rows, database holds %d", report.Rows, len(stored))
		}
		phases = append(phases, p)
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d\n", len(rows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadTable(path string) ([]domain.ParameterRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return tablecsv.ReadTable(f)
}

func loadLatestRun(path string) ([]domain.ParameterRow, domain.RunReport, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, domain.RunReport{}, err
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, domain.RunReport{}, err
	}
	defer store.Close()

	ctx := context.Background()
	runID, err := store.LatestRun(ctx)
	if err != nil {
		return nil, domain.RunReport{}, err
	}
	if runID == 0 {
		return nil, domain.RunReport{}, fmt.Errorf("database has no runs")
	}
	report, err := store.RunCounts(ctx, runID)
	if err != nil {
		return nil, domain.RunReport{}, err
	}
	rows, err := store.Rows(ctx, runID)
	return rows, report, err
}

// ── Phases ──

func validateOrder(rows []domain.ParameterRow) *phase {
	p := &phase{name: "Row order (timestamp, sensor, position)"}
	if !domain.RowsOrdered(rows) {
		for i := 1; i < len(rows); i++ {
			a, b := rows[i-1], rows[i]
			if b.Timestamp.Before(a.Timestamp) || (b.Timestamp.Equal(a.Timestamp) && b.Sensor < a.Sensor) {
				p.errorf("row %d (%s %s) sorts before row %d", i+1, b.Timestamp.Format("2006-01-02T15:04Z"), b.Sensor, i)
			}
		}
		if p.passed() {
			p.errorf("rows are not in table order")
		}
	}
	return p
}

func validateRanges(rows []domain.ParameterRow) *phase {
	p := &phase{name: "Parameter ranges"}
	for i, r := range rows {
		pf := func(format string, args ...any) {
			p.errorf("row %d: "+format, append([]any{i + 1}, args...)...)
		}
		if r.Timestamp.IsZero() {
			pf("timestamp is zero")
		}
		if r.Latitude < -90 || r.Latitude > 90 {
			pf("latitude %v outside [-90,90]", r.Latitude)
		}
		if r.Longitude < -180 || r.Longitude >= 180 {
			pf("longitude %v outside [-180,180)", r.Longitude)
		}
		if !finiteNonNegative(r.SWH) {
			pf("swh %v is not finite and non-negative", r.SWH)
		}
		if r.PeakPeriod != nil && !(*r.PeakPeriod > 0) {
			pf("peak period %v is not positive", *r.PeakPeriod)
		}
		if r.MeanDirection != nil && (*r.MeanDirection < 0 || *r.MeanDirection >= 360) {
			pf("mean direction %v outside [0,360)", *r.MeanDirection)
		}
		if r.DirectionalSpread != nil && !finiteNonNegative(*r.DirectionalSpread) {
			pf("directional spread %v is negative", *r.DirectionalSpread)
		}
		for name, v := range map[string]*float64{"windsea": r.WindSeaFraction, "swell": r.SwellFraction} {
			if v != nil && (*v < -tolerance || *v > 1+tolerance) {
				pf("%s fraction %v outside [0,1]", name, *v)
			}
		}
	}
	return p
}

// validatePartition checks that the fractions sum to one and the partition
// heights recombine to the total: swh² = swh_windsea² + swh_swell².
func validatePartition(rows []domain.ParameterRow) *phase {
	p := &phase{name: "Wind-sea / swell partition"}
	for i, r := range rows {
		if r.WindSeaFraction != nil && r.SwellFraction != nil {
			if sum := *r.WindSeaFraction + *r.SwellFraction; math.Abs(sum-1) > 1e-6 {
				p.errorf("row %d: fractions sum to %v", i+1, sum)
			}
		}
		total := r.SWH * r.SWH
		parts := r.SWHWindSea*r.SWHWindSea + r.SWHSwell*r.SWHSwell
		if math.Abs(total-parts) > 1e-6*math.Max(1, total) {
			p.errorf("row %d: swh² %v does not match partition sum %v", i+1, total, parts)
		}
	}
	return p
}

// validateUndefined checks that undefined markers appear together: a zero
// spectrum has no peak or fractions, and direction and spread are undefined
// as a pair.
func validateUndefined(rows []domain.ParameterRow) *phase {
	p := &phase{name: "Undefined markers"}
	for i, r := range rows {
		if (r.WindSeaFraction == nil) != (r.SwellFraction == nil) {
			p.errorf("row %d: only one partition fraction is undefined", i+1)
		}
		if (r.MeanDirection == nil) != (r.DirectionalSpread == nil) {
			p.errorf("row %d: only one of direction and spread is undefined", i+1)
		}
		if r.SWH == 0 && (r.PeakPeriod != nil || r.WindSeaFraction != nil) {
			p.errorf("row %d: zero-energy spectrum has defined peak or fractions", i+1)
		}
		if r.SWH > 0 && (r.PeakPeriod == nil || r.WindSeaFraction == nil) {
			p.errorf("row %d: spectrum with energy has undefined peak or fractions", i+1)
		}
	}
	return p
}

func compareTables(name string, want, got []domain.ParameterRow) *phase {
	p := &phase{name: name}
	if len(want) != len(got) {
		p.errorf("row count: want %d, got %d", len(want), len(got))
		return p
	}
	opt := cmpopts.EquateApprox(0, tolerance)
	for i := range want {
		// Record ids are not part of the written table.
		w, g := want[i], got[i]
		w.RecordID, g.RecordID = "", ""
		if diff := cmp.Diff(w, g, opt); diff != "" {
			p.errorf("row %d mismatch (-want +got):\n%s", i+1, diff)
		}
	}
	return p
}

// ── Helpers ──

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
