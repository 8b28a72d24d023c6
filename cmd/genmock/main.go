// Command genmock writes synthetic wave-spectra, satellite track and model
// grid fixtures for local runs and tests. It runs the generated spectra
// through the domain package and writes the expected parameter table next to
// the inputs, so the fixtures always match real pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -records 48 -seed 7
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-wave-etl/internal/adapter/tablecsv"
	"github.com/couchcryptid/storm-wave-etl/internal/domain"
)

var (
	baseDate    = time.Date(2024, time.February, 12, 0, 0, 0, 0, time.UTC)
	generatedAt = time.Date(2024, time.February, 17, 6, 0, 0, 0, time.UTC)
	region      = domain.BoundingBox{West: -50, East: -30, South: -45, North: -20}
)

// sarFiles is how many files the SAR records are spread over.
const sarFiles = 3

type generator struct {
	rng *rand.Rand
	out string
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data/mock", "output directory")
	records := flag.Int("records", 48, "spectra per sensor")
	hours := flag.Int("hours", 24, "hourly grid frames to generate")
	seed := flag.Uint64("seed", 7, "random seed")
	flag.Parse()

	if *records < 2 || *hours < 1 {
		flag.Usage()
		return fmt.Errorf("need at least 2 records and 1 hour")
	}

	// Set a fixed clock for a reproducible GeneratedAt.
	domain.SetClock(clockwork.NewFakeClockAt(generatedAt))
	defer domain.SetClock(nil)

	g := &generator{rng: rand.New(rand.NewPCG(*seed, *seed)), out: *out}

	swim := g.spectra(domain.SensorSWIM, *records)
	sar := g.spectra(domain.SensorSAR, *records)

	// One malformed and one out-of-range record exercise both drop paths.
	swim[len(swim)-1].Body = swim[len(swim)-1].Body[:5]
	sar[len(sar)-1].Header = sarHeader(baseDate.Add(time.Hour), -40, 95)

	for i := range swim {
		locate(&swim[i], "SWI_WV1", i)
	}
	if err := g.writeSpectraFile(filepath.Join("wave_spectra", "SWI_WV1"), swim); err != nil {
		return fmt.Errorf("writing SWIM fixture: %w", err)
	}
	for i := range sarFiles {
		name := fmt.Sprintf("SAR_%02d.txt", i+1)
		var recs []domain.RawSpectrum
		for j := i; j < len(sar); j += sarFiles {
			locate(&sar[j], name, len(recs))
			recs = append(recs, sar[j])
		}
		if err := g.writeSpectraFile(filepath.Join("wave_spectra", "SENT1", name), recs); err != nil {
			return fmt.Errorf("writing SAR fixture: %w", err)
		}
	}
	log.Printf("spectra: %d swim, %d sar records", len(swim), len(sar))

	points, err := g.writeTrack(*hours)
	if err != nil {
		return fmt.Errorf("writing track fixture: %w", err)
	}
	log.Printf("track: %d points", points)

	cells, err := g.writeGrid(*hours)
	if err != nil {
		return fmt.Errorf("writing grid fixture: %w", err)
	}
	log.Printf("grid: %d samples over %d frames", cells, *hours)

	table := expectedTable(append(swim, sar...))
	if err := g.writeExpected(table); err != nil {
		return fmt.Errorf("writing expected table: %w", err)
	}
	printStats(table)
	return nil
}

// spectra builds n records of a single-peaked spectrum with the peak drifting
// through the frequency and direction axes.
func (g *generator) spectra(sensor string, n int) []domain.RawSpectrum {
	out := make([]domain.RawSpectrum, n)
	for i := range out {
		ts := baseDate.Add(time.Duration(i) * 2 * time.Hour)
		lat := region.South + g.rng.Float64()*(region.North-region.South)
		lon := region.West + g.rng.Float64()*(region.East-region.West)

		header := swimHeader(ts, lon, lat)
		if sensor == domain.SensorSAR {
			header = sarHeader(ts, lon, lat)
		}
		out[i] = domain.RawSpectrum{
			Sensor: sensor,
			Header: header,
			Body:   g.energyBlock(g.rng.IntN(domain.NumFrequencies), g.rng.IntN(domain.NumDirections), 0.5+4*g.rng.Float64()),
		}
	}
	return out
}

// Headers carry the longitude in [0,360) as the instruments report it.
func swimHeader(ts time.Time, lon, lat float64) string {
	return fmt.Sprintf("%s %.3f %.3f %.2f %.2f", ts.Format("200601021504"), math.Mod(lon+360, 360), lat, 0.5, 9.0)
}

func sarHeader(ts time.Time, lon, lat float64) string {
	return fmt.Sprintf("%s %.3f %.3f %.2f %.2f %.2f %.2f %.2f", ts.Format("200601021504"), math.Mod(lon+360, 360), lat, 1.0, 2.0, 3.0, 4.0, 5.0)
}

func (g *generator) energyBlock(peakF, peakD int, amplitude float64) []string {
	lines := make([]string, domain.NumFrequencies)
	for i := range lines {
		cells := make([]string, domain.NumDirections)
		for j := range cells {
			df := float64(i - peakF)
			dd := float64(circularDistance(j, peakD, domain.NumDirections))
			v := amplitude * math.Exp(-df*df/8-dd*dd/4)
			cells[j] = strconv.FormatFloat(v, 'e', 4, 64)
		}
		lines[i] = strings.Join(cells, " ")
	}
	return lines
}

func circularDistance(a, b, n int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	return min(d, n-d)
}

// locate sets the source and header line a record will have once written as
// the k-th record of its file, so expected IDs match what the reader assigns.
func locate(r *domain.RawSpectrum, source string, k int) {
	r.Source = source
	r.Line = 1 + k*(1+domain.NumFrequencies)
}

func (g *generator) create(name string) (*os.File, error) {
	path := filepath.Join(g.out, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

func (g *generator) writeSpectraFile(name string, recs []domain.RawSpectrum) error {
	f, err := g.create(name)
	if err != nil {
		return err
	}
	defer f.Close()

	var b strings.Builder
	for _, r := range recs {
		b.WriteString(r.Header)
		b.WriteByte('\n')
		for _, line := range r.Body {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	_, err = f.WriteString(b.String())
	return err
}

// writeTrack writes one swot pass per hour, a point a minute for ten minutes
// crossing the region diagonally.
func (g *generator) writeTrack(hours int) (int, error) {
	f, err := g.create(filepath.Join("satellite", "swot", "swot_passes.csv"))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", "latitude", "longitude", "swh"}); err != nil {
		return 0, err
	}
	n := 0
	for h := range hours {
		start := baseDate.Add(time.Duration(h)*time.Hour + 20*time.Minute)
		for m := range 10 {
			frac := float64(m) / 9
			lat := region.South + frac*(region.North-region.South)
			lon := region.West + frac*(region.East-region.West)
			swh := 1.5 + math.Sin(float64(h)/4) + 0.2*g.rng.NormFloat64()
			if err := w.Write([]string{
				start.Add(time.Duration(m) * time.Minute).Format(time.RFC3339),
				strconv.FormatFloat(lat, 'f', 4, 64),
				strconv.FormatFloat(lon, 'f', 4, 64),
				strconv.FormatFloat(math.Max(swh, 0), 'f', 3, 64),
			}); err != nil {
				return 0, err
			}
			n++
		}
	}
	w.Flush()
	return n, w.Error()
}

// writeGrid writes a 1-degree lattice over the region, one frame per hour.
// Longitudes are written in [0,360) like the reanalysis product; one corner
// node is land (empty value).
func (g *generator) writeGrid(hours int) (int, error) {
	f, err := g.create(filepath.Join("era5", "swh.csv"))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", "latitude", "longitude", "swh"}); err != nil {
		return 0, err
	}
	n := 0
	for h := range hours {
		ts := baseDate.Add(time.Duration(h) * time.Hour).Format(time.RFC3339)
		for lat := region.South; lat <= region.North; lat++ {
			for lon := region.West; lon <= region.East; lon++ {
				value := ""
				if lat != region.North || lon != region.West {
					v := 1.4 + math.Sin(float64(h)/4) + 0.02*(lat-region.South)
					value = strconv.FormatFloat(v, 'f', 3, 64)
				}
				if err := w.Write([]string{
					ts,
					strconv.FormatFloat(lat, 'f', 2, 64),
					strconv.FormatFloat(lon+360, 'f', 2, 64),
					value,
				}); err != nil {
					return 0, err
				}
				n++
			}
		}
	}
	w.Flush()
	return n, w.Error()
}

// expectedTable runs the fixtures through the same parse and parameter code
// the pipeline uses, with the default analysis settings.
func expectedTable(recs []domain.RawSpectrum) domain.ParameterTable {
	cfg := domain.AnalysisConfig{
		Box:                region,
		Window:             domain.DateWindow{Start: baseDate, End: baseDate.Add(5*24*time.Hour - time.Second)},
		HalfWidth:          domain.DefaultHalfWidth,
		PartitionThreshold: domain.DefaultPartitionThreshold,
		CollocateMaxKm:     domain.DefaultCollocateMaxKm,
	}
	results := make([]domain.SpectrumResult, len(recs))
	for i, r := range recs {
		results[i] = domain.ProcessSpectrum(r, cfg)
	}
	return domain.BuildTable(results)
}

func (g *generator) writeExpected(table domain.ParameterTable) error {
	f, err := g.create(filepath.Join("expected", tablecsv.TableFile))
	if err != nil {
		return err
	}
	defer f.Close()
	return tablecsv.WriteTable(f, table)
}

func printStats(table domain.ParameterTable) {
	r := table.Report
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Parsed: %d\n", r.Parsed)
	fmt.Printf("Dropped: parse=%d, range=%d\n", r.DroppedParse, r.DroppedRange)
	fmt.Printf("Filtered out: %d\n", r.FilteredOut)
	fmt.Printf("Rows: %d (undefined=%d)\n", r.Rows, r.UndefinedRows)
	for _, s := range domain.Summarize(table.Rows) {
		fmt.Printf("  %s: rows=%d swh mean=%.3f max=%.3f swell dominated=%d\n",
			s.Sensor, s.Rows, s.SWH.Mean, s.SWH.Max, s.SwellDominated)
	}
}
