package domain

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// headerTimeLayout is the YYYYMMDDHHMM stamp that opens every record header.
const headerTimeLayout = "200601021504"

// headerRe recognises the first token of a record header.
var headerRe = regexp.MustCompile(`^\d{12}$`)

// minHeaderTokens is the number of header fields each product carries:
// timestamp, longitude, latitude, then product-specific parameters.
var minHeaderTokens = map[string]int{
	SensorSWIM: 5,
	SensorSAR:  8,
}

// SplitSpectra cuts a concatenated spectral file into raw records. A record
// starts at a line whose first field is a 12-digit timestamp and runs until the
// next such line or EOF. Lines before the first header are ignored.
func SplitSpectra(r io.Reader, sensor, source string) ([]RawSpectrum, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		out     []RawSpectrum
		current *RawSpectrum
		lineNo  int
	)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if headerRe.MatchString(fields[0]) {
			if current != nil {
				out = append(out, *current)
			}
			current = &RawSpectrum{Sensor: sensor, Source: source, Line: lineNo, Header: line}
			continue
		}
		if current != nil {
			current.Body = append(current.Body, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("split spectra %s: %w", source, err)
	}
	if current != nil {
		out = append(out, *current)
	}
	return out, nil
}

// ParseSpectrumRecord decodes one raw record into a SpectrumRecord. Malformed
// input yields a *ParseError; an out-of-range position yields a *RangeError.
// The frequency and direction axes are rebuilt from their formulas, never read.
func ParseSpectrumRecord(raw RawSpectrum) (SpectrumRecord, error) {
	id := raw.ID()

	header := strings.Fields(raw.Header)
	want := minHeaderTokens[raw.Sensor]
	if want == 0 {
		want = 3
	}
	if len(header) < want {
		return SpectrumRecord{}, parseErrorf(id, "header has %d tokens, want at least %d", len(header), want)
	}

	ts, err := time.ParseInLocation(headerTimeLayout, header[0], time.UTC)
	if err != nil {
		return SpectrumRecord{}, parseErrorf(id, "header timestamp %q: %v", header[0], err)
	}
	nums := make([]float64, len(header)-1)
	for i, tok := range header[1:] {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return SpectrumRecord{}, parseErrorf(id, "header field %d %q is not numeric", i+2, tok)
		}
		nums[i] = v
	}
	lat, lon, err := NormalizePosition(nums[1], nums[0])
	if err != nil {
		return SpectrumRecord{}, fmt.Errorf("record %s: %w", id, err)
	}

	values, err := parseEnergyBlock(id, raw.Body)
	if err != nil {
		return SpectrumRecord{}, err
	}

	freqs, dirs := Frequencies(), Directions()
	if err := validateAxes(freqs, dirs); err != nil {
		return SpectrumRecord{}, parseErrorf(id, "%v", err)
	}

	energy := make([][]float64, NumFrequencies)
	for i := range energy {
		energy[i] = values[i*NumDirections : (i+1)*NumDirections : (i+1)*NumDirections]
	}

	return SpectrumRecord{
		ID:          id,
		Sensor:      raw.Sensor,
		Timestamp:   ts,
		Latitude:    lat,
		Longitude:   lon,
		Params:      nums[2:],
		Frequencies: freqs,
		Directions:  dirs,
		Energy:      energy,
	}, nil
}

// parseEnergyBlock reads the numeric block as NumFrequencies rows of
// NumDirections values each and returns it flattened row-major. Any other
// shape is rejected, even when the total count matches.
func parseEnergyBlock(id string, body []string) ([]float64, error) {
	if len(body) != NumFrequencies {
		return nil, parseErrorf(id, "energy block has %d rows, want %d", len(body), NumFrequencies)
	}
	values := make([]float64, 0, NumFrequencies*NumDirections)
	for row, line := range body {
		toks := strings.Fields(line)
		if len(toks) != NumDirections {
			return nil, parseErrorf(id, "energy row %d has %d values, want %d", row+1, len(toks), NumDirections)
		}
		for _, tok := range toks {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, parseErrorf(id, "energy value %q is not numeric", tok)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return nil, parseErrorf(id, "energy value %v is not a finite non-negative density", v)
			}
			values = append(values, v)
		}
	}
	return values, nil
}

// DropReason classifies why a record was left out of the output.
type DropReason string

const (
	DropParse DropReason = "parse"
	DropRange DropReason = "range"
)

// ClassifyDrop maps a per-record error onto its drop reason.
func ClassifyDrop(err error) DropReason {
	var re *RangeError
	if errors.As(err, &re) {
		return DropRange
	}
	return DropParse
}
