package domain

import "fmt"

// SpectrumResult is the outcome of processing one raw record: a row for the
// parameter table, a record outside the region or period (Filtered), or the
// error that dropped it.
type SpectrumResult struct {
	RecordID string
	Row      ParameterRow
	Filtered bool
	Err      error
}

// ProcessSpectrum parses one raw record, applies the region and period filter
// and derives the record's parameters. It never panics on malformed input and
// is safe to call concurrently.
func ProcessSpectrum(raw RawSpectrum, cfg AnalysisConfig) SpectrumResult {
	rec, err := ParseSpectrumRecord(raw)
	if err != nil {
		return SpectrumResult{RecordID: raw.ID(), Err: err}
	}
	if !cfg.Filter().Keep(rec.Latitude, rec.Longitude, rec.Timestamp) {
		return SpectrumResult{RecordID: rec.ID, Filtered: true}
	}
	params, err := ComputeParameters(rec, cfg.PartitionThreshold)
	if err != nil {
		return SpectrumResult{RecordID: rec.ID, Err: fmt.Errorf("compute parameters: %w", err)}
	}
	return SpectrumResult{RecordID: rec.ID, Row: NewParameterRow(rec, params)}
}
