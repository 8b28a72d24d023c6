package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/storm-wave-etl/internal/domain"
)

// SpectrumTransformer implements Transformer using the domain parser and
// parameter engine.
type SpectrumTransformer struct {
	cfg    domain.AnalysisConfig
	logger *slog.Logger
}

// NewTransformer creates a SpectrumTransformer for the given analysis settings.
func NewTransformer(cfg domain.AnalysisConfig, logger *slog.Logger) *SpectrumTransformer {
	return &SpectrumTransformer{cfg: cfg, logger: logger}
}

func (t *SpectrumTransformer) Transform(_ context.Context, raw domain.RawSpectrum) domain.SpectrumResult {
	res := domain.ProcessSpectrum(raw, t.cfg)
	if res.Err == nil && !res.Filtered && res.Row.HasUndefined() {
		t.logger.Debug("record has undefined parameters", "record_id", res.RecordID, "swh", res.Row.SWH)
	}
	return res
}
