// Package spectrafile reads raw SWIM and SAR spectral text files from disk.
package spectrafile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/couchcryptid/storm-wave-etl/internal/config"
	"github.com/couchcryptid/storm-wave-etl/internal/domain"
)

// filePrefix is the product file prefix expected inside a sensor directory.
// Sensors not listed take every regular file.
var filePrefix = map[string]string{
	domain.SensorSWIM: "SWI",
	domain.SensorSAR:  "SAR",
}

// Reader extracts raw spectra from the configured sources. It implements
// pipeline.SpectraExtractor.
type Reader struct {
	sources []config.SpectraSource
	logger  *slog.Logger
}

// NewReader creates a Reader for the given sensor sources.
func NewReader(sources []config.SpectraSource, logger *slog.Logger) *Reader {
	return &Reader{sources: sources, logger: logger}
}

// ExtractSpectra splits every source file into raw records, in source order.
// A missing source is an error; records inside a file are not validated here.
func (r *Reader) ExtractSpectra(ctx context.Context) ([]domain.RawSpectrum, error) {
	var out []domain.RawSpectrum
	for _, src := range r.sources {
		files, err := sourceFiles(src)
		if err != nil {
			return nil, err
		}
		for _, path := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			raws, err := readFile(path, src.Sensor)
			if err != nil {
				return nil, err
			}
			r.logger.Debug("spectra file read", "sensor", src.Sensor, "source", path, "records", len(raws))
			out = append(out, raws...)
		}
		r.logger.Info("spectra source read", "sensor", src.Sensor, "path", src.Path, "files", len(files))
	}
	return out, nil
}

func sourceFiles(src config.SpectraSource) ([]string, error) {
	info, err := os.Stat(src.Path)
	if err != nil {
		return nil, fmt.Errorf("spectra source %s: %w", src.Sensor, err)
	}
	if !info.IsDir() {
		return []string{src.Path}, nil
	}

	entries, err := os.ReadDir(src.Path)
	if err != nil {
		return nil, fmt.Errorf("spectra source %s: %w", src.Sensor, err)
	}
	prefix := filePrefix[src.Sensor]
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if prefix != "" && !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		files = append(files, filepath.Join(src.Path, e.Name()))
	}
	slices.Sort(files)
	return files, nil
}

func readFile(path, sensor string) ([]domain.RawSpectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spectra file: %w", err)
	}
	defer f.Close()
	return domain.SplitSpectra(f, sensor, filepath.Base(path))
}
