package domain

import (
	"fmt"
	"math"
	"time"
)

// DefaultCollocateMaxKm is the largest track-to-grid-node distance accepted
// as a match.
const DefaultCollocateMaxKm = 50.0

// AnalysisConfig carries the analysis parameters every component needs. It is
// validated once, before any record is read.
type AnalysisConfig struct {
	Box                BoundingBox
	Window             DateWindow
	HalfWidth          time.Duration
	PartitionThreshold float64 // Hz
	CollocateMaxKm     float64
}

// Validate returns a *ConfigError for the first invalid setting.
func (c AnalysisConfig) Validate() error {
	if err := c.Box.Validate(); err != nil {
		return err
	}
	if err := c.Window.Validate(); err != nil {
		return err
	}
	if c.HalfWidth <= 0 {
		return &ConfigError{Field: "half-width", Reason: fmt.Sprintf("%s must be positive", c.HalfWidth)}
	}
	if math.IsNaN(c.PartitionThreshold) || math.IsInf(c.PartitionThreshold, 0) || c.PartitionThreshold <= 0 {
		return &ConfigError{Field: "partition threshold", Reason: fmt.Sprintf("%v Hz must be a positive frequency", c.PartitionThreshold)}
	}
	if math.IsNaN(c.CollocateMaxKm) || c.CollocateMaxKm <= 0 {
		return &ConfigError{Field: "collocation distance", Reason: fmt.Sprintf("%v km must be positive", c.CollocateMaxKm)}
	}
	return nil
}

// Filter returns the region and period filter of the configuration.
func (c AnalysisConfig) Filter() Filter {
	return Filter{Box: c.Box, Window: c.Window}
}
