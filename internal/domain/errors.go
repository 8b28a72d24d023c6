package domain

import "fmt"

// ParseError reports a malformed raw record. The record is dropped and counted;
// processing of the remaining records continues.
type ParseError struct {
	RecordID string // "<sensor>:<source>:<line>", empty when unknown
	Reason   string
}

func (e *ParseError) Error() string {
	if e.RecordID == "" {
		return "parse error: " + e.Reason
	}
	return fmt.Sprintf("parse error in %s: %s", e.RecordID, e.Reason)
}

// RangeError reports a coordinate or physical value outside its valid domain.
type RangeError struct {
	Field string
	Value float64
	Limit string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %v out of range (%s)", e.Field, e.Value, e.Limit)
}

// ConfigError reports an invalid or contradictory analysis configuration.
// It is fatal: a run aborts before any record is processed.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func parseErrorf(recordID, format string, args ...any) *ParseError {
	return &ParseError{RecordID: recordID, Reason: fmt.Sprintf(format, args...)}
}
