package domain

import (
	"fmt"
	"strings"
)

// ExtractionError reports that a source could not be read. Source names the
// record store query or remote provider that failed.
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract from %s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// SchemaError reports required columns absent from a dataset.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// LoadError reports that writing a dataset to a target table failed.
type LoadError struct {
	Table string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load table %s: %v", e.Table, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ConfigurationError reports a missing or invalid setting detected at startup.
type ConfigurationError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := e.Key + " " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
