package types

import (
	"errors"
	"fmt"
)

// Per-zone error taxonomy. These are isolated per zone within a cycle and
// reported in the cycle summary; they never abort the whole cycle.
var (
	// ErrDataUnavailable means insufficient or missing readings for a
	// zone/cycle. Engines fall back to simpler models or skip that signal.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrModelUnavailable means a model artifact is missing or failed to
	// load. Engines degrade to their documented fallback strategy.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrForecastUnavailable means no forecasting model is usable and the
	// sample count is below minimum. The engine reports this instead of
	// fabricating a number.
	ErrForecastUnavailable = errors.New("forecast unavailable")

	// ErrComputation wraps unexpected numeric failures (division by zero in
	// a normalization, NaN scores). Caught per zone.
	ErrComputation = errors.New("computation error")
)

// ConfigError is a malformed policy or topology. Fatal at startup/reload:
// the pipeline must not run with invalid configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// NewConfigError builds a ConfigError for the given field.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
