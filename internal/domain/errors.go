package domain

import (
	"errors"
	"fmt"
)

// ErrConfiguration matches every ConfigurationError via errors.Is.
var ErrConfiguration = errors.New("report configuration error")

// ConfigurationError reports a report definition that cannot be run:
// no modules enabled, an unknown module requested, or an invalid policy.
type ConfigurationError struct {
	Report string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("report %q: %s", e.Report, e.Reason)
}

// Unwrap allows errors.Is(err, ErrConfiguration).
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}
