package converter

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned by Convert before a successful Configure.
	ErrNotConfigured = errors.New("converter is not configured")
	// ErrUnsupportedFormat is returned when a format is unknown or not enabled.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrMissingInput is returned when the input document does not exist.
	ErrMissingInput = errors.New("input file not found")
	// ErrUnexpectedStatus is returned when ProvStore answers with an unexpected HTTP status.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// ConfigError reports a missing or invalid configuration key.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid converter configuration %q: %s", e.Key, e.Reason)
}

// ConversionError wraps any failure while converting a single document.
type ConversionError struct {
	InFile  string
	OutFile string
	Err     error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s -> %s: %v", e.InFile, e.OutFile, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

func missingKey(key string) error {
	return &ConfigError{Key: key, Reason: "missing"}
}
