package converter

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/eugenenazirov/provstore-interop/internal/config"
	"github.com/eugenenazirov/provstore-interop/internal/formats"
)

// Converter translates a PROV document file from one format to another.
// Formats are taken from the file extensions.
type Converter interface {
	Configure(cfg config.Config) error
	Convert(ctx context.Context, inFile, outFile string) error
	InputFormats() []string
	OutputFormats() []string
}

// Base holds the format lists shared by every converter.
type Base struct {
	inputFormats  []string
	outputFormats []string
}

// Configure records the supported formats, rejecting empty or unknown lists.
func (b *Base) Configure(cfg config.Config) error {
	if err := checkFormatList("input-formats", cfg.InputFormats); err != nil {
		return err
	}
	if err := checkFormatList("output-formats", cfg.OutputFormats); err != nil {
		return err
	}

	b.inputFormats = append([]string(nil), cfg.InputFormats...)
	b.outputFormats = append([]string(nil), cfg.OutputFormats...)
	return nil
}

// InputFormats returns the configured input formats in configuration order.
func (b *Base) InputFormats() []string {
	return append([]string(nil), b.inputFormats...)
}

// OutputFormats returns the configured output formats in configuration order.
func (b *Base) OutputFormats() []string {
	return append([]string(nil), b.outputFormats...)
}

// CheckFormats verifies that the pair of formats is enabled for this converter.
func (b *Base) CheckFormats(inFormat, outFormat string) error {
	if !formats.Contains(b.inputFormats, inFormat) {
		return fmt.Errorf("%w: input %q", ErrUnsupportedFormat, inFormat)
	}
	if !formats.Contains(b.outputFormats, outFormat) {
		return fmt.Errorf("%w: output %q", ErrUnsupportedFormat, outFormat)
	}
	return nil
}

// CheckInput verifies that inFile names an existing regular file.
func CheckInput(inFile string) error {
	info, err := os.Stat(inFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingInput, inFile)
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrMissingInput, inFile)
	}
	return nil
}

func checkFormatList(key string, list []string) error {
	if len(list) == 0 {
		return missingKey(key)
	}
	for _, f := range list {
		if !formats.Known(f) {
			return &ConfigError{Key: key, Reason: fmt.Sprintf("unknown format %q", f)}
		}
	}
	return nil
}
