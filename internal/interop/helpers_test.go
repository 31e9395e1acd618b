package interop

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eugenenazirov/provstore-interop/internal/config"
	"github.com/eugenenazirov/provstore-interop/internal/converter"
	"github.com/eugenenazirov/provstore-interop/internal/formats"
)

type envMap map[string]string

func (e envMap) Lookup(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}

// copyConverter "converts" by copying the input document unchanged.
type copyConverter struct {
	converter.Base

	configured   config.Config
	configureErr error
	closed       int
	calls        []string
}

func (c *copyConverter) Configure(cfg config.Config) error {
	if c.configureErr != nil {
		return c.configureErr
	}
	c.configured = cfg
	return c.Base.Configure(cfg)
}

func (c *copyConverter) Convert(ctx context.Context, inFile, outFile string) error {
	c.calls = append(c.calls, filepath.Base(inFile)+"->"+filepath.Base(outFile))
	if err := c.CheckFormats(formats.FromPath(inFile), formats.FromPath(outFile)); err != nil {
		return &converter.ConversionError{InFile: inFile, OutFile: outFile, Err: err}
	}
	data, err := os.ReadFile(inFile)
	if err != nil {
		return err
	}
	return os.WriteFile(outFile, data, 0o644)
}

func (c *copyConverter) CloseIdleConnections() {
	c.closed++
}

var errConfigureFailed = errors.New("configure failed")

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
