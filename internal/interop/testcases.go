package interop

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/eugenenazirov/provstore-interop/internal/formats"
)

// ErrNoTestCases is returned when a test-cases directory holds no usable case.
var ErrNoTestCases = errors.New("no test cases found")

// TestCase is one directory of equivalent documents, one file per format.
type TestCase struct {
	Name  string
	Dir   string
	Files map[string]string
}

// File returns the path of the document in format, if the case has one.
func (c TestCase) File(format string) (string, bool) {
	path, ok := c.Files[format]
	return path, ok
}

// LoadTestCases reads every sub-directory of dir as a TestCase. Files with an
// unknown extension are ignored; a case with two files of the same format is
// an error. Cases are returned sorted by name.
func LoadTestCases(dir string) ([]TestCase, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read test cases: %w", err)
	}

	var cases []TestCase
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		tc, err := loadTestCase(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if len(tc.Files) > 0 {
			cases = append(cases, tc)
		}
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTestCases, dir)
	}

	sort.Slice(cases, func(i, j int) bool {
		return cases[i].Name < cases[j].Name
	})
	return cases, nil
}

func loadTestCase(dir string) (TestCase, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return TestCase{}, fmt.Errorf("read test case: %w", err)
	}

	tc := TestCase{
		Name:  filepath.Base(dir),
		Dir:   dir,
		Files: make(map[string]string),
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		format := formats.FromPath(entry.Name())
		if !formats.Known(format) {
			continue
		}
		if existing, dup := tc.Files[format]; dup {
			return TestCase{}, fmt.Errorf("test case %s has two %s documents: %s and %s",
				tc.Name, format, filepath.Base(existing), entry.Name())
		}
		tc.Files[format] = filepath.Join(dir, entry.Name())
	}
	return tc, nil
}
