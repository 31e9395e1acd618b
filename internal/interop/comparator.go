package interop

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Comparator decides whether a converted document matches the expected one.
type Comparator interface {
	Compare(expectedFile, actualFile string) error
}

// ComparatorFunc adapts a function to Comparator.
type ComparatorFunc func(expectedFile, actualFile string) error

func (f ComparatorFunc) Compare(expectedFile, actualFile string) error {
	return f(expectedFile, actualFile)
}

// LineSetComparator treats both documents as multisets of trimmed, non-blank
// lines. It tolerates reordering, which PROV serialisers do freely, but not
// changes within a statement.
type LineSetComparator struct{}

func (LineSetComparator) Compare(expectedFile, actualFile string) error {
	expected, err := readLines(expectedFile)
	if err != nil {
		return err
	}
	actual, err := readLines(actualFile)
	if err != nil {
		return err
	}

	missing, extra := diffLines(expected, actual)
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s does not match %s", actualFile, expectedFile)
	for _, l := range missing {
		fmt.Fprintf(&b, "\n- %s", l)
	}
	for _, l := range extra {
		fmt.Fprintf(&b, "\n+ %s", l)
	}
	return fmt.Errorf("%s", b.String())
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 10<<20)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	sort.Strings(lines)
	return lines, nil
}

// diffLines compares two sorted line slices.
func diffLines(expected, actual []string) (missing, extra []string) {
	i, j := 0, 0
	for i < len(expected) && j < len(actual) {
		switch {
		case expected[i] == actual[j]:
			i++
			j++
		case expected[i] < actual[j]:
			missing = append(missing, expected[i])
			i++
		default:
			extra = append(extra, actual[j])
			j++
		}
	}
	missing = append(missing, expected[i:]...)
	extra = append(extra, actual[j:]...)
	return missing, extra
}
