package interop

import (
	"fmt"
	"regexp"
	"strings"
)

// TestID identifies one interop test, e.g. "case1/provn_ttl".
type TestID struct {
	Path []string
}

func (t TestID) String() string {
	return strings.Join(t.Path, "/")
}

// TestResult is the outcome of a single test.
type TestResult struct {
	TestID     TestID
	Errors     []error
	Skipped    bool
	SkipReason string
}

// Results collects the outcomes of a suite run.
type Results struct {
	Tests    []TestResult
	Failures []TestResult
	Skipped  []TestResult
}

// OK reports whether no test failed.
func (r Results) OK() bool {
	return len(r.Failures) == 0
}

func (r *Results) add(result TestResult) {
	r.Tests = append(r.Tests, result)
	switch {
	case result.Skipped:
		r.Skipped = append(r.Skipped, result)
	case len(result.Errors) > 0:
		r.Failures = append(r.Failures, result)
	}
}

// Filter decides whether to run a specific test.
type Filter func(TestID) bool

// RegexFilters selects tests by name.
type RegexFilters struct {
	MustMatch    RegexList
	MustNotMatch RegexList
}

func (r RegexFilters) AsFilter(id TestID) bool {
	name := id.String()
	return (!r.MustMatch.IsDefined() || r.MustMatch.AnyMatch(name)) &&
		!r.MustNotMatch.AnyMatch(name)
}

// RegexList is a repeatable command line flag holding regular expressions.
type RegexList struct {
	patterns []*regexp.Regexp
}

func (r RegexList) String() string {
	var ss []string
	for _, p := range r.patterns {
		ss = append(ss, `"`+p.String()+`"`)
	}
	return strings.Join(ss, " or ")
}

// Set is called by the command line parser
func (r *RegexList) Set(value string) error {
	rx, err := regexp.Compile(value)
	if err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	r.patterns = append(r.patterns, rx)
	return nil
}

// IsCumulative lets kingpin accept the flag more than once.
func (r *RegexList) IsCumulative() bool {
	return true
}

func (r RegexList) IsDefined() bool {
	return len(r.patterns) != 0
}

func (r RegexList) AnyMatch(s string) bool {
	for _, p := range r.patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// TestLogger receives progress events from a suite run.
type TestLogger interface {
	TestStarted(id TestID)
	TestError(id TestID, err error)
	TestFinished(id TestID, failed bool)
	TestSkipped(id TestID, reason string)
}

type nullTestLogger struct{}

func (nullTestLogger) TestStarted(TestID)         {}
func (nullTestLogger) TestError(TestID, error)    {}
func (nullTestLogger) TestFinished(TestID, bool)  {}
func (nullTestLogger) TestSkipped(TestID, string) {}
