package interop

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/eugenenazirov/provstore-interop/internal/converter"
	"github.com/eugenenazirov/provstore-interop/internal/formats"
)

// SkipListedReason is reported for test cases named in skip-tests.
const SkipListedReason = "listed in skip-tests"

// Step is a single conversion of one test case document into another format.
type Step struct {
	ID         TestID
	Case       TestCase
	In         string
	Out        string
	SkipReason string
}

// Plan expands cases into steps, one per (input, output) format pair the
// converter supports and the case provides. Cases named in skipTests are
// planned as skipped.
func Plan(cases []TestCase, inputFormats, outputFormats, skipTests []string) []Step {
	var steps []Step
	for _, tc := range cases {
		skip := ""
		if formats.Contains(skipTests, tc.Name) {
			skip = SkipListedReason
		}
		for _, in := range inputFormats {
			if _, ok := tc.File(in); !ok {
				continue
			}
			for _, out := range outputFormats {
				if _, ok := tc.File(out); !ok {
					continue
				}
				steps = append(steps, Step{
					ID:         TestID{Path: []string{tc.Name, in + "_" + out}},
					Case:       tc,
					In:         in,
					Out:        out,
					SkipReason: skip,
				})
			}
		}
	}
	return steps
}

// Runner executes planned steps against a converter.
type Runner struct {
	Converter  converter.Converter
	Comparator Comparator
	Filter     Filter
	TestLogger TestLogger
	Logger     *zap.Logger

	// WorkDir receives converted documents. It must exist.
	WorkDir string
}

// Run executes every step in order and collects the results. Steps rejected
// by the filter are not reported at all. Cancelling ctx fails the remaining
// steps.
func (r Runner) Run(ctx context.Context, steps []Step) Results {
	comparator := r.Comparator
	if comparator == nil {
		comparator = LineSetComparator{}
	}
	testLogger := r.TestLogger
	if testLogger == nil {
		testLogger = nullTestLogger{}
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var results Results
	for _, step := range steps {
		if r.Filter != nil && !r.Filter(step.ID) {
			continue
		}
		if step.SkipReason != "" {
			testLogger.TestSkipped(step.ID, step.SkipReason)
			results.add(TestResult{TestID: step.ID, Skipped: true, SkipReason: step.SkipReason})
			continue
		}

		testLogger.TestStarted(step.ID)
		err := r.RunStep(ctx, step, comparator)
		result := TestResult{TestID: step.ID}
		if err != nil {
			testLogger.TestError(step.ID, err)
			result.Errors = append(result.Errors, err)
			logger.Debug("interop test failed", zap.String("test", step.ID.String()), zap.Error(err))
		}
		testLogger.TestFinished(step.ID, err != nil)
		results.add(result)
	}
	return results
}

// RunStep converts the step's input document and compares the output with
// the case's document in the output format.
func (r Runner) RunStep(ctx context.Context, step Step, comparator Comparator) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	inFile, ok := step.Case.File(step.In)
	if !ok {
		return fmt.Errorf("test case %s has no %s document", step.Case.Name, step.In)
	}
	expected, ok := step.Case.File(step.Out)
	if !ok {
		return fmt.Errorf("test case %s has no %s document", step.Case.Name, step.Out)
	}

	dir := filepath.Join(r.WorkDir, step.Case.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	outFile := filepath.Join(dir, step.In+"_"+step.Out+"."+step.Out)

	if err := r.Converter.Convert(ctx, inFile, outFile); err != nil {
		return err
	}
	return comparator.Compare(expected, outFile)
}
