package interop

import (
	"context"
	"testing"
)

// RunSuite sets up f, runs every planned step under casesDir as a subtest of
// t and tears f down when t completes. Setup failures abort the test.
func RunSuite(t *testing.T, f *Fixture, harness map[string]any, casesDir string) {
	t.Helper()

	t.Cleanup(f.TearDown)
	if err := f.SetUp(harness); err != nil {
		t.Fatalf("set up fixture: %v", err)
	}
	conv, err := f.Converter()
	if err != nil {
		t.Fatalf("fixture converter: %v", err)
	}

	cases, err := LoadTestCases(casesDir)
	if err != nil {
		t.Fatalf("load test cases: %v", err)
	}

	cfg := f.Config()
	runner := Runner{Converter: conv, WorkDir: t.TempDir()}
	for _, step := range Plan(cases, conv.InputFormats(), conv.OutputFormats(), cfg.SkipTests) {
		t.Run(step.ID.String(), func(t *testing.T) {
			if step.SkipReason != "" {
				t.Skip(step.SkipReason)
			}
			if err := runner.RunStep(context.Background(), step, LineSetComparator{}); err != nil {
				t.Fatal(err)
			}
		})
	}
}
