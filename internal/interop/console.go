package interop

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/fatih/color"
)

var (
	passColor = color.New(color.FgGreen)
	failColor = color.New(color.FgRed, color.Bold)
	skipColor = color.New(color.FgYellow)
)

// ConsoleTestLogger prints one line per test to Out (stdout when nil).
type ConsoleTestLogger struct {
	Out     io.Writer
	Verbose bool
}

func (c ConsoleTestLogger) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

func (c ConsoleTestLogger) TestStarted(id TestID) {
	if c.Verbose {
		fmt.Fprintf(c.out(), "[%s]\n", id)
	}
}

func (c ConsoleTestLogger) TestError(id TestID, err error) {
	for _, line := range strings.Split(err.Error(), "\n") {
		fmt.Fprintf(c.out(), "  %s\n", line)
	}
}

func (c ConsoleTestLogger) TestFinished(id TestID, failed bool) {
	if failed {
		failColor.Fprintf(c.out(), "FAIL [%s]\n", id)
		return
	}
	passColor.Fprintf(c.out(), "ok   [%s]\n", id)
}

func (c ConsoleTestLogger) TestSkipped(id TestID, reason string) {
	if c.Verbose {
		skipColor.Fprintf(c.out(), "skip [%s]: %s\n", id, reason)
	}
}

// PrintResults writes a summary of results to w.
func PrintResults(w io.Writer, results Results) {
	passed := len(results.Tests) - len(results.Failures) - len(results.Skipped)
	if results.OK() {
		passColor.Fprintf(w, "All tests passed (%d run, %d skipped)\n", passed, len(results.Skipped))
		return
	}

	failColor.Fprintf(w, "FAILED TESTS (%d):\n", len(results.Failures))
	for _, f := range results.Failures {
		fmt.Fprintf(w, "  * %s\n", f.TestID)
	}
	fmt.Fprintf(w, "%d passed, %d failed, %d skipped\n", passed, len(results.Failures), len(results.Skipped))
}

// CommandBuilder accumulates shell-quoted arguments.
type CommandBuilder []string

func (b *CommandBuilder) Add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b CommandBuilder) String() string {
	return strings.Join(b, " ")
}

// RerunCommand returns a command line that runs only the failed tests again.
// base is the command without any --run flags.
func RerunCommand(base []string, results Results) string {
	var cmd CommandBuilder
	cmd.Add(base...)
	for _, f := range results.Failures {
		cmd.Add("--run", "^"+regexp.QuoteMeta(f.TestID.String())+"$")
	}
	return cmd.String()
}
