package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/shibukawa/sqldoctest/testrunner/caseexecutor"
)

var (
	sectionFmt = color.New(color.FgCyan, color.Italic).SprintFunc()
	passFmt    = color.New(color.FgGreen).SprintFunc()
	failFmt    = color.New(color.FgRed).SprintFunc()
	todoFmt    = color.New(color.FgYellow).SprintFunc()
	fileFmt    = color.New(color.Bold).SprintFunc()
)

// Console prints a tree of sections and test results.
type Console struct {
	w     io.Writer
	quiet bool
	file  string
}

var _ Reporter = (*Console)(nil)

// NewConsole creates a console reporter. In quiet mode only failures and the
// summary are printed.
func NewConsole(w io.Writer, quiet bool) *Console {
	return &Console{w: w, quiet: quiet}
}

func (c *Console) FileStarted(file File) {
	c.file = file.Path
	if c.quiet {
		return
	}

	fmt.Fprintln(c.w, fileFmt(file.Path))

	if file.Description != "" {
		fmt.Fprintf(c.w, "  %s\n", file.Description)
	}
}

func (c *Console) SectionEntered(ev caseexecutor.SectionEvent) {
	if c.quiet {
		return
	}

	fmt.Fprintln(c.w, sectionFmt(fmt.Sprintf("%s # %s", indent(ev.Depth), ev.Header)))
}

func (c *Console) TestFinished(ev caseexecutor.TestEvent) {
	spacing := indent(ev.Depth)

	switch ev.Outcome.Status {
	case caseexecutor.StatusPass:
		if !c.quiet {
			fmt.Fprintln(c.w, passFmt(fmt.Sprintf(" %s✔  %s", spacing, ev.Name)))
		}
	case caseexecutor.StatusTodo:
		if !c.quiet {
			fmt.Fprintln(c.w, todoFmt(fmt.Sprintf(" %s○  %s", spacing, ev.Name)))
		}
	default:
		name := ev.Name
		if c.quiet {
			name = fmt.Sprintf("%s:%d: %s", c.file, ev.Line, ev.Name)
		}

		fmt.Fprintln(c.w, failFmt(fmt.Sprintf(" %s✗  %s", spacing, name)))
		fmt.Fprintln(c.w, failFmt(fmt.Sprintf(" %s   %s", spacing, strings.ReplaceAll(ev.Outcome.Message, "\n", "\n    "))))
	}
}

func (c *Console) FileFinished(result FileResult) {
	switch {
	case result.Err != nil:
		fmt.Fprintln(c.w, failFmt(fmt.Sprintf("✗ %s: %v", result.Path, result.Err)))
	case result.Skipped:
		if !c.quiet {
			fmt.Fprintln(c.w, todoFmt(fmt.Sprintf("  skipped: %s", result.SkipReason)))
		}
	}
}

// RunFinished prints the summary.
func (c *Console) RunFinished(summary *Summary) error {
	total := summary.Total

	fmt.Fprintf(c.w, "\n")
	fmt.Fprintf(c.w, "=== Test Summary ===\n")
	fmt.Fprintf(c.w, "Files: %d total, %d skipped, %d errored\n",
		len(summary.Files), summary.NumSkipped(), summary.NumErrored())
	fmt.Fprintf(c.w, "Tests: %d total, %d passed, %d failed, %d todo\n",
		total.NumTests, total.NumPasses, total.NumFailures(), total.NumTodos)
	fmt.Fprintf(c.w, "Duration: %.3fs\n", summary.Duration.Seconds())

	if summary.Failed() {
		fmt.Fprintln(c.w, failFmt("\nSome tests failed! ❌"))
	} else {
		fmt.Fprintln(c.w, passFmt("\nAll tests passed! ✅"))
	}

	return nil
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}
