package docparser

import (
	"fmt"
	"regexp"
	"strings"
)

var dashLine = regexp.MustCompile(`^-+$`)

// ParseBlock builds a test case from the de-indented, non-blank lines of one block.
//
// Line 0 is the name (one trailing colon removed), line 1 is "<command> <args...>",
// the following lines up to a line of dashes are concatenated into the query and
// every line after the dashes is an expected result.
func ParseBlock(lines []string) *TestCase {
	tc := &TestCase{}
	if len(lines) == 0 {
		return tc
	}

	tc.Name = strings.TrimSuffix(lines[0], ":")

	if len(lines) < 2 {
		return tc
	}

	if fields := strings.Fields(lines[1]); len(fields) > 0 {
		tc.Command = Command(fields[0])
		tc.Args = fields[1:]
	}

	var query strings.Builder

	i := 2
	for ; i < len(lines) && !dashLine.MatchString(lines[i]); i++ {
		query.WriteString(lines[i])
	}

	tc.Query = query.String()

	if i < len(lines) {
		tc.ExpectedResults = append([]string{}, lines[i+1:]...)
	}

	return tc
}

// Validate reports structural problems of a parsed block. Todo blocks never fail.
func (tc *TestCase) Validate() error {
	switch {
	case tc.Command == "":
		return fmt.Errorf("%w: %q", ErrMissingCommand, tc.Name)
	case tc.Command == CommandTodo:
		return nil
	case (tc.Command == CommandQuery || tc.Command == CommandStatement) && tc.Query == "":
		return fmt.Errorf("%w: %q", ErrEmptyQuery, tc.Name)
	}

	return nil
}

// HasExpectedResults reports whether the block contained a dash separator.
func (tc *TestCase) HasExpectedResults() bool {
	return tc.ExpectedResults != nil
}

// Arg returns the i-th argument or an empty string.
func (tc *TestCase) Arg(i int) string {
	if i < len(tc.Args) {
		return tc.Args[i]
	}

	return ""
}
