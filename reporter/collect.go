package reporter

import (
	"strings"

	"github.com/shibukawa/sqldoctest/testrunner/caseexecutor"
)

// recordedTest is a test event together with the headers of its enclosing sections.
type recordedTest struct {
	caseexecutor.TestEvent
	Sections []string
}

// QualifiedName joins section headers and the test name.
func (r recordedTest) QualifiedName() string {
	return strings.Join(append(append([]string{}, r.Sections...), r.Name), " / ")
}

// recordedFile holds everything reported for a file.
type recordedFile struct {
	File
	Tests  []recordedTest
	Result FileResult
}

// collector keeps the events of a run for reporters that render at the end.
type collector struct {
	files   []*recordedFile
	current *recordedFile
	headers []string
}

func (c *collector) FileStarted(file File) {
	c.current = &recordedFile{File: file}
	c.files = append(c.files, c.current)
	c.headers = c.headers[:0]
}

func (c *collector) SectionEntered(ev caseexecutor.SectionEvent) {
	if ev.Depth < len(c.headers) {
		c.headers = c.headers[:ev.Depth]
	}

	c.headers = append(c.headers, ev.Header)
}

func (c *collector) TestFinished(ev caseexecutor.TestEvent) {
	if c.current == nil {
		c.FileStarted(File{})
	}

	depth := min(ev.Depth, len(c.headers))

	c.current.Tests = append(c.current.Tests, recordedTest{
		TestEvent: ev,
		Sections:  append([]string{}, c.headers[:depth]...),
	})
}

func (c *collector) FileFinished(result FileResult) {
	if c.current == nil || c.current.Path != result.Path {
		c.FileStarted(File{Path: result.Path})
	}

	c.current.Result = result
	c.current = nil
}
