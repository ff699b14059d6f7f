package reporter

import (
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shibukawa/sqldoctest/testrunner/caseexecutor"
)

// JUnit writes a JUnit XML report with one testsuite per file.
type JUnit struct {
	collector

	path string
}

var _ Reporter = (*JUnit)(nil)

// NewJUnit creates a reporter writing to path at the end of the run.
func NewJUnit(path string) *JUnit {
	return &JUnit{path: path}
}

// RunFinished writes the report file.
func (j *JUnit) RunFinished(summary *Summary) error {
	doc := j.Document(summary)

	if err := doc.WriteToFile(j.path); err != nil {
		return fmt.Errorf("failed to write junit report: %w", err)
	}

	return nil
}

// Document builds the XML document for summary.
func (j *JUnit) Document(summary *Summary) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("testsuites")
	root.CreateAttr("name", "sqldoctest")
	root.CreateAttr("id", summary.RunID)
	root.CreateAttr("tests", fmt.Sprint(summary.Total.NumTests+summary.Total.NumTodos))
	root.CreateAttr("failures", fmt.Sprint(summary.Total.NumFailures()))
	root.CreateAttr("errors", fmt.Sprint(summary.NumErrored()))
	root.CreateAttr("skipped", fmt.Sprint(summary.Total.NumTodos))
	root.CreateAttr("time", seconds(summary.Duration))

	for _, file := range j.files {
		j.suite(root, file)
	}

	doc.Indent(2)

	return doc
}

func (j *JUnit) suite(root *etree.Element, file *recordedFile) {
	agg := file.Result.Aggregate

	suite := root.CreateElement("testsuite")
	suite.CreateAttr("name", file.Path)
	suite.CreateAttr("tests", fmt.Sprint(len(file.Tests)))
	suite.CreateAttr("failures", fmt.Sprint(agg.NumFailures()))
	suite.CreateAttr("skipped", fmt.Sprint(agg.NumTodos))
	suite.CreateAttr("time", seconds(file.Result.Duration))

	errors := 0

	switch {
	case file.Result.Err != nil:
		errors = 1
		suite.CreateElement("error").CreateAttr("message", file.Result.Err.Error())
	case file.Result.Skipped:
		props := suite.CreateElement("properties")
		prop := props.CreateElement("property")
		prop.CreateAttr("name", "skipped")
		prop.CreateAttr("value", file.Result.SkipReason)
	}

	suite.CreateAttr("errors", fmt.Sprint(errors))

	for _, test := range file.Tests {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("name", test.QualifiedName())
		tc.CreateAttr("classname", file.Path)
		tc.CreateAttr("file", file.Path)
		tc.CreateAttr("line", fmt.Sprint(test.Line))
		tc.CreateAttr("time", seconds(test.Duration))

		switch test.Outcome.Status {
		case caseexecutor.StatusFail:
			failure := tc.CreateElement("failure")
			failure.CreateAttr("message", firstLine(test.Outcome.Message))
			failure.CreateAttr("type", test.Outcome.Kind.String())
			failure.SetText(test.Outcome.Message)
		case caseexecutor.StatusTodo:
			tc.CreateElement("skipped").CreateAttr("message", "todo")
		}
	}
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
