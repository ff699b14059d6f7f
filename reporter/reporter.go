// Package reporter renders executor events and run summaries.
package reporter

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/shibukawa/sqldoctest/testrunner/caseexecutor"
)

// File describes a test file about to run
type File struct {
	Path        string
	Description string
	Tags        []string
}

// FileResult is the outcome of one test file
type FileResult struct {
	Path      string
	Aggregate caseexecutor.Aggregate
	Duration  time.Duration
	// Skipped is set when the enable condition of the file evaluated to false.
	Skipped    bool
	SkipReason string
	// Err is set when the file could not be provisioned, read or parsed.
	Err error
}

// Summary is the outcome of a whole run
type Summary struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Files    []FileResult
	Total    caseexecutor.Aggregate
}

// Failed reports whether any test failed or any file errored.
func (s *Summary) Failed() bool {
	if s.Total.NumFailures() > 0 {
		return true
	}

	for _, f := range s.Files {
		if f.Err != nil {
			return true
		}
	}

	return false
}

// Errors combines the errors of every file that could not run. It returns nil
// when all files ran.
func (s *Summary) Errors() error {
	var result *multierror.Error

	for _, f := range s.Files {
		if f.Err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", f.Path, f.Err))
		}
	}

	return result.ErrorOrNil()
}

// NumErrored returns the number of files that could not run.
func (s *Summary) NumErrored() int {
	n := 0

	for _, f := range s.Files {
		if f.Err != nil {
			n++
		}
	}

	return n
}

// NumSkipped returns the number of disabled files.
func (s *Summary) NumSkipped() int {
	n := 0

	for _, f := range s.Files {
		if f.Skipped {
			n++
		}
	}

	return n
}

// Reporter receives events for a whole run. Section and test events of a file
// arrive between FileStarted and FileFinished.
type Reporter interface {
	caseexecutor.EventSink
	FileStarted(file File)
	FileFinished(result FileResult)
	// RunFinished is called once at the end; file based reporters write their
	// output here.
	RunFinished(summary *Summary) error
}

// Multi fans every event out to all reporters in order
type Multi []Reporter

var _ Reporter = Multi(nil)

func (m Multi) SectionEntered(ev caseexecutor.SectionEvent) {
	for _, r := range m {
		r.SectionEntered(ev)
	}
}

func (m Multi) TestFinished(ev caseexecutor.TestEvent) {
	for _, r := range m {
		r.TestFinished(ev)
	}
}

func (m Multi) FileStarted(file File) {
	for _, r := range m {
		r.FileStarted(file)
	}
}

func (m Multi) FileFinished(result FileResult) {
	for _, r := range m {
		r.FileFinished(result)
	}
}

// RunFinished calls every reporter even when one of them fails.
func (m Multi) RunFinished(summary *Summary) error {
	var result *multierror.Error

	for _, r := range m {
		if err := r.RunFinished(summary); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}
