package testrunner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shibukawa/sqldoctest"
	"github.com/shibukawa/sqldoctest/dbadapter"
	"github.com/shibukawa/sqldoctest/docparser"
	"github.com/shibukawa/sqldoctest/reporter"
	"github.com/shibukawa/sqldoctest/testrunner/caseexecutor"
	"go.uber.org/zap"
)

// TestRunner discovers test files and runs each of them against a freshly
// provisioned database.
type TestRunner struct {
	provisioner  dbadapter.Provisioner
	reporter     reporter.Reporter
	logger       *zap.Logger
	databaseName string
	filePattern  string
	runPattern   *regexp.Regexp
	condition    docparser.ConditionContext
	now          func() time.Time
}

// Option configures a TestRunner
type Option func(*TestRunner)

// WithLogger sets the logger for the runner and the executors it creates.
func WithLogger(logger *zap.Logger) Option {
	return func(tr *TestRunner) {
		if logger != nil {
			tr.logger = logger
		}
	}
}

// WithDatabaseName sets the name of the database recreated for every file.
func WithDatabaseName(name string) Option {
	return func(tr *TestRunner) {
		tr.databaseName = name
	}
}

// WithFilePattern sets the glob that files inside directories must match.
func WithFilePattern(pattern string) Option {
	return func(tr *TestRunner) {
		tr.filePattern = pattern
	}
}

// WithCondition sets the variables available to enabled_if expressions.
func WithCondition(cc docparser.ConditionContext) Option {
	return func(tr *TestRunner) {
		tr.condition = cc
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(tr *TestRunner) {
		if now != nil {
			tr.now = now
		}
	}
}

// NewTestRunner creates a new test runner instance
func NewTestRunner(provisioner dbadapter.Provisioner, rep reporter.Reporter, opts ...Option) *TestRunner {
	tr := &TestRunner{
		provisioner:  provisioner,
		reporter:     rep,
		logger:       zap.NewNop(),
		databaseName: "runnerdb",
		filePattern:  "*.test",
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(tr)
	}

	return tr
}

// SetRunPattern sets the file name filter pattern
func (tr *TestRunner) SetRunPattern(pattern string) error {
	if pattern == "" {
		tr.runPattern = nil
		return nil
	}

	regex, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid run pattern: %w", err)
	}

	tr.runPattern = regex

	return nil
}

// FindTestFiles expands paths into a sorted list of test files. Directories are
// walked and their files filtered by the file pattern; files named explicitly are
// always kept. The run pattern applies to the base name without extension.
func (tr *TestRunner) FindTestFiles(paths []string) ([]string, error) {
	var files []string

	for _, root := range paths {
		err := walkAndProcessFiles(root, func(p string, fromDir bool) error {
			if fromDir {
				matched, err := filepath.Match(tr.filePattern, filepath.Base(p))
				if err != nil {
					return fmt.Errorf("invalid file pattern: %w", err)
				}

				if !matched {
					return nil
				}
			}

			if tr.runPattern != nil {
				name := filepath.Base(p)
				if !tr.runPattern.MatchString(strings.TrimSuffix(name, filepath.Ext(name))) {
					return nil
				}
			}

			files = append(files, filepath.Clean(p))

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to find test files in %s: %w", root, err)
		}
	}

	slices.Sort(files)

	return slices.Compact(files), nil
}

// Run executes every test file below paths sequentially and reports the outcome.
// A file that cannot be read, parsed or provisioned is recorded in the summary and
// the run continues with the next file. The returned error is only set when no
// file was found or the reporter failed.
func (tr *TestRunner) Run(ctx context.Context, paths []string) (*reporter.Summary, error) {
	files, err := tr.FindTestFiles(paths)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", sqldoctest.ErrNoTestFiles, strings.Join(paths, ", "))
	}

	summary := &reporter.Summary{
		RunID:   uuid.NewString(),
		Started: tr.now(),
		Files:   make([]reporter.FileResult, 0, len(files)),
	}

	logger := tr.logger.With(zap.String("run_id", summary.RunID))
	logger.Info("starting run", zap.Int("files", len(files)))

	for _, file := range files {
		if ctx.Err() != nil {
			break
		}

		result := tr.runFile(ctx, logger.With(zap.String("file", file)), file)
		summary.Files = append(summary.Files, result)
		summary.Total = summary.Total.Add(result.Aggregate)
	}

	summary.Duration = tr.now().Sub(summary.Started)

	if err := summary.Errors(); err != nil {
		logger.Warn("some files could not run", zap.Error(err))
	}

	logger.Info("run finished",
		zap.Int("tests", summary.Total.NumTests),
		zap.Int("passes", summary.Total.NumPasses),
		zap.Int("todos", summary.Total.NumTodos),
		zap.Duration("duration", summary.Duration))

	if err := tr.reporter.RunFinished(summary); err != nil {
		return summary, fmt.Errorf("failed to write reports: %w", err)
	}

	return summary, ctx.Err()
}

func (tr *TestRunner) runFile(ctx context.Context, logger *zap.Logger, path string) reporter.FileResult {
	start := tr.now()
	result := reporter.FileResult{Path: path}

	finish := func() reporter.FileResult {
		result.Duration = tr.now().Sub(start)
		tr.reporter.FileFinished(result)

		return result
	}

	doc, err := parseFile(path)
	if err != nil {
		tr.reporter.FileStarted(reporter.File{Path: path})
		result.Err = err

		return finish()
	}

	tr.reporter.FileStarted(reporter.File{Path: path, Description: doc.Metadata.Description, Tags: doc.Metadata.Tags})

	enabled, err := doc.Metadata.Enabled(tr.condition)
	if err != nil {
		result.Err = err
		return finish()
	}

	if !enabled {
		logger.Debug("file disabled", zap.String("enabled_if", doc.Metadata.EnabledIf))

		result.Skipped = true
		result.SkipReason = "enabled_if: " + doc.Metadata.EnabledIf

		return finish()
	}

	conn, cleanup, err := tr.provisioner.Prepare(ctx, tr.databaseName)
	if err != nil {
		logger.Error("provisioning failed", zap.Error(err))

		result.Err = err

		return finish()
	}
	defer cleanup()

	executor := caseexecutor.NewExecutor(
		dbadapter.NewSQLDatabase(conn, logger),
		tr.reporter,
		caseexecutor.WithLogger(logger),
		caseexecutor.WithClock(tr.now),
	)
	result.Aggregate = executor.Run(ctx, doc.Nodes)

	return finish()
}

func parseFile(path string) (*docparser.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	doc, err := docparser.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return doc, nil
}
