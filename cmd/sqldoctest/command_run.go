package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"

	"github.com/shibukawa/sqldoctest"
	"github.com/shibukawa/sqldoctest/dbadapter"
	"github.com/shibukawa/sqldoctest/docparser"
	"github.com/shibukawa/sqldoctest/reporter"
	"github.com/shibukawa/sqldoctest/testrunner"
	"go.uber.org/zap"
)

// RunCmd represents the run command
type RunCmd struct {
	Paths      []string `arg:"" optional:"" help:"Test files or directories (default: test_dir from config)" type:"path"`
	RunPattern string   `help:"Run only files whose name matches the regular expression" short:"r" name:"run"`
	Format     []string `help:"Reporters to enable: console, json, junit, markdown, html" sep:","`
	JUnit      string   `help:"Write a JUnit XML report to this path" name:"junit" type:"path"`
	JSON       string   `help:"Write a JSON lines report to this path (- for stdout)" name:"json"`
	Markdown   string   `help:"Write a Markdown report to this path" type:"path"`
	HTML       string   `help:"Write an HTML report to this path" name:"html" type:"path"`
}

// Run executes the run command
func (cmd *RunCmd) Run(ctx *Context) error {
	logger := ctx.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	config, err := sqldoctest.LoadConfig(ctx.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	database, dialect, err := resolveDatabase(config, ctx.Env)
	if err != nil {
		return err
	}

	logger.Info("configuration loaded",
		zap.String("config", ctx.Config),
		zap.String("env", ctx.Env),
		zap.String("dialect", string(dialect)),
		zap.String("database_name", config.DatabaseName))

	rep, closeReports, err := cmd.buildReporter(config.Report, ctx.Stdout, ctx.Quiet)
	if err != nil {
		return err
	}
	defer closeReports()

	provisioner, err := dbadapter.NewProvisioner(dbadapter.Options{
		Dialect:         dialect,
		Connection:      database.Connection,
		AdminConnection: database.AdminConnection,
		MaxWait:         config.Connect.MaxWait,
		Logger:          logger,
	})
	if err != nil {
		return err
	}
	defer provisioner.Close()

	runner := testrunner.NewTestRunner(provisioner, rep,
		testrunner.WithLogger(logger),
		testrunner.WithDatabaseName(config.DatabaseName),
		testrunner.WithFilePattern(config.FilePattern),
		testrunner.WithCondition(docparser.ConditionContext{
			Dialect: string(dialect),
			Env:     ctx.Env,
			Vars:    config.Variables,
		}),
	)

	if err := runner.SetRunPattern(cmd.RunPattern); err != nil {
		return err
	}

	paths := cmd.Paths
	if len(paths) == 0 {
		paths = []string{config.TestDir}
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summary, err := runner.Run(runCtx, paths)
	if err != nil {
		return fmt.Errorf("test execution failed: %w", err)
	}

	if summary.Failed() {
		return sqldoctest.ErrTestsFailed
	}

	return nil
}

// resolveDatabase returns the database of env. Embedded dialects run without an
// environment entry.
func resolveDatabase(config *sqldoctest.Config, env string) (sqldoctest.Database, sqldoctest.Dialect, error) {
	database, dialect, err := config.DatabaseFor(env)
	if err == nil {
		return database, dialect, nil
	}

	if errors.Is(err, sqldoctest.ErrEnvironmentNotFound) &&
		(config.Dialect == sqldoctest.DialectSQLite || config.Dialect == sqldoctest.DialectDuckDB) {
		return sqldoctest.Database{}, config.Dialect, nil
	}

	return sqldoctest.Database{}, "", err
}

// buildReporter combines the reporters selected by flags and configuration. A file
// reporter is enabled when its format is selected or its output path is set.
func (cmd *RunCmd) buildReporter(config sqldoctest.ReportConfig, stdout io.Writer, quiet bool) (reporter.Multi, func(), error) {
	formats := config.Formats
	if len(cmd.Format) > 0 {
		formats = cmd.Format
	}

	junitPath := firstNonEmpty(cmd.JUnit, config.JUnit)
	jsonPath := firstNonEmpty(cmd.JSON, config.JSON)
	markdownPath := firstNonEmpty(cmd.Markdown, config.Markdown)
	htmlPath := firstNonEmpty(cmd.HTML, config.HTML)

	enabled := func(format, path string) bool {
		return slices.Contains(formats, format) || path != ""
	}

	var (
		rep     reporter.Multi
		closers []io.Closer
	)

	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	for _, format := range formats {
		if !validFormat(format) {
			return nil, nil, fmt.Errorf("%w: unknown report format '%s'", sqldoctest.ErrConfigValidation, format)
		}
	}

	if slices.Contains(formats, "console") {
		rep = append(rep, reporter.NewConsole(stdout, quiet))
	}

	if enabled("json", jsonPath) {
		w := stdout

		if jsonPath != "" && jsonPath != "-" {
			f, err := os.Create(jsonPath)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("failed to create json report: %w", err)
			}

			closers = append(closers, f)
			w = f
		}

		rep = append(rep, reporter.NewJSONLines(w))
	}

	if enabled("junit", junitPath) {
		rep = append(rep, reporter.NewJUnit(firstNonEmpty(junitPath, "junit.xml")))
	}

	if enabled("markdown", markdownPath) || enabled("html", htmlPath) {
		if enabled("markdown", markdownPath) {
			markdownPath = firstNonEmpty(markdownPath, "report.md")
		}

		if enabled("html", htmlPath) {
			htmlPath = firstNonEmpty(htmlPath, "report.html")
		}

		rep = append(rep, reporter.NewMarkdown(markdownPath, htmlPath))
	}

	return rep, closeAll, nil
}

func validFormat(format string) bool {
	switch format {
	case "console", "json", "junit", "markdown", "html":
		return true
	default:
		return false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
