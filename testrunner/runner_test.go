package testrunner

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/shibukawa/sqldoctest"
	"github.com/shibukawa/sqldoctest/dbadapter"
	"github.com/shibukawa/sqldoctest/docparser"
	"github.com/shibukawa/sqldoctest/reporter"
	"github.com/shibukawa/sqldoctest/testhelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// console assertions compare plain text
	color.NoColor = true

	os.Exit(m.Run())
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func newSQLiteRunner(t *testing.T, out *bytes.Buffer, opts ...Option) *TestRunner {
	t.Helper()

	p, err := dbadapter.NewProvisioner(dbadapter.Options{Dialect: sqldoctest.DialectSQLite, Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	return NewTestRunner(p, reporter.NewConsole(out, false), opts...)
}

func TestSetRunPattern(t *testing.T) {
	runner := NewTestRunner(nil, nil)

	err := runner.SetRunPattern("basic")
	assert.NoError(t, err)
	assert.NotNil(t, runner.runPattern)
	assert.Equal(t, "basic", runner.runPattern.String())

	err = runner.SetRunPattern("")
	assert.NoError(t, err)
	assert.Nil(t, runner.runPattern)

	err = runner.SetRunPattern("[invalid")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid run pattern")
}

func TestFindTestFiles(t *testing.T) {
	tempDir := t.TempDir()

	writeFiles(t, tempDir, map[string]string{
		"b.test":                "",
		"a.test":                "",
		"nested/c.test":         "",
		"nested/notes.txt":      "",
		"vendor/skip.test":      "",
		".git/hooks/skip.test":  "",
		".hidden/skip.test":     "",
		"node_modules/x/y.test": "",
		"explicit.sql":          "",
	})

	runner := NewTestRunner(nil, nil)

	files, err := runner.FindTestFiles([]string{tempDir, filepath.Join(tempDir, "explicit.sql"), filepath.Join(tempDir, "a.test")})
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(tempDir, "a.test"),
		filepath.Join(tempDir, "b.test"),
		filepath.Join(tempDir, "explicit.sql"),
		filepath.Join(tempDir, "nested", "c.test"),
	}, files)

	require.NoError(t, runner.SetRunPattern("^[bc]$"))

	files, err = runner.FindTestFiles([]string{tempDir})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(tempDir, "b.test"),
		filepath.Join(tempDir, "nested", "c.test"),
	}, files)

	_, err = runner.FindTestFiles([]string{filepath.Join(tempDir, "missing")})
	assert.Error(t, err)
}

func TestRunSQLiteEndToEnd(t *testing.T) {
	dir := t.TempDir()

	writeFiles(t, dir, map[string]string{
		"01_basic.test": testhelper.TrimIndent(t, `
			---
			description: table round trip
			---
			# Tables
				create:
				statement ok
				create table t (x integer primary key, name text)

				insert:
				statement ok
				insert into t values (1, 'one'), (2, 'two')

			## Queries
				count:
				query T
				select count(*) from t
				----
				2

				names:
				query T
				select name from t order by x
				----
				"one"
				"two"

				wrong:
				query T
				select x from t order by x
				----
				1
				3

				duplicate:
				statement error UNIQUE constraint failed: t.x
				insert into t values (1, 'again')

				later:
				todo
			`),
		"02_fresh.test": testhelper.TrimIndent(t, `
			# Fresh database
				empty:
				query T
				select name from sqlite_master where name = 't'
				----
			`),
		"03_disabled.test": testhelper.TrimIndent(t, `
			---
			enabled_if: dialect == "postgres"
			---
			# Never
				boom:
				statement ok
				this is not sql
			`),
	})

	var out bytes.Buffer

	runner := newSQLiteRunner(t, &out, WithCondition(docparser.ConditionContext{Dialect: "sqlite", Env: "test"}))

	summary, err := runner.Run(t.Context(), []string{dir})
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.NotEmpty(t, summary.RunID)
	require.Len(t, summary.Files, 3)

	basic := summary.Files[0]
	assert.NoError(t, basic.Err)
	assert.Equal(t, 6, basic.Aggregate.NumTests)
	assert.Equal(t, 5, basic.Aggregate.NumPasses)
	assert.Equal(t, 1, basic.Aggregate.NumTodos)

	fresh := summary.Files[1]
	assert.NoError(t, fresh.Err)
	assert.Equal(t, 1, fresh.Aggregate.NumPasses)

	disabled := summary.Files[2]
	assert.True(t, disabled.Skipped)
	assert.Equal(t, 0, disabled.Aggregate.NumTests)

	assert.Equal(t, 7, summary.Total.NumTests)
	assert.Equal(t, 6, summary.Total.NumPasses)
	assert.True(t, summary.Failed())

	text := out.String()
	assert.Contains(t, text, "✔  count")
	assert.Contains(t, text, "✗  wrong")
	assert.Contains(t, text, "!deepEqual(2, 3)")
	assert.Contains(t, text, "○  later")
	assert.Contains(t, text, "skipped: enabled_if: dialect == \"postgres\"")
	assert.Contains(t, text, "Tests: 7 total, 6 passed, 1 failed, 1 todo")
}

func TestRunReportsBrokenFilesAndContinues(t *testing.T) {
	dir := t.TempDir()

	writeFiles(t, dir, map[string]string{
		"a.test": "---\ndescription: [unclosed\n---\n",
		"b.test": "---\nenabled_if: dialect +\n---\n",
		"c.test": "  ok\n  query T\n  select 1\n  ----\n  1\n",
	})

	var out bytes.Buffer

	summary, err := newSQLiteRunner(t, &out).Run(t.Context(), []string{dir})
	require.NoError(t, err)

	require.Len(t, summary.Files, 3)
	assert.ErrorIs(t, summary.Files[0].Err, docparser.ErrInvalidFrontMatter)
	assert.ErrorIs(t, summary.Files[1].Err, docparser.ErrInvalidCondition)
	assert.NoError(t, summary.Files[2].Err)
	assert.Equal(t, 1, summary.Total.NumPasses)

	assert.Equal(t, 2, summary.NumErrored())
	assert.True(t, summary.Failed())
	assert.ErrorIs(t, summary.Errors(), docparser.ErrInvalidCondition)
}

type failingProvisioner struct{}

func (failingProvisioner) Prepare(context.Context, string) (*sql.Conn, func(), error) {
	return nil, nil, errors.New("connection refused")
}

func (failingProvisioner) Close() error { return nil }

func TestRunProvisioningFailureIsFatalToFileOnly(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.test": "  t\n  todo\n",
		"b.test": "  t\n  todo\n",
	})

	var out bytes.Buffer

	runner := NewTestRunner(failingProvisioner{}, reporter.NewConsole(&out, false))

	summary, err := runner.Run(t.Context(), []string{dir})
	require.NoError(t, err)

	assert.Len(t, summary.Files, 2)
	assert.Equal(t, 2, summary.NumErrored())
	assert.Contains(t, summary.Errors().Error(), "connection refused")
	assert.Contains(t, out.String(), "✗ "+filepath.Join(dir, "b.test")+": connection refused")
}

func TestRunNoFiles(t *testing.T) {
	var out bytes.Buffer

	_, err := newSQLiteRunner(t, &out).Run(t.Context(), []string{t.TempDir()})
	assert.ErrorIs(t, err, sqldoctest.ErrNoTestFiles)
}

func TestRunHonorsCancellation(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.test": "  t\n  todo\n"})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	var out bytes.Buffer

	summary, err := newSQLiteRunner(t, &out).Run(ctx, []string{dir})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Empty(t, summary.Files)
}

func TestRunExampleProject(t *testing.T) {
	config, err := sqldoctest.LoadConfig(filepath.Join("..", "examples", "basic", "sqldoctest.yaml"))
	require.NoError(t, err)

	database, dialect, err := config.DatabaseFor("development")
	require.NoError(t, err)
	require.Equal(t, sqldoctest.DialectSQLite, dialect)

	p, err := dbadapter.NewProvisioner(dbadapter.Options{Dialect: dialect, Connection: database.Connection, Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	var out bytes.Buffer

	runner := NewTestRunner(p, reporter.NewConsole(&out, false),
		WithDatabaseName(config.DatabaseName),
		WithFilePattern(config.FilePattern),
		WithCondition(docparser.ConditionContext{Dialect: string(dialect), Env: "development", Vars: config.Variables}),
	)

	summary, err := runner.Run(t.Context(), []string{filepath.Join("..", "examples", "basic", "tests")})
	require.NoError(t, err)

	assert.False(t, summary.Failed(), out.String())
	assert.Equal(t, 9, summary.Total.NumTests)
	assert.Equal(t, 9, summary.Total.NumPasses)
	assert.Equal(t, 1, summary.Total.NumTodos)
	assert.Equal(t, 1, summary.NumSkipped())
}
