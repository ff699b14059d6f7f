package caseexecutor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/shibukawa/sqldoctest/docparser"
	"github.com/shibukawa/sqldoctest/testhelper"
)

type dbMessageError struct {
	msg string
}

func (e *dbMessageError) Error() string           { return "ERROR: " + e.msg + " (SQLSTATE 42P01)" }
func (e *dbMessageError) DatabaseMessage() string { return e.msg }

// fakeDatabase answers queries from a map keyed by SQL text and records every call.
type fakeDatabase struct {
	results map[string]*ResultSet
	errs    map[string]error
	panics  map[string]bool
	calls   []string
}

func newFakeDatabase() *fakeDatabase {
	return &fakeDatabase{
		results: map[string]*ResultSet{},
		errs:    map[string]error{},
		panics:  map[string]bool{},
	}
}

func (f *fakeDatabase) Query(_ context.Context, sql string) (*ResultSet, error) {
	f.calls = append(f.calls, sql)
	if f.panics[sql] {
		panic("connection lost")
	}

	if err, ok := f.errs[sql]; ok {
		return nil, err
	}

	if rs, ok := f.results[sql]; ok {
		return rs, nil
	}

	return &ResultSet{}, nil
}

func (f *fakeDatabase) Exec(_ context.Context, sql string) error {
	f.calls = append(f.calls, sql)
	if f.panics[sql] {
		panic("connection lost")
	}

	return f.errs[sql]
}

func rows(values ...any) *ResultSet {
	rs := &ResultSet{Columns: []string{"?column?"}}
	for _, v := range values {
		rs.Rows = append(rs.Rows, []any{v})
	}

	return rs
}

func parseTest(t *testing.T, block string) *docparser.TestCase {
	t.Helper()

	return docparser.ParseBlock(strings.Split(block, "\n"))
}

func TestExecuteQueryScenario(t *testing.T) {
	db := newFakeDatabase()
	db.results["select 1"] = rows(int64(1))

	sink := &RecordingSink{}
	nodes := docparser.ParseNodes("# A\n  t1:\n  query T\n  select 1\n  ----\n  1\n")

	agg := NewExecutor(db, sink).Run(t.Context(), nodes)

	assert.Equal(t, Aggregate{NumTests: 1, NumPasses: 1}, agg)
	assert.Equal(t, []SectionEvent{{Header: "A", Depth: 0}}, sink.Sections)
	assert.Equal(t, 1, len(sink.Tests))
	assert.Equal(t, "t1", sink.Tests[0].Name)
	assert.Equal(t, 1, sink.Tests[0].Depth)
	assert.Equal(t, 2, sink.Tests[0].Line)
	assert.Equal(t, StatusPass, sink.Tests[0].Outcome.Status)
}

func TestExecuteQueryValueMismatch(t *testing.T) {
	db := newFakeDatabase()
	db.results["select 1"] = rows(int64(2))

	outcome := NewExecutor(db, nil).ExecuteTest(t.Context(), parseTest(t, "t1:\nquery T\nselect 1\n----\n1"))

	assert.Equal(t, StatusFail, outcome.Status)
	assert.Equal(t, FailureKindAssertion, outcome.Kind)
	assert.Equal(t, "!deepEqual(2, 1)", outcome.Message)
}

func TestExecuteStatementOKFailure(t *testing.T) {
	db := newFakeDatabase()
	db.errs["insert into x values (1)"] = &dbMessageError{msg: `relation "x" does not exist`}

	outcome := NewExecutor(db, nil).ExecuteTest(t.Context(), parseTest(t, "ins\nstatement ok\ninsert into x values (1)"))

	assert.Equal(t, StatusFail, outcome.Status)
	assert.Equal(t, FailureKindDatabase, outcome.Kind)
	assert.Equal(t, `relation "x" does not exist`, outcome.Message)
}

func TestExecuteStatementOKPlainError(t *testing.T) {
	db := newFakeDatabase()
	db.errs["bad"] = errors.New("syntax error at end of input")

	outcome := NewExecutor(db, nil).ExecuteTest(t.Context(), parseTest(t, "ins\nstatement ok\nbad"))

	assert.Equal(t, "syntax error at end of input", outcome.Message)
}

func TestExecuteStatementError(t *testing.T) {
	tests := []struct {
		name    string
		block   string
		err     error
		status  Status
		message string
	}{
		{
			name:   "whitespace normalized match",
			block:  "e\nstatement error relation \"x\" does not exist\nselect * from x",
			err:    &dbMessageError{msg: "relation \"x\"   does not exist"},
			status: StatusPass,
		},
		{
			name:   "newlines and tabs collapse",
			block:  "e\nstatement error relation \"x\" does not exist\nselect * from x",
			err:    &dbMessageError{msg: "relation\n\"x\"\tdoes not exist"},
			status: StatusPass,
		},
		{
			name:    "different message",
			block:   "e\nstatement error division by zero\nselect * from x",
			err:     &dbMessageError{msg: "relation \"x\" does not exist"},
			status:  StatusFail,
			message: `expected error "division by zero", got "relation \"x\" does not exist"`,
		},
		{
			name:    "statement succeeds",
			block:   "e\nstatement error division by zero\nselect * from x",
			status:  StatusFail,
			message: `expected an error "division by zero", but the statement succeeded`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newFakeDatabase()
			if tt.err != nil {
				db.errs["select * from x"] = tt.err
			}

			outcome := NewExecutor(db, nil).ExecuteTest(t.Context(), parseTest(t, tt.block))

			assert.Equal(t, tt.status, outcome.Status)
			assert.Equal(t, tt.message, outcome.Message)

			if tt.status == StatusFail {
				assert.Equal(t, FailureKindAssertion, outcome.Kind)
			}
		})
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	tests := []struct {
		name    string
		block   string
		message string
	}{
		{name: "unknown command", block: "x\nexplain T\nselect 1", message: "unknown command explain T"},
		{name: "unknown statement arg", block: "x\nstatement maybe\nselect 1", message: "unknown command statement maybe"},
		{name: "statement without arg", block: "x\nstatement\nselect 1", message: "unknown command statement"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newFakeDatabase()

			outcome := NewExecutor(db, nil).ExecuteTest(t.Context(), parseTest(t, tt.block))

			assert.Equal(t, StatusFail, outcome.Status)
			assert.Equal(t, FailureKindDefinition, outcome.Kind)
			assert.Equal(t, tt.message, outcome.Message)
			assert.Equal(t, 0, len(db.calls))
		})
	}
}

func TestExecuteMalformedBlock(t *testing.T) {
	db := newFakeDatabase()
	exec := NewExecutor(db, nil)

	outcome := exec.ExecuteTest(t.Context(), parseTest(t, "lonely"))
	assert.Equal(t, StatusFail, outcome.Status)
	assert.Equal(t, FailureKindDefinition, outcome.Kind)
	assert.Contains(t, outcome.Message, "lonely")

	outcome = exec.ExecuteTest(t.Context(), parseTest(t, "empty\nquery T"))
	assert.Equal(t, StatusFail, outcome.Status)
	assert.Equal(t, FailureKindDefinition, outcome.Kind)

	assert.Equal(t, 0, len(db.calls))
}

func TestExecuteRecoversFromPanic(t *testing.T) {
	db := newFakeDatabase()
	db.panics["select 1"] = true

	outcome := NewExecutor(db, nil).ExecuteTest(t.Context(), parseTest(t, "p\nquery T\nselect 1\n----\n1"))

	assert.Equal(t, StatusFail, outcome.Status)
	assert.Equal(t, FailureKindDatabase, outcome.Kind)
	assert.Contains(t, outcome.Message, "connection lost")
}

func TestExecuteQueryDatabaseError(t *testing.T) {
	db := newFakeDatabase()
	db.errs["select nope"] = &dbMessageError{msg: `column "nope" does not exist`}

	outcome := NewExecutor(db, nil).ExecuteTest(t.Context(), parseTest(t, "q\nquery T\nselect nope\n----\n1"))

	assert.Equal(t, StatusFail, outcome.Status)
	assert.Equal(t, FailureKindDatabase, outcome.Kind)
	assert.Equal(t, `column "nope" does not exist`, outcome.Message)
}

func TestRunAggregatesSections(t *testing.T) {
	src := testhelper.TrimIndent(t, `
		# Outer
			pass1:
			query T
			select 1
			----
			1

		## Inner
			fail1:
			query T
			select 2
			----
			1

			later:
			todo

		# Second
			pass2:
			statement ok
			create table t (x int)
		`)

	db := newFakeDatabase()
	db.results["select 1"] = rows(int64(1))
	db.results["select 2"] = rows(int64(2))

	sink := &RecordingSink{}
	agg := NewExecutor(db, sink).Run(t.Context(), docparser.ParseNodes(src))

	assert.Equal(t, Aggregate{NumTests: 3, NumPasses: 2, NumTodos: 1}, agg)
	assert.Equal(t, 1, agg.NumFailures())

	assert.Equal(t, []SectionEvent{
		{Header: "Outer", Depth: 0},
		{Header: "Inner", Depth: 1},
		{Header: "Second", Depth: 0},
	}, sink.Sections)

	names := make([]string, 0, len(sink.Tests))
	for _, ev := range sink.Tests {
		names = append(names, ev.Name)
	}

	assert.Equal(t, []string{"pass1", "fail1", "later", "pass2"}, names)
	assert.Equal(t, StatusTodo, sink.Tests[2].Outcome.Status)
	assert.Equal(t, 2, sink.Tests[2].Depth)

	// sections and tests interleave in document order
	_, first := sink.Order[0].(SectionEvent)
	_, second := sink.Order[1].(TestEvent)
	assert.True(t, first)
	assert.True(t, second)

	// a failing test never stops the rest of the document
	assert.Equal(t, []string{"select 1", "select 2", "create table t (x int)"}, db.calls)
}

func TestRunEmptyDocument(t *testing.T) {
	agg := NewExecutor(newFakeDatabase(), nil).Run(t.Context(), nil)
	assert.Equal(t, Aggregate{}, agg)
}

func TestRunMeasuresDuration(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * 5 * time.Millisecond)
	}

	sink := &RecordingSink{}
	NewExecutor(newFakeDatabase(), sink, WithClock(clock), WithLogger(nil)).
		Run(t.Context(), docparser.ParseNodes("  t\n  todo\n"))

	assert.Equal(t, 5*time.Millisecond, sink.Tests[0].Duration)
}

func TestNormalizeErrorMessage(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeErrorMessage("a  b\n\tc"))
	assert.Equal(t, " lead", NormalizeErrorMessage("  lead"))
}
