package caseexecutor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shibukawa/sqldoctest/docparser"
	"go.uber.org/zap"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Executor walks a parsed document and runs every test case against one database
// connection, strictly in document order.
type Executor struct {
	db     Database
	sink   EventSink
	logger *zap.Logger
	now    func() time.Time
}

// Option configures an Executor
type Option func(*Executor)

// WithLogger sets the logger used for per-test debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock replaces the time source used to measure test durations.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExecutor creates an executor bound to db. Events go to sink; a nil sink
// discards them.
func NewExecutor(db Database, sink EventSink, opts ...Option) *Executor {
	if sink == nil {
		sink = NopSink{}
	}

	e := &Executor{
		db:     db,
		sink:   sink,
		logger: zap.NewNop(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run executes nodes as the top level of a document and returns the aggregate.
func (e *Executor) Run(ctx context.Context, nodes []docparser.Node) Aggregate {
	return e.runNodes(ctx, nodes, 0)
}

func (e *Executor) runNodes(ctx context.Context, nodes []docparser.Node, depth int) Aggregate {
	var total Aggregate

	for _, n := range nodes {
		switch node := n.(type) {
		case *docparser.Section:
			e.sink.SectionEntered(SectionEvent{Header: node.Header, Depth: depth})
			total = total.Add(e.runNodes(ctx, node.Children, depth+1))
		case *docparser.TestCase:
			start := e.now()
			outcome := e.ExecuteTest(ctx, node)
			elapsed := e.now().Sub(start)

			e.logger.Debug("test finished",
				zap.String("name", node.Name),
				zap.String("command", string(node.Command)),
				zap.String("status", string(outcome.Status)),
				zap.Duration("duration", elapsed))

			e.sink.TestFinished(TestEvent{
				Name:     node.Name,
				Depth:    depth,
				Line:     node.Line,
				Outcome:  outcome,
				Duration: elapsed,
			})
			total = total.Add(outcome.Aggregate())
		}
	}

	return total
}

// ExecuteTest runs a single test case. It always resolves to an outcome; adapter
// panics become failures.
func (e *Executor) ExecuteTest(ctx context.Context, tc *docparser.TestCase) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("database adapter panicked", zap.String("name", tc.Name), zap.Any("panic", r))
			outcome = Fail(newFailure(FailureKindDatabase, ErrDatabasePanic, "%v: %v", ErrDatabasePanic, r))
		}
	}()

	if tc.Command == docparser.CommandTodo {
		return Todo()
	}

	if err := tc.Validate(); err != nil {
		return Fail(definitionFailure(err, "%v", err))
	}

	switch tc.Command {
	case docparser.CommandQuery:
		return e.executeQuery(ctx, tc)
	case docparser.CommandStatement:
		switch tc.Arg(0) {
		case "ok":
			return e.executeStatementOK(ctx, tc)
		case "error":
			return e.executeStatementError(ctx, tc)
		}
	}

	return Fail(unknownCommand(tc))
}

func (e *Executor) executeQuery(ctx context.Context, tc *docparser.TestCase) Outcome {
	rs, err := e.db.Query(ctx, tc.Query)
	if err != nil {
		return Fail(databaseFailure(err))
	}

	err = Chain(
		func() error { return CheckTypeString(rs, tc.Arg(0)) },
		func() error { return CheckValues(rs, tc.ExpectedResults) },
	)
	if err != nil {
		return Fail(err)
	}

	return Pass()
}

func (e *Executor) executeStatementOK(ctx context.Context, tc *docparser.TestCase) Outcome {
	if err := e.db.Exec(ctx, tc.Query); err != nil {
		return Fail(databaseFailure(err))
	}

	return Pass()
}

func (e *Executor) executeStatementError(ctx context.Context, tc *docparser.TestCase) Outcome {
	expected := strings.Join(tc.Args[1:], " ")

	err := e.db.Exec(ctx, tc.Query)
	if err == nil {
		return Fail(assertionFailure(ErrExpectedErrorMissing, "expected an error %q, but the statement succeeded", expected))
	}

	actual := NormalizeErrorMessage(databaseMessage(err))
	if actual != expected {
		return Fail(assertionFailure(ErrErrorMessageMismatch, "expected error %q, got %q", expected, actual))
	}

	return Pass()
}

// NormalizeErrorMessage collapses every whitespace run into a single space.
func NormalizeErrorMessage(msg string) string {
	return whitespaceRun.ReplaceAllString(msg, " ")
}

func unknownCommand(tc *docparser.TestCase) error {
	name := strings.TrimSpace(strings.Join(append([]string{string(tc.Command)}, tc.Args...), " "))
	return definitionFailure(fmt.Errorf("%w: %s", ErrUnknownCommand, name), "unknown command %s", name)
}
