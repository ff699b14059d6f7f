package caseexecutor

import (
	"errors"
	"fmt"
)

// FailureKind represents the classification of a test failure.
type FailureKind int

const (
	// FailureKindUnknown represents failures that could not be classified.
	FailureKindUnknown FailureKind = iota
	// FailureKindAssertion represents comparison mismatches and violated error expectations.
	FailureKindAssertion
	// FailureKindDatabase represents errors raised by the database where success was expected.
	FailureKindDatabase
	// FailureKindDefinition represents malformed test blocks and unknown commands.
	FailureKindDefinition
)

func (k FailureKind) String() string {
	switch k {
	case FailureKindAssertion:
		return "assertion"
	case FailureKindDatabase:
		return "database"
	case FailureKindDefinition:
		return "definition"
	default:
		return "unknown"
	}
}

// Sentinel errors for wrapping
var (
	ErrUnknownFailure        = errors.New("unknown failure")
	ErrUnknownCommand        = errors.New("unknown command")
	ErrTypeStringArity       = errors.New("type string arity mismatch")
	ErrRowCountMismatch      = errors.New("result row count mismatch")
	ErrValueMismatch         = errors.New("value mismatch")
	ErrInvalidExpectedValue  = errors.New("invalid expected value")
	ErrExpectedErrorMissing  = errors.New("expected statement error")
	ErrErrorMessageMismatch  = errors.New("error message mismatch")
	ErrDatabasePanic         = errors.New("database adapter panicked")
	errUnencodableValue      = errors.New("value cannot be encoded as JSON")
	errMissingComparedColumn = errors.New("result row has no columns")
)

// CaseError is a failure that keeps its classification. Its message is the
// diagnostic shown to the user, without any wrapping prefix.
type CaseError struct {
	kind    FailureKind
	message string
	err     error
}

// Error implements the error interface.
func (c *CaseError) Error() string {
	if c == nil {
		return "test failure"
	}

	return c.message
}

// Unwrap returns the underlying error.
func (c *CaseError) Unwrap() error {
	if c == nil {
		return nil
	}

	return c.err
}

// Kind returns the FailureKind classification.
func (c *CaseError) Kind() FailureKind {
	if c == nil {
		return FailureKindUnknown
	}

	return c.kind
}

// AsCaseError attempts to extract a CaseError from the error chain.
func AsCaseError(err error) (*CaseError, bool) {
	var ce *CaseError
	if errors.As(err, &ce) {
		return ce, true
	}

	return nil, false
}

// ClassifyFailure inspects an error and returns its FailureKind.
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return FailureKindUnknown
	}

	if ce, ok := AsCaseError(err); ok {
		return ce.Kind()
	}

	return FailureKindUnknown
}

func newFailure(kind FailureKind, err error, format string, args ...any) error {
	if err == nil {
		err = ErrUnknownFailure
	}

	return &CaseError{kind: kind, message: fmt.Sprintf(format, args...), err: err}
}

func assertionFailure(err error, format string, args ...any) error {
	return newFailure(FailureKindAssertion, err, format, args...)
}

func definitionFailure(err error, format string, args ...any) error {
	return newFailure(FailureKindDefinition, err, format, args...)
}

// databaseFailure reports the database message verbatim.
func databaseFailure(err error) error {
	return &CaseError{kind: FailureKindDatabase, message: databaseMessage(err), err: err}
}
