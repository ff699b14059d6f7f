package caseexecutor

// Status is the classification of a finished test
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusTodo Status = "todo"
)

// Outcome is the result of executing one test case
type Outcome struct {
	Status  Status
	Message string
	Kind    FailureKind
}

// Pass returns a passing outcome.
func Pass() Outcome {
	return Outcome{Status: StatusPass}
}

// Todo returns a todo outcome.
func Todo() Outcome {
	return Outcome{Status: StatusTodo}
}

// Fail returns a failing outcome carrying the message and classification of err.
func Fail(err error) Outcome {
	if err == nil {
		err = ErrUnknownFailure
	}

	return Outcome{Status: StatusFail, Message: err.Error(), Kind: ClassifyFailure(err)}
}

// Aggregate returns the contribution of the outcome to its section counters.
func (o Outcome) Aggregate() Aggregate {
	switch o.Status {
	case StatusPass:
		return Aggregate{NumTests: 1, NumPasses: 1}
	case StatusTodo:
		return Aggregate{NumTodos: 1}
	default:
		return Aggregate{NumTests: 1}
	}
}

// Aggregate holds rolled-up counters for a subtree. Todo tests are counted in
// NumTodos only and never enter the pass-rate denominator.
type Aggregate struct {
	NumTests  int
	NumPasses int
	NumTodos  int
}

// Add returns the sum of both aggregates.
func (a Aggregate) Add(b Aggregate) Aggregate {
	return Aggregate{
		NumTests:  a.NumTests + b.NumTests,
		NumPasses: a.NumPasses + b.NumPasses,
		NumTodos:  a.NumTodos + b.NumTodos,
	}
}

// NumFailures returns the number of failed tests.
func (a Aggregate) NumFailures() int {
	return a.NumTests - a.NumPasses
}

// Chain runs checks in order and returns the first failure. Later checks are not
// evaluated once one has failed.
func Chain(checks ...func() error) error {
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}

	return nil
}
