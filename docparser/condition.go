package docparser

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// ConditionContext supplies the variables visible to enabled_if expressions
type ConditionContext struct {
	Dialect string
	Env     string
	Vars    map[string]string
}

// Enabled evaluates the front matter enabled_if expression. An empty expression
// enables the file.
//
// Available variables: dialect (string), env (string) and vars (map of string).
func (fm FrontMatter) Enabled(cc ConditionContext) (bool, error) {
	expr := strings.TrimSpace(fm.EnabledIf)
	if expr == "" {
		return true, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("dialect", cel.StringType),
		cel.Variable("env", cel.StringType),
		cel.Variable("vars", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidCondition, err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrInvalidCondition, expr, issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrInvalidCondition, expr, err)
	}

	vars := cc.Vars
	if vars == nil {
		vars = map[string]string{}
	}

	out, _, err := program.Eval(map[string]any{
		"dialect": cc.Dialect,
		"env":     cc.Env,
		"vars":    vars,
	})
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrInvalidCondition, expr, err)
	}

	enabled, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s: result is %s, not bool", ErrInvalidCondition, expr, out.Type().TypeName())
	}

	return enabled, nil
}
