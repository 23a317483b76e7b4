// Package cel provides the CEL expression evaluator backing guard
// override rules.
package cel

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
)

// maxExpressionLength caps CEL expression size.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit, preventing cost-exhaustion
// through pathological expressions.
const maxCostBudget = 100_000

// maxNestingDepth is the maximum allowed parenthesis/bracket nesting depth.
const maxNestingDepth = 50

// evalTimeout bounds a single CEL evaluation.
const evalTimeout = 5 * time.Second

// interruptCheckFreq is how often (in comprehension iterations) context
// cancellation is checked.
const interruptCheckFreq = 100

// RuleInput carries the variables exposed to override-rule conditions.
type RuleInput struct {
	// Action is the dispatched action type.
	Action string
	// Params are the envelope parameters.
	Params map[string]any
	// Scopes are the caller's scope strings ("macro:analyst", "global:admin").
	Scopes []string
	// Topic is the current topic context.
	Topic string
}

// Evaluator compiles and evaluates CEL conditions for guard override rules.
type Evaluator struct {
	env *cel.Env
}

// NewRuleEnvironment creates a CEL environment exposing the dispatch
// variables and helper functions:
//   - action (string), params (map), scopes (list of string), topic (string)
//   - glob(pattern, name): filepath-style glob match
//   - param(params, key): extract a parameter, null when absent
func NewRuleEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Strings(),
		ext.Sets(),

		cel.Variable("action", cel.StringType),
		cel.Variable("params", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("scopes", cel.ListType(cel.StringType)),
		cel.Variable("topic", cel.StringType),

		cel.Function("glob",
			cel.Overload("glob_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(pattern, name ref.Val) ref.Val {
					p, _ := pattern.Value().(string)
					n, _ := name.Value().(string)
					matched, _ := filepath.Match(p, n)
					return types.Bool(matched)
				}),
			),
		),

		cel.Function("param",
			cel.Overload("param_map_string",
				[]*cel.Type{cel.MapType(cel.StringType, cel.DynType), cel.StringType},
				cel.DynType,
				cel.BinaryBinding(func(mapVal, keyVal ref.Val) ref.Val {
					key, _ := keyVal.Value().(string)
					m, ok := mapVal.Value().(map[string]any)
					if !ok {
						return types.NullValue
					}
					v, ok := m[key]
					if !ok {
						return types.NullValue
					}
					return types.DefaultTypeAdapter.NativeToValue(v)
				}),
			),
		),
	)
}

// NewEvaluator creates a new CEL evaluator with the rule environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := NewRuleEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create rule environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// Compile parses and type-checks a CEL expression, returning a compiled
// program with cost and interrupt limits applied.
func (e *Evaluator) Compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression must evaluate to a boolean, got %s", ast.OutputType())
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}

	return prg, nil
}

// validateNesting checks that the expression does not exceed the maximum
// allowed nesting depth for parentheses, brackets, and braces.
func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// ValidateExpression checks that a CEL condition is syntactically valid
// and within the safety limits. Called before persisting override rules
// so invalid CEL cannot poison the configuration.
func (e *Evaluator) ValidateExpression(expr string) error {
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	if expr == "" {
		return errors.New("expression is empty")
	}
	if err := validateNesting(expr); err != nil {
		return err
	}
	if _, err := e.Compile(expr); err != nil {
		return fmt.Errorf("invalid CEL expression: %w", err)
	}
	return nil
}

// Evaluate runs a compiled program against the given rule input.
// Returns true only when the expression evaluates to a boolean true;
// evaluation runs under a timeout so a hostile condition cannot hang
// the guard.
func (e *Evaluator) Evaluate(prg cel.Program, input RuleInput) (bool, error) {
	params := input.Params
	if params == nil {
		params = map[string]any{}
	}
	scopes := input.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	activation := map[string]any{
		"action": input.Action,
		"params": params,
		"scopes": scopes,
		"topic":  input.Topic,
	}

	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(ctx, activation)
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}

	boolResult, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return a boolean, got %T", result.Value())
	}
	return boolResult, nil
}
