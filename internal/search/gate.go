package search

import (
	"fmt"
	"sync"

	"github.com/arrowlake/numerion/internal/evaluator"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// GreedyComboGate is an operator-configurable acceptance predicate evaluated
// against a candidate's HorizonScore during Stage D's greedy combo search,
// supplementing the default "strictly decreases composite error" rule with an
// expression an operator can change without a code change, e.g.
// "composite_error < 0.4 && directional_hit_rate > 0.52". Compiled programs are
// cached by source text, mirroring the teacher's condition evaluator.
type GreedyComboGate struct {
	mu       sync.RWMutex
	compiled map[string]*vm.Program
}

// NewGreedyComboGate constructs an empty gate.
func NewGreedyComboGate() *GreedyComboGate {
	return &GreedyComboGate{compiled: make(map[string]*vm.Program)}
}

// Accept evaluates expression against score's fields, returning true when the
// expression is empty (the default gate always accepts) or when it compiles
// and evaluates to a truthy bool.
func (g *GreedyComboGate) Accept(expression string, score evaluator.HorizonScore) (bool, error) {
	if expression == "" {
		return true, nil
	}

	program, err := g.compile(expression)
	if err != nil {
		return false, fmt.Errorf("search: compiling combo gate expression: %w", err)
	}

	env := map[string]any{
		"horizon":              score.Horizon,
		"normalized_rmse":      score.NormalizedRMSE,
		"normalized_mae":       score.NormalizedMAE,
		"composite_error":      score.CompositeError,
		"directional_hit_rate": score.DirectionalHitRate,
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("search: running combo gate expression: %w", err)
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("search: combo gate expression %q did not evaluate to a bool", expression)
	}
	return ok, nil
}

func (g *GreedyComboGate) compile(expression string) (*vm.Program, error) {
	g.mu.RLock()
	program, ok := g.compiled[expression]
	g.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.compiled[expression] = program
	g.mu.Unlock()
	return program, nil
}
