package exprdsl

import "github.com/arrowlake/numerion/internal/domain"

// Candidate pairs a generated expression with the identity and parameter bag a
// caller needs to report it, without re-deriving that bookkeeping from the AST.
type Candidate struct {
	IndicatorID string
	Expr        Node
	Params      map[string]any
}

// Expression renders the candidate's canonical textual expression.
func (c Candidate) Expression() string { return c.Expr.ToExpr() }

// Complexity returns the candidate's AST node count.
func (c Candidate) Complexity() int { return c.Expr.Complexity() }

// Signature returns the candidate's structural dedup key.
func (c Candidate) Signature() string { return c.Expr.Signature() }

// Spec renders the candidate into its exported domain representation.
func (c Candidate) Spec() domain.IndicatorSpec {
	return domain.IndicatorSpec{
		IndicatorID: c.IndicatorID,
		Expression:  c.Expression(),
		Complexity:  c.Complexity(),
		Params:      c.Params,
	}
}

// Feature evaluates the candidate against ctx and sanitizes the result, the
// form every downstream consumer (novelty filter, evaluator, backtest) expects.
func (c Candidate) Feature(ctx Context) []float64 {
	return Sanitize(c.Expr.Eval(ctx))
}
