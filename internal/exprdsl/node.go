// Package exprdsl implements the indicator expression language: a small,
// immutable AST of field references, constants and unary/binary/rolling/adaptive
// operators, evaluated over aligned float64 price/volume series.
package exprdsl

import "fmt"

// EPS guards every division and sqrt/log argument against exact zero, matching
// the constant used throughout evaluation so results stay deterministic and
// finite instead of producing NaN/Inf.
const EPS = 1e-9

// Context supplies the named input series an expression may reference.
type Context map[string][]float64

// Node is one AST node of an indicator expression. All node kinds are
// immutable value types; evaluation never mutates a Node or its Context.
type Node interface {
	Eval(ctx Context) []float64
	ToExpr() string
	ToPine() string
	Signature() string
	Complexity() int
}

// Field references a named input column (open/high/low/close/volume/hlc3/ohlc4/logret/range).
type Field struct{ Name string }

var pineFieldMapping = map[string]string{
	"open": "open", "high": "high", "low": "low", "close": "close", "volume": "volume",
	"hlc3": "hlc3", "ohlc4": "ohlc4",
	"logret": "log(close / close[1])",
	"range":  "high - low",
}

func (f Field) Eval(ctx Context) []float64 { return ctx[f.Name] }
func (f Field) ToExpr() string             { return f.Name }
func (f Field) ToPine() string {
	if p, ok := pineFieldMapping[f.Name]; ok {
		return p
	}
	return f.Name
}
func (f Field) Signature() string { return "F:" + f.Name }
func (f Field) Complexity() int   { return 1 }

// Const is a scalar broadcast across the length of whatever context it is evaluated in.
type Const struct{ Value float64 }

func (c Const) Eval(ctx Context) []float64 {
	n := contextLen(ctx)
	out := make([]float64, n)
	for i := range out {
		out[i] = c.Value
	}
	return out
}
func (c Const) ToExpr() string   { return formatG(c.Value) }
func (c Const) ToPine() string   { return formatG(c.Value) }
func (c Const) Signature() string { return "C" }
func (c Const) Complexity() int   { return 1 }

func contextLen(ctx Context) int {
	for _, v := range ctx {
		return len(v)
	}
	return 0
}

func formatG(v float64) string {
	return fmt.Sprintf("%.6g", v)
}
