package exprdsl

import (
	"fmt"
	"math"
)

// UnaryOp names a single-argument elementwise transform.
type UnaryOp string

const (
	OpAbs      UnaryOp = "abs"
	OpNeg      UnaryOp = "neg"
	OpLog1pAbs UnaryOp = "log1p_abs"
	OpSqrtAbs  UnaryOp = "sqrt_abs"
	OpTanh     UnaryOp = "tanh"
	OpSign     UnaryOp = "sign"
)

// Unary applies a UnaryOp to a child expression.
type Unary struct {
	Op    UnaryOp
	Child Node
}

func (u Unary) Eval(ctx Context) []float64 {
	x := u.Child.Eval(ctx)
	out := make([]float64, len(x))
	for i, v := range x {
		switch u.Op {
		case OpAbs:
			out[i] = math.Abs(v)
		case OpNeg:
			out[i] = -v
		case OpLog1pAbs:
			out[i] = math.Log1p(math.Abs(v))
		case OpSqrtAbs:
			out[i] = math.Sqrt(math.Abs(v) + EPS)
		case OpTanh:
			out[i] = math.Tanh(v)
		case OpSign:
			out[i] = sign(v)
		default:
			panic(fmt.Sprintf("unknown unary op: %s", u.Op))
		}
	}
	return out
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func (u Unary) ToExpr() string { return fmt.Sprintf("%s(%s)", u.Op, u.Child.ToExpr()) }

func (u Unary) ToPine() string {
	c := u.Child.ToPine()
	switch u.Op {
	case OpAbs:
		return fmt.Sprintf("math.abs(%s)", c)
	case OpNeg:
		return fmt.Sprintf("-(%s)", c)
	case OpLog1pAbs:
		return fmt.Sprintf("math.log(1 + math.abs(%s))", c)
	case OpSqrtAbs:
		return fmt.Sprintf("math.sqrt(math.abs(%s) + %g)", c, EPS)
	case OpTanh:
		return fmt.Sprintf("math.tanh(%s)", c)
	case OpSign:
		return fmt.Sprintf("math.sign(%s)", c)
	default:
		panic(fmt.Sprintf("unknown unary op: %s", u.Op))
	}
}

func (u Unary) Signature() string { return fmt.Sprintf("U:%s(%s)", u.Op, u.Child.Signature()) }
func (u Unary) Complexity() int   { return 1 + u.Child.Complexity() }

// BinaryOp names a two-argument elementwise operator.
type BinaryOp string

const (
	OpAdd BinaryOp = "add"
	OpSub BinaryOp = "sub"
	OpMul BinaryOp = "mul"
	OpDiv BinaryOp = "div"
	OpMax BinaryOp = "max"
	OpMin BinaryOp = "min"
)

// Binary applies a BinaryOp elementwise across two aligned child expressions.
type Binary struct {
	Op          BinaryOp
	Left, Right Node
}

func (b Binary) Eval(ctx Context) []float64 {
	a := b.Left.Eval(ctx)
	c := b.Right.Eval(ctx)
	out := make([]float64, len(a))
	for i := range a {
		switch b.Op {
		case OpAdd:
			out[i] = a[i] + c[i]
		case OpSub:
			out[i] = a[i] - c[i]
		case OpMul:
			out[i] = a[i] * c[i]
		case OpDiv:
			out[i] = a[i] / (math.Abs(c[i]) + EPS)
		case OpMax:
			out[i] = math.Max(a[i], c[i])
		case OpMin:
			out[i] = math.Min(a[i], c[i])
		default:
			panic(fmt.Sprintf("unknown binary op: %s", b.Op))
		}
	}
	return out
}

func (b Binary) ToExpr() string {
	return fmt.Sprintf("%s(%s,%s)", b.Op, b.Left.ToExpr(), b.Right.ToExpr())
}

func (b Binary) ToPine() string {
	a, c := b.Left.ToPine(), b.Right.ToPine()
	switch b.Op {
	case OpAdd:
		return fmt.Sprintf("(%s) + (%s)", a, c)
	case OpSub:
		return fmt.Sprintf("(%s) - (%s)", a, c)
	case OpMul:
		return fmt.Sprintf("(%s) * (%s)", a, c)
	case OpDiv:
		return fmt.Sprintf("(%s) / (math.abs(%s) + %g)", a, c, EPS)
	case OpMax:
		return fmt.Sprintf("math.max(%s, %s)", a, c)
	case OpMin:
		return fmt.Sprintf("math.min(%s, %s)", a, c)
	default:
		panic(fmt.Sprintf("unknown binary op: %s", b.Op))
	}
}

func (b Binary) Signature() string {
	return fmt.Sprintf("B:%s(%s,%s)", b.Op, b.Left.Signature(), b.Right.Signature())
}
func (b Binary) Complexity() int { return 1 + b.Left.Complexity() + b.Right.Complexity() }

// RollingOp names a windowed aggregate applied over the trailing window bars.
type RollingOp string

const (
	OpSMA RollingOp = "sma"
	OpEMA RollingOp = "ema"
	OpStd RollingOp = "std"
	OpRMin RollingOp = "min"
	OpRMax RollingOp = "max"
)

// Rolling applies a RollingOp with the given window to a child expression.
type Rolling struct {
	Op     RollingOp
	Child  Node
	Window int
}

func (r Rolling) Eval(ctx Context) []float64 {
	x := r.Child.Eval(ctx)
	switch r.Op {
	case OpSMA:
		return RollingMean(x, r.Window)
	case OpEMA:
		return EMA(x, r.Window)
	case OpStd:
		return RollingStd(x, r.Window)
	case OpRMin:
		return RollingMin(x, r.Window)
	case OpRMax:
		return RollingMax(x, r.Window)
	default:
		panic(fmt.Sprintf("unknown rolling op: %s", r.Op))
	}
}

func (r Rolling) ToExpr() string {
	return fmt.Sprintf("%s(%s,%d)", r.Op, r.Child.ToExpr(), r.Window)
}

func (r Rolling) ToPine() string {
	c := r.Child.ToPine()
	switch r.Op {
	case OpSMA:
		return fmt.Sprintf("ta.sma(%s, %d)", c, r.Window)
	case OpEMA:
		return fmt.Sprintf("ta.ema(%s, %d)", c, r.Window)
	case OpStd:
		return fmt.Sprintf("ta.stdev(%s, %d)", c, r.Window)
	case OpRMin:
		return fmt.Sprintf("ta.lowest(%s, %d)", c, r.Window)
	case OpRMax:
		return fmt.Sprintf("ta.highest(%s, %d)", c, r.Window)
	default:
		panic(fmt.Sprintf("unknown rolling op: %s", r.Op))
	}
}

func (r Rolling) Signature() string {
	return fmt.Sprintf("R:%s:%d(%s)", r.Op, r.Window, r.Child.Signature())
}
func (r Rolling) Complexity() int { return 1 + r.Child.Complexity() }

// AdaptiveSmooth interpolates the EMA decay factor between a fast and slow alpha
// based on the normalized size of each step, following a KAMA-like scheme.
type AdaptiveSmooth struct {
	Child      Node
	Fast, Slow int
}

func (a AdaptiveSmooth) Eval(ctx Context) []float64 {
	return AdaptiveSmoothSeries(a.Child.Eval(ctx), a.Fast, a.Slow)
}

func (a AdaptiveSmooth) ToExpr() string {
	return fmt.Sprintf("adaptive(%s,%d,%d)", a.Child.ToExpr(), a.Fast, a.Slow)
}

// ToPine emits ta.kama as the closest deterministic TradingView equivalent; the
// slow period is intentionally not represented since Pine's kama only takes one
// length, and Pine emission is export-only output that Eval never uses.
func (a AdaptiveSmooth) ToPine() string {
	return fmt.Sprintf("ta.kama(%s, %d)", a.Child.ToPine(), a.Fast)
}

func (a AdaptiveSmooth) Signature() string {
	return fmt.Sprintf("A:%d:%d(%s)", a.Fast, a.Slow, a.Child.Signature())
}
func (a AdaptiveSmooth) Complexity() int { return 1 + a.Child.Complexity() }
