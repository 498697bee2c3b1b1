package symb

import (
	"fmt"
	"math/big"

	"wellconstrained/internal/field"
)

// ReplayError is returned by Evaluate for the runtime-only failures of §4.4:
// these are expected, typed outcomes the concrete evaluator turns into a
// classification, never a Go panic.
type ReplayError struct {
	Kind   string // "div-by-zero" or "array-oob"
	Detail string
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Residual is returned when an expression's free names cannot be fully
// resolved against the supplied environment: evaluation produces an
// expression instead of a Value, per §4.2
// ("evaluate(expr, σ) → Value | SymbolicResidual").
type Residual struct {
	Expr Expr
}

func (r *Residual) Error() string {
	return fmt.Sprintf("symbolic residual: %s", r.Expr)
}

// asResidualExpr extracts the residual expression from err if it is a
// *Residual, otherwise falls back to original.
func asResidualExpr(err error, original Expr) Expr {
	if res, ok := err.(*Residual); ok {
		return res.Expr
	}
	return original
}

// wrapResidual turns a failure from evaluating a single sub-expression into
// a Residual over the rebuilt parent, unless the failure was a genuine
// ReplayError, which always propagates unchanged (a field error is not
// something normalisation can paper over).
func wrapResidual(err error, rebuild func(sub Expr) Expr) error {
	if res, ok := err.(*Residual); ok {
		return &Residual{Expr: rebuild(res.Expr)}
	}
	return err
}

// combineResidual merges the (possibly nil) failures of a binary node's two
// operands into one Residual over the rebuilt parent. A *ReplayError from
// either side propagates unchanged and takes priority over a residual.
func combineResidual(lerr, rerr error, lexpr, rexpr Expr, rebuild func(l, r Expr) Expr) error {
	if re, ok := lerr.(*ReplayError); ok {
		return re
	}
	if re, ok := rerr.(*ReplayError); ok {
		return re
	}
	l := asResidualExpr(lerr, lexpr)
	r := asResidualExpr(rerr, rexpr)
	return &Residual{Expr: rebuild(l, r)}
}

// Evaluate resolves e to a concrete Value under the name→Value assignment
// env and field context c. If any free name in e is missing from env, the
// result is a *Residual error wrapping the expression rebuilt around the
// unresolved names; operands that did resolve keep their original symbolic
// form and are not replaced by their values. Field errors (division by zero,
// out-of-bounds index) are reported as *ReplayError.
func Evaluate(e Expr, env map[string]field.Value, c *field.Context) (field.Value, error) {
	switch n := e.(type) {
	case *ConstantExpr:
		return n.Value, nil

	case *NameExpr:
		if v, ok := env[n.Name]; ok {
			return v, nil
		}
		return field.Value{}, &Residual{Expr: n}

	case *UnaryExpr:
		v, err := Evaluate(n.Arg, env, c)
		if err != nil {
			return field.Value{}, wrapResidual(err, func(sub Expr) Expr { return &UnaryExpr{Op: n.Op, Arg: sub} })
		}
		switch n.Op {
		case Neg:
			return field.NewField(c.Neg(v.Int())), nil
		case BitNot:
			ones := new(big.Int).Sub(c.P, big.NewInt(1))
			return field.NewField(c.Sub(ones, v.Int())), nil
		case BoolNot:
			return field.NewBool(!v.Bool()), nil
		}
		return field.Value{}, fmt.Errorf("symb: unhandled unary operator %v", n.Op)

	case *BinaryExpr:
		lv, lerr := Evaluate(n.L, env, c)
		rv, rerr := Evaluate(n.R, env, c)
		if lerr != nil || rerr != nil {
			return field.Value{}, combineResidual(lerr, rerr, n.L, n.R, func(l, r Expr) Expr { return &BinaryExpr{Op: n.Op, L: l, R: r} })
		}
		return evalBinary(n.Op, lv, rv, c)

	case *CompareExpr:
		lv, lerr := Evaluate(n.L, env, c)
		rv, rerr := Evaluate(n.R, env, c)
		if lerr != nil || rerr != nil {
			return field.Value{}, combineResidual(lerr, rerr, n.L, n.R, func(l, r Expr) Expr { return &CompareExpr{Op: n.Op, L: l, R: r} })
		}
		return evalCompare(n.Op, lv, rv, c), nil

	case *BoolBinaryExpr:
		lv, lerr := Evaluate(n.L, env, c)
		rv, rerr := Evaluate(n.R, env, c)
		if lerr != nil || rerr != nil {
			return field.Value{}, combineResidual(lerr, rerr, n.L, n.R, func(l, r Expr) Expr { return &BoolBinaryExpr{Op: n.Op, L: l, R: r} })
		}
		if n.Op == And {
			return field.NewBool(lv.Bool() && rv.Bool()), nil
		}
		return field.NewBool(lv.Bool() || rv.Bool()), nil

	case *SelectExpr:
		cv, cerr := Evaluate(n.Cond, env, c)
		if cerr != nil {
			return field.Value{}, wrapResidual(cerr, func(sub Expr) Expr { return &SelectExpr{Cond: sub, Then: n.Then, Else: n.Else} })
		}
		if cv.Bool() {
			return Evaluate(n.Then, env, c)
		}
		return Evaluate(n.Else, env, c)

	case *IndexExpr:
		av, aerr := Evaluate(n.Array, env, c)
		if aerr != nil {
			return field.Value{}, wrapResidual(aerr, func(sub Expr) Expr { return &IndexExpr{Array: sub, Indices: n.Indices} })
		}
		cur := av
		for _, ixExpr := range n.Indices {
			iv, ierr := Evaluate(ixExpr, env, c)
			if ierr != nil {
				return field.Value{}, &Residual{Expr: n}
			}
			idx := int(iv.Int().Int64())
			if idx < 0 || idx >= cur.Len() {
				return field.Value{}, &ReplayError{Kind: "array-oob", Detail: fmt.Sprintf("index %d out of bounds for length %d", idx, cur.Len())}
			}
			cur = cur.Elems()[idx]
		}
		return cur, nil

	case *CallExpr:
		// A CallExpr surviving into Evaluate means the symbolic execution
		// engine has not yet inlined it; nothing outside internal/exec
		// should evaluate one directly.
		return field.Value{}, &Residual{Expr: n}
	}
	return field.Value{}, fmt.Errorf("symb: unhandled expression type %T", e)
}

func evalBinary(op BinaryOp, lv, rv field.Value, c *field.Context) (field.Value, error) {
	l, r := lv.Int(), rv.Int()
	switch op {
	case Add:
		return field.NewField(c.Add(l, r)), nil
	case Sub:
		return field.NewField(c.Sub(l, r)), nil
	case Mul:
		return field.NewField(c.Mul(l, r)), nil
	case Div:
		q, ok := c.Div(l, r)
		if !ok {
			return field.Value{}, &ReplayError{Kind: "div-by-zero", Detail: fmt.Sprintf("%s / %s", l, r)}
		}
		return field.NewField(q), nil
	case IntDiv:
		q, ok := c.IntDiv(l, r)
		if !ok {
			return field.Value{}, &ReplayError{Kind: "div-by-zero", Detail: fmt.Sprintf("%s \\ %s", l, r)}
		}
		return field.NewField(q), nil
	case Mod:
		m, ok := c.Mod(l, r)
		if !ok {
			return field.Value{}, &ReplayError{Kind: "div-by-zero", Detail: fmt.Sprintf("%s %% %s", l, r)}
		}
		return field.NewField(m), nil
	case Pow:
		return field.NewField(c.Pow(l, r)), nil
	case BitAnd:
		return field.NewField(c.BitAnd(l, r)), nil
	case BitOr:
		return field.NewField(c.BitOr(l, r)), nil
	case BitXor:
		return field.NewField(c.BitXor(l, r)), nil
	case ShL:
		return field.NewField(c.ShL(l, uint(r.Int64()))), nil
	case ShR:
		return field.NewField(c.ShR(l, uint(r.Int64()))), nil
	}
	return field.Value{}, fmt.Errorf("symb: unhandled binary operator %v", op)
}

func evalCompare(op CompareOp, lv, rv field.Value, c *field.Context) field.Value {
	l, r := lv.Int(), rv.Int()
	switch op {
	case Eq:
		return field.NewBool(c.Eq(l, r))
	case NEq:
		return field.NewBool(!c.Eq(l, r))
	case Lt:
		return field.NewBool(c.Lt(l, r))
	case Le:
		return field.NewBool(c.Le(l, r))
	case Gt:
		return field.NewBool(c.Gt(l, r))
	case Ge:
		return field.NewBool(c.Ge(l, r))
	}
	return field.NewBool(false)
}
