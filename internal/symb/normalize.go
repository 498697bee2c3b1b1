package symb

import (
	"math/big"
	"sort"

	"wellconstrained/internal/field"
)

// Arena hash-conses normalised expressions by their canonical string form so
// identical sub-trees share one pointer, the way the design notes ask for an
// expression DAG backed by an arena rather than cyclic ownership. Indexing is
// by string key instead of an integer slot, which is simpler and just as
// effective for memoisation purposes here since expressions are immutable.
type Arena struct {
	cache map[string]Expr
}

func NewArena() *Arena {
	return &Arena{cache: make(map[string]Expr)}
}

func (a *Arena) intern(e Expr) Expr {
	key := e.String()
	if existing, ok := a.cache[key]; ok {
		return existing
	}
	a.cache[key] = e
	return e
}

// Normalise rewrites e bottom-up: constant folding on closed sub-trees,
// associative flattening for Add/Mul, identity/zero elimination,
// double-negation collapse, and deterministic argument ordering within
// commutative operators. Idempotent: Normalise(Normalise(e)) == Normalise(e).
func (a *Arena) Normalise(e Expr, c *field.Context) Expr {
	return a.intern(a.normaliseOnce(e, c))
}

// Normalise is a package-level convenience that allocates a private arena;
// use an explicit *Arena across a whole trace to get sharing across calls.
func Normalise(e Expr, c *field.Context) Expr {
	return NewArena().Normalise(e, c)
}

func (a *Arena) normaliseOnce(e Expr, c *field.Context) Expr {
	switch n := e.(type) {
	case *ConstantExpr, *NameExpr:
		return e

	case *UnaryExpr:
		arg := a.intern(a.normaliseOnce(n.Arg, c))
		// Double-negation collapse: --x -> x.
		if n.Op == Neg {
			if inner, ok := arg.(*UnaryExpr); ok && inner.Op == Neg {
				return inner.Arg
			}
		}
		if n.Op == BoolNot {
			if inner, ok := arg.(*UnaryExpr); ok && inner.Op == BoolNot {
				return inner.Arg
			}
		}
		if cst, ok := arg.(*ConstantExpr); ok {
			if v, err := Evaluate(&UnaryExpr{Op: n.Op, Arg: cst}, nil, c); err == nil {
				return &ConstantExpr{Value: v}
			}
		}
		return &UnaryExpr{Op: n.Op, Arg: arg}

	case *BinaryExpr:
		l := a.intern(a.normaliseOnce(n.L, c))
		r := a.intern(a.normaliseOnce(n.R, c))
		return a.normaliseBinary(n.Op, l, r, c)

	case *CompareExpr:
		l := a.intern(a.normaliseOnce(n.L, c))
		r := a.intern(a.normaliseOnce(n.R, c))
		if lc, lok := l.(*ConstantExpr); lok {
			if rc, rok := r.(*ConstantExpr); rok {
				v := evalCompare(n.Op, lc.Value, rc.Value, c)
				return &ConstantExpr{Value: v}
			}
		}
		return &CompareExpr{Op: n.Op, L: l, R: r}

	case *BoolBinaryExpr:
		l := a.intern(a.normaliseOnce(n.L, c))
		r := a.intern(a.normaliseOnce(n.R, c))
		if lc, lok := l.(*ConstantExpr); lok {
			if rc, rok := r.(*ConstantExpr); rok {
				var v field.Value
				if n.Op == And {
					v = field.NewBool(lc.Value.Bool() && rc.Value.Bool())
				} else {
					v = field.NewBool(lc.Value.Bool() || rc.Value.Bool())
				}
				return &ConstantExpr{Value: v}
			}
		}
		return &BoolBinaryExpr{Op: n.Op, L: l, R: r}

	case *SelectExpr:
		cond := a.intern(a.normaliseOnce(n.Cond, c))
		then := a.intern(a.normaliseOnce(n.Then, c))
		els := a.intern(a.normaliseOnce(n.Else, c))
		if cc, ok := cond.(*ConstantExpr); ok {
			if cc.Value.Bool() {
				return then
			}
			return els
		}
		return &SelectExpr{Cond: cond, Then: then, Else: els}

	case *IndexExpr:
		arr := a.intern(a.normaliseOnce(n.Array, c))
		idx := make([]Expr, len(n.Indices))
		for i, ix := range n.Indices {
			idx[i] = a.intern(a.normaliseOnce(ix, c))
		}
		return &IndexExpr{Array: arr, Indices: idx}

	case *CallExpr:
		args := make([]Expr, len(n.Args))
		for i, arg := range n.Args {
			args[i] = a.intern(a.normaliseOnce(arg, c))
		}
		return &CallExpr{Callee: n.Callee, Args: args}

	default:
		return e
	}
}

func (a *Arena) normaliseBinary(op BinaryOp, l, r Expr, c *field.Context) Expr {
	// Constant folding on closed sub-trees.
	if lc, lok := l.(*ConstantExpr); lok {
		if rc, rok := r.(*ConstantExpr); rok {
			if v, err := evalBinary(op, lc.Value, rc.Value, c); err == nil {
				return &ConstantExpr{Value: v}
			}
			// A field error (e.g. division by a constant zero) is left
			// unfolded; the concrete evaluator will surface it properly.
			return &BinaryExpr{Op: op, L: l, R: r}
		}
	}

	if op == Add || op == Mul {
		terms := flatten(op, l)
		terms = append(terms, flatten(op, r)...)
		terms = foldConstants(op, terms, c)
		if op == Mul && hasZeroConstant(terms) {
			return &ConstantExpr{Value: field.NewFieldInt64(0)}
		}
		if len(terms) == 0 {
			// Every term folded away into the operator's own identity
			// (0 for Add, 1 for Mul was already re-prepended by
			// foldConstants unless it matched the identity, in which case
			// there is nothing symbolic left at all).
			identity := int64(0)
			if op == Mul {
				identity = 1
			}
			return &ConstantExpr{Value: field.NewFieldInt64(identity)}
		}
		sortCommutative(terms)
		return foldTree(op, terms)
	}

	// x - 0 -> x
	if op == Sub {
		if rc, ok := r.(*ConstantExpr); ok && rc.Value.Kind() == field.KindField && rc.Value.Int().Sign() == 0 {
			return l
		}
	}
	// x / 1 -> x, x \ 1 -> x
	if op == Div || op == IntDiv {
		if rc, ok := r.(*ConstantExpr); ok && rc.Value.Kind() == field.KindField && rc.Value.Int().Cmp(big.NewInt(1)) == 0 {
			return l
		}
	}

	return &BinaryExpr{Op: op, L: l, R: r}
}

// flatten collects the operands of nested same-operator nodes into one
// slice, implementing associative flattening.
func flatten(op BinaryOp, e Expr) []Expr {
	if b, ok := e.(*BinaryExpr); ok && b.Op == op {
		return append(flatten(op, b.L), flatten(op, b.R)...)
	}
	return []Expr{e}
}

// foldConstants combines every ConstantExpr term in terms into a single
// constant (or drops it entirely if it folds to the operator's identity),
// leaving symbolic terms untouched.
func foldConstants(op BinaryOp, terms []Expr, c *field.Context) []Expr {
	var acc *big.Int
	var symbolic []Expr
	for _, t := range terms {
		if cst, ok := t.(*ConstantExpr); ok && cst.Value.Kind() == field.KindField {
			if acc == nil {
				acc = new(big.Int).Set(cst.Value.Int())
			} else if op == Add {
				acc = c.Add(acc, cst.Value.Int())
			} else {
				acc = c.Mul(acc, cst.Value.Int())
			}
			continue
		}
		symbolic = append(symbolic, t)
	}
	if acc == nil {
		return symbolic
	}
	identity := int64(0)
	if op == Mul {
		identity = 1
	}
	if acc.Cmp(big.NewInt(identity)) == 0 {
		return symbolic
	}
	return append([]Expr{&ConstantExpr{Value: field.NewField(acc)}}, symbolic...)
}

// hasZeroConstant reports whether terms contains a folded-in zero constant,
// which annihilates an entire Mul chain regardless of its symbolic factors.
func hasZeroConstant(terms []Expr) bool {
	for _, t := range terms {
		if cst, ok := t.(*ConstantExpr); ok && cst.Value.Kind() == field.KindField && cst.Value.Int().Sign() == 0 {
			return true
		}
	}
	return false
}

// sortCommutative orders terms deterministically by their string form so
// memoisation via the arena sees the same key regardless of original
// argument order.
func sortCommutative(terms []Expr) {
	sort.Slice(terms, func(i, j int) bool { return terms[i].String() < terms[j].String() })
}

// foldTree rebuilds a left-associated binary chain over the (already
// deterministically ordered) terms.
func foldTree(op BinaryOp, terms []Expr) Expr {
	result := terms[0]
	for _, t := range terms[1:] {
		result = &BinaryExpr{Op: op, L: result, R: t}
	}
	return result
}
