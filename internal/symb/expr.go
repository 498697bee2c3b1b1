// Package symb implements the symbolic expression algebra: a tagged-variant
// tree over field constants, symbolic names, and the unary/binary/comparison/
// boolean/array/component operators a circuit template can express, plus
// substitution, evaluation, free-name collection, and normalisation.
package symb

import (
	"fmt"
	"sort"
	"strings"

	"wellconstrained/internal/field"
)

// Expr is the tagged interface every expression variant implements, mirrored
// on the teacher's ast.Expr: a private marker method per variant plus a
// shared String() for debugging and deterministic ordering.
type Expr interface {
	fmt.Stringer
	isExpr()
}

func (*ConstantExpr) isExpr()    {}
func (*NameExpr) isExpr()        {}
func (*UnaryExpr) isExpr()       {}
func (*BinaryExpr) isExpr()      {}
func (*CompareExpr) isExpr()     {}
func (*BoolBinaryExpr) isExpr()  {}
func (*SelectExpr) isExpr()      {}
func (*IndexExpr) isExpr()       {}
func (*CallExpr) isExpr()        {}

// UnaryOp enumerates the unary operators of §3.
type UnaryOp int

const (
	Neg UnaryOp = iota
	BitNot
	BoolNot
)

func (op UnaryOp) String() string {
	switch op {
	case Neg:
		return "-"
	case BitNot:
		return "~"
	case BoolNot:
		return "!"
	default:
		return "?unary?"
	}
}

// BinaryOp enumerates the arithmetic/bitwise binary operators of §3.
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	IntDiv
	Mod
	Pow
	BitAnd
	BitOr
	BitXor
	ShL
	ShR
)

var binaryOpSymbols = map[BinaryOp]string{
	Add: "+", Sub: "-", Mul: "*", Div: "/", IntDiv: "\\", Mod: "%", Pow: "**",
	BitAnd: "&", BitOr: "|", BitXor: "^", ShL: "<<", ShR: ">>",
}

func (op BinaryOp) String() string {
	if s, ok := binaryOpSymbols[op]; ok {
		return s
	}
	return "?binop?"
}

// Commutative reports whether op is associative/commutative. Normalisation
// does not consult it: it flattens and orders only Add and Mul chains.
func (op BinaryOp) Commutative() bool {
	return op == Add || op == Mul || op == BitAnd || op == BitOr || op == BitXor
}

// CompareOp enumerates the comparison operators of §3.
type CompareOp int

const (
	Eq CompareOp = iota
	NEq
	Lt
	Le
	Gt
	Ge
)

var compareOpSymbols = map[CompareOp]string{
	Eq: "===", NEq: "!==", Lt: "<", Le: "<=", Gt: ">", Ge: ">=",
}

func (op CompareOp) String() string {
	if s, ok := compareOpSymbols[op]; ok {
		return s
	}
	return "?cmp?"
}

// BoolOp enumerates the short-circuit boolean operators of §3.
type BoolOp int

const (
	And BoolOp = iota
	Or
)

func (op BoolOp) String() string {
	if op == And {
		return "&&"
	}
	return "||"
}

// ConstantExpr wraps a concrete Value known at construction time.
type ConstantExpr struct {
	Value field.Value
}

func (e *ConstantExpr) String() string { return e.Value.String() }

// NameExpr is a fully-qualified dotted symbolic name, e.g. "main.sub.in[2]".
type NameExpr struct {
	Name string
}

func (e *NameExpr) String() string { return e.Name }

// UnaryExpr applies a unary operator to a sub-expression.
type UnaryExpr struct {
	Op  UnaryOp
	Arg Expr
}

func (e *UnaryExpr) String() string { return fmt.Sprintf("%s%s", e.Op, e.Arg) }

// BinaryExpr applies a binary operator to two sub-expressions.
type BinaryExpr struct {
	Op   BinaryOp
	L, R Expr
}

func (e *BinaryExpr) String() string { return fmt.Sprintf("(%s %s %s)", e.L, e.Op, e.R) }

// CompareExpr applies a comparison operator, producing a boolean result.
type CompareExpr struct {
	Op   CompareOp
	L, R Expr
}

func (e *CompareExpr) String() string { return fmt.Sprintf("(%s %s %s)", e.L, e.Op, e.R) }

// BoolBinaryExpr applies a boolean operator to two boolean sub-expressions.
type BoolBinaryExpr struct {
	Op   BoolOp
	L, R Expr
}

func (e *BoolBinaryExpr) String() string { return fmt.Sprintf("(%s %s %s)", e.L, e.Op, e.R) }

// SelectExpr is a compile-time or symbolic conditional: Cond ? Then : Else.
// Branching symbolic execution merges divergent assignments into one of
// these at the join point.
type SelectExpr struct {
	Cond, Then, Else Expr
}

func (e *SelectExpr) String() string { return fmt.Sprintf("(%s ? %s : %s)", e.Cond, e.Then, e.Else) }

// IndexExpr indexes an array-valued expression by one or more index
// expressions (multi-dimensional arrays index left-to-right).
type IndexExpr struct {
	Array   Expr
	Indices []Expr
}

func (e *IndexExpr) String() string {
	var b strings.Builder
	b.WriteString(e.Array.String())
	for _, ix := range e.Indices {
		b.WriteString("[")
		b.WriteString(ix.String())
		b.WriteString("]")
	}
	return b.String()
}

// CallExpr calls a named function or template before inlining. The
// symbolic execution engine eliminates every CallExpr by expanding the
// callee; one should never appear in a fully-built canonical trace.
type CallExpr struct {
	Callee string
	Args   []Expr
}

func (e *CallExpr) String() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", e.Callee, strings.Join(parts, ", "))
}

// FreeNames returns the sorted, de-duplicated set of symbolic names
// appearing anywhere in e.
func FreeNames(e Expr) []string {
	seen := map[string]bool{}
	collectFreeNames(e, seen)
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func collectFreeNames(e Expr, seen map[string]bool) {
	switch n := e.(type) {
	case *ConstantExpr:
	case *NameExpr:
		seen[n.Name] = true
	case *UnaryExpr:
		collectFreeNames(n.Arg, seen)
	case *BinaryExpr:
		collectFreeNames(n.L, seen)
		collectFreeNames(n.R, seen)
	case *CompareExpr:
		collectFreeNames(n.L, seen)
		collectFreeNames(n.R, seen)
	case *BoolBinaryExpr:
		collectFreeNames(n.L, seen)
		collectFreeNames(n.R, seen)
	case *SelectExpr:
		collectFreeNames(n.Cond, seen)
		collectFreeNames(n.Then, seen)
		collectFreeNames(n.Else, seen)
	case *IndexExpr:
		collectFreeNames(n.Array, seen)
		for _, ix := range n.Indices {
			collectFreeNames(ix, seen)
		}
	case *CallExpr:
		for _, a := range n.Args {
			collectFreeNames(a, seen)
		}
	}
}
