// Package field implements big-integer arithmetic modulo a configurable
// prime, plus the tagged Value union the rest of the engine computes over.
package field

import (
	"fmt"
	"math/big"
)

// DefaultPrime is the BN254/BabyJubJub scalar field prime Circom targets by
// default: 21888242871839275222246405745257275088548364400416034343698204186575808495617.
var DefaultPrime = mustPrime("21888242871839275222246405745257275088548364400416034343698204186575808495617")

func mustPrime(s string) *big.Int {
	p, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("field: invalid default prime literal")
	}
	return p
}

// Context carries the modulus and the conventions field operations are
// evaluated under. It is immutable once constructed and shared by reference
// across an entire search session.
type Context struct {
	P *big.Int

	// SignedCompare selects the two's-complement-like sign convention for
	// ordering comparisons: values in [0, P/2) read as non-negative, values
	// in [P/2, P) read as negative. Open question (i) in the specification
	// leaves this configurable; true is the default.
	SignedCompare bool

	half *big.Int
}

// NewContext builds a Context for prime p. Panics if p is not an odd
// positive integer greater than 2, since every field operation below assumes
// a genuine odd prime modulus.
func NewContext(p *big.Int) *Context {
	if p == nil || p.Cmp(big.NewInt(3)) < 0 || p.Bit(0) == 0 {
		panic("field: modulus must be a positive odd prime")
	}
	return &Context{
		P:             new(big.Int).Set(p),
		SignedCompare: true,
		half:          new(big.Int).Rsh(p, 1),
	}
}

// DefaultContext returns a Context over DefaultPrime.
func DefaultContext() *Context {
	return NewContext(DefaultPrime)
}

// Reduce returns x mod P as the canonical least-non-negative representative.
func (c *Context) Reduce(x *big.Int) *big.Int {
	r := new(big.Int).Mod(x, c.P)
	return r
}

func (c *Context) Add(a, b *big.Int) *big.Int {
	return c.Reduce(new(big.Int).Add(a, b))
}

func (c *Context) Sub(a, b *big.Int) *big.Int {
	return c.Reduce(new(big.Int).Sub(a, b))
}

func (c *Context) Mul(a, b *big.Int) *big.Int {
	return c.Reduce(new(big.Int).Mul(a, b))
}

func (c *Context) Neg(a *big.Int) *big.Int {
	return c.Reduce(new(big.Int).Neg(a))
}

// Inv returns the modular inverse of a via the extended Euclidean algorithm
// (big.Int.ModInverse). The second return is false when a is zero mod P,
// surfacing a field error to the caller instead of panicking.
func (c *Context) Inv(a *big.Int) (*big.Int, bool) {
	r := c.Reduce(a)
	if r.Sign() == 0 {
		return nil, false
	}
	inv := new(big.Int).ModInverse(r, c.P)
	if inv == nil {
		return nil, false
	}
	return inv, true
}

// Div returns a/b as a*Inv(b). The second return is false when b is zero mod
// P (division by zero, a field error per the specification).
func (c *Context) Div(a, b *big.Int) (*big.Int, bool) {
	inv, ok := c.Inv(b)
	if !ok {
		return nil, false
	}
	return c.Mul(a, inv), true
}

// IntDiv and Mod are defined on least-non-negative representatives: the
// field is viewed as plain integers in [0, P) and divided the usual way,
// without a further prime reduction of the quotient/remainder. Division by
// zero is reported the same way Div reports it.
func (c *Context) IntDiv(a, b *big.Int) (*big.Int, bool) {
	ra, rb := c.Reduce(a), c.Reduce(b)
	if rb.Sign() == 0 {
		return nil, false
	}
	q := new(big.Int).Div(ra, rb)
	return q, true
}

func (c *Context) Mod(a, b *big.Int) (*big.Int, bool) {
	ra, rb := c.Reduce(a), c.Reduce(b)
	if rb.Sign() == 0 {
		return nil, false
	}
	m := new(big.Int).Mod(ra, rb)
	return m, true
}

func (c *Context) Pow(a, e *big.Int) *big.Int {
	return new(big.Int).Exp(c.Reduce(a), e, c.P)
}

// Eq is field equality on canonical representatives.
func (c *Context) Eq(a, b *big.Int) bool {
	return c.Reduce(a).Cmp(c.Reduce(b)) == 0
}

// signedValue maps a representative in [0, P) to its two's-complement-like
// signed interpretation when SignedCompare is set: [0, P/2) stays
// non-negative, [P/2, P) becomes negative (x - P).
func (c *Context) signedValue(x *big.Int) *big.Int {
	r := c.Reduce(x)
	if !c.SignedCompare || r.Cmp(c.half) < 0 {
		return r
	}
	return new(big.Int).Sub(r, c.P)
}

func (c *Context) Lt(a, b *big.Int) bool { return c.signedValue(a).Cmp(c.signedValue(b)) < 0 }
func (c *Context) Le(a, b *big.Int) bool { return c.signedValue(a).Cmp(c.signedValue(b)) <= 0 }
func (c *Context) Gt(a, b *big.Int) bool { return c.signedValue(a).Cmp(c.signedValue(b)) > 0 }
func (c *Context) Ge(a, b *big.Int) bool { return c.signedValue(a).Cmp(c.signedValue(b)) >= 0 }

// BitAnd, BitOr, BitXor, ShL, ShR operate on the canonical non-negative
// representative and re-reduce; circuits that rely on these treat the field
// element as an unsigned bit pattern.
func (c *Context) BitAnd(a, b *big.Int) *big.Int {
	return c.Reduce(new(big.Int).And(c.Reduce(a), c.Reduce(b)))
}

func (c *Context) BitOr(a, b *big.Int) *big.Int {
	return c.Reduce(new(big.Int).Or(c.Reduce(a), c.Reduce(b)))
}

func (c *Context) BitXor(a, b *big.Int) *big.Int {
	return c.Reduce(new(big.Int).Xor(c.Reduce(a), c.Reduce(b)))
}

func (c *Context) ShL(a *big.Int, n uint) *big.Int {
	return c.Reduce(new(big.Int).Lsh(c.Reduce(a), n))
}

func (c *Context) ShR(a *big.Int, n uint) *big.Int {
	return c.Reduce(new(big.Int).Rsh(c.Reduce(a), n))
}

// AbsDistance returns min(|a-b|, P-|a-b|) interpreted as a non-negative
// integer, the residual measure used by the fitness scorer for equality
// constraints.
func (c *Context) AbsDistance(a, b *big.Int) *big.Int {
	ra, rb := c.Reduce(a), c.Reduce(b)
	d := new(big.Int).Sub(ra, rb)
	d.Abs(d)
	other := new(big.Int).Sub(c.P, d)
	if other.Cmp(d) < 0 {
		return other
	}
	return d
}

// Kind discriminates the tagged Value union.
type Kind int

const (
	KindField Kind = iota
	KindBool
	KindArray
	KindTuple
)

func (k Kind) String() string {
	switch k {
	case KindField:
		return "field"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	case KindTuple:
		return "tuple"
	default:
		return "unknown"
	}
}

// Value is the tagged union of §3: a field element, a boolean, an ordered
// array of homogeneous dimension, or a fixed heterogeneous tuple. Values are
// immutable once constructed.
type Value struct {
	kind  Kind
	field *big.Int // set when kind == KindField or KindBool (0 or 1)
	elems []Value  // set when kind == KindArray or KindTuple
}

func NewField(x *big.Int) Value {
	return Value{kind: KindField, field: new(big.Int).Set(x)}
}

func NewFieldInt64(x int64) Value {
	return NewField(big.NewInt(x))
}

func NewBool(b bool) Value {
	v := big.NewInt(0)
	if b {
		v = big.NewInt(1)
	}
	return Value{kind: KindBool, field: v}
}

func NewArray(elems []Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{kind: KindArray, elems: cp}
}

func NewTuple(elems []Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{kind: KindTuple, elems: cp}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) Int() *big.Int {
	if v.kind != KindField && v.kind != KindBool {
		panic("field: Int() called on non-scalar value")
	}
	return new(big.Int).Set(v.field)
}

// Bool reports whether v is truthy: Circom conventionally uses the same 0/1
// representation for booleans and field elements (a bit-decomposition
// constraint is itself an arithmetic equation), so this accepts both KindBool
// and KindField values and treats non-zero as true.
func (v Value) Bool() bool {
	if v.kind != KindBool && v.kind != KindField {
		panic("field: Bool() called on a composite value")
	}
	return v.field.Sign() != 0
}

func (v Value) Elems() []Value {
	if v.kind != KindArray && v.kind != KindTuple {
		panic("field: Elems() called on non-composite value")
	}
	out := make([]Value, len(v.elems))
	copy(out, v.elems)
	return out
}

func (v Value) Len() int {
	if v.kind != KindArray && v.kind != KindTuple {
		return 0
	}
	return len(v.elems)
}

// Equal compares two values for structural and field equality under c.
func (v Value) Equal(c *Context, other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindField, KindBool:
		return c.Eq(v.field, other.field)
	case KindArray, KindTuple:
		if len(v.elems) != len(other.elems) {
			return false
		}
		for i := range v.elems {
			if !v.elems[i].Equal(c, other.elems[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders a value as a decimal string for scalars, and a bracketed
// list for composites - the same representation used by the counterexample
// artefact for scalar signals.
func (v Value) String() string {
	switch v.kind {
	case KindField:
		return v.field.String()
	case KindBool:
		if v.field.Sign() != 0 {
			return "true"
		}
		return "false"
	case KindArray, KindTuple:
		s := "["
		for i, e := range v.elems {
			if i > 0 {
				s += ", "
			}
			s += e.String()
		}
		return s + "]"
	default:
		return "<invalid>"
	}
}

// DecimalString returns the decimal-string encoding used by the
// counterexample artefact for a scalar (field or bool) value.
func (v Value) DecimalString(c *Context) string {
	if v.kind != KindField && v.kind != KindBool {
		panic(fmt.Sprintf("field: DecimalString called on %s value", v.kind))
	}
	return c.Reduce(v.field).String()
}
