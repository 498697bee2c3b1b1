package symb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellconstrained/internal/field"
)

func c() *field.Context { return field.DefaultContext() }

func name(n string) Expr { return &NameExpr{Name: n} }
func cst(i int64) Expr   { return &ConstantExpr{Value: field.NewFieldInt64(i)} }

func TestNormaliseIdempotent(t *testing.T) {
	fc := c()
	e := &BinaryExpr{Op: Add, L: &BinaryExpr{Op: Add, L: cst(0), R: name("x")}, R: cst(3)}
	once := Normalise(e, fc)
	twice := Normalise(once, fc)
	assert.Equal(t, once.String(), twice.String())
}

func TestNormaliseIdentityElimination(t *testing.T) {
	fc := c()
	// x + 0 -> x
	e := &BinaryExpr{Op: Add, L: name("x"), R: cst(0)}
	assert.Equal(t, "x", Normalise(e, fc).String())

	// x * 1 -> x
	e2 := &BinaryExpr{Op: Mul, L: name("x"), R: cst(1)}
	assert.Equal(t, "x", Normalise(e2, fc).String())

	// x * 0 -> 0
	e3 := &BinaryExpr{Op: Mul, L: name("x"), R: cst(0)}
	assert.Equal(t, "0", Normalise(e3, fc).String())
}

func TestNormaliseDoubleNegation(t *testing.T) {
	fc := c()
	e := &UnaryExpr{Op: Neg, Arg: &UnaryExpr{Op: Neg, Arg: name("x")}}
	assert.Equal(t, "x", Normalise(e, fc).String())
}

func TestNormaliseConstantFolding(t *testing.T) {
	fc := c()
	e := &BinaryExpr{Op: Add, L: cst(2), R: cst(3)}
	assert.Equal(t, "5", Normalise(e, fc).String())
}

func TestNormaliseCommutativeOrdering(t *testing.T) {
	fc := c()
	e1 := &BinaryExpr{Op: Add, L: name("b"), R: name("a")}
	e2 := &BinaryExpr{Op: Add, L: name("a"), R: name("b")}
	assert.Equal(t, Normalise(e1, fc).String(), Normalise(e2, fc).String())
}

func TestEvaluateMatchesNormalisedEvaluate(t *testing.T) {
	fc := c()
	env := map[string]field.Value{"x": field.NewFieldInt64(7)}
	e := &BinaryExpr{Op: Add, L: &BinaryExpr{Op: Mul, L: name("x"), R: cst(1)}, R: cst(0)}

	v1, err1 := Evaluate(e, env, fc)
	require.NoError(t, err1)
	v2, err2 := Evaluate(Normalise(e, fc), env, fc)
	require.NoError(t, err2)
	assert.True(t, v1.Equal(fc, v2))
}

func TestEvaluateResidualOnMissingName(t *testing.T) {
	fc := c()
	e := &BinaryExpr{Op: Add, L: name("x"), R: cst(1)}
	_, err := Evaluate(e, map[string]field.Value{}, fc)
	require.Error(t, err)
	res, ok := err.(*Residual)
	require.True(t, ok)
	assert.Contains(t, res.Expr.String(), "x")
}

func TestEvaluateDivByZero(t *testing.T) {
	fc := c()
	e := &BinaryExpr{Op: Div, L: cst(1), R: cst(0)}
	_, err := Evaluate(e, nil, fc)
	require.Error(t, err)
	re, ok := err.(*ReplayError)
	require.True(t, ok)
	assert.Equal(t, "div-by-zero", re.Kind)
}

func TestFreeNames(t *testing.T) {
	e := &BinaryExpr{Op: Add, L: name("main.a"), R: &IndexExpr{Array: name("main.b"), Indices: []Expr{name("main.i")}}}
	names := FreeNames(e)
	assert.Equal(t, []string{"main.a", "main.b", "main.i"}, names)
}

func TestSubstitute(t *testing.T) {
	e := &BinaryExpr{Op: Add, L: name("x"), R: cst(1)}
	out := Substitute(e, map[string]Expr{"x": cst(41)})
	fc := c()
	v, err := Evaluate(out, nil, fc)
	require.NoError(t, err)
	assert.Equal(t, "42", v.String())
}

func TestSelectCompileTimeCollapses(t *testing.T) {
	fc := c()
	e := &SelectExpr{Cond: cst(1), Then: name("x"), Else: name("y")}
	// cst(1) as a field value is truthy-nonzero, Bool() reads nonzero as true
	out := Normalise(e, fc)
	assert.Equal(t, "x", out.String())
}
