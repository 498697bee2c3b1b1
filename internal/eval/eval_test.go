package eval

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wcerrors "wellconstrained/internal/errors"
	"wellconstrained/internal/exec"
	"wellconstrained/internal/field"
	"wellconstrained/internal/fixture"
)

func trace(t *testing.T, source string) *exec.Trace {
	t.Helper()
	prog, err := fixture.Parse("t.circom", source)
	require.NoError(t, err)
	e := exec.NewEngine(prog, field.DefaultContext())
	tr, err := e.Run()
	require.NoError(t, err)
	return tr
}

func TestEvaluateProducesWitnessForSquare(t *testing.T) {
	tr := trace(t, `
template Square() {
    signal input in;
    signal output out;
    out <== in * in;
}
component main = Square();
`)
	fc := field.DefaultContext()
	ev := NewEvaluator(fc)
	w, err := ev.Evaluate(tr, map[string]field.Value{"main.in": field.NewFieldInt64(5)})
	require.NoError(t, err)
	assert.Equal(t, "25", w.Outputs["main.out"].String())
}

func TestEvaluateIsZeroBothBranches(t *testing.T) {
	tr := trace(t, `
template IsZero() {
    signal input in;
    signal output out;
    var inv;
    inv <-- in != 0 ? 1 / in : 0;
    out <== -in * inv + 1;
}
component main = IsZero();
`)
	fc := field.DefaultContext()
	ev := NewEvaluator(fc)

	w, err := ev.Evaluate(tr, map[string]field.Value{"main.in": field.NewFieldInt64(0)})
	require.NoError(t, err)
	assert.Equal(t, "1", w.Outputs["main.out"].String())

	w, err = ev.Evaluate(tr, map[string]field.Value{"main.in": field.NewFieldInt64(3)})
	require.NoError(t, err)
	assert.Equal(t, "0", w.Outputs["main.out"].String())
}

func TestEvaluateInverseOfZero(t *testing.T) {
	tr := trace(t, `
template Inv() {
    signal input in;
    signal output out;
    out <-- 1 / in;
}
component main = Inv();
`)
	ev := NewEvaluator(field.DefaultContext())
	_, err := ev.Evaluate(tr, map[string]field.Value{"main.in": field.NewFieldInt64(0)})
	require.Error(t, err)
	ee, ok := err.(wcerrors.EngineError)
	require.True(t, ok, "expected an EngineError, got %T: %v", err, err)
	assert.Equal(t, wcerrors.ErrorInverseOfZero, ee.Kind)
}

func TestEvaluateDivByZero(t *testing.T) {
	tr := trace(t, `
template Div() {
    signal input a;
    signal input b;
    signal output out;
    out <-- a / b;
}
component main = Div();
`)
	ev := NewEvaluator(field.DefaultContext())
	_, err := ev.Evaluate(tr, map[string]field.Value{
		"main.a": field.NewFieldInt64(7),
		"main.b": field.NewFieldInt64(0),
	})
	require.Error(t, err)
	ee, ok := err.(wcerrors.EngineError)
	require.True(t, ok, "expected an EngineError, got %T: %v", err, err)
	assert.Equal(t, wcerrors.ErrorDivByZero, ee.Kind)
}

func TestEvaluateArrayOutOfBounds(t *testing.T) {
	tr := trace(t, `
template Pick() {
    signal input in[3];
    signal input idx;
    signal output out;
    out <== in[idx];
}
component main = Pick();
`)
	ev := NewEvaluator(field.DefaultContext())
	arr := field.NewArray([]field.Value{field.NewFieldInt64(10), field.NewFieldInt64(20), field.NewFieldInt64(30)})
	_, err := ev.Evaluate(tr, map[string]field.Value{
		"main.in":  arr,
		"main.idx": field.NewFieldInt64(5),
	})
	require.Error(t, err)
	ee, ok := err.(wcerrors.EngineError)
	require.True(t, ok, "expected an EngineError, got %T: %v", err, err)
	assert.Equal(t, wcerrors.ErrorDynamicOOB, ee.Kind)
}

func TestEvaluateDeterministic(t *testing.T) {
	tr := trace(t, `
template Square() {
    signal input in;
    signal output out;
    out <== in * in;
}
component main = Square();
`)
	ev := NewEvaluator(field.DefaultContext())
	inputs := map[string]field.Value{"main.in": field.NewField(big.NewInt(9))}
	w1, err := ev.Evaluate(tr, inputs)
	require.NoError(t, err)
	w2, err := ev.Evaluate(tr, inputs)
	require.NoError(t, err)
	assert.Equal(t, w1.Outputs["main.out"].String(), w2.Outputs["main.out"].String())
}
