package fixture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellconstrained/internal/circuit"
)

const isZeroSource = `
template IsZero() {
    signal input in;
    signal output out;
    var inv;

    inv <-- in != 0 ? 1 / in : 0;
    out <== -in * inv + 1;
    in * out === 0;
}

component main = IsZero();
`

const sumSource = `
template Sum(n) {
    signal input in[n];
    signal output out;
    var acc;
    var i;
    acc <-- 0;
    i <-- 0;
    for (i <-- 0; i < n; i <-- i + 1) {
        acc <-- acc + in[i];
    }
    out <== acc;
}
component main = Sum(4);
`

func TestParseTemplateSignalsAndBody(t *testing.T) {
	prog, err := Parse("isZero.circom", isZeroSource)
	require.NoError(t, err)
	require.Contains(t, prog.Templates, "IsZero")

	tmpl := prog.Templates["IsZero"]
	require.Len(t, tmpl.Signals, 2)
	assert.Equal(t, "in", tmpl.Signals[0].Name)
	assert.Equal(t, circuit.Input, tmpl.Signals[0].Kind)
	assert.Equal(t, "out", tmpl.Signals[1].Name)
	assert.Equal(t, circuit.Output, tmpl.Signals[1].Kind)
	require.Len(t, tmpl.Locals, 1)
	assert.Equal(t, "inv", tmpl.Locals[0].Name)

	require.Len(t, tmpl.Body, 3)
	assign1, ok := tmpl.Body[0].(*circuit.AssignStmt)
	require.True(t, ok)
	assert.Equal(t, "inv", assign1.Target)
	assert.False(t, assign1.Constrained)

	assign2, ok := tmpl.Body[1].(*circuit.AssignStmt)
	require.True(t, ok)
	assert.Equal(t, "out", assign2.Target)
	assert.True(t, assign2.Constrained)

	_, ok = tmpl.Body[2].(*circuit.ConstraintStmt)
	require.True(t, ok)

	assert.Equal(t, "IsZero", prog.Main.Template)
}

func TestParseComponentConnectAndControlFlow(t *testing.T) {
	src := `
template Outer() {
    signal input a;
    signal output b;
    component inner = Inner(3);
    inner.in <== a;
    if (a == 0) {
        b <== 1;
    } else {
        b <== 0;
    }
}
component main = Outer();
`
	prog, err := Parse("outer.circom", src)
	require.NoError(t, err)
	tmpl := prog.Templates["Outer"]
	require.Len(t, tmpl.Body, 3)

	comp, ok := tmpl.Body[0].(*circuit.ComponentDecl)
	require.True(t, ok)
	assert.Equal(t, "inner", comp.Name)
	assert.Equal(t, "Inner", comp.Template)
	require.Len(t, comp.Args, 1)

	conn, ok := tmpl.Body[1].(*circuit.ConnectStmt)
	require.True(t, ok)
	assert.Equal(t, "inner", conn.Component)
	assert.Equal(t, "in", conn.Signal)
	assert.True(t, conn.Constrained)

	ifStmt, ok := tmpl.Body[2].(*circuit.IfStmt)
	require.True(t, ok)
	require.Len(t, ifStmt.Then, 1)
	require.Len(t, ifStmt.Else, 1)
}

func TestParseForLoopAndArrayIndex(t *testing.T) {
	prog, err := Parse("sum.circom", sumSource)
	require.NoError(t, err)
	tmpl := prog.Templates["Sum"]
	require.Len(t, tmpl.Signals, 2)
	require.Len(t, tmpl.Signals[0].Dims, 1)

	forStmt, ok := tmpl.Body[2].(*circuit.ForStmt)
	require.True(t, ok)
	require.Len(t, forStmt.Body, 1)
	assign, ok := forStmt.Body[0].(*circuit.AssignStmt)
	require.True(t, ok)
	assert.Equal(t, "acc", assign.Target)
}

func TestParseSyntaxErrorReported(t *testing.T) {
	_, err := Parse("bad.circom", "template X( { }")
	require.Error(t, err)
}
