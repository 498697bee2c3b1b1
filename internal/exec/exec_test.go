package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellconstrained/internal/circuit"
	"wellconstrained/internal/errors"
	"wellconstrained/internal/field"
	"wellconstrained/internal/fixture"
	"wellconstrained/internal/symb"
)

func run(t *testing.T, source string) *Trace {
	t.Helper()
	prog, err := fixture.Parse("t.circom", source)
	require.NoError(t, err)
	e := NewEngine(prog, field.DefaultContext())
	tr, err := e.Run()
	require.NoError(t, err)
	return tr
}

// run2 parses and executes source without asserting success, for tests that
// expect the engine to reject the program.
func run2(t *testing.T, source string) (*Trace, error) {
	t.Helper()
	prog, err := fixture.Parse("t.circom", source)
	require.NoError(t, err)
	e := NewEngine(prog, field.DefaultContext())
	return e.Run()
}

func TestStraightLineAssignAndConstraint(t *testing.T) {
	tr := run(t, `
template Square() {
    signal input in;
    signal output out;
    out <== in * in;
}
component main = Square();
`)
	require.Contains(t, tr.Outputs, "main.out")
	out := tr.Outputs["main.out"]
	assert.Contains(t, out.String(), "main.in")
	// out <== ... emits exactly one constraint (the assignment itself).
	assert.Len(t, tr.Constraints, 1)
}

func TestCompileTimeIfTakesOneBranch(t *testing.T) {
	tr := run(t, `
template Choose(flag) {
    signal output out;
    if (flag == 1) {
        out <== 11;
    } else {
        out <== 22;
    }
}
component main = Choose(1);
`)
	assert.Equal(t, "11", tr.Outputs["main.out"].String())
}

func TestSymbolicIfMergesAtJoin(t *testing.T) {
	tr := run(t, `
template Abs() {
    signal input in;
    signal output out;
    var v;
    if (in < 0) {
        v <-- -in;
    } else {
        v <-- in;
    }
    out <== v;
}
component main = Abs();
`)
	out := tr.Outputs["main.out"]
	sel, ok := out.(*symb.SelectExpr)
	require.True(t, ok, "expected a merged Select node, got %s", out)
	assert.Contains(t, sel.Cond.String(), "main.in")
}

func TestComponentWiringConnectsBeforeRead(t *testing.T) {
	tr := run(t, `
template Double() {
    signal input in;
    signal output out;
    out <== in * 2;
}
template Main() {
    signal input x;
    signal output y;
    component d = Double();
    d.in <== x;
    y <== d.out;
}
component main = Main();
`)
	y := tr.Outputs["main.y"]
	assert.Contains(t, y.String(), "main.x")

	var found bool
	for _, c := range tr.Constraints {
		if c.L.String() == "main.d.out" || c.R.String() == "main.d.out" {
			found = true
		}
	}
	assert.True(t, found, "expected a constraint recording the sub-component's output assignment")
}

func TestUnrolledForLoopSumsArray(t *testing.T) {
	tr := run(t, `
template SumThree() {
    signal input in[3];
    signal output out;
    var acc;
    var i;
    for (i <-- 0; i < 3; i <-- i + 1) {
        acc <-- acc + in[i];
    }
    out <== acc;
}
component main = SumThree();
`)
	out := tr.Outputs["main.out"]
	for _, want := range []string{"main.in[0]", "main.in[1]", "main.in[2]"} {
		assert.Contains(t, out.String(), want)
	}
}

func TestFunctionCallInlines(t *testing.T) {
	tr := run(t, `
function double(x) {
    return x + x;
}
template UsesFunc() {
    signal input in;
    signal output out;
    out <== double(in);
}
component main = UsesFunc();
`)
	out := tr.Outputs["main.out"]
	assert.Contains(t, out.String(), "main.in")
}

// TestSiblingWiringCycleIsDetected builds "c1.in <== c2.out; c2.in <==
// c1.out" directly on circuit.Builder: two components whose sole inputs
// depend on each other's output. Expanding c2
// first (forced by c1's connect reading c2.out before c2.in is ever
// connected) leaves c2.in an unconstrained placeholder; the later connect of
// c2.in to c1.out only closes the loop once c1 has itself expanded using that
// very placeholder, so the cycle shows up as c2's own qualified input name
// reappearing free in the value being connected to it.
func TestSiblingWiringCycleIsDetected(t *testing.T) {
	b := circuit.NewBuilder()
	b.Template("Leaf").
		Signal("in", circuit.Input).
		Signal("out", circuit.Output).
		Stmt(circuit.Assign("out", circuit.Name("in"), true))
	b.Template("Main").
		Stmt(circuit.Component("c1", "Leaf")).
		Stmt(circuit.Component("c2", "Leaf")).
		Stmt(circuit.Connect("c1", "in", circuit.Name("c2.out"), true)).
		Stmt(circuit.Connect("c2", "in", circuit.Name("c1.out"), true))
	b.Main("Main")
	prog := b.Build()

	e := NewEngine(prog, field.DefaultContext())
	_, err := e.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wiring cycle")
}

func TestConstantIndexOutOfBoundsIsRejected(t *testing.T) {
	_, err := run2(t, `
template Bad() {
    signal input in[3];
    signal output out;
    out <== in[5];
}
component main = Bad();
`)
	require.Error(t, err)
	var ee errors.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, errors.ErrorCompileTimeOOB, ee.Kind)
}

func TestDoubleAssignmentAlongUnconditionedPathIsRejected(t *testing.T) {
	_, err := run2(t, `
template Bad() {
    signal output out;
    out <== 1;
    out <== 2;
}
component main = Bad();
`)
	require.Error(t, err)
	var ee errors.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, errors.ErrorDoubleAssignment, ee.Kind)
}

func TestDivergentBranchAssignmentIsNotDoubleAssignment(t *testing.T) {
	tr := run(t, `
template Branchy() {
    signal input in;
    signal output out;
    if (in == 0) {
        out <== 1;
    } else {
        out <== 2;
    }
}
component main = Branchy();
`)
	require.Contains(t, tr.Outputs, "main.out")
}

func TestSymbolicLoopConditionIsNonDecidable(t *testing.T) {
	prog, err := fixture.Parse("t.circom", `
template Bad() {
    signal input in;
    signal output out;
    var i;
    var acc;
    for (i <-- 0; i < in; i <-- i + 1) {
        acc <-- acc + 1;
    }
    out <== acc;
}
component main = Bad();
`)
	require.NoError(t, err)
	e := NewEngine(prog, field.DefaultContext())
	_, err = e.Run()
	require.Error(t, err)
}
