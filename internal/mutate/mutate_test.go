package mutate

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellconstrained/internal/circuit"
	"wellconstrained/internal/eval"
	"wellconstrained/internal/exec"
	"wellconstrained/internal/field"
	"wellconstrained/internal/fixture"
	"wellconstrained/internal/symb"
)

func parseProgram(t *testing.T, source string) *circuit.Program {
	t.Helper()
	prog, err := fixture.Parse("t.circom", source)
	require.NoError(t, err)
	return prog
}

func witnessOf(t *testing.T, prog *circuit.Program, inputs map[string]field.Value) *eval.Witness {
	t.Helper()
	fc := field.DefaultContext()
	e := exec.NewEngine(prog, fc)
	tr, err := e.Run()
	require.NoError(t, err)
	w, err := eval.NewEvaluator(fc).Evaluate(tr, inputs)
	require.NoError(t, err)
	return w
}

const squareSource = `
template Square() {
    signal input in;
    signal output out;
    out <== in * in + 1;
}
component main = Square();
`

func TestConstantPerturbationChangesResult(t *testing.T) {
	baseline := parseProgram(t, squareSource)
	el, err := NewEditList([]Edit{
		&ConstantPerturbation{Template: "Square", Site: 0, NewValue: field.NewFieldInt64(99)},
	})
	require.NoError(t, err)

	mutant, err := Mutate(baseline, el)
	require.NoError(t, err)

	inputs := map[string]field.Value{"main.in": field.NewFieldInt64(3)}
	baseW := witnessOf(t, baseline, inputs)
	mutW := witnessOf(t, mutant, inputs)
	assert.Equal(t, "10", baseW.Outputs["main.out"].String())
	assert.Equal(t, "108", mutW.Outputs["main.out"].String())
}

func TestConstantPerturbationSiteOutOfRange(t *testing.T) {
	baseline := parseProgram(t, squareSource)
	el, err := NewEditList([]Edit{
		&ConstantPerturbation{Template: "Square", Site: 5, NewValue: field.NewFieldInt64(1)},
	})
	require.NoError(t, err)
	_, err = Mutate(baseline, el)
	assert.Error(t, err)
}

func TestOperatorSubstitutionSwapsAddForSub(t *testing.T) {
	baseline := parseProgram(t, squareSource)
	el, err := NewEditList([]Edit{
		&OperatorSubstitution{Template: "Square", Site: 0},
	})
	require.NoError(t, err)
	mutant, err := Mutate(baseline, el)
	require.NoError(t, err)

	inputs := map[string]field.Value{"main.in": field.NewFieldInt64(3)}
	mutW := witnessOf(t, mutant, inputs)
	assert.Equal(t, "8", mutW.Outputs["main.out"].String())
}

const pairSource = `
template Pair() {
    signal input a;
    signal input b;
    signal output out;
    var tmp;
    tmp <-- a + b;
    out <== tmp;
}
component main = Pair();
`

func TestStatementDeletionRejectsAssignmentStillRead(t *testing.T) {
	baseline := parseProgram(t, pairSource)
	tmpl := baseline.Templates["Pair"]
	require.Len(t, tmpl.Body, 2) // tmp <-- a+b; out <== tmp; (var tmp is a Local)

	el, err := NewEditList([]Edit{
		&StatementDeletion{Template: "Pair", Site: 0},
	})
	require.NoError(t, err)
	_, err = Mutate(baseline, el)
	require.Error(t, err, "tmp is read by the out<==tmp statement; deleting it must be rejected")
}

func TestStatementDeletionRejectsOutputAssignment(t *testing.T) {
	baseline := parseProgram(t, squareSource)
	el, err := NewEditList([]Edit{
		&StatementDeletion{Template: "Square", Site: 0},
	})
	require.NoError(t, err)
	_, err = Mutate(baseline, el)
	assert.Error(t, err)
}

func TestStatementDeletionRemovesUnusedLocal(t *testing.T) {
	baseline := parseProgram(t, `
template Loose() {
    signal input in;
    signal output out;
    var unused;
    unused <-- in * 2;
    out <== in + 1;
}
component main = Loose();
`)
	el, err := NewEditList([]Edit{
		&StatementDeletion{Template: "Loose", Site: 0},
	})
	require.NoError(t, err)
	mutant, err := Mutate(baseline, el)
	require.NoError(t, err)

	tmpl := mutant.Templates["Loose"]
	for _, s := range tmpl.Body {
		if as, ok := s.(*circuit.AssignStmt); ok {
			assert.NotEqual(t, "unused", as.Target)
		}
	}
}

func TestStatementInsertionRejectsUndeclaredName(t *testing.T) {
	baseline := parseProgram(t, squareSource)
	el, err := NewEditList([]Edit{
		&StatementInsertion{
			Template: "Square",
			NewVar:   "extra",
			RHS:      &symb.NameExpr{Name: "main.ghost"},
		},
	})
	require.NoError(t, err)
	_, err = Mutate(baseline, el)
	assert.Error(t, err)
}

func TestStatementInsertionAddsLocal(t *testing.T) {
	baseline := parseProgram(t, squareSource)
	tmpl := baseline.Templates["Square"]
	require.Len(t, tmpl.Locals, 0)

	el, err := NewEditList([]Edit{
		&StatementInsertion{
			Template: "Square",
			NewVar:   "extra",
			RHS:      &symb.NameExpr{Name: "in"},
		},
	})
	require.NoError(t, err)
	mutant, err := Mutate(baseline, el)
	require.NoError(t, err)
	assert.Len(t, mutant.Templates["Square"].Locals, 1)
	assert.Equal(t, "extra", mutant.Templates["Square"].Locals[0].Name)
}

func TestNewEditListRejectsOverK(t *testing.T) {
	edits := make([]Edit, MaxEdits+1)
	for i := range edits {
		edits[i] = &ConstantPerturbation{Template: "Square", Site: 0, NewValue: field.NewFieldInt64(1)}
	}
	_, err := NewEditList(edits)
	assert.Error(t, err)
}

func TestRandomEditListRespectsCap(t *testing.T) {
	baseline := parseProgram(t, pairSource)
	rnd := rand.New(rand.NewSource(1))
	w := Weights{ConstantPerturbation: 1, OperatorSubstitution: 1, StatementDeletion: 1, StatementInsertion: 1}
	ranges := []ValueRange{{Lo: big.NewInt(0), Hi: big.NewInt(10), Weight: 1}}

	el, err := RandomEditList(baseline, "Pair", w, MaxEdits+5, ranges, rnd)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(el.Edits), MaxEdits)

	// Every drawn edit must apply cleanly to a fresh clone of the baseline.
	_, err = Mutate(baseline, el)
	assert.NoError(t, err)
}

func TestMutateNeverTouchesBaseline(t *testing.T) {
	baseline := parseProgram(t, squareSource)
	el, err := NewEditList([]Edit{
		&ConstantPerturbation{Template: "Square", Site: 0, NewValue: field.NewFieldInt64(99)},
	})
	require.NoError(t, err)
	_, err = Mutate(baseline, el)
	require.NoError(t, err)

	inputs := map[string]field.Value{"main.in": field.NewFieldInt64(3)}
	w := witnessOf(t, baseline, inputs)
	assert.Equal(t, "10", w.Outputs["main.out"].String(), "baseline must be unaffected by a mutant's edits")
}
