package input

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellconstrained/internal/exec"
	"wellconstrained/internal/field"
	"wellconstrained/internal/fixture"
)

func traceOf(t *testing.T, source string) *exec.Trace {
	t.Helper()
	prog, err := fixture.Parse("t.circom", source)
	require.NoError(t, err)
	e := exec.NewEngine(prog, field.DefaultContext())
	tr, err := e.Run()
	require.NoError(t, err)
	return tr
}

func TestZeroDivisionSeedLinearDenominator(t *testing.T) {
	tr := traceOf(t, `
template Shifted() {
    signal input in;
    signal output out;
    out <== 1 / (in - 5);
}
component main = Shifted();
`)
	name, value, ok := ZeroDivisionSeed(tr, "main", []string{"in"}, field.DefaultContext())
	require.True(t, ok)
	assert.Equal(t, "in", name)
	assert.Equal(t, "5", value.Int().String())
}

func TestZeroDivisionSeedQuadraticDenominator(t *testing.T) {
	tr := traceOf(t, `
template Quad() {
    signal input in;
    signal output out;
    out <== 1 / (in * in - 4);
}
component main = Quad();
`)
	_, value, ok := ZeroDivisionSeed(tr, "main", []string{"in"}, field.DefaultContext())
	require.True(t, ok)
	// Either root (+2 or -2 mod P) is an acceptable zero of in*in-4.
	fc := field.DefaultContext()
	root := value.Int()
	check := fc.Sub(fc.Mul(root, root), big.NewInt(4))
	assert.Equal(t, "0", field.NewField(check).Int().String())
}

func TestZeroDivisionSeedNoDenominatorFound(t *testing.T) {
	tr := traceOf(t, `
template Plain() {
    signal input in;
    signal output out;
    out <== in + 1;
}
component main = Plain();
`)
	_, _, ok := ZeroDivisionSeed(tr, "main", []string{"in"}, field.DefaultContext())
	assert.False(t, ok)
}

func TestSeedPopulationOverlaysWithoutChangingSize(t *testing.T) {
	tr := traceOf(t, `
template Shifted() {
    signal input in;
    signal output out;
    out <== 1 / (in - 5);
}
component main = Shifted();
`)
	pop := []Individual{
		{Values: map[string]field.Value{"in": field.NewFieldInt64(1)}},
		{Values: map[string]field.Value{"in": field.NewFieldInt64(2)}},
	}
	seeded := SeedPopulation(pop, tr, "main", []string{"in"}, field.DefaultContext())
	require.Len(t, seeded, 2)
	for _, ind := range seeded {
		assert.Equal(t, "5", ind.Values["in"].Int().String())
	}
}
