package search

import (
	"context"
	"math/big"
	"math/rand"
	"testing"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellconstrained/internal/exec"
	"wellconstrained/internal/field"
	"wellconstrained/internal/fitness"
	"wellconstrained/internal/fixture"
	"wellconstrained/internal/input"
	"wellconstrained/internal/mutate"
)

func TestLatchPublishesOnceAndKeepsFirstWinner(t *testing.T) {
	var l Latch
	first := Counterexample{Classification: fitness.OverConstrained, Generation: 1, ProgramID: "p1"}
	second := Counterexample{Classification: fitness.OverConstrained, Generation: 2, ProgramID: "p2"}

	assert.True(t, l.TryPublish(first))
	assert.True(t, l.Done())
	assert.False(t, l.TryPublish(second))

	got := l.Result()
	require.NotNil(t, got)
	assert.Equal(t, "p1", got.ProgramID)
}

func TestLatchCancelBlocksFurtherPublish(t *testing.T) {
	var l Latch
	l.Cancel()
	assert.True(t, l.Done())
	assert.False(t, l.TryPublish(Counterexample{ProgramID: "late"}))
	assert.Nil(t, l.Result())
}

const isZeroVulnerableSource = `
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

func TestInitialProgramPopulationKeepsBaselineAndSize(t *testing.T) {
	fc := field.DefaultContext()
	prog, err := fixture.Parse("t.circom", isZeroVulnerableSource)
	require.NoError(t, err)
	e := exec.NewEngine(prog, fc)
	tr, err := e.Run()
	require.NoError(t, err)

	rnd := rand.New(rand.NewSource(1))
	ranges := []mutate.ValueRange{{Lo: big.NewInt(0), Hi: big.NewInt(4), Weight: 1}}
	weights := mutate.Weights{ConstantPerturbation: 1}

	pop := InitialProgramPopulation(prog, tr, "IsZero", 6, weights, ranges, mutate.MaxEdits, fc, nil, rnd)
	require.Len(t, pop, 6)
	assert.True(t, pop[0].IsBaseline)
	for _, ind := range pop {
		assert.LessOrEqual(t, len(ind.Edits.Edits), mutate.MaxEdits)
	}
}

func TestNextProgramPopulationPreservesSizeAndElite(t *testing.T) {
	fc := field.DefaultContext()
	prog, err := fixture.Parse("t.circom", isZeroVulnerableSource)
	require.NoError(t, err)
	e := exec.NewEngine(prog, fc)
	tr, err := e.Run()
	require.NoError(t, err)

	rnd := rand.New(rand.NewSource(2))
	ranges := []mutate.ValueRange{{Lo: big.NewInt(0), Hi: big.NewInt(4), Weight: 1}}
	weights := mutate.Weights{ConstantPerturbation: 1}

	ranked := InitialProgramPopulation(prog, tr, "IsZero", 8, weights, ranges, mutate.MaxEdits, fc, nil, rnd)
	for i := range ranked {
		ranked[i].Score = big.NewInt(int64(len(ranked) - i))
	}

	next := NextProgramPopulation(prog, tr, "IsZero", ranked, 1, 2, 2, weights, ranges, mutate.MaxEdits, fc, nil, rnd)
	require.Len(t, next, len(ranked))
	assert.True(t, next[0].IsBaseline)
}

// TestDriverFindsViolationWithinGenerationBudget runs the full driver on the
// IsZero circuit with constant-perturbation and operator-substitution
// mutants, and checks that it stops for a documented reason within its
// generation budget; any counterexample it reports must carry a real
// violation class.
func TestDriverFindsViolationWithinGenerationBudget(t *testing.T) {
	prog, err := fixture.Parse("t.circom", isZeroVulnerableSource)
	require.NoError(t, err)
	fc := field.DefaultContext()

	ranges := []input.Range{{Lo: big.NewInt(0), Hi: big.NewInt(8), Weight: 1}}

	d := NewDriver(Params{
		Baseline:          prog,
		Field:             fc,
		ProgramPopulation: 10,
		InputPopulation:   10,
		Generations:       15,
		InputUpdateEvery:  1,
		EliteCount:        1,
		TopK:              3,
		BottomK:           3,
		MaxEdits:          mutate.MaxEdits,
		Weights:           mutate.Weights{ConstantPerturbation: 0.5, OperatorSubstitution: 0.5},
		Ranges:            []mutate.ValueRange{{Lo: big.NewInt(0), Hi: big.NewInt(8), Weight: 1}},
		InputRanges:       ranges,
		MultiPointRate:    0.2,
		Rand:              rand.New(rand.NewSource(42)),
		Timeout:           5 * time.Second,
	})

	result := d.Run(context.Background())
	// A bounded population/generation search is not guaranteed to find a
	// violation every run; what must always hold is that the driver stops
	// for one of its three documented reasons and never exceeds the
	// configured generation budget.
	assert.Contains(t, []string{"counterexample", "generations-exhausted", "timeout", "cancelled"}, result.StoppedReason)
	assert.LessOrEqual(t, result.Generations, 15)
	if result.StoppedReason == "counterexample" {
		require.NotNil(t, result.Counterexample)
		assert.NotEqual(t, fitness.NoViolation, result.Counterexample.Classification)
	}
}

func TestSortInputsByScoreOrdersDescendingWithNilLast(t *testing.T) {
	idA, idB := ksuid.New(), ksuid.New()
	tieLo, tieHi := idA, idB
	if tieHi.String() < tieLo.String() {
		tieLo, tieHi = tieHi, tieLo
	}
	ranked := []input.Individual{
		{ID: ksuid.New(), Score: big.NewInt(3)},
		{ID: ksuid.New(), Score: nil},
		{ID: tieHi, Score: big.NewInt(9)},
		{ID: tieLo, Score: big.NewInt(9)},
	}
	sortInputsByScore(ranked)

	require.Len(t, ranked, 4)
	assert.Equal(t, int64(9), ranked[0].Score.Int64())
	assert.Equal(t, int64(9), ranked[1].Score.Int64())
	assert.Equal(t, tieLo, ranked[0].ID, "equal scores break ties by ascending id")
	assert.Equal(t, int64(3), ranked[2].Score.Int64())
	assert.Nil(t, ranked[3].Score, "an individual never scored sorts last")
}

func TestDriverRespectsContextCancellation(t *testing.T) {
	prog, err := fixture.Parse("t.circom", isZeroVulnerableSource)
	require.NoError(t, err)
	fc := field.DefaultContext()

	d := NewDriver(Params{
		Baseline:          prog,
		Field:             fc,
		ProgramPopulation: 4,
		InputPopulation:   4,
		Generations:       1000,
		InputUpdateEvery:  1,
		EliteCount:        1,
		TopK:              1,
		BottomK:           1,
		MaxEdits:          mutate.MaxEdits,
		Weights:           mutate.Weights{ConstantPerturbation: 1},
		Ranges:            []mutate.ValueRange{{Lo: big.NewInt(0), Hi: big.NewInt(4), Weight: 1}},
		InputRanges:       []input.Range{{Lo: big.NewInt(0), Hi: big.NewInt(4), Weight: 1}},
		Rand:              rand.New(rand.NewSource(7)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := d.Run(ctx)
	assert.Equal(t, "cancelled", result.StoppedReason)
	assert.Equal(t, 0, result.Generations)
}
