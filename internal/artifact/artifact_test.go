package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellconstrained/internal/field"
	"wellconstrained/internal/fitness"
	"wellconstrained/internal/search"
)

func TestBuildOverConstrainedArtifact(t *testing.T) {
	cx := &search.Counterexample{
		Classification:      fitness.OverConstrained,
		Generation:          3,
		ProgramID:           "prog-1",
		InputID:             "input-1",
		Inputs:              map[string]field.Value{"in": field.NewFieldInt64(7)},
		ExpectedOutputName:  "main.out",
		ExpectedOutputValue: field.NewFieldInt64(1),
		TargetOutputValue:   field.NewFieldInt64(0),
		HasTargetOutput:     true,
	}

	doc := Build(cx, BuildParams{
		TargetPath:        "fixtures/iszero.circom",
		MainTemplate:      "IsZero",
		SearchMode:        "ga",
		ExecutionTime:     250 * time.Millisecond,
		ProgramPopulation: 40,
		InputPopulation:   40,
		Generations:       300,
		RandomSeed:        99,
	})

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "over_constrained", doc.Flag.Type)
	require.NotNil(t, doc.Flag.ExpectedOutput)
	assert.Equal(t, "main.out", doc.Flag.ExpectedOutput.Name)
	assert.Equal(t, "1", doc.Flag.ExpectedOutput.Value)
	assert.Equal(t, "0", doc.TargetOutput)
	assert.Equal(t, "7", doc.Assignment["in"])
	assert.Equal(t, int64(250), doc.ExecutionTimeMS)
	assert.Equal(t, 3, doc.Auxiliary.Log.Generation)
	assert.Equal(t, uint64(99), doc.Auxiliary.Log.RandomSeed)
}

func TestBuildOmitsTargetOutputWhenReplayFailed(t *testing.T) {
	cx := &search.Counterexample{
		Classification: fitness.UnderConstrainedUnexpectedInput,
		FailureKind:    "division by zero",
		Inputs:         map[string]field.Value{},
	}
	doc := Build(cx, BuildParams{SearchMode: "ga"})
	assert.Equal(t, "under_constrained_unexpected_input", doc.Flag.Type)
	assert.Equal(t, "division by zero", doc.Flag.FailureReason)
	assert.Equal(t, "", doc.TargetOutput)

	buf, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.NotContains(t, string(buf), `"target_output"`)
}

func TestTargetOutputIsABareStringNotAnObject(t *testing.T) {
	cx := &search.Counterexample{
		Classification:      fitness.UnderConstrainedNonDeterministic,
		ExpectedOutputName:  "main.out",
		ExpectedOutputValue: field.NewFieldInt64(1),
		TargetOutputValue:   field.NewFieldInt64(2),
		HasTargetOutput:     true,
		Inputs:              map[string]field.Value{},
	}
	doc := Build(cx, BuildParams{})

	buf, err := json.Marshal(doc)
	require.NoError(t, err)

	var generic map[string]interface{}
	require.NoError(t, json.Unmarshal(buf, &generic))
	_, isString := generic["target_output"].(string)
	assert.True(t, isString, "target_output must serialise as a bare string, not an object")
}

func TestWriteFileRoundTrips(t *testing.T) {
	doc := Build(&search.Counterexample{
		Classification: fitness.OverConstrained,
		Inputs:         map[string]field.Value{"in": field.NewFieldInt64(3)},
	}, BuildParams{SearchMode: "ga"})

	path := filepath.Join(t.TempDir(), "counterexample.json")
	require.NoError(t, WriteFile(path, doc))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var roundTripped Counterexample
	require.NoError(t, json.Unmarshal(raw, &roundTripped))
	assert.Equal(t, doc.ID, roundTripped.ID)
	assert.Equal(t, doc.Assignment, roundTripped.Assignment)
}
