package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellconstrained/internal/mutate"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.validate())
	assert.Equal(t, mutate.MaxEdits, cfg.MaxEdits)
	assert.True(t, cfg.ZeroDivisionHeuristic)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadJSONOverridesAndNormalisesKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mutation.json")
	body := `{
		"ProgramPopulation": 7,
		"generations": 12,
		"zero-division-heuristic": false
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.ProgramPopulation)
	assert.Equal(t, 12, cfg.Generations)
	assert.False(t, cfg.ZeroDivisionHeuristic)
	// Untouched fields keep their default.
	assert.Equal(t, Defaults().InputPopulation, cfg.InputPopulation)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mutation.yaml")
	body := "program_population: 3\ntop_k: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.ProgramPopulation)
	assert.Equal(t, 2, cfg.TopK)
}

func TestLoadRejectsNonDecimalRangeBound(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mutation.json")
	body := `{"value_ranges": [{"lo": "not-a-number", "hi": "10", "weight": 1}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestMutateWeightsAndRangesTranslate(t *testing.T) {
	cfg := Defaults()
	w := cfg.MutateWeights()
	assert.Equal(t, cfg.EditWeights.ConstantPerturbation, w.ConstantPerturbation)

	ranges := cfg.MutateRanges()
	require.Len(t, ranges, len(cfg.ValueRanges))
	assert.Equal(t, "0", ranges[0].Lo.String())

	inputRanges := cfg.InputRanges()
	require.Len(t, inputRanges, len(cfg.ValueRanges))
	assert.Equal(t, "16", inputRanges[0].Hi.String())
}

func TestLoadWhitelistEmptyPath(t *testing.T) {
	set, err := LoadWhitelist("")
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestLoadWhitelistParsesNamesIgnoringCommentsAndBlanks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whitelist.txt")
	body := "Poseidon\n# a trusted hash\n\nMiMCSponge\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	set, err := LoadWhitelist(path)
	require.NoError(t, err)
	assert.True(t, set["Poseidon"])
	assert.True(t, set["MiMCSponge"])
	assert.Len(t, set, 2)
}

func TestLoadWhitelistMissingFile(t *testing.T) {
	_, err := LoadWhitelist(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
