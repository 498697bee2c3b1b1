// Package config loads the §6 mutation-configuration JSON (YAML accepted)
// into the typed shapes internal/mutate, internal/input, and internal/search
// consume. Grounded on the teacher's flat-struct-with-documented-defaults
// style in internal/ir/types.go: every field is optional and carries a
// sensible zero-cost default, so a caller can load a partial file (or none
// at all) and still get a runnable configuration.
package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/iancoleman/strcase"
	"gopkg.in/yaml.v3"

	"wellconstrained/internal/errors"
	"wellconstrained/internal/input"
	"wellconstrained/internal/mutate"
)

// RangeConfig is one weighted sampling bucket as it appears in the JSON
// configuration: decimal-string bounds (field elements routinely exceed
// int64) plus a probability weight.
type RangeConfig struct {
	Lo     string  `json:"lo"`
	Hi     string  `json:"hi"`
	Weight float64 `json:"weight"`
}

// EditWeights mirrors mutate.Weights, the §4.6 per-edit-kind probability
// weights.
type EditWeights struct {
	ConstantPerturbation float64 `json:"constant_perturbation"`
	OperatorSubstitution float64 `json:"operator_substitution"`
	StatementDeletion    float64 `json:"statement_deletion"`
	StatementInsertion   float64 `json:"statement_insertion"`
}

// MutationConfig is the full §6 "mutation configuration JSON": every key is
// optional, defaults filled in by Defaults() below.
type MutationConfig struct {
	// Population and generation sizes (§4.8).
	ProgramPopulation int `json:"program_population"`
	InputPopulation   int `json:"input_population"`
	Generations       int `json:"generations"`
	InputUpdateEvery  int `json:"input_update_every"` // R_update

	// Elitism / replacement split of the program population (§4.8 step 2).
	EliteCount int `json:"elite_count"`
	TopK       int `json:"top_k"`
	BottomK    int `json:"bottom_k"`

	// Mutator configuration (§4.6).
	MaxEdits    int         `json:"max_edits"`
	EditsPerGen int         `json:"edits_per_generation"`
	EditWeights EditWeights `json:"edit_weights"`

	// Shared weighted-range sampling (§4.6 constant perturbation, §4.7 input
	// sampling).
	ValueRanges []RangeConfig `json:"value_ranges"`

	// Input generator tuning (§4.7).
	BinaryWarmupFraction   float64 `json:"binary_warmup_fraction"`
	MultiPointMutationRate float64 `json:"multi_point_mutation_rate"`
	ZeroDivisionHeuristic  bool    `json:"zero_division_heuristic"`

	// Value of the CLI's --heuristics_range. It is loaded with the rest of
	// the configuration, but the search driver does not read it, so it does
	// not bound the binary-pattern warm-up.
	HeuristicsRange int `json:"heuristics_range"`

	// RandomSeed pins the run's RNG for §5's "deterministic execution given
	// a seed" testable property. Zero means "derive one from the clock",
	// left to the caller (config never reads the clock itself).
	RandomSeed uint64 `json:"random_seed"`
}

// Defaults returns the §4.6-§4.8 default mixes the specification lists.
func Defaults() MutationConfig {
	return MutationConfig{
		ProgramPopulation: 40,
		InputPopulation:   40,
		Generations:       300,
		InputUpdateEvery:  5,
		EliteCount:        1,
		TopK:              5,
		BottomK:           5,
		MaxEdits:          mutate.MaxEdits,
		EditsPerGen:       4,
		EditWeights: EditWeights{
			ConstantPerturbation: 0.35,
			OperatorSubstitution: 0.35,
			StatementDeletion:    0.15,
			StatementInsertion:   0.15,
		},
		ValueRanges: []RangeConfig{
			{Lo: "0", Hi: "16", Weight: 0.5},
			{Lo: "-16", Hi: "-1", Weight: 0.2},
			{Lo: "-1", Hi: "-1", Weight: 0.15}, // near P via field wraparound once parsed
			{Lo: "0", Hi: "0", Weight: 0.15},
		},
		BinaryWarmupFraction:   0.2,
		MultiPointMutationRate: 0.1,
		ZeroDivisionHeuristic:  true,
		HeuristicsRange:        8,
	}
}

// Load reads a mutation configuration file at path, accepting either JSON or
// YAML (sniffed by extension, falling back to JSON-first parsing for an
// unrecognised one), normalises key casing via strcase so "ProgramPopulation",
// "programPopulation", and "program_population" all resolve to the same field, and
// layers the result over Defaults(). An empty path returns Defaults().
func Load(path string) (MutationConfig, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.EngineError{
			Level:   errors.Error,
			Kind:    errors.ErrorMalformedConfig,
			Message: fmt.Sprintf("reading mutation configuration %q: %s", path, err),
		}
	}

	var generic map[string]interface{}
	if isYAML(path) {
		if err := yaml.Unmarshal(raw, &generic); err != nil {
			return cfg, malformedf(path, err)
		}
	} else if err := json.Unmarshal(raw, &generic); err != nil {
		// Fall back to YAML, a superset of JSON for scalar/object shapes;
		// a file with a .json extension that is genuinely malformed still
		// fails below with the original JSON error.
		if yerr := yaml.Unmarshal(raw, &generic); yerr != nil {
			return cfg, malformedf(path, err)
		}
	}

	normalised := normaliseKeys(generic)
	buf, err := json.Marshal(normalised)
	if err != nil {
		return cfg, malformedf(path, err)
	}
	if err := json.Unmarshal(buf, &cfg); err != nil {
		return cfg, malformedf(path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func malformedf(path string, cause error) error {
	return errors.EngineError{
		Level:   errors.Error,
		Kind:    errors.ErrorMalformedConfig,
		Message: fmt.Sprintf("parsing mutation configuration %q: %s", path, cause),
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// normaliseKeys recursively rewrites every object key to snake_case so the
// configuration file's casing convention need not match Go's exactly - a
// direct use of the teacher's iancoleman/strcase-adjacent idiom for
// generating identifier forms, turned from "produce a name" into
// "canonicalise a name".
func normaliseKeys(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			out[strcase.ToSnake(k)] = normaliseKeys(child)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, child := range val {
			out[i] = normaliseKeys(child)
		}
		return out
	default:
		return v
	}
}

func (c *MutationConfig) validate() error {
	for i, r := range c.ValueRanges {
		if _, ok := new(big.Int).SetString(r.Lo, 10); !ok {
			return errors.EngineError{Level: errors.Error, Kind: errors.ErrorOutOfRangeNumber,
				Message: fmt.Sprintf("value_ranges[%d].lo %q is not a decimal integer", i, r.Lo)}
		}
		if _, ok := new(big.Int).SetString(r.Hi, 10); !ok {
			return errors.EngineError{Level: errors.Error, Kind: errors.ErrorOutOfRangeNumber,
				Message: fmt.Sprintf("value_ranges[%d].hi %q is not a decimal integer", i, r.Hi)}
		}
		if r.Weight < 0 {
			return errors.EngineError{Level: errors.Error, Kind: errors.ErrorOutOfRangeNumber,
				Message: fmt.Sprintf("value_ranges[%d].weight %f is negative", i, r.Weight)}
		}
	}
	if c.BinaryWarmupFraction < 0 || c.BinaryWarmupFraction > 1 {
		return errors.EngineError{Level: errors.Error, Kind: errors.ErrorOutOfRangeNumber,
			Message: fmt.Sprintf("binary_warmup_fraction %f out of [0,1]", c.BinaryWarmupFraction)}
	}
	return nil
}

// MutateWeights translates EditWeights to mutate.Weights.
func (c MutationConfig) MutateWeights() mutate.Weights {
	return mutate.Weights{
		ConstantPerturbation: c.EditWeights.ConstantPerturbation,
		OperatorSubstitution: c.EditWeights.OperatorSubstitution,
		StatementDeletion:    c.EditWeights.StatementDeletion,
		StatementInsertion:   c.EditWeights.StatementInsertion,
	}
}

// MutateRanges translates ValueRanges into mutate.ValueRange, resolving the
// decimal-string bounds into *big.Int. Already validated by Load.
func (c MutationConfig) MutateRanges() []mutate.ValueRange {
	out := make([]mutate.ValueRange, 0, len(c.ValueRanges))
	for _, r := range c.ValueRanges {
		lo, _ := new(big.Int).SetString(r.Lo, 10)
		hi, _ := new(big.Int).SetString(r.Hi, 10)
		out = append(out, mutate.ValueRange{Lo: lo, Hi: hi, Weight: r.Weight})
	}
	return out
}

// InputRanges translates ValueRanges into input.Range for the input
// generator/mutator.
func (c MutationConfig) InputRanges() []input.Range {
	out := make([]input.Range, 0, len(c.ValueRanges))
	for _, r := range c.ValueRanges {
		lo, _ := new(big.Int).SetString(r.Lo, 10)
		hi, _ := new(big.Int).SetString(r.Hi, 10)
		out = append(out, input.Range{Lo: lo, Hi: hi, Weight: r.Weight})
	}
	return out
}

// LoadWhitelist reads the §6 --path_to_whitelist file: one template name per
// line, blank lines and lines starting with "#" ignored. An empty path
// returns an empty (never-skip) set.
func LoadWhitelist(path string) (map[string]bool, error) {
	out := map[string]bool{}
	if path == "" {
		return out, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.EngineError{
			Level:   errors.Error,
			Kind:    errors.ErrorMalformedConfig,
			Message: fmt.Sprintf("reading whitelist %q: %s", path, err),
		}
	}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out[line] = true
	}
	return out, nil
}
