// Package artifact writes the §6 counterexample JSON artefact: everything
// a reviewer needs to reproduce and inspect one found violation without
// re-running the search. Grounded on the teacher's AST pretty-printing
// convention (internal/ast.Node.String()), generalised from source-text
// output to a structured JSON document.
package artifact

import (
	"encoding/json"
	"os"
	"time"

	"github.com/segmentio/ksuid"

	"wellconstrained/internal/fitness"
	"wellconstrained/internal/search"
)

// Flag is the §6 "flag" object: the classification plus the output the
// counterexample expected instead of what the trial program actually
// produced.
type Flag struct {
	Type           string      `json:"type"`
	ExpectedOutput *NamedValue `json:"expected_output,omitempty"`
	FailureReason  string      `json:"failure_reason,omitempty"`
}

// NamedValue is one signal name paired with its decimal-string field value.
type NamedValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Auxiliary is §6's "auxiliary" object: the configuration and random-seed
// bookkeeping needed to reproduce the run that found this counterexample.
type Auxiliary struct {
	Config ConfigSummary `json:"config"`
	Log    LogSummary    `json:"log"`
}

// ConfigSummary is a minimal, JSON-stable summary of the run's tunables -
// deliberately not the full config.MutationConfig struct, so a future field
// added to the configuration loader does not silently change this
// artefact's schema.
type ConfigSummary struct {
	SearchMode        string `json:"search_mode"`
	ProgramPopulation int    `json:"program_population"`
	InputPopulation   int    `json:"input_population"`
	Generations       int    `json:"generations"`
}

// LogSummary records the generation the counterexample was found at and
// the seed the run's RNG was initialised with, the two facts needed to
// deterministically reproduce it (§5's determinism-given-a-seed property).
type LogSummary struct {
	Generation int    `json:"generation"`
	RandomSeed uint64 `json:"random_seed"`
}

// Counterexample is the top-level §6 artefact document. TargetOutput is the
// trial program's decimal-string output value (a bare string per the
// schema), present only when the trial replay actually produced one.
type Counterexample struct {
	ID              string            `json:"id"`
	TargetPath      string            `json:"target_path"`
	MainTemplate    string            `json:"main_template"`
	SearchMode      string            `json:"search_mode"`
	ExecutionTimeMS int64             `json:"execution_time_ms"`
	Flag            Flag              `json:"flag"`
	TargetOutput    string            `json:"target_output,omitempty"`
	Assignment      map[string]string `json:"assignment"`
	Auxiliary       Auxiliary         `json:"auxiliary"`
}

// flagType maps a fitness.Classification to §6's artefact-level type tag.
func flagType(c fitness.Classification) string {
	switch c {
	case fitness.UnderConstrainedUnexpectedInput:
		return "under_constrained_unexpected_input"
	case fitness.UnderConstrainedNonDeterministic:
		return "under_constrained_non_deterministic"
	case fitness.OverConstrained:
		return "over_constrained"
	default:
		return "no_violation"
	}
}

// BuildParams bundles everything Build needs beyond the counterexample
// itself: facts about the run that the search driver doesn't carry on
// search.Counterexample because they're properties of the whole run, not of
// one (program, input) pair.
type BuildParams struct {
	TargetPath        string
	MainTemplate      string
	SearchMode        string
	ExecutionTime     time.Duration
	ProgramPopulation int
	InputPopulation   int
	Generations       int
	RandomSeed        uint64
}

// Build translates a search.Counterexample plus run-level parameters into
// the §6 artefact document.
func Build(cx *search.Counterexample, p BuildParams) Counterexample {
	assignment := make(map[string]string, len(cx.Inputs))
	for name, v := range cx.Inputs {
		assignment[name] = v.Int().String()
	}

	flag := Flag{Type: flagType(cx.Classification)}
	if cx.ExpectedOutputName != "" {
		flag.ExpectedOutput = &NamedValue{Name: cx.ExpectedOutputName, Value: cx.ExpectedOutputValue.Int().String()}
	}
	if cx.FailureKind != "" {
		flag.FailureReason = cx.FailureKind
	}

	var targetOutput string
	if cx.HasTargetOutput {
		targetOutput = cx.TargetOutputValue.Int().String()
	}

	return Counterexample{
		ID:              ksuid.New().String(),
		TargetPath:      p.TargetPath,
		MainTemplate:    p.MainTemplate,
		SearchMode:      p.SearchMode,
		ExecutionTimeMS: p.ExecutionTime.Milliseconds(),
		Flag:            flag,
		TargetOutput:    targetOutput,
		Assignment:      assignment,
		Auxiliary: Auxiliary{
			Config: ConfigSummary{
				SearchMode:        p.SearchMode,
				ProgramPopulation: p.ProgramPopulation,
				InputPopulation:   p.InputPopulation,
				Generations:       p.Generations,
			},
			Log: LogSummary{
				Generation: cx.Generation,
				RandomSeed: p.RandomSeed,
			},
		},
	}
}

// WriteFile marshals cx as indented JSON and writes it to path.
func WriteFile(path string, cx Counterexample) error {
	buf, err := json.MarshalIndent(cx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}
