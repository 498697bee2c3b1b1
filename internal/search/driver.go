package search

import (
	"context"
	"math/big"
	"math/rand"
	"sort"
	"time"

	"wellconstrained/internal/circuit"
	"wellconstrained/internal/eval"
	"wellconstrained/internal/exec"
	"wellconstrained/internal/field"
	"wellconstrained/internal/fitness"
	"wellconstrained/internal/input"
	"wellconstrained/internal/logging"
	"wellconstrained/internal/mutate"
)

// mainPrefix is the fully-qualified name internal/exec always gives the
// top-level component instance, matching §6's --symbolic_template_params
// flag's one entry point.
const mainPrefix = "main"

// Params bundles everything one Driver.Run needs: the parsed baseline
// program, its field context, and every tunable §6 exposes either through
// the mutation-configuration file or directly as a CLI flag.
type Params struct {
	Baseline *circuit.Program
	Field    *field.Context
	Logger   *logging.Logger

	ProgramPopulation int
	InputPopulation   int
	Generations       int
	InputUpdateEvery  int
	EliteCount        int
	TopK              int
	BottomK           int
	MaxEdits          int
	Weights           mutate.Weights
	Ranges            []mutate.ValueRange
	InputRanges       []input.Range
	BinaryWarmupFrac  float64
	MultiPointRate    float64
	ZeroDivision      bool

	// SkipTemplates names templates to exclude from symbolic expansion
	// (§6 --path_to_whitelist), forwarded to every internal/exec.Engine
	// this driver constructs, baseline and mutant alike.
	SkipTemplates map[string]bool

	Rand *rand.Rand

	// Timeout bounds wall-clock search time; zero means "no deadline beyond
	// Generations and ctx".
	Timeout time.Duration
}

// Driver owns one run's counterexample latch and population state.
type Driver struct {
	params Params
	latch  Latch
}

func NewDriver(p Params) *Driver {
	return &Driver{params: p}
}

// Result is what Run reports once the search stops, whichever of §4.8's
// three stopping conditions triggered: a counterexample found, the
// generation budget exhausted, or cooperative cancellation/timeout.
type Result struct {
	Counterexample *Counterexample
	Generations    int
	StoppedReason  string // "counterexample", "generations-exhausted", "cancelled", "timeout"
}

// Run executes §4.8's generational co-evolutionary loop to completion or
// until ctx is cancelled, a counterexample publishes, the wall-clock
// Timeout elapses, or Generations have run.
func (d *Driver) Run(ctx context.Context) Result {
	p := d.params
	log := p.Logger
	if log == nil {
		log = logging.NewDefault()
	}

	var deadline <-chan time.Time
	if p.Timeout > 0 {
		timer := time.NewTimer(p.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	mainTmpl, ok := p.Baseline.Templates[p.Baseline.Main.Template]
	if !ok {
		return Result{StoppedReason: "generations-exhausted"}
	}
	decls := input.InputDecls(mainTmpl)
	declsByName := input.DeclsByName(decls)
	inputNames := make([]string, 0, len(decls))
	for _, decl := range decls {
		inputNames = append(inputNames, decl.Name)
	}

	baseEngine := exec.NewEngine(p.Baseline, p.Field)
	baseEngine.SkipTemplates = p.SkipTemplates
	baselineTrace, err := baseEngine.Run()
	if err != nil {
		log.Warnf("baseline replay failed before search began: %s", err)
		return Result{StoppedReason: "generations-exhausted"}
	}

	sampler := input.Sampler{Ranges: p.InputRanges}
	warmup := input.BinaryWarmupGenerations(p.BinaryWarmupFrac, p.Generations)

	programs := InitialProgramPopulation(p.Baseline, baselineTrace, p.Baseline.Main.Template, p.ProgramPopulation, p.Weights, p.Ranges, p.MaxEdits, p.Field, p.SkipTemplates, p.Rand)

	inputs, err := input.GeneratePopulation(decls, sampler, p.InputPopulation, p.Rand, warmup > 0)
	if err != nil {
		log.Warnf("initial input population failed: %s", err)
		return Result{StoppedReason: "generations-exhausted"}
	}
	if p.ZeroDivision {
		inputs = input.SeedPopulation(inputs, baselineTrace, mainPrefix, inputNames, p.Field)
	}

	worstSeen := big.NewInt(0)

	for gen := 0; gen < p.Generations; gen++ {
		select {
		case <-ctx.Done():
			return Result{Generations: gen, StoppedReason: "cancelled"}
		case <-deadline:
			return Result{Generations: gen, StoppedReason: "timeout"}
		default:
		}

		binaryOnly := gen < warmup
		best, worst := d.evaluateGeneration(gen, programs, inputs, declsByName, baselineTrace, mainPrefix)
		if worst != nil && worst.Cmp(worstSeen) > 0 {
			worstSeen = worst
		}
		log.Infof("generation %d: best residual reduction %s %s", gen, best.String(), log.FitnessBar(best, worstSeen))

		if d.latch.Done() {
			cx := d.latch.Result()
			return Result{Counterexample: cx, Generations: gen + 1, StoppedReason: "counterexample"}
		}

		sort.SliceStable(programs, ScoreOrder(programs, gen))
		programs = NextProgramPopulation(p.Baseline, baselineTrace, p.Baseline.Main.Template, programs, p.EliteCount, p.TopK, p.BottomK, p.Weights, p.Ranges, p.MaxEdits, p.Field, p.SkipTemplates, p.Rand)

		if p.InputUpdateEvery <= 0 || gen%p.InputUpdateEvery == 0 {
			sortInputsByScore(inputs)
			inputs = NextInputPopulation(inputs, declsByName, sampler, p.MultiPointRate, p.Rand, binaryOnly)
		}
	}

	return Result{Generations: p.Generations, StoppedReason: "generations-exhausted"}
}

// sortInputsByScore orders ranked by its cached §4.8 step 4 fitness,
// descending, so NextInputPopulation's top-half selection keeps the inputs
// that have driven some program's residual closest to a violation. An
// individual never yet scored (nil Score) sorts last; ties break on id for
// determinism given a fixed seed.
func sortInputsByScore(ranked []input.Individual) {
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := ranked[i].Score, ranked[j].Score
		if si == nil && sj == nil {
			return ranked[i].ID.String() < ranked[j].ID.String()
		}
		if si == nil {
			return false
		}
		if sj == nil {
			return true
		}
		if c := si.Cmp(sj); c != 0 {
			return c > 0
		}
		return ranked[i].ID.String() < ranked[j].ID.String()
	})
}

// evaluateGeneration replays every (program, input) pair in this
// generation's grid, scores each program by its worst observed residual
// (ProgramIndividual.Score, consumed by ScoreOrder next round), checks every
// trial against the classification table, and publishes the first
// violation found to the latch. It returns the generation's best (minimum)
// and worst (maximum) aggregate residual across all valid trials, for the
// info-level summary line.
func (d *Driver) evaluateGeneration(gen int, programs []ProgramIndividual, inputs []input.Individual, declsByName map[string]circuit.SignalDecl, baselineTrace *exec.Trace, prefix string) (best, worst *big.Int) {
	for pi := range programs {
		programs[pi].Score = nil
		if programs[pi].Invalid || programs[pi].Trace == nil {
			continue
		}
		for ii := range inputs {
			if d.latch.Done() {
				return best, worst
			}
			ind := inputs[ii]
			qualified := qualifyInputs(ind, prefix)

			mutantScore := fitness.ScoreConstraints(programs[pi].Trace, qualified, d.params.Field)
			baselineScore := fitness.ScoreConstraints(baselineTrace, qualified, d.params.Field)

			if !mutantScore.EvaluatorFailed {
				if programs[pi].Score == nil || mutantScore.Aggregate.Cmp(programs[pi].Score) > 0 {
					programs[pi].Score = mutantScore.Aggregate
				}
				if best == nil || mutantScore.Aggregate.Cmp(best) < 0 {
					best = mutantScore.Aggregate
				}
				if worst == nil || mutantScore.Aggregate.Cmp(worst) > 0 {
					worst = mutantScore.Aggregate
				}
			}

			// §4.8 step 4: this input's fitness is the largest residual
			// reduction it induces against any program, where "reduction"
			// is how much closer than the baseline this program's replay
			// comes to satisfying its constraints under the same input -
			// exactly the gap a genuinely under-constrained mutant exploits.
			if !mutantScore.EvaluatorFailed && !baselineScore.EvaluatorFailed {
				reduction := new(big.Int).Sub(baselineScore.Aggregate, mutantScore.Aggregate)
				if reduction.Sign() < 0 {
					reduction = big.NewInt(0)
				}
				if inputs[ii].Score == nil || reduction.Cmp(inputs[ii].Score) > 0 {
					inputs[ii].Score = reduction
				}
			}

			d.classifyAndPublish(gen, programs[pi], ind, mutantScore, baselineScore, baselineTrace)
		}
	}
	if best == nil {
		best = big.NewInt(0)
	}
	return best, worst
}

// classifyAndPublish replays the §4.5 decision table for one (program,
// input) pair and, on a real violation, tries to store it in the latch.
// A mutant's own trace is what fitness.Trial.IsBaselineProgram distinguishes
// from the baseline: the baseline replayed against itself can only ever
// surface OverConstrained (its residual is never reduced by a "mutation"
// since there is none), while a mutant's trial is scored against its own
// constraint set and compared to the baseline's outputs for the
// non-determinism check.
func (d *Driver) classifyAndPublish(gen int, prog ProgramIndividual, ind input.Individual, trialScore, baselineScore fitness.Score, baselineTrace *exec.Trace) {
	qualified := qualifyInputs(ind, mainPrefix)

	var trialOutputs, baselineOutputs map[string]field.Value
	if !trialScore.EvaluatorFailed {
		trialOutputs = replayOutputs(prog.Trace, qualified, d.params.Field)
	}
	if !baselineScore.EvaluatorFailed {
		baselineOutputs = replayOutputs(baselineTrace, qualified, d.params.Field)
	}

	class := fitness.Classify(fitness.Trial{
		Score:             trialScore,
		IsBaselineProgram: prog.IsBaseline,
		TrialOutputs:      trialOutputs,
		BaselineOutputs:   baselineOutputs,
	})
	if class == fitness.NoViolation {
		return
	}

	cx := Counterexample{
		Classification: class,
		Generation:     gen,
		ProgramID:      prog.id(),
		InputID:        ind.ID.String(),
		Inputs:         ind.Values,
	}
	if baselineOutputs != nil {
		for name, v := range baselineOutputs {
			cx.ExpectedOutputName = name
			cx.ExpectedOutputValue = v
			break
		}
	}
	if trialOutputs != nil {
		for name, v := range trialOutputs {
			if name == cx.ExpectedOutputName {
				cx.TargetOutputValue = v
				cx.HasTargetOutput = true
			}
		}
	}
	if trialScore.EvaluatorFailed {
		cx.FailureKind = trialScore.FailureErr.Error()
	}

	d.latch.TryPublish(cx)
}

// qualifyInputs rewrites an input.Individual's unqualified signal names
// (e.g. "in") into the fully-qualified dotted names (e.g. "main.in")
// internal/exec's canonical trace and internal/eval's replay expect.
func qualifyInputs(ind input.Individual, prefix string) map[string]field.Value {
	out := make(map[string]field.Value, len(ind.Values))
	for name, v := range ind.Values {
		out[prefix+"."+name] = v
	}
	return out
}

// replayOutputs evaluates every output in tr against qualified inputs,
// returning nil if replay fails - a failed replay is reported through
// fitness.Score.EvaluatorFailed already, so callers treat a nil map as "no
// outputs to compare" rather than re-propagating the error.
func replayOutputs(tr *exec.Trace, qualified map[string]field.Value, fc *field.Context) map[string]field.Value {
	w, err := eval.NewEvaluator(fc).Evaluate(tr, qualified)
	if err != nil {
		return nil
	}
	return w.Outputs
}
