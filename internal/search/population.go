// Package search implements §4.8's co-evolutionary driver: two populations
// (program mutants and inputs), generation cycling, elitism/replacement,
// and the counterexample latch. Grounded on the teacher's repl/repl.go
// read-eval loop shape (a bounded "read a unit of work, evaluate it, loop"
// structure), generalised from one line of REPL input per iteration to one
// generation of two populations per iteration.
package search

import (
	"math/big"
	"math/rand"

	"wellconstrained/internal/circuit"
	"wellconstrained/internal/exec"
	"wellconstrained/internal/field"
	"wellconstrained/internal/input"
	"wellconstrained/internal/mutate"
)

// ProgramIndividual is one member of the program population: an edit list
// over the baseline circuit plus its materialised mutant program and
// symbolic trace. IsBaseline marks the always-present elite identity
// individual (empty edit list), which §4.5's over-constrained
// classification specifically keys on.
type ProgramIndividual struct {
	Edits      mutate.EditList
	Program    *circuit.Program
	Trace      *exec.Trace
	IsBaseline bool
	Invalid    bool // structurally invalid mutant (§7 E0401): dropped, not replayed

	// Score is the worst (maximum) residual this program produced against
	// any input replayed against it so far this generation (§4.8 step 4).
	Score *big.Int
}

func (pi ProgramIndividual) id() string {
	if pi.IsBaseline {
		return "baseline"
	}
	return pi.Edits.ID.String()
}

// buildMutant materialises a mutant program and its trace from an edit
// list drawn against baseline. A structurally-invalid mutant (Mutate or
// Run fails - an undefined name, a wiring cycle introduced by the edits,
// etc.) is reported as Invalid rather than propagating the error, matching
// §7's "mutator produced structurally-invalid trace (discarded)" search
// error, which is non-fatal and simply excluded from this generation's
// replays.
func buildMutant(baseline *circuit.Program, el mutate.EditList, fc *field.Context, skip map[string]bool) ProgramIndividual {
	mutant, err := mutate.Mutate(baseline, el)
	if err != nil {
		return ProgramIndividual{Edits: el, Invalid: true}
	}
	eng := exec.NewEngine(mutant, fc)
	eng.SkipTemplates = skip
	tr, err := eng.Run()
	if err != nil {
		return ProgramIndividual{Edits: el, Program: mutant, Invalid: true}
	}
	return ProgramIndividual{Edits: el, Program: mutant, Trace: tr}
}

// InitialProgramPopulation builds generation 0: the elite baseline identity
// plus (size-1) freshly drawn random mutants.
func InitialProgramPopulation(baseline *circuit.Program, baselineTrace *exec.Trace, mainTemplate string, size int, w mutate.Weights, ranges []mutate.ValueRange, maxEdits int, fc *field.Context, skip map[string]bool, rnd *rand.Rand) []ProgramIndividual {
	pop := make([]ProgramIndividual, 0, size)
	pop = append(pop, ProgramIndividual{IsBaseline: true, Program: baseline, Trace: baselineTrace})
	for len(pop) < size {
		el, err := mutate.RandomEditList(baseline, mainTemplate, w, maxEdits, ranges, rnd)
		if err != nil {
			continue
		}
		pop = append(pop, buildMutant(baseline, el, fc, skip))
	}
	return pop
}

// crossoverEdits combines two parents' edit lists: each edit independently
// inherits from a or b, capped at mutate.MaxEdits, mirroring §4.7's
// "point-wise random parent selection" crossover rule generalised from
// inputs to edit lists (the specification does not separately define
// program crossover, so this reuses the one it does define).
func crossoverEdits(a, b mutate.EditList, rnd *rand.Rand) []mutate.Edit {
	longer, shorter := a.Edits, b.Edits
	if len(shorter) > len(longer) {
		longer, shorter = shorter, longer
	}
	out := make([]mutate.Edit, 0, len(longer))
	for i, e := range longer {
		if i < len(shorter) && rnd.Intn(2) == 0 {
			out = append(out, shorter[i])
		} else {
			out = append(out, e)
		}
	}
	if len(out) > mutate.MaxEdits {
		out = out[:mutate.MaxEdits]
	}
	return out
}

// NextProgramPopulation applies §4.8 step 2: the elite baseline survives
// unconditionally, the top-k scorers survive unchanged, the bottom-k are
// replaced by fresh random mutants, and the remainder is produced by
// crossover+mutation of the current population. ranked must already be
// sorted worst-score-first (ScoreOrder below).
func NextProgramPopulation(baseline *circuit.Program, baselineTrace *exec.Trace, mainTemplate string, ranked []ProgramIndividual, eliteCount, topK, bottomK int, w mutate.Weights, ranges []mutate.ValueRange, maxEdits int, fc *field.Context, skip map[string]bool, rnd *rand.Rand) []ProgramIndividual {
	size := len(ranked)
	next := make([]ProgramIndividual, 0, size)

	for i := 0; i < eliteCount && i < size; i++ {
		next = append(next, ProgramIndividual{IsBaseline: true, Program: baseline, Trace: baselineTrace})
	}
	for i := 0; i < topK && i < size-eliteCount; i++ {
		next = append(next, ranked[i])
	}

	middleEnd := size - bottomK
	if middleEnd < len(next) {
		middleEnd = len(next)
	}
	for len(next) < middleEnd {
		p1 := ranked[rnd.Intn(size)]
		p2 := ranked[rnd.Intn(size)]
		edits := crossoverEdits(p1.Edits, p2.Edits, rnd)
		edits = mutateEditList(baseline, mainTemplate, edits, w, ranges, maxEdits, rnd)
		el, err := mutate.NewEditList(edits)
		if err != nil {
			el, _ = mutate.NewEditList(edits[:mutate.MaxEdits])
		}
		next = append(next, buildMutant(baseline, el, fc, skip))
	}

	for len(next) < size {
		el, err := mutate.RandomEditList(baseline, mainTemplate, w, maxEdits, ranges, rnd)
		if err != nil {
			next = append(next, ProgramIndividual{IsBaseline: true, Program: baseline, Trace: baselineTrace})
			continue
		}
		next = append(next, buildMutant(baseline, el, fc, skip))
	}
	return next
}

// mutateEditList independently perturbs a crossed-over edit list by
// occasionally appending one more random edit (if room remains under the
// K cap) or dropping one, the generation-to-generation analogue of §4.7's
// single/multi-point input mutation applied to the program population.
func mutateEditList(baseline *circuit.Program, mainTemplate string, edits []mutate.Edit, w mutate.Weights, ranges []mutate.ValueRange, maxEdits int, rnd *rand.Rand) []mutate.Edit {
	const mutationRate = 0.3
	if rnd.Float64() >= mutationRate {
		return edits
	}
	if len(edits) > 0 && rnd.Intn(2) == 0 {
		drop := rnd.Intn(len(edits))
		out := make([]mutate.Edit, 0, len(edits)-1)
		out = append(out, edits[:drop]...)
		out = append(out, edits[drop+1:]...)
		return out
	}
	if len(edits) >= maxEdits {
		return edits
	}
	fresh, err := mutate.RandomEditList(baseline, mainTemplate, w, 1, ranges, rnd)
	if err != nil || len(fresh.Edits) == 0 {
		return edits
	}
	return append(append([]mutate.Edit{}, edits...), fresh.Edits[0])
}

// ScoreOrder sorts program individuals worst-score-first (the individuals
// most interesting to keep exploring from), tie-broken by a stable
// generation-and-id ordering per §4.8's tie-break rule. A nil Score (never
// replayed, or every replay against it was structurally invalid) sorts
// last.
func ScoreOrder(pop []ProgramIndividual, generation int) func(i, j int) bool {
	return func(i, j int) bool {
		si, sj := pop[i].Score, pop[j].Score
		if si == nil && sj == nil {
			return pop[i].id() < pop[j].id()
		}
		if si == nil {
			return false
		}
		if sj == nil {
			return true
		}
		if c := si.Cmp(sj); c != 0 {
			return c > 0 // worst (largest residual) first
		}
		return pop[i].id() < pop[j].id()
	}
}

// --- input-population helpers ------------------------------------------

// NextInputPopulation applies §4.7's selection+crossover+mutation to
// produce the following round's input population: the top half (by
// fitness, descending) survives as crossover parents, the rest are filled
// by crossing two survivors and applying single or multi-point mutation.
func NextInputPopulation(ranked []input.Individual, decls map[string]circuit.SignalDecl, s input.Sampler, multiPointRate float64, rnd *rand.Rand, binary bool) []input.Individual {
	size := len(ranked)
	if size == 0 {
		return ranked
	}
	survivors := ranked[:max(1, size/2)]
	next := make([]input.Individual, 0, size)
	next = append(next, survivors...)
	for len(next) < size {
		a := survivors[rnd.Intn(len(survivors))]
		b := survivors[rnd.Intn(len(survivors))]
		child := input.Crossover(a, b, rnd)
		var err error
		if rnd.Intn(2) == 0 {
			child, err = input.MutateSinglePoint(child, decls, s, rnd, binary)
		} else {
			child, err = input.MutateMultiPoint(child, decls, s, multiPointRate, rnd, binary)
		}
		if err != nil {
			continue
		}
		next = append(next, child)
	}
	return next
}
