// Package fitness scores how close a candidate witness comes to satisfying
// a trace's constraint set, and classifies a concrete trial into the
// well-constrainedness violation taxonomy. Grounded on the teacher's
// typed-result convention (internal/semantic's CompilerError is a result,
// not a thrown value); Classification here is likewise a plain value type,
// never a Go error, so a "no violation" result can never be accidentally
// treated as a failure by a caller that only checks `err != nil`.
package fitness

import (
	"math/big"

	"wellconstrained/internal/eval"
	"wellconstrained/internal/exec"
	"wellconstrained/internal/field"
)

// Classification is the §1/§4.5 violation taxonomy. The zero value,
// NoViolation, is deliberately the "nothing interesting happened" case so a
// zero-initialised Classification reads correctly.
type Classification int

const (
	NoViolation Classification = iota
	UnderConstrainedUnexpectedInput
	UnderConstrainedNonDeterministic
	OverConstrained
)

func (c Classification) String() string {
	switch c {
	case NoViolation:
		return "no-violation"
	case UnderConstrainedUnexpectedInput:
		return "under-constrained-unexpected-input"
	case UnderConstrainedNonDeterministic:
		return "under-constrained-non-deterministic"
	case OverConstrained:
		return "over-constrained"
	default:
		return "unknown-classification"
	}
}

// Priority gives the tie-break ordering §4.8 sorts violations by: the more
// specific/actionable classifications sort first. NoViolation sorts last
// since it is never itself the winner of a tie-break between violations.
func (c Classification) Priority() int {
	switch c {
	case UnderConstrainedNonDeterministic:
		return 0
	case OverConstrained:
		return 1
	case UnderConstrainedUnexpectedInput:
		return 2
	default:
		return 3
	}
}

// Score is the result of evaluating one trial's constraint set against one
// concrete input assignment: the aggregate residual (§4.5) plus, when the
// concrete evaluator itself failed to produce a witness, the failure that
// stopped it. Aggregate is nil exactly when EvaluatorFailed is true - there
// is no meaningful residual to report once replay itself didn't complete.
// SideAggregate is only populated when EvaluatorFailed is true: the residual
// of whichever constraints evaluate using just the supplied inputs, without
// needing any value the failed witness would have produced. §4.5 requires
// this to be zero before an evaluator failure counts as the under-constrained
// / unexpected-input violation, rather than every failed replay doing so.
type Score struct {
	Aggregate       *big.Int
	EvaluatorFailed bool
	FailureErr      error
	SideAggregate   *big.Int
}

// Zero reports whether every constraint in the scored set held exactly,
// i.e. the aggregate residual is the additive identity. Only meaningful
// when EvaluatorFailed is false.
func (s Score) Zero() bool {
	return !s.EvaluatorFailed && s.Aggregate.Sign() == 0
}

// ScoreConstraints evaluates every constraint in tr against inputs and sums
// the per-constraint residuals. A constraint emitted by a constrained
// assignment (`<==`) carries the bare output name as L (see
// internal/exec's Constraint), so its value must come from the replayed
// witness rather than from inputs alone; ScoreConstraints replays tr first
// and evaluates every constraint side against inputs merged with that
// witness. The input AST's only side-constraint form is equality
// (`L === R`); the only residual this scorer needs is §4.5's equality
// residual, `min(|a-b|, P-|a-b|)`. §4.5's inequality/ordering penalty
// branch applies to constraint forms this AST has no way to express and is
// therefore not reachable from this scorer.
func ScoreConstraints(tr *exec.Trace, inputs map[string]field.Value, fc *field.Context) Score {
	ev := eval.NewEvaluator(fc)
	w, err := ev.Evaluate(tr, inputs)
	if err != nil {
		return Score{EvaluatorFailed: true, FailureErr: err, SideAggregate: sideConstraintResidual(tr, inputs, fc)}
	}

	witness := make(map[string]field.Value, len(inputs)+len(w.Assignments)+len(w.Outputs))
	for name, v := range inputs {
		witness[name] = v
	}
	for name, v := range w.Assignments {
		witness[name] = v
	}
	for name, v := range w.Outputs {
		witness[name] = v
	}

	aggregate := big.NewInt(0)
	for _, c := range tr.Constraints {
		lv, err := ev.EvaluateExpr(c.L, witness, c.Pos)
		if err != nil {
			return Score{EvaluatorFailed: true, FailureErr: err}
		}
		rv, err := ev.EvaluateExpr(c.R, witness, c.Pos)
		if err != nil {
			return Score{EvaluatorFailed: true, FailureErr: err}
		}
		aggregate.Add(aggregate, fc.AbsDistance(lv.Int(), rv.Int()))
	}
	return Score{Aggregate: aggregate}
}

// sideConstraintResidual sums the residual of every constraint in tr whose
// both sides evaluate using only inputs, skipping any constraint that
// reaches for an assignment or output name the failed witness never
// produced. This is the "side constraints evaluable without the failed
// witness" §4.5 needs before classifying a failed replay as unexpected-input
// rather than letting every failure through unconditionally.
func sideConstraintResidual(tr *exec.Trace, inputs map[string]field.Value, fc *field.Context) *big.Int {
	ev := eval.NewEvaluator(fc)
	aggregate := big.NewInt(0)
	for _, c := range tr.Constraints {
		lv, err := ev.EvaluateExpr(c.L, inputs, c.Pos)
		if err != nil {
			continue
		}
		rv, err := ev.EvaluateExpr(c.R, inputs, c.Pos)
		if err != nil {
			continue
		}
		aggregate.Add(aggregate, fc.AbsDistance(lv.Int(), rv.Int()))
	}
	return aggregate
}

// Trial bundles everything Classify needs about one (program, input) pair
// alongside the same quantities for the baseline (unmutated) program under
// the identical input, matching §4.8 step 3's "replay baseline against i"
// and §4.5's classification table verbatim.
type Trial struct {
	Score             Score
	IsBaselineProgram bool

	TrialOutputs    map[string]field.Value
	BaselineOutputs map[string]field.Value
}

// Classify applies §4.5's decision table to one trial.
func Classify(t Trial) Classification {
	switch {
	case t.Score.EvaluatorFailed:
		if t.Score.SideAggregate != nil && t.Score.SideAggregate.Sign() == 0 {
			return UnderConstrainedUnexpectedInput
		}
		return NoViolation

	case t.Score.Zero() && outputsDiffer(t.TrialOutputs, t.BaselineOutputs):
		return UnderConstrainedNonDeterministic

	case !t.Score.Zero() && t.IsBaselineProgram:
		return OverConstrained

	default:
		return NoViolation
	}
}

// outputsDiffer reports whether any output name shared by both maps holds a
// different field value, or whether either side has an output the other
// lacks - either is evidence of the non-determinism §4.5 classifies.
func outputsDiffer(a, b map[string]field.Value) bool {
	if len(a) != len(b) {
		return true
	}
	for name, av := range a {
		bv, ok := b[name]
		if !ok || av.String() != bv.String() {
			return true
		}
	}
	return false
}
