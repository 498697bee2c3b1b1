package search

import (
	deadlock "github.com/sasha-s/go-deadlock"

	"wellconstrained/internal/field"
	"wellconstrained/internal/fitness"
)

// Counterexample is a snapshot of everything §6's artefact needs about the
// (program, input) pair that exposed a violation: the names->Values
// assignment at the moment of detection, per §3's lifecycle note that "the
// counterexample, if found, is a snapshot ... at the moment of detection."
type Counterexample struct {
	Classification fitness.Classification
	Generation     int
	ProgramID      string
	InputID        string

	// Inputs is the unqualified input assignment that triggered the
	// violation (what the artefact's "assignment" keys are derived from).
	Inputs map[string]field.Value

	// ExpectedOutputName/-Value is the baseline (canonical) trace's output
	// under Inputs; TargetOutputValue is what the trial (mutant, or
	// baseline itself for over-constrained) program actually produced for
	// that same name, when it produced anything at all.
	ExpectedOutputName  string
	ExpectedOutputValue field.Value
	TargetOutputValue   field.Value
	HasTargetOutput     bool

	FailureKind string // non-empty when the trial replay itself failed
}

// Latch is the single-writer counterexample publish point §5 describes:
// "the first worker observing a violation stores its result and signals a
// cooperative shutdown flag that other workers check between pairs." Guarded
// by go-deadlock's Mutex (a drop-in sync.Mutex that additionally detects
// lock-ordering cycles in development builds), since this is the only
// mutable state workers share - every baseline/trace structure they read is
// immutable once built.
type Latch struct {
	mu        deadlock.Mutex
	result    *Counterexample
	cancelled bool
}

// TryPublish stores cx only if nothing has been published yet and Cancel has
// not been called, and reports whether cx was stored. A successful publish
// also raises the cooperative shutdown flag that Done reports.
func (l *Latch) TryPublish(cx Counterexample) (stored bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.result != nil || l.cancelled {
		return false
	}
	l.result = &cx
	l.cancelled = true
	return true
}

// Done reports whether a counterexample has already been published (or
// cancellation requested externally via Cancel), the per-pair check every
// worker makes before starting its next replay.
func (l *Latch) Done() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancelled
}

// Cancel requests cooperative shutdown without publishing a result; any
// later TryPublish stores nothing. The driver itself does not call it: Run
// handles ctx cancellation and its wall-clock timeout by returning directly.
func (l *Latch) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelled = true
}

// Result returns the published counterexample, or nil if none was ever
// stored.
func (l *Latch) Result() *Counterexample {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result
}
