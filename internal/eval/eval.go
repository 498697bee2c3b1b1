// Package eval replays a canonical symbolic trace (internal/exec.Trace)
// against one concrete input assignment, producing a complete witness or a
// typed runtime failure. The substitution and field-arithmetic work is
// already done by symb.Evaluate; every value internal/exec records is a
// closed-form expression over root input names (resolveExpr eagerly
// substitutes intermediate bindings away as soon as they're assigned), so
// replay here needs no statement order at all — each entry evaluates
// independently, which is what gives §4.4's "same inputs -> same witness"
// determinism for free. Grounded on the teacher's typed-failure convention in
// internal/semantic/analyzer_*.go: a structured result type instead of a bare
// error string, translated into the shared internal/errors taxonomy here.
package eval

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"wellconstrained/internal/errors"
	"wellconstrained/internal/exec"
	"wellconstrained/internal/field"
	"wellconstrained/internal/symb"
)

// Witness is a complete concrete assignment produced by one successful
// replay: every recorded intermediate binding and every output signal,
// keyed by its fully-qualified name.
type Witness struct {
	Assignments map[string]field.Value
	Outputs     map[string]field.Value
}

// Evaluator replays traces against concrete inputs under one field context.
// It carries no per-replay state, so a single Evaluator is safe to reuse
// (and share read-only) across the many replays one search generation runs.
type Evaluator struct {
	Field *field.Context
}

func NewEvaluator(fc *field.Context) *Evaluator {
	return &Evaluator{Field: fc}
}

// Evaluate replays tr under inputs, returning the complete witness on
// success. Failure is always one of §4.4's typed outcomes (div-by-zero,
// inverse-of-zero, array-oob) surfaced as an errors.EngineError value in the
// E03xx range; a residual (a free name with no entry in inputs) is a caller
// bug - every name free in a canonical trace is, by construction, one of the
// circuit's declared inputs - and is wrapped instead of silently swallowed.
func (ev *Evaluator) Evaluate(tr *exec.Trace, inputs map[string]field.Value) (*Witness, error) {
	w := &Witness{Assignments: make(map[string]field.Value, len(tr.Assignments)), Outputs: make(map[string]field.Value, len(tr.Outputs))}

	for name, expr := range tr.Assignments {
		v, err := ev.EvaluateExpr(expr, inputs, name)
		if err != nil {
			return nil, err
		}
		w.Assignments[name] = v
	}
	for name, expr := range tr.Outputs {
		v, err := ev.EvaluateExpr(expr, inputs, name)
		if err != nil {
			return nil, err
		}
		w.Outputs[name] = v
	}
	return w, nil
}

// EvaluateExpr evaluates one expression against inputs, translating
// symb.Evaluate's untyped ReplayError/Residual into the shared
// internal/errors taxonomy. name labels the position of the diagnostic (the
// assignment or constraint this expression belongs to) and need not be a
// declared signal itself. Exported so internal/fitness can score each side
// of a constraint through the same translation without re-implementing it.
func (ev *Evaluator) EvaluateExpr(expr symb.Expr, inputs map[string]field.Value, name string) (field.Value, error) {
	v, err := symb.Evaluate(expr, inputs, ev.Field)
	if err == nil {
		return v, nil
	}

	pos := errors.Position{Template: name, StmtIdx: -1}
	switch re := err.(type) {
	case *symb.ReplayError:
		switch re.Kind {
		case "div-by-zero":
			if isUnitNumerator(re.Detail) {
				return field.Value{}, errors.InverseOfZero(expr.String(), pos)
			}
			return field.Value{}, errors.DivByZero(expr.String(), pos)
		case "array-oob":
			idx, dim := parseOOBDetail(re.Detail)
			return field.Value{}, errors.DynamicOOB(expr.String(), idx, dim, pos)
		default:
			return field.Value{}, pkgerrors.Wrapf(re, "replaying %s", name)
		}
	case *symb.Residual:
		return field.Value{}, pkgerrors.Wrapf(re, "no concrete value supplied for %s in %s", re.Expr, name)
	default:
		return field.Value{}, pkgerrors.Wrapf(err, "replaying %s", name)
	}
}

// parseOOBDetail extracts the out-of-range index and the array length back
// out of symb.ReplayError's "index %d out of bounds for length %d" detail
// string, so the translated diagnostic carries the concrete numbers instead
// of opaque placeholders.
func parseOOBDetail(detail string) (index, dim int) {
	fmt.Sscanf(detail, "index %d out of bounds for length %d", &index, &dim)
	return index, dim
}

// isUnitNumerator reports whether a ReplayError's "l / r" detail string
// names a literal numerator of 1, the idiomatic Circom pattern for
// requesting a modular inverse (`1 / x`) rather than a general division -
// the distinction §7 draws between *inverse-of-zero* and *div-by-zero*.
func isUnitNumerator(detail string) bool {
	return strings.HasPrefix(detail, "1 / ")
}
