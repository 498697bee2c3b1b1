package exec

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"wellconstrained/internal/circuit"
	"wellconstrained/internal/errors"
	"wellconstrained/internal/symb"
)

// pendingComponent tracks one declared-but-not-yet-fully-wired sub-component
// instance. Inputs accumulate as the parent's ConnectStmt statements execute,
// left to right; the component itself only expands once something needs its
// output, or once the enclosing template body finishes (flushComponents),
// whichever comes first. This defers the need for retroactive
// back-substitution entirely, at the cost of assuming parent code connects a
// component's inputs before reading its outputs — the convention every
// realistic circuit already follows.
type pendingComponent struct {
	template  *circuit.Template
	prefix    string
	args      []symb.Expr
	inputs    map[string]symb.Expr
	expanding bool // on the expandPending call stack right now; re-entry is a wiring cycle
	expanded  bool
	env       map[string]symb.Expr
}

func (e *Engine) declareComponent(s *scope, st *circuit.ComponentDecl) error {
	tmpl, ok := e.Program.Templates[st.Template]
	if !ok {
		return fmt.Errorf("exec: unknown template %q instantiated as %q", st.Template, st.Name)
	}
	args := make([]symb.Expr, len(st.Args))
	for i, a := range st.Args {
		v, err := e.resolveExpr(s, a)
		if err != nil {
			return err
		}
		args[i] = e.normalise(v)
	}
	qualified := s.prefix + "." + st.Name
	e.components[qualified] = &pendingComponent{
		template: tmpl,
		prefix:   qualified,
		args:     args,
		inputs:   map[string]symb.Expr{},
	}
	return nil
}

func (e *Engine) connect(s *scope, st *circuit.ConnectStmt) error {
	qualified := s.prefix + "." + st.Component
	pc, ok := e.components[qualified]
	if !ok {
		return fmt.Errorf("exec: connect to undeclared component %q", st.Component)
	}
	val, err := e.resolveExpr(s, st.Value)
	if err != nil {
		return err
	}
	val = e.normalise(val)
	key := st.Signal
	if len(st.Indices) > 0 {
		k, err := e.bindingKey(s, st.Signal, st.Indices)
		if err != nil {
			return err
		}
		key = k
	}
	if !pc.expanded {
		pc.inputs[key] = val
		return nil
	}
	// Already expanded (output was read before this connect, an unusual
	// ordering): link the two symbolically instead of re-expanding, unless
	// the connected value free-references the very signal being connected -
	// a sibling wiring cycle (e.g. "c1.in <== c2.out; c2.in <== c1.out"),
	// since that dependency can never close with a concrete assignment.
	qualifiedSignal := pc.prefix + "." + key
	for _, free := range symb.FreeNames(val) {
		if free == qualifiedSignal {
			return errors.WiringCycle([]string{qualifiedSignal}, errors.Position{Template: s.templateName, StmtIdx: -1})
		}
	}
	e.trace.Constraints = append(e.trace.Constraints,
		Constraint{L: &symb.NameExpr{Name: qualifiedSignal}, R: val, Pos: s.prefix})
	return nil
}

// expandPending runs a pending component's template body, seeding its
// signal environment from whatever inputs have been connected so far. A
// component still mid-expansion (on e.expanding) that gets re-entered is a
// wiring cycle: two components whose sub-signals depend on each other
// directly or transitively, which §4.3 requires to abort rather than
// silently resolve to a fresh unconstrained name.
func (e *Engine) expandPending(pc *pendingComponent) error {
	if pc.expanded {
		return nil
	}
	if pc.expanding {
		cycle := append(append([]string{}, e.expanding...), pc.prefix)
		return errors.WiringCycle(cycle, errors.Position{Template: pc.template.Name, StmtIdx: -1})
	}
	pc.expanding = true
	e.expanding = append(e.expanding, pc.prefix)
	defer func() {
		pc.expanding = false
		e.expanding = e.expanding[:len(e.expanding)-1]
	}()

	if e.SkipTemplates[pc.template.Name] {
		// Leave pc.env empty: readComponentSignal's fallback already
		// synthesises a fresh unconstrained NameExpr for any signal never
		// recorded in env, which is exactly "treat the output as a fresh
		// unconstrained symbolic name" for every signal of a skipped
		// instance, input or output alike.
		pc.expanded = true
		return nil
	}

	child := &scope{templateName: pc.template.Name, prefix: pc.prefix, env: make(map[string]symb.Expr), assigned: make(map[string]bool)}
	for i, p := range pc.template.Params {
		if i < len(pc.args) {
			child.env[p] = pc.args[i]
		}
	}
	for _, l := range pc.template.Locals {
		child.env[l.Name] = zero()
	}
	for _, sig := range pc.template.Signals {
		if sig.Kind == circuit.Input {
			if v, ok := pc.inputs[sig.Name]; ok {
				child.env[sig.Name] = v
			}
		}
	}
	for k, v := range pc.inputs {
		if strings.Contains(k, "[") {
			child.env[k] = v
		}
	}

	if err := e.execStmts(child, pc.template.Body); err != nil {
		return pkgerrors.Wrapf(err, "expanding component %s", pc.prefix)
	}
	if err := e.flushComponents(pc.prefix); err != nil {
		return pkgerrors.Wrapf(err, "flushing components of %s", pc.prefix)
	}
	pc.env = child.env
	pc.expanded = true
	return nil
}

// flushComponents force-expands every component declared directly under
// prefix that nothing ever read an output from, so their internal
// constraints still make it into the trace.
func (e *Engine) flushComponents(prefix string) error {
	want := prefix + "."
	for qualified, pc := range e.components {
		if pc.expanded {
			continue
		}
		if !strings.HasPrefix(qualified, want) || strings.Contains(qualified[len(want):], ".") {
			continue
		}
		if err := e.expandPending(pc); err != nil {
			return err
		}
	}
	return nil
}

// readComponentSignal resolves "component.signal[idx...]" reads from inside
// an expression, expanding the component on first use if necessary.
func (e *Engine) readComponentSignal(s *scope, compName, signal string) (symb.Expr, error) {
	qualified := s.prefix + "." + compName
	pc, ok := e.components[qualified]
	if !ok {
		return nil, fmt.Errorf("exec: reference to undeclared component %q", compName)
	}
	if !pc.expanded {
		if err := e.expandPending(pc); err != nil {
			return nil, err
		}
	}
	if v, ok := pc.env[signal]; ok {
		return v, nil
	}
	return &symb.NameExpr{Name: qualified + "." + signal}, nil
}
