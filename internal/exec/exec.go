// Package exec performs recursive symbolic execution over an internal/circuit
// program, producing a canonical trace: a flat constraint set plus the
// symbolic value of every output signal, with every CallExpr and component
// instantiation fully expanded away. Grounded on the teacher's internal/ir
// Builder, which walks an AST once with a stateful single-assignment
// environment; here the environment is a symb.Expr substitution table and
// the SSA discipline is enforced by normalising every write through the
// shared expression arena rather than by block-local value numbering.
package exec

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"wellconstrained/internal/circuit"
	"wellconstrained/internal/errors"
	"wellconstrained/internal/field"
	"wellconstrained/internal/symb"
)

const (
	maxCallDepth      = 64
	maxLoopIterations = 4096
)

// Constraint is one equality collected along the trace: L - R is required
// to vanish in the field. Pos names the owning template instance path.
type Constraint struct {
	L, R symb.Expr
	Pos  string
}

// Trace is the canonical output of one symbolic execution run.
type Trace struct {
	Constraints []Constraint
	Outputs     map[string]symb.Expr
	Assignments map[string]symb.Expr
}

// Engine owns the arena and field context shared across one run, and
// expands template/function scopes by recursive descent.
type Engine struct {
	Program *circuit.Program
	Field   *field.Context
	Arena   *symb.Arena

	// SkipTemplates names templates whose symbolic expansion is skipped
	// entirely: every output of an instance of one of these templates
	// becomes a fresh unconstrained symbolic name instead of the template
	// body's actual computation. Useful for excluding a trusted hash
	// sub-circuit from a search run via --path_to_whitelist; nil (the
	// zero value) skips nothing.
	SkipTemplates map[string]bool

	trace      *Trace
	components map[string]*pendingComponent
	callDepth  map[string]int

	// expanding is the stack of component prefixes currently mid-expansion,
	// innermost last, used by expandPending to report the full cycle when a
	// component still on this stack is re-entered.
	expanding []string
}

func NewEngine(prog *circuit.Program, fc *field.Context) *Engine {
	return &Engine{
		Program:   prog,
		Field:     fc,
		Arena:     symb.NewArena(),
		callDepth: make(map[string]int),
	}
}

// scope is one live (template or function) activation: a name-to-expression
// environment plus, for function scopes, the early-return slot. assigned
// tracks which declared signals have already been bound along this scope's
// own unconditioned path, so a second AssignStmt to the same signal here
// (not a var - those may be reassigned freely) is flagged as a double
// assignment rather than silently overwriting the first.
type scope struct {
	templateName string
	prefix       string
	env          map[string]symb.Expr
	assigned     map[string]bool
	isFunction   bool
	returned     symb.Expr
}

func (s *scope) fork() *scope {
	cp := make(map[string]symb.Expr, len(s.env))
	for k, v := range s.env {
		cp[k] = v
	}
	assigned := make(map[string]bool, len(s.assigned))
	for k, v := range s.assigned {
		assigned[k] = v
	}
	return &scope{templateName: s.templateName, prefix: s.prefix, env: cp, assigned: assigned, isFunction: s.isFunction}
}

// Run expands §1's main component declaration and returns the canonical
// trace for the whole component tree it reaches.
func (e *Engine) Run() (*Trace, error) {
	e.trace = &Trace{Outputs: map[string]symb.Expr{}, Assignments: map[string]symb.Expr{}}
	e.components = map[string]*pendingComponent{}

	tmpl, ok := e.Program.Templates[e.Program.Main.Template]
	if !ok {
		return nil, fmt.Errorf("exec: unknown main template %q", e.Program.Main.Template)
	}
	if err := e.runComponent("main", tmpl, e.Program.Main.Args); err != nil {
		return nil, err
	}
	return e.trace, nil
}

func (e *Engine) normalise(expr symb.Expr) symb.Expr {
	return e.Arena.Normalise(expr, e.Field)
}

// runComponent fully executes one template instance and records its outputs
// and constraints into the shared trace.
func (e *Engine) runComponent(prefix string, tmpl *circuit.Template, args []symb.Expr) error {
	s := &scope{templateName: tmpl.Name, prefix: prefix, env: make(map[string]symb.Expr), assigned: make(map[string]bool)}
	for i, p := range tmpl.Params {
		if i < len(args) {
			s.env[p] = e.normalise(args[i])
		}
	}
	for _, l := range tmpl.Locals {
		s.env[l.Name] = zero()
	}

	if err := e.execStmts(s, tmpl.Body); err != nil {
		return pkgerrors.Wrapf(err, "instantiating %s as %s", tmpl.Name, prefix)
	}
	if err := e.flushComponents(prefix); err != nil {
		return pkgerrors.Wrapf(err, "flushing components of %s", prefix)
	}

	for _, sig := range tmpl.Signals {
		if sig.Kind != circuit.Output {
			continue
		}
		qualified := prefix + "." + sig.Name
		if v, ok := s.env[sig.Name]; ok {
			e.trace.Outputs[qualified] = v
		} else {
			e.trace.Outputs[qualified] = &symb.NameExpr{Name: qualified}
		}
	}
	return nil
}

func zero() symb.Expr { return &symb.ConstantExpr{Value: field.NewFieldInt64(0)} }

func (e *Engine) execStmts(s *scope, body []circuit.Stmt) error {
	for _, st := range body {
		if s.returned != nil {
			break
		}
		if err := e.execStmt(s, st); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) execStmt(s *scope, stmt circuit.Stmt) error {
	switch st := stmt.(type) {
	case *circuit.VarDecl:
		if _, ok := s.env[st.Name]; !ok {
			s.env[st.Name] = zero()
		}
		return nil

	case *circuit.AssignStmt:
		resolved, err := e.resolveExpr(s, st.Value)
		if err != nil {
			return err
		}
		val := e.normalise(resolved)
		key, err := e.bindingKey(s, st.Target, st.Indices)
		if err != nil {
			return err
		}
		if _, isSignal := e.signalDecl(s, st.Target); isSignal {
			if s.assigned[key] {
				return errors.DoubleAssignment(key, errors.Position{Template: s.templateName, StmtIdx: -1})
			}
			s.assigned[key] = true
		}
		s.env[key] = val
		qualified := s.prefix + "." + key
		e.trace.Assignments[qualified] = val
		if st.Constrained {
			e.trace.Constraints = append(e.trace.Constraints,
				Constraint{L: &symb.NameExpr{Name: qualified}, R: val, Pos: s.prefix})
		}
		return nil

	case *circuit.ConstraintStmt:
		lv, err := e.resolveExpr(s, st.L)
		if err != nil {
			return err
		}
		rv, err := e.resolveExpr(s, st.R)
		if err != nil {
			return err
		}
		l, r := e.normalise(lv), e.normalise(rv)
		e.trace.Constraints = append(e.trace.Constraints, Constraint{L: l, R: r, Pos: s.prefix})
		return nil

	case *circuit.ComponentDecl:
		return e.declareComponent(s, st)

	case *circuit.ConnectStmt:
		return e.connect(s, st)

	case *circuit.IfStmt:
		return e.execIf(s, st)

	case *circuit.ForStmt:
		return e.execFor(s, st)

	case *circuit.WhileStmt:
		return e.execWhile(s, st)

	case *circuit.ReturnStmt:
		if !s.isFunction {
			return fmt.Errorf("exec: return statement outside a function, in %s", s.prefix)
		}
		if st.Value != nil {
			v, err := e.resolveExpr(s, st.Value)
			if err != nil {
				return err
			}
			s.returned = e.normalise(v)
		} else {
			s.returned = zero()
		}
		return nil

	case *circuit.BlockStmt:
		return e.execStmts(s, st.Body)

	default:
		return fmt.Errorf("exec: unhandled statement type %T", stmt)
	}
}

// bindingKey resolves an assignment target's local env key, flattening
// compile-time-constant indices into "name[k]" entries and falling back to
// the bare array name when an index cannot be folded to a constant. A
// constant index is checked against name's declared dimension (when name is
// a declared signal with a compile-time-constant Dims entry) and reported as
// a compile-time out-of-bounds error rather than folded into a key that can
// never correspond to a real element.
func (e *Engine) bindingKey(s *scope, name string, indices []symb.Expr) (string, error) {
	if len(indices) == 0 {
		return name, nil
	}
	decl, hasDecl := e.signalDecl(s, name)
	key := name
	for i, ix := range indices {
		v, err := e.resolveExpr(s, ix)
		if err != nil {
			return "", err
		}
		v = e.normalise(v)
		c, ok := v.(*symb.ConstantExpr)
		if !ok {
			// Dynamic index: collapse to the bare array name; the concrete
			// evaluator resolves the element once inputs are known.
			return name, nil
		}
		if hasDecl && i < len(decl.Dims) {
			if dim, ok := e.constDim(s, decl.Dims[i]); ok {
				idx := c.Value.Int().Int64()
				if idx < 0 || idx >= int64(dim) {
					return "", errors.CompileTimeOOB(name, int(idx), dim, errors.Position{Template: s.templateName, StmtIdx: -1})
				}
			}
		}
		key += "[" + c.Value.String() + "]"
	}
	return key, nil
}

// signalDecl looks up name as a declared signal of the template s belongs
// to (functions declare no signals, so this always misses for a function
// scope).
func (e *Engine) signalDecl(s *scope, name string) (circuit.SignalDecl, bool) {
	tmpl, ok := e.Program.Templates[s.templateName]
	if !ok {
		return circuit.SignalDecl{}, false
	}
	for _, sig := range tmpl.Signals {
		if sig.Name == name {
			return sig, true
		}
	}
	return circuit.SignalDecl{}, false
}

// constDim resolves a signal's dimension expression against s's environment
// (dimensions may reference the enclosing template's parameters) and reports
// it only when it folds to a non-negative compile-time constant.
func (e *Engine) constDim(s *scope, dim symb.Expr) (int, bool) {
	v, err := e.resolveExpr(s, dim)
	if err != nil {
		return 0, false
	}
	v = e.normalise(v)
	c, ok := v.(*symb.ConstantExpr)
	if !ok || !c.Value.Int().IsInt64() {
		return 0, false
	}
	n := c.Value.Int().Int64()
	if n < 0 {
		return 0, false
	}
	return int(n), true
}

func (e *Engine) execIf(s *scope, st *circuit.IfStmt) error {
	resolved, err := e.resolveExpr(s, st.Cond)
	if err != nil {
		return err
	}
	cond := e.normalise(resolved)
	if c, ok := cond.(*symb.ConstantExpr); ok {
		branch := st.Else
		if c.Value.Bool() {
			branch = st.Then
		}
		return e.execStmts(s, branch)
	}

	thenMark := len(e.trace.Constraints)
	thenScope := s.fork()
	if err := e.execStmts(thenScope, st.Then); err != nil {
		return err
	}
	thenConstraints := guardConstraints(cond, e.trace.Constraints[thenMark:], true)
	e.trace.Constraints = e.trace.Constraints[:thenMark]

	elseMark := len(e.trace.Constraints)
	elseScope := s.fork()
	if err := e.execStmts(elseScope, st.Else); err != nil {
		return err
	}
	elseConstraints := guardConstraints(cond, e.trace.Constraints[elseMark:], false)
	e.trace.Constraints = e.trace.Constraints[:elseMark]

	e.trace.Constraints = append(e.trace.Constraints, thenConstraints...)
	e.trace.Constraints = append(e.trace.Constraints, elseConstraints...)

	e.mergeBranches(s, cond, thenScope, elseScope)
	return nil
}

// guardConstraints rewrites each constraint so it only takes effect along
// the branch it was collected from: Select(cond, L, R) === R collapses to a
// trivial R === R identity whenever the other branch was the one taken.
func guardConstraints(cond symb.Expr, cs []Constraint, whenTrue bool) []Constraint {
	out := make([]Constraint, len(cs))
	for i, c := range cs {
		if whenTrue {
			out[i] = Constraint{L: &symb.SelectExpr{Cond: cond, Then: c.L, Else: c.R}, R: c.R, Pos: c.Pos}
		} else {
			out[i] = Constraint{L: &symb.SelectExpr{Cond: cond, Then: c.R, Else: c.L}, R: c.R, Pos: c.Pos}
		}
	}
	return out
}

// mergeBranches folds two divergent scopes back into s at the join point:
// every name bound in either branch becomes a SelectExpr unless both
// branches agree, matching the specification's branch-join merge rule.
func (e *Engine) mergeBranches(s *scope, cond symb.Expr, thenScope, elseScope *scope) {
	seen := map[string]bool{}
	for k := range thenScope.env {
		seen[k] = true
	}
	for k := range elseScope.env {
		seen[k] = true
	}
	for k := range seen {
		tv, tok := thenScope.env[k]
		ev, eok := elseScope.env[k]
		switch {
		case tok && eok && tv.String() == ev.String():
			s.env[k] = tv
		case tok && eok:
			s.env[k] = e.normalise(&symb.SelectExpr{Cond: cond, Then: tv, Else: ev})
		case tok:
			s.env[k] = e.normalise(&symb.SelectExpr{Cond: cond, Then: tv, Else: zero()})
		case eok:
			s.env[k] = e.normalise(&symb.SelectExpr{Cond: cond, Then: zero(), Else: ev})
		}
		// A signal assigned along every path out of the branch is assigned
		// on s's own unconditioned path from here on; one assigned in only
		// one of the two branches is not (the other path never bound it).
		if thenScope.assigned[k] && elseScope.assigned[k] {
			s.assigned[k] = true
		}
	}
	if thenScope.returned != nil || elseScope.returned != nil {
		tv := thenScope.returned
		if tv == nil {
			tv = zero()
		}
		ev := elseScope.returned
		if ev == nil {
			ev = zero()
		}
		s.returned = e.normalise(&symb.SelectExpr{Cond: cond, Then: tv, Else: ev})
	}
}

func (e *Engine) execFor(s *scope, st *circuit.ForStmt) error {
	loop := s
	if st.Init != nil {
		if err := e.execStmt(loop, st.Init); err != nil {
			return err
		}
	}
	for i := 0; ; i++ {
		if i >= maxLoopIterations {
			return fmt.Errorf("exec: loop iteration budget exhausted in %s", s.prefix)
		}
		resolved, err := e.resolveExpr(loop, st.Cond)
		if err != nil {
			return err
		}
		cond := e.normalise(resolved)
		c, ok := cond.(*symb.ConstantExpr)
		if !ok {
			return errors.NonDecidableLoop(errors.Position{Template: s.templateName, StmtIdx: -1})
		}
		if !c.Value.Bool() {
			break
		}
		if err := e.execStmts(loop, st.Body); err != nil {
			return err
		}
		if loop.returned != nil {
			break
		}
		if st.Post != nil {
			if err := e.execStmt(loop, st.Post); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) execWhile(s *scope, st *circuit.WhileStmt) error {
	for i := 0; ; i++ {
		if i >= maxLoopIterations {
			return fmt.Errorf("exec: loop iteration budget exhausted in %s", s.prefix)
		}
		resolved, err := e.resolveExpr(s, st.Cond)
		if err != nil {
			return err
		}
		cond := e.normalise(resolved)
		c, ok := cond.(*symb.ConstantExpr)
		if !ok {
			return errors.NonDecidableLoop(errors.Position{Template: s.templateName, StmtIdx: -1})
		}
		if !c.Value.Bool() {
			break
		}
		if err := e.execStmts(s, st.Body); err != nil {
			return err
		}
		if s.returned != nil {
			break
		}
	}
	return nil
}
