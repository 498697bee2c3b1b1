// Package mutate implements §4.6's program mutator: a bounded, reversible
// edit list applied to a circuit template. Grounded on the teacher's
// OptimizationPass interface (internal/ir/optimizations.go): one struct per
// transform kind with a Name()/Apply() shape, inverted here from "optimize"
// to "perturb". Every edit composes onto a fresh CloneProgram of the
// baseline rather than onto a previously produced mutant, so edits are
// reversible simply by omitting them from the next EditList drawn against
// the same baseline - nothing is ever mutated in place twice.
package mutate

import (
	"fmt"
	"math/big"
	"math/rand"
	"sort"

	"github.com/segmentio/ksuid"

	"wellconstrained/internal/circuit"
	"wellconstrained/internal/field"
	"wellconstrained/internal/symb"
)

// MaxEdits is §4.6 constraint (i)'s default K: at most this many edits
// compose one mutant.
const MaxEdits = 10

// Edit is one reversible perturbation of a baseline circuit.Program.
type Edit interface {
	Kind() string
	Apply(prog *circuit.Program) error
	String() string
}

// EditList is a composed set of edits sharing a K-sortable identity, used
// by §4.8's tie-break ("generation, individual id") in internal/search's
// ScoreOrder.
type EditList struct {
	ID    ksuid.KSUID
	Edits []Edit
}

// NewEditList rejects any list exceeding §4.6 constraint (i)'s K cap.
func NewEditList(edits []Edit) (EditList, error) {
	if len(edits) > MaxEdits {
		return EditList{}, fmt.Errorf("mutate: %d edits exceeds the K=%d cap", len(edits), MaxEdits)
	}
	return EditList{ID: ksuid.New(), Edits: edits}, nil
}

// Mutate applies el to a fresh copy of baseline and returns the mutant.
// baseline itself is never modified.
func Mutate(baseline *circuit.Program, el EditList) (*circuit.Program, error) {
	mutant := CloneProgram(baseline)
	for i, e := range el.Edits {
		if err := e.Apply(mutant); err != nil {
			return nil, fmt.Errorf("mutate: edit %d (%s): %w", i, e, err)
		}
	}
	return mutant, nil
}

// --- expression-site rewriting -------------------------------------------

// exprRewriter walks every symb.Expr reachable from a statement list in
// pre-order, replacing the target-th node satisfying match. idx after a
// full walk is the total number of matches seen, which Site validation and
// counting both reuse by driving the same walk with target = -1 (never
// equal to any non-negative idx, so nothing is ever replaced).
type exprRewriter struct {
	match   func(symb.Expr) bool
	idx     int
	target  int
	replace func(symb.Expr) symb.Expr
}

func countMatches(body []circuit.Stmt, match func(symb.Expr) bool) int {
	r := &exprRewriter{match: match, target: -1, replace: func(e symb.Expr) symb.Expr { return e }}
	r.rewriteStmts(body)
	return r.idx
}

func (r *exprRewriter) rewrite(e symb.Expr) symb.Expr {
	if e == nil {
		return nil
	}
	if r.match(e) {
		hit := r.idx == r.target
		r.idx++
		if hit {
			return r.replace(e)
		}
	}
	switch n := e.(type) {
	case *symb.ConstantExpr, *symb.NameExpr:
		return e
	case *symb.UnaryExpr:
		return &symb.UnaryExpr{Op: n.Op, Arg: r.rewrite(n.Arg)}
	case *symb.BinaryExpr:
		return &symb.BinaryExpr{Op: n.Op, L: r.rewrite(n.L), R: r.rewrite(n.R)}
	case *symb.CompareExpr:
		return &symb.CompareExpr{Op: n.Op, L: r.rewrite(n.L), R: r.rewrite(n.R)}
	case *symb.BoolBinaryExpr:
		return &symb.BoolBinaryExpr{Op: n.Op, L: r.rewrite(n.L), R: r.rewrite(n.R)}
	case *symb.SelectExpr:
		return &symb.SelectExpr{Cond: r.rewrite(n.Cond), Then: r.rewrite(n.Then), Else: r.rewrite(n.Else)}
	case *symb.IndexExpr:
		return &symb.IndexExpr{Array: r.rewrite(n.Array), Indices: r.rewriteList(n.Indices)}
	case *symb.CallExpr:
		return &symb.CallExpr{Callee: n.Callee, Args: r.rewriteList(n.Args)}
	default:
		return e
	}
}

func (r *exprRewriter) rewriteList(es []symb.Expr) []symb.Expr {
	if es == nil {
		return nil
	}
	out := make([]symb.Expr, len(es))
	for i, e := range es {
		out[i] = r.rewrite(e)
	}
	return out
}

func (r *exprRewriter) rewriteStmts(stmts []circuit.Stmt) []circuit.Stmt {
	if stmts == nil {
		return nil
	}
	out := make([]circuit.Stmt, len(stmts))
	for i, s := range stmts {
		out[i] = r.rewriteStmt(s)
	}
	return out
}

func (r *exprRewriter) rewriteStmt(s circuit.Stmt) circuit.Stmt {
	switch st := s.(type) {
	case *circuit.VarDecl:
		return st
	case *circuit.AssignStmt:
		return &circuit.AssignStmt{Target: st.Target, Indices: r.rewriteList(st.Indices), Value: r.rewrite(st.Value), Constrained: st.Constrained}
	case *circuit.ConstraintStmt:
		return &circuit.ConstraintStmt{L: r.rewrite(st.L), R: r.rewrite(st.R)}
	case *circuit.ComponentDecl:
		return &circuit.ComponentDecl{Name: st.Name, Template: st.Template, Args: r.rewriteList(st.Args)}
	case *circuit.ConnectStmt:
		return &circuit.ConnectStmt{Component: st.Component, Signal: st.Signal, Indices: r.rewriteList(st.Indices), Value: r.rewrite(st.Value), Constrained: st.Constrained}
	case *circuit.IfStmt:
		return &circuit.IfStmt{Cond: r.rewrite(st.Cond), Then: r.rewriteStmts(st.Then), Else: r.rewriteStmts(st.Else)}
	case *circuit.ForStmt:
		var init, post circuit.Stmt
		if st.Init != nil {
			init = r.rewriteStmt(st.Init)
		}
		if st.Post != nil {
			post = r.rewriteStmt(st.Post)
		}
		return &circuit.ForStmt{Init: init, Cond: r.rewrite(st.Cond), Post: post, Body: r.rewriteStmts(st.Body)}
	case *circuit.WhileStmt:
		return &circuit.WhileStmt{Cond: r.rewrite(st.Cond), Body: r.rewriteStmts(st.Body)}
	case *circuit.ReturnStmt:
		return &circuit.ReturnStmt{Value: r.rewrite(st.Value)}
	case *circuit.BlockStmt:
		return &circuit.BlockStmt{Body: r.rewriteStmts(st.Body)}
	default:
		return s
	}
}

// --- constant perturbation ------------------------------------------------

func isConstantExpr(e symb.Expr) bool {
	_, ok := e.(*symb.ConstantExpr)
	return ok
}

// ConstantPerturbation replaces the Site-th literal constant (in pre-order)
// in Template's body with NewValue.
type ConstantPerturbation struct {
	Template string
	Site     int
	NewValue field.Value
}

func (e *ConstantPerturbation) Kind() string { return "constant-perturbation" }
func (e *ConstantPerturbation) String() string {
	return fmt.Sprintf("constant-perturbation(%s#%d -> %s)", e.Template, e.Site, e.NewValue.String())
}

func (e *ConstantPerturbation) Apply(prog *circuit.Program) error {
	tmpl, ok := prog.Templates[e.Template]
	if !ok {
		return fmt.Errorf("unknown template %q", e.Template)
	}
	n := countMatches(tmpl.Body, isConstantExpr)
	if e.Site < 0 || e.Site >= n {
		return fmt.Errorf("constant site %d out of range (%d available) in %s", e.Site, n, e.Template)
	}
	r := &exprRewriter{match: isConstantExpr, target: e.Site, replace: func(symb.Expr) symb.Expr {
		return &symb.ConstantExpr{Value: e.NewValue}
	}}
	tmpl.Body = r.rewriteStmts(tmpl.Body)
	return nil
}

// --- operator substitution ------------------------------------------------

// arithSubstitutions pairs each swappable arithmetic operator with its
// same-arity-class counterpart (§4.6: "Add<->Sub, Mul<->Div").
var arithSubstitutions = map[symb.BinaryOp]symb.BinaryOp{
	symb.Add: symb.Sub,
	symb.Sub: symb.Add,
	symb.Mul: symb.Div,
	symb.Div: symb.Mul,
}

// compareSubstitutions pairs each swappable comparison with its
// same-arity-class counterpart (§4.6: "comparisons").
var compareSubstitutions = map[symb.CompareOp]symb.CompareOp{
	symb.Lt:  symb.Le,
	symb.Le:  symb.Lt,
	symb.Gt:  symb.Ge,
	symb.Ge:  symb.Gt,
	symb.Eq:  symb.NEq,
	symb.NEq: symb.Eq,
}

func isSubstitutableOp(e symb.Expr) bool {
	switch n := e.(type) {
	case *symb.BinaryExpr:
		_, ok := arithSubstitutions[n.Op]
		return ok
	case *symb.CompareExpr:
		_, ok := compareSubstitutions[n.Op]
		return ok
	}
	return false
}

func substituteOp(e symb.Expr) symb.Expr {
	switch n := e.(type) {
	case *symb.BinaryExpr:
		return &symb.BinaryExpr{Op: arithSubstitutions[n.Op], L: n.L, R: n.R}
	case *symb.CompareExpr:
		return &symb.CompareExpr{Op: compareSubstitutions[n.Op], L: n.L, R: n.R}
	}
	return e
}

// OperatorSubstitution swaps the Site-th substitutable operator (in
// pre-order) in Template's body for its same-arity-class counterpart.
type OperatorSubstitution struct {
	Template string
	Site     int
}

func (e *OperatorSubstitution) Kind() string   { return "operator-substitution" }
func (e *OperatorSubstitution) String() string { return fmt.Sprintf("operator-substitution(%s#%d)", e.Template, e.Site) }

func (e *OperatorSubstitution) Apply(prog *circuit.Program) error {
	tmpl, ok := prog.Templates[e.Template]
	if !ok {
		return fmt.Errorf("unknown template %q", e.Template)
	}
	n := countMatches(tmpl.Body, isSubstitutableOp)
	if e.Site < 0 || e.Site >= n {
		return fmt.Errorf("operator site %d out of range (%d available) in %s", e.Site, n, e.Template)
	}
	r := &exprRewriter{match: isSubstitutableOp, target: e.Site, replace: substituteOp}
	tmpl.Body = r.rewriteStmts(tmpl.Body)
	return nil
}

// --- statement deletion ----------------------------------------------------

func outputNames(t *circuit.Template) map[string]bool {
	out := map[string]bool{}
	for _, s := range t.Signals {
		if s.Kind == circuit.Output {
			out[s.Name] = true
		}
	}
	return out
}

func flattenStmts(stmts []circuit.Stmt) []circuit.Stmt {
	var out []circuit.Stmt
	for _, s := range stmts {
		out = append(out, s)
		switch st := s.(type) {
		case *circuit.IfStmt:
			out = append(out, flattenStmts(st.Then)...)
			out = append(out, flattenStmts(st.Else)...)
		case *circuit.ForStmt:
			out = append(out, flattenStmts(st.Body)...)
		case *circuit.WhileStmt:
			out = append(out, flattenStmts(st.Body)...)
		case *circuit.BlockStmt:
			out = append(out, flattenStmts(st.Body)...)
		}
	}
	return out
}

func stmtExprs(s circuit.Stmt) []symb.Expr {
	switch st := s.(type) {
	case *circuit.AssignStmt:
		return append([]symb.Expr{st.Value}, st.Indices...)
	case *circuit.ConstraintStmt:
		return []symb.Expr{st.L, st.R}
	case *circuit.ComponentDecl:
		return st.Args
	case *circuit.ConnectStmt:
		return append([]symb.Expr{st.Value}, st.Indices...)
	case *circuit.IfStmt:
		return []symb.Expr{st.Cond}
	case *circuit.ForStmt:
		return []symb.Expr{st.Cond}
	case *circuit.WhileStmt:
		return []symb.Expr{st.Cond}
	case *circuit.ReturnStmt:
		return []symb.Expr{st.Value}
	default:
		return nil
	}
}

// usedElsewhere reports whether as.Target is referenced as a free name by
// any statement in body other than as itself. Deleting an assignment a
// later statement still depends on would introduce an undefined name,
// which constraint (ii) forbids just as much as literally typing one.
func usedElsewhere(body []circuit.Stmt, as *circuit.AssignStmt) bool {
	for _, s := range flattenStmts(body) {
		if ps, ok := s.(*circuit.AssignStmt); ok && ps == as {
			continue
		}
		for _, e := range stmtExprs(s) {
			if e == nil {
				continue
			}
			for _, n := range symb.FreeNames(e) {
				if n == as.Target {
					return true
				}
			}
		}
	}
	return false
}

// stmtDeleter removes the target-th eligible assignment (in pre-order)
// from a statement tree, rebuilding every slice on the path to it.
type stmtDeleter struct {
	eligible func(*circuit.AssignStmt) bool
	idx      int
	target   int
	deleted  bool
}

func (d *stmtDeleter) run(stmts []circuit.Stmt) []circuit.Stmt {
	if stmts == nil {
		return nil
	}
	out := make([]circuit.Stmt, 0, len(stmts))
	for _, s := range stmts {
		if as, ok := s.(*circuit.AssignStmt); ok && d.eligible(as) {
			hit := d.idx == d.target
			d.idx++
			if hit {
				d.deleted = true
				continue
			}
			out = append(out, s)
			continue
		}
		out = append(out, d.descend(s))
	}
	return out
}

func (d *stmtDeleter) descend(s circuit.Stmt) circuit.Stmt {
	switch st := s.(type) {
	case *circuit.IfStmt:
		return &circuit.IfStmt{Cond: st.Cond, Then: d.run(st.Then), Else: d.run(st.Else)}
	case *circuit.ForStmt:
		return &circuit.ForStmt{Init: st.Init, Cond: st.Cond, Post: st.Post, Body: d.run(st.Body)}
	case *circuit.WhileStmt:
		return &circuit.WhileStmt{Cond: st.Cond, Body: d.run(st.Body)}
	case *circuit.BlockStmt:
		return &circuit.BlockStmt{Body: d.run(st.Body)}
	default:
		return s
	}
}

// StatementDeletion removes the Site-th eligible assignment statement (in
// pre-order) from Template's body. Eligible means: not assigning an output
// signal (§4.6 constraint iii) and not relied upon by any later statement
// (constraint ii).
type StatementDeletion struct {
	Template string
	Site     int
}

func (e *StatementDeletion) Kind() string   { return "statement-deletion" }
func (e *StatementDeletion) String() string { return fmt.Sprintf("statement-deletion(%s#%d)", e.Template, e.Site) }

func (e *StatementDeletion) Apply(prog *circuit.Program) error {
	tmpl, ok := prog.Templates[e.Template]
	if !ok {
		return fmt.Errorf("unknown template %q", e.Template)
	}
	outs := outputNames(tmpl)
	eligible := func(as *circuit.AssignStmt) bool { return !outs[as.Target] && !usedElsewhere(tmpl.Body, as) }

	counter := &stmtDeleter{eligible: eligible, target: -1}
	counter.run(tmpl.Body)
	if e.Site < 0 || e.Site >= counter.idx {
		return fmt.Errorf("deletion site %d out of range (%d available) in %s", e.Site, counter.idx, e.Template)
	}

	d := &stmtDeleter{eligible: eligible, target: e.Site}
	tmpl.Body = d.run(tmpl.Body)
	if !d.deleted {
		return fmt.Errorf("deletion site %d not found in %s", e.Site, e.Template)
	}
	return nil
}

// --- statement insertion ---------------------------------------------------

// InScopeNames returns every signal and local variable name Template
// declares, the universe statement insertion's RHS may reference.
func InScopeNames(t *circuit.Template) map[string]bool {
	scope := map[string]bool{}
	for _, s := range t.Signals {
		scope[s.Name] = true
	}
	for _, l := range t.Locals {
		scope[l.Name] = true
	}
	return scope
}

// StatementInsertion appends a single witness-only assignment of RHS to a
// freshly declared local variable NewVar. RHS may only reference names
// Template already declares (§4.6 constraint ii); the fresh variable and
// witness-only ("<--") form mean the new statement can never assign an
// output signal (constraint iii is vacuous here).
type StatementInsertion struct {
	Template string
	NewVar   string
	RHS      symb.Expr
}

func (e *StatementInsertion) Kind() string { return "statement-insertion" }
func (e *StatementInsertion) String() string {
	return fmt.Sprintf("statement-insertion(%s: var %s = %s)", e.Template, e.NewVar, e.RHS)
}

func (e *StatementInsertion) Apply(prog *circuit.Program) error {
	tmpl, ok := prog.Templates[e.Template]
	if !ok {
		return fmt.Errorf("unknown template %q", e.Template)
	}
	scope := InScopeNames(tmpl)
	for _, n := range symb.FreeNames(e.RHS) {
		if !scope[n] {
			return fmt.Errorf("statement insertion references undeclared name %q", n)
		}
	}
	for _, l := range tmpl.Locals {
		if l.Name == e.NewVar {
			return fmt.Errorf("%q is already declared in %s", e.NewVar, e.Template)
		}
	}
	tmpl.Locals = append(tmpl.Locals, circuit.VarDecl{Name: e.NewVar})
	tmpl.Body = append(tmpl.Body, &circuit.AssignStmt{Target: e.NewVar, Value: cloneExpr(e.RHS), Constrained: false})
	return nil
}

// --- weighted random edit-list generation ----------------------------------

// ValueRange is one weighted sampling bucket for a constant perturbation or
// an inserted expression's literal operand, matching §4.7's "finite set of
// ranges, each with a probability weight".
type ValueRange struct {
	Lo, Hi *big.Int
	Weight float64
}

func sampleRange(ranges []ValueRange, rnd *rand.Rand) *big.Int {
	total := 0.0
	for _, r := range ranges {
		total += r.Weight
	}
	if total <= 0 {
		return big.NewInt(0)
	}
	pick := rnd.Float64() * total
	for _, r := range ranges {
		if pick < r.Weight {
			span := new(big.Int).Sub(r.Hi, r.Lo)
			span.Add(span, big.NewInt(1))
			if span.Sign() <= 0 {
				return new(big.Int).Set(r.Lo)
			}
			return new(big.Int).Add(r.Lo, new(big.Int).Rand(rnd, span))
		}
		pick -= r.Weight
	}
	return new(big.Int).Set(ranges[len(ranges)-1].Lo)
}

// Weights configures the relative probability of each edit kind, the shape
// internal/config's loader populates from §6's mutation-configuration JSON.
type Weights struct {
	ConstantPerturbation float64
	OperatorSubstitution float64
	StatementDeletion    float64
	StatementInsertion   float64
}

type editKind int

const (
	kindConstant editKind = iota
	kindOperator
	kindDeleteStmt
	kindInsertStmt
)

func pickKind(w Weights, rnd *rand.Rand) editKind {
	total := w.ConstantPerturbation + w.OperatorSubstitution + w.StatementDeletion + w.StatementInsertion
	if total <= 0 {
		return kindConstant
	}
	pick := rnd.Float64() * total
	if pick < w.ConstantPerturbation {
		return kindConstant
	}
	pick -= w.ConstantPerturbation
	if pick < w.OperatorSubstitution {
		return kindOperator
	}
	pick -= w.OperatorSubstitution
	if pick < w.StatementDeletion {
		return kindDeleteStmt
	}
	return kindInsertStmt
}

func smallExpr(names []string, ranges []ValueRange, rnd *rand.Rand) symb.Expr {
	l := symb.Expr(&symb.NameExpr{Name: names[rnd.Intn(len(names))]})
	var r symb.Expr
	if len(ranges) > 0 && rnd.Intn(2) == 0 {
		r = &symb.ConstantExpr{Value: field.NewField(sampleRange(ranges, rnd))}
	} else {
		r = &symb.NameExpr{Name: names[rnd.Intn(len(names))]}
	}
	ops := []symb.BinaryOp{symb.Add, symb.Sub, symb.Mul}
	return &symb.BinaryExpr{Op: ops[rnd.Intn(len(ops))], L: l, R: r}
}

// RandomEditList draws up to k (capped at MaxEdits) edits against prog's
// named template, weighted by w. A draw whose kind has no eligible site is
// retried (bounded) rather than failing the whole call, since some kinds may
// have no site in the template at all (e.g. every output-assigning statement
// is never a deletion candidate). Sites are always counted on prog's
// unmodified template, not on the result of earlier draws.
func RandomEditList(prog *circuit.Program, templateName string, w Weights, k int, ranges []ValueRange, rnd *rand.Rand) (EditList, error) {
	if k > MaxEdits {
		k = MaxEdits
	}
	tmpl, ok := prog.Templates[templateName]
	if !ok {
		return EditList{}, fmt.Errorf("mutate: unknown template %q", templateName)
	}

	var edits []Edit
	for attempts := 0; len(edits) < k && attempts < k*8; attempts++ {
		switch pickKind(w, rnd) {
		case kindConstant:
			n := countMatches(tmpl.Body, isConstantExpr)
			if n == 0 {
				continue
			}
			edits = append(edits, &ConstantPerturbation{
				Template: templateName,
				Site:     rnd.Intn(n),
				NewValue: field.NewField(sampleRange(ranges, rnd)),
			})
		case kindOperator:
			n := countMatches(tmpl.Body, isSubstitutableOp)
			if n == 0 {
				continue
			}
			edits = append(edits, &OperatorSubstitution{Template: templateName, Site: rnd.Intn(n)})
		case kindDeleteStmt:
			outs := outputNames(tmpl)
			eligible := func(as *circuit.AssignStmt) bool { return !outs[as.Target] && !usedElsewhere(tmpl.Body, as) }
			counter := &stmtDeleter{eligible: eligible, target: -1}
			counter.run(tmpl.Body)
			if counter.idx == 0 {
				continue
			}
			edits = append(edits, &StatementDeletion{Template: templateName, Site: rnd.Intn(counter.idx)})
		case kindInsertStmt:
			scope := InScopeNames(tmpl)
			if len(scope) == 0 {
				continue
			}
			names := make([]string, 0, len(scope))
			for n := range scope {
				names = append(names, n)
			}
			sort.Strings(names)
			edits = append(edits, &StatementInsertion{
				Template: templateName,
				NewVar:   fmt.Sprintf("_mut%d", rnd.Intn(1<<30)),
				RHS:      smallExpr(names, ranges, rnd),
			})
		}
	}
	return NewEditList(edits)
}
