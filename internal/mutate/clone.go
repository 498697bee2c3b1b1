package mutate

import (
	"wellconstrained/internal/circuit"
	"wellconstrained/internal/symb"
)

// CloneProgram deep-copies prog so edits can be applied to the copy without
// disturbing the baseline. §4.6 requires every mutant to compose its edits
// onto the untouched baseline rather than onto a previously produced
// mutant, which only holds if each mutant starts from its own copy.
func CloneProgram(prog *circuit.Program) *circuit.Program {
	out := &circuit.Program{
		Templates: make(map[string]*circuit.Template, len(prog.Templates)),
		Functions: make(map[string]*circuit.Function, len(prog.Functions)),
		Main:      circuit.MainDecl{Template: prog.Main.Template, Args: cloneExprs(prog.Main.Args)},
	}
	for name, tmpl := range prog.Templates {
		out.Templates[name] = cloneTemplate(tmpl)
	}
	for name, fn := range prog.Functions {
		out.Functions[name] = cloneFunction(fn)
	}
	return out
}

func cloneTemplate(t *circuit.Template) *circuit.Template {
	out := &circuit.Template{
		Name:    t.Name,
		Params:  append([]string(nil), t.Params...),
		Signals: make([]circuit.SignalDecl, len(t.Signals)),
		Locals:  append([]circuit.VarDecl(nil), t.Locals...),
		Body:    cloneStmts(t.Body),
	}
	for i, s := range t.Signals {
		out.Signals[i] = circuit.SignalDecl{Name: s.Name, Kind: s.Kind, Dims: cloneExprs(s.Dims)}
	}
	return out
}

func cloneFunction(f *circuit.Function) *circuit.Function {
	return &circuit.Function{
		Name:   f.Name,
		Params: append([]string(nil), f.Params...),
		Locals: append([]circuit.VarDecl(nil), f.Locals...),
		Body:   cloneStmts(f.Body),
	}
}

func cloneStmts(body []circuit.Stmt) []circuit.Stmt {
	if body == nil {
		return nil
	}
	out := make([]circuit.Stmt, len(body))
	for i, s := range body {
		out[i] = cloneStmt(s)
	}
	return out
}

func cloneStmt(s circuit.Stmt) circuit.Stmt {
	switch st := s.(type) {
	case *circuit.VarDecl:
		cp := *st
		return &cp
	case *circuit.AssignStmt:
		return &circuit.AssignStmt{
			Target:      st.Target,
			Indices:     cloneExprs(st.Indices),
			Value:       cloneExpr(st.Value),
			Constrained: st.Constrained,
		}
	case *circuit.ConstraintStmt:
		return &circuit.ConstraintStmt{L: cloneExpr(st.L), R: cloneExpr(st.R)}
	case *circuit.ComponentDecl:
		return &circuit.ComponentDecl{Name: st.Name, Template: st.Template, Args: cloneExprs(st.Args)}
	case *circuit.ConnectStmt:
		return &circuit.ConnectStmt{
			Component:   st.Component,
			Signal:      st.Signal,
			Indices:     cloneExprs(st.Indices),
			Value:       cloneExpr(st.Value),
			Constrained: st.Constrained,
		}
	case *circuit.IfStmt:
		return &circuit.IfStmt{Cond: cloneExpr(st.Cond), Then: cloneStmts(st.Then), Else: cloneStmts(st.Else)}
	case *circuit.ForStmt:
		var init, post circuit.Stmt
		if st.Init != nil {
			init = cloneStmt(st.Init)
		}
		if st.Post != nil {
			post = cloneStmt(st.Post)
		}
		return &circuit.ForStmt{Init: init, Cond: cloneExpr(st.Cond), Post: post, Body: cloneStmts(st.Body)}
	case *circuit.WhileStmt:
		return &circuit.WhileStmt{Cond: cloneExpr(st.Cond), Body: cloneStmts(st.Body)}
	case *circuit.ReturnStmt:
		return &circuit.ReturnStmt{Value: cloneExpr(st.Value)}
	case *circuit.BlockStmt:
		return &circuit.BlockStmt{Body: cloneStmts(st.Body)}
	default:
		panic("mutate: unhandled statement variant in clone")
	}
}

func cloneExprs(es []symb.Expr) []symb.Expr {
	if es == nil {
		return nil
	}
	out := make([]symb.Expr, len(es))
	for i, e := range es {
		out[i] = cloneExpr(e)
	}
	return out
}

func cloneExpr(e symb.Expr) symb.Expr {
	switch n := e.(type) {
	case nil:
		return nil
	case *symb.ConstantExpr:
		return &symb.ConstantExpr{Value: n.Value}
	case *symb.NameExpr:
		return &symb.NameExpr{Name: n.Name}
	case *symb.UnaryExpr:
		return &symb.UnaryExpr{Op: n.Op, Arg: cloneExpr(n.Arg)}
	case *symb.BinaryExpr:
		return &symb.BinaryExpr{Op: n.Op, L: cloneExpr(n.L), R: cloneExpr(n.R)}
	case *symb.CompareExpr:
		return &symb.CompareExpr{Op: n.Op, L: cloneExpr(n.L), R: cloneExpr(n.R)}
	case *symb.BoolBinaryExpr:
		return &symb.BoolBinaryExpr{Op: n.Op, L: cloneExpr(n.L), R: cloneExpr(n.R)}
	case *symb.SelectExpr:
		return &symb.SelectExpr{Cond: cloneExpr(n.Cond), Then: cloneExpr(n.Then), Else: cloneExpr(n.Else)}
	case *symb.IndexExpr:
		return &symb.IndexExpr{Array: cloneExpr(n.Array), Indices: cloneExprs(n.Indices)}
	case *symb.CallExpr:
		return &symb.CallExpr{Callee: n.Callee, Args: cloneExprs(n.Args)}
	default:
		panic("mutate: unhandled expression variant in clone")
	}
}
