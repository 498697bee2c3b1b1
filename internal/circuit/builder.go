package circuit

import (
	"wellconstrained/internal/field"
	"wellconstrained/internal/symb"
)

// Builder provides a fluent, append-only API for constructing a Program
// programmatically, the way internal/fixture's mini-parser and the test
// suites assemble circuits without hand-nesting struct literals. Side
// effects across sibling sub-components are linearised in the order they
// are appended, pinning open question (iv) to left-to-right AST order.
type Builder struct {
	program *Program
}

func NewBuilder() *Builder {
	return &Builder{program: &Program{
		Templates: make(map[string]*Template),
		Functions: make(map[string]*Function),
	}}
}

func (b *Builder) Build() *Program { return b.program }

// Template starts (or resumes) building a named template and returns a
// TemplateBuilder scoped to it.
func (b *Builder) Template(name string, params ...string) *TemplateBuilder {
	t, ok := b.program.Templates[name]
	if !ok {
		t = &Template{Name: name, Params: params}
		b.program.Templates[name] = t
	}
	return &TemplateBuilder{program: b.program, t: t}
}

// Function starts (or resumes) building a named function.
func (b *Builder) Function(name string, params ...string) *FunctionBuilder {
	f, ok := b.program.Functions[name]
	if !ok {
		f = &Function{Name: name, Params: params}
		b.program.Functions[name] = f
	}
	return &FunctionBuilder{program: b.program, f: f}
}

// Main sets the entry template and its actual template-parameter arguments.
func (b *Builder) Main(template string, args ...symb.Expr) *Builder {
	b.program.Main = MainDecl{Template: template, Args: args}
	return b
}

// TemplateBuilder appends signals, locals, and statements to one template.
type TemplateBuilder struct {
	program *Program
	t       *Template
}

func (tb *TemplateBuilder) Signal(name string, kind SignalKind, dims ...symb.Expr) *TemplateBuilder {
	tb.t.Signals = append(tb.t.Signals, SignalDecl{Name: name, Kind: kind, Dims: dims})
	return tb
}

func (tb *TemplateBuilder) Local(name string) *TemplateBuilder {
	tb.t.Locals = append(tb.t.Locals, VarDecl{Name: name})
	return tb
}

func (tb *TemplateBuilder) Stmt(s Stmt) *TemplateBuilder {
	tb.t.Body = append(tb.t.Body, s)
	return tb
}

func (tb *TemplateBuilder) Done() *Builder { return &Builder{program: tb.program} }

// FunctionBuilder appends locals and statements to one function.
type FunctionBuilder struct {
	program *Program
	f       *Function
}

func (fb *FunctionBuilder) Local(name string) *FunctionBuilder {
	fb.f.Locals = append(fb.f.Locals, VarDecl{Name: name})
	return fb
}

func (fb *FunctionBuilder) Stmt(s Stmt) *FunctionBuilder {
	fb.f.Body = append(fb.f.Body, s)
	return fb
}

func (fb *FunctionBuilder) Done() *Builder { return &Builder{program: fb.program} }

// Convenience constructors for statements and expressions, so call sites
// read like the circuit source they model instead of raw struct literals.

func Assign(target string, value symb.Expr, constrained bool, indices ...symb.Expr) *AssignStmt {
	return &AssignStmt{Target: target, Indices: indices, Value: value, Constrained: constrained}
}

func Constraint(l, r symb.Expr) *ConstraintStmt {
	return &ConstraintStmt{L: l, R: r}
}

func Component(name, template string, args ...symb.Expr) *ComponentDecl {
	return &ComponentDecl{Name: name, Template: template, Args: args}
}

func Connect(component, signal string, value symb.Expr, constrained bool, indices ...symb.Expr) *ConnectStmt {
	return &ConnectStmt{Component: component, Signal: signal, Indices: indices, Value: value, Constrained: constrained}
}

func If(cond symb.Expr, then []Stmt, els []Stmt) *IfStmt {
	return &IfStmt{Cond: cond, Then: then, Else: els}
}

func Name(n string) symb.Expr { return &symb.NameExpr{Name: n} }

func Const(i int64) symb.Expr {
	return &symb.ConstantExpr{Value: field.NewFieldInt64(i)}
}
