package exec

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"wellconstrained/internal/errors"
	"wellconstrained/internal/symb"
)

// resolveExpr substitutes every free name in expr against s's environment,
// expanding function calls and component-signal references as it goes, so
// the result contains only names that are genuinely free in the whole
// program (unconnected top-level inputs).
func (e *Engine) resolveExpr(s *scope, expr symb.Expr) (symb.Expr, error) {
	switch n := expr.(type) {
	case *symb.ConstantExpr:
		return n, nil

	case *symb.NameExpr:
		if dot := strings.Index(n.Name, "."); dot >= 0 {
			return e.readComponentSignal(s, n.Name[:dot], n.Name[dot+1:])
		}
		if v, ok := s.env[n.Name]; ok {
			return v, nil
		}
		placeholder := &symb.NameExpr{Name: s.prefix + "." + n.Name}
		s.env[n.Name] = placeholder
		return placeholder, nil

	case *symb.UnaryExpr:
		arg, err := e.resolveExpr(s, n.Arg)
		if err != nil {
			return nil, err
		}
		return &symb.UnaryExpr{Op: n.Op, Arg: arg}, nil

	case *symb.BinaryExpr:
		l, err := e.resolveExpr(s, n.L)
		if err != nil {
			return nil, err
		}
		r, err := e.resolveExpr(s, n.R)
		if err != nil {
			return nil, err
		}
		return &symb.BinaryExpr{Op: n.Op, L: l, R: r}, nil

	case *symb.CompareExpr:
		l, err := e.resolveExpr(s, n.L)
		if err != nil {
			return nil, err
		}
		r, err := e.resolveExpr(s, n.R)
		if err != nil {
			return nil, err
		}
		return &symb.CompareExpr{Op: n.Op, L: l, R: r}, nil

	case *symb.BoolBinaryExpr:
		l, err := e.resolveExpr(s, n.L)
		if err != nil {
			return nil, err
		}
		r, err := e.resolveExpr(s, n.R)
		if err != nil {
			return nil, err
		}
		return &symb.BoolBinaryExpr{Op: n.Op, L: l, R: r}, nil

	case *symb.SelectExpr:
		c, err := e.resolveExpr(s, n.Cond)
		if err != nil {
			return nil, err
		}
		t, err := e.resolveExpr(s, n.Then)
		if err != nil {
			return nil, err
		}
		el, err := e.resolveExpr(s, n.Else)
		if err != nil {
			return nil, err
		}
		return &symb.SelectExpr{Cond: c, Then: t, Else: el}, nil

	case *symb.IndexExpr:
		return e.resolveIndex(s, n)

	case *symb.CallExpr:
		args := make([]symb.Expr, len(n.Args))
		for i, a := range n.Args {
			v, err := e.resolveExpr(s, a)
			if err != nil {
				return nil, err
			}
			args[i] = e.normalise(v)
		}
		return e.invokeFunction(n.Callee, args)

	default:
		return nil, fmt.Errorf("exec: unhandled expression type %T", expr)
	}
}

// resolveIndex tries to resolve an IndexExpr whose base is a bare local
// array name and whose indices all fold to constants against the flattened
// "name[k]" env entry bindingKey writes produce; anything else (symbolic
// index, or a base expression that is not a plain name) is resolved
// structurally and left as a symbolic IndexExpr. A constant index is checked
// against the base signal's declared dimension, the same compile-time bound
// bindingKey enforces on the write side.
func (e *Engine) resolveIndex(s *scope, n *symb.IndexExpr) (symb.Expr, error) {
	if name, ok := n.Array.(*symb.NameExpr); ok && !strings.Contains(name.Name, ".") {
		decl, hasDecl := e.signalDecl(s, name.Name)
		key := name.Name
		allConst := true
		for i, ix := range n.Indices {
			v, err := e.resolveExpr(s, ix)
			if err != nil {
				return nil, err
			}
			v = e.normalise(v)
			c, ok := v.(*symb.ConstantExpr)
			if !ok {
				allConst = false
				break
			}
			if hasDecl && i < len(decl.Dims) {
				if dim, ok := e.constDim(s, decl.Dims[i]); ok {
					idx := c.Value.Int().Int64()
					if idx < 0 || idx >= int64(dim) {
						return nil, errors.CompileTimeOOB(name.Name, int(idx), dim, errors.Position{Template: s.templateName, StmtIdx: -1})
					}
				}
			}
			key += "[" + c.Value.String() + "]"
		}
		if allConst {
			if v, ok := s.env[key]; ok {
				return v, nil
			}
		}
	}
	arr, err := e.resolveExpr(s, n.Array)
	if err != nil {
		return nil, err
	}
	indices := make([]symb.Expr, len(n.Indices))
	for i, ix := range n.Indices {
		v, err := e.resolveExpr(s, ix)
		if err != nil {
			return nil, err
		}
		indices[i] = v
	}
	return &symb.IndexExpr{Array: arr, Indices: indices}, nil
}

// invokeFunction inlines a pure function call: a fresh scope seeded with the
// resolved arguments, executed the way a template body is, except a
// function may not declare signals or components. Recursion is bounded by a
// hard call-depth cap, approximating the specification's "strictly
// decreasing measure" requirement with a circuit breaker, since the measure
// itself is a property of the source program this engine cannot assume.
func (e *Engine) invokeFunction(name string, args []symb.Expr) (symb.Expr, error) {
	fn, ok := e.Program.Functions[name]
	if !ok {
		return nil, fmt.Errorf("exec: call to unknown function %q", name)
	}
	e.callDepth[name]++
	defer func() { e.callDepth[name]-- }()
	if e.callDepth[name] > maxCallDepth {
		return nil, errors.UnboundedRecursion(name, errors.Position{Template: name, StmtIdx: -1})
	}

	fs := &scope{templateName: name, prefix: fmt.Sprintf("%s#%d", name, e.callDepth[name]), env: make(map[string]symb.Expr), assigned: make(map[string]bool), isFunction: true}
	for i, p := range fn.Params {
		if i < len(args) {
			fs.env[p] = args[i]
		}
	}
	for _, l := range fn.Locals {
		fs.env[l.Name] = zero()
	}
	if err := e.execStmts(fs, fn.Body); err != nil {
		return nil, pkgerrors.Wrapf(err, "calling %s", fs.prefix)
	}
	if fs.returned != nil {
		return fs.returned, nil
	}
	return zero(), nil
}
