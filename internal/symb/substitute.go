package symb

// Substitute returns a new expression with every NameExpr whose name is a
// key of env replaced by the corresponding expression. Sub-trees with no
// matching name are returned unchanged (by reference) rather than copied,
// since expressions are immutable once constructed.
func Substitute(e Expr, env map[string]Expr) Expr {
	switch n := e.(type) {
	case *ConstantExpr:
		return n
	case *NameExpr:
		if repl, ok := env[n.Name]; ok {
			return repl
		}
		return n
	case *UnaryExpr:
		arg := Substitute(n.Arg, env)
		if arg == n.Arg {
			return n
		}
		return &UnaryExpr{Op: n.Op, Arg: arg}
	case *BinaryExpr:
		l, r := Substitute(n.L, env), Substitute(n.R, env)
		if l == n.L && r == n.R {
			return n
		}
		return &BinaryExpr{Op: n.Op, L: l, R: r}
	case *CompareExpr:
		l, r := Substitute(n.L, env), Substitute(n.R, env)
		if l == n.L && r == n.R {
			return n
		}
		return &CompareExpr{Op: n.Op, L: l, R: r}
	case *BoolBinaryExpr:
		l, r := Substitute(n.L, env), Substitute(n.R, env)
		if l == n.L && r == n.R {
			return n
		}
		return &BoolBinaryExpr{Op: n.Op, L: l, R: r}
	case *SelectExpr:
		c, t, el := Substitute(n.Cond, env), Substitute(n.Then, env), Substitute(n.Else, env)
		if c == n.Cond && t == n.Then && el == n.Else {
			return n
		}
		return &SelectExpr{Cond: c, Then: t, Else: el}
	case *IndexExpr:
		arr := Substitute(n.Array, env)
		idx := make([]Expr, len(n.Indices))
		changed := arr != n.Array
		for i, ix := range n.Indices {
			idx[i] = Substitute(ix, env)
			if idx[i] != ix {
				changed = true
			}
		}
		if !changed {
			return n
		}
		return &IndexExpr{Array: arr, Indices: idx}
	case *CallExpr:
		args := make([]Expr, len(n.Args))
		changed := false
		for i, a := range n.Args {
			args[i] = Substitute(a, env)
			if args[i] != a {
				changed = true
			}
		}
		if !changed {
			return n
		}
		return &CallExpr{Callee: n.Callee, Args: args}
	default:
		return e
	}
}
