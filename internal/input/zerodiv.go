// zerodiv.go implements §4.7's zero-division-attempt heuristic: inspect the
// baseline trace for a denominator expression and, when it is linear or
// quadratic in a single free input, solve analytically for the inputs that
// zero it, seeding the input population with the solution. Grounded on
// internal/semantic/analyzer_type.go's use of math/big for exact integer
// arithmetic, generalised from overflow-bound checking to modular root
// solving.
package input

import (
	"math/big"

	"wellconstrained/internal/exec"
	"wellconstrained/internal/field"
	"wellconstrained/internal/symb"
)

// denominator is one candidate expression whose vanishing the heuristic
// wants to force: the right-hand operand of a Div/IntDiv/Mod binary
// expression anywhere in the baseline trace's outputs or constraints.
func findDenominators(tr *exec.Trace) []symb.Expr {
	var out []symb.Expr
	seen := map[string]bool{}
	add := func(e symb.Expr) {
		k := e.String()
		if !seen[k] {
			seen[k] = true
			out = append(out, e)
		}
	}
	var walk func(symb.Expr)
	walk = func(e symb.Expr) {
		switch n := e.(type) {
		case *symb.BinaryExpr:
			if n.Op == symb.Div || n.Op == symb.IntDiv || n.Op == symb.Mod {
				add(n.R)
			}
			walk(n.L)
			walk(n.R)
		case *symb.UnaryExpr:
			walk(n.Arg)
		case *symb.CompareExpr:
			walk(n.L)
			walk(n.R)
		case *symb.BoolBinaryExpr:
			walk(n.L)
			walk(n.R)
		case *symb.SelectExpr:
			walk(n.Cond)
			walk(n.Then)
			walk(n.Else)
		case *symb.IndexExpr:
			walk(n.Array)
			for _, ix := range n.Indices {
				walk(ix)
			}
		case *symb.CallExpr:
			for _, a := range n.Args {
				walk(a)
			}
		}
	}
	for _, e := range tr.Outputs {
		walk(e)
	}
	for _, c := range tr.Constraints {
		walk(c.L)
		walk(c.R)
	}
	return out
}

// linearCoeffs reports whether e is affine in name - e == a*name + b for
// constant a, b - returning (a, b, true). Only the shapes symbolic execution
// actually produces (sums/differences of a scaled name and constants) are
// recognised; anything else reports ok=false so the caller skips it rather
// than mis-solving.
func linearCoeffs(e symb.Expr, name string, fc *field.Context) (a, b *big.Int, ok bool) {
	switch n := e.(type) {
	case *symb.ConstantExpr:
		return big.NewInt(0), n.Value.Int(), true
	case *symb.NameExpr:
		if n.Name == name {
			return big.NewInt(1), big.NewInt(0), true
		}
		return nil, nil, false
	case *symb.UnaryExpr:
		if n.Op != symb.Neg {
			return nil, nil, false
		}
		a1, b1, ok := linearCoeffs(n.Arg, name, fc)
		if !ok {
			return nil, nil, false
		}
		return fc.Neg(a1), fc.Neg(b1), true
	case *symb.BinaryExpr:
		switch n.Op {
		case symb.Add, symb.Sub:
			a1, b1, ok1 := linearCoeffs(n.L, name, fc)
			a2, b2, ok2 := linearCoeffs(n.R, name, fc)
			if !ok1 || !ok2 {
				return nil, nil, false
			}
			if n.Op == symb.Sub {
				a2, b2 = fc.Neg(a2), fc.Neg(b2)
			}
			return fc.Add(a1, a2), fc.Add(b1, b2), true
		case symb.Mul:
			// constant * linear, either order
			if c, ok := n.L.(*symb.ConstantExpr); ok {
				a1, b1, ok1 := linearCoeffs(n.R, name, fc)
				if !ok1 {
					return nil, nil, false
				}
				return fc.Mul(c.Value.Int(), a1), fc.Mul(c.Value.Int(), b1), true
			}
			if c, ok := n.R.(*symb.ConstantExpr); ok {
				a1, b1, ok1 := linearCoeffs(n.L, name, fc)
				if !ok1 {
					return nil, nil, false
				}
				return fc.Mul(c.Value.Int(), a1), fc.Mul(c.Value.Int(), b1), true
			}
			return nil, nil, false
		}
	}
	return nil, nil, false
}

// quadraticCoeffs reports whether e == a*name^2 + b*name + c, the only
// nonlinear shape §4.7 asks the heuristic to handle directly ("quadratic
// case handled directly; otherwise skipped").
func quadraticCoeffs(e symb.Expr, name string, fc *field.Context) (a, b, c *big.Int, ok bool) {
	if a1, b1, ok1 := linearCoeffs(e, name, fc); ok1 {
		return big.NewInt(0), a1, b1, true
	}
	if n, ok := e.(*symb.BinaryExpr); ok {
		switch n.Op {
		case symb.Add, symb.Sub:
			a1, b1, c1, ok1 := quadraticCoeffs(n.L, name, fc)
			a2, b2, c2, ok2 := quadraticCoeffs(n.R, name, fc)
			if !ok1 || !ok2 {
				return nil, nil, nil, false
			}
			if n.Op == symb.Sub {
				a2, b2, c2 = fc.Neg(a2), fc.Neg(b2), fc.Neg(c2)
			}
			return fc.Add(a1, a2), fc.Add(b1, b2), fc.Add(c1, c2), true
		case symb.Mul:
			al, bl, cl, okl := quadraticCoeffs(n.L, name, fc)
			ar, br, cr, okr := quadraticCoeffs(n.R, name, fc)
			if !okl || !okr {
				return nil, nil, nil, false
			}
			// (al*x+bl*x... ) — only accept when at least one side is a
			// bare constant, i.e. degree(L)+degree(R) <= 2.
			degL := 0
			if al.Sign() != 0 {
				degL = 2
			} else if bl.Sign() != 0 {
				degL = 1
			}
			degR := 0
			if ar.Sign() != 0 {
				degR = 2
			} else if br.Sign() != 0 {
				degR = 1
			}
			if degL+degR > 2 {
				return nil, nil, nil, false
			}
			// Multiply the two degree-<=1 polynomials (bl*x+cl)*(br*x+cr).
			a3 := fc.Add(fc.Mul(al, cr), fc.Mul(ar, cl))
			a3 = fc.Add(a3, fc.Mul(bl, br))
			b3 := fc.Add(fc.Mul(bl, cr), fc.Mul(br, cl))
			c3 := fc.Mul(cl, cr)
			return a3, b3, c3, true
		}
	}
	return nil, nil, nil, false
}

// tonelliShanks returns a square root of n modulo the odd prime p, if one
// exists. Standard algorithm; used only by the quadratic zero-division
// solver below.
func tonelliShanks(n *big.Int, p *big.Int) (*big.Int, bool) {
	n = new(big.Int).Mod(n, p)
	if n.Sign() == 0 {
		return big.NewInt(0), true
	}
	one := big.NewInt(1)
	pMinus1 := new(big.Int).Sub(p, one)
	exp := new(big.Int).Div(pMinus1, big.NewInt(2))
	if new(big.Int).Exp(n, exp, p).Cmp(one) != 0 {
		return nil, false // n is a non-residue
	}

	// p ≡ 3 (mod 4): closed form r = n^((p+1)/4).
	four := big.NewInt(4)
	if new(big.Int).Mod(p, four).Cmp(big.NewInt(3)) == 0 {
		exp := new(big.Int).Div(new(big.Int).Add(p, one), four)
		return new(big.Int).Exp(n, exp, p), true
	}

	// General Tonelli-Shanks for p ≡ 1 (mod 4).
	q := new(big.Int).Set(pMinus1)
	s := 0
	for new(big.Int).Mod(q, big.NewInt(2)).Sign() == 0 {
		q.Div(q, big.NewInt(2))
		s++
	}
	z := big.NewInt(2)
	for new(big.Int).Exp(z, exp, p).Cmp(one) == 0 {
		z.Add(z, one)
	}
	m := s
	c := new(big.Int).Exp(z, q, p)
	t := new(big.Int).Exp(n, q, p)
	qPlus1Over2 := new(big.Int).Div(new(big.Int).Add(q, one), big.NewInt(2))
	r := new(big.Int).Exp(n, qPlus1Over2, p)

	for t.Cmp(one) != 0 {
		i, tt := 0, new(big.Int).Set(t)
		for tt.Cmp(one) != 0 {
			tt.Exp(tt, big.NewInt(2), p)
			i++
			if i >= m {
				return nil, false
			}
		}
		b := new(big.Int).Exp(c, new(big.Int).Lsh(one, uint(m-i-1)), p)
		m = i
		c = new(big.Int).Exp(b, big.NewInt(2), p)
		t = new(big.Int).Mod(new(big.Int).Mul(t, c), p)
		r = new(big.Int).Mod(new(big.Int).Mul(r, b), p)
	}
	return r, true
}

// solveLinear returns the unique root of a*x+b=0 mod P, when a != 0.
func solveLinear(a, b *big.Int, fc *field.Context) (*big.Int, bool) {
	inv, ok := fc.Inv(a)
	if !ok {
		return nil, false
	}
	return fc.Mul(fc.Neg(b), inv), true
}

// solveQuadratic returns one root of a*x^2+b*x+c=0 mod P via the usual
// quadratic formula, adapted to modular inverses and a modular square root.
func solveQuadratic(a, b, c *big.Int, fc *field.Context) (*big.Int, bool) {
	if a.Sign() == 0 {
		return solveLinear(b, c, fc)
	}
	// discriminant = b^2 - 4ac
	disc := fc.Sub(fc.Mul(b, b), fc.Mul(big.NewInt(4), fc.Mul(a, c)))
	root, ok := tonelliShanks(disc, fc.P)
	if !ok {
		return nil, false
	}
	twoA, ok := fc.Inv(fc.Mul(big.NewInt(2), a))
	if !ok {
		return nil, false
	}
	num := fc.Sub(fc.Neg(b), root)
	return fc.Mul(num, twoA), true
}

// ZeroDivisionSeed inspects tr for a denominator expression affine or
// quadratic in exactly one declared input, qualified as prefix+"."+name
// (the qualification internal/exec gives every free root input in a
// canonical trace), and returns the unqualified input name plus a concrete
// value that drives the denominator to zero. ok is false when no
// denominator recognisable by this heuristic was found - §4.7 allows
// skipping anything beyond the quadratic case.
func ZeroDivisionSeed(tr *exec.Trace, prefix string, inputNames []string, fc *field.Context) (name string, value field.Value, ok bool) {
	qualified := map[string]string{} // prefix.name -> name
	for _, n := range inputNames {
		qualified[prefix+"."+n] = n
	}
	for _, den := range findDenominators(tr) {
		free := symb.FreeNames(den)
		var candidateQualified string
		count := 0
		for _, n := range free {
			if _, isInput := qualified[n]; isInput {
				candidateQualified = n
				count++
			}
		}
		if count != 1 {
			continue
		}
		if a, b, c, qok := quadraticCoeffs(den, candidateQualified, fc); qok {
			if root, sok := solveQuadratic(a, b, c, fc); sok {
				return qualified[candidateQualified], field.NewField(root), true
			}
		}
	}
	return "", field.Value{}, false
}

// SeedPopulation overlays ZeroDivisionSeed's solution (if any) onto every
// individual's value for that input, leaving the rest of each individual's
// values (and the population's size) untouched, so the seed coexists with
// genuine diversity rather than cloning one individual n times.
func SeedPopulation(pop []Individual, tr *exec.Trace, prefix string, inputNames []string, fc *field.Context) []Individual {
	name, value, ok := ZeroDivisionSeed(tr, prefix, inputNames, fc)
	if !ok {
		return pop
	}
	for i := range pop {
		if _, has := pop[i].Values[name]; has {
			pop[i].Values[name] = value
		}
	}
	return pop
}
