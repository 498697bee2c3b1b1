package fixture

import (
	"fmt"
	"math/big"

	"wellconstrained/internal/circuit"
	"wellconstrained/internal/field"
	"wellconstrained/internal/symb"
)

// ParseError reports one recoverable syntax error, in the spirit of the
// teacher's own collected-errors parser rather than a fail-fast one.
type ParseError struct {
	Message string
	Line    int
	Column  int
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// parser walks a flat token slice with the peek/advance/match/consume
// vocabulary the teacher's internal/parser uses, adapted to participle's
// lexer.Token positions instead of a hand-rolled token type.
type parser struct {
	toks    []token
	current int
	errors  []ParseError
}

// Parse builds a circuit.Program from Circom-like source text. filename is
// used only for error messages.
func Parse(filename, source string) (*circuit.Program, error) {
	toks, err := tokenize(filename, source)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	prog := p.parseProgram()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return prog, nil
}

func (p *parser) peek() token     { return p.toks[p.current] }
func (p *parser) previous() token { return p.toks[p.current-1] }
func (p *parser) atEnd() bool     { return p.peek().Kind == eofKind }

func (p *parser) advance() token {
	if !p.atEnd() {
		p.current++
	}
	return p.previous()
}

// checkKind matches on the lexer's token class (Ident, Integer, Operator,
// Punctuation); checkLit additionally requires an exact lexeme, which is how
// keywords ("template", "signal", ...) are recognised without a dedicated
// keyword-token class.
func (p *parser) checkKind(kind string) bool {
	return !p.atEnd() && p.peek().Kind == kind
}

func (p *parser) checkLit(lit string) bool {
	return !p.atEnd() && p.peek().Value == lit
}

func (p *parser) matchLit(lits ...string) bool {
	for _, l := range lits {
		if p.checkLit(l) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *parser) errorAt(tok token, message string) {
	p.errors = append(p.errors, ParseError{Message: message, Line: tok.Pos.Line, Column: tok.Pos.Column})
}

func (p *parser) expectLit(lit, message string) {
	if !p.matchLit(lit) {
		p.errorAt(p.peek(), message)
	}
}

func (p *parser) expectIdent(message string) string {
	if p.checkKind("Ident") {
		return p.advance().Value
	}
	p.errorAt(p.peek(), message)
	return "<error>"
}

func (p *parser) parseProgram() *circuit.Program {
	b := circuit.NewBuilder()
	for !p.atEnd() {
		switch {
		case p.checkLit("template"):
			p.parseTemplate(b)
		case p.checkLit("function"):
			p.parseFunction(b)
		case p.checkLit("component"):
			p.advance()
			p.expectLit("main", "expected 'main' after top-level 'component'")
			p.expectLit("=", "expected '=' in main component declaration")
			name := p.expectIdent("expected main template name")
			args := p.parseArgListOptional()
			p.expectLit(";", "expected ';' after main declaration")
			b.Main(name, args...)
		default:
			p.errorAt(p.peek(), "expected 'template', 'function', or 'component main'")
			p.advance()
		}
	}
	return b.Build()
}

func (p *parser) parseTemplate(b *circuit.Builder) {
	p.advance() // "template"
	name := p.expectIdent("expected template name")
	params := p.parseParamListOptional()
	tb := b.Template(name, params...)
	p.expectLit("{", "expected '{' to start template body")
	for !p.atEnd() && !p.checkLit("}") {
		if p.checkLit("signal") {
			p.parseSignalDecl(tb)
			continue
		}
		if p.checkLit("var") {
			p.parseVarDecl(tb)
			continue
		}
		tb.Stmt(p.parseStmt())
	}
	p.expectLit("}", "expected '}' to close template body")
}

func (p *parser) parseFunction(b *circuit.Builder) {
	p.advance() // "function"
	name := p.expectIdent("expected function name")
	params := p.parseParamListOptional()
	fb := b.Function(name, params...)
	p.expectLit("{", "expected '{' to start function body")
	for !p.atEnd() && !p.checkLit("}") {
		if p.checkLit("var") {
			fb.Local(p.varDeclName())
			continue
		}
		fb.Stmt(p.parseStmt())
	}
	p.expectLit("}", "expected '}' to close function body")
}

func (p *parser) parseParamListOptional() []string {
	var params []string
	p.expectLit("(", "expected '(' in parameter list")
	if !p.checkLit(")") {
		for {
			params = append(params, p.expectIdent("expected parameter name"))
			if !p.matchLit(",") {
				break
			}
		}
	}
	p.expectLit(")", "expected ')' to close parameter list")
	return params
}

func (p *parser) parseArgListOptional() []symb.Expr {
	var args []symb.Expr
	p.expectLit("(", "expected '(' in argument list")
	if !p.checkLit(")") {
		for {
			args = append(args, p.parseExpr())
			if !p.matchLit(",") {
				break
			}
		}
	}
	p.expectLit(")", "expected ')' to close argument list")
	return args
}

func (p *parser) parseDims() []symb.Expr {
	var dims []symb.Expr
	for p.matchLit("[") {
		dims = append(dims, p.parseExpr())
		p.expectLit("]", "expected ']' after array dimension")
	}
	return dims
}

func (p *parser) parseSignalDecl(tb *circuit.TemplateBuilder) {
	p.advance() // "signal"
	kind := circuit.Intermediate
	switch {
	case p.matchLit("input"):
		kind = circuit.Input
	case p.matchLit("output"):
		kind = circuit.Output
	}
	name := p.expectIdent("expected signal name")
	dims := p.parseDims()
	p.expectLit(";", "expected ';' after signal declaration")
	tb.Signal(name, kind, dims...)
}

func (p *parser) varDeclName() string {
	p.advance() // "var"
	name := p.expectIdent("expected variable name")
	p.parseDims() // dimensions are tracked only via later indexed assignment
	p.expectLit(";", "expected ';' after var declaration")
	return name
}

func (p *parser) parseVarDecl(tb *circuit.TemplateBuilder) {
	tb.Local(p.varDeclName())
}

func (p *parser) parseBlock() []circuit.Stmt {
	p.expectLit("{", "expected '{' to start block")
	var body []circuit.Stmt
	for !p.atEnd() && !p.checkLit("}") {
		body = append(body, p.parseStmt())
	}
	p.expectLit("}", "expected '}' to close block")
	return body
}

func (p *parser) parseStmt() circuit.Stmt {
	switch {
	case p.checkLit("if"):
		return p.parseIf()
	case p.checkLit("for"):
		return p.parseFor()
	case p.checkLit("while"):
		return p.parseWhile()
	case p.checkLit("return"):
		return p.parseReturn()
	case p.checkLit("component"):
		return p.parseComponentDecl()
	case p.checkLit("{"):
		return &circuit.BlockStmt{Body: p.parseBlock()}
	default:
		return p.parseAssignConnectOrConstraint()
	}
}

func (p *parser) parseIf() circuit.Stmt {
	p.advance() // "if"
	p.expectLit("(", "expected '(' after 'if'")
	cond := p.parseExpr()
	p.expectLit(")", "expected ')' after if condition")
	then := p.parseBlock()
	var els []circuit.Stmt
	if p.matchLit("else") {
		if p.checkLit("if") {
			els = []circuit.Stmt{p.parseIf()}
		} else {
			els = p.parseBlock()
		}
	}
	return circuit.If(cond, then, els)
}

func (p *parser) parseFor() circuit.Stmt {
	p.advance() // "for"
	p.expectLit("(", "expected '(' after 'for'")
	init := p.parseAssignConnectOrConstraint()
	cond := p.parseExpr()
	p.expectLit(";", "expected ';' after for-condition")
	post := p.parseAssignConnectOrConstraintNoSemi()
	p.expectLit(")", "expected ')' after for-clauses")
	body := p.parseBlock()
	return &circuit.ForStmt{Init: init, Cond: cond, Post: post, Body: body}
}

func (p *parser) parseWhile() circuit.Stmt {
	p.advance() // "while"
	p.expectLit("(", "expected '(' after 'while'")
	cond := p.parseExpr()
	p.expectLit(")", "expected ')' after while condition")
	body := p.parseBlock()
	return &circuit.WhileStmt{Cond: cond, Body: body}
}

func (p *parser) parseReturn() circuit.Stmt {
	p.advance() // "return"
	var v symb.Expr
	if !p.checkLit(";") {
		v = p.parseExpr()
	}
	p.expectLit(";", "expected ';' after return statement")
	return &circuit.ReturnStmt{Value: v}
}

func (p *parser) parseComponentDecl() circuit.Stmt {
	p.advance() // "component"
	name := p.expectIdent("expected component instance name")
	p.expectLit("=", "expected '=' in component declaration")
	template := p.expectIdent("expected template name")
	args := p.parseArgListOptional()
	p.expectLit(";", "expected ';' after component declaration")
	return circuit.Component(name, template, args...)
}

// parseAssignConnectOrConstraint parses one of: AssignStmt, ConnectStmt, or
// ConstraintStmt, all of which start with an expression-like prefix and are
// disambiguated only once an assignment operator, or its absence, is seen —
// the same lookahead problem the teacher's parser solves with speculative
// matching rather than a longer fixed lookahead.
func (p *parser) parseAssignConnectOrConstraint() circuit.Stmt {
	s := p.parseAssignConnectOrConstraintNoSemi()
	p.expectLit(";", "expected ';' after statement")
	return s
}

func (p *parser) parseAssignConnectOrConstraintNoSemi() circuit.Stmt {
	start := p.current
	if target, component, indices, ok := p.tryParseLValue(); ok {
		if p.matchLit("<--", "<==") {
			constrained := p.previous().Value == "<=="
			value := p.parseExpr()
			if component != "" {
				return circuit.Connect(component, target, value, constrained, indices...)
			}
			return circuit.Assign(target, value, constrained, indices...)
		}
	}
	// Not an assignment: rewind and parse a full expression, then require
	// the bare-equality constraint operator.
	p.current = start
	l := p.parseExpr()
	p.expectLit("===", "expected '===' in constraint statement")
	r := p.parseExpr()
	return circuit.Constraint(l, r)
}

// tryParseLValue speculatively parses "name(.name)?([idx])*" and reports
// whether the cursor ended up positioned right before an assignment
// operator. component is non-empty only for the dotted (connect) form.
func (p *parser) tryParseLValue() (target, component string, indices []symb.Expr, ok bool) {
	if !p.checkKind("Ident") {
		return "", "", nil, false
	}
	first := p.advance().Value
	if p.matchLit(".") {
		component = first
		target = p.expectIdent("expected signal name after '.'")
	} else {
		target = first
	}
	indices = p.parseDims()
	return target, component, indices, p.checkLit("<--") || p.checkLit("<==")
}

// Operator precedence, low to high; ** is right-associative and handled in
// parseUnary's caller via a dedicated recursive step.
var binaryPrecedence = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6,
	"<": 7, "<=": 7, ">": 7, ">=": 7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "\\": 10, "%": 10,
}

func (p *parser) parseExpr() symb.Expr {
	return p.parseTernary()
}

func (p *parser) parseTernary() symb.Expr {
	cond := p.parseBinary(1)
	if p.matchLit("?") {
		then := p.parseExpr()
		p.expectLit(":", "expected ':' in conditional expression")
		els := p.parseExpr()
		return &symb.SelectExpr{Cond: cond, Then: then, Else: els}
	}
	return cond
}

func (p *parser) parseBinary(minPrec int) symb.Expr {
	left := p.parsePow()
	for {
		if p.atEnd() || p.peek().Kind != "Operator" {
			return left
		}
		opLit := p.peek().Value
		prec, ok := binaryPrecedence[opLit]
		if !ok || prec < minPrec {
			return left
		}
		p.advance()
		right := p.parseBinary(prec + 1)
		left = makeBinaryNode(opLit, left, right)
	}
}

func (p *parser) parsePow() symb.Expr {
	left := p.parseUnary()
	if p.matchLit("**") {
		right := p.parsePow() // right-associative
		return &symb.BinaryExpr{Op: symb.Pow, L: left, R: right}
	}
	return left
}

func (p *parser) parseUnary() symb.Expr {
	if p.matchLit("-") {
		return &symb.UnaryExpr{Op: symb.Neg, Arg: p.parseUnary()}
	}
	if p.matchLit("!") {
		return &symb.UnaryExpr{Op: symb.BoolNot, Arg: p.parseUnary()}
	}
	if p.matchLit("~") {
		return &symb.UnaryExpr{Op: symb.BitNot, Arg: p.parseUnary()}
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() symb.Expr {
	e := p.parsePrimary()
	for p.matchLit("[") {
		idx := p.parseExpr()
		p.expectLit("]", "expected ']' after index expression")
		e = &symb.IndexExpr{Array: e, Indices: []symb.Expr{idx}}
	}
	return e
}

func (p *parser) parsePrimary() symb.Expr {
	switch {
	case p.checkKind("Integer"):
		lit := p.advance().Value
		return &symb.ConstantExpr{Value: parseIntegerLiteral(lit)}
	case p.matchLit("("):
		e := p.parseExpr()
		p.expectLit(")", "expected ')' to close parenthesised expression")
		return e
	case p.checkKind("Ident"):
		name := p.advance().Value
		if p.matchLit(".") {
			name += "." + p.expectIdent("expected signal name after '.'")
		}
		if p.checkLit("(") {
			args := p.parseArgListOptional()
			return &symb.CallExpr{Callee: name, Args: args}
		}
		return &symb.NameExpr{Name: name}
	default:
		p.errorAt(p.peek(), "expected expression")
		p.advance()
		return &symb.ConstantExpr{Value: field.NewFieldInt64(0)}
	}
}

func makeBinaryNode(op string, l, r symb.Expr) symb.Expr {
	switch op {
	case "&&":
		return &symb.BoolBinaryExpr{Op: symb.And, L: l, R: r}
	case "||":
		return &symb.BoolBinaryExpr{Op: symb.Or, L: l, R: r}
	case "==":
		return &symb.CompareExpr{Op: symb.Eq, L: l, R: r}
	case "!=":
		return &symb.CompareExpr{Op: symb.NEq, L: l, R: r}
	case "<":
		return &symb.CompareExpr{Op: symb.Lt, L: l, R: r}
	case "<=":
		return &symb.CompareExpr{Op: symb.Le, L: l, R: r}
	case ">":
		return &symb.CompareExpr{Op: symb.Gt, L: l, R: r}
	case ">=":
		return &symb.CompareExpr{Op: symb.Ge, L: l, R: r}
	case "+":
		return &symb.BinaryExpr{Op: symb.Add, L: l, R: r}
	case "-":
		return &symb.BinaryExpr{Op: symb.Sub, L: l, R: r}
	case "*":
		return &symb.BinaryExpr{Op: symb.Mul, L: l, R: r}
	case "/":
		return &symb.BinaryExpr{Op: symb.Div, L: l, R: r}
	case "\\":
		return &symb.BinaryExpr{Op: symb.IntDiv, L: l, R: r}
	case "%":
		return &symb.BinaryExpr{Op: symb.Mod, L: l, R: r}
	case "&":
		return &symb.BinaryExpr{Op: symb.BitAnd, L: l, R: r}
	case "|":
		return &symb.BinaryExpr{Op: symb.BitOr, L: l, R: r}
	case "^":
		return &symb.BinaryExpr{Op: symb.BitXor, L: l, R: r}
	case "<<":
		return &symb.BinaryExpr{Op: symb.ShL, L: l, R: r}
	case ">>":
		return &symb.BinaryExpr{Op: symb.ShR, L: l, R: r}
	default:
		panic("fixture: unreachable operator " + op)
	}
}

func parseIntegerLiteral(lit string) field.Value {
	base := 10
	s := lit
	if len(lit) > 2 && (lit[:2] == "0x" || lit[:2] == "0X") {
		base = 16
		s = lit[2:]
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok {
		n = big.NewInt(0)
	}
	return field.NewField(n)
}
