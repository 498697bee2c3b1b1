// Package fixture is a small convenience parser for a Circom-like surface
// syntax, used by the CLI and by tests to build internal/circuit programs
// from text without hand-nesting Go struct literals. It is not a faithful
// Circom parser: it covers the subset of the language the specification's
// [MODULE] grammar names (templates, functions, signals, the two assignment
// operators, constraints, control flow, component wiring) and nothing more.
package fixture

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// circomLexer tokenises the surface syntax. Grounded on the teacher's
// grammar/lexer.go stateful-lexer pattern, with a token set reshaped for
// Circom's operators (the constrained/unconstrained assignment pair,
// the bare-equality constraint operator, and field exponentiation).
var circomLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `//[^\n]*`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Integer", `0x[0-9a-fA-F]+|[0-9]+`, nil},
		{"Operator", `(<==|<--|===|==|!=|<=|>=|\*\*|&&|\|\||<<|>>|[-+*/\\%&|^~<>=!?:])`, nil},
		{"Punctuation", `[{}\[\]().,;]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})

// token is a lexed unit with its symbolic name resolved back from
// participle's integer TokenType, the way the teacher's own Token carries a
// named Type rather than a bare rune.
type token struct {
	Kind  string
	Value string
	Pos   lexer.Position
}

const eofKind = "EOF"

// tokenize consumes the whole input up front, the way ConsumeAll is meant to
// be used, and drops whitespace and comments so the parser never has to
// special-case them.
func tokenize(filename, source string) ([]token, error) {
	lx, err := circomLexer.Lex(filename, strings.NewReader(source))
	if err != nil {
		return nil, err
	}
	raw, err := lexer.ConsumeAll(lx)
	if err != nil {
		return nil, err
	}
	symbols := circomLexer.Symbols()
	names := make(map[lexer.TokenType]string, len(symbols))
	for name, tt := range symbols {
		names[tt] = name
	}

	out := make([]token, 0, len(raw))
	for _, t := range raw {
		if t.EOF() {
			out = append(out, token{Kind: eofKind, Value: "", Pos: t.Pos})
			continue
		}
		kind := names[t.Type]
		if kind == "Whitespace" || kind == "Comment" {
			continue
		}
		out = append(out, token{Kind: kind, Value: t.Value, Pos: t.Pos})
	}
	if len(out) == 0 || out[len(out)-1].Kind != eofKind {
		out = append(out, token{Kind: eofKind})
	}
	return out, nil
}
