package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Position locates a diagnostic within a symbolic trace: the fully-qualified
// template instance it occurred in and the statement index being emitted or
// replayed when the problem was detected. There is no source span once the
// input is an AST handed to us by an external parser.
type Position struct {
	Template string
	StmtIdx  int
}

func (p Position) String() string {
	if p.StmtIdx < 0 {
		return p.Template
	}
	return fmt.Sprintf("%s#%d", p.Template, p.StmtIdx)
}

// Level represents the severity of a diagnostic.
type Level string

const (
	Error   Level = "error"
	Warning Level = "warning"
	Note    Level = "note"
	Help    Level = "help"
)

// Suggestion is a suggested fix attached to an EngineError.
type Suggestion struct {
	Message     string
	Replacement string
}

// EngineError is a structured diagnostic with a kind tag, a position in the
// symbolic trace, suggestions and context notes.
type EngineError struct {
	Level       Level
	Kind        string // one of the Exxxx constants in codes.go
	Message     string
	Position    Position
	Suggestions []Suggestion
	Notes       []string
	HelpText    string
}

func (e EngineError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s[%s]: %s (%s)", e.Level, e.Kind, e.Message, e.Position)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Level, e.Message, e.Position)
}

// Reporter accumulates diagnostics across a whole symbolic-execution run and
// formats them for the terminal, the way the teacher's analyzer accumulates
// []CompilerError across a whole contract instead of aborting at the first
// problem.
type Reporter struct {
	diagnostics []EngineError
}

func NewReporter() *Reporter {
	return &Reporter{diagnostics: make([]EngineError, 0)}
}

func (r *Reporter) Add(err EngineError) {
	r.diagnostics = append(r.diagnostics, err)
}

func (r *Reporter) Diagnostics() []EngineError {
	return r.diagnostics
}

func (r *Reporter) HasErrors() bool {
	for _, d := range r.diagnostics {
		if d.Level == Error {
			return true
		}
	}
	return false
}

// Format renders every accumulated diagnostic in Rust-like style, coloured
// when writing to a terminal (fatih/color auto-detects and degrades to plain
// text otherwise).
func (r *Reporter) Format() string {
	var out strings.Builder
	for _, d := range r.diagnostics {
		out.WriteString(formatOne(d))
	}
	return out.String()
}

func formatOne(err EngineError) string {
	var result strings.Builder

	levelColor := levelColorFunc(err.Level)
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	if err.Kind != "" {
		result.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor(string(err.Level)), err.Kind, err.Message))
	} else {
		result.WriteString(fmt.Sprintf("%s: %s\n", levelColor(string(err.Level)), err.Message))
	}

	result.WriteString(fmt.Sprintf("  %s %s\n", dim("-->"), err.Position))

	for i, s := range err.Suggestions {
		suggestionColor := color.New(color.FgCyan).SprintFunc()
		if i == 0 {
			result.WriteString(fmt.Sprintf("  %s %s: %s\n", suggestionColor("help"), suggestionColor("try"), s.Message))
		} else {
			result.WriteString(fmt.Sprintf("      %s\n", suggestionColor(s.Message)))
		}
		if s.Replacement != "" {
			result.WriteString(fmt.Sprintf("      %s\n", suggestionColor(s.Replacement)))
		}
	}

	for _, n := range err.Notes {
		noteColor := color.New(color.FgBlue).SprintFunc()
		result.WriteString(fmt.Sprintf("  %s %s\n", noteColor("note:"), n))
	}

	if err.HelpText != "" {
		helpColor := color.New(color.FgGreen).SprintFunc()
		result.WriteString(fmt.Sprintf("  %s %s\n", helpColor("help:"), err.HelpText))
	}

	result.WriteString(bold(""))
	result.WriteString("\n")
	return result.String()
}

func levelColorFunc(level Level) func(...interface{}) string {
	switch level {
	case Error:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case Warning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	case Note:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	case Help:
		return color.New(color.FgGreen, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}
