package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReporterFormat(t *testing.T) {
	r := NewReporter()
	r.Add(UndeclaredSignal("inn", Position{Template: "main.sub", StmtIdx: 4}, []string{"in", "out"}))

	formatted := r.Format()
	assert.Contains(t, formatted, "error["+ErrorUndeclaredSignal+"]")
	assert.Contains(t, formatted, "undeclared signal")
	assert.Contains(t, formatted, "main.sub#4")
	assert.Contains(t, formatted, "did you mean 'in'?")
	assert.True(t, r.HasErrors())
}

func TestUnboundedRecursionError(t *testing.T) {
	err := UnboundedRecursion("fib", Position{Template: "main.fib", StmtIdx: 0})
	assert.Equal(t, ErrorUnboundedRecursion, err.Kind)
	assert.Contains(t, err.Message, "fib")
	assert.NotEmpty(t, err.HelpText)
}

func TestWiringCycleError(t *testing.T) {
	err := WiringCycle([]string{"main.a", "main.b", "main.a"}, Position{Template: "main", StmtIdx: -1})
	assert.Equal(t, ErrorWiringCycle, err.Kind)
	assert.Contains(t, err.Message, "main.a")
}

func TestDoubleAssignmentError(t *testing.T) {
	err := DoubleAssignment("main.out", Position{Template: "main", StmtIdx: 3})
	assert.Equal(t, ErrorDoubleAssignment, err.Kind)
	assert.Contains(t, err.Message, "main.out")
}

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 0, levenshteinDistance("hello", "hello"))
	assert.Equal(t, 1, levenshteinDistance("hello", "hallo"))
	assert.Equal(t, 1, levenshteinDistance("hello", "helo"))
	assert.Equal(t, 5, levenshteinDistance("hello", ""))
	assert.Equal(t, 3, levenshteinDistance("kitten", "sitting"))
}

func TestSimilarNameFinding(t *testing.T) {
	candidates := []string{"balance", "amount", "total", "balanceOf", "xyz"}
	similar := findSimilarNames("balace", candidates)
	assert.Contains(t, similar, "balance")
	assert.NotContains(t, similar, "xyz")

	similar = findSimilarNames("verydifferent", candidates)
	assert.Empty(t, similar)
}

func TestRuntimeErrorConstructors(t *testing.T) {
	div := DivByZero("a / b", Position{Template: "main", StmtIdx: 1})
	assert.Equal(t, ErrorDivByZero, div.Kind)
	assert.Contains(t, div.Message, "a / b")

	inv := InverseOfZero("1 / a", Position{Template: "main", StmtIdx: 2})
	assert.Equal(t, ErrorInverseOfZero, inv.Kind)

	oob := DynamicOOB("main.in", 5, 3, Position{Template: "main", StmtIdx: 3})
	assert.Equal(t, ErrorDynamicOOB, oob.Kind)
	assert.Contains(t, oob.Message, "main.in")

	unreach := UnreachablePath(Position{Template: "main", StmtIdx: 4})
	assert.Equal(t, ErrorUnreachablePath, unreach.Kind)
}

func TestIsCompileTimeAndRuntime(t *testing.T) {
	assert.True(t, IsCompileTime(ErrorWiringCycle))
	assert.False(t, IsCompileTime(ErrorDivByZero))
	assert.True(t, IsRuntime(ErrorDivByZero))
	assert.False(t, IsRuntime(ErrorWiringCycle))
}
