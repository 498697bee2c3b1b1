package errors

import "fmt"

// UnboundedRecursion builds an E0200 diagnostic for a recursive function call
// whose template parameters do not strictly decrease.
func UnboundedRecursion(fn string, pos Position) EngineError {
	return EngineError{
		Level:    Error,
		Kind:     ErrorUnboundedRecursion,
		Message:  fmt.Sprintf("recursive call to '%s' does not strictly decrease its template parameters", fn),
		Position: pos,
		HelpText: "bound the recursion by a measure that strictly decreases on every call, or unroll the call manually",
	}
}

// WiringCycle builds an E0201 diagnostic for a cyclic component wiring graph.
func WiringCycle(cycle []string, pos Position) EngineError {
	return EngineError{
		Level:    Error,
		Kind:     ErrorWiringCycle,
		Message:  fmt.Sprintf("component wiring cycle detected: %v", cycle),
		Position: pos,
		HelpText: "component sub-signals may not depend on each other cyclically",
	}
}

// CompileTimeOOB builds an E0202 diagnostic for a constant-index array access
// outside the declared dimension.
func CompileTimeOOB(name string, index, dim int, pos Position) EngineError {
	return EngineError{
		Level:    Error,
		Kind:     ErrorCompileTimeOOB,
		Message:  fmt.Sprintf("index %d out of bounds for '%s' of dimension %d", index, name, dim),
		Position: pos,
	}
}

// UndeclaredSignal builds an E0203 diagnostic for a free name with no
// reachable declaration, optionally suggesting a similarly-named signal.
func UndeclaredSignal(name string, pos Position, candidates []string) EngineError {
	err := EngineError{
		Level:    Error,
		Kind:     ErrorUndeclaredSignal,
		Message:  fmt.Sprintf("undeclared signal or variable '%s'", name),
		Position: pos,
	}
	similar := findSimilarNames(name, candidates)
	if len(similar) > 0 {
		err.Suggestions = append(err.Suggestions, Suggestion{
			Message: fmt.Sprintf("did you mean '%s'?", similar[0]),
		})
	} else {
		err.Suggestions = append(err.Suggestions, Suggestion{
			Message: "make sure the signal is declared and in scope",
		})
	}
	return err
}

// NonDecidableLoop builds an E0204 diagnostic for a loop whose bound is
// symbolic.
func NonDecidableLoop(pos Position) EngineError {
	return EngineError{
		Level:    Error,
		Kind:     ErrorNonDecidableLoop,
		Message:  "loop condition is not compile-time decidable",
		Position: pos,
		HelpText: "bound the loop by a constant known at every call site, or accept the over-approximated (havoced) trace",
	}
}

// DoubleAssignment builds an E0205 diagnostic for a signal assigned twice
// along one unconditioned path.
func DoubleAssignment(name string, pos Position) EngineError {
	return EngineError{
		Level:    Error,
		Kind:     ErrorDoubleAssignment,
		Message:  fmt.Sprintf("'%s' is assigned more than once along an unconditioned path", name),
		Position: pos,
	}
}

// DivByZero builds an E0300 diagnostic for a division whose concrete
// denominator evaluates to zero during replay.
func DivByZero(expr string, pos Position) EngineError {
	return EngineError{
		Level:    Error,
		Kind:     ErrorDivByZero,
		Message:  fmt.Sprintf("division by zero evaluating '%s'", expr),
		Position: pos,
	}
}

// InverseOfZero builds an E0301 diagnostic for a modular inverse requested of
// a concrete zero value.
func InverseOfZero(expr string, pos Position) EngineError {
	return EngineError{
		Level:    Error,
		Kind:     ErrorInverseOfZero,
		Message:  fmt.Sprintf("modular inverse of zero evaluating '%s'", expr),
		Position: pos,
	}
}

// DynamicOOB builds an E0302 diagnostic for an index expression that
// evaluates outside an array's declared bounds under concrete inputs.
func DynamicOOB(name string, index, dim int, pos Position) EngineError {
	return EngineError{
		Level:    Error,
		Kind:     ErrorDynamicOOB,
		Message:  fmt.Sprintf("index %d out of bounds for '%s' of dimension %d", index, name, dim),
		Position: pos,
	}
}

// UnreachablePath builds an E0303 diagnostic for a guarding path condition
// that evaluates to false under the supplied concrete inputs.
func UnreachablePath(pos Position) EngineError {
	return EngineError{
		Level:    Error,
		Kind:     ErrorUnreachablePath,
		Message:  "path condition unsatisfied by the supplied inputs",
		Position: pos,
	}
}

// findSimilarNames returns candidates within a small Levenshtein distance of
// name, closest first.
func findSimilarNames(name string, candidates []string) []string {
	type scored struct {
		name string
		dist int
	}
	var scores []scored
	for _, c := range candidates {
		d := levenshteinDistance(name, c)
		if d <= 2 && d > 0 {
			scores = append(scores, scored{c, d})
		}
	}
	for i := 1; i < len(scores); i++ {
		for j := i; j > 0 && scores[j-1].dist > scores[j].dist; j-- {
			scores[j-1], scores[j] = scores[j], scores[j-1]
		}
	}
	out := make([]string, len(scores))
	for i, s := range scores {
		out[i] = s.name
	}
	return out
}

func levenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	m, n := len(ra), len(rb)
	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}
	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[n]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
