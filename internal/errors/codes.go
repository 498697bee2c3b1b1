package errors

// Error kinds for the well-constrainedness engine.
//
// Kind ranges mirror the taxonomy in the specification's error-handling
// design:
//
//	E01xx: Parse/Schema errors (mutation configuration, whitelist files)
//	E02xx: Compile-time (symbolic execution) errors
//	E03xx: Runtime (concrete replay) errors
//	E04xx: Search errors

const (
	// Parse/Schema errors (E01xx)

	// E0100: malformed mutation-configuration JSON or YAML
	ErrorMalformedConfig = "E0100"

	// E0101: unknown enumerated option in configuration
	ErrorUnknownEnumValue = "E0101"

	// E0102: a numeric configuration field is out of its valid range
	ErrorOutOfRangeNumber = "E0102"

	// Compile-time (symbolic execution) errors (E02xx)

	// E0200: a function's recursive calls do not strictly decrease along
	// any measure of its template parameters
	ErrorUnboundedRecursion = "E0200"

	// E0201: a component wiring graph contains a cycle
	ErrorWiringCycle = "E0201"

	// E0202: an array index that is a compile-time constant falls outside
	// the declared dimension
	ErrorCompileTimeOOB = "E0202"

	// E0203: a symbolic name has no declaration reachable in its scope
	ErrorUndeclaredSignal = "E0203"

	// E0204: a loop condition is not compile-time decidable and cannot be
	// conservatively havoced
	ErrorNonDecidableLoop = "E0204"

	// E0205: the same signal is assigned twice along an unconditioned path
	ErrorDoubleAssignment = "E0205"

	// Runtime (concrete replay) errors (E03xx)

	// E0300: division by a denominator that evaluates to zero
	ErrorDivByZero = "E0300"

	// E0301: modular inverse requested of zero
	ErrorInverseOfZero = "E0301"

	// E0302: an index expression evaluates outside the array's declared bounds
	ErrorDynamicOOB = "E0302"

	// E0303: the path condition guarding a statement evaluates to false
	// under the supplied inputs
	ErrorUnreachablePath = "E0303"

	// Search errors (E04xx) - not failures, but reported the same way

	// E0400: the generation budget was exhausted with no counterexample
	ErrorBudgetExhausted = "E0400"

	// E0401: a mutator-produced trace referenced an undefined name and was
	// discarded
	ErrorMutantInvalid = "E0401"

	// E0402: the search was cancelled cooperatively
	ErrorCancelled = "E0402"
)

// descriptions gives a human-readable one-line gloss for each kind, returned
// by GetErrorDescription.
var descriptions = map[string]string{
	ErrorMalformedConfig:    "could not parse mutation configuration",
	ErrorUnknownEnumValue:   "unrecognized enumerated option",
	ErrorOutOfRangeNumber:   "numeric configuration value out of range",
	ErrorUnboundedRecursion: "recursive function call does not strictly decrease",
	ErrorWiringCycle:        "component wiring graph contains a cycle",
	ErrorCompileTimeOOB:     "constant array index out of declared bounds",
	ErrorUndeclaredSignal:   "undeclared signal or variable",
	ErrorNonDecidableLoop:   "loop bound is not compile-time decidable",
	ErrorDoubleAssignment:   "signal assigned twice along one path",
	ErrorDivByZero:          "division by zero during replay",
	ErrorInverseOfZero:      "modular inverse of zero during replay",
	ErrorDynamicOOB:         "array index out of bounds during replay",
	ErrorUnreachablePath:    "path condition unsatisfied by supplied inputs",
	ErrorBudgetExhausted:    "generation budget exhausted without a counterexample",
	ErrorMutantInvalid:      "mutant trace referenced an undefined name",
	ErrorCancelled:          "search cancelled",
}

// GetErrorDescription returns a human-readable description of the error kind.
func GetErrorDescription(kind string) string {
	if desc, ok := descriptions[kind]; ok {
		return desc
	}
	return "unknown error kind"
}

// IsCompileTime reports whether kind belongs to the E02xx range: these abort
// the run entirely per the propagation policy.
func IsCompileTime(kind string) bool {
	return len(kind) == 5 && kind[1] == '0' && kind[2] == '2'
}

// IsRuntime reports whether kind belongs to the E03xx range: these are caught
// per-pair and folded into scoring rather than aborting the run.
func IsRuntime(kind string) bool {
	return len(kind) == 5 && kind[1] == '0' && kind[2] == '3'
}
