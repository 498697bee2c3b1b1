// Package input implements §4.7's input population: weighted random
// sampling over configured ranges, crossover, single/multi-point mutation,
// and a binary-mode sampling restriction for early-generation warm-up.
// Grounded on internal/mutate's pass-list composition style (generalised
// from "one struct per edit kind" to "one function per generation
// operator", since §4.7 describes operators rather than a pipeline of
// named passes) and, for the zero-division heuristic in zerodiv.go, on
// internal/semantic/analyzer_type.go's use of math/big for exact integer
// arithmetic.
package input

import (
	"fmt"
	"math/big"
	"math/rand"
	"sort"

	"github.com/segmentio/ksuid"

	"wellconstrained/internal/circuit"
	"wellconstrained/internal/field"
	"wellconstrained/internal/symb"
)

// Range is one weighted sampling bucket, matching §4.7's "finite set of
// ranges, each with a probability weight summing to 1."
type Range struct {
	Lo, Hi *big.Int
	Weight float64
}

// Sampler draws concrete values for declared circuit inputs.
type Sampler struct {
	Ranges []Range
}

func sampleRange(ranges []Range, rnd *rand.Rand) *big.Int {
	total := 0.0
	for _, r := range ranges {
		total += r.Weight
	}
	if total <= 0 {
		return big.NewInt(0)
	}
	pick := rnd.Float64() * total
	for _, r := range ranges {
		if pick < r.Weight {
			span := new(big.Int).Sub(r.Hi, r.Lo)
			span.Add(span, big.NewInt(1))
			if span.Sign() <= 0 {
				return new(big.Int).Set(r.Lo)
			}
			return new(big.Int).Add(r.Lo, new(big.Int).Rand(rnd, span))
		}
		pick -= r.Weight
	}
	return new(big.Int).Set(ranges[len(ranges)-1].Lo)
}

func (s Sampler) sampleScalar(rnd *rand.Rand, binary bool) field.Value {
	if binary {
		if rnd.Intn(2) == 0 {
			return field.NewFieldInt64(0)
		}
		return field.NewFieldInt64(1)
	}
	return field.NewField(sampleRange(s.Ranges, rnd))
}

// dimSize extracts an array dimension's size, recognised only when the
// expression is a literal constant - the shape every realistic Circom
// array declaration uses (`signal input in[4]`), since a dimension that
// depends on a template parameter would need the same instantiation
// machinery internal/exec owns, not a generator concern.
func dimSize(e symb.Expr) (int, bool) {
	c, ok := e.(*symb.ConstantExpr)
	if !ok {
		return 0, false
	}
	if !c.Value.Int().IsInt64() {
		return 0, false
	}
	n := c.Value.Int().Int64()
	if n < 0 {
		return 0, false
	}
	return int(n), true
}

// sampleDecl draws a value matching decl's shape: a scalar for a
// zero-dimensional signal, or a (possibly nested) array for a
// constant-dimensioned one. A signal whose dimension is not a literal
// constant is outside this generator's scope - array sizes in Circom are
// overwhelmingly fixed at template-definition time, and resolving a
// template-parameter-dependent dimension would require the same
// instantiation machinery internal/exec already owns.
func (s Sampler) sampleDecl(decl circuit.SignalDecl, rnd *rand.Rand, binary bool) (field.Value, error) {
	if len(decl.Dims) == 0 {
		return s.sampleScalar(rnd, binary), nil
	}
	dim, ok := dimSize(decl.Dims[0])
	if !ok {
		return field.Value{}, fmt.Errorf("input: %s has a non-constant dimension, dynamic array shapes are not supported by the generator", decl.Name)
	}
	inner := circuit.SignalDecl{Name: decl.Name, Kind: decl.Kind, Dims: decl.Dims[1:]}
	elems := make([]field.Value, dim)
	for i := range elems {
		v, err := s.sampleDecl(inner, rnd, binary)
		if err != nil {
			return field.Value{}, err
		}
		elems[i] = v
	}
	return field.NewArray(elems), nil
}

// InputDecls returns tmpl's declared input signals, the only ones the
// generator ever produces values for.
func InputDecls(tmpl *circuit.Template) []circuit.SignalDecl {
	var out []circuit.SignalDecl
	for _, sig := range tmpl.Signals {
		if sig.Kind == circuit.Input {
			out = append(out, sig)
		}
	}
	return out
}

// DeclsByName indexes decls by name for the mutation operators, which look
// a changed input's declaration back up to resample it with the right
// shape.
func DeclsByName(decls []circuit.SignalDecl) map[string]circuit.SignalDecl {
	m := make(map[string]circuit.SignalDecl, len(decls))
	for _, d := range decls {
		m[d.Name] = d
	}
	return m
}

// Individual is one candidate input assignment, identified by a
// K-sortable ID so §4.8's tie-break ("generation, individual id") and the
// counterexample artefact can cite it. Score caches §4.8 step 4's input
// fitness - the largest residual reduction this individual has induced
// against any program replayed against it so far - nil until the driver has
// scored it at least once.
type Individual struct {
	ID     ksuid.KSUID
	Values map[string]field.Value
	Score  *big.Int
}

// GenerateIndividual draws one fresh value per declared input.
func GenerateIndividual(decls []circuit.SignalDecl, s Sampler, rnd *rand.Rand, binary bool) (Individual, error) {
	values := make(map[string]field.Value, len(decls))
	for _, d := range decls {
		v, err := s.sampleDecl(d, rnd, binary)
		if err != nil {
			return Individual{}, err
		}
		values[d.Name] = v
	}
	return Individual{ID: ksuid.New(), Values: values}, nil
}

// GeneratePopulation draws n independent individuals.
func GeneratePopulation(decls []circuit.SignalDecl, s Sampler, n int, rnd *rand.Rand, binary bool) ([]Individual, error) {
	pop := make([]Individual, n)
	for i := range pop {
		ind, err := GenerateIndividual(decls, s, rnd, binary)
		if err != nil {
			return nil, err
		}
		pop[i] = ind
	}
	return pop, nil
}

// Crossover performs §4.7's point-wise random parent selection: each input
// name independently inherits from a or b.
func Crossover(a, b Individual, rnd *rand.Rand) Individual {
	child := make(map[string]field.Value, len(a.Values))
	for name, av := range a.Values {
		if rnd.Intn(2) == 0 {
			child[name] = av
			continue
		}
		if bv, ok := b.Values[name]; ok {
			child[name] = bv
		} else {
			child[name] = av
		}
	}
	return Individual{ID: ksuid.New(), Values: child}
}

// MutateSinglePoint resamples exactly one input, chosen uniformly at
// random.
func MutateSinglePoint(ind Individual, decls map[string]circuit.SignalDecl, s Sampler, rnd *rand.Rand, binary bool) (Individual, error) {
	if len(ind.Values) == 0 {
		return ind, nil
	}
	names := make([]string, 0, len(ind.Values))
	for n := range ind.Values {
		names = append(names, n)
	}
	sort.Strings(names)
	target := names[rnd.Intn(len(names))]

	decl, ok := decls[target]
	if !ok {
		return Individual{}, fmt.Errorf("input: no declaration for %q", target)
	}
	v, err := s.sampleDecl(decl, rnd, binary)
	if err != nil {
		return Individual{}, err
	}

	next := make(map[string]field.Value, len(ind.Values))
	for n, val := range ind.Values {
		next[n] = val
	}
	next[target] = v
	return Individual{ID: ksuid.New(), Values: next}, nil
}

// MutateMultiPoint independently resamples each input with probability m.
func MutateMultiPoint(ind Individual, decls map[string]circuit.SignalDecl, s Sampler, m float64, rnd *rand.Rand, binary bool) (Individual, error) {
	next := make(map[string]field.Value, len(ind.Values))
	names := make([]string, 0, len(ind.Values))
	for n := range ind.Values {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, name := range names {
		if rnd.Float64() < m {
			decl, ok := decls[name]
			if !ok {
				return Individual{}, fmt.Errorf("input: no declaration for %q", name)
			}
			v, err := s.sampleDecl(decl, rnd, binary)
			if err != nil {
				return Individual{}, err
			}
			next[name] = v
			continue
		}
		next[name] = ind.Values[name]
	}
	return Individual{ID: ksuid.New(), Values: next}, nil
}

// BinaryWarmupGenerations returns how many of the first total generations
// should restrict sampling to {0, 1}, per §4.7's "configurable fraction of
// the early generations" - useful against the bit-decomposition
// (`x*(1-x)=0`) pattern common in Circom templates.
func BinaryWarmupGenerations(fraction float64, total int) int {
	if fraction <= 0 {
		return 0
	}
	if fraction >= 1 {
		return total
	}
	return int(fraction * float64(total))
}
