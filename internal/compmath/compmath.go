// Package compmath provides the pure nuclide-vector arithmetic that
// Composition builds on: add, sub, normalize, threshold, and approximate
// equality. None of these functions hold any state or identity — they take
// and return plain maps, exactly mirroring the original cyclus comp_math.cc
// / comp_map.cc free functions.
package compmath

import (
	"math"

	"github.com/cyclus-sim/cyclus/internal/cerr"
	"github.com/cyclus-sim/cyclus/internal/nuclide"
	"gonum.org/v1/gonum/floats"
)

// Epsilon is the default numerical comparison tolerance used throughout
// Cyclus's resource and market code (spec.md §4.2 "Numerics").
const Epsilon = 1e-6

// Vec is a nuclide-id -> quantity map, in either atom or mass basis
// depending on context. Callers are responsible for tracking the basis;
// Vec itself is basis-agnostic.
type Vec map[nuclide.ID]float64

// ValidNuclides reports whether every key in v is a validly-formed
// nuclide id (comp_map.cc: ValidateIsotopeNumber, applied entrywise).
func ValidNuclides(v Vec) bool {
	for id := range v {
		if !nuclide.Valid(id) {
			return false
		}
	}
	return true
}

// NonNegative reports whether every entry in v is >= 0
// (comp_map.cc: ValidateValue).
func NonNegative(v Vec) bool {
	for _, q := range v {
		if q < 0 {
			return false
		}
	}
	return true
}

// Validate returns an error describing the first invalid entry found, or
// nil if v is a well-formed composition vector.
func Validate(v Vec) error {
	if !ValidNuclides(v) {
		return cerr.Value("compmath: invalid nuclide identifier in vector")
	}
	if !NonNegative(v) {
		return cerr.Value("compmath: negative quantity for a nuclide")
	}
	return nil
}

// Add returns a new vector holding the entrywise sum of a and b.
func Add(a, b Vec) Vec {
	out := make(Vec, len(a)+len(b))
	for id, q := range a {
		out[id] += q
	}
	for id, q := range b {
		out[id] += q
	}
	return out
}

// Sub returns a new vector holding a - b entrywise. Entries present only in
// b appear negated in the result; callers that require non-negative results
// (e.g. Material.extract_comp) must validate the result themselves.
func Sub(a, b Vec) Vec {
	out := make(Vec, len(a)+len(b))
	for id, q := range a {
		out[id] += q
	}
	for id, q := range b {
		out[id] -= q
	}
	return out
}

// Scale returns a new vector with every entry of v multiplied by factor.
func Scale(v Vec, factor float64) Vec {
	out := make(Vec, len(v))
	for id, q := range v {
		out[id] = q * factor
	}
	return out
}

// KahanSum computes the compensated sum of xs, limiting the accumulation of
// floating-point rounding error across many small additions — the same
// technique the original CycArithmetic::KahanSum uses for CompMap::normalize
// and that ResourceBuffer uses for its running quantity total.
func KahanSum(xs []float64) float64 {
	var sum, c float64
	for _, x := range xs {
		y := x - c
		t := sum + y
		c = (t - sum) - y
		sum = t
	}
	return sum
}

// Sum is a thin wrapper over gonum's floats.Sum for the cases where the
// Kahan compensation isn't needed (small vectors, diagnostics); normalize
// always uses KahanSum for the authoritative total.
func Sum(xs []float64) float64 {
	return floats.Sum(xs)
}

// Normalize scales v in place so its Kahan-summed total becomes target. A
// zero-sum vector (all-zero or empty) is left untouched — there is nothing
// sensible to normalize against. Returns the pre-normalization sum.
func Normalize(v Vec, target float64) float64 {
	vals := make([]float64, 0, len(v))
	ids := make([]nuclide.ID, 0, len(v))
	for id, q := range v {
		ids = append(ids, id)
		vals = append(vals, q)
	}
	sum := KahanSum(vals)
	if sum == 0 || sum == target {
		return sum
	}
	factor := target / sum
	for _, id := range ids {
		v[id] *= factor
	}
	return sum
}

// ApplyThreshold removes entries from v whose absolute value is <= tau,
// in place. Used after a subtraction to erase residual noise below the
// numerical tolerance (comp_math.cc's companion to Composition's
// extract_comp residual cleanup).
func ApplyThreshold(v Vec, tau float64) {
	for id, q := range v {
		if math.Abs(q) <= tau {
			delete(v, id)
		}
	}
}

// AlmostEqual reports whether a and b have the same set of nonzero entries
// and each entry differs by no more than tau times the larger of the two
// magnitudes — the "less naive" floating point comparison from the
// original CompMap::AlmostEqual. Zero entries on both sides count as equal
// regardless of tau.
func AlmostEqual(a, b Vec, tau float64) bool {
	if tau < 0 {
		return false
	}
	keys := make(map[nuclide.ID]struct{}, len(a)+len(b))
	for id := range a {
		keys[id] = struct{}{}
	}
	for id := range b {
		keys[id] = struct{}{}
	}
	for id := range keys {
		av := a[id]
		bv := b[id]
		if av == 0 && bv == 0 {
			continue
		}
		diff := math.Abs(av - bv)
		if diff > math.Max(math.Abs(av), math.Abs(bv))*tau {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy of v, safe to mutate independently.
func Clone(v Vec) Vec {
	out := make(Vec, len(v))
	for id, q := range v {
		out[id] = q
	}
	return out
}
