package composition

import (
	"math"

	"github.com/cyclus-sim/cyclus/internal/compmath"
	"github.com/cyclus-sim/cyclus/internal/nuclide"
)

// DecayEngine decays an atom-basis nuclide vector by the given number of
// years. It is a narrow trait interface so that Composition never depends
// on a specific nuclide-physics or decay-chain-solver library (spec.md §1
// "specific physics libraries ... used via trait interfaces").
type DecayEngine interface {
	Decay(atoms compmath.Vec, years float64) (compmath.Vec, error)
}

// HalfLifeEngine is a simplified DecayEngine driven by a per-nuclide
// half-life table (in years). Nuclides absent from the table are treated
// as stable (no decay). This is not a validated nuclear-decay solver — it
// exists so the core scheduler/composition machinery has a working default
// without requiring an external physics package, exactly as spec.md
// describes the DecayEngine as a pluggable collaborator.
type HalfLifeEngine struct {
	halfLifeYears map[nuclide.ID]float64
}

// NewHalfLifeEngine builds a HalfLifeEngine from a nuclide id -> half-life
// (years) table.
func NewHalfLifeEngine(halfLives map[nuclide.ID]float64) *HalfLifeEngine {
	e := &HalfLifeEngine{halfLifeYears: make(map[nuclide.ID]float64, len(halfLives))}
	for k, v := range halfLives {
		e.halfLifeYears[k] = v
	}
	return e
}

// Decay applies simple exponential decay, N(t) = N0 * 2^(-t/halfLife), to
// every nuclide present in halfLifeYears; nuclides with no entry pass
// through unchanged.
func (e *HalfLifeEngine) Decay(atoms compmath.Vec, years float64) (compmath.Vec, error) {
	out := make(compmath.Vec, len(atoms))
	for id, n := range atoms {
		hl, ok := e.halfLifeYears[id]
		if !ok || hl <= 0 {
			out[id] = n
			continue
		}
		out[id] = n * math.Exp2(-years/hl)
	}
	return out, nil
}

// DefaultDecayEngine is a small built-in half-life table covering common
// fuel-cycle fission products and actinides, used when the caller hasn't
// wired in a dedicated physics package.
var DefaultDecayEngine = NewHalfLifeEngine(map[nuclide.ID]float64{
	92235001: 7.04e8,
	92238001: 4.468e9,
	94239001: 24110,
	94240001: 6561,
	54135001: 0.001043, // I-135 -> Xe-135 branch, years (~9.14h)
	55137001: 30.17,
	38090001: 28.79,
})
