// Package nuclide provides the read-only nuclide identifier validation and
// mass-table lookup used by Composition. A nuclide id is the integer
// ZZZAAASSS encoding (Z*1e6 + A*1e3 + S: atomic number, mass number,
// isomeric state); this package only cares about the element/mass-number
// range needed to validate ids and to look up molar mass.
package nuclide

import "github.com/cyclus-sim/cyclus/internal/cerr"

// ID is a nuclide identifier (ZZZAAASSS encoding).
type ID int64

// Bounds matching the original cyclus comp_map.cc ValidateIsotopeNumber,
// adapted to the ZZZAAASSS encoding: lowest valid id is hydrogen-1, ground
// state (1001000); highest comfortably covers every element up to the
// heaviest confirmed (Z=118, oganesson) at any mass number or isomeric
// state the table might carry.
const (
	minValidID ID = 1_001_000
	maxValidID ID = 118_999_999
)

// Valid reports whether id falls within the known nuclide range.
func Valid(id ID) bool {
	return id >= minValidID && id <= maxValidID
}

// AtomicNum returns the element's atomic number encoded in id.
func AtomicNum(id ID) int64 {
	return int64(id) / 1_000_000
}

// MassNum returns the mass number encoded in id.
func MassNum(id ID) int64 {
	return (int64(id) / 1000) % 1000
}

// MassTable is a read-only mapping from nuclide id to grams/mol. It is safe
// for concurrent reads once built; Cyclus treats it as process-wide
// reference data loaded once (spec.md §9 "Globals" strategy).
type MassTable struct {
	gramsPerMol map[ID]float64
}

// NewMassTable builds a mass table from an explicit id -> grams/mol map,
// typically produced by loading a recipe/physics data file. Unknown ids
// fall back to GramsPerMol's approximation (the mass number), matching the
// original mass table's behavior of never hard-failing a lookup for an
// otherwise-valid isotope it has no measured entry for.
func NewMassTable(entries map[ID]float64) *MassTable {
	mt := &MassTable{gramsPerMol: make(map[ID]float64, len(entries))}
	for id, g := range entries {
		mt.gramsPerMol[id] = g
	}
	return mt
}

// GramsPerMol returns the molar mass for id. If id is not present in the
// table but is a validly-formed nuclide id, it falls back to the mass
// number as an approximation (nucleon mass ~1g/mol each, close
// enough for conservation bookkeeping when no measured value is loaded).
func (mt *MassTable) GramsPerMol(id ID) (float64, error) {
	if !Valid(id) {
		return 0, cerr.Value("nuclide: invalid isotope identifier %d", id)
	}
	if g, ok := mt.gramsPerMol[id]; ok {
		return g, nil
	}
	return float64(MassNum(id)), nil
}

// Default is a small built-in table covering common fuel-cycle isotopes,
// sufficient for tests and recipes that don't load an external data file.
var Default = NewMassTable(map[ID]float64{
	1001000:  1.008,
	8016000:  15.999,
	92235001: 235.0439,
	92238001: 238.0508,
	94239001: 239.0521,
	94240001: 240.0538,
	54135001: 134.9057,
	55137001: 136.9071,
	38090001: 89.9077,
})
