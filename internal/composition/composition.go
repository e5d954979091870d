// Package composition implements Composition: an immutable nuclide-vector
// object with lazily-computed atom/mass bases and a memoized decay chain,
// grounded on the original cyclus Core/composition.cc and Core/comp_map.cc.
package composition

import (
	"sync"
	"sync/atomic"

	"github.com/cyclus-sim/cyclus/internal/cerr"
	"github.com/cyclus-sim/cyclus/internal/compmath"
	"github.com/cyclus-sim/cyclus/internal/nuclide"
)

// Basis distinguishes whether a Vec's entries are atom fractions or mass
// fractions.
type Basis int

const (
	Mass Basis = iota
	Atom
)

var nextID int64 = -1

func allocID() int64 {
	return atomic.AddInt64(&nextID, 1)
}

// chain is the decay memoization table shared by every Composition in a
// decay lineage. It is created once, at the lineage's root, and threaded
// through every descendant produced by Decay.
type chain struct {
	mu      sync.Mutex
	entries map[int]*Composition
}

// Composition is an immutable nuclide vector. It owns a unique id assigned
// at creation and a shared decay chain keyed by total elapsed months from
// the lineage's root (spec.md §3 "Composition").
type Composition struct {
	id int64

	massTable   *nuclide.MassTable
	decayEngine DecayEngine

	mu       sync.Mutex // guards lazy basis computation only; raw is fixed at construction
	basis    Basis
	raw      compmath.Vec // fractions as provided, in `basis`
	atomFrac compmath.Vec // lazily populated
	massFrac compmath.Vec // lazily populated
	haveAtom bool
	haveMass bool

	elapsed int // months decayed from this lineage's root to reach this composition
	chain   *chain
}

// Option configures optional Composition dependencies.
type Option func(*Composition)

// WithMassTable overrides the default mass table used for atom<->mass
// conversion.
func WithMassTable(mt *nuclide.MassTable) Option {
	return func(c *Composition) { c.massTable = mt }
}

// WithDecayEngine overrides the default decay engine used by Decay.
func WithDecayEngine(e DecayEngine) Option {
	return func(c *Composition) { c.decayEngine = e }
}

func newRoot(basis Basis, v compmath.Vec, opts ...Option) (*Composition, error) {
	if err := compmath.Validate(v); err != nil {
		return nil, err
	}
	c := &Composition{
		id:          allocID(),
		massTable:   nuclide.Default,
		decayEngine: DefaultDecayEngine,
		basis:       basis,
		raw:         compmath.Clone(v),
		chain:       &chain{entries: make(map[int]*Composition)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FromAtom constructs a new composition lineage root from an atom-basis
// nuclide vector.
func FromAtom(v compmath.Vec, opts ...Option) (*Composition, error) {
	return newRoot(Atom, v, opts...)
}

// FromMass constructs a new composition lineage root from a mass-basis
// nuclide vector.
func FromMass(v compmath.Vec, opts ...Option) (*Composition, error) {
	return newRoot(Mass, v, opts...)
}

// ID returns the composition's process-unique identifier.
func (c *Composition) ID() int64 { return c.id }

// Atom returns the (normalized) atom-fraction vector, computing it from the
// mass vector via the mass table on first use if the composition was
// constructed in the mass basis.
func (c *Composition) Atom() (compmath.Vec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.atomLocked()
}

func (c *Composition) atomLocked() (compmath.Vec, error) {
	if c.haveAtom {
		return c.atomFrac, nil
	}
	if c.basis == Atom {
		v := compmath.Clone(c.raw)
		compmath.Normalize(v, 1)
		c.atomFrac = v
		c.haveAtom = true
		return c.atomFrac, nil
	}
	mass, err := c.massLocked()
	if err != nil {
		return nil, err
	}
	out := make(compmath.Vec, len(mass))
	for id, m := range mass {
		gpm, err := c.massTable.GramsPerMol(id)
		if err != nil {
			return nil, err
		}
		if gpm == 0 {
			continue
		}
		out[id] = m / gpm
	}
	compmath.Normalize(out, 1)
	c.atomFrac = out
	c.haveAtom = true
	return c.atomFrac, nil
}

// Mass returns the (normalized) mass-fraction vector, computing it from the
// atom vector via the mass table on first use if the composition was
// constructed in the atom basis.
func (c *Composition) Mass() (compmath.Vec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.massLocked()
}

func (c *Composition) massLocked() (compmath.Vec, error) {
	if c.haveMass {
		return c.massFrac, nil
	}
	if c.basis == Mass {
		v := compmath.Clone(c.raw)
		compmath.Normalize(v, 1)
		c.massFrac = v
		c.haveMass = true
		return c.massFrac, nil
	}
	atom, err := c.atomLocked()
	if err != nil {
		return nil, err
	}
	out := make(compmath.Vec, len(atom))
	for id, a := range atom {
		gpm, err := c.massTable.GramsPerMol(id)
		if err != nil {
			return nil, err
		}
		out[id] = a * gpm
	}
	compmath.Normalize(out, 1)
	c.massFrac = out
	c.haveMass = true
	return c.massFrac, nil
}

// MassFraction returns the mass fraction of a single nuclide, 0 if absent.
func (c *Composition) MassFraction(id nuclide.ID) (float64, error) {
	m, err := c.Mass()
	if err != nil {
		return 0, err
	}
	return m[id], nil
}

// AtomFraction returns the atom fraction of a single nuclide, 0 if absent.
func (c *Composition) AtomFraction(id nuclide.ID) (float64, error) {
	a, err := c.Atom()
	if err != nil {
		return 0, err
	}
	return a[id], nil
}

// Decay returns the composition obtained by decaying this composition by dt
// additional months. If the lineage's shared decay chain already has an
// entry for (root, elapsed+dt), that composition is returned unchanged
// (memoized); otherwise a new composition is computed via the DecayEngine,
// recorded in the chain, and returned. See spec.md §4.3 and
// original_source/src/Core/composition.cc Composition::Decay/NewDecay.
func (c *Composition) Decay(dt int) (*Composition, error) {
	if dt == 0 {
		return c, nil
	}
	total := c.elapsed + dt

	c.chain.mu.Lock()
	if cached, ok := c.chain.entries[total]; ok {
		c.chain.mu.Unlock()
		return cached, nil
	}
	c.chain.mu.Unlock()

	atoms, err := c.Atom()
	if err != nil {
		return nil, err
	}
	years := float64(dt) / 12.0
	decayed, err := c.decayEngine.Decay(atoms, years)
	if err != nil {
		return nil, err
	}

	next := &Composition{
		id:          allocID(),
		massTable:   c.massTable,
		decayEngine: c.decayEngine,
		basis:       Atom,
		raw:         decayed,
		elapsed:     total,
		chain:       c.chain,
	}

	c.chain.mu.Lock()
	if cached, ok := c.chain.entries[total]; ok {
		// Another caller raced us to the same (lineage, total) entry;
		// the chain is the source of truth, so defer to it.
		c.chain.mu.Unlock()
		return cached, nil
	}
	c.chain.entries[total] = next
	c.chain.mu.Unlock()
	return next, nil
}

// ElapsedDecay returns the total months this composition has been decayed
// relative to its lineage's root.
func (c *Composition) ElapsedDecay() int { return c.elapsed }

// SameLineage reports whether c and other share a decay chain (i.e. one was
// derived from the other, or both from a common ancestor, via Decay).
func (c *Composition) SameLineage(other *Composition) bool {
	return c.chain == other.chain
}

// MustValidNuclides is a convenience assertion used by callers constructing
// recipes from literal data; returns an error rather than panicking so it
// composes with the rest of the typed-error contract.
func MustValidNuclides(v compmath.Vec) error {
	if !compmath.ValidNuclides(v) {
		return cerr.Value("composition: vector contains an invalid nuclide id")
	}
	return nil
}
