// Package resource implements the Resource sum type (Material, Product)
// and the conservation-preserving split/merge/transmute operations spec.md
// §3/§4.4 describes, grounded on original_source/src/Core/material.cc,
// generic_resource.cc, and resource.h.
package resource

import (
	"sync"
	"sync/atomic"

	"github.com/cyclus-sim/cyclus/internal/cerr"
	"github.com/cyclus-sim/cyclus/internal/compmath"
	"github.com/cyclus-sim/cyclus/internal/composition"
)

// Epsilon is the quantity comparison tolerance (spec.md §4.2).
const Epsilon = compmath.Epsilon

var nextResourceID int64 = -1

func allocResourceID() int64 {
	return atomic.AddInt64(&nextResourceID, 1)
}

// Resource is the common interface satisfied by Material and Product: a
// quantity-bearing, id-and-state-tracked object that ResourceBuffer can
// hold regardless of kind.
type Resource interface {
	// ResourceID changes whenever the resource's observable state is
	// mutated (split, merge, transmute).
	ResourceID() int64
	// StateID is the composition id for a Material, or a fixed per-type id
	// for a Product.
	StateID() int64
	// Quantity is the resource's amount, in kg for Material or the
	// Product's declared units.
	Quantity() float64
	// IsEmpty reports whether Quantity() <= Epsilon.
	IsEmpty() bool
	// Kind distinguishes Material from Product for recording/dispatch.
	Kind() string
}

// Material is a resource quantity (kg) typed by a Composition.
type Material struct {
	mu            sync.Mutex
	resourceID    int64
	comp          *composition.Composition
	quantity      float64
	prevDecayTime int
}

// NewMaterial constructs a Material of the given quantity (kg) and
// composition.
func NewMaterial(qty float64, comp *composition.Composition) (*Material, error) {
	if qty < 0 {
		return nil, cerr.Value("resource: material quantity %g is negative", qty)
	}
	return &Material{
		resourceID: allocResourceID(),
		comp:       comp,
		quantity:   qty,
	}, nil
}

// ResourceID implements Resource.
func (m *Material) ResourceID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resourceID
}

// StateID implements Resource: for a Material this is its Composition's id.
func (m *Material) StateID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.comp.ID()
}

// Quantity implements Resource.
func (m *Material) Quantity() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quantity
}

// IsEmpty implements Resource.
func (m *Material) IsEmpty() bool {
	return m.Quantity() <= Epsilon
}

// Kind implements Resource.
func (m *Material) Kind() string { return "Material" }

// Composition returns the material's current composition.
func (m *Material) Composition() *composition.Composition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.comp
}

// massVectorLocked returns the absolute mass vector (kg per nuclide) of the
// material's current composition at its current quantity. Caller must hold
// m.mu.
func (m *Material) massVectorLocked() (compmath.Vec, error) {
	frac, err := m.comp.Mass()
	if err != nil {
		return nil, err
	}
	return compmath.Scale(frac, m.quantity), nil
}

// ExtractQty removes mass q from m and returns a new Material with the same
// composition. Fails with a ValueErr if q exceeds m's quantity by more than
// Epsilon.
func (m *Material) ExtractQty(q float64) (*Material, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if q < 0 {
		return nil, cerr.Value("resource: cannot extract negative quantity %g", q)
	}
	if q-m.quantity > Epsilon {
		return nil, cerr.Value("resource: cannot extract %g kg from material holding %g kg", q, m.quantity)
	}
	remaining := m.quantity - q
	if remaining < 0 {
		remaining = 0
	}
	m.quantity = remaining
	m.resourceID = allocResourceID()

	return &Material{
		resourceID: allocResourceID(),
		comp:       m.comp,
		quantity:   q,
	}, nil
}

// ExtractComp removes mass q of composition c from m, applying threshold
// tau to the residual mass vector after subtraction. Fails if any residual
// nuclide entry would be negative beyond tau (over-extraction of a specific
// nuclide that m does not have enough of).
func (m *Material) ExtractComp(q float64, c compmath.Vec, tau float64) (*Material, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if q < 0 {
		return nil, cerr.Value("resource: cannot extract negative quantity %g", q)
	}
	selfMass, err := m.massVectorLocked()
	if err != nil {
		return nil, err
	}
	extracted := compmath.Scale(c, q)
	residual := compmath.Sub(selfMass, extracted)
	for id, v := range residual {
		if v < -tau {
			return nil, cerr.Value("resource: extraction of nuclide %d leaves negative residual %g", id, v)
		}
	}
	compmath.ApplyThreshold(residual, tau)

	newComp, err := composition.FromMass(residual)
	if err != nil {
		return nil, err
	}
	extractedComp, err := composition.FromMass(compmath.Clone(c))
	if err != nil {
		return nil, err
	}

	m.comp = newComp
	m.quantity -= q
	if m.quantity < 0 {
		m.quantity = 0
	}
	m.resourceID = allocResourceID()

	return &Material{
		resourceID: allocResourceID(),
		comp:       extractedComp,
		quantity:   q,
	}, nil
}

// Absorb merges other into m: the combined mass vector is the entrywise sum
// of both materials' absolute mass vectors, m's quantity becomes the sum of
// both quantities, and other is zeroed out (conservation: the mass moves
// into m, it does not duplicate). When both materials share the same
// Composition, m keeps that Composition (and so its state id). Mass
// conservation holds up to one Epsilon per combine (spec.md §4.4).
func (m *Material) Absorb(other *Material) error {
	if m == other {
		return cerr.Value("resource: cannot absorb a material into itself")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	other.mu.Lock()
	defer other.mu.Unlock()

	if other.comp != m.comp {
		selfMass, err := m.massVectorLocked()
		if err != nil {
			return err
		}
		otherMass, err := other.massVectorLocked()
		if err != nil {
			return err
		}
		newComp, err := composition.FromMass(compmath.Add(selfMass, otherMass))
		if err != nil {
			return err
		}
		m.comp = newComp
	}

	m.quantity += other.quantity
	m.resourceID = allocResourceID()

	other.quantity = 0
	other.resourceID = allocResourceID()
	return nil
}

// Decay advances m to absolute simulation time t, decaying its composition
// by t - prevDecayTime months (shared via the composition's memoized decay
// chain across every material of the same lineage) and recording
// prevDecayTime = t.
func (m *Material) Decay(t int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dt := t - m.prevDecayTime
	if dt == 0 {
		return nil
	}
	if dt < 0 {
		return cerr.Value("resource: cannot decay backward in time (prev=%d, t=%d)", m.prevDecayTime, t)
	}
	decayed, err := m.comp.Decay(dt)
	if err != nil {
		return err
	}
	if decayed != m.comp {
		m.resourceID = allocResourceID()
	}
	m.comp = decayed
	m.prevDecayTime = t
	return nil
}

// Product is a generic, non-nuclide resource quantity typed by an opaque
// quality string and a unit of measure.
type Product struct {
	mu         sync.Mutex
	resourceID int64
	stateID    int64
	units      string
	quality    string
	quantity   float64
}

var productTypeIDs = struct {
	mu   sync.Mutex
	next int64
	ids  map[string]int64
}{ids: make(map[string]int64)}

func productStateID(units, quality string) int64 {
	key := units + "\x00" + quality
	productTypeIDs.mu.Lock()
	defer productTypeIDs.mu.Unlock()
	if id, ok := productTypeIDs.ids[key]; ok {
		return id
	}
	id := productTypeIDs.next
	productTypeIDs.next++
	productTypeIDs.ids[key] = id
	return id
}

// NewProduct constructs a Product of the given quantity, units, and
// quality. The state id is fixed for the lifetime of every Product sharing
// the same (units, quality) pair, since a Product's type does not change
// across split/merge the way a Material's composition can.
func NewProduct(qty float64, units, quality string) (*Product, error) {
	if qty < 0 {
		return nil, cerr.Value("resource: product quantity %g is negative", qty)
	}
	return &Product{
		resourceID: allocResourceID(),
		stateID:    productStateID(units, quality),
		units:      units,
		quality:    quality,
		quantity:   qty,
	}, nil
}

// ResourceID implements Resource.
func (p *Product) ResourceID() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resourceID
}

// StateID implements Resource.
func (p *Product) StateID() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateID
}

// Quantity implements Resource.
func (p *Product) Quantity() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quantity
}

// IsEmpty implements Resource.
func (p *Product) IsEmpty() bool {
	return p.Quantity() <= Epsilon
}

// Kind implements Resource.
func (p *Product) Kind() string { return "Product" }

// Units returns the product's unit of measure.
func (p *Product) Units() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.units
}

// Quality returns the product's opaque quality string.
func (p *Product) Quality() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quality
}

// ExtractQty removes qty from p and returns a new Product of the same
// units/quality. Fails if qty exceeds p's quantity by more than Epsilon.
func (p *Product) ExtractQty(qty float64) (*Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if qty < 0 {
		return nil, cerr.Value("resource: cannot extract negative quantity %g", qty)
	}
	if qty-p.quantity > Epsilon {
		return nil, cerr.Value("resource: cannot extract %g from product holding %g", qty, p.quantity)
	}
	remaining := p.quantity - qty
	if remaining < 0 {
		remaining = 0
	}
	p.quantity = remaining
	p.resourceID = allocResourceID()

	return &Product{
		resourceID: allocResourceID(),
		stateID:    p.stateID,
		units:      p.units,
		quality:    p.quality,
		quantity:   qty,
	}, nil
}

// Absorb merges other into p, requiring matching units/quality, and zeroes
// other.
func (p *Product) Absorb(other *Product) error {
	if p == other {
		return cerr.Value("resource: cannot absorb a product into itself")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	other.mu.Lock()
	defer other.mu.Unlock()

	if p.units != other.units || p.quality != other.quality {
		return cerr.Value("resource: cannot absorb product of mismatched units/quality")
	}
	p.quantity += other.quantity
	p.resourceID = allocResourceID()
	other.quantity = 0
	other.resourceID = allocResourceID()
	return nil
}

// Split extracts qty from r in place, mutating r down to its residual
// quantity and returning the freshly split-off chunk, regardless of
// whether r is a Material or a Product. It exists so callers working only
// against the Resource interface (e.g. internal/market, when splitting an
// offer against a smaller request) don't need their own type switch over
// every concrete resource kind.
func Split(r Resource, qty float64) (Resource, error) {
	switch v := r.(type) {
	case *Material:
		return v.ExtractQty(qty)
	case *Product:
		return v.ExtractQty(qty)
	default:
		return nil, cerr.Cast("resource: kind %s does not support splitting", r.Kind())
	}
}
