// Package resbuf implements ResourceBuffer, a capacity-bounded,
// insertion-ordered container of resource.Resource values, grounded on
// original_source/src/toolkit/res_buf.cc and
// original_source/src/Core/resource_buff.h.
package resbuf

import (
	"math"

	"github.com/cyclus-sim/cyclus/internal/cerr"
	"github.com/cyclus-sim/cyclus/internal/compmath"
	"github.com/cyclus-sim/cyclus/internal/resource"
)

// Infinity is the default (unbounded) capacity, mirroring kBuffInfinity.
const Infinity = math.MaxFloat64

// Epsilon is the quantity-comparison tolerance used for capacity and pop
// bounds checks.
const Epsilon = compmath.Epsilon

// ResourceBuffer holds resources in push order (oldest first) up to a
// configurable capacity. It does not combine resources; each pushed
// resource remains a distinct entry until popped. A zero-value
// ResourceBuffer has zero capacity; use New for an unbounded one.
type ResourceBuffer struct {
	cap     float64
	qty     float64
	entries []resource.Resource
	present map[int64]bool // resource id -> present, duplicate-push guard
}

// New returns an empty ResourceBuffer with unbounded capacity.
func New() *ResourceBuffer {
	return &ResourceBuffer{cap: Infinity, present: make(map[int64]bool)}
}

// NewCapacity returns an empty ResourceBuffer with the given capacity.
func NewCapacity(cap float64) *ResourceBuffer {
	return &ResourceBuffer{cap: cap, present: make(map[int64]bool)}
}

// Capacity returns the buffer's maximum quantity.
func (b *ResourceBuffer) Capacity() float64 { return b.cap }

// SetCapacity sets the buffer's maximum quantity. Fails if the new capacity
// is lower than the buffer's current quantity by more than Epsilon.
func (b *ResourceBuffer) SetCapacity(cap float64) error {
	if b.qty-cap > Epsilon {
		return cerr.Value("resbuf: new capacity %g lower than existing quantity %g", cap, b.qty)
	}
	b.cap = cap
	return nil
}

// Count returns the number of constituent resources.
func (b *ResourceBuffer) Count() int { return len(b.entries) }

// Quantity returns the total quantity of constituent resources, maintained
// via Kahan-compensated summation on every mutation.
func (b *ResourceBuffer) Quantity() float64 { return b.qty }

// Space returns the remaining quantity the buffer can accept.
func (b *ResourceBuffer) Space() float64 { return b.cap - b.qty }

// Empty reports whether the buffer holds no resources.
func (b *ResourceBuffer) Empty() bool { return len(b.entries) == 0 }

// Peek returns the oldest resource without removing it. Fails if empty.
func (b *ResourceBuffer) Peek() (resource.Resource, error) {
	if len(b.entries) < 1 {
		return nil, cerr.Value("resbuf: cannot peek at resource from an empty buffer")
	}
	return b.entries[0], nil
}

func (b *ResourceBuffer) updateQty() {
	qtys := make([]float64, len(b.entries))
	for i, r := range b.entries {
		qtys[i] = r.Quantity()
	}
	b.qty = compmath.KahanSum(qtys)
}

// Push adds a single resource to the back of the buffer. Fails if the
// resource would exceed the buffer's capacity, or if a resource with the
// same resource id is already present.
func (b *ResourceBuffer) Push(r resource.Resource) error {
	if r.Quantity()-b.Space() > Epsilon {
		return cerr.Value("resbuf: pushing breaks capacity limit: space=%g, qty=%g", b.Space(), r.Quantity())
	}
	if b.present[r.ResourceID()] {
		return cerr.Key("resbuf: duplicate resource push attempted")
	}
	b.entries = append(b.entries, r)
	b.present[r.ResourceID()] = true
	b.updateQty()
	return nil
}

// PushAll pushes every resource in rs as a single all-or-nothing operation:
// if any would violate capacity or duplicate an existing entry, none are
// pushed.
func (b *ResourceBuffer) PushAll(rs []resource.Resource) error {
	total := 0.0
	seen := make(map[int64]bool, len(rs))
	for _, r := range rs {
		total += r.Quantity()
		if b.present[r.ResourceID()] || seen[r.ResourceID()] {
			return cerr.Key("resbuf: duplicate resource push attempted")
		}
		seen[r.ResourceID()] = true
	}
	if total-b.Space() > Epsilon {
		return cerr.Value("resbuf: pushing breaks capacity limit: space=%g, qty=%g", b.Space(), total)
	}
	for _, r := range rs {
		b.entries = append(b.entries, r)
		b.present[r.ResourceID()] = true
	}
	b.updateQty()
	return nil
}

// Pop removes and returns the oldest resource. Fails if empty.
func (b *ResourceBuffer) Pop() (resource.Resource, error) {
	if len(b.entries) < 1 {
		return nil, cerr.Value("resbuf: cannot pop resource from an empty buffer")
	}
	r := b.entries[0]
	b.entries = b.entries[1:]
	delete(b.present, r.ResourceID())
	b.updateQty()
	return r, nil
}

// PopBack removes and returns the newest (most recently pushed) resource.
// Fails if empty.
func (b *ResourceBuffer) PopBack() (resource.Resource, error) {
	if len(b.entries) < 1 {
		return nil, cerr.Value("resbuf: cannot pop resource from an empty buffer")
	}
	last := len(b.entries) - 1
	r := b.entries[last]
	b.entries = b.entries[:last]
	delete(b.present, r.ResourceID())
	b.updateQty()
	return r, nil
}

// PopN removes and returns the n oldest resources, unsplit. Fails if num is
// negative or exceeds Count().
func (b *ResourceBuffer) PopN(num int) ([]resource.Resource, error) {
	if num < 0 || b.Count() < num {
		return nil, cerr.Value("resbuf: remove count %d larger than buffer count %d", num, b.Count())
	}
	out := make([]resource.Resource, 0, num)
	for i := 0; i < num; i++ {
		r := b.entries[i]
		out = append(out, r)
		delete(b.present, r.ResourceID())
	}
	b.entries = b.entries[num:]
	b.updateQty()
	return out, nil
}

// splitter is implemented by resource kinds that support extracting an
// exact sub-quantity (currently *resource.Material and *resource.Product).
type splitter interface {
	ExtractQty(q float64) (resource.Resource, error)
}

// materialSplitter and productSplitter adapt the concrete ExtractQty
// signatures (which return *Material / *Product, not the Resource
// interface) to splitter.
type materialSplitter struct{ m *resource.Material }

func (s materialSplitter) ExtractQty(q float64) (resource.Resource, error) { return s.m.ExtractQty(q) }

type productSplitter struct{ p *resource.Product }

func (s productSplitter) ExtractQty(q float64) (resource.Resource, error) { return s.p.ExtractQty(q) }

func asSplitter(r resource.Resource) (splitter, bool) {
	switch v := r.(type) {
	case *resource.Material:
		return materialSplitter{v}, true
	case *resource.Product:
		return productSplitter{v}, true
	default:
		return nil, false
	}
}

// PopQty removes exactly qty (within Epsilon) from the front of the buffer,
// splitting the head resource when it holds more than is still needed. If
// qty is within Epsilon of the buffer's total quantity, every resource is
// popped (no split is attempted, avoiding a near-zero residual entry).
func (b *ResourceBuffer) PopQty(qty float64) ([]resource.Resource, error) {
	if qty > b.qty+Epsilon {
		return nil, cerr.Value("resbuf: removal quantity %g larger than buffer quantity %g", qty, b.qty)
	}
	if qty >= b.qty {
		return b.PopN(b.Count())
	}

	var out []resource.Resource
	left := qty
	for left > Epsilon && len(b.entries) > 0 {
		r := b.entries[0]
		quan := r.Quantity()
		if quan-left > Epsilon {
			sp, ok := asSplitter(r)
			if !ok {
				return nil, cerr.Cast("resbuf: resource kind %s does not support splitting", r.Kind())
			}
			oldID := r.ResourceID()
			head, err := sp.ExtractQty(left)
			if err != nil {
				return nil, err
			}
			// r (still at entries[0]) was mutated in place by ExtractQty and
			// now carries a new resource id; re-key the presence set instead
			// of treating it as removed.
			delete(b.present, oldID)
			b.present[r.ResourceID()] = true
			out = append(out, head)
			left = 0
			break
		}
		b.entries = b.entries[1:]
		delete(b.present, r.ResourceID())
		out = append(out, r)
		left -= quan
	}
	b.updateQty()
	return out, nil
}
