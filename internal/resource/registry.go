package resource

import "sync"

// slot is a generational-index entry in a MaterialRegistry, following the
// arena + generational-index strategy spec.md §9 prescribes in place of the
// original's raw pointer "weak registry of all materials".
type slot struct {
	gen int
	mat *Material // nil when free
}

// MaterialHandle identifies a registered Material by arena slot and
// generation, so a stale handle (after Unregister) is detected rather than
// silently resurrecting a freed slot.
type MaterialHandle struct {
	index int
	gen   int
}

// MaterialRegistry tracks every live Material in a simulation so that global
// decay (spec.md §4.1 step 1, §4.4 "Global decay iterates a weak registry of
// all materials") can walk them without each facility needing to expose its
// inventory. It is owned by the simulation Context, not process-global.
type MaterialRegistry struct {
	mu    sync.Mutex
	slots []slot
	free  []int
}

// NewMaterialRegistry returns an empty registry.
func NewMaterialRegistry() *MaterialRegistry {
	return &MaterialRegistry{}
}

// Register adds m to the registry and returns a handle for later removal.
func (r *MaterialRegistry) Register(m *Material) MaterialHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.free) > 0 {
		idx := r.free[len(r.free)-1]
		r.free = r.free[:len(r.free)-1]
		r.slots[idx].mat = m
		return MaterialHandle{index: idx, gen: r.slots[idx].gen}
	}
	r.slots = append(r.slots, slot{mat: m})
	return MaterialHandle{index: len(r.slots) - 1, gen: 0}
}

// Unregister removes the material at h, if h is still current (i.e. hasn't
// already been unregistered and its slot reused).
func (r *MaterialRegistry) Unregister(h MaterialHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h.index < 0 || h.index >= len(r.slots) {
		return
	}
	s := &r.slots[h.index]
	if s.gen != h.gen || s.mat == nil {
		return
	}
	s.mat = nil
	s.gen++
	r.free = append(r.free, h.index)
}

// DecayAll advances every currently-registered material to absolute time t.
// It snapshots the live set under the lock, then decays outside it, so a
// material that concurrently decommissions mid-pass doesn't deadlock or
// panic on a torn slot.
func (r *MaterialRegistry) DecayAll(t int) error {
	r.mu.Lock()
	live := make([]*Material, 0, len(r.slots))
	for _, s := range r.slots {
		if s.mat != nil {
			live = append(live, s.mat)
		}
	}
	r.mu.Unlock()

	for _, m := range live {
		if err := m.Decay(t); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of currently-registered (live) materials.
func (r *MaterialRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.slots {
		if s.mat != nil {
			n++
		}
	}
	return n
}
