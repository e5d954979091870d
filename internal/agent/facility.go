package agent

import "github.com/cyclus-sim/cyclus/internal/resbuf"

// Facility is a leaf agent that holds an inventory of resources and trades
// a single commodity through a market. It is grounded on Model's generic
// RemoveResource/AddResource contract (itself a no-op that throws,
// delegating the real behavior to each concrete facility archetype);
// Facility itself has no commit logic. SourceFacility supplies its own in
// ReceiveMessage; SinkFacility has none, since it only ever receives and
// its inventory is filled by the supplier's commit.
type Facility struct {
	Base
	tree      *Tree
	commodity string
	inventory *resbuf.ResourceBuffer
}

// NewFacility constructs a Facility with a capacity-bounded inventory
// buffer. tree is the agent tree it will be registered into; it is kept so
// a concrete archetype's ReceiveMessage override can locate a
// transaction's counterparty when committing a transfer.
func NewFacility(tree *Tree, name string, commodity string, capacity float64) *Facility {
	return &Facility{
		Base:      NewBase(name, FacilityKind),
		tree:      tree,
		commodity: commodity,
		inventory: resbuf.NewCapacity(capacity),
	}
}

// Commodity returns the single commodity this facility trades.
func (f *Facility) Commodity() string { return f.commodity }

// Inventory exposes the facility's resource buffer.
func (f *Facility) Inventory() *resbuf.ResourceBuffer { return f.inventory }

// resourceHolder is satisfied by any agent embedding *Facility (Source,
// Sink, and future archetypes alike), regardless of the concrete wrapper
// type the tree holds, so a supplier's order-commit logic doesn't need to
// know about every archetype it might be trading with.
type resourceHolder interface {
	Inventory() *resbuf.ResourceBuffer
}
