package agent

import (
	"github.com/cyclus-sim/cyclus/internal/composition"
	"github.com/cyclus-sim/cyclus/internal/message"
	"github.com/cyclus-sim/cyclus/internal/resource"
	"github.com/cyclus-sim/cyclus/internal/transaction"
)

// SinkFacility requests, every tick, as much of its commodity as its
// remaining storage capacity allows, grounded on cycamore's Sink facility
// (the canonical unconstrained demand archetype). The resource it actually
// receives is credited to its inventory by the supplying Facility's
// ReceiveMessage commit, not by anything SinkFacility does itself.
type SinkFacility struct {
	*Facility
	marketID int64
	comp     *composition.Composition
	price    float64
}

// NewSinkFacility constructs a sink with the given storage capacity,
// requesting comp-typed material at price from marketID.
func NewSinkFacility(tree *Tree, name, commodity string, marketID int64, comp *composition.Composition, capacity, price float64) *SinkFacility {
	return &SinkFacility{
		Facility: NewFacility(tree, name, commodity, capacity),
		marketID: marketID,
		comp:     comp,
		price:    price,
	}
}

// Tick requests however much space remains in the sink's inventory this
// month. It does nothing once the sink is full.
func (s *SinkFacility) Tick(t int, dir message.Directory) error {
	space := s.Inventory().Space()
	if space <= resource.Epsilon {
		return nil
	}

	want, err := resource.NewMaterial(space, s.comp)
	if err != nil {
		return err
	}
	trans := transaction.NewRequest(s.AgentID(), s.Commodity(), want, s.price, 1.0)
	env := message.NewUp(s.AgentID(), s.marketID).WithTransaction(trans)
	env.SetNextDest(s.marketID)
	return env.SendOn(dir)
}
