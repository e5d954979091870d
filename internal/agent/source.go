package agent

import (
	"github.com/cyclus-sim/cyclus/internal/cerr"
	"github.com/cyclus-sim/cyclus/internal/composition"
	"github.com/cyclus-sim/cyclus/internal/message"
	"github.com/cyclus-sim/cyclus/internal/resbuf"
	"github.com/cyclus-sim/cyclus/internal/resource"
	"github.com/cyclus-sim/cyclus/internal/transaction"
)

// SourceFacility manufactures a fixed quantity of a fixed-composition
// material every tick and offers the whole batch to its commodity's
// market, grounded on cycamore's Source facility (the canonical
// unconstrained supply archetype in the original). Its own Inventory is
// never populated -- an unconstrained source has nothing to track a
// capacity against -- so committing a matched order delivers the
// transacted resource straight out of the message into the requester's
// inventory rather than removing anything from its own.
type SourceFacility struct {
	*Facility
	marketID  int64
	comp      *composition.Composition
	outputQty float64
	price     float64
}

// NewSourceFacility constructs a source that manufactures outputQty (kg)
// of comp each tick and offers it at price to marketID.
func NewSourceFacility(tree *Tree, name, commodity string, marketID int64, comp *composition.Composition, outputQty, price float64) *SourceFacility {
	return &SourceFacility{
		Facility:  NewFacility(tree, name, commodity, resbuf.Infinity),
		marketID:  marketID,
		comp:      comp,
		outputQty: outputQty,
		price:     price,
	}
}

// Tick manufactures this step's batch and offers it up toward the market.
func (s *SourceFacility) Tick(t int, dir message.Directory) error {
	mat, err := resource.NewMaterial(s.outputQty, s.comp)
	if err != nil {
		return err
	}
	trans := transaction.NewOffer(s.AgentID(), s.Commodity(), mat, s.price, 1.0)
	env := message.NewUp(s.AgentID(), s.marketID).WithTransaction(trans)
	env.SetNextDest(s.marketID)
	return env.SendOn(dir)
}

// ReceiveMessage commits a firm order dispatched back down from the
// market: since a source manufactures on demand rather than shipping out
// of tracked inventory, the commit is simply delivering the already-split
// transacted resource straight into the requester's inventory, mirroring
// ApproveTransfer's requester_->AddResource half with no corresponding
// RemoveResource step (the original's RemoveResource override for an
// unconstrained source is itself a no-op).
func (s *SourceFacility) ReceiveMessage(m *message.Envelope) error {
	if m.Dir() != message.Down {
		return cerr.State("agent: source %s received a non-firm-order message", s.Name())
	}
	trans, err := m.Transaction()
	if err != nil {
		return err
	}
	supplierID, ok := trans.SupplierID()
	if !ok || supplierID != s.AgentID() {
		return cerr.State("agent: source %s received an order naming a different supplier", s.Name())
	}
	requesterID, ok := trans.RequesterID()
	if !ok {
		return cerr.State("agent: order has no requester to deliver to")
	}

	other, err := s.tree.AgentOf(requesterID)
	if err != nil {
		return err
	}
	requester, ok := other.(resourceHolder)
	if !ok {
		return cerr.Cast("agent: requester %d is not a resource-holding facility", requesterID)
	}
	return requester.Inventory().Push(trans.Resource())
}
