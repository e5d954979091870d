// Package agent implements the agent tree Cyclus simulations are built
// from: Region, Institution, Facility, and Market nodes composed from a
// shared Base, grounded on original_source/src/Core/model.h and model.cc
// (the Model base class every concrete archetype subclassed in the
// original).
package agent

import (
	"sync/atomic"

	"github.com/cyclus-sim/cyclus/internal/cerr"
	"github.com/cyclus-sim/cyclus/internal/message"
)

// Kind distinguishes the archetypes an agent can be, mirroring Model's
// ModelType enum.
type Kind int

const (
	RegionKind Kind = iota
	InstitutionKind
	FacilityKind
	MarketKind
)

func (k Kind) String() string {
	switch k {
	case RegionKind:
		return "Region"
	case InstitutionKind:
		return "Institution"
	case FacilityKind:
		return "Facility"
	case MarketKind:
		return "Market"
	default:
		return "Unknown"
	}
}

// Tickable is implemented by agents that take an action once per simulated
// month before market resolution (spec.md's tick phase).
type Tickable interface {
	Tick(t int, dir message.Directory) error
}

// Resolvable is implemented by agents that clear accumulated offers and
// requests once per month (spec.md's resolve phase); internal/market.Market
// satisfies this directly.
type Resolvable interface {
	Resolve(dir message.Directory) error
}

var nextAgentID int64 = -1

// allocAgentID mirrors Model::next_id_, a single counter shared by every
// agent regardless of kind.
func allocAgentID() int64 {
	return atomic.AddInt64(&nextAgentID, 1)
}

// Base holds the identity fields common to every concrete agent, grounded
// on Model's ID_/name_/model_type_/birthtime_/deathtime_ members. It does
// not track parent/children -- that bookkeeping belongs to Tree, since an
// agent's position in the tree is a property of the simulation, not of the
// agent itself.
type Base struct {
	id      int64
	name    string
	kind    Kind
	bornOn  int
	hasBorn bool
	diedOn  int
	hasDied bool
}

// NewBase constructs a Base with a freshly allocated agent id.
func NewBase(name string, kind Kind) Base {
	return Base{id: allocAgentID(), name: name, kind: kind}
}

// AgentID implements message.Communicator.
func (b *Base) AgentID() int64 { return b.id }

// Name returns the agent's prototype/instance name.
func (b *Base) Name() string { return b.name }

// Kind returns the agent's archetype.
func (b *Base) Kind() Kind { return b.kind }

// EnterSimulation records the agent's birth month, mirroring
// Model::Deploy's birthtime_ = ctx_->time() assignment. Calling it more
// than once is a no-op past the first call, since a real agent enters the
// simulation exactly once.
func (b *Base) EnterSimulation(t int) {
	if b.hasBorn {
		return
	}
	b.bornOn = t
	b.hasBorn = true
}

// BornOn returns the month the agent entered the simulation and whether it
// has done so yet.
func (b *Base) BornOn() (int, bool) { return b.bornOn, b.hasBorn }

// Decommission records the agent's death month, mirroring the deathtime_
// assignment that fires (for a born agent) in Model's destructor.
func (b *Base) Decommission(t int) error {
	if !b.hasBorn {
		return cerr.State("agent: %s cannot be decommissioned before entering the simulation", b.name)
	}
	if b.hasDied {
		return cerr.State("agent: %s has already been decommissioned", b.name)
	}
	b.diedOn = t
	b.hasDied = true
	return nil
}

// DiedOn returns the month the agent was decommissioned and whether that
// has happened yet.
func (b *Base) DiedOn() (int, bool) { return b.diedOn, b.hasDied }

// ReceiveMessage is the default handler: an agent that doesn't override it
// (most Region/Institution agents) simply cannot be the target of a
// routed message. SourceFacility and MarketNode provide their own
// implementations.
func (b *Base) ReceiveMessage(m *message.Envelope) error {
	return cerr.State("agent: %s (%s) does not handle incoming messages", b.name, b.kind)
}
