package agent

import (
	"context"
	"sync"

	"github.com/cyclus-sim/cyclus/internal/cerr"
	"github.com/cyclus-sim/cyclus/internal/eventsink"
	"github.com/cyclus-sim/cyclus/internal/message"
)

// Recorder is the event-sink facade Tree records "Agents"/"AgentDeaths"
// rows through. cyclusctx.Context satisfies this directly.
type Recorder interface {
	NewEvent(table string) *eventsink.RowBuilder
}

// commAgent is the minimal surface Tree needs from a registered agent: just
// enough to route a message to it. Facility, Market, and every other
// concrete agent type satisfy this trivially via Base.AgentID plus their
// own ReceiveMessage.
type commAgent interface {
	AgentID() int64
	ReceiveMessage(m *message.Envelope) error
}

type entry struct {
	comm      commAgent
	kind      Kind
	name      string
	parentID  int64
	hasParent bool
	bornOn    int
	diedOn    int
	hasDied   bool
	children  []int64
}

// Tree is the live agent hierarchy for one simulation: it owns
// parent/child bookkeeping and resolves ids to communicators
// for message routing, mirroring the bookkeeping Model::model_list_,
// Model::AddChild/RemoveChild, and Model::parent_/parentID_ perform
// together in the original (split out of the agent type itself here, since
// in Go the tree's topology is the simulation's concern, not the agent's).
type Tree struct {
	mu       sync.Mutex
	entries  map[int64]*entry
	recorder Recorder
}

// NewTree returns an empty agent tree.
func NewTree() *Tree {
	return &Tree{entries: make(map[int64]*entry)}
}

// SetRecorder attaches the event sink Register/Decommission write
// "Agents"/"AgentDeaths" rows through. Recording is skipped entirely when
// none is attached (e.g. in tests that only exercise tree topology).
func (tr *Tree) SetRecorder(r Recorder) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.recorder = r
}

// Register adds comm to the tree under its own AgentID, as a child of
// parentID (if hasParent), entering the simulation at month bornOn. Fails
// if comm's id is already registered, or if hasParent is true but
// parentID names an unregistered or already-dead agent -- mirroring
// AddChild's refusal to link a model to itself or to nothing. Agent ids
// themselves come from agent.NewBase's shared counter, not from the tree,
// so the same id space holds regardless of which Tree an agent ultimately
// registers into.
func (tr *Tree) Register(comm commAgent, kind Kind, name string, parentID int64, hasParent bool, bornOn int) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	id := comm.AgentID()
	if _, exists := tr.entries[id]; exists {
		return cerr.Key("agent: id %d is already registered", id)
	}
	if hasParent {
		parent, ok := tr.entries[parentID]
		if !ok {
			return cerr.Key("agent: parent id %d is not registered", parentID)
		}
		if parent.hasDied {
			return cerr.State("agent: parent id %d has already been decommissioned", parentID)
		}
		if parentID == id {
			return cerr.Value("agent: agent %d cannot be its own parent", id)
		}
		parent.children = append(parent.children, id)
	}

	tr.entries[id] = &entry{
		comm:      comm,
		kind:      kind,
		name:      name,
		parentID:  parentID,
		hasParent: hasParent,
		bornOn:    bornOn,
	}

	if tr.recorder != nil {
		row := tr.recorder.NewEvent("Agents").
			Set("agent_id", id).
			Set("name", name).
			Set("kind", kind.String()).
			Set("parent_id", parentID).
			Set("has_parent", hasParent).
			Set("enter_time", bornOn)
		if err := row.Record(context.Background()); err != nil {
			return cerr.IO("agent: record Agents row for id %d: %v", id, err)
		}
	}
	return nil
}

// Decommission marks id dead as of month t. The entry is not removed from
// the tree immediately -- Prune does that -- so that a message already in
// flight to id this tick still resolves, and so the death can be recorded
// before the agent disappears from lookups.
func (tr *Tree) Decommission(id int64, t int) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	e, ok := tr.entries[id]
	if !ok {
		return cerr.Key("agent: id %d is not registered", id)
	}
	if e.hasDied {
		return cerr.State("agent: id %d has already been decommissioned", id)
	}
	e.diedOn = t
	e.hasDied = true

	if tr.recorder != nil {
		row := tr.recorder.NewEvent("AgentDeaths").
			Set("agent_id", id).
			Set("exit_time", t)
		if err := row.Record(context.Background()); err != nil {
			return cerr.IO("agent: record AgentDeaths row for id %d: %v", id, err)
		}
	}
	return nil
}

// Prune removes every entry marked dead, unlinking it from its parent's
// children, and returns the ids removed. A surviving child of a removed
// agent keeps the removed id as its parentID. Call once per month after tick/resolve, mirroring the deferred
// deletion Model's destructor performs at the end of a simulation but
// applied incrementally here so mid-tick messages still route correctly.
func (tr *Tree) Prune() []int64 {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	var removed []int64
	for id, e := range tr.entries {
		if !e.hasDied {
			continue
		}
		removed = append(removed, id)
		if e.hasParent {
			if parent, ok := tr.entries[e.parentID]; ok {
				parent.children = removeID(parent.children, id)
			}
		}
	}
	for _, id := range removed {
		delete(tr.entries, id)
	}
	return removed
}

func removeID(ids []int64, target int64) []int64 {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// Children returns the ids of id's direct children, in registration order.
func (tr *Tree) Children(id int64) []int64 {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	e, ok := tr.entries[id]
	if !ok {
		return nil
	}
	out := make([]int64, len(e.children))
	copy(out, e.children)
	return out
}

// KindOf returns id's archetype and whether id is registered.
func (tr *Tree) KindOf(id int64) (Kind, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	e, ok := tr.entries[id]
	if !ok {
		return 0, false
	}
	return e.kind, true
}

// IsAlive reports whether id is registered and not yet decommissioned.
func (tr *Tree) IsAlive(id int64) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	e, ok := tr.entries[id]
	return ok && !e.hasDied
}

// lookupAdapter satisfies message.Communicator by combining a registered
// agent's own AgentID/ReceiveMessage with the parent linkage Tree tracks
// independently, so concrete agent types never need to know their own
// position in the tree.
type lookupAdapter struct {
	comm      commAgent
	parentID  int64
	hasParent bool
}

func (a lookupAdapter) AgentID() int64 { return a.comm.AgentID() }
func (a lookupAdapter) Parent() (int64, bool) {
	return a.parentID, a.hasParent
}
func (a lookupAdapter) ReceiveMessage(m *message.Envelope) error {
	return a.comm.ReceiveMessage(m)
}

// Lookup implements message.Directory.
func (tr *Tree) Lookup(id int64) (message.Communicator, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	e, ok := tr.entries[id]
	if !ok {
		return nil, cerr.Key("agent: id %d is not registered", id)
	}
	return lookupAdapter{e.comm, e.parentID, e.hasParent}, nil
}

// AgentOf returns the raw commAgent registered under id, for callers (such
// as SourceFacility.ReceiveMessage) that need the concrete agent rather than the
// Communicator-only view Lookup provides.
func (tr *Tree) AgentOf(id int64) (commAgent, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	e, ok := tr.entries[id]
	if !ok {
		return nil, cerr.Key("agent: id %d is not registered", id)
	}
	return e.comm, nil
}

// Count returns the number of currently registered (including dead but
// unpruned) agents.
func (tr *Tree) Count() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.entries)
}

// Snapshot describes one registered agent's bookkeeping fields, for
// read-only callers (the inspector) that need to enumerate the tree
// without holding a reference to any live agent.
type Snapshot struct {
	ID        int64
	Name      string
	Kind      Kind
	ParentID  int64
	HasParent bool
	BornOn    int
	DiedOn    int
	HasDied   bool
}

// Snapshots returns a point-in-time copy of every registered agent's
// bookkeeping fields, in no particular order.
func (tr *Tree) Snapshots() []Snapshot {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]Snapshot, 0, len(tr.entries))
	for id, e := range tr.entries {
		out = append(out, Snapshot{
			ID:        id,
			Name:      e.name,
			Kind:      e.kind,
			ParentID:  e.parentID,
			HasParent: e.hasParent,
			BornOn:    e.bornOn,
			DiedOn:    e.diedOn,
			HasDied:   e.hasDied,
		})
	}
	return out
}
