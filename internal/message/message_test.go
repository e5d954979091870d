package message

import (
	"testing"

	"github.com/cyclus-sim/cyclus/internal/cerr"
	"github.com/stretchr/testify/require"
)

// fakeComm is a minimal Communicator used to exercise routing without
// depending on internal/agent.
type fakeComm struct {
	id        int64
	parent    int64
	hasParent bool
	received  []*Envelope
}

func (f *fakeComm) AgentID() int64 { return f.id }
func (f *fakeComm) Parent() (int64, bool) {
	return f.parent, f.hasParent
}
func (f *fakeComm) ReceiveMessage(m *Envelope) error {
	f.received = append(f.received, m)
	return nil
}

type fakeDirectory struct {
	comms map[int64]*fakeComm
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{comms: make(map[int64]*fakeComm)}
}

func (d *fakeDirectory) add(c *fakeComm) { d.comms[c.id] = c }

func (d *fakeDirectory) Lookup(id int64) (Communicator, error) {
	c, ok := d.comms[id]
	if !ok {
		return nil, cerr.Key("no such communicator: %d", id)
	}
	return c, nil
}

// buildTree wires facility(id=1) -> inst(id=2) -> region(id=3, root).
func buildTree() (*fakeDirectory, *fakeComm, *fakeComm, *fakeComm) {
	d := newFakeDirectory()
	region := &fakeComm{id: 3}
	inst := &fakeComm{id: 2, parent: 3, hasParent: true}
	facility := &fakeComm{id: 1, parent: 2, hasParent: true}
	d.add(region)
	d.add(inst)
	d.add(facility)
	return d, facility, inst, region
}

func TestUpMessageClimbsToParentThenReceiver(t *testing.T) {
	d, facility, inst, region := buildTree()

	m := NewUp(facility.id, region.id)
	require.NoError(t, m.SendOn(d))
	require.Len(t, inst.received, 1, "facility has no manual next dest, so it auto-climbs to its parent")

	require.NoError(t, m.SendOn(d))
	require.Len(t, region.received, 1, "inst auto-climbs to its parent, the region")
}

func TestUpMessageFallsBackToReceiverAtRoot(t *testing.T) {
	d, _, _, region := buildTree()

	m := NewUp(region.id, region.id)
	// region has no parent, so auto-set falls back to the receiver (itself
	// here) -- sending to self is a routing error.
	err := m.SendOn(d)
	require.Error(t, err)
}

func TestDownMessageRetracesPath(t *testing.T) {
	d, facility, inst, region := buildTree()

	m := NewUp(facility.id, region.id)
	require.NoError(t, m.SendOn(d)) // facility -> inst
	require.NoError(t, m.SendOn(d)) // inst -> region

	m.SetDir(Down)
	require.NoError(t, m.SendOn(d)) // region -> inst
	require.Len(t, inst.received, 2, "inst receives once on the way up, once on the way down")

	require.NoError(t, m.SendOn(d)) // inst -> facility
	require.Len(t, facility.received, 1)
}

func TestDeadMessageIsNoOp(t *testing.T) {
	d, facility, inst, _ := buildTree()

	m := NewUp(facility.id, inst.id)
	m.Kill()
	require.NoError(t, m.SendOn(d))
	require.Empty(t, inst.received)
}

func TestSelfSendIsRoutingError(t *testing.T) {
	d, facility, _, _ := buildTree()

	m := NewUp(facility.id, facility.id)
	m.SetNextDest(facility.id)
	err := m.SendOn(d)
	require.Error(t, err)
}
