package agent

import (
	"context"
	"testing"

	"github.com/cyclus-sim/cyclus/internal/eventsink"
	"github.com/cyclus-sim/cyclus/internal/message"
	"github.com/stretchr/testify/require"
)

// fakeRecorder satisfies Recorder directly over an in-memory eventsink.Recorder,
// mirroring how cyclusctx.Context.NewEvent stamps rows in production.
type fakeRecorder struct{ sink eventsink.Recorder }

func (f fakeRecorder) NewEvent(table string) *eventsink.RowBuilder {
	return eventsink.NewRow(f.sink, table)
}

type capturingSink struct{ rows []eventsink.Row }

func (s *capturingSink) Record(_ context.Context, row eventsink.Row) error {
	s.rows = append(s.rows, row)
	return nil
}
func (s *capturingSink) Close() error { return nil }

type stubComm struct {
	Base
}

func newStubComm(name string) *stubComm { return &stubComm{Base: NewBase(name, RegionKind)} }

func TestRegisterRootAndChild(t *testing.T) {
	tr := NewTree()
	root := newStubComm("root")
	require.NoError(t, tr.Register(root, RegionKind, "root", 0, false, 0))

	child := newStubComm("child")
	require.NoError(t, tr.Register(child, InstitutionKind, "child", root.AgentID(), true, 1))

	require.Equal(t, []int64{child.AgentID()}, tr.Children(root.AgentID()))
	kind, ok := tr.KindOf(child.AgentID())
	require.True(t, ok)
	require.Equal(t, InstitutionKind, kind)
}

func TestRegisterDuplicateIDRejected(t *testing.T) {
	tr := NewTree()
	a := newStubComm("a")
	require.NoError(t, tr.Register(a, RegionKind, "a", 0, false, 0))
	require.Error(t, tr.Register(a, RegionKind, "a-again", 0, false, 0))
}

func TestRegisterMissingParentRejected(t *testing.T) {
	tr := NewTree()
	a := newStubComm("a")
	require.Error(t, tr.Register(a, InstitutionKind, "a", 999, true, 0))
}

func TestDecommissionThenPruneUnlinksChild(t *testing.T) {
	tr := NewTree()
	root := newStubComm("root")
	require.NoError(t, tr.Register(root, RegionKind, "root", 0, false, 0))
	child := newStubComm("child")
	require.NoError(t, tr.Register(child, InstitutionKind, "child", root.AgentID(), true, 0))

	require.NoError(t, tr.Decommission(child.AgentID(), 5))
	require.True(t, tr.IsAlive(root.AgentID()))
	require.False(t, tr.IsAlive(child.AgentID()), "decommissioned agents stop reporting alive immediately")

	removed := tr.Prune()
	require.Equal(t, []int64{child.AgentID()}, removed)
	require.Empty(t, tr.Children(root.AgentID()))
}

func TestLookupSatisfiesMessageDirectory(t *testing.T) {
	tr := NewTree()
	root := newStubComm("root")
	require.NoError(t, tr.Register(root, RegionKind, "root", 0, false, 0))
	child := newStubComm("child")
	require.NoError(t, tr.Register(child, InstitutionKind, "child", root.AgentID(), true, 0))

	var dir message.Directory = tr
	comm, err := dir.Lookup(child.AgentID())
	require.NoError(t, err)
	parentID, ok := comm.Parent()
	require.True(t, ok)
	require.Equal(t, root.AgentID(), parentID)

	rootComm, err := dir.Lookup(root.AgentID())
	require.NoError(t, err)
	_, ok = rootComm.Parent()
	require.False(t, ok, "a registered root has no parent")
}

func TestLookupUnknownIDFails(t *testing.T) {
	tr := NewTree()
	_, err := tr.Lookup(42)
	require.Error(t, err)
}

func TestSnapshotsReflectsRegisteredAgents(t *testing.T) {
	tr := NewTree()
	root := newStubComm("root")
	require.NoError(t, tr.Register(root, RegionKind, "root", 0, false, 0))
	child := newStubComm("child")
	require.NoError(t, tr.Register(child, FacilityKind, "child", root.AgentID(), true, 2))
	require.NoError(t, tr.Decommission(child.AgentID(), 5))

	snaps := tr.Snapshots()
	require.Len(t, snaps, 2)

	byName := make(map[string]Snapshot, len(snaps))
	for _, s := range snaps {
		byName[s.Name] = s
	}
	require.False(t, byName["root"].HasParent)
	require.True(t, byName["child"].HasParent)
	require.Equal(t, root.AgentID(), byName["child"].ParentID)
	require.True(t, byName["child"].HasDied)
	require.Equal(t, 5, byName["child"].DiedOn)
}

func TestRecorderWritesAgentsAndAgentDeathsRows(t *testing.T) {
	sink := &capturingSink{}
	tr := NewTree()
	tr.SetRecorder(fakeRecorder{sink})

	root := newStubComm("root")
	require.NoError(t, tr.Register(root, RegionKind, "root", 0, false, 0))
	require.NoError(t, tr.Decommission(root.AgentID(), 3))

	require.Len(t, sink.rows, 2)
	require.Equal(t, "Agents", sink.rows[0].Table)
	require.Equal(t, root.AgentID(), sink.rows[0].Values["agent_id"])
	require.Equal(t, "AgentDeaths", sink.rows[1].Table)
	require.Equal(t, 3, sink.rows[1].Values["exit_time"])
}
