package market

import (
	"context"
	"testing"

	"github.com/cyclus-sim/cyclus/internal/compmath"
	"github.com/cyclus-sim/cyclus/internal/composition"
	"github.com/cyclus-sim/cyclus/internal/eventsink"
	"github.com/cyclus-sim/cyclus/internal/message"
	"github.com/cyclus-sim/cyclus/internal/resource"
	"github.com/cyclus-sim/cyclus/internal/transaction"
	"github.com/stretchr/testify/require"
)

// fakeComm is a leaf agent (no parent) used as a supplier/requester stand-in.
type fakeComm struct {
	id       int64
	received []*message.Envelope
}

func (f *fakeComm) AgentID() int64        { return f.id }
func (f *fakeComm) Parent() (int64, bool) { return 0, false }
func (f *fakeComm) ReceiveMessage(m *message.Envelope) error {
	f.received = append(f.received, m)
	return nil
}

// marketComm adapts a *Market to message.Communicator so it can sit in a
// directory and receive routed envelopes exactly as a real agent tree node
// would.
type marketComm struct {
	id int64
	m  *Market
}

func (mc *marketComm) AgentID() int64        { return mc.id }
func (mc *marketComm) Parent() (int64, bool) { return 0, false }
func (mc *marketComm) ReceiveMessage(m *message.Envelope) error {
	return mc.m.ReceiveMessage(m)
}

type fakeDirectory struct {
	comms map[int64]message.Communicator
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{comms: make(map[int64]message.Communicator)}
}
func (d *fakeDirectory) add(c message.Communicator) { d.comms[c.AgentID()] = c }
func (d *fakeDirectory) Lookup(id int64) (message.Communicator, error) {
	return d.comms[id], nil
}

func newMaterial(t *testing.T, qty float64) resource.Resource {
	t.Helper()
	c, err := composition.FromMass(compmath.Vec{92235001: 1.0})
	require.NoError(t, err)
	m, err := resource.NewMaterial(qty, c)
	require.NoError(t, err)
	return m
}

// deliverOffer/deliverRequest push a one-hop (supplier/requester -> market)
// Up message through the real SendOn routing so the envelope's path and
// current owner end up exactly as they would in a live simulation, which
// matters for the market's later DOWN-leg dispatch in Resolve.
func deliverOffer(t *testing.T, dir message.Directory, supplierID, marketID int64, qty float64) {
	t.Helper()
	trans := transaction.NewOffer(supplierID, "enriched-uranium", newMaterial(t, qty), 10.0, 1.0)
	env := message.NewUp(supplierID, marketID).WithTransaction(trans)
	env.SetNextDest(marketID)
	require.NoError(t, env.SendOn(dir))
}

func deliverRequest(t *testing.T, dir message.Directory, requesterID, marketID int64, qty float64) {
	t.Helper()
	trans := transaction.NewRequest(requesterID, "enriched-uranium", newMaterial(t, qty), 10.0, 1.0)
	env := message.NewUp(requesterID, marketID).WithTransaction(trans)
	env.SetNextDest(marketID)
	require.NoError(t, env.SendOn(dir))
}

const testMarketID = int64(100)

func TestResolveExactMatch(t *testing.T) {
	dir := newFakeDirectory()
	supplier := &fakeComm{id: 1}
	dir.add(supplier)

	m := New("enriched-uranium", nil, nil)
	dir.add(&marketComm{id: testMarketID, m: m})

	deliverOffer(t, dir, 1, testMarketID, 5.0)
	deliverRequest(t, dir, 2, testMarketID, 5.0)

	require.NoError(t, m.Resolve(dir))
	require.Len(t, supplier.received, 1)

	order := supplier.received[0]
	trans, err := order.Transaction()
	require.NoError(t, err)
	requesterID, ok := trans.RequesterID()
	require.True(t, ok)
	require.Equal(t, int64(2), requesterID)
	require.InDelta(t, 5.0, trans.Resource().Quantity(), Epsilon)
}

func TestResolveSplitsLargerOffer(t *testing.T) {
	dir := newFakeDirectory()
	supplier := &fakeComm{id: 1}
	dir.add(supplier)

	m := New("enriched-uranium", nil, nil)
	dir.add(&marketComm{id: testMarketID, m: m})

	deliverOffer(t, dir, 1, testMarketID, 10.0)
	deliverRequest(t, dir, 2, testMarketID, 4.0)

	require.NoError(t, m.Resolve(dir))
	require.Len(t, supplier.received, 1)

	order := supplier.received[0]
	trans, err := order.Transaction()
	require.NoError(t, err)
	require.InDelta(t, 4.0, trans.Resource().Quantity(), Epsilon)

	require.Equal(t, 1, m.PendingOfferCount(), "the 6kg residual should be re-offered")
}

func TestResolveRejectsUnfillableRequest(t *testing.T) {
	dir := newFakeDirectory()
	supplier := &fakeComm{id: 1}
	dir.add(supplier)

	m := New("enriched-uranium", nil, nil)
	dir.add(&marketComm{id: testMarketID, m: m})

	deliverOffer(t, dir, 1, testMarketID, 2.0)
	deliverRequest(t, dir, 2, testMarketID, 10.0)

	require.NoError(t, m.Resolve(dir))
	require.Empty(t, supplier.received, "no order should be dispatched for a rejected request")
	require.Equal(t, 1, m.PendingOfferCount(), "the offer is restored to the pool on rejection")
}

func TestExactStatePolicyRejectsMismatchedComposition(t *testing.T) {
	dir := newFakeDirectory()
	supplier := &fakeComm{id: 1}
	dir.add(supplier)

	m := New("enriched-uranium", ExactStatePolicy{}, nil)
	dir.add(&marketComm{id: testMarketID, m: m})

	deliverOffer(t, dir, 1, testMarketID, 5.0)
	// A distinct composition instance carries a different state id, so
	// ExactStatePolicy refuses to match it even though quantities line up.
	deliverRequest(t, dir, 2, testMarketID, 5.0)

	require.NoError(t, m.Resolve(dir))
	require.Empty(t, supplier.received)
	require.Equal(t, 1, m.PendingOfferCount())
}

func TestTwoOffersFillOneRequest(t *testing.T) {
	dir := newFakeDirectory()
	s1 := &fakeComm{id: 1}
	s2 := &fakeComm{id: 2}
	dir.add(s1)
	dir.add(s2)

	m := New("enriched-uranium", nil, nil)
	dir.add(&marketComm{id: testMarketID, m: m})

	deliverOffer(t, dir, 1, testMarketID, 3.0)
	deliverOffer(t, dir, 2, testMarketID, 3.0)
	deliverRequest(t, dir, 3, testMarketID, 6.0)

	require.NoError(t, m.Resolve(dir))
	require.Len(t, s1.received, 1)
	require.Len(t, s2.received, 1)
}

type recordingObserver struct {
	orders []*transaction.Transaction
}

func (o *recordingObserver) OnFirmOrder(commodity string, trans *transaction.Transaction) {
	o.orders = append(o.orders, trans)
}

func TestObserverNotifiedOnlyForFirmedOrders(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(&fakeComm{id: 1})
	dir.add(&fakeComm{id: 2})

	m := New("enriched-uranium", nil, nil)
	dir.add(&marketComm{id: testMarketID, m: m})
	obs := &recordingObserver{}
	m.SetObserver(obs)

	deliverOffer(t, dir, 1, testMarketID, 5.0)
	deliverRequest(t, dir, 2, testMarketID, 5.0)

	require.NoError(t, m.Resolve(dir))
	require.Len(t, obs.orders, 1)
	require.Equal(t, "enriched-uranium", obs.orders[0].Commodity())
}

func TestObserverNotSentRejectedRequest(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(&fakeComm{id: 1})

	m := New("enriched-uranium", nil, nil)
	dir.add(&marketComm{id: testMarketID, m: m})
	obs := &recordingObserver{}
	m.SetObserver(obs)

	deliverRequest(t, dir, 1, testMarketID, 5.0) // no offer exists to fill it

	require.NoError(t, m.Resolve(dir))
	require.Empty(t, obs.orders)
}

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

func TestRecorderWritesCanonicalRowsForFirmOrder(t *testing.T) {
	dir := newFakeDirectory()
	dir.add(&fakeComm{id: 1})
	dir.add(&fakeComm{id: 2})

	m := New("enriched-uranium", nil, nil)
	dir.add(&marketComm{id: testMarketID, m: m})
	sink := &capturingSink{}
	m.SetRecorder(fakeRecorder{sink})

	deliverOffer(t, dir, 1, testMarketID, 5.0)
	deliverRequest(t, dir, 2, testMarketID, 5.0)

	require.NoError(t, m.Resolve(dir))

	var tables []string
	for _, row := range sink.rows {
		tables = append(tables, row.Table)
	}
	require.Contains(t, tables, "Transactions")
	require.Contains(t, tables, "Resources")
	require.Contains(t, tables, "ResourceTypes")
	require.Contains(t, tables, "Compositions")
}
