package inspect

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cyclus-sim/cyclus/internal/agent"
	"github.com/cyclus-sim/cyclus/internal/cyclusctx"
	"github.com/cyclus-sim/cyclus/internal/eventsink"
	"github.com/cyclus-sim/cyclus/internal/message"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestServer() *Server {
	ctx := cyclusctx.New(12, 2020, 1, eventsink.NopRecorder{})
	tree := agent.NewTree()
	return New(Config{
		Port:         0,
		Logger:       zerolog.Nop(),
		Ctx:          ctx,
		Tree:         tree,
		Hub:          NewHub(),
		Transactions: NewLog(0),
	})
}

func TestHandleStatusReportsRunState(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 12, resp.Duration)
	require.Equal(t, 2020, resp.StartYear)
	require.True(t, resp.Running)
}

func TestHandleAgentsReturnsTreeSnapshot(t *testing.T) {
	s := newTestServer()
	comm := &fakeRegistered{id: 1}
	require.NoError(t, s.tree.Register(comm, agent.RegionKind, "root", 0, false, 0))

	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var snaps []agent.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snaps))
	require.Len(t, snaps, 1)
	require.Equal(t, "root", snaps[0].Name)
}

func TestHandleTransactionsFiltersBySince(t *testing.T) {
	s := newTestServer()
	s.txlog.OnFirmOrder("enriched-uranium", newFirmedTransaction(t, 5))
	s.txlog.OnFirmOrder("enriched-uranium", newFirmedTransaction(t, 3))

	req := httptest.NewRequest(http.MethodGet, "/transactions?since=1", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var got []TransactionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, int64(2), got[0].ID)
}

func TestHandleTransactionsRejectsInvalidSince(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/transactions?since=notanumber", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeRegistered struct {
	id int64
}

func (f *fakeRegistered) AgentID() int64 { return f.id }
func (f *fakeRegistered) ReceiveMessage(m *message.Envelope) error {
	return nil
}
