package eventsink

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	rows []Row
}

func (f *fakeRecorder) Record(_ context.Context, row Row) error {
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeRecorder) Close() error { return nil }

func TestRowBuilderPreservesColumnOrder(t *testing.T) {
	sink := &fakeRecorder{}
	err := NewRow(sink, "transactions").
		Set("sim_id", "abc").
		Set("time", 3).
		Set("supplier_id", int64(1)).
		Record(context.Background())
	require.NoError(t, err)

	require.Len(t, sink.rows, 1)
	require.Equal(t, "transactions", sink.rows[0].Table)
	require.Equal(t, []string{"sim_id", "time", "supplier_id"}, sink.rows[0].Columns)
}

func TestRowBuilderSetOverwritesWithoutReordering(t *testing.T) {
	sink := &fakeRecorder{}
	err := NewRow(sink, "t").Set("a", 1).Set("b", 2).Set("a", 99).Record(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, sink.rows[0].Columns)
	require.Equal(t, 99, sink.rows[0].Values["a"])
}

func TestNopRecorderDiscardsRows(t *testing.T) {
	var sink Recorder = NopRecorder{}
	require.NoError(t, NewRow(sink, "anything").Set("x", 1).Record(context.Background()))
	require.NoError(t, sink.Close())
}

func TestSQLiteRecorderCreatesAndWidensTable(t *testing.T) {
	rec, err := NewSQLiteRecorder("file::memory:?cache=shared", zerolog.Nop())
	require.NoError(t, err)
	defer rec.Close()

	ctx := context.Background()
	require.NoError(t, NewRow(rec, "agent_entry").Set("agent_id", int64(1)).Set("kind", "Facility").Record(ctx))
	// A later row introducing a new column widens the table rather than failing.
	require.NoError(t, NewRow(rec, "agent_entry").Set("agent_id", int64(2)).Set("kind", "Market").Set("parent_id", int64(1)).Record(ctx))
}
