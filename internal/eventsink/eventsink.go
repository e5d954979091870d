// Package eventsink implements the recording side of the original's
// Model::AddToTable / Transaction::AddTransToTable / AddResourceToTable
// family: every row a simulation wants to persist (an agent's birth or
// death, a resolved transaction, a transacted resource's state) is built
// up as a column set and handed to a Recorder, decoupling what gets
// recorded from where it lands.
package eventsink

import "context"

// Recorder persists a single table row. Table names and column sets are
// caller-defined, mirroring how each original AddToTable override chose
// its own table and columns; a Recorder only needs to know how to store
// an arbitrary named row.
type Recorder interface {
	Record(ctx context.Context, row Row) error
	Close() error
}

// Row is one table row: a table name plus an ordered column set. Column
// order is preserved (not map iteration order) so a SQL-backed Recorder can
// build a stable column list across repeated inserts into the same table.
type Row struct {
	Table   string
	Columns []string
	Values  map[string]any
}

// RowBuilder accumulates columns for a single row before handing it to a
// Recorder, mirroring the original's pattern of an event object that
// fields are added to before AddToTable commits it.
type RowBuilder struct {
	sink  Recorder
	table string
	cols  []string
	vals  map[string]any
}

// NewRow starts a row for table, to be recorded through sink.
func NewRow(sink Recorder, table string) *RowBuilder {
	return &RowBuilder{sink: sink, table: table, vals: make(map[string]any)}
}

// Set attaches a column value and returns the builder for chaining. The
// first call to Set for a given column name establishes that column's
// position in the row; repeated Sets of the same column overwrite its
// value in place.
func (b *RowBuilder) Set(column string, value any) *RowBuilder {
	if _, exists := b.vals[column]; !exists {
		b.cols = append(b.cols, column)
	}
	b.vals[column] = value
	return b
}

// Record commits the accumulated row to the builder's Recorder.
func (b *RowBuilder) Record(ctx context.Context) error {
	return b.sink.Record(ctx, Row{Table: b.table, Columns: b.cols, Values: b.vals})
}

// NopRecorder discards every row, useful for simulations run without
// persistence (e.g. a dry-run or a unit test exercising only in-memory
// state).
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(context.Context, Row) error { return nil }

// Close implements Recorder.
func (NopRecorder) Close() error { return nil }
