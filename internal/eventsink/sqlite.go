package eventsink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists rows into a pure-Go SQLite database, one table
// per distinct Row.Table seen, creating each table (and widening it with
// new columns) the first time it is written to. This is the Go-native
// equivalent of the original's per-resource-kind, per-transaction-kind
// AddToTable overrides, which each owned a fixed hand-written CREATE TABLE
// statement; here the schema is derived from whatever RowBuilder calls a
// simulation actually makes; connection tuning is adapted from the
// teacher's WAL-mode, bounded-pool SQLite setup.
type SQLiteRecorder struct {
	mu      sync.Mutex
	conn    *sql.DB
	known   map[string]map[string]bool // table -> known column set
	log     zerolog.Logger
	path    string
	stmtBuf strings.Builder
}

// NewSQLiteRecorder opens (creating if necessary) a SQLite database at
// path in WAL mode and returns a Recorder backed by it.
func NewSQLiteRecorder(path string, log zerolog.Logger) (*SQLiteRecorder, error) {
	if !strings.HasPrefix(path, "file:") {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("eventsink: resolve db path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("eventsink: create db directory: %w", err)
		}
		path = absPath
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	connStr := path + sep + "_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
	conn, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("eventsink: open db: %w", err)
	}
	conn.SetMaxOpenConns(1) // SQLite writer serialization, matches WAL single-writer model
	conn.SetConnMaxLifetime(24 * time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("eventsink: ping db: %w", err)
	}

	return &SQLiteRecorder{
		conn:  conn,
		known: make(map[string]map[string]bool),
		log:   log.With().Str("component", "eventsink").Logger(),
		path:  path,
	}, nil
}

// Record implements Recorder.
func (r *SQLiteRecorder) Record(ctx context.Context, row Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureSchema(ctx, row); err != nil {
		return err
	}

	placeholders := make([]string, len(row.Columns))
	args := make([]any, len(row.Columns))
	for i, col := range row.Columns {
		placeholders[i] = "?"
		args[i] = row.Values[col]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(row.Table), strings.Join(quoteIdents(row.Columns), ", "), strings.Join(placeholders, ", "))

	if _, err := r.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("eventsink: insert into %s: %w", row.Table, err)
	}
	return nil
}

// ensureSchema creates row.Table if it doesn't exist yet, or widens it with
// ALTER TABLE ADD COLUMN for any column this row introduces that a prior
// row into the same table didn't have. Caller must hold r.mu.
func (r *SQLiteRecorder) ensureSchema(ctx context.Context, row Row) error {
	cols, seen := r.known[row.Table]
	if !seen {
		sorted := append([]string(nil), row.Columns...)
		sort.Strings(sorted)
		defs := make([]string, len(sorted))
		for i, c := range sorted {
			defs[i] = quoteIdent(c) + " TEXT"
		}
		ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(row.Table), strings.Join(defs, ", "))
		if _, err := r.conn.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("eventsink: create table %s: %w", row.Table, err)
		}
		cols = make(map[string]bool, len(sorted))
		for _, c := range sorted {
			cols[c] = true
		}
		r.known[row.Table] = cols
	}

	for _, c := range row.Columns {
		if cols[c] {
			continue
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", quoteIdent(row.Table), quoteIdent(c))
		if _, err := r.conn.ExecContext(ctx, alter); err != nil {
			return fmt.Errorf("eventsink: widen table %s with column %s: %w", row.Table, c, err)
		}
		cols[c] = true
	}
	return nil
}

// Close implements Recorder.
func (r *SQLiteRecorder) Close() error {
	return r.conn.Close()
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteIdents(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = quoteIdent(s)
	}
	return out
}
