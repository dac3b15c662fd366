// Package rowstore defines a small tabular persistence interface: named
// tables of string-valued rows plus a scalar key/value state space. The
// orchestration engine treats it as the system of record; mapping rows to
// typed entities is the job of internal/store.
package rowstore

import (
	"context"
	"fmt"
	"regexp"
)

// Row is one record keyed by column header. Absent columns read as "".
type Row map[string]string

// Clone returns a copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Store is the row-oriented persistence interface.
// Implementations: SQLite (default), PostgreSQL (rowstore/postgres), and
// an in-memory store for tests and dry runs. All writes are additive or
// keyed updates; the engine relies on last-writer-wins semantics.
type Store interface {
	// GetOrCreateTable ensures a table exists with at least the given
	// headers. Existing tables gain missing columns; none are dropped.
	GetOrCreateTable(ctx context.Context, name string, headers []string) error
	// ReadRows returns all rows of a table in insertion order.
	ReadRows(ctx context.Context, name string) ([]Row, error)
	// AppendRow appends one row. Unknown columns are ignored.
	AppendRow(ctx context.Context, name string, row Row) error
	// UpdateRowsByKey sets fields on every row whose keyCol equals keyVal
	// and returns the number of rows updated.
	UpdateRowsByKey(ctx context.Context, name, keyCol, keyVal string, fields Row) (int, error)
	// GetScalar returns the scalar state value for key, or "" when absent.
	GetScalar(ctx context.Context, key string) (string, error)
	// SetScalar upserts a scalar state value.
	SetScalar(ctx context.Context, key, value string) error
	Close() error
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports an error for table or column names that cannot be
// used safely as SQL identifiers.
func ValidIdent(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}
