package rowstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteStore is the SQLite implementation of Store. Logical tables are
// physical tables with TEXT columns; insertion order is the implicit rowid.
type sqliteStore struct {
	db *sql.DB
	// headers cache per table, populated by GetOrCreateTable/introspection.
	headers map[string][]string
}

// Open opens the default SQLite store at home/data/replybot.db.
func Open(home string) (Store, error) {
	dbPath := filepath.Join(home, "data", "replybot.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	return OpenDSN("file:" + dbPath + "?_pragma=busy_timeout(5000)")
}

// OpenDSN opens a SQLite store from a DSN.
func OpenDSN(dsn string) (Store, error) {
	if dsn == "" {
		return nil, errors.New("sqlite DSN required")
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn + "?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &sqliteStore{db: db, headers: make(map[string][]string)}
	if err := s.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqliteStore) init(ctx context.Context) error {
	// WAL yields much better concurrency for the read-heavy tick loop.
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=MEMORY;",
		"PRAGMA cache_size=-20000;",
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS scalar_state (
  state_key   TEXT PRIMARY KEY,
  state_value TEXT NOT NULL,
  updated_at  INTEGER NOT NULL
);`)
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) GetOrCreateTable(ctx context.Context, name string, headers []string) error {
	if err := ValidIdent(name); err != nil {
		return err
	}
	for _, h := range headers {
		if err := ValidIdent(h); err != nil {
			return err
		}
	}
	existing, err := s.tableColumns(ctx, name)
	if err != nil {
		return err
	}
	if existing == nil {
		cols := make([]string, 0, len(headers))
		for _, h := range headers {
			cols = append(cols, fmt.Sprintf("%q TEXT NOT NULL DEFAULT ''", h))
		}
		q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (%s)", name, strings.Join(cols, ", "))
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
		s.headers[name] = append([]string(nil), headers...)
		return nil
	}
	// Additive: add any missing columns, never drop.
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c] = true
	}
	for _, h := range headers {
		if have[h] {
			continue
		}
		q := fmt.Sprintf("ALTER TABLE %q ADD COLUMN %q TEXT NOT NULL DEFAULT ''", name, h)
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
		existing = append(existing, h)
	}
	s.headers[name] = existing
	return nil
}

func (s *sqliteStore) tableColumns(ctx context.Context, name string) ([]string, error) {
	if cols, ok := s.headers[name]; ok {
		return cols, nil
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", name))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var cols []string
	for rows.Next() {
		var (
			cid     int
			colName string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, colName)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, nil // table does not exist
	}
	s.headers[name] = cols
	return cols, nil
}

func (s *sqliteStore) ReadRows(ctx context.Context, name string) ([]Row, error) {
	if err := ValidIdent(name); err != nil {
		return nil, err
	}
	cols, err := s.tableColumns(ctx, name)
	if err != nil {
		return nil, err
	}
	if cols == nil {
		return nil, fmt.Errorf("table not found: %s", name)
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	q := fmt.Sprintf("SELECT %s FROM %q ORDER BY rowid ASC", strings.Join(quoted, ", "), name)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Row
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		r := make(Row, len(cols))
		for i, c := range cols {
			switch v := vals[i].(type) {
			case nil:
				r[c] = ""
			case string:
				r[c] = strings.TrimSpace(v)
			case []byte:
				r[c] = strings.TrimSpace(string(v))
			default:
				r[c] = strings.TrimSpace(fmt.Sprint(v))
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) AppendRow(ctx context.Context, name string, row Row) error {
	if err := ValidIdent(name); err != nil {
		return err
	}
	cols, err := s.tableColumns(ctx, name)
	if err != nil {
		return err
	}
	if cols == nil {
		return fmt.Errorf("table not found: %s", name)
	}
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = fmt.Sprintf("%q", c)
		marks[i] = "?"
		args[i] = row[c]
	}
	q := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)", name, strings.Join(quoted, ", "), strings.Join(marks, ", "))
	_, err = s.db.ExecContext(ctx, q, args...)
	return err
}

func (s *sqliteStore) UpdateRowsByKey(ctx context.Context, name, keyCol, keyVal string, fields Row) (int, error) {
	if err := ValidIdent(name); err != nil {
		return 0, err
	}
	if err := ValidIdent(keyCol); err != nil {
		return 0, err
	}
	cols, err := s.tableColumns(ctx, name)
	if err != nil {
		return 0, err
	}
	if cols == nil {
		return 0, fmt.Errorf("table not found: %s", name)
	}
	have := make(map[string]bool, len(cols))
	for _, c := range cols {
		have[c] = true
	}
	var sets []string
	var args []any
	for _, c := range cols { // iterate cols for deterministic order
		v, ok := fields[c]
		if !ok {
			continue
		}
		sets = append(sets, fmt.Sprintf("%q = ?", c))
		args = append(args, v)
	}
	if len(sets) == 0 {
		return 0, nil
	}
	if !have[keyCol] {
		return 0, fmt.Errorf("column not found: %s.%s", name, keyCol)
	}
	args = append(args, keyVal)
	q := fmt.Sprintf("UPDATE %q SET %s WHERE %q = ?", name, strings.Join(sets, ", "), keyCol)
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *sqliteStore) GetScalar(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT state_value FROM scalar_state WHERE state_key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func (s *sqliteStore) SetScalar(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Unix()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO scalar_state(state_key, state_value, updated_at) VALUES(?, ?, ?)
ON CONFLICT(state_key) DO UPDATE SET state_value = excluded.state_value, updated_at = excluded.updated_at`,
		key, value, now)
	return err
}
