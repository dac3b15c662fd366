// Package postgres is the PostgreSQL implementation of rowstore.Store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/rowstore"
)

// seqCol orders rows by insertion; it is invisible to callers.
const seqCol = "row_seq"

// Store is the PostgreSQL implementation of rowstore.Store.
type Store struct {
	Pool    *pgxpool.Pool
	headers map[string][]string
}

// Open opens a PostgreSQL connection pool. dsn may be empty to use DATABASE_URL env.
func Open(dsn string) (rowstore.Store, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		return nil, errors.New("postgres DSN or DATABASE_URL required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 20
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}
	s := &Store{Pool: pool, headers: make(map[string][]string)}
	if err := s.init(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS scalar_state (
  state_key   TEXT PRIMARY KEY,
  state_value TEXT NOT NULL,
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	return err
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s == nil || s.Pool == nil {
		return nil
	}
	s.Pool.Close()
	return nil
}

func (s *Store) GetOrCreateTable(ctx context.Context, name string, headers []string) error {
	if err := rowstore.ValidIdent(name); err != nil {
		return err
	}
	for _, h := range headers {
		if err := rowstore.ValidIdent(h); err != nil {
			return err
		}
	}
	existing, err := s.tableColumns(ctx, name)
	if err != nil {
		return err
	}
	if existing == nil {
		cols := []string{fmt.Sprintf("%q BIGSERIAL PRIMARY KEY", seqCol)}
		for _, h := range headers {
			cols = append(cols, fmt.Sprintf("%q TEXT NOT NULL DEFAULT ''", h))
		}
		q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (%s)", name, strings.Join(cols, ", "))
		if _, err := s.Pool.Exec(ctx, q); err != nil {
			return err
		}
		s.headers[name] = append([]string(nil), headers...)
		return nil
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c] = true
	}
	for _, h := range headers {
		if have[h] {
			continue
		}
		q := fmt.Sprintf("ALTER TABLE %q ADD COLUMN IF NOT EXISTS %q TEXT NOT NULL DEFAULT ''", name, h)
		if _, err := s.Pool.Exec(ctx, q); err != nil {
			return err
		}
		existing = append(existing, h)
	}
	s.headers[name] = existing
	return nil
}

func (s *Store) tableColumns(ctx context.Context, name string) ([]string, error) {
	if cols, ok := s.headers[name]; ok {
		return cols, nil
	}
	rows, err := s.Pool.Query(ctx, `
SELECT column_name FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1
ORDER BY ordinal_position`, name)
	if err != nil {
		return nil, err
	}
	cols, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	out := cols[:0]
	for _, c := range cols {
		if c != seqCol {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, nil // table does not exist
	}
	s.headers[name] = out
	return out, nil
}

func (s *Store) ReadRows(ctx context.Context, name string) ([]rowstore.Row, error) {
	if err := rowstore.ValidIdent(name); err != nil {
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
	q := fmt.Sprintf("SELECT %s FROM %q ORDER BY %q ASC", strings.Join(quoted, ", "), name, seqCol)
	rows, err := s.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rowstore.Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		r := make(rowstore.Row, len(cols))
		for i, c := range cols {
			switch v := vals[i].(type) {
			case nil:
				r[c] = ""
			case string:
				r[c] = strings.TrimSpace(v)
			default:
				r[c] = strings.TrimSpace(fmt.Sprint(v))
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) AppendRow(ctx context.Context, name string, row rowstore.Row) error {
	if err := rowstore.ValidIdent(name); err != nil {
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
		marks[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[c]
	}
	q := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)", name, strings.Join(quoted, ", "), strings.Join(marks, ", "))
	_, err = s.Pool.Exec(ctx, q, args...)
	return err
}

func (s *Store) UpdateRowsByKey(ctx context.Context, name, keyCol, keyVal string, fields rowstore.Row) (int, error) {
	if err := rowstore.ValidIdent(name); err != nil {
		return 0, err
	}
	if err := rowstore.ValidIdent(keyCol); err != nil {
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
	if !have[keyCol] {
		return 0, fmt.Errorf("column not found: %s.%s", name, keyCol)
	}
	var sets []string
	var args []any
	for _, c := range cols {
		v, ok := fields[c]
		if !ok {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%q = $%d", c, len(args)))
	}
	if len(sets) == 0 {
		return 0, nil
	}
	args = append(args, keyVal)
	q := fmt.Sprintf("UPDATE %q SET %s WHERE %q = $%d", name, strings.Join(sets, ", "), keyCol, len(args))
	tag, err := s.Pool.Exec(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) GetScalar(ctx context.Context, key string) (string, error) {
	var v string
	err := s.Pool.QueryRow(ctx, `SELECT state_value FROM scalar_state WHERE state_key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func (s *Store) SetScalar(ctx context.Context, key, value string) error {
	_, err := s.Pool.Exec(ctx, `
INSERT INTO scalar_state(state_key, state_value) VALUES($1, $2)
ON CONFLICT(state_key) DO UPDATE SET state_value = EXCLUDED.state_value, updated_at = now()`,
		key, value)
	return err
}
