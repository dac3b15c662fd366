package rowstore

import (
	"context"
	"fmt"
	"sync"
)

// memStore is an in-memory Store, used by tests and dry runs.
type memStore struct {
	mu      sync.RWMutex
	headers map[string][]string
	rows    map[string][]Row
	scalars map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() Store {
	return &memStore{
		headers: make(map[string][]string),
		rows:    make(map[string][]Row),
		scalars: make(map[string]string),
	}
}

func (m *memStore) Close() error { return nil }

func (m *memStore) GetOrCreateTable(_ context.Context, name string, headers []string) error {
	if err := ValidIdent(name); err != nil {
		return err
	}
	for _, h := range headers {
		if err := ValidIdent(h); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.headers[name]
	if !ok {
		m.headers[name] = append([]string(nil), headers...)
		m.rows[name] = nil
		return nil
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c] = true
	}
	for _, h := range headers {
		if !have[h] {
			existing = append(existing, h)
		}
	}
	m.headers[name] = existing
	return nil
}

func (m *memStore) ReadRows(_ context.Context, name string) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cols, ok := m.headers[name]
	if !ok {
		return nil, fmt.Errorf("table not found: %s", name)
	}
	out := make([]Row, 0, len(m.rows[name]))
	for _, r := range m.rows[name] {
		c := make(Row, len(cols))
		for _, col := range cols {
			c[col] = r[col]
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *memStore) AppendRow(_ context.Context, name string, row Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cols, ok := m.headers[name]
	if !ok {
		return fmt.Errorf("table not found: %s", name)
	}
	r := make(Row, len(cols))
	for _, col := range cols {
		r[col] = row[col]
	}
	m.rows[name] = append(m.rows[name], r)
	return nil
}

func (m *memStore) UpdateRowsByKey(_ context.Context, name, keyCol, keyVal string, fields Row) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cols, ok := m.headers[name]
	if !ok {
		return 0, fmt.Errorf("table not found: %s", name)
	}
	have := make(map[string]bool, len(cols))
	for _, c := range cols {
		have[c] = true
	}
	if !have[keyCol] {
		return 0, fmt.Errorf("column not found: %s.%s", name, keyCol)
	}
	n := 0
	for _, r := range m.rows[name] {
		if r[keyCol] != keyVal {
			continue
		}
		for k, v := range fields {
			if have[k] {
				r[k] = v
			}
		}
		n++
	}
	return n, nil
}

func (m *memStore) GetScalar(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scalars[key], nil
}

func (m *memStore) SetScalar(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scalars[key] = value
	return nil
}
