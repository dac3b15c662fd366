package rowstore

import "context"

// readOnly passes reads through and swallows writes. It backs dry runs,
// where the engine must observe real state but change nothing.
type readOnly struct {
	inner Store
}

// NewReadOnly wraps s so that all mutations become no-ops.
func NewReadOnly(s Store) Store { return &readOnly{inner: s} }

func (r *readOnly) GetOrCreateTable(ctx context.Context, name string, headers []string) error {
	// Table creation is allowed so a dry run works against a fresh store.
	return r.inner.GetOrCreateTable(ctx, name, headers)
}

func (r *readOnly) ReadRows(ctx context.Context, name string) ([]Row, error) {
	return r.inner.ReadRows(ctx, name)
}

func (r *readOnly) AppendRow(context.Context, string, Row) error { return nil }

func (r *readOnly) UpdateRowsByKey(_ context.Context, _, _, _ string, _ Row) (int, error) {
	return 1, nil
}

func (r *readOnly) GetScalar(ctx context.Context, key string) (string, error) {
	return r.inner.GetScalar(ctx, key)
}

func (r *readOnly) SetScalar(context.Context, string, string) error { return nil }

func (r *readOnly) Close() error { return r.inner.Close() }
