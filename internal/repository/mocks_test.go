package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lfgarc/giftcode-redeemer/internal/model"
)

// mockPool implements PoolInterface for testing.
type mockPool struct {
	execFn     func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFn    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (m *mockPool) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	if m.execFn != nil {
		return m.execFn(ctx, sql, arguments...)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (m *mockPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFn != nil {
		return m.queryRowFn(ctx, sql, args...)
	}
	return &mockRow{}
}

func (m *mockPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

// mockRow implements pgx.Row for testing single-row queries.
type mockRow struct {
	values []any
	err    error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	for i := range dest {
		if err := assignValue(dest[i], m.values[i]); err != nil {
			return err
		}
	}
	return nil
}

// mockRows implements pgx.Rows for testing multi-row queries.
type mockRows struct {
	rows      [][]any
	index     int
	errOnScan error
	errOnRows error
}

func (m *mockRows) Close() {}

func (m *mockRows) Err() error {
	return m.errOnRows
}

func (m *mockRows) Next() bool {
	if m.index < len(m.rows) {
		m.index++
		return true
	}
	return false
}

func (m *mockRows) Scan(dest ...any) error {
	if m.errOnScan != nil {
		return m.errOnScan
	}
	row := m.rows[m.index-1]
	for i := range dest {
		if err := assignValue(dest[i], row[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) RawValues() [][]byte                          { return nil }
func (m *mockRows) Values() ([]any, error)                       { return nil, nil }
func (m *mockRows) Conn() *pgx.Conn                              { return nil }

// assignValue copies a scripted column value into a Scan destination,
// covering the destination types the repositories actually use.
func assignValue(dest, value any) error {
	switch d := dest.(type) {
	case *string:
		*d = value.(string)
	case *int:
		*d = value.(int)
	case *int64:
		*d = value.(int64)
	case *bool:
		*d = value.(bool)
	case **int64:
		if value == nil {
			*d = nil
		} else {
			v := value.(int64)
			*d = &v
		}
	case *model.JobStatus:
		*d = model.JobStatus(value.(string))
	case *model.HistoryStatus:
		*d = model.HistoryStatus(value.(string))
	case *model.BlockReason:
		*d = model.BlockReason(value.(string))
	case *json.RawMessage:
		if value == nil {
			*d = nil
		} else {
			*d = json.RawMessage(value.(string))
		}
	default:
		return fmt.Errorf("unsupported scan destination %T", dest)
	}
	return nil
}
