package mount

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// stubDB implements core.DB with pluggable functions, enough for exercising
// the manager without a database.
type stubDB struct {
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row

	execSQL  []string
	queryLog []queryCall
}

type queryCall struct {
	sql  string
	args []any
}

func (s *stubDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.execSQL = append(s.execSQL, sql)
	if s.execFunc != nil {
		return s.execFunc(ctx, sql, args...)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (s *stubDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	s.queryLog = append(s.queryLog, queryCall{sql: sql, args: args})
	if s.queryFunc != nil {
		return s.queryFunc(ctx, sql, args...)
	}
	return &stubRows{}, nil
}

func (s *stubDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if s.queryRowFunc != nil {
		return s.queryRowFunc(ctx, sql, args...)
	}
	return &stubRow{scan: func(...any) error { return pgx.ErrNoRows }}
}

type stubRow struct {
	scan func(dest ...any) error
}

func (r *stubRow) Scan(dest ...any) error { return r.scan(dest...) }

// stubRows yields one scan function per row.
type stubRows struct {
	idx   int
	scans []func(dest ...any) error
}

func (r *stubRows) Next() bool { return r.idx < len(r.scans) }

func (r *stubRows) Scan(dest ...any) error {
	fn := r.scans[r.idx]
	r.idx++
	return fn(dest...)
}

func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) Close()                                       {}
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Values() ([]any, error)                       { return nil, nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }
