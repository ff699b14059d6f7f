package dbadapter

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shibukawa/sqldoctest/testrunner/caseexecutor"
	"go.uber.org/zap"
)

// Conn is the subset of *sql.Conn and *sql.DB used to run test statements
type Conn interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLDatabase runs test statements over one database/sql connection and returns
// rows in array mode.
type SQLDatabase struct {
	conn   Conn
	logger *zap.Logger
}

var _ caseexecutor.Database = (*SQLDatabase)(nil)

// NewSQLDatabase wraps conn. A nil logger disables logging.
func NewSQLDatabase(conn Conn, logger *zap.Logger) *SQLDatabase {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SQLDatabase{conn: conn, logger: logger}
}

// Query executes query and reads every row. Values keep their column order;
// []byte values are converted to strings.
func (d *SQLDatabase) Query(ctx context.Context, query string) (*caseexecutor.ResultSet, error) {
	rows, err := d.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, d.wrap(query, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, d.wrap(query, err)
	}

	rs := &caseexecutor.ResultSet{Columns: columns, Rows: [][]any{}}

	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))

		for i := range values {
			dest[i] = &values[i]
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row %d: %w", len(rs.Rows)+1, err)
		}

		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}

		rs.Rows = append(rs.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, d.wrap(query, err)
	}

	return rs, nil
}

// Exec executes a statement and discards its result.
func (d *SQLDatabase) Exec(ctx context.Context, query string) error {
	if _, err := d.conn.ExecContext(ctx, query); err != nil {
		return d.wrap(query, err)
	}

	return nil
}

func (d *SQLDatabase) wrap(query string, err error) error {
	wrapped := WrapError(err)

	if dbErr, ok := wrapped.(*DatabaseError); ok {
		d.logger.Debug("database error",
			zap.String("query", query),
			zap.String("code", dbErr.Code),
			zap.String("class", string(dbErr.Class)),
			zap.String("message", dbErr.Message))
	}

	return wrapped
}
