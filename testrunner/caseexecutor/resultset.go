package caseexecutor

import (
	"context"
	"errors"
)

// ResultSet is a query result in array mode: every row is ordered by column
// position exactly as returned by the database.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// ColumnCount returns the width of the result: the first row when present,
// otherwise the column metadata.
func (rs *ResultSet) ColumnCount() int {
	if rs == nil {
		return 0
	}

	if len(rs.Rows) > 0 {
		return len(rs.Rows[0])
	}

	return len(rs.Columns)
}

func (rs *ResultSet) rows() [][]any {
	if rs == nil {
		return nil
	}

	return rs.Rows
}

// Database is the capability the executor needs from a connection. Query must
// return all rows. Errors raised by the database should implement
// DatabaseMessage() so the executor reports the server message verbatim.
type Database interface {
	Query(ctx context.Context, sql string) (*ResultSet, error)
	Exec(ctx context.Context, sql string) error
}

type databaseMessager interface {
	DatabaseMessage() string
}

// databaseMessage extracts the message the database produced for err.
func databaseMessage(err error) string {
	var m databaseMessager
	if errors.As(err, &m) {
		return m.DatabaseMessage()
	}

	return err.Error()
}
