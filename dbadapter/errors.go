package dbadapter

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// ErrNotReady is returned when a database does not answer pings in time.
var ErrNotReady = errors.New("database did not become ready")

// ErrorClass is a dialect independent classification of a database error
type ErrorClass string

const (
	ErrorClassUniqueViolation           ErrorClass = "unique violation"
	ErrorClassForeignKeyViolation       ErrorClass = "foreign key violation"
	ErrorClassNotNullViolation          ErrorClass = "not null violation"
	ErrorClassCheckViolation            ErrorClass = "check violation"
	ErrorClassDataTooLong               ErrorClass = "data too long"
	ErrorClassNumericOverflow           ErrorClass = "numeric overflow"
	ErrorClassInvalidTextRepresentation ErrorClass = "invalid text representation"
	ErrorClassUndefinedObject           ErrorClass = "undefined object"
	ErrorClassSyntax                    ErrorClass = "syntax error"
)

// DatabaseError is an error raised by the server while executing a test statement.
// Message is the server text without driver decoration; it is what
// `statement error` expectations are compared with.
type DatabaseError struct {
	Message string
	Code    string
	Class   ErrorClass
	Err     error
}

func (e *DatabaseError) Error() string {
	return e.Err.Error()
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// DatabaseMessage returns the bare server message.
func (e *DatabaseError) DatabaseMessage() string {
	return e.Message
}

// WrapError converts a driver error into a *DatabaseError. Errors that do not come
// from a known driver keep err.Error() as their message.
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &DatabaseError{Message: pgErr.Message, Code: pgErr.Code, Class: classifyPostgresError(pgErr), Err: err}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return &DatabaseError{Message: myErr.Message, Code: strconv.Itoa(int(myErr.Number)), Class: classifyMySQLError(myErr), Err: err}
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return &DatabaseError{Message: sqliteErr.Error(), Code: strconv.Itoa(int(sqliteErr.ExtendedCode)), Class: classifySQLiteError(sqliteErr), Err: err}
	}

	return &DatabaseError{Message: err.Error(), Class: classifyMessage(err.Error()), Err: err}
}

// classifyPostgresError classifies PostgreSQL errors based on SQLSTATE codes
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
func classifyPostgresError(err *pgconn.PgError) ErrorClass {
	switch err.Code {
	// Class 23: Integrity Constraint Violation
	case "23505": // unique_violation
		return ErrorClassUniqueViolation
	case "23503": // foreign_key_violation
		return ErrorClassForeignKeyViolation
	case "23502": // not_null_violation
		return ErrorClassNotNullViolation
	case "23514": // check_violation
		return ErrorClassCheckViolation

	// Class 22: Data Exception
	case "22001": // string_data_right_truncation
		return ErrorClassDataTooLong
	case "22003": // numeric_value_out_of_range
		return ErrorClassNumericOverflow
	case "22P02": // invalid_text_representation
		return ErrorClassInvalidTextRepresentation

	// Class 42: Syntax Error or Access Rule Violation
	case "42601": // syntax_error
		return ErrorClassSyntax
	case "42P01", "42703", "42883": // undefined_table, undefined_column, undefined_function
		return ErrorClassUndefinedObject

	default:
		return ""
	}
}

// classifyMySQLError classifies MySQL errors based on error numbers
// See: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
func classifyMySQLError(err *mysql.MySQLError) ErrorClass {
	switch err.Number {
	case 1062: // ER_DUP_ENTRY
		return ErrorClassUniqueViolation
	case 1451, 1452: // ER_ROW_IS_REFERENCED, ER_NO_REFERENCED_ROW
		return ErrorClassForeignKeyViolation
	case 1048, 1364: // ER_BAD_NULL_ERROR, ER_NO_DEFAULT_FOR_FIELD
		return ErrorClassNotNullViolation
	case 3819: // ER_CHECK_CONSTRAINT_VIOLATED
		return ErrorClassCheckViolation
	case 1406: // ER_DATA_TOO_LONG
		return ErrorClassDataTooLong
	case 1264, 1690: // ER_WARN_DATA_OUT_OF_RANGE, ER_DATA_OUT_OF_RANGE
		return ErrorClassNumericOverflow
	case 1265, 1366: // ER_WARN_DATA_TRUNCATED, ER_TRUNCATED_WRONG_VALUE
		return ErrorClassInvalidTextRepresentation
	case 1064: // ER_PARSE_ERROR
		return ErrorClassSyntax
	case 1146, 1054: // ER_NO_SUCH_TABLE, ER_BAD_FIELD_ERROR
		return ErrorClassUndefinedObject
	default:
		return ""
	}
}

// classifySQLiteError classifies SQLite errors based on extended error codes
// See: https://www.sqlite.org/rescode.html
func classifySQLiteError(err sqlite3.Error) ErrorClass {
	switch err.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return ErrorClassUniqueViolation
	case sqlite3.ErrConstraintForeignKey:
		return ErrorClassForeignKeyViolation
	case sqlite3.ErrConstraintNotNull:
		return ErrorClassNotNullViolation
	case sqlite3.ErrConstraintCheck:
		return ErrorClassCheckViolation
	}

	switch err.Code {
	case sqlite3.ErrMismatch:
		return ErrorClassInvalidTextRepresentation
	case sqlite3.ErrTooBig:
		return ErrorClassDataTooLong
	}

	return classifyMessage(err.Error())
}

// classifyMessage is the fallback for drivers without structured codes.
func classifyMessage(msg string) ErrorClass {
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "syntax error"):
		return ErrorClassSyntax
	case strings.Contains(lower, "no such table"), strings.Contains(lower, "does not exist"):
		return ErrorClassUndefinedObject
	case strings.Contains(lower, "unique constraint"), strings.Contains(lower, "duplicate key"):
		return ErrorClassUniqueViolation
	}

	return ""
}
