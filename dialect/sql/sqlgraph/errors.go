package sqlgraph

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	return IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err)
}

// sqlStateError is an interface for errors that provide SQLSTATE codes.
// Implemented by: *pq.Error and *pgconn.PgError.
type sqlStateError interface {
	SQLState() string
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
// e.g. duplicate value in unique index.
func IsUniqueConstraintError(err error) bool {
	return matches(err,
		[]string{pgUniqueViolation},
		[]uint16{mysqlDuplicateEntry},
		[]int{sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY},
		"Error 1062",                 // MySQL (string fallback)
		"violates unique constraint", // Postgres (string fallback)
		"UNIQUE constraint failed",   // SQLite
	)
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
// e.g. parent row does not exist.
func IsForeignKeyConstraintError(err error) bool {
	return matches(err,
		[]string{pgForeignKeyViolation},
		[]uint16{mysqlForeignKeyParent, mysqlForeignKeyChild},
		[]int{sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY},
		"Error 1451",
		"Error 1452",
		"violates foreign key constraint",
		"FOREIGN KEY constraint failed",
	)
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
// e.g. a value does not satisfy a check condition.
func IsCheckConstraintError(err error) bool {
	return matches(err,
		[]string{pgCheckViolation},
		[]uint16{mysqlCheckConstraintViolate},
		[]int{sqlite3.SQLITE_CONSTRAINT_CHECK},
		"Error 3819",
		"violates check constraint",
		"CHECK constraint failed",
	)
}

// matches checks the typed driver errors first and falls back to message
// matching for drivers (or wrappers) that hide them.
func matches(err error, states []string, numbers []uint16, codes []int, fallback ...string) bool {
	if err == nil {
		return false
	}
	if e, ok := asError[sqlStateError](err); ok {
		for _, s := range states {
			if e.SQLState() == s {
				return true
			}
		}
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		for _, n := range numbers {
			if myErr.Number == n {
				return true
			}
		}
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		for _, c := range codes {
			if liteErr.Code() == c {
				return true
			}
		}
	}
	return containsAny(err.Error(), fallback...)
}

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
