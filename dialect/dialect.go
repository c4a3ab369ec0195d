package dialect

import (
	"context"
	"strings"
)

// Dialect names a SQL dialect.
type Dialect string

// Dialects supported by arm.
const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
)

// String implements fmt.Stringer.
func (d Dialect) String() string { return string(d) }

// Detect maps a database/sql driver name to its dialect. Telemetry wrappers
// usually register under a prefixed name (e.g. "postgres-otel"), so the
// match is done on prefixes. Unknown names fall back to SQLite.
func Detect(driverName string) Dialect {
	name := strings.ToLower(driverName)
	switch {
	case strings.HasPrefix(name, "postgres"), strings.HasPrefix(name, "pgx"), strings.HasPrefix(name, "pq"):
		return Postgres
	case strings.HasPrefix(name, "mysql"), strings.HasPrefix(name, "mariadb"):
		return MySQL
	default:
		return SQLite
	}
}

// ExecQuerier wraps the two database operations.
//
// Exec accepts nil or a *sql.Result as v; Query requires a *sql.Rows
// (from dialect/sql) as v. args must be a []any.
type ExecQuerier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for a
// database connection bound to a single dialect.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect resolved for the connection.
	Dialect() Dialect
}

// Tx wraps the Exec and Query operations in a transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}
