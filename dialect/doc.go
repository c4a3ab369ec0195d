// Package dialect defines the database dialects understood by arm and the
// driver interfaces the persistence engine executes statements through.
//
// # Supported Dialects
//
// A Dialect is a closed set of values:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// SQLite is the fallback: any driver that is not recognised as PostgreSQL
// or MySQL is treated as SQLite.
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() Dialect
//	}
//
// The dialect of a Driver is resolved once, when the driver is created, and
// carried alongside the connection for its whole lifetime.
//
// # Transaction Interface
//
//	type Tx interface {
//	    ExecQuerier
//	    Commit() error
//	    Rollback() error
//	}
//
// # Sub-packages
//
//   - dialect/sql: database/sql backed driver, dialect detection and quoting
//   - dialect/sql/sqlgraph: driver error classification
package dialect
