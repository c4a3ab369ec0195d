// Package sql implements dialect.Driver on top of database/sql and holds the
// dialect policy used by the persistence engine.
//
// # Opening a Driver
//
//	drv, err := sql.Open("pgx", "postgres://...")
//
// The dialect is detected once from the type of the database/sql driver
// behind the handle (lib/pq, pgx, go-sql-driver/mysql, modernc sqlite) and
// falls back to the registered driver name. Use OpenDB to wrap an existing
// *sql.DB with an explicit dialect.
//
// # Quoting
//
// QuoteIdentifier and QuoteTable quote names:
//
//	sql.QuoteIdentifier(dialect.Postgres, "user")  // "user"
//	sql.QuoteIdentifier(dialect.MySQL, "user")     // `user`
//	sql.QuoteTable(dialect.SQLite, "main.users")   // "main"."users"
//
// QuoteValue renders scalars as literals:
//
//	sql.QuoteValue(dialect.Postgres, true)         // TRUE
//	sql.QuoteValue(dialect.MySQL, "it's")          // 'it\'s'
//	sql.QuoteValue(dialect.SQLite, []byte{0xff})   // X'ff'
//
// # Wrappers
//
// StatsDriver counts statements, durations and slow statements per record
// operation; DebugDriver logs every statement. Both wrap any dialect.Driver
// and read the Label the record layer attaches with WithLabel:
//
//	ctx = sql.WithLabel(ctx, sql.Label{Entity: "User", Table: "users", Op: "insert"})
package sql
