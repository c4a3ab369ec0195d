package sql

import (
	"database/sql"
	"database/sql/driver"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"modernc.org/sqlite"

	"github.com/syssam/arm/dialect"
)

// DetectDB resolves the dialect of an open database handle by inspecting
// the type of its driver. Handles backed by an unknown driver are treated
// as SQLite.
func DetectDB(db *sql.DB) dialect.Dialect {
	if d, ok := detectDriver(db.Driver()); ok {
		return d
	}
	return dialect.SQLite
}

// detectDriver reports the dialect of the known driver implementations.
func detectDriver(drv driver.Driver) (dialect.Dialect, bool) {
	switch drv.(type) {
	case *pq.Driver, *stdlib.Driver:
		return dialect.Postgres, true
	case *mysql.MySQLDriver:
		return dialect.MySQL, true
	case *sqlite.Driver:
		return dialect.SQLite, true
	default:
		return "", false
	}
}
