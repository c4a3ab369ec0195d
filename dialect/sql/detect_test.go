package sql

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/arm/dialect"
)

func TestDetectDB(t *testing.T) {
	tests := []struct {
		driver string
		dsn    string
		want   dialect.Dialect
	}{
		{"postgres", "postgres://localhost:1/db?sslmode=disable", dialect.Postgres},
		{"pgx", "postgres://localhost:1/db", dialect.Postgres},
		{"mysql", "user:pass@tcp(localhost:1)/db", dialect.MySQL},
		{"sqlite", filepath.Join(t.TempDir(), "detect.db"), dialect.SQLite},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			db, err := sql.Open(tt.driver, tt.dsn)
			require.NoError(t, err)
			defer db.Close()
			assert.Equal(t, tt.want, DetectDB(db))
		})
	}
}

func TestDetectDBUnknownDriver(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, dialect.SQLite, DetectDB(db))
}
