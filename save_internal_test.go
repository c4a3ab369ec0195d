package arm

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/arm/dialect"
	"github.com/syssam/arm/dialect/sql"
)

func testModel(t *testing.T, opts ...ModelOption) *Model {
	t.Helper()
	m, err := NewModel(NewRegistry(), "User", append([]ModelOption{WithTable("users")}, opts...)...)
	require.NoError(t, err)
	return m
}

func TestBuildSave(t *testing.T) {
	fresh := NewData("id", nil, "name", "Alice", "age", 30)
	known := NewData("id", 7, "name", "Alice", "age", 31)

	tests := []struct {
		name      string
		dialect   dialect.Dialect
		data      *Data
		opts      []ModelOption
		op        string
		writeBack bool
		query     string
	}{
		{
			name:      "mysql/insert",
			dialect:   dialect.MySQL,
			data:      fresh,
			op:        opInsert,
			writeBack: true,
			query:     "INSERT INTO `users` (`name`, `age`) VALUES ('Alice', 30)",
		},
		{
			name:    "mysql/upsert",
			dialect: dialect.MySQL,
			data:    known,
			op:      opUpsert,
			query:   "INSERT INTO `users` (`id`, `name`, `age`) VALUES (7, 'Alice', 31) ON DUPLICATE KEY UPDATE `name` = VALUES(`name`), `age` = VALUES(`age`)",
		},
		{
			name:    "mysql/upsert_id_only",
			dialect: dialect.MySQL,
			data:    NewData("id", 7),
			op:      opUpsert,
			query:   "INSERT INTO `users` (`id`) VALUES (7) ON DUPLICATE KEY UPDATE `id` = `id`",
		},
		{
			name:      "mysql/empty_columns",
			dialect:   dialect.MySQL,
			data:      NewData("id", nil),
			op:        opInsert,
			writeBack: true,
			query:     "INSERT INTO `users` () VALUES ()",
		},
		{
			name:      "sqlite/insert",
			dialect:   dialect.SQLite,
			data:      fresh,
			op:        opReplace,
			writeBack: true,
			query:     `INSERT OR REPLACE INTO "users" ("name", "age") VALUES ('Alice', 30)`,
		},
		{
			name:    "sqlite/replace",
			dialect: dialect.SQLite,
			data:    known,
			op:      opReplace,
			query:   `INSERT OR REPLACE INTO "users" ("id", "name", "age") VALUES (7, 'Alice', 31)`,
		},
		{
			name:      "sqlite/default_values",
			dialect:   dialect.SQLite,
			data:      NewData("id", 0),
			op:        opReplace,
			writeBack: true,
			query:     `INSERT OR REPLACE INTO "users" DEFAULT VALUES`,
		},
		{
			name:    "sqlite/no_auto_id",
			dialect: dialect.SQLite,
			data:    fresh,
			opts:    []ModelOption{WithAutoID(false)},
			op:      opReplace,
			query:   `INSERT OR REPLACE INTO "users" ("id", "name", "age") VALUES (NULL, 'Alice', 30)`,
		},
		{
			name:      "postgres/insert",
			dialect:   dialect.Postgres,
			data:      fresh,
			op:        opInsert,
			writeBack: true,
			query:     `INSERT INTO "users" ("name", "age") VALUES ('Alice', 30) RETURNING "id"`,
		},
		{
			name:      "postgres/default_values",
			dialect:   dialect.Postgres,
			data:      NewData("id", ""),
			op:        opInsert,
			writeBack: true,
			query:     `INSERT INTO "users" DEFAULT VALUES RETURNING "id"`,
		},
		{
			name:      "ignored_columns",
			dialect:   dialect.SQLite,
			data:      NewData("name", "Alice", "cached", "x", "age", 30),
			opts:      []ModelOption{WithIgnoredColumns("cached")},
			op:        opReplace,
			query:     `INSERT OR REPLACE INTO "users" ("name", "age") VALUES ('Alice', 30)`,
			writeBack: true,
		},
		{
			name:    "mysql/upsert_ignored_columns",
			dialect: dialect.MySQL,
			data:    NewData("id", 7, "cached", "x", "name", "Alice"),
			opts:    []ModelOption{WithIgnoredColumns("cached")},
			op:      opUpsert,
			query:   "INSERT INTO `users` (`id`, `name`) VALUES (7, 'Alice') ON DUPLICATE KEY UPDATE `name` = VALUES(`name`)",
		},
		{
			name:      "postgres/insert_ignored_columns",
			dialect:   dialect.Postgres,
			data:      NewData("name", "Alice", "cached", "x"),
			opts:      []ModelOption{WithIgnoredColumns("cached")},
			op:        opInsert,
			query:     `INSERT INTO "users" ("name") VALUES ('Alice') RETURNING "id"`,
			writeBack: true,
		},
		{
			name:      "schema_table",
			dialect:   dialect.Postgres,
			data:      NewData("name", "x"),
			opts:      []ModelOption{WithTable("app.users")},
			op:        opInsert,
			query:     `INSERT INTO "app"."users" ("name") VALUES ('x') RETURNING "id"`,
			writeBack: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := buildSave(tt.dialect, testModel(t, tt.opts...), tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.query, stmt.query)
			assert.Equal(t, tt.op, stmt.op)
			assert.Equal(t, tt.writeBack, stmt.writeBack)
		})
	}
}

func TestBuildSavePostgresMerge(t *testing.T) {
	stmt, err := buildSave(dialect.Postgres, testModel(t), NewData("id", 7, "name", "Alice", "age", 31))
	require.NoError(t, err)
	assert.Equal(t, opMerge, stmt.op)
	assert.False(t, stmt.writeBack)
	assert.Equal(t, `CREATE OR REPLACE FUNCTION pg_temp.arm_merge() RETURNS VOID AS $arm$
BEGIN
  LOOP
    UPDATE "users" SET "name" = 'Alice', "age" = 31 WHERE "id" = 7;
    IF found THEN
      RETURN;
    END IF;
    BEGIN
      INSERT INTO "users" ("id", "name", "age") VALUES (7, 'Alice', 31);
      RETURN;
    EXCEPTION WHEN unique_violation THEN
      NULL;
    END;
  END LOOP;
END;
$arm$ LANGUAGE plpgsql;
SELECT pg_temp.arm_merge();`, stmt.query)
}

func TestBuildSavePostgresMergeComposite(t *testing.T) {
	m := testModel(t, WithIDColumns("tenant", "key"), WithAutoID(false))

	stmt, err := buildSave(dialect.Postgres, m, NewData("key", "x", "tenant", 5, "value", true))
	require.NoError(t, err)
	assert.Contains(t, stmt.query, `UPDATE "users" SET "value" = TRUE WHERE "tenant" = 5 AND "key" = 'x';`)
	assert.Contains(t, stmt.query, `INSERT INTO "users" ("key", "tenant", "value") VALUES ('x', 5, TRUE);`)

	stmt, err = buildSave(dialect.Postgres, m, NewData("tenant", 5, "key", "x"))
	require.NoError(t, err)
	assert.Contains(t, stmt.query, `UPDATE "users" SET "tenant" = "tenant", "key" = "key" WHERE "tenant" = 5 AND "key" = 'x';`)
}

func TestBuildSavePostgresMergeIgnoredColumns(t *testing.T) {
	m := testModel(t, WithIgnoredColumns("cached"))
	stmt, err := buildSave(dialect.Postgres, m, NewData("id", 7, "cached", "x", "name", "Alice"))
	require.NoError(t, err)
	assert.Equal(t, opMerge, stmt.op)
	assert.Contains(t, stmt.query, `UPDATE "users" SET "name" = 'Alice' WHERE "id" = 7;`)
	assert.Contains(t, stmt.query, `INSERT INTO "users" ("id", "name") VALUES (7, 'Alice');`)
	assert.NotContains(t, stmt.query, "cached")

	stmt, err = buildSave(dialect.Postgres, m, NewData("id", 7, "cached", "x"))
	require.NoError(t, err)
	assert.Contains(t, stmt.query, `UPDATE "users" SET "id" = "id" WHERE "id" = 7;`)
	assert.NotContains(t, stmt.query, "cached")
}

func TestBuildSavePostgresDollarTag(t *testing.T) {
	stmt, err := buildSave(dialect.Postgres, testModel(t), NewData("id", 1, "note", "a $arm$ b"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stmt.query, "CREATE OR REPLACE FUNCTION pg_temp.arm_merge() RETURNS VOID AS $arm1$\n"))
	assert.Contains(t, stmt.query, "\n$arm1$ LANGUAGE plpgsql;")
	assert.Equal(t, "$arm$", dollarTag("BEGIN END;"))
	assert.Equal(t, "$arm2$", dollarTag("$arm$ $arm1$"))
}

func TestBuildSaveUnsupportedValue(t *testing.T) {
	_, err := buildSave(dialect.MySQL, testModel(t), NewData("score", math.Inf(1)))
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrUnsupportedValue)
	assert.Contains(t, err.Error(), `"score"`)
}

func TestBuildDelete(t *testing.T) {
	m := testModel(t, WithTable("t"), WithIDColumns("tenant", "key"), WithAutoID(false))
	data := NewData("tenant", 5, "key", "x", "other", 1)

	tests := map[dialect.Dialect]string{
		dialect.MySQL:    "DELETE FROM `t` WHERE `tenant` = 5 AND `key` = 'x'",
		dialect.Postgres: `DELETE FROM "t" WHERE "tenant" = 5 AND "key" = 'x'`,
		dialect.SQLite:   `DELETE FROM "t" WHERE "tenant" = 5 AND "key" = 'x'`,
	}
	for d, want := range tests {
		t.Run(string(d), func(t *testing.T) {
			got, err := buildDelete(d, m, data)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}
