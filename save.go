package arm

import (
	"context"
	"fmt"
	"strings"

	"github.com/syssam/arm/dialect"
	"github.com/syssam/arm/dialect/sql"
)

// Save operations, as reported in logs.
const (
	opInsert  = "insert"
	opMerge   = "merge"
	opUpsert  = "upsert"
	opReplace = "replace"
)

// column is a quoted column name and its SQL literal.
type column struct {
	name  string
	value string
	id    bool
}

// saveStatement is the SQL produced for one Save call.
type saveStatement struct {
	query string
	op    string
	// writeBack is set when the database assigns the identity and it must be
	// copied into the record after execution.
	writeBack bool
}

// Save inserts the record, or updates it in place when its identity is set
// and the row exists. The statement depends on the connection dialect:
//
//	PostgreSQL  UPDATE-then-INSERT loop in a temporary plpgsql function, or INSERT … RETURNING
//	MySQL       INSERT … ON DUPLICATE KEY UPDATE
//	SQLite      INSERT OR REPLACE
//
// On SQLite a replace deletes and reinserts the row, so columns missing from
// the record take their defaults; the other dialects leave them untouched.
//
// When the model uses auto ids and the record has none, the generated id is
// written back into the record. Save reports false without an error only
// when a PostgreSQL insert returns no row.
func (r *Record) Save(ctx context.Context) (bool, error) {
	m := r.model
	if r.data.Len() == 0 {
		return false, &PersistenceError{Entity: m.name, Op: "save", Err: ErrEmptyData}
	}
	drv, err := m.driver()
	if err != nil {
		return false, &PersistenceError{Entity: m.name, Op: "save", Err: err}
	}
	d := drv.Dialect()
	stmt, err := buildSave(d, m, r.data)
	if err != nil {
		return false, &PersistenceError{Entity: m.name, Op: "save", Err: err}
	}
	m.registry.logger.DebugContext(ctx, "arm: save",
		"entity", m.name,
		"table", m.table,
		"dialect", d,
		"op", stmt.op,
	)
	ctx = m.labeled(ctx, stmt.op)
	if d == dialect.Postgres {
		return r.savePostgres(ctx, drv, stmt)
	}
	return r.saveLastInsertID(ctx, drv, stmt)
}

func (r *Record) savePostgres(ctx context.Context, drv dialect.Driver, stmt *saveStatement) (bool, error) {
	if stmt.op == opMerge {
		if err := drv.Exec(ctx, stmt.query, []any{}, nil); err != nil {
			return false, newDriverError(r.model.name, "save", err)
		}
		return true, nil
	}
	rows := &sql.Rows{}
	if err := drv.Query(ctx, stmt.query, []any{}, rows); err != nil {
		return false, newDriverError(r.model.name, "save", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return false, newDriverError(r.model.name, "save", err)
		}
		return false, nil
	}
	ids := make([]any, len(r.model.idColumns))
	dest := make([]any, len(ids))
	for i := range ids {
		dest[i] = &ids[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return false, newDriverError(r.model.name, "save", err)
	}
	if stmt.writeBack {
		r.data.Set(r.model.idColumns[0], normalizeScanned(ids[0], false))
	}
	return true, nil
}

// saveLastInsertID runs the MySQL and SQLite statements, which both report
// generated ids through the driver's last insert id.
func (r *Record) saveLastInsertID(ctx context.Context, drv dialect.Driver, stmt *saveStatement) (bool, error) {
	var res sql.Result
	if err := drv.Exec(ctx, stmt.query, []any{}, &res); err != nil {
		return false, newDriverError(r.model.name, "save", err)
	}
	if stmt.writeBack {
		id, err := res.LastInsertId()
		if err != nil {
			return false, newDriverError(r.model.name, "save", err)
		}
		r.data.Set(r.model.idColumns[0], id)
	}
	return true, nil
}

// buildSave renders the save statement for data without touching the
// database.
func buildSave(d dialect.Dialect, m *Model, data *Data) (*saveStatement, error) {
	hasID := (&Record{model: m, data: data}).HasID()
	cols, err := saveColumns(d, m, data, hasID)
	if err != nil {
		return nil, err
	}
	table := sql.QuoteTable(d, m.table)
	stmt := &saveStatement{writeBack: m.autoID && !hasID}
	switch d {
	case dialect.Postgres:
		if hasID {
			stmt.op = opMerge
			stmt.query, err = postgresMerge(d, table, m, data, cols)
			if err != nil {
				return nil, err
			}
			return stmt, nil
		}
		returning := make([]string, len(m.idColumns))
		for i, c := range m.idColumns {
			returning[i] = sql.QuoteIdentifier(d, c)
		}
		stmt.op = opInsert
		stmt.query = insertInto(d, "INSERT INTO", table, cols) + " RETURNING " + strings.Join(returning, ", ")
	case dialect.MySQL:
		stmt.op = opInsert
		stmt.query = insertInto(d, "INSERT INTO", table, cols)
		if hasID {
			stmt.op = opUpsert
			stmt.query += " ON DUPLICATE KEY UPDATE " + mysqlUpdates(d, m, cols)
		}
	default:
		stmt.op = opReplace
		stmt.query = insertInto(d, "INSERT OR REPLACE INTO", table, cols)
	}
	return stmt, nil
}

// saveColumns quotes the writable columns of data in insertion order.
// Ignored columns are skipped, and so is the identity column when the
// database is going to assign it.
func saveColumns(d dialect.Dialect, m *Model, data *Data, hasID bool) ([]column, error) {
	skipID := m.autoID && !hasID
	cols := make([]column, 0, data.Len())
	for name, v := range data.All() {
		if m.isIgnored(name) {
			continue
		}
		id := m.isID(name)
		if id && skipID {
			continue
		}
		lit, err := sql.QuoteValue(d, v)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		cols = append(cols, column{name: sql.QuoteIdentifier(d, name), value: lit, id: id})
	}
	return cols, nil
}

func insertInto(d dialect.Dialect, verb, table string, cols []column) string {
	var b strings.Builder
	b.WriteString(verb)
	b.WriteByte(' ')
	b.WriteString(table)
	if len(cols) == 0 {
		if d == dialect.MySQL {
			b.WriteString(" () VALUES ()")
		} else {
			b.WriteString(" DEFAULT VALUES")
		}
		return b.String()
	}
	b.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.name)
	}
	b.WriteString(") VALUES (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.value)
	}
	b.WriteByte(')')
	return b.String()
}

// mysqlUpdates renders the ON DUPLICATE KEY UPDATE assignments. Identity
// columns are the conflict key and are never updated; a record holding only
// identity columns assigns the first one to itself.
func mysqlUpdates(d dialect.Dialect, m *Model, cols []column) string {
	var sets []string
	for _, c := range cols {
		if !c.id {
			sets = append(sets, c.name+" = VALUES("+c.name+")")
		}
	}
	if len(sets) == 0 {
		id := sql.QuoteIdentifier(d, m.idColumns[0])
		sets = append(sets, id+" = "+id)
	}
	return strings.Join(sets, ", ")
}

// postgresMerge renders the PostgreSQL upsert: a temporary function that
// loops UPDATE, then INSERT, retrying the UPDATE when the INSERT loses a
// race on the unique key. The function lives in pg_temp and is created and
// called in one round trip, so concurrent sessions never run each other's
// bodies.
func postgresMerge(d dialect.Dialect, table string, m *Model, data *Data, cols []column) (string, error) {
	var sets []string
	for _, c := range cols {
		if !c.id {
			sets = append(sets, c.name+" = "+c.value)
		}
	}
	where, err := identityWhere(d, m, data)
	if err != nil {
		return "", err
	}
	if len(sets) == 0 {
		for _, name := range m.idColumns {
			qn := sql.QuoteIdentifier(d, name)
			sets = append(sets, qn+" = "+qn)
		}
	}
	body := strings.Join([]string{
		"BEGIN",
		"  LOOP",
		"    UPDATE " + table + " SET " + strings.Join(sets, ", ") + " WHERE " + where + ";",
		"    IF found THEN",
		"      RETURN;",
		"    END IF;",
		"    BEGIN",
		"      " + insertInto(d, "INSERT INTO", table, cols) + ";",
		"      RETURN;",
		"    EXCEPTION WHEN unique_violation THEN",
		"      NULL;",
		"    END;",
		"  END LOOP;",
		"END;",
	}, "\n")
	tag := dollarTag(body)
	return "CREATE OR REPLACE FUNCTION pg_temp.arm_merge() RETURNS VOID AS " + tag + "\n" +
		body + "\n" +
		tag + " LANGUAGE plpgsql;\n" +
		"SELECT pg_temp.arm_merge();", nil
}

// dollarTag returns a dollar-quote tag that does not occur in body, so
// string values can never terminate the function body.
func dollarTag(body string) string {
	tag := "$arm$"
	for i := 1; strings.Contains(body, tag); i++ {
		tag = fmt.Sprintf("$arm%d$", i)
	}
	return tag
}
