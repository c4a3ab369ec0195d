package arm

import (
	"context"
	"fmt"
	"strings"

	"github.com/syssam/arm/dialect"
	"github.com/syssam/arm/dialect/sql"
)

// Delete removes the row matching the current identity values of the
// record. It reports whether a row was deleted; the record data is left
// untouched.
func (r *Record) Delete(ctx context.Context) (bool, error) {
	m := r.model
	drv, err := m.driver()
	if err != nil {
		return false, &PersistenceError{Entity: m.name, Op: "delete", Err: err}
	}
	d := drv.Dialect()
	query, err := buildDelete(d, m, r.data)
	if err != nil {
		return false, &PersistenceError{Entity: m.name, Op: "delete", Err: err}
	}
	m.registry.logger.DebugContext(ctx, "arm: delete",
		"entity", m.name,
		"table", m.table,
		"dialect", d,
		"op", "delete",
	)
	var res sql.Result
	if err := drv.Exec(m.labeled(ctx, "delete"), query, []any{}, &res); err != nil {
		return false, newDriverError(m.name, "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, newDriverError(m.name, "delete", err)
	}
	return n > 0, nil
}

func buildDelete(d dialect.Dialect, m *Model, data *Data) (string, error) {
	where, err := identityWhere(d, m, data)
	if err != nil {
		return "", err
	}
	return "DELETE FROM " + sql.QuoteTable(d, m.table) + " WHERE " + where, nil
}

// identityWhere renders "<id1> = <v1> AND <id2> = <v2> ..." from the values
// held in data.
func identityWhere(d dialect.Dialect, m *Model, data *Data) (string, error) {
	preds := make([]string, len(m.idColumns))
	for i, name := range m.idColumns {
		lit, err := sql.QuoteValue(d, data.Get(name))
		if err != nil {
			return "", fmt.Errorf("column %q: %w", name, err)
		}
		preds[i] = sql.QuoteIdentifier(d, name) + " = " + lit
	}
	return strings.Join(preds, " AND "), nil
}
