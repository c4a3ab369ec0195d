package arm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/arm/dialect"
	"github.com/syssam/arm/dialect/sql"
)

// Find returns the record whose identity columns equal ids, in the order
// of Model.IDColumns. A missing row is reported as *NotFoundError.
func (m *Model) Find(ctx context.Context, ids ...any) (*Record, error) {
	rec, err := m.Query().WhereID(ids...).FindOne(ctx)
	if IsNotFound(err) {
		var id any = ids
		if len(ids) == 1 {
			id = ids[0]
		}
		return nil, NewNotFoundErrorWithID(m.name, id)
	}
	return rec, err
}

// Query returns a builder for SELECT statements on the model table.
func (m *Model) Query() *QueryBuilder {
	return &QueryBuilder{model: m, limit: -1}
}

// CustomQuery returns a query running sqlText as is. Placeholders in
// sqlText follow the driver convention ($1 for PostgreSQL, ? otherwise).
func (m *Model) CustomQuery(sqlText string, params ...any) *Query {
	return &Query{model: m, text: sqlText, args: params}
}

// QueryBuilder builds a SELECT statement. Where conditions are joined with
// AND. Values are always passed as arguments, never inlined.
type QueryBuilder struct {
	model  *Model
	preds  []predicate
	order  []orderTerm
	limit  int
	offset int
	err    error
}

type predicate struct {
	column string
	raw    string
	args   []any
}

type orderTerm struct {
	column string
	desc   bool
}

// WhereID matches the model identity columns against ids.
func (q *QueryBuilder) WhereID(ids ...any) *QueryBuilder {
	cols := q.model.idColumns
	if len(ids) != len(cols) {
		q.err = errors.Join(q.err, fmt.Errorf("expect %d identity values, got %d", len(cols), len(ids)))
		return q
	}
	for i, c := range cols {
		q.Where(c, ids[i])
	}
	return q
}

// Where adds "column = value", or "column IS NULL" for a nil value.
func (q *QueryBuilder) Where(column string, value any) *QueryBuilder {
	if value == nil {
		q.preds = append(q.preds, predicate{column: column})
		return q
	}
	q.preds = append(q.preds, predicate{column: column, args: []any{value}})
	return q
}

// WhereRaw adds a raw condition using ? placeholders, which are rewritten
// to $n on PostgreSQL.
func (q *QueryBuilder) WhereRaw(expr string, args ...any) *QueryBuilder {
	if expr == "" {
		return q
	}
	q.preds = append(q.preds, predicate{raw: expr, args: args})
	return q
}

// OrderBy appends an ascending sort column.
func (q *QueryBuilder) OrderBy(column string) *QueryBuilder {
	q.order = append(q.order, orderTerm{column: column})
	return q
}

// OrderByDesc appends a descending sort column.
func (q *QueryBuilder) OrderByDesc(column string) *QueryBuilder {
	q.order = append(q.order, orderTerm{column: column, desc: true})
	return q
}

// Limit caps the number of returned rows.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

// Offset skips the first n rows.
func (q *QueryBuilder) Offset(n int) *QueryBuilder {
	q.offset = n
	return q
}

// SQL returns the SELECT statement and its arguments for the model
// connection dialect.
func (q *QueryBuilder) SQL() (string, []any, error) {
	drv, err := q.model.driver()
	if err != nil {
		return "", nil, err
	}
	return q.render(drv.Dialect(), "*", true)
}

// FindMany returns every matching record.
func (q *QueryBuilder) FindMany(ctx context.Context) ([]*Record, error) {
	drv, err := q.model.driver()
	if err != nil {
		return nil, NewQueryError(q.model.name, "find", err)
	}
	query, args, err := q.render(drv.Dialect(), "*", true)
	if err != nil {
		return nil, NewQueryError(q.model.name, "find", err)
	}
	return q.model.fetch(ctx, drv, "find", query, args)
}

// FindOne returns the first matching record, or *NotFoundError.
func (q *QueryBuilder) FindOne(ctx context.Context) (*Record, error) {
	c := *q
	c.limit = 1
	recs, err := c.FindMany(ctx)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, NewNotFoundError(q.model.name)
	}
	return recs[0], nil
}

// Count returns the number of matching rows. Order, limit and offset are
// ignored.
func (q *QueryBuilder) Count(ctx context.Context) (int64, error) {
	drv, err := q.model.driver()
	if err != nil {
		return 0, NewQueryError(q.model.name, "count", err)
	}
	query, args, err := q.render(drv.Dialect(), "COUNT(*)", false)
	if err != nil {
		return 0, NewQueryError(q.model.name, "count", err)
	}
	rows := &sql.Rows{}
	if err := drv.Query(q.model.labeled(ctx, "count"), query, args, rows); err != nil {
		return 0, NewQueryError(q.model.name, "count", err)
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, NewQueryError(q.model.name, "count", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, NewQueryError(q.model.name, "count", err)
	}
	return n, nil
}

func (q *QueryBuilder) render(d dialect.Dialect, selection string, paged bool) (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString("SELECT ")
	b.WriteString(selection)
	b.WriteString(" FROM ")
	b.WriteString(sql.QuoteTable(d, q.model.table))
	for i, p := range q.preds {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		switch {
		case p.raw != "":
			b.WriteString(p.raw)
		case len(p.args) == 0:
			b.WriteString(sql.QuoteIdentifier(d, p.column) + " IS NULL")
		default:
			b.WriteString(sql.QuoteIdentifier(d, p.column) + " = ?")
		}
		args = append(args, p.args...)
	}
	if paged {
		for i, o := range q.order {
			if i == 0 {
				b.WriteString(" ORDER BY ")
			} else {
				b.WriteString(", ")
			}
			b.WriteString(sql.QuoteIdentifier(d, o.column))
			if o.desc {
				b.WriteString(" DESC")
			}
		}
		b.WriteString(limitOffset(d, q.limit, q.offset))
	}
	query := b.String()
	if d == dialect.Postgres {
		query = numberPlaceholders(query)
	}
	if args == nil {
		args = []any{}
	}
	return query, args, nil
}

func limitOffset(d dialect.Dialect, limit, offset int) string {
	var s string
	if limit >= 0 {
		s = " LIMIT " + strconv.Itoa(limit)
	}
	if offset > 0 {
		if limit < 0 {
			// MySQL and SQLite only accept OFFSET after a LIMIT.
			switch d {
			case dialect.MySQL:
				s = " LIMIT 18446744073709551615"
			case dialect.SQLite:
				s = " LIMIT -1"
			}
		}
		s += " OFFSET " + strconv.Itoa(offset)
	}
	return s
}

// numberPlaceholders rewrites ? placeholders to $1, $2 ... skipping quoted
// literals and identifiers.
func numberPlaceholders(query string) string {
	var (
		b     strings.Builder
		n     int
		quote byte
	)
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '?':
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Query is a hand-written SELECT whose rows hydrate model records.
type Query struct {
	model *Model
	text  string
	args  []any
}

// All returns a record for every row.
func (q *Query) All(ctx context.Context) ([]*Record, error) {
	drv, err := q.model.driver()
	if err != nil {
		return nil, NewQueryError(q.model.name, "custom", err)
	}
	args := q.args
	if args == nil {
		args = []any{}
	}
	return q.model.fetch(ctx, drv, "custom", q.text, args)
}

// One returns the first row, or *NotFoundError.
func (q *Query) One(ctx context.Context) (*Record, error) {
	recs, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, NewNotFoundError(q.model.name)
	}
	return recs[0], nil
}

func (m *Model) fetch(ctx context.Context, drv dialect.Driver, op, query string, args []any) ([]*Record, error) {
	m.registry.logger.DebugContext(ctx, "arm: query",
		"entity", m.name,
		"table", m.table,
		"dialect", drv.Dialect(),
		"op", op,
	)
	rows := &sql.Rows{}
	if err := drv.Query(m.labeled(ctx, op), query, args, rows); err != nil {
		return nil, NewQueryError(m.name, op, err)
	}
	defer rows.Close()
	recs, err := scanRecords(m, rows)
	if err != nil {
		return nil, NewQueryError(m.name, op, err)
	}
	return recs, nil
}

// scanRecords hydrates one record per row, with columns in result order.
func scanRecords(m *Model, rows *sql.Rows) ([]*Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	binary := make([]bool, len(cols))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, t := range types {
			binary[i] = isBinaryType(t.DatabaseTypeName())
		}
	}
	var recs []*Record
	for rows.Next() {
		vals := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		rec := m.New()
		for i, c := range cols {
			rec.data.Set(c, normalizeScanned(vals[i], binary[i]))
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func isBinaryType(name string) bool {
	name = strings.ToUpper(name)
	return strings.Contains(name, "BLOB") || strings.Contains(name, "BYTEA") || strings.Contains(name, "BINARY")
}

// normalizeScanned turns the []byte drivers return for textual columns
// into a string.
func normalizeScanned(v any, binary bool) any {
	if b, ok := v.([]byte); ok && !binary {
		return string(b)
	}
	return v
}
