package sql

import (
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/syssam/arm/dialect"
)

// ErrUnsupportedValue is returned by QuoteValue for values that have no
// SQL literal representation.
var ErrUnsupportedValue = errors.New("dialect/sql: unsupported value")

// QuoteIdentifier quotes a table or column name for the dialect.
// PostgreSQL and SQLite use double quotes, MySQL uses backticks.
// Embedded quote characters are doubled.
func QuoteIdentifier(d dialect.Dialect, name string) string {
	switch d {
	case dialect.Postgres:
		return pq.QuoteIdentifier(name)
	case dialect.MySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// QuoteTable quotes a possibly schema-qualified table name, quoting every
// dot-separated part on its own.
func QuoteTable(d dialect.Dialect, name string) string {
	if !strings.Contains(name, ".") {
		return QuoteIdentifier(d, name)
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = QuoteIdentifier(d, p)
	}
	return strings.Join(parts, ".")
}

// QuoteValue renders v as a SQL literal for the dialect.
//
//	nil            NULL
//	bool           TRUE/FALSE (PostgreSQL), 1/0 (MySQL, SQLite)
//	ints, floats   unquoted decimal text
//	string         escaped string literal
//	[]byte         binary literal
//
// time.Time, uuid.UUID, json.Number and driver.Valuer values are converted
// first. Pointers are dereferenced, nil pointers are NULL.
func QuoteValue(d dialect.Dialect, v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		return quoteBool(d, v), nil
	case string:
		return quoteString(d, v), nil
	case []byte:
		if v == nil {
			return "NULL", nil
		}
		return quoteBytes(d, v), nil
	case int:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return formatFloat(v, 64)
	case float32:
		return formatFloat(float64(v), 32)
	case json.Number:
		if !isJSONNumber(string(v)) {
			return "", fmt.Errorf("%w: invalid number %q", ErrUnsupportedValue, string(v))
		}
		return string(v), nil
	case time.Time:
		return quoteString(d, formatTime(d, v)), nil
	case uuid.UUID:
		return quoteString(d, v.String()), nil
	case driver.Valuer:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return "NULL", nil
		}
		dv, err := v.Value()
		if err != nil {
			return "", fmt.Errorf("dialect/sql: value of %T: %w", v, err)
		}
		if _, again := dv.(driver.Valuer); again {
			return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
		}
		return QuoteValue(d, dv)
	}
	return quoteReflect(d, reflect.ValueOf(v))
}

// quoteReflect handles pointers and named scalar types (e.g. type Age int).
func quoteReflect(d dialect.Dialect, rv reflect.Value) (string, error) {
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return "NULL", nil
		}
		return QuoteValue(d, rv.Elem().Interface())
	case reflect.Bool:
		return quoteBool(d, rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return formatFloat(rv.Float(), 32)
	case reflect.Float64:
		return formatFloat(rv.Float(), 64)
	case reflect.String:
		return quoteString(d, rv.String()), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			if rv.IsNil() {
				return "NULL", nil
			}
			return quoteBytes(d, rv.Bytes()), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedValue, rv.Type())
}

func quoteBool(d dialect.Dialect, b bool) string {
	switch {
	case d == dialect.Postgres && b:
		return "TRUE"
	case d == dialect.Postgres:
		return "FALSE"
	case b:
		return "1"
	default:
		return "0"
	}
}

func formatFloat(f float64, bits int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedValue, f)
	}
	return strconv.FormatFloat(f, 'g', -1, bits), nil
}

// isJSONNumber reports whether s is a number in JSON grammar, which leaves
// out NaN, Inf, hex floats and surrounding spaces.
func isJSONNumber(s string) bool {
	if s == "" || (s[0] != '-' && (s[0] < '0' || s[0] > '9')) {
		return false
	}
	return strings.TrimSpace(s) == s && json.Valid([]byte(s))
}

// formatTime renders t for the dialect. MySQL DATETIME carries no zone, so
// the instant is written in UTC, as go-sql-driver/mysql does with its
// default location.
func formatTime(d dialect.Dialect, t time.Time) string {
	switch d {
	case dialect.MySQL:
		return t.UTC().Format("2006-01-02 15:04:05.999999")
	case dialect.Postgres:
		return t.Format("2006-01-02 15:04:05.999999Z07:00")
	default:
		return t.Format("2006-01-02 15:04:05.999999999Z07:00")
	}
}

func quoteString(d dialect.Dialect, s string) string {
	switch d {
	case dialect.Postgres:
		return strings.TrimLeft(pq.QuoteLiteral(s), " ")
	case dialect.MySQL:
		return "'" + escapeMySQLString(s) + "'"
	default:
		// SQLite string literals stop at NUL; keep the bytes intact by
		// going through a blob.
		if strings.IndexByte(s, 0) >= 0 {
			return "CAST(X'" + hex.EncodeToString([]byte(s)) + "' AS TEXT)"
		}
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
}

func quoteBytes(d dialect.Dialect, b []byte) string {
	if d == dialect.Postgres {
		return `'\x` + hex.EncodeToString(b) + `'::bytea`
	}
	return "X'" + hex.EncodeToString(b) + "'"
}

// escapeMySQLString escapes s the way mysql_real_escape_string does for a
// connection without NO_BACKSLASH_ESCAPES.
func escapeMySQLString(s string) string {
	// Fast path: if no escaping needed, return as-is
	if !strings.ContainsAny(s, "\x00\n\r\\'\"\x1a") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case 0:
			b.WriteString(`\0`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '"':
			b.WriteString(`\"`)
		case '\x1a':
			b.WriteString(`\Z`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
