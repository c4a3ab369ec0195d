package arm

import (
	"context"
	"fmt"
	"slices"

	"github.com/go-openapi/inflect"

	"github.com/syssam/arm/dialect"
	"github.com/syssam/arm/dialect/sql"
)

// DefaultConnection is the connection name used by models that do not
// select one with WithConnection.
const DefaultConnection = "default"

// Model describes how records of one entity type map to a table.
// A Model is immutable once created and safe for concurrent use.
type Model struct {
	name       string
	table      string
	idColumns  []string
	ignored    []string
	autoID     bool
	connection string
	registry   *Registry
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithTable sets the table name. Schema-qualified names ("public.users")
// are accepted.
func WithTable(table string) ModelOption {
	return func(m *Model) {
		m.table = table
	}
}

// WithIDColumns sets the identity columns. More than one column makes a
// composite identity.
func WithIDColumns(columns ...string) ModelOption {
	return func(m *Model) {
		m.idColumns = slices.Clone(columns)
	}
}

// WithIgnoredColumns sets columns that are kept in the record data but
// never written to the database.
func WithIgnoredColumns(columns ...string) ModelOption {
	return func(m *Model) {
		m.ignored = slices.Clone(columns)
	}
}

// WithAutoID sets whether the database assigns the identity on insert.
func WithAutoID(auto bool) ModelOption {
	return func(m *Model) {
		m.autoID = auto
	}
}

// WithConnection selects the registry connection the model uses.
func WithConnection(name string) ModelOption {
	return func(m *Model) {
		m.connection = name
	}
}

// NewModel creates a model named name, bound to the connections of reg.
// Unless WithTable is given, the table is the snake_case form of the name.
//
//	users, err := arm.NewModel(reg, "User", arm.WithTable("users"))
func NewModel(reg *Registry, name string, opts ...ModelOption) (*Model, error) {
	m := &Model{
		name:       name,
		idColumns:  []string{"id"},
		autoID:     true,
		connection: DefaultConnection,
		registry:   reg,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.table == "" {
		m.table = inflect.Underscore(name)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) validate() error {
	switch {
	case m.registry == nil:
		return fmt.Errorf("%w: %s: nil registry", ErrInvalidModel, m.name)
	case m.name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidModel)
	case m.table == "":
		return fmt.Errorf("%w: %s: empty table", ErrInvalidModel, m.name)
	case len(m.idColumns) == 0:
		return fmt.Errorf("%w: %s: no identity columns", ErrInvalidModel, m.name)
	case m.autoID && len(m.idColumns) > 1:
		return fmt.Errorf("%w: %s: auto id requires a single identity column", ErrInvalidModel, m.name)
	}
	seen := make(map[string]bool, len(m.idColumns))
	for _, c := range m.idColumns {
		if c == "" || seen[c] {
			return fmt.Errorf("%w: %s: invalid identity column %q", ErrInvalidModel, m.name, c)
		}
		if slices.Contains(m.ignored, c) {
			return fmt.Errorf("%w: %s: identity column %q is ignored", ErrInvalidModel, m.name, c)
		}
		seen[c] = true
	}
	return nil
}

// Name returns the entity name.
func (m *Model) Name() string { return m.name }

// Table returns the table name.
func (m *Model) Table() string { return m.table }

// IDColumns returns the identity columns.
func (m *Model) IDColumns() []string { return slices.Clone(m.idColumns) }

// IgnoredColumns returns the columns excluded from writes.
func (m *Model) IgnoredColumns() []string { return slices.Clone(m.ignored) }

// AutoID reports whether the database assigns the identity.
func (m *Model) AutoID() bool { return m.autoID }

// Connection returns the registry connection name.
func (m *Model) Connection() string { return m.connection }

// New returns an empty record of the model.
func (m *Model) New() *Record {
	return &Record{model: m, data: NewData()}
}

// NewRecord returns a record of the model holding a copy of data.
func (m *Model) NewRecord(data *Data) *Record {
	return &Record{model: m, data: data.Clone()}
}

func (m *Model) isIgnored(column string) bool {
	return slices.Contains(m.ignored, column)
}

func (m *Model) isID(column string) bool {
	return slices.Contains(m.idColumns, column)
}

// driver resolves the model connection.
func (m *Model) driver() (dialect.Driver, error) {
	return m.registry.Driver(m.connection)
}

// labeled tags ctx with the model and op for the statistics and debug
// driver wrappers.
func (m *Model) labeled(ctx context.Context, op string) context.Context {
	return sql.WithLabel(ctx, sql.Label{Entity: m.name, Table: m.table, Op: op})
}
