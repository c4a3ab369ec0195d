package arm

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syssam/arm/dialect"
	"github.com/syssam/arm/dialect/sql"
)

// Config describes the connections of a registry.
//
//	connections:
//	  default:
//	    driver: postgres
//	    dsn: ${DATABASE_URL}
//	    max_open_conns: 10
//	    slow_threshold: 200ms
type Config struct {
	Connections map[string]ConnectionConfig `yaml:"connections"`
}

// ConnectionConfig describes a single connection.
type ConnectionConfig struct {
	// Driver is the database/sql driver name: postgres, pgx, mysql or sqlite.
	Driver string `yaml:"driver"`
	// DSN is the data source name. Environment variables are expanded.
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int           `yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime,omitempty"`
	// SlowThreshold enables query statistics and logs statements slower
	// than the threshold.
	SlowThreshold time.Duration `yaml:"slow_threshold,omitempty"`
	// Debug logs every statement at debug level.
	Debug bool `yaml:"debug,omitempty"`
}

// supportedDrivers lists the database/sql drivers linked into dialect/sql.
var supportedDrivers = []string{"postgres", "pgx", "mysql", "sqlite"}

// ParseConfig decodes a YAML configuration and validates it.
func ParseConfig(b []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("arm: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads and parses the YAML configuration file at path.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("arm: load config: %w", err)
	}
	return ParseConfig(b)
}

// Validate checks that every connection names a supported driver and a DSN.
func (c *Config) Validate() error {
	if len(c.Connections) == 0 {
		return errors.New("arm: config: no connections")
	}
	var errs []error
	for _, name := range c.names() {
		cc := c.Connections[name]
		switch {
		case cc.Driver == "":
			errs = append(errs, fmt.Errorf("arm: config: connection %q: missing driver", name))
		case !slices.Contains(supportedDrivers, cc.Driver):
			errs = append(errs, fmt.Errorf("arm: config: connection %q: unsupported driver %q", name, cc.Driver))
		}
		if cc.DSN == "" {
			errs = append(errs, fmt.Errorf("arm: config: connection %q: missing dsn", name))
		}
		if cc.MaxOpenConns < 0 || cc.MaxIdleConns < 0 || cc.ConnMaxLifetime < 0 || cc.SlowThreshold < 0 {
			errs = append(errs, fmt.Errorf("arm: config: connection %q: negative limit", name))
		}
	}
	return NewAggregateError(errs...)
}

// Open opens every configured connection into a new registry. On failure,
// connections opened so far are closed.
func (c *Config) Open(opts ...RegistryOption) (*Registry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	reg := NewRegistry(opts...)
	for _, name := range c.names() {
		drv, err := c.Connections[name].open(reg.logger)
		if err != nil {
			return nil, NewAggregateError(fmt.Errorf("arm: open %q: %w", name, err), reg.Close())
		}
		reg.Register(name, drv)
	}
	return reg, nil
}

func (c *Config) names() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// open opens the connection, applies the pool settings and wraps the
// driver for statistics and debug logging when configured.
func (cc ConnectionConfig) open(logger *slog.Logger) (dialect.Driver, error) {
	drv, err := sql.Open(cc.Driver, os.ExpandEnv(cc.DSN))
	if err != nil {
		return nil, err
	}
	db := drv.DB()
	if cc.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cc.MaxOpenConns)
	}
	if cc.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cc.MaxIdleConns)
	}
	if cc.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cc.ConnMaxLifetime)
	}
	var d dialect.Driver = drv
	if cc.Debug {
		d = sql.NewDebugDriver(d, logger)
	}
	if cc.SlowThreshold > 0 {
		d = sql.NewStatsDriver(d,
			sql.WithSlowThreshold(cc.SlowThreshold),
			sql.WithSlowQueryLog(logger),
		)
	}
	return d, nil
}
