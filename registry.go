package arm

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/arm/dialect"
	"github.com/syssam/arm/dialect/sql"
)

// Registry maps logical connection names to drivers. Models resolve their
// connection through it on every operation. A Registry is safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]dialect.Driver
	logger  *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used for statement logging. The default is
// slog.Default().
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		drivers: make(map[string]dialect.Driver),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Logger returns the registry logger.
func (r *Registry) Logger() *slog.Logger {
	return r.logger
}

// Register binds name to drv, replacing any previous driver. The replaced
// driver is not closed.
func (r *Registry) Register(name string, drv dialect.Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[name] = drv
}

// Open opens a database/sql connection and registers it under name.
//
//	reg.Open(arm.DefaultConnection, "sqlite", "file:app.db")
func (r *Registry) Open(name, driverName, dsn string) (dialect.Driver, error) {
	drv, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	r.Register(name, drv)
	return drv, nil
}

// Driver returns the driver registered under name.
func (r *Registry) Driver(name string) (dialect.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	drv, ok := r.drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConnection, name)
	}
	return drv, nil
}

// Names returns the registered connection names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close closes every registered driver concurrently and empties the
// registry. All close failures are reported.
func (r *Registry) Close() error {
	r.mu.Lock()
	drivers := r.drivers
	r.drivers = make(map[string]dialect.Driver)
	r.mu.Unlock()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for name, drv := range drivers {
		g.Go(func() error {
			if err := drv.Close(); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("arm: close %q: %w", name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	slices.SortFunc(errs, func(a, b error) int { return strings.Compare(a.Error(), b.Error()) })
	return NewAggregateError(errs...)
}
