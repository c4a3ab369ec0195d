package sql

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/syssam/arm/dialect"
)

// Label names the record operation a statement runs for. The record layer
// attaches it to the context before calling the driver, so the wrappers in
// this file can count and log per entity and operation.
type Label struct {
	Entity string
	Table  string
	Op     string
}

type labelKey struct{}

// WithLabel returns a context carrying l.
func WithLabel(ctx context.Context, l Label) context.Context {
	return context.WithValue(ctx, labelKey{}, l)
}

// labelOf returns the label attached to ctx. Statements issued outside a
// record operation are filed under kind ("exec" or "query").
func labelOf(ctx context.Context, kind string) Label {
	if l, ok := ctx.Value(labelKey{}).(Label); ok {
		return l
	}
	return Label{Op: kind}
}

// OpStats are the counters of one operation.
type OpStats struct {
	Count    int64
	Errors   int64
	Slow     int64
	Duration time.Duration
}

// Avg returns the mean statement duration.
func (s OpStats) Avg() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Duration / time.Duration(s.Count)
}

func (s OpStats) String() string {
	return fmt.Sprintf("count=%d errors=%d slow=%d avg=%s", s.Count, s.Errors, s.Slow, s.Avg())
}

// SlowStatement describes a statement that ran past the slow threshold.
type SlowStatement struct {
	Label
	Query    string
	Args     []any
	Duration time.Duration
	Err      error
}

// SlowQueryHook is called for every slow statement.
type SlowQueryHook func(context.Context, SlowStatement)

// StatsDriver counts statements per record operation and reports the slow
// ones. Transactions started through it are not measured.
type StatsDriver struct {
	dialect.Driver
	slowThreshold time.Duration
	slowHook      SlowQueryHook

	mu  sync.Mutex
	ops map[string]OpStats
}

// StatsOption configures the StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the threshold for slow statements.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.slowHook = hook
	}
}

// WithSlowQueryLog logs slow statements as warnings on logger, or on the
// default logger when nil.
func WithSlowQueryLog(logger *slog.Logger) StatsOption {
	if logger == nil {
		logger = slog.Default()
	}
	return WithSlowQueryHook(func(ctx context.Context, s SlowStatement) {
		logger.WarnContext(ctx, "arm: slow statement",
			"entity", s.Entity,
			"table", s.Table,
			"op", s.Op,
			"duration", s.Duration,
			"query", s.Query,
		)
	})
}

// NewStatsDriver wraps drv with per-operation statistics.
//
//	drv, _ := sql.Open("postgres", dsn)
//	stats := sql.NewStatsDriver(drv,
//	    sql.WithSlowThreshold(200*time.Millisecond),
//	    sql.WithSlowQueryLog(nil),
//	)
//	reg.Register("default", stats)
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:        drv,
		slowThreshold: 100 * time.Millisecond,
		ops:           make(map[string]OpStats),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SlowThreshold returns the slow statement threshold.
func (d *StatsDriver) SlowThreshold() time.Duration { return d.slowThreshold }

// Op returns the counters of op, e.g. "insert", "merge" or "delete".
func (d *StatsDriver) Op(op string) OpStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ops[op]
}

// Ops returns a snapshot of the counters of every operation seen so far.
func (d *StatsDriver) Ops() map[string]OpStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.ops)
}

// Query executes a query and records it under the context label.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.record(ctx, labelOf(ctx, "query"), query, args, time.Since(start), err)
	return err
}

// Exec executes a statement and records it under the context label.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.record(ctx, labelOf(ctx, "exec"), query, args, time.Since(start), err)
	return err
}

func (d *StatsDriver) record(ctx context.Context, l Label, query string, args any, took time.Duration, err error) {
	slow := took > d.slowThreshold
	d.mu.Lock()
	s := d.ops[l.Op]
	s.Count++
	s.Duration += took
	if err != nil {
		s.Errors++
	}
	if slow {
		s.Slow++
	}
	d.ops[l.Op] = s
	d.mu.Unlock()

	if slow && d.slowHook != nil {
		argv, _ := args.([]any)
		d.slowHook(ctx, SlowStatement{Label: l, Query: query, Args: argv, Duration: took, Err: err})
	}
}

// DebugDriver logs every statement at debug level together with the record
// operation it belongs to.
type DebugDriver struct {
	dialect.Driver
	logger *slog.Logger
}

// NewDebugDriver wraps drv with statement logging on logger, or on the
// default logger when nil.
func NewDebugDriver(drv dialect.Driver, logger *slog.Logger) *DebugDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugDriver{Driver: drv, logger: logger}
}

// Query logs and executes a query.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	d.log(ctx, "query", query, args)
	return d.Driver.Query(ctx, query, args, v)
}

// Exec logs and executes a statement.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	d.log(ctx, "exec", query, args)
	return d.Driver.Exec(ctx, query, args, v)
}

func (d *DebugDriver) log(ctx context.Context, kind, query string, args any) {
	l := labelOf(ctx, kind)
	d.logger.DebugContext(ctx, "arm: statement",
		"kind", kind,
		"entity", l.Entity,
		"table", l.Table,
		"op", l.Op,
		"query", query,
		"args", args,
	)
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Driver = (*DebugDriver)(nil)
)
