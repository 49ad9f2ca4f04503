package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Jonatan852/columnar-datasource/internal/datasource"
	"github.com/Jonatan852/columnar-datasource/internal/parser"
	"github.com/Jonatan852/columnar-datasource/internal/planner"
	"github.com/Jonatan852/columnar-datasource/internal/runtime/runner"
	"github.com/Jonatan852/columnar-datasource/internal/storage"
	"github.com/Jonatan852/columnar-datasource/internal/visualizer"
	"github.com/Jonatan852/columnar-datasource/pkg/query"
)

// Context is the entry point of the host engine: a table catalog plus SQL execution.
// It is safe for concurrent use.
type Context struct {
	logger *slog.Logger
	runner *runner.Runner

	mu     sync.RWMutex
	tables map[string]datasource.TableProvider
}

// Option customizes a Context.
type Option func(*Context)

// WithLogger sets the structured logger used for query lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) {
		c.logger = logger
	}
}

// WithBatchSize sets the batch size used when sorted results are re-chunked.
func WithBatchSize(n int) Option {
	return func(c *Context) {
		c.runner = runner.New(n)
	}
}

// NewContext creates an empty session.
func NewContext(opts ...Option) *Context {
	c := &Context{
		logger: slog.Default(),
		runner: runner.New(0),
		tables: map[string]datasource.TableProvider{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterTable exposes provider under name. Names are case-insensitive.
func (c *Context) RegisterTable(name string, provider datasource.TableProvider) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return fmt.Errorf("table name is required")
	}
	if provider == nil {
		return fmt.Errorf("table %s: provider is nil", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tables[key]; exists {
		return fmt.Errorf("%w: %s", storage.ErrTableExists, name)
	}
	c.tables[key] = provider
	c.logger.Info("table registered",
		slog.String("table", key),
		slog.Int("columns", provider.Schema().NumFields()),
		slog.String("type", provider.TableType().String()),
	)
	return nil
}

// DeregisterTable removes a table and returns its provider.
func (c *Context) DeregisterTable(name string) (datasource.TableProvider, error) {
	key := strings.ToLower(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	provider, ok := c.tables[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrTableNotFound, name)
	}
	delete(c.tables, key)
	c.logger.Info("table deregistered", slog.String("table", key))
	return provider, nil
}

// Table returns the provider registered under name.
func (c *Context) Table(name string) (datasource.TableProvider, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	provider, ok := c.tables[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrTableNotFound, name)
	}
	return provider, nil
}

// TableNames returns the registered names, sorted.
func (c *Context) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Result is the outcome of one SQL statement.
type Result struct {
	*runner.Result
	QueryID  uuid.UUID
	Table    string
	Duration time.Duration
}

// SQL parses, plans and runs a statement. The caller must Release the result.
func (c *Context) SQL(ctx context.Context, sql string) (*Result, error) {
	id := uuid.New()
	logger := c.logger.With(slog.String("query_id", id.String()))
	start := time.Now()

	plan, err := c.plan(ctx, sql)
	if err != nil {
		logger.Warn("query planning failed", slog.String("sql", sql), slog.Any("error", err))
		return nil, err
	}
	logger.Debug("query planned",
		slog.String("table", plan.Table),
		slog.String("scan", plan.Exec.String()),
		slog.Int("joins", len(plan.Joins)),
	)

	res, err := c.runner.Execute(ctx, plan)
	if err != nil {
		logger.Warn("query failed", slog.String("table", plan.Table), slog.Any("error", err))
		return nil, err
	}
	elapsed := time.Since(start)
	logger.Info("query finished",
		slog.String("table", plan.Table),
		slog.Int64("rows", res.NumRows()),
		slog.Duration("duration", elapsed),
	)
	return &Result{Result: res, QueryID: id, Table: plan.Table, Duration: elapsed}, nil
}

// Explanation holds both renderings of a planned query.
type Explanation struct {
	Logical  *query.PhysicalPlan
	Physical string
}

// Explain plans a statement without running it.
func (c *Context) Explain(ctx context.Context, sql string) (*Explanation, error) {
	plan, err := c.plan(ctx, sql)
	if err != nil {
		return nil, err
	}
	var physical strings.Builder
	for _, exec := range plan.Execs() {
		physical.WriteString(visualizer.FormatExecutionPlan(exec))
	}
	return &Explanation{
		Logical:  plan.Tree(),
		Physical: physical.String(),
	}, nil
}

func (c *Context) plan(ctx context.Context, sql string) (*planner.Plan, error) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}
	return planner.New(c).Build(ctx, stmt)
}
