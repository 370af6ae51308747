// Package drill provides an Apache Drill query runner.
//
// The runner forwards literal SQL to a Drill cluster and converts the
// result into the host platform's generic tabular JSON. Hosts obtain a
// runner.Descriptor from NewDescriptor and register it explicitly:
//
//	reg := runner.NewRegistry(logger)
//	_ = reg.Register(drill.NewDescriptor(settings))
package drill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/leapstack-labs/queryrunner/pkg/core"
	"github.com/leapstack-labs/queryrunner/pkg/runner"
)

// Runner identity.
const (
	Type = "drill"
	Name = "Apache Drill"
)

// noopQuery is the query used to test connectivity.
const noopQuery = "SELECT 1"

// schemaQuery lists every column outside information_schema.
const schemaQuery = `SELECT table_schema, table_name, column_name
FROM information_schema.columns
WHERE table_schema NOT IN ('information_schema')`

// remoteCancelTimeout bounds the best-effort remote cancel.
const remoteCancelTimeout = 5 * time.Second

// Runner implements runner.QueryRunner for Apache Drill.
// It holds only immutable configuration; every call opens its own client.
type Runner struct {
	opts         Options
	settings     Settings
	availability runner.Availability
	newClient    ClientFactory
	logger       *slog.Logger
}

// Option customizes a Runner or Descriptor.
type Option func(*buildOptions)

type buildOptions struct {
	factory      ClientFactory
	availability *runner.Availability
}

// WithClientFactory overrides how clients are opened. The availability
// probe is skipped: a supplied factory is assumed usable.
func WithClientFactory(f ClientFactory) Option {
	return func(b *buildOptions) {
		b.factory = f
		if b.availability == nil {
			a := runner.Available()
			b.availability = &a
		}
	}
}

// WithAvailability overrides the capability probe result.
func WithAvailability(a runner.Availability) Option {
	return func(b *buildOptions) {
		b.availability = &a
	}
}

func resolveBuildOptions(s Settings, options []Option) buildOptions {
	var b buildOptions
	for _, o := range options {
		o(&b)
	}
	if b.availability == nil {
		a := Probe(s)
		b.availability = &a
	}
	if b.factory == nil {
		if s.transport() == TransportSQL {
			b.factory = sqlClientFactory(s.sqlDriver())
		} else {
			b.factory = newRESTClient
		}
	}
	return b
}

// NewDescriptor probes client availability once and returns the descriptor
// the host registers.
func NewDescriptor(s Settings, options ...Option) runner.Descriptor {
	b := resolveBuildOptions(s, options)
	availability := *b.availability
	return runner.Descriptor{
		Type:         Type,
		Name:         Name,
		Availability: availability,
		Schema:       ConfigurationSchema(s),
		Factory: func(cfg map[string]any, logger *slog.Logger) (runner.QueryRunner, error) {
			return newRunner(cfg, s, logger, b)
		},
	}
}

// New creates a Drill runner from a configuration map.
// If logger is nil, a discard logger is used.
func New(cfg map[string]any, s Settings, logger *slog.Logger, options ...Option) (*Runner, error) {
	return newRunner(cfg, s, logger, resolveBuildOptions(s, options))
}

func newRunner(cfg map[string]any, s Settings, logger *slog.Logger, b buildOptions) (*Runner, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts, err := DecodeOptions(cfg)
	if err != nil {
		return nil, err
	}
	return &Runner{
		opts:         opts,
		settings:     s,
		availability: *b.availability,
		newClient:    b.factory,
		logger:       logger,
	}, nil
}

// Name returns "Apache Drill".
func (r *Runner) Name() string { return Name }

// Type returns "drill".
func (r *Runner) Type() string { return Type }

// ConfigurationSchema returns the settings shape for this runner's host settings.
func (r *Runner) ConfigurationSchema() *core.ConfigurationSchema {
	return ConfigurationSchema(r.settings)
}

// Enabled reports the startup probe result.
func (r *Runner) Enabled() bool { return r.availability.Available }

// AnnotateQuery passes through the host setting.
func (r *Runner) AnnotateQuery() bool { return r.settings.AnnotateQuery }

// Options returns the decoded data source options.
func (r *Runner) Options() Options { return r.opts }

// RunQuery implements runner.QueryRunner.
func (r *Runner) RunQuery(ctx context.Context, query string, user *core.User) (data string, err error) {
	logger := r.logger.With(slog.String("address", r.opts.Address()))
	if name := user.DisplayName(); name != "" {
		logger = logger.With(slog.String("user", name))
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("drill query panicked", slog.Any("panic", rec))
			data, err = "", r.newError(runner.KindQueryFailed, query, fmt.Errorf("internal error: %v", rec))
		}
	}()

	if !r.availability.Available {
		return "", r.newError(runner.KindConfigurationUnavailable, query, errors.New(r.availability.Reason))
	}
	if err := ctx.Err(); err != nil {
		return "", r.contextError(ctx, logger, nil, query, err)
	}

	client, err := r.newClient(r.opts, logger)
	if err != nil {
		return "", r.newError(runner.KindQueryFailed, query, fmt.Errorf("failed to open drill client: %w", err))
	}
	defer func() { _ = client.Close() }()

	if !client.IsActive(ctx) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", r.contextError(ctx, logger, nil, query, ctxErr)
		}
		logger.Warn("drill server not reachable")
		return "", r.newError(runner.KindServerUnreachable, query,
			fmt.Errorf("drill at %s is not accepting requests", r.opts.Address()))
	}

	start := time.Now()
	logger.Debug("submitting drill query")
	res, err := client.Query(ctx, query)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", r.contextError(ctx, logger, client, query, err)
		}
		logger.Debug("drill query failed", slog.String("error", err.Error()))
		return "", r.newError(runner.KindQueryFailed, query, err)
	}

	// Last cancellation point before serialization
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", r.contextError(ctx, logger, nil, query, ctxErr)
	}

	data, err = runner.EncodeResult(toQueryResult(res))
	if err != nil {
		return "", r.newError(runner.KindQueryFailed, query, err)
	}

	logger.Debug("drill query finished",
		slog.String("query_id", res.QueryID),
		slog.Int("rows", len(res.Rows)),
		slog.Duration("duration", time.Since(start)))
	return data, nil
}

// contextError maps a context failure to the runner error the host sees.
// Cancellation becomes KindQueryCancelled; a deadline is reported as a
// query failure. When client is non-nil the remote query is cancelled
// on a best-effort basis.
func (r *Runner) contextError(ctx context.Context, logger *slog.Logger, client Client, query string, err error) error {
	if client != nil {
		r.cancelRemote(ctx, logger, client, query)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded)) {
		logger.Warn("drill query timed out")
		return r.newError(runner.KindQueryFailed, query, fmt.Errorf("query timed out: %w", err))
	}
	logger.Info("drill query cancelled by user")
	return r.newError(runner.KindQueryCancelled, query, err)
}

func (r *Runner) cancelRemote(ctx context.Context, logger *slog.Logger, client Client, query string) {
	canceler, ok := client.(Canceler)
	if !ok {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), remoteCancelTimeout)
	defer cancel()
	if err := canceler.Cancel(cctx, query); err != nil {
		if errors.Is(err, errNoRunningQuery) {
			logger.Debug("no running drill query to cancel")
			return
		}
		logger.Warn("failed to cancel drill query", slog.String("error", err.Error()))
	}
}

func (r *Runner) newError(kind runner.ErrorKind, query string, err error) error {
	return &runner.Error{Kind: kind, Runner: Type, Query: query, Err: err}
}

// toQueryResult converts a Drill result to the generic tabular form.
// Columns come from the result's column list, or from the first row's keys
// (sorted) when the transport reports none. Types come from the result's
// metadata when it lines up with the columns and default to strings.
func toQueryResult(res *Result) *core.QueryResult {
	names := res.Columns
	if len(names) == 0 && len(res.Rows) > 0 {
		for k := range res.Rows[0] {
			names = append(names, k)
		}
		sort.Strings(names)
	}

	typed := len(res.Types) == len(names)
	columns := make([]core.Column, len(names))
	for i, name := range names {
		t := core.TypeString
		if typed && res.Types[i] != "" {
			t = MapType(res.Types[i])
		}
		columns[i] = core.Column{Name: name, FriendlyName: name, Type: t}
	}

	rows := make([]core.Row, len(res.Rows))
	for i, raw := range res.Rows {
		row := make(core.Row, len(names))
		for k, v := range raw {
			row[k] = v
		}
		for _, name := range names {
			if _, ok := row[name]; !ok {
				row[name] = nil
			}
		}
		rows[i] = row
	}

	return &core.QueryResult{Columns: columns, Rows: rows}
}

// GetSchema implements runner.QueryRunner. getStats is ignored: column
// statistics are never populated.
func (r *Runner) GetSchema(ctx context.Context, _ bool) ([]core.TableSchema, error) {
	query := r.schemaQuery()
	data, err := r.RunQuery(ctx, query, nil)
	if err != nil {
		return nil, r.newError(runner.KindSchemaIntrospectionFailed, query, err)
	}

	result, err := runner.DecodeResult(data)
	if err != nil {
		return nil, r.newError(runner.KindSchemaIntrospectionFailed, query, err)
	}
	return groupColumns(result.Rows), nil
}

func (r *Runner) schemaQuery() string {
	allowed := r.opts.SchemaFilter()
	if len(allowed) == 0 {
		return schemaQuery
	}
	quoted := make([]string, len(allowed))
	for i, s := range allowed {
		quoted[i] = quoteLiteral(s)
	}
	return schemaQuery + "\nAND table_schema IN (" + strings.Join(quoted, ", ") + ")"
}

// quoteLiteral renders s as a SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// groupColumns groups information_schema rows by schema.table.
// Tables appear in first-seen order and columns keep row order.
func groupColumns(rows []core.Row) []core.TableSchema {
	index := make(map[string]int)
	var tables []core.TableSchema
	for _, row := range rows {
		schema, table := stringValue(row["table_schema"]), stringValue(row["table_name"])
		if table == "" {
			continue
		}
		name := schema + "." + table
		i, ok := index[name]
		if !ok {
			i = len(tables)
			index[name] = i
			tables = append(tables, core.TableSchema{Name: name, Columns: []string{}})
		}
		tables[i].Columns = append(tables[i].Columns, stringValue(row["column_name"]))
	}
	return tables
}

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// TestConnection runs a no-op query.
func (r *Runner) TestConnection(ctx context.Context) error {
	_, err := r.RunQuery(ctx, noopQuery, nil)
	return err
}

var (
	_ runner.QueryRunner      = (*Runner)(nil)
	_ runner.ConnectionTester = (*Runner)(nil)
)
