// Package runner provides the host-facing contract for query runners.
//
// A query runner adapts one kind of data source to the host platform's
// generic tabular format. Runners expose a Descriptor; the host collects
// descriptors into an explicit Registry during startup and builds runner
// instances from stored data source configuration.
package runner

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/queryrunner/pkg/core"
)

// QueryRunner defines the capability set every data source adapter must
// implement so the host can treat heterogeneous sources uniformly.
type QueryRunner interface {
	// Name returns a fixed human-readable identifier (e.g., "Apache Drill").
	Name() string

	// Type returns the machine identifier used as the registry key.
	Type() string

	// ConfigurationSchema returns the declarative settings shape.
	// It does not validate; validation is the host's responsibility.
	ConfigurationSchema() *core.ConfigurationSchema

	// Enabled reports whether the runner's client was found at startup.
	Enabled() bool

	// AnnotateQuery tells the host whether to inject tracing comments
	// into outgoing queries.
	AnnotateQuery() bool

	// GetSchema returns the tables visible to the data source.
	// getStats is accepted for interface compatibility.
	GetSchema(ctx context.Context, getStats bool) ([]core.TableSchema, error)

	// RunQuery executes a literal query and returns the result encoded as
	// {"columns": [...], "rows": [...]} JSON. Exactly one of data and err
	// is populated.
	RunQuery(ctx context.Context, query string, user *core.User) (data string, err error)
}

// ConnectionTester is implemented by runners that can verify connectivity
// with a cheap no-op query.
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
}

// Availability is the typed result of a runner's startup capability probe.
type Availability struct {
	Available bool
	// Reason explains why the runner is unavailable. Empty when available.
	Reason string
}

// Available returns an Availability for a usable runner.
func Available() Availability {
	return Availability{Available: true}
}

// Unavailable returns an Availability for a runner whose client is missing.
func Unavailable(reason string) Availability {
	return Availability{Available: false, Reason: reason}
}

func (a Availability) String() string {
	if a.Available {
		return "available"
	}
	if a.Reason == "" {
		return "unavailable"
	}
	return "unavailable: " + a.Reason
}

// Factory builds a runner from validated configuration with defaults applied.
// If logger is nil, factories use a discard logger.
type Factory func(cfg map[string]any, logger *slog.Logger) (QueryRunner, error)

// Descriptor is what a runner exposes to the host's registry.
type Descriptor struct {
	Type         string
	Name         string
	Availability Availability
	Schema       *core.ConfigurationSchema
	Factory      Factory
}

// Enabled reports whether the descriptor's runner can be selected.
func (d Descriptor) Enabled() bool {
	return d.Availability.Available
}
