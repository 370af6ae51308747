package drill

import (
	"context"
	"log/slog"
	"time"
)

// DefaultProbeTimeout bounds the liveness probe.
const DefaultProbeTimeout = 2 * time.Second

// Result is a fully materialized Drill result set.
type Result struct {
	// QueryID is Drill's identifier for the query, when the transport reports one.
	QueryID string
	// Columns is the ordered column list. May be empty, in which case the
	// runner derives columns from the first row.
	Columns []string
	// Types holds Drill type names aligned with Columns. It is empty when the
	// transport reports no metadata.
	Types []string
	Rows  []map[string]any
}

// Client is the connection to a Drill server used for a single runner call.
type Client interface {
	// IsActive probes whether the server is accepting requests.
	IsActive(ctx context.Context) bool

	// Query submits the literal query and waits for the complete result.
	Query(ctx context.Context, query string) (*Result, error)

	// Close releases the client's resources.
	Close() error
}

// Canceler is implemented by clients that can ask the server to stop a
// query that was abandoned locally. It is best-effort.
type Canceler interface {
	Cancel(ctx context.Context, query string) error
}

// ClientFactory opens a client for a data source.
type ClientFactory func(opts Options, logger *slog.Logger) (Client, error)
