package drill

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// SQLClient runs Drill queries through a database/sql driver.
type SQLClient struct {
	DB           *sql.DB
	Logger       *slog.Logger
	ProbeTimeout time.Duration
}

// NewSQLClient wraps an open database handle.
// If logger is nil, a discard logger is used.
func NewSQLClient(db *sql.DB, logger *slog.Logger) *SQLClient {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLClient{DB: db, Logger: logger, ProbeTimeout: DefaultProbeTimeout}
}

// sqlClientFactory returns a ClientFactory that opens driverName with a DSN
// built from the data source options.
func sqlClientFactory(driverName string) ClientFactory {
	return func(opts Options, logger *slog.Logger) (Client, error) {
		if logger != nil {
			logger.Debug("opening drill sql connection", slog.String("driver", driverName), slog.String("address", opts.Address()))
		}
		db, err := sql.Open(driverName, BuildDSN(opts))
		if err != nil {
			return nil, fmt.Errorf("failed to open %s connection: %w", driverName, err)
		}
		return NewSQLClient(db, logger), nil
	}
}

// BuildDSN constructs a drill:// connection URL:
// drill://[user[:password]@]host:port/schema[?ssl=true]
func BuildDSN(opts Options) string {
	u := url.URL{
		Scheme: "drill",
		Host:   opts.Address(),
		Path:   "/" + opts.Schema,
	}
	if opts.Username != "" {
		if opts.Password != "" {
			u.User = url.UserPassword(opts.Username, opts.Password)
		} else {
			u.User = url.User(opts.Username)
		}
	}
	if opts.UseSSL {
		u.RawQuery = url.Values{"ssl": []string{"true"}}.Encode()
	}
	return u.String()
}

// IsActive pings the database.
func (c *SQLClient) IsActive(ctx context.Context) bool {
	if c.DB == nil {
		return false
	}
	if c.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.ProbeTimeout)
		defer cancel()
	}
	if err := c.DB.PingContext(ctx); err != nil {
		c.Logger.Debug("drill sql ping failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

// Query executes the query and materializes every row.
func (c *SQLClient) Query(ctx context.Context, query string) (*Result, error) {
	if c.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	rows, err := c.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	types := make([]string, len(cols))
	if colTypes, err := rows.ColumnTypes(); err == nil && len(colTypes) == len(cols) {
		for i, ct := range colTypes {
			types[i] = ct.DatabaseTypeName()
		}
	}

	result := &Result{Columns: cols, Types: types}
	for rows.Next() {
		values := make([]any, len(cols))
		valuePtrs := make([]any, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			val := values[i]
			// Text arrives as []byte from many drivers; binary columns stay bytes
			if b, ok := val.([]byte); ok && !isBinaryType(types[i]) {
				val = string(b)
			}
			row[col] = val
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}

func isBinaryType(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "binary") || n == "blob" || n == "bytea"
}

// Close closes the database handle.
func (c *SQLClient) Close() error {
	if c.DB != nil {
		c.Logger.Debug("closing drill sql connection")
		return c.DB.Close()
	}
	return nil
}

var _ Client = (*SQLClient)(nil)
