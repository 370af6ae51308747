package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/leapstack-labs/queryrunner/internal/cli/output"
	"github.com/leapstack-labs/queryrunner/pkg/core"
	"github.com/leapstack-labs/queryrunner/pkg/runner"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format  string
	Input   string
	User    string
	QueryID string
	Timeout time.Duration
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query <data-source> [SQL]",
		Short: "Run a query against a data source",
		Long: `Run a literal query against a configured data source.

The query is read from the arguments, from a file given with --input, or
from stdin when it is piped. The result is rendered in the selected output
format. Press Ctrl-C to cancel a running query.

When invoked without a query on a terminal, enters interactive REPL mode.`,
		Example: `  # Execute SQL directly
  queryrunner query lake "SELECT * FROM cp.` + "`employee.json`" + ` LIMIT 5"

  # Read SQL from a file and print JSON
  queryrunner query lake -i report.sql -o json

  # Pipe SQL from stdin
  echo "SELECT 1" | queryrunner query lake

  # Interactive mode
  queryrunner query lake`,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: completeDataSources,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json, csv, md, yaml (default: --output)")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	cmd.Flags().StringVar(&opts.User, "user", "", "User name recorded in the query annotation")
	cmd.Flags().StringVar(&opts.QueryID, "query-id", "", "Query ID recorded in the query annotation")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Cancel the query after this duration (0 = no limit)")

	return cmd
}

// interactive reports whether the query command should start the REPL:
// no SQL argument, no --input, and stdin is a terminal.
func interactive(cmd *cobra.Command, args []string, opts *QueryOptions) bool {
	if len(args) > 0 || opts.Input != "" {
		return false
	}
	f, ok := cmd.InOrStdin().(*os.File)
	return ok && isTerminal(f)
}

// readQuery determines the SQL source.
func readQuery(cmd *cobra.Command, args []string, opts *QueryOptions) (string, error) {
	switch {
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(content), nil
	default:
		// Read from stdin (piped input)
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(content), nil
	}
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cc, err := GetCommandContext(cmd)
	if err != nil {
		return err
	}
	source := args[0]

	if interactive(cmd, args[1:], opts) {
		qr, err := cc.OpenRunner(source)
		if err != nil {
			return err
		}
		return runQueryREPL(cmd, cc, source, qr, opts)
	}

	query, err := readQuery(cmd, args[1:], opts)
	if err != nil {
		return err
	}
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query is empty")
	}

	qr, err := cc.OpenRunner(source)
	if err != nil {
		return err
	}

	var user *core.User
	if opts.User != "" {
		user = &core.User{Name: opts.User}
	}
	if qr.AnnotateQuery() {
		query = runner.NewAnnotation(user, opts.QueryID).Apply(query)
	}

	ctx := cmd.Context()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	data, err := qr.RunQuery(ctx, query, user)
	if err != nil {
		return err
	}
	cc.Logger.Debug("query finished", slog.String("data_source", source), slog.Duration("duration", time.Since(start)))

	result, err := runner.DecodeResult(data)
	if err != nil {
		return err
	}
	return renderResult(cc.NewRenderer(cmd, opts.Format), result)
}

// renderResult writes a decoded result through r. JSON and YAML output keep
// the columns/rows envelope.
func renderResult(r *output.Renderer, result *core.QueryResult) error {
	rows := make([]map[string]any, len(result.Rows))
	for i, row := range result.Rows {
		rows[i] = row
	}
	return r.Records(result.ColumnNames(), rows, result)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}
