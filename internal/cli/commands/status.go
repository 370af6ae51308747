package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/queryrunner/internal/cli/output"
	"github.com/leapstack-labs/queryrunner/pkg/runner"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// statusConcurrency bounds how many data sources are checked at once.
const statusConcurrency = 4

// SourceStatus is the connectivity result for one data source.
type SourceStatus struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Status   string `json:"status" yaml:"status"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
	Duration string `json:"duration" yaml:"duration"`
}

// Status values.
const (
	StatusUp      = "up"
	StatusDown    = "down"
	StatusSkipped = "skipped"
)

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	var (
		format  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status [data-source...]",
		Short: "Check connectivity of configured data sources",
		Long: `Run a no-op query against each configured data source (or the ones
named) and report whether it is reachable. Exits with an error if any data
source is down.`,
		ValidArgsFunction: completeDataSources,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCommandContext(cmd)
			if err != nil {
				return err
			}

			names := args
			if len(names) == 0 {
				names = cc.Cfg.DataSourceNames()
			}
			if len(names) == 0 {
				return fmt.Errorf("no data sources configured")
			}

			results := checkSources(cmd.Context(), cc, names, timeout)
			if err := renderStatus(cc.NewRenderer(cmd, format), results); err != nil {
				return err
			}

			down := 0
			for _, r := range results {
				if r.Status == StatusDown {
					down++
				}
			}
			if down > 0 {
				return fmt.Errorf("%d of %d data sources unreachable", down, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format override")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Timeout per data source")
	return cmd
}

// checkSources tests each data source concurrently. Results keep the order of names.
func checkSources(ctx context.Context, cc *CommandContext, names []string, timeout time.Duration) []SourceStatus {
	results := make([]SourceStatus, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(statusConcurrency)
	for i, name := range names {
		g.Go(func() error {
			results[i] = checkSource(ctx, cc, name, timeout)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func checkSource(ctx context.Context, cc *CommandContext, name string, timeout time.Duration) (st SourceStatus) {
	st.Name = name
	if ds, err := cc.Cfg.DataSource(name); err == nil {
		st.Type = ds.Type
	}

	start := time.Now()
	defer func() { st.Duration = time.Since(start).Round(time.Millisecond).String() }()

	qr, err := cc.OpenRunner(name)
	if err != nil {
		st.Status, st.Error = StatusDown, err.Error()
		return st
	}

	tester, ok := qr.(runner.ConnectionTester)
	if !ok {
		st.Status = StatusSkipped
		return st
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := tester.TestConnection(ctx); err != nil {
		cc.Logger.Debug("connection test failed", slog.String("data_source", name), slog.String("error", err.Error()))
		st.Status, st.Error = StatusDown, err.Error()
		return st
	}
	st.Status = StatusUp
	return st
}

func renderStatus(r *output.Renderer, results []SourceStatus) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(results)
	case output.ModeYAML:
		return r.YAML(results)
	case output.ModeText:
		s := r.Styles()
		for _, st := range results {
			switch st.Status {
			case StatusUp:
				r.Printf("%s %s (%s) %s\n", s.Success.Render("✓"), s.Bold.Render(st.Name), st.Type, s.Muted.Render(st.Duration))
			case StatusSkipped:
				r.Printf("%s %s (%s) %s\n", s.Warning.Render("-"), s.Bold.Render(st.Name), st.Type, s.Muted.Render("no connection test"))
			default:
				r.Printf("%s %s (%s) %s\n", s.Error.Render("✗"), s.Bold.Render(st.Name), st.Type, st.Error)
			}
		}
		return nil
	}

	rows := make([]map[string]any, len(results))
	for i, st := range results {
		rows[i] = map[string]any{
			"name":     st.Name,
			"type":     st.Type,
			"status":   st.Status,
			"error":    st.Error,
			"duration": st.Duration,
		}
	}
	return r.Records([]string{"name", "type", "status", "error", "duration"}, rows, results)
}
