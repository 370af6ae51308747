package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/queryrunner/internal/cli/config"
	"github.com/leapstack-labs/queryrunner/internal/cli/output"
	"github.com/leapstack-labs/queryrunner/pkg/runner"
	"github.com/leapstack-labs/queryrunner/pkg/runners/drill"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Registry *runner.Registry
	Renderer *output.Renderer
}

// commandContextKey is used to store the CommandContext in context.
type commandContextKey struct{}

// WithCommandContext returns ctx carrying cc.
func WithCommandContext(ctx context.Context, cc *CommandContext) context.Context {
	return context.WithValue(ctx, commandContextKey{}, cc)
}

// GetCommandContext retrieves the CommandContext stored by the root command.
func GetCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	if cc, ok := cmd.Context().Value(commandContextKey{}).(*CommandContext); ok {
		return cc, nil
	}
	return nil, fmt.Errorf("command context not initialized")
}

// NewRegistry builds the runner registry the CLI serves. Every runner the
// binary ships is registered here explicitly.
func NewRegistry(cfg *config.Config, logger *slog.Logger) (*runner.Registry, error) {
	reg := runner.NewRegistry(logger)
	if err := reg.Register(drill.NewDescriptor(cfg.Drill)); err != nil {
		return nil, err
	}
	return reg, nil
}

// NewRenderer creates the renderer for cmd, honoring a per-command format
// override and --no-color.
func (cc *CommandContext) NewRenderer(cmd *cobra.Command, format string) *output.Renderer {
	mode := output.Mode(cc.Cfg.OutputFormat)
	if format != "" {
		mode = output.Mode(format)
	}
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
	if cc.Cfg.NoColor {
		r.DisableColor()
	}
	return r
}

// OpenRunner builds the runner for a configured data source.
func (cc *CommandContext) OpenRunner(name string) (runner.QueryRunner, error) {
	ds, err := cc.Cfg.DataSource(name)
	if err != nil {
		return nil, err
	}
	qr, err := cc.Registry.New(ds.Type, ds.Options)
	if err != nil {
		return nil, fmt.Errorf("data source %q: %w", name, err)
	}
	cc.Logger.Debug("runner ready",
		slog.String("data_source", name),
		slog.String("runner", qr.Type()),
		slog.Bool("enabled", qr.Enabled()))
	return qr, nil
}

// completeDataSources offers configured data source names for the first argument.
func completeDataSources(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	cfg, err := config.LoadConfig(configFlag(cmd), nil)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return cfg.DataSourceNames(), cobra.ShellCompDirectiveNoFileComp
}

func configFlag(cmd *cobra.Command) string {
	if f := cmd.Root().PersistentFlags().Lookup("config"); f != nil {
		return f.Value.String()
	}
	return ""
}
