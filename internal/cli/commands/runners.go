package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// runnerInfo is the listing entry for a registered runner.
type runnerInfo struct {
	Type   string `json:"type" yaml:"type"`
	Name   string `json:"name" yaml:"name"`
	Status string `json:"status" yaml:"status"`
}

// NewRunnersCommand creates the runners command.
func NewRunnersCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "runners",
		Short: "List registered query runners",
		Long: `List the query runners compiled into this binary and whether their
client library was found at startup. Disabled runners stay listed but cannot
back a data source.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := GetCommandContext(cmd)
			if err != nil {
				return err
			}

			descs := cc.Registry.List()
			infos := make([]runnerInfo, len(descs))
			rows := make([]map[string]any, len(descs))
			for i, d := range descs {
				infos[i] = runnerInfo{Type: d.Type, Name: d.Name, Status: d.Availability.String()}
				rows[i] = map[string]any{"type": d.Type, "name": d.Name, "status": infos[i].Status}
			}
			return cc.NewRenderer(cmd, format).Records([]string{"type", "name", "status"}, rows, infos)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format override")

	cmd.AddCommand(newRunnerSchemaCommand())
	return cmd
}

func newRunnerSchemaCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "schema <type>",
		Short: "Show the configuration schema of a runner",
		Args:  cobra.ExactArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			cc, err := GetCommandContext(cmd)
			if err != nil {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return cc.Registry.Types(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCommandContext(cmd)
			if err != nil {
				return err
			}

			d, ok := cc.Registry.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown runner type %q (available: %s)", args[0], strings.Join(cc.Registry.Types(), ", "))
			}
			if d.Schema == nil {
				return fmt.Errorf("runner %q declares no configuration schema", d.Type)
			}

			required := make(map[string]bool, len(d.Schema.Required))
			for _, k := range d.Schema.Required {
				required[k] = true
			}

			keys := d.Schema.Keys()
			rows := make([]map[string]any, len(keys))
			for i, k := range keys {
				p := d.Schema.Properties[k]
				rows[i] = map[string]any{
					"field":    k,
					"type":     string(p.Type),
					"title":    p.Title,
					"default":  p.Default,
					"required": required[k],
					"secret":   d.Schema.IsSecret(k),
				}
			}
			cols := []string{"field", "type", "title", "default", "required", "secret"}
			return cc.NewRenderer(cmd, format).Records(cols, rows, d.Schema)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format override")
	return cmd
}
