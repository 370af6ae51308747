package commands

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "tables <data-source>",
		Short: "List tables visible to a data source",
		Long: `Introspect a data source and list its tables with their columns.

Tables are reported as schema.table in discovery order. For Drill sources
the allowed_schemas option restricts which schemas are scanned.`,
		Example: `  queryrunner tables lake
  queryrunner tables lake -o json`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeDataSources,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCommandContext(cmd)
			if err != nil {
				return err
			}

			qr, err := cc.OpenRunner(args[0])
			if err != nil {
				return err
			}

			tables, err := qr.GetSchema(cmd.Context(), false)
			if err != nil {
				return err
			}

			rows := make([]map[string]any, len(tables))
			for i, t := range tables {
				rows[i] = map[string]any{
					"table":   t.Name,
					"columns": strings.Join(t.Columns, ", "),
				}
			}
			return cc.NewRenderer(cmd, format).Records([]string{"table", "columns"}, rows, tables)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format override")
	return cmd
}
