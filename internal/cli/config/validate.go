package config

import (
	"fmt"
	"slices"

	"github.com/leapstack-labs/queryrunner/pkg/runners/drill"
)

// OutputFormats lists the accepted values of the output setting.
var OutputFormats = []string{"auto", "text", "table", "json", "csv", "md", "markdown", "yaml", "yml"}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if !slices.Contains(OutputFormats, c.OutputFormat) {
		return fmt.Errorf("unknown output format %q (expected one of %v)", c.OutputFormat, OutputFormats)
	}

	switch c.Drill.Transport {
	case "", drill.TransportREST, drill.TransportSQL:
	default:
		return fmt.Errorf("unknown drill transport %q (expected %q or %q)", c.Drill.Transport, drill.TransportREST, drill.TransportSQL)
	}

	for _, name := range c.DataSourceNames() {
		if c.DataSources[name].Type == "" {
			return fmt.Errorf("data source %q: type is required", name)
		}
	}
	return nil
}
