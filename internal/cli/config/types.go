// Package config provides configuration management for the queryrunner CLI.
//
// The CLI plays the host platform: it reads the host-level Drill settings
// and the data source definitions the runners are built from.
package config

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/queryrunner/pkg/runners/drill"
)

// DataSource is a named, stored runner configuration.
type DataSource struct {
	Type    string         `koanf:"type" yaml:"type"`
	Options map[string]any `koanf:"options" yaml:"options"`
}

// Config holds all CLI configuration options.
type Config struct {
	Verbose      bool                  `koanf:"verbose"`
	OutputFormat string                `koanf:"output"`
	NoColor      bool                  `koanf:"no_color"`
	Drill        drill.Settings        `koanf:"drill"`
	DataSources  map[string]DataSource `koanf:"data_sources"`

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultConfigFile = "queryrunner.yaml"
	DefaultOutput     = "auto" // Auto-detect: TTY=table, non-TTY=markdown
)

// DataSourceNames returns the configured data source names, sorted.
func (c *Config) DataSourceNames() []string {
	names := make([]string, 0, len(c.DataSources))
	for name := range c.DataSources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DataSource looks up a data source by name.
func (c *Config) DataSource(name string) (DataSource, error) {
	ds, ok := c.DataSources[name]
	if !ok {
		return DataSource{}, fmt.Errorf("unknown data source %q\nAvailable data sources: %v\nHint: Define it under data_sources in %s", name, c.DataSourceNames(), DefaultConfigFile)
	}
	return ds, nil
}
