package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/leapstack-labs/queryrunner/pkg/runners/drill"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// Environment variable prefixes.
const (
	EnvPrefix      = "QUERYRUNNER_"
	DrillEnvPrefix = "DRILL_"
)

// drillEnvKeys maps DRILL_* variables to drill settings keys. Other DRILL_*
// variables (DRILL_HOME, ...) are ignored.
var drillEnvKeys = map[string]string{
	"ANNOTATE_QUERY":       "annotate_query",
	"SHOW_EXTRA_SETTINGS":  "show_extra_settings",
	"OPTIONAL_CREDENTIALS": "optional_credentials",
	"TRANSPORT":            "transport",
	"SQL_DRIVER":           "sql_driver",
}

// boolKeys are the settings parsed with ParseBool when read from the environment.
var boolKeys = map[string]bool{
	"verbose":                    true,
	"no_color":                   true,
	"drill.annotate_query":       true,
	"drill.show_extra_settings":  true,
	"drill.optional_credentials": true,
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// findConfigFile finds the config file to use.
// Priority: explicit path > queryrunner.yaml > queryrunner.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{DefaultConfigFile, "queryrunner.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// defaults returns the lowest-priority configuration layer.
func defaults() map[string]any {
	d := drill.DefaultSettings()
	return map[string]any{
		"verbose":                    false,
		"output":                     DefaultOutput,
		"no_color":                   false,
		"drill.annotate_query":       d.AnnotateQuery,
		"drill.show_extra_settings":  d.ShowExtraSettings,
		"drill.optional_credentials": d.OptionalCredentials,
		"drill.transport":            string(d.Transport),
		"drill.sql_driver":           d.SQLDriver,
	}
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Load config file
	configFile := findConfigFile(cfgFile)
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	// 3. Load environment variables
	// QUERYRUNNER_NO_COLOR -> no_color
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		name := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		return name, envValue(name, value)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}
	// DRILL_ANNOTATE_QUERY -> drill.annotate_query
	if err := k.Load(env.ProviderWithValue(DrillEnvPrefix, ".", func(key, value string) (string, any) {
		suffix, ok := drillEnvKeys[strings.TrimPrefix(key, DrillEnvPrefix)]
		if !ok {
			return "", nil
		}
		name := "drill." + suffix
		return name, envValue(name, value)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load drill env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			// Transform kebab-case to snake_case for config keys
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ConfigFile = configFile

	for name, ds := range cfg.DataSources {
		ds.Type = strings.ToLower(strings.TrimSpace(ds.Type))
		ds.Options = expandOptions(ds.Options)
		cfg.DataSources[name] = ds
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// envValue converts boolean settings permissively and leaves the rest as strings.
// An unparseable boolean is passed through so decoding reports it.
func envValue(key, value string) any {
	if !boolKeys[key] {
		return value
	}
	if b, err := ParseBool(value); err == nil {
		return b
	}
	return value
}

// ParseBool parses true/false, yes/no, on/off, 1/0, t/f and y/n in any case.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1", "t", "y":
		return true, nil
	case "false", "no", "off", "0", "f", "n":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value %q", s)
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() any {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR}
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}

// expandOptions expands environment variables in every string option,
// descending into nested maps and lists.
func expandOptions(opts map[string]any) map[string]any {
	if opts == nil {
		return nil
	}
	out := make(map[string]any, len(opts))
	for k, v := range opts {
		out[k] = expandValue(v)
	}
	return out
}

func expandValue(v any) any {
	switch x := v.(type) {
	case string:
		return expandEnvVars(x)
	case map[string]any:
		return expandOptions(x)
	case []any:
		s := make([]any, len(x))
		for i, e := range x {
			s[i] = expandValue(e)
		}
		return s
	default:
		return v
	}
}
