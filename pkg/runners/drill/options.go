package drill

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/queryrunner/pkg/core"
)

// DefaultSchema is the schema name used when none is configured.
const DefaultSchema = "default"

// Options holds a Drill data source's configuration.
// Parsed from the host's configuration map using mapstructure.
type Options struct {
	Host   string `mapstructure:"host"`
	Port   string `mapstructure:"port"`
	Schema string `mapstructure:"schema"`

	// Extra settings
	UseSSL         bool   `mapstructure:"use_ssl"`
	AllowedSchemas string `mapstructure:"allowed_schemas"`

	// Optional credentials for Drill's form authentication
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// DecodeOptions decodes a configuration map into Options.
// Weak typing is enabled so a port given as a number is accepted.
func DecodeOptions(cfg map[string]any) (Options, error) {
	var opts Options
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return opts, fmt.Errorf("failed to create options decoder: %w", err)
	}
	if err := dec.Decode(cfg); err != nil {
		return opts, fmt.Errorf("failed to decode drill options: %w", err)
	}

	opts.Host = strings.TrimSpace(opts.Host)
	opts.Port = strings.TrimSpace(opts.Port)
	if opts.Schema == "" {
		opts.Schema = DefaultSchema
	}
	if opts.Host == "" {
		return opts, fmt.Errorf("drill host is required")
	}
	if opts.Port == "" {
		return opts, fmt.Errorf("drill port is required")
	}
	return opts, nil
}

// Address returns host:port.
func (o Options) Address() string {
	return net.JoinHostPort(o.Host, o.Port)
}

// BaseURL returns the REST endpoint root.
func (o Options) BaseURL() string {
	u := url.URL{Scheme: "http", Host: o.Address()}
	if o.UseSSL {
		u.Scheme = "https"
	}
	return u.String()
}

// SchemaFilter returns the configured allowed schemas, trimmed and without blanks.
func (o Options) SchemaFilter() []string {
	var out []string
	for _, s := range strings.Split(o.AllowedSchemas, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// HasCredentials reports whether form login should be attempted.
func (o Options) HasCredentials() bool {
	return o.Username != ""
}

// ConfigurationSchema returns the declarative settings shape for the given
// host settings. host, port and schema are always present, in that order.
func ConfigurationSchema(s Settings) *core.ConfigurationSchema {
	schema := core.NewConfigurationSchema()
	schema.Properties["host"] = core.Property{Type: core.PropertyString, Title: "Host"}
	schema.Properties["port"] = core.Property{Type: core.PropertyString, Title: "Port"}
	schema.Properties["schema"] = core.Property{Type: core.PropertyString, Title: "Schema Name", Default: DefaultSchema}
	schema.Required = []string{"host", "port"}
	schema.Order = []string{"host", "port", "schema"}

	if s.OptionalCredentials {
		schema.Properties["username"] = core.Property{Type: core.PropertyString, Title: "Username"}
		schema.Properties["password"] = core.Property{Type: core.PropertyString, Title: "Password"}
		schema.Order = append(schema.Order, "username", "password")
		schema.Secret = []string{"password"}
	}

	if s.ShowExtraSettings {
		schema.Properties["use_ssl"] = core.Property{Type: core.PropertyBoolean, Title: "Use SSL", Default: false}
		schema.Properties["allowed_schemas"] = core.Property{Type: core.PropertyString, Title: "Allowed Schemas (comma separated)"}
		schema.Order = append(schema.Order, "use_ssl", "allowed_schemas")
	}

	return schema
}
