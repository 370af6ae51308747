package drill

// Transport selects how the runner talks to Drill.
type Transport string

// Transport constants.
const (
	// TransportREST uses Drill's HTTP API (default).
	TransportREST Transport = "rest"
	// TransportSQL uses a database/sql driver registered under Settings.SQLDriver.
	TransportSQL Transport = "sql"
)

// DefaultSQLDriver is the database/sql driver name used by TransportSQL
// when none is configured.
const DefaultSQLDriver = "drill"

// Settings holds the host-level flags for the Drill runner. They are read
// once at startup and passed to NewDescriptor and New.
type Settings struct {
	// AnnotateQuery tells the host to prefix queries with a tracing comment.
	AnnotateQuery bool `koanf:"annotate_query"`

	// ShowExtraSettings exposes use_ssl and allowed_schemas in the schema.
	ShowExtraSettings bool `koanf:"show_extra_settings"`

	// OptionalCredentials exposes username and password in the schema.
	OptionalCredentials bool `koanf:"optional_credentials"`

	Transport Transport `koanf:"transport"`
	SQLDriver string    `koanf:"sql_driver"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		AnnotateQuery: true,
		Transport:     TransportREST,
		SQLDriver:     DefaultSQLDriver,
	}
}

func (s Settings) transport() Transport {
	if s.Transport == "" {
		return TransportREST
	}
	return s.Transport
}

func (s Settings) sqlDriver() string {
	if s.SQLDriver == "" {
		return DefaultSQLDriver
	}
	return s.SQLDriver
}
