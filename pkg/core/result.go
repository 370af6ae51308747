package core

// ColumnType is the generic column type tag shared by all query runners.
type ColumnType string

// ColumnType constants understood by the host platform.
const (
	TypeBoolean  ColumnType = "boolean"
	TypeInteger  ColumnType = "integer"
	TypeFloat    ColumnType = "float"
	TypeString   ColumnType = "string"
	TypeDatetime ColumnType = "datetime"
	TypeDate     ColumnType = "date"
)

// Valid reports whether t is one of the generic column types.
func (t ColumnType) Valid() bool {
	switch t {
	case TypeBoolean, TypeInteger, TypeFloat, TypeString, TypeDatetime, TypeDate:
		return true
	}
	return false
}

// Column describes one column of a query result.
type Column struct {
	Name         string     `json:"name" yaml:"name"`
	FriendlyName string     `json:"friendly_name" yaml:"friendly_name"`
	Type         ColumnType `json:"type" yaml:"type"`
}

// Row maps column names to values.
type Row map[string]any

// QueryResult is the tabular form every runner produces.
// Columns is ordered; each Row is keyed by Column.Name.
type QueryResult struct {
	Columns []Column `json:"columns" yaml:"columns"`
	Rows    []Row    `json:"rows" yaml:"rows"`
}

// ColumnNames returns the column names in order.
func (r *QueryResult) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// TableSchema describes a table discovered by schema introspection.
// Name is fully qualified (schema.table); Columns keep discovery order.
type TableSchema struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
}

// User identifies who issued a query. A nil *User means the host itself
// (schema refresh, connection tests).
type User struct {
	ID    string
	Name  string
	Email string
}

// DisplayName returns the best human-readable identifier for the user.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Email != "" {
		return u.Email
	}
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}
