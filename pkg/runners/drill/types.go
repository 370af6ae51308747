package drill

import (
	"strings"

	"github.com/leapstack-labs/queryrunner/pkg/core"
)

// typeMappings maps Drill column type names to generic column types.
// Complex and binary types degrade to strings.
var typeMappings = map[string]core.ColumnType{
	"boolean":   core.TypeBoolean,
	"tinyint":   core.TypeInteger,
	"smallint":  core.TypeInteger,
	"integer":   core.TypeInteger,
	"bigint":    core.TypeInteger,
	"double":    core.TypeFloat,
	"varchar":   core.TypeString,
	"timestamp": core.TypeDatetime,
	"date":      core.TypeDate,
	"varbinary": core.TypeString,
	"array":     core.TypeString,
	"map":       core.TypeString,
	"row":       core.TypeString,
	"decimal":   core.TypeFloat,

	// Names Drill reports in REST metadata and JDBC type names
	"bit":               core.TypeBoolean,
	"int":               core.TypeInteger,
	"uint1":             core.TypeInteger,
	"uint2":             core.TypeInteger,
	"uint4":             core.TypeInteger,
	"uint8":             core.TypeInteger,
	"float":             core.TypeFloat,
	"float4":            core.TypeFloat,
	"float8":            core.TypeFloat,
	"real":              core.TypeFloat,
	"double precision":  core.TypeFloat,
	"vardecimal":        core.TypeFloat,
	"char":              core.TypeString,
	"character":         core.TypeString,
	"character varying": core.TypeString,
	"binary":            core.TypeString,
	"binary varying":    core.TypeString,
	"time":              core.TypeString,
	"interval":          core.TypeString,
	"struct":            core.TypeString,
	"any":               core.TypeString,
}

// MapType returns the generic type for a Drill type name. Lookup ignores
// case and precision or element suffixes ("DECIMAL(10,2)", "ARRAY<INT>").
// Unknown names map to core.TypeString.
func MapType(drillType string) core.ColumnType {
	name := strings.ToLower(strings.TrimSpace(drillType))
	if i := strings.IndexAny(name, "(<"); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	if strings.HasPrefix(name, "interval") {
		return core.TypeString
	}
	if t, ok := typeMappings[name]; ok {
		return t
	}
	return core.TypeString
}
