package runner

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/leapstack-labs/queryrunner/pkg/core"
)

// EncodeResult serializes a result to the platform's JSON convention:
//   - time.Time values become RFC 3339 (ISO-8601) strings
//   - []byte values become lowercase hex strings
//   - NaN and ±Inf become null
//   - driver.Valuer values (sql.NullString, ...) are unwrapped
//
// Nested maps and slices are normalized recursively.
func EncodeResult(r *core.QueryResult) (string, error) {
	if r == nil {
		return "", fmt.Errorf("nil query result")
	}

	out := struct {
		Columns []core.Column `json:"columns"`
		Rows    []core.Row    `json:"rows"`
	}{
		Columns: r.Columns,
		Rows:    make([]core.Row, len(r.Rows)),
	}
	if out.Columns == nil {
		out.Columns = []core.Column{}
	}
	for i, row := range r.Rows {
		normalized := make(core.Row, len(row))
		for k, v := range row {
			normalized[k] = NormalizeValue(v)
		}
		out.Rows[i] = normalized
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to encode query result: %w", err)
	}
	return string(data), nil
}

// DecodeResult parses JSON produced by EncodeResult. Numbers in float columns
// decode as float64. Elsewhere integral numbers decode as int64 and all other
// numbers as float64.
func DecodeResult(data string) (*core.QueryResult, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	var r core.QueryResult
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode query result: %w", err)
	}

	floats := make(map[string]bool)
	for _, c := range r.Columns {
		if c.Type == core.TypeFloat {
			floats[c.Name] = true
		}
	}
	for _, row := range r.Rows {
		for k, v := range row {
			if n, ok := v.(json.Number); ok && floats[k] {
				row[k] = resolveFloat(n)
				continue
			}
			row[k] = ResolveNumbers(v)
		}
	}
	return &r, nil
}

func resolveFloat(n json.Number) any {
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

// NormalizeValue converts v into a value the JSON encoder renders according
// to the platform convention.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.Format(time.RFC3339Nano)
	case []byte:
		return hex.EncodeToString(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case float32:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil
		}
		return x
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = NormalizeValue(e)
		}
		return m
	case core.Row:
		return NormalizeValue(map[string]any(x))
	case []any:
		s := make([]any, len(x))
		for i, e := range x {
			s[i] = NormalizeValue(e)
		}
		return s
	case driver.Valuer:
		val, err := x.Value()
		if err != nil {
			return nil
		}
		return NormalizeValue(val)
	default:
		return v
	}
}

// ResolveNumbers replaces json.Number values (recursively) with int64 when
// the literal is integral and float64 otherwise.
func ResolveNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, e := range x {
			x[k] = ResolveNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = ResolveNumbers(e)
		}
		return x
	default:
		return v
	}
}
