package runner

import (
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/leapstack-labs/queryrunner/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_PreservesScalarTypes(t *testing.T) {
	in := &core.QueryResult{
		Columns: []core.Column{
			{Name: "n", FriendlyName: "n", Type: core.TypeString},
			{Name: "b", FriendlyName: "b", Type: core.TypeBoolean},
			{Name: "i", FriendlyName: "i", Type: core.TypeInteger},
			{Name: "s", FriendlyName: "s", Type: core.TypeString},
		},
		Rows: []core.Row{
			{"n": nil, "b": true, "i": int64(9007199254740993), "s": "drill"},
		},
	}

	data, err := EncodeResult(in)
	require.NoError(t, err)

	out, err := DecodeResult(data)
	require.NoError(t, err)

	assert.Equal(t, in.Columns, out.Columns)
	require.Len(t, out.Rows, 1)
	row := out.Rows[0]

	v, ok := row["n"]
	assert.True(t, ok, "null column must be kept")
	assert.Nil(t, v)
	assert.Equal(t, true, row["b"])
	assert.Equal(t, int64(9007199254740993), row["i"], "integers beyond float64 precision must survive")
	assert.Equal(t, "drill", row["s"])
}

func TestEncodeDecode_FloatColumnKeepsFloat(t *testing.T) {
	in := &core.QueryResult{
		Columns: []core.Column{
			{Name: "f", FriendlyName: "f", Type: core.TypeFloat},
			{Name: "i", FriendlyName: "i", Type: core.TypeInteger},
		},
		Rows: []core.Row{
			{"f": 2.0, "i": int64(2)},
			{"f": 2.5, "i": nil},
		},
	}

	data, err := EncodeResult(in)
	require.NoError(t, err)

	out, err := DecodeResult(data)
	require.NoError(t, err)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, 2.0, out.Rows[0]["f"], "integral values in float columns stay float64")
	assert.Equal(t, int64(2), out.Rows[0]["i"])
	assert.Equal(t, 2.5, out.Rows[1]["f"])
	assert.Nil(t, out.Rows[1]["i"])
}

func TestEncodeResult_Shape(t *testing.T) {
	data, err := EncodeResult(&core.QueryResult{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns":[],"rows":[]}`, data)

	_, err = EncodeResult(nil)
	require.Error(t, err)
}

func TestNormalizeValue(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 30, 0, 500, time.UTC)

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"time", ts, "2024-03-09T14:30:00.0000005Z"},
		{"time pointer", &ts, "2024-03-09T14:30:00.0000005Z"},
		{"nil time pointer", (*time.Time)(nil), nil},
		{"bytes as hex", []byte{0xde, 0xad}, "dead"},
		{"nan", math.NaN(), nil},
		{"inf", math.Inf(1), nil},
		{"float", 1.5, 1.5},
		{"valid null string", sql.NullString{String: "x", Valid: true}, "x"},
		{"invalid null string", sql.NullString{}, nil},
		{"null time", sql.NullTime{Time: ts, Valid: true}, "2024-03-09T14:30:00.0000005Z"},
		{"nested", map[string]any{"t": ts, "l": []any{[]byte{1}}}, map[string]any{"t": "2024-03-09T14:30:00.0000005Z", "l": []any{"01"}}},
		{"row", core.Row{"b": []byte{2}}, map[string]any{"b": "02"}},
		{"passthrough", "text", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeValue(tt.in))
		})
	}
}

func TestResolveNumbers(t *testing.T) {
	in := map[string]any{
		"i": json.Number("42"),
		"f": json.Number("4.2"),
		"l": []any{json.Number("1"), json.Number("1e400")},
	}

	out := ResolveNumbers(in).(map[string]any)

	assert.Equal(t, int64(42), out["i"])
	assert.Equal(t, 4.2, out["f"])
	list := out["l"].([]any)
	assert.Equal(t, int64(1), list[0])
	assert.Equal(t, "1e400", list[1], "unrepresentable numbers fall back to their literal")
}

func TestDecodeResult_Invalid(t *testing.T) {
	_, err := DecodeResult("not json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode query result")
}
