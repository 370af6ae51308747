package output

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// Records renders rows keyed by column name in the effective mode.
// value is rendered as-is for the JSON and YAML modes.
func (r *Renderer) Records(cols []string, rows []map[string]any, value any) error {
	switch r.EffectiveMode() {
	case ModeJSON:
		return r.JSON(value)
	case ModeYAML:
		return r.YAML(value)
	case ModeCSV:
		return r.csv(cols, rows)
	case ModeMarkdown:
		return r.markdown(cols, rows)
	default:
		return r.table(cols, rows)
	}
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YAML writes v as YAML.
func (r *Renderer) YAML(v any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func (r *Renderer) table(cols []string, rows []map[string]any) error {
	if len(rows) == 0 {
		r.Println("(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	// Header
	headerRow := make(table.Row, len(cols))
	for i, col := range cols {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	// Rows
	for _, row := range rows {
		tr := make(table.Row, len(cols))
		for i, col := range cols {
			tr[i] = FormatValue(row[col])
		}
		t.AppendRow(tr)
	}

	t.Render()
	r.Printf("(%d rows)\n", len(rows))
	return nil
}

func (r *Renderer) csv(cols []string, rows []map[string]any) error {
	// Header
	header := make([]string, len(cols))
	for i, col := range cols {
		header[i] = escapeCSV(col)
	}
	r.Println(strings.Join(header, ","))

	// Rows
	for _, row := range rows {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = escapeCSV(FormatValue(row[col]))
		}
		r.Println(strings.Join(values, ","))
	}
	return nil
}

func (r *Renderer) markdown(cols []string, rows []map[string]any) error {
	if len(rows) == 0 {
		r.Println("(0 rows)")
		return nil
	}

	// Header
	r.Printf("| %s |\n", strings.Join(cols, " | "))
	// Separator
	seps := make([]string, len(cols))
	for i := range seps {
		seps[i] = "---"
	}
	r.Printf("| %s |\n", strings.Join(seps, " | "))

	// Rows
	for _, row := range rows {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = escapeMarkdown(FormatValue(row[col]))
		}
		r.Printf("| %s |\n", strings.Join(values, " | "))
	}
	return nil
}

// FormatValue renders a cell value; nil becomes NULL.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", v)
	}
}

var markdownCell = strings.NewReplacer("|", `\|`, "\r\n", "<br>", "\n", "<br>", "\r", "<br>")

// escapeMarkdown keeps a value inside one table cell.
func escapeMarkdown(s string) string {
	return markdownCell.Replace(s)
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\r\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
