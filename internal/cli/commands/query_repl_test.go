package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/leapstack-labs/queryrunner/internal/cli/config"
	"github.com/leapstack-labs/queryrunner/internal/drilltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestREPL(t *testing.T, srv *drilltest.Server) (*replSession, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	cc := newTestCommandContext(t, map[string]config.DataSource{"lake": drillSource(srv)})
	qr, err := cc.OpenRunner("lake")
	require.NoError(t, err)

	cmd := NewQueryCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	return &replSession{cmd: cmd, cc: cc, source: "lake", qr: qr, opts: &QueryOptions{Format: "csv"}}, &out, &errOut
}

func TestREPL_MultiLineQuery(t *testing.T) {
	srv := drilltest.NewServer(t)
	srv.Handle("SELECT employee_id\nFROM cp.`employee.json`", drilltest.Response{
		Columns: []string{"employee_id"},
		Rows:    []map[string]any{{"employee_id": 1}},
	})
	s, out, errOut := newTestREPL(t, srv)
	ctx := context.Background()

	prompt, quit := s.handleLine(ctx, "SELECT employee_id")
	assert.False(t, quit)
	assert.Equal(t, replContinuePrompt, prompt)
	assert.Empty(t, srv.Queries(), "query runs only after the semicolon")

	prompt, quit = s.handleLine(ctx, "FROM cp.`employee.json`;")
	assert.False(t, quit)
	assert.Equal(t, replPrompt, prompt)

	assert.Empty(t, errOut.String())
	assert.Equal(t, "employee_id\n1\n\n", out.String())
}

func TestREPL_CancelledContextEndsSession(t *testing.T) {
	srv := drilltest.NewServer(t)
	srv.Handle("SELECT 1", drilltest.Response{Columns: []string{"EXPR$0"}, Rows: []map[string]any{{"EXPR$0": 1}}})

	t.Run("cancelled before the line", func(t *testing.T) {
		s, out, errOut := newTestREPL(t, srv)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, quit := s.handleLine(ctx, "SELECT 1;")
		assert.True(t, quit)
		assert.Empty(t, srv.Queries(), "no statement runs once the session is cancelled")
		assert.Empty(t, out.String())
		assert.Empty(t, errOut.String())
	})

	t.Run("cancelled while the query runs", func(t *testing.T) {
		blocking := drilltest.NewServer(t)
		started := blocking.BlockQueries()
		s, _, errOut := newTestREPL(t, blocking)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			<-started
			cancel()
		}()

		_, quit := s.handleLine(ctx, "SELECT 1;")
		assert.True(t, quit, "a cancelled session must not keep reading statements")
		assert.Contains(t, errOut.String(), "Error: ")
		assert.Len(t, blocking.Queries(), 1)
	})
}

func TestREPL_QueryError(t *testing.T) {
	srv := drilltest.NewServer(t)
	s, _, errOut := newTestREPL(t, srv)

	_, quit := s.handleLine(context.Background(), "SELECT nope;")
	assert.False(t, quit, "errors do not end the session")
	assert.Contains(t, errOut.String(), "Error: ")
}

func TestREPL_DotCommands(t *testing.T) {
	srv := drilltest.NewServer(t)
	srv.Handle(schemaQueryText, drilltest.Response{
		Columns: []string{"table_schema", "table_name", "column_name"},
		Rows: []map[string]any{
			{"table_schema": "dfs.tmp", "table_name": "orders", "column_name": "id"},
			{"table_schema": "dfs.tmp", "table_name": "orders", "column_name": "total"},
		},
	})
	s, out, errOut := newTestREPL(t, srv)
	ctx := context.Background()

	t.Run("tables", func(t *testing.T) {
		out.Reset()
		_, quit := s.handleLine(ctx, ".tables")
		assert.False(t, quit)
		assert.Equal(t, "dfs.tmp.orders\n", out.String())
	})

	t.Run("schema", func(t *testing.T) {
		out.Reset()
		s.handleLine(ctx, ".schema dfs.tmp.orders")
		assert.Equal(t, "id\ntotal\n", out.String())
	})

	t.Run("schema unknown table", func(t *testing.T) {
		errOut.Reset()
		s.handleLine(ctx, ".schema dfs.tmp.missing")
		assert.Contains(t, errOut.String(), `table "dfs.tmp.missing" not found`)
	})

	t.Run("help", func(t *testing.T) {
		out.Reset()
		s.handleLine(ctx, ".help")
		assert.Contains(t, out.String(), ".tables")
	})

	t.Run("unknown", func(t *testing.T) {
		errOut.Reset()
		s.handleLine(ctx, ".bogus")
		assert.Contains(t, errOut.String(), "Unknown command: .bogus")
	})

	t.Run("quit", func(t *testing.T) {
		_, quit := s.handleLine(ctx, ".quit")
		assert.True(t, quit)
		_, quit = s.handleLine(ctx, ".EXIT")
		assert.True(t, quit)
	})
}

func TestREPL_Completer(t *testing.T) {
	srv := drilltest.NewServer(t)
	srv.Handle(schemaQueryText, drilltest.Response{
		Columns: []string{"table_schema", "table_name", "column_name"},
		Rows:    []map[string]any{{"table_schema": "cp", "table_name": "employee", "column_name": "id"}},
	})
	s, _, _ := newTestREPL(t, srv)

	c := s.completer(context.Background())
	var names []string
	for _, child := range c.GetChildren() {
		names = append(names, strings.TrimSpace(string(child.GetName())))
	}
	assert.Contains(t, names, "cp.employee")
	assert.Contains(t, names, ".quit")
}
