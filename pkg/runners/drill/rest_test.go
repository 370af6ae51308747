package drill

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/leapstack-labs/queryrunner/internal/drilltest"
	"github.com/leapstack-labs/queryrunner/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRESTClient(t *testing.T, srv *drilltest.Server, extra map[string]any) *RESTClient {
	t.Helper()
	cfg := srv.Options()
	for k, v := range extra {
		cfg[k] = v
	}
	opts, err := DecodeOptions(cfg)
	require.NoError(t, err)

	c, err := NewRESTClient(opts, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRESTClient_IsActive(t *testing.T) {
	srv := drilltest.NewServer(t)
	c := newTestRESTClient(t, srv, nil)

	assert.True(t, c.IsActive(context.Background()))

	srv.SetActive(false)
	assert.False(t, c.IsActive(context.Background()))
}

func TestRESTClient_IsActive_NoServer(t *testing.T) {
	opts := Options{Host: "127.0.0.1", Port: "1", Schema: DefaultSchema}
	c, err := NewRESTClient(opts, nil)
	require.NoError(t, err)

	assert.False(t, c.IsActive(context.Background()))
}

func TestRESTClient_Query(t *testing.T) {
	srv := drilltest.NewServer(t)
	srv.Handle("SELECT * FROM cp.`employee.json`", drilltest.Response{
		QueryID:  "2b3c-4d5e",
		Columns:  []string{"employee_id", "salary", "tags"},
		Metadata: []string{"BIGINT", "DOUBLE", "ARRAY"},
		Rows: []map[string]any{
			{"employee_id": int64(9007199254740993), "salary": 80000.5, "tags": []any{1, "a"}},
		},
	})
	c := newTestRESTClient(t, srv, nil)

	res, err := c.Query(context.Background(), "SELECT * FROM cp.`employee.json`")
	require.NoError(t, err)

	assert.Equal(t, "2b3c-4d5e", res.QueryID)
	assert.Equal(t, []string{"employee_id", "salary", "tags"}, res.Columns)
	assert.Equal(t, []string{"BIGINT", "DOUBLE", "ARRAY"}, res.Types)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(9007199254740993), res.Rows[0]["employee_id"], "integers keep full precision")
	assert.Equal(t, 80000.5, res.Rows[0]["salary"])
	assert.Equal(t, []any{int64(1), "a"}, res.Rows[0]["tags"])
	assert.Equal(t, []string{"SELECT * FROM cp.`employee.json`"}, srv.Queries())
}

func TestRESTClient_QueryErrors(t *testing.T) {
	tests := []struct {
		name    string
		resp    drilltest.Response
		wantMsg string
	}{
		{
			name:    "http error with drill payload",
			resp:    drilltest.Response{Status: http.StatusInternalServerError, ErrorMessage: "PARSE ERROR: Encountered \"FORM\""},
			wantMsg: "PARSE ERROR: Encountered \"FORM\"",
		},
		{
			name:    "http error with plain body",
			resp:    drilltest.Response{Status: http.StatusBadGateway, Body: "upstream gone"},
			wantMsg: "upstream gone",
		},
		{
			name:    "failed state",
			resp:    drilltest.Response{QueryState: "FAILED", ErrorMessage: "RESOURCE ERROR: out of memory"},
			wantMsg: "RESOURCE ERROR: out of memory (state FAILED)",
		},
		{
			name:    "error message without results",
			resp:    drilltest.Response{ErrorMessage: "SYSTEM ERROR: NullPointerException"},
			wantMsg: "SYSTEM ERROR: NullPointerException",
		},
		{
			name:    "malformed body",
			resp:    drilltest.Response{Body: "{not json"},
			wantMsg: "failed to decode drill response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := drilltest.NewServer(t)
			srv.Handle("SELECT 1", tt.resp)
			c := newTestRESTClient(t, srv, nil)

			res, err := c.Query(context.Background(), "SELECT 1")
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestRESTClient_Login(t *testing.T) {
	srv := drilltest.NewServer(t)
	srv.RequireLogin("alice", "s3cret")
	srv.Handle("SELECT 1", drilltest.Response{Columns: []string{"EXPR$0"}, Rows: []map[string]any{{"EXPR$0": 1}}})

	t.Run("valid credentials", func(t *testing.T) {
		c := newTestRESTClient(t, srv, map[string]any{"username": "alice", "password": "s3cret"})

		res, err := c.Query(context.Background(), "SELECT 1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Rows[0]["EXPR$0"])

		// The session cookie is reused.
		_, err = c.Query(context.Background(), "SELECT 1")
		require.NoError(t, err)
	})

	t.Run("wrong password", func(t *testing.T) {
		c := newTestRESTClient(t, srv, map[string]any{"username": "alice", "password": "nope"})

		_, err := c.Query(context.Background(), "SELECT 1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "login rejected")
	})

	t.Run("no credentials", func(t *testing.T) {
		c := newTestRESTClient(t, srv, nil)

		_, err := c.Query(context.Background(), "SELECT 1")
		require.Error(t, err)
		var qe *QueryError
		require.True(t, errors.As(err, &qe))
		assert.Equal(t, http.StatusUnauthorized, qe.StatusCode)
	})
}

func TestRESTClient_CancelWithoutRunningQuery(t *testing.T) {
	srv := drilltest.NewServer(t)
	c := newTestRESTClient(t, srv, nil)

	err := c.Cancel(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, errNoRunningQuery)
	assert.Empty(t, srv.Cancelled())
}
