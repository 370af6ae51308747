package drilltest

import (
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postQuery(t *testing.T, srv *Server, query string) (*http.Response, error) {
	t.Helper()
	body := `{"queryType":"SQL","query":"` + query + `"}`
	return http.Post(srv.URL+"/query.json", "application/json", strings.NewReader(body)) //nolint:gosec,noctx // test server URL
}

func TestServer_BlockQueriesUnreadStarted(t *testing.T) {
	srv := NewServer(t)
	started := srv.BlockQueries()

	// More blocked queries than the started channel buffers.
	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := postQuery(t, srv, "SELECT 1")
			if err == nil {
				_ = resp.Body.Close()
			}
		}()
	}

	// The server stays usable while started is unread.
	require.Eventually(t, func() bool { return len(srv.Queries()) == n }, 5*time.Second, 10*time.Millisecond)

	ids := make([]string, 0, n)
	for range n {
		select {
		case id := <-started:
			ids = append(ids, id)
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of %d queries reported as started", len(ids), n)
		}
	}

	for _, id := range ids {
		resp, err := http.Get(srv.URL + "/profiles/cancel/" + id) //nolint:gosec,noctx // test server URL
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	wg.Wait()

	assert.ElementsMatch(t, ids, srv.Cancelled())
}
