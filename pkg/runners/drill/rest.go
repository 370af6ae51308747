package drill

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/leapstack-labs/queryrunner/pkg/runner"
	"golang.org/x/net/publicsuffix"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// errNoRunningQuery is returned by Cancel when no running query matches.
var errNoRunningQuery = errors.New("no running drill query matches")

// RESTClient talks to Drill's HTTP API.
type RESTClient struct {
	baseURL      string
	http         *http.Client
	username     string
	password     string
	probeTimeout time.Duration
	logger       *slog.Logger

	loginOnce sync.Once
	loginErr  error
}

// NewRESTClient creates a REST client for opts.
// If logger is nil, a discard logger is used.
func NewRESTClient(opts Options, logger *slog.Logger) (*RESTClient, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &RESTClient{
		baseURL:      opts.BaseURL(),
		http:         &http.Client{Jar: jar},
		username:     opts.Username,
		password:     opts.Password,
		probeTimeout: DefaultProbeTimeout,
		logger:       logger,
	}, nil
}

// newRESTClient adapts NewRESTClient to ClientFactory.
func newRESTClient(opts Options, logger *slog.Logger) (Client, error) {
	return NewRESTClient(opts, logger)
}

// IsActive issues HEAD / and reports whether Drill answered 200.
func (c *RESTClient) IsActive(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("drill liveness probe failed", slog.String("url", c.baseURL), slog.String("error", err.Error()))
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type queryRequest struct {
	QueryType string `json:"queryType"`
	Query     string `json:"query"`
}

// queryResponse is the body of POST /query.json.
type queryResponse struct {
	QueryID      string           `json:"queryId"`
	Columns      []string         `json:"columns"`
	Metadata     []string         `json:"metadata"`
	Rows         []map[string]any `json:"rows"`
	QueryState   string           `json:"queryState"`
	ErrorMessage string           `json:"errorMessage"`
}

// QueryError is a failure reported by the Drill server.
type QueryError struct {
	StatusCode int
	State      string
	Message    string
}

func (e *QueryError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "drill query failed"
	}
	if e.State != "" && e.StatusCode/100 == 2 {
		return fmt.Sprintf("%s (state %s)", msg, e.State)
	}
	return msg
}

// Query posts the query to /query.json and decodes the complete result.
func (c *RESTClient) Query(ctx context.Context, query string) (*Result, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(queryRequest{QueryType: "SQL", Query: query})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query.json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit query: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		return nil, readQueryError(resp)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var qr queryResponse
	if err := dec.Decode(&qr); err != nil {
		return nil, fmt.Errorf("failed to decode drill response: %w", err)
	}

	switch strings.ToUpper(qr.QueryState) {
	case "FAILED", "CANCELED", "CANCELLED":
		return nil, &QueryError{StatusCode: resp.StatusCode, State: qr.QueryState, Message: qr.ErrorMessage}
	}
	if qr.ErrorMessage != "" && len(qr.Rows) == 0 && len(qr.Columns) == 0 {
		return nil, &QueryError{StatusCode: resp.StatusCode, State: qr.QueryState, Message: qr.ErrorMessage}
	}

	for _, row := range qr.Rows {
		for k, v := range row {
			row[k] = runner.ResolveNumbers(v)
		}
	}

	return &Result{
		QueryID: qr.QueryID,
		Columns: qr.Columns,
		Types:   qr.Metadata,
		Rows:    qr.Rows,
	}, nil
}

func readQueryError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	qe := &QueryError{StatusCode: resp.StatusCode}

	var payload struct {
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.ErrorMessage != "" {
		qe.Message = payload.ErrorMessage
	} else if text := strings.TrimSpace(string(raw)); text != "" {
		qe.Message = fmt.Sprintf("drill returned %s: %s", resp.Status, text)
	} else {
		qe.Message = fmt.Sprintf("drill returned %s", resp.Status)
	}
	return qe
}

// ensureLogin performs Drill form authentication once per client.
func (c *RESTClient) ensureLogin(ctx context.Context) error {
	if c.username == "" {
		return nil
	}
	c.loginOnce.Do(func() {
		form := url.Values{}
		form.Set("j_username", c.username)
		form.Set("j_password", c.password)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/j_security_check", strings.NewReader(form.Encode()))
		if err != nil {
			c.loginErr = fmt.Errorf("failed to build login request: %w", err)
			return
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.http.Do(req)
		if err != nil {
			c.loginErr = fmt.Errorf("failed to log in to drill: %w", err)
			return
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= 400 {
			c.loginErr = fmt.Errorf("drill login rejected for user %q: %s", c.username, resp.Status)
		}
	})
	return c.loginErr
}

type profilesResponse struct {
	RunningQueries []struct {
		QueryID string `json:"queryId"`
		Query   string `json:"query"`
	} `json:"runningQueries"`
}

// Cancel looks for a running query with the same text and asks Drill to
// cancel it. Matching by text is best-effort: the synchronous REST API
// does not return a query ID until the query finishes.
func (c *RESTClient) Cancel(ctx context.Context, query string) error {
	if err := c.ensureLogin(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/profiles.json", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to list drill profiles: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode/100 != 2 {
		return readQueryError(resp)
	}

	var profiles profilesResponse
	if err := json.NewDecoder(resp.Body).Decode(&profiles); err != nil {
		return fmt.Errorf("failed to decode drill profiles: %w", err)
	}

	want := strings.TrimSpace(query)
	for _, rq := range profiles.RunningQueries {
		if strings.TrimSpace(rq.Query) != want {
			continue
		}
		if err := c.cancelByID(ctx, rq.QueryID); err != nil {
			return err
		}
		c.logger.Debug("cancelled drill query", slog.String("query_id", rq.QueryID))
		return nil
	}
	return errNoRunningQuery
}

func (c *RESTClient) cancelByID(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/profiles/cancel/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to cancel drill query %s: %w", id, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode/100 != 2 {
		return readQueryError(resp)
	}
	return nil
}

// Close releases idle connections.
func (c *RESTClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

var (
	_ Client   = (*RESTClient)(nil)
	_ Canceler = (*RESTClient)(nil)
)
