// Package drilltest provides a fake Apache Drill REST server for tests.
package drilltest

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/sessions"
)

const sessionCookie = "JSESSIONID"

// sessionKey signs the fake server's session cookies.
var sessionKey = []byte("drilltest-session-authentication")

// Response is a canned reply to POST /query.json.
type Response struct {
	// Status defaults to 200.
	Status       int
	QueryID      string
	Columns      []string
	Metadata     []string
	Rows         []map[string]any
	QueryState   string
	ErrorMessage string
	// Body, when set, is written verbatim instead of the JSON encoding.
	Body string
}

type runningQuery struct {
	id     string
	query  string
	cancel chan struct{}
}

// Server is an in-process Drill REST endpoint.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	active    bool
	responses map[string]Response
	queries   []string
	cancelled []string
	username  string
	password  string
	sessions  *sessions.CookieStore
	block     bool
	started   chan string
	running   []*runningQuery
	nextID    int
	release   chan struct{}
}

// NewServer starts a fake Drill server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		active:    true,
		responses: make(map[string]Response),
		release:   make(chan struct{}),
		sessions:  sessions.NewCookieStore(sessionKey),
	}

	r := chi.NewRouter()
	r.Head("/", s.handleRoot)
	r.Get("/", s.handleRoot)
	r.Post("/query.json", s.handleQuery)
	r.Get("/profiles.json", s.handleProfiles)
	r.Get("/profiles/cancel/{queryID}", s.handleCancel)
	r.Post("/j_security_check", s.handleLogin)

	s.Server = httptest.NewServer(r)
	t.Cleanup(func() {
		close(s.release)
		s.Close()
	})
	return s
}

// Options returns a data source configuration pointing at the server.
func (s *Server) Options() map[string]any {
	u, _ := url.Parse(s.URL)
	host, port, _ := net.SplitHostPort(u.Host)
	return map[string]any{"host": host, "port": port}
}

// SetActive controls whether HEAD / answers 200 or 503.
func (s *Server) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

// Handle registers the reply for a query. Queries are matched after
// trimming surrounding whitespace.
func (s *Server) Handle(query string, resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[strings.TrimSpace(query)] = resp
}

// RequireLogin enables form authentication with the given credentials.
func (s *Server) RequireLogin(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.password = password
}

// BlockQueries makes every subsequent query hang until it is cancelled
// through /profiles/cancel or the test ends. The returned channel receives
// the ID of each query once it is running.
func (s *Server) BlockQueries() <-chan string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block = true
	s.started = make(chan string, 16)
	return s.started
}

// Queries returns the query texts received, in order.
func (s *Server) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// Cancelled returns the IDs of queries cancelled through the API.
func (s *Server) Cancelled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cancelled...)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()

	if !active {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) authorized(r *http.Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.username == "" {
		return true
	}
	sess, err := s.sessions.Get(r, sessionCookie)
	if err != nil {
		return false
	}
	user, _ := sess.Values["user"].(string)
	return user == s.username
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	ok := s.username != "" && r.PostForm.Get("j_username") == s.username && r.PostForm.Get("j_password") == s.password
	username := s.username
	s.mu.Unlock()

	if !ok {
		http.Error(w, "Invalid username/password credentials.", http.StatusUnauthorized)
		return
	}

	// A fresh session is issued on every login.
	sess, _ := s.sessions.New(r, sessionCookie)
	sess.Values["user"] = username
	if err := sess.Save(r, w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		QueryType string `json:"queryType"`
		Query     string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errorMessage": "invalid request: " + err.Error()})
		return
	}
	if req.QueryType != "SQL" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errorMessage": "unsupported queryType " + req.QueryType})
		return
	}

	s.mu.Lock()
	s.queries = append(s.queries, req.Query)
	s.nextID++
	id := "query-" + strconv.Itoa(s.nextID)
	resp, known := s.responses[strings.TrimSpace(req.Query)]
	var rq *runningQuery
	started := s.started
	if s.block {
		rq = &runningQuery{id: id, query: req.Query, cancel: make(chan struct{})}
		s.running = append(s.running, rq)
	}
	s.mu.Unlock()

	if rq != nil {
		// Reported without holding mu so an unread channel only stalls this query.
		select {
		case started <- id:
		case <-r.Context().Done():
		case <-s.release:
		}

		// Stays listed as running until cancelled, even if the client goes away.
		select {
		case <-rq.cancel:
			writeJSON(w, http.StatusOK, map[string]any{"queryId": id, "queryState": "CANCELED", "errorMessage": "Query cancelled"})
		case <-r.Context().Done():
		case <-s.release:
		}
		return
	}

	if !known {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"errorMessage": "VALIDATION ERROR: no handler for query",
		})
		return
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	if resp.Body != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp.Body))
		return
	}

	queryID := resp.QueryID
	if queryID == "" {
		queryID = id
	}
	state := resp.QueryState
	if state == "" {
		state = "COMPLETED"
	}
	body := map[string]any{
		"queryId":    queryID,
		"queryState": state,
	}
	if resp.Columns != nil {
		body["columns"] = resp.Columns
	}
	if resp.Metadata != nil {
		body["metadata"] = resp.Metadata
	}
	if resp.Rows != nil {
		body["rows"] = resp.Rows
	}
	if resp.ErrorMessage != "" {
		body["errorMessage"] = resp.ErrorMessage
	}
	writeJSON(w, status, body)
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	running := make([]map[string]any, 0, len(s.running))
	for _, rq := range s.running {
		running = append(running, map[string]any{"queryId": rq.id, "query": rq.query, "state": "RUNNING"})
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"runningQueries":  running,
		"finishedQueries": []any{},
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	id := chi.URLParam(r, "queryID")

	s.mu.Lock()
	var found *runningQuery
	for i, rq := range s.running {
		if rq.id == id {
			found = rq
			s.running = append(s.running[:i], s.running[i+1:]...)
			break
		}
	}
	if found != nil {
		s.cancelled = append(s.cancelled, id)
		close(found.cancel)
	}
	s.mu.Unlock()

	if found == nil {
		http.Error(w, "no such query "+id, http.StatusNotFound)
		return
	}
	_, _ = w.Write([]byte("Cancelled query " + id))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
