package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/tasklist/internal/errs"
	"github.com/idilsaglam/tasklist/internal/model"
)

type recorded struct {
	Method    string
	Path      string
	Query     string
	Body      string
	RequestID string
}

// recorder answers every request with status/body and remembers what it saw.
type recorder struct {
	mu     sync.Mutex
	reqs   []recorded
	status int
	body   string
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	b, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.reqs = append(r.reqs, recorded{
		Method:    req.Method,
		Path:      req.URL.Path,
		Query:     req.URL.RawQuery,
		Body:      string(b),
		RequestID: req.Header.Get(RequestIDHeader),
	})
	status, body := r.status, r.body
	r.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (r *recorder) last(t *testing.T) recorded {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.reqs)
	return r.reqs[len(r.reqs)-1]
}

func newTestClient(t *testing.T, rec *recorder) *Client {
	t.Helper()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL + "/", Timeout: time.Second})
	require.NoError(t, err)
	return c
}

func TestList(t *testing.T) {
	rec := &recorder{status: 200, body: `{"todos":[{"id":1,"todo":"A","completed":false,"userId":7}],"total":31,"skip":10,"limit":10}`}
	c := newTestClient(t, rec)

	page, err := c.List(context.Background(), 10, 10)
	require.NoError(t, err)
	assert.Equal(t, []model.Todo{{ID: 1, Text: "A", OwnerID: 7}}, page.Todos)
	assert.Equal(t, 31, page.Total)

	got := rec.last(t)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/todos", got.Path)
	assert.Equal(t, "limit=10&skip=10", got.Query)
	assert.NotEmpty(t, got.RequestID)
}

func TestListEmptyTodos(t *testing.T) {
	c := newTestClient(t, &recorder{status: 200, body: `{"todos":[],"total":0}`})
	page, err := c.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, page.Todos)
	assert.Empty(t, page.Todos)
}

func TestListRejectsBadPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>`},
		{"missing total", `{"todos":[]}`},
		{"wrong type", `{"todos":[{"id":"one","todo":"A","completed":false}],"total":1}`},
		{"negative total", `{"todos":[],"total":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &recorder{status: 200, body: tt.body})
			_, err := c.List(context.Background(), 10, 0)
			require.Error(t, err)
			assert.Equal(t, errs.Decode, errs.CodeOf(err))
		})
	}
}

func TestNonSuccessStatusIsFailure(t *testing.T) {
	rec := &recorder{status: http.StatusNotFound, body: `{"message":"nope"}`}
	c := newTestClient(t, rec)
	ctx := context.Background()

	for name, call := range map[string]func() error{
		"list":   func() error { _, err := c.List(ctx, 5, 0); return err },
		"add":    func() error { return c.Add(ctx, model.Todo{ID: 1, Text: "x"}) },
		"toggle": func() error { return c.SetCompleted(ctx, 1, true) },
		"rename": func() error { return c.SetText(ctx, 1, "y") },
		"delete": func() error { return c.Delete(ctx, 1) },
	} {
		t.Run(name, func(t *testing.T) {
			err := call()
			require.Error(t, err)
			assert.Equal(t, errs.Status, errs.CodeOf(err))
			assert.Equal(t, http.StatusNotFound, errs.StatusOf(err))
			assert.Contains(t, err.Error(), "(nope)")
		})
	}
}

func TestNonSuccessWithoutMessage(t *testing.T) {
	rec := &recorder{status: http.StatusBadGateway, body: `<html>bad gateway</html>`}
	c := newTestClient(t, rec)

	err := c.Delete(context.Background(), 3)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, errs.StatusOf(err))
	assert.NotContains(t, err.Error(), "(")
}

func TestMutationsWireFormat(t *testing.T) {
	rec := &recorder{status: 200, body: `{}`}
	c := newTestClient(t, rec)
	ctx := context.Background()

	require.NoError(t, c.Add(ctx, model.Todo{ID: 42, Text: "Buy milk", OwnerID: 1}))
	got := rec.last(t)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/todos/add", got.Path)
	assert.JSONEq(t, `{"id":42,"todo":"Buy milk","completed":false,"userId":1}`, got.Body)

	require.NoError(t, c.SetCompleted(ctx, 42, true))
	got = rec.last(t)
	assert.Equal(t, http.MethodPut, got.Method)
	assert.Equal(t, "/todos/42", got.Path)
	assert.JSONEq(t, `{"completed":true}`, got.Body)

	require.NoError(t, c.SetText(ctx, 42, "Buy oat milk"))
	got = rec.last(t)
	assert.JSONEq(t, `{"todo":"Buy oat milk"}`, got.Body)

	require.NoError(t, c.Delete(ctx, 42))
	got = rec.last(t)
	assert.Equal(t, http.MethodDelete, got.Method)
	assert.Equal(t, "/todos/42", got.Path)
	assert.Empty(t, got.Body)
}

func TestBasePathIsKept(t *testing.T) {
	rec := &recorder{status: 200, body: `{"todos":[],"total":0}`}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL + "/api/v1"})
	require.NoError(t, err)
	_, err = c.List(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/todos", rec.last(t).Path)
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)
	err = c.Delete(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, errs.Transport, errs.CodeOf(err))
}

func TestTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c, err := New(Options{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	err = c.SetCompleted(context.Background(), 1, true)
	require.Error(t, err)
	assert.Equal(t, errs.Transport, errs.CodeOf(err))
}

func TestRateLimiterHonoursContext(t *testing.T) {
	rec := &recorder{status: 200, body: `{}`}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, RequestsPerSecond: 0.001, Burst: 1})
	require.NoError(t, err)
	require.NoError(t, c.Delete(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = c.Delete(ctx, 2)
	require.Error(t, err)
	assert.Equal(t, errs.Transport, errs.CodeOf(err))
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New(Options{BaseURL: "dummyjson.com"})
	assert.Error(t, err)
}

func TestPageJSONNames(t *testing.T) {
	b, err := json.Marshal(Page{Todos: []model.Todo{{ID: 1, Text: "A"}}, Total: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"todos":[{"id":1,"todo":"A","completed":false,"userId":0}],"total":1,"skip":0,"limit":0}`, string(b))
}
