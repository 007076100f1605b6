package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/tasklist/internal/errs"
	"github.com/idilsaglam/tasklist/internal/model"
	"github.com/idilsaglam/tasklist/internal/remote"
	"github.com/idilsaglam/tasklist/internal/store"
)

func seed(n int) []model.Todo {
	out := make([]model.Todo, n)
	for i := range out {
		out[i] = model.Todo{ID: i + 1, Text: "task " + string(rune('a'+i)), OwnerID: 1}
	}
	return out
}

func startServer(t *testing.T, opts Options) (*Server, *remote.Client) {
	t.Helper()
	srv, err := New(opts)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	c, err := remote.New(remote.Options{BaseURL: ts.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return srv, c
}

func TestListPaging(t *testing.T) {
	_, c := startServer(t, Options{Seed: seed(5)})

	page, err := c.List(context.Background(), 2, 4)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Todos, 1)
	assert.Equal(t, 5, page.Todos[0].ID)

	page, err = c.List(context.Background(), 2, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Todos)
}

func TestListAllWhenLimitZero(t *testing.T) {
	srv, _ := startServer(t, Options{Seed: seed(3)})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/todos?limit=0", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body listResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Len(t, body.Todos, 3)
}

func TestBadRequests(t *testing.T) {
	srv, _ := startServer(t, Options{Seed: seed(1)})
	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"bad limit", http.MethodGet, "/todos?limit=x", "", http.StatusBadRequest},
		{"bad id", http.MethodDelete, "/todos/abc", "", http.StatusBadRequest},
		{"missing", http.MethodGet, "/todos/99", "", http.StatusNotFound},
		{"empty add", http.MethodPost, "/todos/add", `{"todo":""}`, http.StatusBadRequest},
		{"bad json", http.MethodPut, "/todos/1", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rr, httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestStoreAgainstServer(t *testing.T) {
	srv, c := startServer(t, Options{Seed: seed(3)})
	s := store.New(c, store.Options{PageSize: 10})
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))

	added, err := s.Add(ctx, "write docs")
	require.NoError(t, err)
	require.NoError(t, s.Toggle(ctx, 1))
	require.NoError(t, s.Rename(ctx, 2, "renamed"))
	require.NoError(t, s.Remove(ctx, 3))

	remoteTodos := srv.Todos()
	require.Len(t, remoteTodos, 3)
	assert.True(t, remoteTodos[0].Completed)
	assert.Equal(t, "renamed", remoteTodos[1].Text)
	assert.Equal(t, added.ID, remoteTodos[2].ID, "server keeps the client's temporary id")
	assert.Equal(t, remoteTodos, s.List())
}

func TestInjectedFailureRollsBackStore(t *testing.T) {
	srv, c := startServer(t, Options{Seed: seed(2), FailEvery: 1})
	s := store.New(c, store.Options{PageSize: 10})
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))
	before := s.List()

	err := s.Toggle(ctx, 1)
	require.Error(t, err)
	assert.Equal(t, errs.Status, errs.CodeOf(err))
	assert.Equal(t, http.StatusServiceUnavailable, errs.StatusOf(err))
	assert.Equal(t, before, s.List())
	assert.Equal(t, store.MsgToggle, s.Err())
	assert.Equal(t, seed(2), srv.Todos())
}

func TestDeleteUnknownIDRollsBack(t *testing.T) {
	srv, c := startServer(t, Options{Seed: seed(2)})
	s := store.New(c, store.Options{PageSize: 10})
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))

	// Someone else deleted id 2 behind our back.
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/todos/2", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	before := s.List()
	require.Error(t, s.Remove(ctx, 2))
	assert.Equal(t, before, s.List())
	assert.Equal(t, store.MsgDelete, s.Err())
}

func TestPersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todos.json")
	_, c := startServer(t, Options{DataFile: path, Seed: seed(1)})

	require.NoError(t, c.Add(context.Background(), model.Todo{Text: "persist me", OwnerID: 2}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk []model.Todo
	require.NoError(t, json.Unmarshal(b, &onDisk))
	require.Len(t, onDisk, 2)
	assert.Equal(t, model.Todo{ID: 2, Text: "persist me", OwnerID: 2}, onDisk[1])

	reopened, err := New(Options{DataFile: path, Seed: seed(5)})
	require.NoError(t, err)
	assert.Len(t, reopened.Todos(), 2, "existing file wins over seed")
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todos.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := New(Options{DataFile: path})
	assert.Error(t, err)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	srv, err := New(Options{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
