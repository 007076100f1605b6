// Package devserver is a local stand-in for the remote todo service. It
// speaks the same JSON contract as the real API and keeps its data in a
// JSON file, which makes the client usable without network access.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/felixge/httpsnoop"

	"github.com/idilsaglam/tasklist/internal/logging"
	"github.com/idilsaglam/tasklist/internal/model"
)

// Options configures a Server.
type Options struct {
	// DataFile is the JSON file backing the collection. Empty means memory only.
	DataFile string
	// Seed is used when DataFile is empty or does not exist yet.
	Seed []model.Todo
	// FailEvery makes every Nth mutating request fail with 503. 0 disables.
	FailEvery int
	Logger    *log.Logger
}

// Server holds the collection. It is safe for concurrent use.
type Server struct {
	store     fileStore
	failEvery int
	logger    *log.Logger

	mu        sync.Mutex
	todos     []model.Todo
	mutations int
}

// New loads the data file, falling back to opts.Seed when it is empty.
func New(opts Options) (*Server, error) {
	fs := fileStore{path: opts.DataFile}
	todos, err := fs.load()
	if err != nil {
		return nil, err
	}
	if len(todos) == 0 && len(opts.Seed) > 0 {
		todos = append(todos, opts.Seed...)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		store:     fs,
		failEvery: opts.FailEvery,
		logger:    logger,
		todos:     todos,
	}, nil
}

// Todos returns a copy of the collection.
func (s *Server) Todos() []model.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Todo(nil), s.todos...)
}

// Handler routes the todo API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /todos", s.handleList)
	mux.HandleFunc("GET /todos/{id}", s.handleGet)
	mux.HandleFunc("POST /todos/add", s.handleAdd)
	mux.HandleFunc("PUT /todos/{id}", s.handleUpdate)
	mux.HandleFunc("PATCH /todos/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /todos/{id}", s.handleDelete)
	return s.logRequests(mux)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("serving todos", "addr", ln.Addr().String(), "file", s.store.path)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type listResponse struct {
	Todos []model.Todo `json:"todos"`
	Total int          `json:"total"`
	Skip  int          `json:"skip"`
	Limit int          `json:"limit"`
}

type deletedTodo struct {
	model.Todo
	IsDeleted bool      `json:"isDeleted"`
	DeletedOn time.Time `json:"deletedOn"`
}

// handleList treats limit=0 as "everything from skip on".
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 30)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	total := len(s.todos)
	start := min(skip, total)
	end := total
	if limit > 0 {
		end = min(start+limit, total)
	}
	page := append([]model.Todo{}, s.todos[start:end]...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, listResponse{Todos: page, Total: total, Skip: skip, Limit: len(page)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	i := s.indexLocked(id)
	var t model.Todo
	if i >= 0 {
		t = s.todos[i]
	}
	s.mu.Unlock()
	if i < 0 {
		writeNotFound(w, id)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var in model.Todo
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Text == "" {
		writeError(w, http.StatusBadRequest, "Todo is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shouldFailLocked() {
		writeError(w, http.StatusServiceUnavailable, "injected failure")
		return
	}
	if in.ID <= 0 || s.indexLocked(in.ID) >= 0 {
		in.ID = s.nextIDLocked()
	}
	s.todos = append(s.todos, in)
	if err := s.persistLocked(); err != nil {
		s.todos = s.todos[:len(s.todos)-1]
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, in)
}

// handleUpdate applies whichever of todo/completed/userId the body carries.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch struct {
		Text      *string `json:"todo"`
		Completed *bool   `json:"completed"`
		OwnerID   *int    `json:"userId"`
	}
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shouldFailLocked() {
		writeError(w, http.StatusServiceUnavailable, "injected failure")
		return
	}
	i := s.indexLocked(id)
	if i < 0 {
		writeNotFound(w, id)
		return
	}
	prev := s.todos[i]
	if patch.Text != nil {
		s.todos[i].Text = *patch.Text
	}
	if patch.Completed != nil {
		s.todos[i].Completed = *patch.Completed
	}
	if patch.OwnerID != nil {
		s.todos[i].OwnerID = *patch.OwnerID
	}
	if err := s.persistLocked(); err != nil {
		s.todos[i] = prev
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.todos[i])
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shouldFailLocked() {
		writeError(w, http.StatusServiceUnavailable, "injected failure")
		return
	}
	i := s.indexLocked(id)
	if i < 0 {
		writeNotFound(w, id)
		return
	}
	removed := s.todos[i]
	prev := s.todos
	s.todos = append(append([]model.Todo{}, s.todos[:i]...), s.todos[i+1:]...)
	if err := s.persistLocked(); err != nil {
		s.todos = prev
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, deletedTodo{Todo: removed, IsDeleted: true, DeletedOn: time.Now().UTC()})
}

func (s *Server) shouldFailLocked() bool {
	if s.failEvery <= 0 {
		return false
	}
	s.mutations++
	return s.mutations%s.failEvery == 0
}

func (s *Server) indexLocked(id int) int {
	for i, t := range s.todos {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) nextIDLocked() int {
	top := 0
	for _, t := range s.todos {
		if t.ID > top {
			top = t.ID
		}
	}
	return top + 1
}

func (s *Server) persistLocked() error {
	if err := s.store.save(s.todos); err != nil {
		s.logger.Error("persist failed", "err", err)
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.logger.Info("request",
			"method", r.Method, "path", r.URL.Path, "status", m.Code, "bytes", m.Written,
			"request_id", r.Header.Get("X-Request-Id"), "took", m.Duration.Round(time.Microsecond))
	})
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, v)
	}
	return n, nil
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.PathValue("id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid todo id '%s'", raw))
		return 0, false
	}
	return id, true
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func writeNotFound(w http.ResponseWriter, id int) {
	writeError(w, http.StatusNotFound, fmt.Sprintf("Todo with id '%d' not found", id))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
