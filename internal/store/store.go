// Package store owns the client-side state of the task list: the current
// page fetched from the remote service, pagination and search parameters,
// and the loading/error flags.
//
// Every mutation is optimistic. The change is applied locally, the remote
// call is issued, and on failure only the touched item is reverted and a
// human-readable error is recorded. The server response body is never
// reconciled into local state.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/idilsaglam/tasklist/internal/errs"
	"github.com/idilsaglam/tasklist/internal/logging"
	"github.com/idilsaglam/tasklist/internal/model"
	"github.com/idilsaglam/tasklist/internal/remote"
)

// Remote is the subset of the remote client the store needs.
type Remote interface {
	List(ctx context.Context, limit, skip int) (remote.Page, error)
	Add(ctx context.Context, t model.Todo) error
	SetCompleted(ctx context.Context, id int, completed bool) error
	SetText(ctx context.Context, id int, text string) error
	Delete(ctx context.Context, id int) error
}

// User-facing messages recorded on failure.
const (
	MsgFetch  = "Failed to fetch todos"
	MsgAdd    = "Failed to add todo."
	MsgDelete = "Failed to delete todo."
	MsgToggle = "Failed to toggle todo status."
	MsgRename = "Failed to edit todo title."
)

// Options configures a Store.
type Options struct {
	PageSize int
	OwnerID  int
	Logger   *log.Logger

	// Page is the page the first Load fetches. Defaults to 1.
	Page int

	// Now is used to derive temporary ids. Defaults to time.Now.
	Now func() time.Time
}

// State is a consistent copy of everything a view renders.
type State struct {
	Todos    []model.Todo // filtered current page
	Fetched  int          // items on the page before filtering
	Page     int
	PageSize int
	Total    int
	Search   string
	Loading  bool
	Err      string
	CanNext  bool
	CanPrev  bool
}

// Store is safe for concurrent use. Remote calls are made without holding
// the lock, so the UI can render optimistic state while they are in flight.
type Store struct {
	remote  Remote
	logger  *log.Logger
	now     func() time.Time
	ownerID int
	changes chan struct{}

	mu       sync.Mutex
	all      []model.Todo
	page     int
	pageSize int
	total    int
	search   string
	loading  bool
	lastErr  string
	lastID   int64
	gen      uint64
	epoch    uint64 // bumped each time a fetch replaces all
	cancel   context.CancelFunc
}

// New returns an empty Store on page 1, loading until the first Load
// settles. Call Load to fetch.
func New(r Remote, opts Options) *Store {
	size := opts.PageSize
	if size <= 0 {
		size = 10
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}
	owner := opts.OwnerID
	if owner == 0 {
		owner = 1
	}
	return &Store{
		remote:   r,
		logger:   logger,
		now:      now,
		ownerID:  owner,
		changes:  make(chan struct{}, 1),
		all:      []model.Todo{},
		page:     page,
		pageSize: size,
		loading:  true,
	}
}

// Changes fires after every state change. Notifications coalesce: a
// receiver that falls behind sees one pending signal, not one per change.
func (s *Store) Changes() <-chan struct{} { return s.changes }

func (s *Store) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// Load fetches the current page. Starting a new Load cancels the one in
// flight; a superseded Load returns nil without touching state.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.gen++
	gen := s.gen
	s.cancel = cancel
	limit, skip := s.pageSize, (s.page-1)*s.pageSize
	s.loading = true
	s.mu.Unlock()
	s.notify()

	page, err := s.remote.List(ctx, limit, skip)
	cancel()

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.logger.Debug("discarding stale page", "limit", limit, "skip", skip)
		return nil
	}
	s.cancel = nil
	s.loading = false
	if err != nil {
		s.lastErr = fmt.Sprintf("%s: %v", MsgFetch, err)
		s.mu.Unlock()
		s.logger.Warn("fetch failed", "limit", limit, "skip", skip, "err", err)
		s.notify()
		return err
	}
	s.all = append(make([]model.Todo, 0, len(page.Todos)), page.Todos...)
	s.epoch++
	s.total = page.Total
	s.lastErr = ""
	s.mu.Unlock()
	s.logger.Debug("fetched page", "limit", limit, "skip", skip, "count", len(page.Todos), "total", page.Total)
	s.notify()
	return nil
}

// Close cancels an in-flight Load.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// List returns the current page filtered by the search term.
func (s *Store) List() []model.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Filter(s.all, s.search)
}

// Find looks id up on the current page, ignoring the search term.
func (s *Store) Find(id int) (model.Todo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.all, id); i >= 0 {
		return s.all[i], true
	}
	return model.Todo{}, false
}

// Loading reports whether a page fetch is in flight. It is true from New
// until the first Load settles.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last error message, or "".
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ClearError dismisses the last error message.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
	s.notify()
}

// Snapshot copies the whole state under one lock.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Todos:    model.Filter(s.all, s.search),
		Fetched:  len(s.all),
		Page:     s.page,
		PageSize: s.pageSize,
		Total:    s.total,
		Search:   s.search,
		Loading:  s.loading,
		Err:      s.lastErr,
		CanNext:  s.canNextLocked(),
		CanPrev:  s.page > 1,
	}
}

// SetSearchTerm re-filters the already fetched page. It never queries the
// remote service, so matches are limited to the current page.
func (s *Store) SetSearchTerm(term string) {
	s.mu.Lock()
	s.search = term
	s.mu.Unlock()
	s.notify()
}

// Add creates a todo with a temporary id derived from the current time and
// posts it. The id is kept after the server confirms.
// Blank text is ignored and returns the zero Todo.
func (s *Store) Add(ctx context.Context, text string) (model.Todo, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Todo{}, nil
	}

	s.mu.Lock()
	t := model.Todo{ID: s.nextIDLocked(), Text: text, OwnerID: s.ownerID}
	s.all = append(s.all, t)
	epoch := s.epoch
	s.mu.Unlock()
	s.notify()

	if err := s.remote.Add(ctx, t); err != nil {
		s.mu.Lock()
		if i := indexOf(s.all, t.ID); i >= 0 && s.epoch == epoch {
			s.all = removeAt(s.all, i)
		}
		s.lastErr = MsgAdd
		s.mu.Unlock()
		s.logger.Warn("rolled back add", "id", t.ID, "err", err)
		s.notify()
		return model.Todo{}, err
	}
	return t, nil
}

// Remove deletes id locally, then remotely. On failure the item is put back
// at its old position, unless a fetch replaced the page in the meantime.
// Unknown ids are a no-op.
func (s *Store) Remove(ctx context.Context, id int) error {
	s.mu.Lock()
	i := indexOf(s.all, id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	removed := s.all[i]
	s.all = removeAt(s.all, i)
	epoch := s.epoch
	s.mu.Unlock()
	s.notify()

	if err := s.remote.Delete(ctx, id); err != nil {
		s.mu.Lock()
		if s.epoch == epoch && indexOf(s.all, id) < 0 {
			s.all = insertAt(s.all, i, removed)
		}
		s.lastErr = MsgDelete
		s.mu.Unlock()
		s.logger.Warn("rolled back delete", "id", id, "err", err)
		s.notify()
		return err
	}
	return nil
}

// Toggle flips the completed flag of id. Unknown ids are a no-op.
func (s *Store) Toggle(ctx context.Context, id int) error {
	s.mu.Lock()
	i := indexOf(s.all, id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	prev := s.all[i].Completed
	s.all[i].Completed = !prev
	epoch := s.epoch
	s.mu.Unlock()
	s.notify()

	if err := s.remote.SetCompleted(ctx, id, !prev); err != nil {
		s.mu.Lock()
		if i := indexOf(s.all, id); i >= 0 && s.epoch == epoch {
			s.all[i].Completed = prev
		}
		s.lastErr = MsgToggle
		s.mu.Unlock()
		s.logger.Warn("rolled back toggle", "id", id, "err", err)
		s.notify()
		return err
	}
	return nil
}

// Rename replaces the text of id. Blank text, an unchanged text and unknown
// ids are no-ops.
func (s *Store) Rename(ctx context.Context, id int, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	i := indexOf(s.all, id)
	if i < 0 || s.all[i].Text == text {
		s.mu.Unlock()
		return nil
	}
	prev := s.all[i].Text
	s.all[i].Text = text
	epoch := s.epoch
	s.mu.Unlock()
	s.notify()

	if err := s.remote.SetText(ctx, id, text); err != nil {
		s.mu.Lock()
		if i := indexOf(s.all, id); i >= 0 && s.epoch == epoch {
			s.all[i].Text = prev
		}
		s.lastErr = MsgRename
		s.mu.Unlock()
		s.logger.Warn("rolled back rename", "id", id, "err", err)
		s.notify()
		return err
	}
	return nil
}

// CanNext reports whether another page exists after the current one.
func (s *Store) CanNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canNextLocked()
}

// CanPrev reports whether the current page is past the first.
func (s *Store) CanPrev() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page > 1
}

func (s *Store) canNextLocked() bool {
	return s.page*s.pageSize < s.total
}

// NextPage advances and fetches, unless page*pageSize >= total.
func (s *Store) NextPage(ctx context.Context) error {
	s.mu.Lock()
	if !s.canNextLocked() {
		s.mu.Unlock()
		return nil
	}
	s.page++
	s.mu.Unlock()
	return s.Load(ctx)
}

// PrevPage goes back and fetches, unless already on page 1.
func (s *Store) PrevPage(ctx context.Context) error {
	s.mu.Lock()
	if s.page <= 1 {
		s.mu.Unlock()
		return nil
	}
	s.page--
	s.mu.Unlock()
	return s.Load(ctx)
}

// SetPage jumps to page n (clamped to >= 1) and fetches if it changed.
func (s *Store) SetPage(ctx context.Context, n int) error {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	if n == s.page {
		s.mu.Unlock()
		return nil
	}
	s.page = n
	s.mu.Unlock()
	return s.Load(ctx)
}

// SetPageSize changes the page size and resets to page 1. It fetches only
// when either value actually changed.
func (s *Store) SetPageSize(ctx context.Context, n int) error {
	if n <= 0 {
		return errs.New(errs.InvalidArgument, fmt.Sprintf("page size must be > 0, got %d", n))
	}
	s.mu.Lock()
	changed := n != s.pageSize || s.page != 1
	s.pageSize = n
	s.page = 1
	s.mu.Unlock()
	if !changed {
		return nil
	}
	return s.Load(ctx)
}

// nextIDLocked returns the current unix millisecond, bumped past the last
// id handed out so two adds in the same millisecond stay distinct.
func (s *Store) nextIDLocked() int {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return int(id)
}

func indexOf(todos []model.Todo, id int) int {
	for i, t := range todos {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func removeAt(todos []model.Todo, i int) []model.Todo {
	out := make([]model.Todo, 0, len(todos)-1)
	out = append(out, todos[:i]...)
	return append(out, todos[i+1:]...)
}

func insertAt(todos []model.Todo, i int, t model.Todo) []model.Todo {
	if i > len(todos) {
		i = len(todos)
	}
	out := make([]model.Todo, 0, len(todos)+1)
	out = append(out, todos[:i]...)
	out = append(out, t)
	return append(out, todos[i:]...)
}
