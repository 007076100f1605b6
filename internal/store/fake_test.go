package store

import (
	"context"
	"errors"
	"sync"

	"github.com/idilsaglam/tasklist/internal/model"
	"github.com/idilsaglam/tasklist/internal/remote"
)

var errBoom = errors.New("boom")

type listCall struct{ limit, skip int }

// fakeRemote serves slices of todos and records calls. Set fail[op] to make
// an operation fail; set gate to hold mutations until the test releases them.
// failID and holdID do the same for mutations of a single id.
type fakeRemote struct {
	mu      sync.Mutex
	todos   []model.Todo
	total   int // reported total; len(todos) when 0
	fail    map[string]error
	failID  map[int]error
	holdID  map[int]chan struct{}
	gate    chan struct{}
	started chan string
	onList  func(ctx context.Context, c listCall) error
	lists   []listCall
	calls   []string
}

func newFake(todos ...model.Todo) *fakeRemote {
	return &fakeRemote{
		todos:  todos,
		fail:   map[string]error{},
		failID: map[int]error{},
		holdID: map[int]chan struct{}{},
	}
}

func (f *fakeRemote) record(op string, id int) (chan struct{}, chan string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	gate, err := f.gate, f.fail[op]
	if hold, ok := f.holdID[id]; ok {
		gate = hold
	}
	if err == nil {
		err = f.failID[id]
	}
	return gate, f.started, err
}

func (f *fakeRemote) mutate(ctx context.Context, op string, id int) error {
	gate, started, err := f.record(op, id)
	if started != nil {
		started <- op
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeRemote) List(ctx context.Context, limit, skip int) (remote.Page, error) {
	f.mu.Lock()
	c := listCall{limit, skip}
	f.lists = append(f.lists, c)
	hook := f.onList
	err := f.fail["list"]
	f.mu.Unlock()

	if hook != nil {
		if herr := hook(ctx, c); herr != nil {
			return remote.Page{}, herr
		}
	}
	if err != nil {
		return remote.Page{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	total := f.total
	if total == 0 {
		total = len(f.todos)
	}
	end := min(skip+limit, len(f.todos))
	var page []model.Todo
	if skip < end {
		page = append(page, f.todos[skip:end]...)
	}
	return remote.Page{Todos: page, Total: total, Skip: skip, Limit: limit}, nil
}

func (f *fakeRemote) Add(ctx context.Context, t model.Todo) error { return f.mutate(ctx, "add", t.ID) }

func (f *fakeRemote) SetCompleted(ctx context.Context, id int, completed bool) error {
	return f.mutate(ctx, "toggle", id)
}

func (f *fakeRemote) SetText(ctx context.Context, id int, text string) error {
	return f.mutate(ctx, "rename", id)
}

func (f *fakeRemote) Delete(ctx context.Context, id int) error { return f.mutate(ctx, "delete", id) }

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRemote) listCalls() []listCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]listCall(nil), f.lists...)
}

func todos(texts ...string) []model.Todo {
	out := make([]model.Todo, len(texts))
	for i, s := range texts {
		out[i] = model.Todo{ID: i + 1, Text: s, OwnerID: 1}
	}
	return out
}
