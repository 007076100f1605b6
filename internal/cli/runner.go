package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/idilsaglam/tasklist/internal/config"
	"github.com/idilsaglam/tasklist/internal/devserver"
	"github.com/idilsaglam/tasklist/internal/errs"
	"github.com/idilsaglam/tasklist/internal/logging"
	"github.com/idilsaglam/tasklist/internal/model"
	"github.com/idilsaglam/tasklist/internal/remote"
	"github.com/idilsaglam/tasklist/internal/store"
	"github.com/idilsaglam/tasklist/internal/tui"
	"github.com/idilsaglam/tasklist/internal/ui"
)

// Options carry the resolved config and where output goes.
type Options struct {
	Config *config.Config
	Logger *log.Logger
	Stdout io.Writer
	Stderr io.Writer
	// Remote replaces the HTTP client built from Config.
	Remote store.Remote
}

type runner struct {
	ctx    context.Context
	cfg    *config.Config
	logger *log.Logger
	out    io.Writer
	errOut io.Writer
	remote store.Remote
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(ctx context.Context, args []string, opt Options) int {
	r := &runner{
		ctx:    ctx,
		cfg:    opt.Config,
		logger: opt.Logger,
		out:    opt.Stdout,
		errOut: opt.Stderr,
		remote: opt.Remote,
	}
	if r.cfg == nil {
		r.cfg = config.Default()
	}
	if r.logger == nil {
		r.logger = logging.Discard()
	}
	if r.out == nil {
		r.out = io.Discard
	}
	if r.errOut == nil {
		r.errOut = io.Discard
	}

	if len(args) == 0 {
		PrintHelp(r.errOut)
		return 2
	}
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp(r.out)
		return 0
	case "ls":
		return r.doList(a)
	case "tui":
		return r.doTUI(a)
	case "add":
		return r.doAdd(a)
	case "done":
		return r.doToggle(a)
	case "rm":
		return r.doRemove(a)
	case "edit":
		return r.doEdit(a)
	case "serve":
		return r.doServe(a)
	}

	ui.Fail(r.errOut, "unknown subcommand: "+cmd)
	fmt.Fprintln(r.errOut)
	PrintHelp(r.errOut)
	return 2
}

func PrintHelp(w io.Writer) {
	fmt.Fprintf(w, `todo - a paginated task list for a remote todo API

Usage:
  todo [global flags] <subcommand> [flags] [args]

Subcommands:
  tui                          Interactive list (default)
  ls [--page N] [--search S]   List one page of tasks
  add <title...>               Add a new task
  done [--page N] <id>         Toggle done for the task with this id
  rm [--page N] <id>           Remove the task with this id
  edit [--page N] <id> <text>  Change the title of a task
  serve [--addr A] [--data F]  Run a local todo API backed by a JSON file
  help                         Show this help

Global flags:
  -config FILE   config file (default: tasklist.toml, then %s)
  -api URL       todo API base URL
  -limit N       page size
  -timeout D     per-request timeout, e.g. 5s
  -log-level L   debug, info, warn or error
  -log-file F    write logs to F
  -theme T       classic, neon or mono
  -group         group ls output by pending/done

Examples:
  todo add "Buy milk"
  todo ls --page 2
  todo done 3
  todo -api http://127.0.0.1:8080 tui
`, config.DefaultConfigDir())
}

// -------------- plumbing ----------------

func (r *runner) client() (store.Remote, error) {
	if r.remote != nil {
		return r.remote, nil
	}
	return remote.New(remote.Options{
		BaseURL:           r.cfg.APIURL,
		Timeout:           r.cfg.Timeout,
		RequestsPerSecond: r.cfg.RequestsPerSecond,
		Burst:             r.cfg.Burst,
		Logger:            r.logger,
	})
}

func (r *runner) newStore(page, limit int) (*store.Store, error) {
	c, err := r.client()
	if err != nil {
		return nil, err
	}
	return store.New(c, store.Options{
		PageSize: limit,
		Page:     page,
		OwnerID:  r.cfg.OwnerID,
		Logger:   r.logger,
	}), nil
}

// pageFlags binds --page and --limit on a subcommand flag set.
func (r *runner) pageFlags(name string) (*flag.FlagSet, *int, *int) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(r.errOut)
	page := fs.Int("page", 1, "page to load")
	limit := fs.Int("limit", r.cfg.PageSize, "page size")
	return fs, page, limit
}

// loadPage fetches one page. A failed fetch is reported and turned into
// an exit code.
func (r *runner) loadPage(page, limit int) (*store.Store, int) {
	if page < 1 || limit < 1 {
		ui.Fail(r.errOut, fmt.Sprintf("page and limit must be positive, got %d and %d", page, limit))
		return nil, 2
	}
	s, err := r.newStore(page, limit)
	if err != nil {
		return nil, r.fail("setup", err)
	}
	if err := s.Load(r.ctx); err != nil {
		return nil, r.fail("load", err)
	}
	return s, 0
}

// findOnPage loads the page and looks id up on it.
func (r *runner) findOnPage(page, limit int, arg string) (*store.Store, model.Todo, int) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		ui.Fail(r.errOut, "not a number: "+arg)
		return nil, model.Todo{}, 2
	}
	s, code := r.loadPage(page, limit)
	if code != 0 {
		return nil, model.Todo{}, code
	}
	t, ok := s.Find(id)
	if !ok {
		code := r.fail(arg, errs.New(errs.NotFound, fmt.Sprintf("no task with id %d on page %d", id, page)))
		ui.Hint(r.errOut, "Hint: run `todo ls --page N` to see the ids on a page")
		return nil, model.Todo{}, code
	}
	return s, t, 0
}

// fail reports err and maps it to an exit code: local input problems are
// usage errors, everything else is a runtime error.
func (r *runner) fail(what string, err error) int {
	ui.Fail(r.errOut, what+": "+err.Error())
	if errs.StatusOf(err) == http.StatusNotFound {
		ui.Hint(r.errOut, "Hint: the API does not know this task; it may not persist new tasks")
	}
	switch errs.CodeOf(err) {
	case errs.InvalidArgument, errs.NotFound:
		return 2
	}
	return 1
}

// -------------- subcommand impls ----------------

func (r *runner) doList(args []string) int {
	fs, page, limit := r.pageFlags("ls")
	search := fs.String("search", "", "only show tasks on the page containing this text")
	group := fs.Bool("group", r.cfg.Group, "group output by pending/done")
	if err := fs.Parse(args); err != nil {
		return usageCode(err)
	}
	s, code := r.loadPage(*page, *limit)
	if code != 0 {
		return code
	}
	s.SetSearchTerm(*search)
	st := s.Snapshot()

	th := ui.Current()
	d, _ := model.Stats(st.Todos)
	lines := []string{
		ui.Header(st.Todos, st.Total),
		th.Muted.Render(ui.ProgressBar(d, len(st.Todos), 28)),
		"",
	}
	switch {
	case len(st.Todos) == 0 && st.Search != "":
		lines = append(lines, th.Muted.Render(fmt.Sprintf("no tasks on this page match %q", st.Search)))
	case *group:
		lines = append(lines, ui.GroupLines(st.Todos)...)
	default:
		lines = append(lines, ui.FlatLines(st.Todos)...)
	}
	lines = append(lines, "")
	lines = append(lines, th.Muted.Render(fmt.Sprintf("page %d of %d", st.Page, ui.PageCount(st.Total, st.PageSize))))
	if st.CanNext {
		lines = append(lines, th.Muted.Render(fmt.Sprintf("Tip: next page with `todo ls --page %d`", st.Page+1)))
	}
	ui.Panel(r.out, lines)
	return 0
}

func (r *runner) doTUI(args []string) int {
	if len(args) != 0 {
		ui.Fail(r.errOut, "usage: todo tui")
		return 2
	}
	s, err := r.newStore(1, r.cfg.PageSize)
	if err != nil {
		return r.fail("setup", err)
	}
	defer s.Close()
	if err := tui.Run(r.ctx, s, tui.Options{PageSizes: config.PageSizes}); err != nil {
		return r.fail("tui", err)
	}
	return 0
}

func (r *runner) doAdd(args []string) int {
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		ui.Fail(r.errOut, "usage: todo add <title...>")
		return 2
	}
	s, err := r.newStore(1, r.cfg.PageSize)
	if err != nil {
		return r.fail("setup", err)
	}
	t, err := s.Add(r.ctx, title)
	if err != nil {
		return r.fail(store.MsgAdd, err)
	}
	ui.OK(r.out, fmt.Sprintf("added #%d", t.ID))
	return 0
}

func (r *runner) doToggle(args []string) int {
	fs, page, limit := r.pageFlags("done")
	if err := fs.Parse(args); err != nil {
		return usageCode(err)
	}
	if fs.NArg() != 1 {
		ui.Fail(r.errOut, "usage: todo done [--page N] <id>")
		return 2
	}
	s, t, code := r.findOnPage(*page, *limit, fs.Arg(0))
	if code != 0 {
		return code
	}
	if err := s.Toggle(r.ctx, t.ID); err != nil {
		return r.fail(store.MsgToggle, err)
	}
	if t.Completed {
		ui.OK(r.out, fmt.Sprintf("#%d marked pending", t.ID))
	} else {
		ui.OK(r.out, fmt.Sprintf("#%d marked done", t.ID))
	}
	return 0
}

func (r *runner) doRemove(args []string) int {
	fs, page, limit := r.pageFlags("rm")
	if err := fs.Parse(args); err != nil {
		return usageCode(err)
	}
	if fs.NArg() != 1 {
		ui.Fail(r.errOut, "usage: todo rm [--page N] <id>")
		return 2
	}
	s, t, code := r.findOnPage(*page, *limit, fs.Arg(0))
	if code != 0 {
		return code
	}
	if err := s.Remove(r.ctx, t.ID); err != nil {
		return r.fail(store.MsgDelete, err)
	}
	ui.OK(r.out, fmt.Sprintf("removed #%d", t.ID))
	return 0
}

func (r *runner) doEdit(args []string) int {
	fs, page, limit := r.pageFlags("edit")
	if err := fs.Parse(args); err != nil {
		return usageCode(err)
	}
	text := strings.TrimSpace(strings.Join(fs.Args()[min(1, fs.NArg()):], " "))
	if fs.NArg() < 2 || text == "" {
		ui.Fail(r.errOut, "usage: todo edit [--page N] <id> <text...>")
		return 2
	}
	s, t, code := r.findOnPage(*page, *limit, fs.Arg(0))
	if code != 0 {
		return code
	}
	if err := s.Rename(r.ctx, t.ID, text); err != nil {
		return r.fail(store.MsgRename, err)
	}
	ui.OK(r.out, fmt.Sprintf("renamed #%d", t.ID))
	return 0
}

func (r *runner) doServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(r.errOut)
	addr := fs.String("addr", "127.0.0.1:8080", "listen address")
	data := fs.String("data", "todos.json", "JSON file holding the todos; empty keeps them in memory")
	failEvery := fs.Int("fail-every", 0, "fail every Nth write with 503")
	if err := fs.Parse(args); err != nil {
		return usageCode(err)
	}
	if fs.NArg() != 0 {
		ui.Fail(r.errOut, "usage: todo serve [--addr A] [--data F] [--fail-every N]")
		return 2
	}

	srv, err := devserver.New(devserver.Options{
		DataFile:  *data,
		FailEvery: *failEvery,
		Logger:    r.logger,
	})
	if err != nil {
		return r.fail("serve", err)
	}
	ui.OK(r.out, "serving todos on http://"+*addr)
	if err := srv.ListenAndServe(r.ctx, *addr); err != nil {
		return r.fail("serve", err)
	}
	return 0
}

func usageCode(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	return 2
}
