// Package tui is the interactive task list: a Bubble Tea program that
// renders the store's current page and turns key presses into store
// operations. Components keep only UI state (mode, input text); all data
// lives in the store.
package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/idilsaglam/tasklist/internal/model"
	"github.com/idilsaglam/tasklist/internal/store"
	"github.com/idilsaglam/tasklist/internal/ui"
)

// Options tunes the interactive list.
type Options struct {
	// PageSizes are cycled with +/-. Must be ascending.
	PageSizes []int
}

type mode int

const (
	modeBrowse mode = iota
	modeSearch
	modeAdd
	modeEdit
)

const errEmptyTitle = "Title cannot be empty"

// changedMsg means the store state moved; re-read it.
type changedMsg struct{}

// opDoneMsg reports a finished store operation. Failures are already
// recorded in the store, so the error is informational.
type opDoneMsg struct {
	op  string
	err error
}

// Model is the root Bubble Tea model.
type Model struct {
	ctx   context.Context
	store *store.Store
	state store.State
	keys  keyMap

	list    list.Model
	search  textinput.Model
	input   textinput.Model // shared by add and edit
	spinner spinner.Model
	help    help.Model

	pageSizes []int
	mode      mode
	editID    int
	inputErr  string
	width     int
	height    int
}

// New builds the model. Nothing is fetched until Init runs.
func New(ctx context.Context, s *store.Store, opts Options) Model {
	sizes := opts.PageSizes
	if len(sizes) == 0 {
		sizes = []int{5, 10, 20, 50}
	}

	l := list.New(nil, itemDelegate{}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "search this page..."
	search.CharLimit = 100

	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 200

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = ui.Current().Accent

	h := help.New()
	h.Styles.ShortKey = ui.Current().Help
	h.Styles.ShortDesc = ui.Current().Help

	m := Model{
		ctx:       ctx,
		store:     s,
		keys:      defaultKeyMap(),
		list:      l,
		search:    search,
		input:     input,
		spinner:   sp,
		help:      h,
		pageSizes: sizes,
		width:     80,
		height:    24,
	}
	m.list.SetSize(m.listSize())
	m.sync()
	return m
}

// Run starts the program and blocks until the user quits or ctx ends.
func Run(ctx context.Context, s *store.Store, opts Options) error {
	p := tea.NewProgram(New(ctx, s, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.run("load", m.store.Load), m.waitForChange(), m.spinner.Tick)
}

func (m Model) run(op string, f func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: f(ctx)}
	}
}

func (m Model) waitForChange() tea.Cmd {
	ch, ctx := m.store.Changes(), m.ctx
	return func() tea.Msg {
		select {
		case <-ch:
			return changedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

// sync copies the store state into the model and the list widget.
func (m *Model) sync() {
	m.state = m.store.Snapshot()
	items := make([]list.Item, 0, len(m.state.Todos))
	for _, t := range m.state.Todos {
		items = append(items, todoItem{t})
	}
	m.list.SetItems(items)
	if n := len(items); n > 0 && m.list.Index() >= n {
		m.list.Select(n - 1)
	}
	if m.mode == modeEdit && !slices.ContainsFunc(m.state.Todos, func(t model.Todo) bool { return t.ID == m.editID }) {
		m.leaveInput()
	}
}

func (m Model) selected() (model.Todo, bool) {
	it, ok := m.list.SelectedItem().(todoItem)
	return it.Todo, ok
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(m.listSize())
		return m, nil
	case changedMsg:
		m.sync()
		return m, m.waitForChange()
	case opDoneMsg:
		m.sync()
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeAdd:
			return m.updateAdd(msg)
		case modeEdit:
			return m.updateEdit(msg)
		}
		return m.updateBrowse(msg)
	}

	var cmd tea.Cmd
	switch m.mode {
	case modeSearch:
		m.search, cmd = m.search.Update(msg)
	case modeAdd, modeEdit:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.store
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Toggle):
		if t, ok := m.selected(); ok {
			return m, m.run("toggle", func(ctx context.Context) error { return s.Toggle(ctx, t.ID) })
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if t, ok := m.selected(); ok {
			return m, m.run("delete", func(ctx context.Context) error { return s.Remove(ctx, t.ID) })
		}
		return m, nil

	case key.Matches(msg, m.keys.Add):
		m.mode = modeAdd
		m.inputErr = ""
		m.input.SetValue("")
		m.input.Placeholder = "New item title..."
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Edit):
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.mode = modeEdit
		m.editID = t.ID
		m.inputErr = ""
		m.input.SetValue(t.Text)
		m.input.CursorEnd()
		m.input.Placeholder = "Edit item title..."
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Search):
		m.mode = modeSearch
		m.search.SetValue(m.state.Search)
		m.search.CursorEnd()
		return m, m.search.Focus()

	case key.Matches(msg, m.keys.PrevPage):
		if m.state.CanPrev {
			return m, m.run("prev", s.PrevPage)
		}
		return m, nil

	case key.Matches(msg, m.keys.NextPage):
		if m.state.CanNext {
			return m, m.run("next", s.NextPage)
		}
		return m, nil

	case key.Matches(msg, m.keys.First):
		if m.state.CanPrev {
			return m, m.run("first", func(ctx context.Context) error { return s.SetPage(ctx, 1) })
		}
		return m, nil

	case key.Matches(msg, m.keys.Bigger), key.Matches(msg, m.keys.Smaller):
		step := 1
		if key.Matches(msg, m.keys.Smaller) {
			step = -1
		}
		n := stepPageSize(m.pageSizes, m.state.PageSize, step)
		if n == m.state.PageSize {
			return m, nil
		}
		return m, m.run("page size", func(ctx context.Context) error { return s.SetPageSize(ctx, n) })

	case key.Matches(msg, m.keys.Reload):
		return m, m.run("load", s.Load)

	case key.Matches(msg, m.keys.Dismiss):
		s.ClearError()
		m.sync()
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.mode = modeBrowse
		m.search.Blur()
		return m, nil
	case tea.KeyEsc:
		m.mode = modeBrowse
		m.search.Blur()
		m.search.SetValue("")
		m.store.SetSearchTerm("")
		m.sync()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if v := m.search.Value(); v != m.state.Search {
		m.store.SetSearchTerm(v)
		m.sync()
	}
	return m, cmd
}

func (m Model) updateAdd(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		title := strings.TrimSpace(m.input.Value())
		if title == "" {
			m.inputErr = errEmptyTitle
			return m, nil
		}
		m.leaveInput()
		s := m.store
		return m, m.run("add", func(ctx context.Context) error {
			_, err := s.Add(ctx, title)
			return err
		})
	case tea.KeyEsc:
		m.leaveInput()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// updateEdit commits on Enter and on blur (Tab, or moving to another row);
// Esc discards.
func (m Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyEnter:
		if strings.TrimSpace(m.input.Value()) == "" {
			m.inputErr = errEmptyTitle
			return m, nil
		}
		return m.commitEdit()
	case msg.Type == tea.KeyTab:
		return m.commitEdit()
	case msg.Type == tea.KeyUp, msg.Type == tea.KeyDown:
		next, commit := m.commitEdit()
		nm := next.(Model)
		var move tea.Cmd
		nm.list, move = nm.list.Update(msg)
		return nm, tea.Batch(commit, move)
	case msg.Type == tea.KeyEsc:
		m.leaveInput()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) commitEdit() (tea.Model, tea.Cmd) {
	id, text := m.editID, m.input.Value()
	m.leaveInput()
	if strings.TrimSpace(text) == "" {
		return m, nil
	}
	s := m.store
	return m, m.run("rename", func(ctx context.Context) error { return s.Rename(ctx, id, text) })
}

func (m *Model) leaveInput() {
	m.mode = modeBrowse
	m.editID = 0
	m.inputErr = ""
	m.input.SetValue("")
	m.input.Blur()
}

// stepPageSize moves to the neighbouring size in sizes. A current size
// not in sizes snaps to the nearest one in the step direction.
func stepPageSize(sizes []int, current, step int) int {
	if step > 0 {
		for _, n := range sizes {
			if n > current {
				return n
			}
		}
		return current
	}
	for i := len(sizes) - 1; i >= 0; i-- {
		if sizes[i] < current {
			return sizes[i]
		}
	}
	return current
}

func (m Model) View() string {
	th := ui.Current()
	st := m.state
	var b strings.Builder

	b.WriteString(ui.Header(st.Todos, st.Total))
	if st.Loading {
		b.WriteString("  " + m.spinner.View() + th.Muted.Render(" loading..."))
	}
	b.WriteString("\n")

	if st.Err != "" {
		b.WriteString(th.Error.Render(th.SymFail+" "+st.Err) + th.Muted.Render("  (x to dismiss)") + "\n")
	}
	if m.mode == modeSearch {
		b.WriteString(m.search.View() + "\n")
	} else if st.Search != "" {
		b.WriteString(th.Muted.Render(fmt.Sprintf("filter: %q (/ to change, esc in search to clear)", st.Search)) + "\n")
	}
	b.WriteString("\n")

	b.WriteString(m.listView())
	b.WriteString("\n\n")
	b.WriteString(m.pagerView())

	if m.mode == modeAdd {
		title := "Add new item"
		if m.inputErr != "" {
			title += " - " + th.Error.Render(m.inputErr)
		}
		bar := lipgloss.NewStyle().Border(th.Border).BorderForeground(th.BorderColor).Padding(0, 1)
		b.WriteString("\n" + bar.Render(title+"\n"+m.input.View()))
	}
	if m.mode == modeEdit && m.inputErr != "" {
		b.WriteString("\n" + th.Error.Render(m.inputErr))
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return ui.PanelString(b.String())
}

func (m Model) listView() string {
	st := m.state
	th := ui.Current()
	if len(st.Todos) == 0 {
		switch {
		case st.Loading && st.Fetched == 0:
			return th.Muted.Render("Loading tasks...")
		case st.Search != "":
			return th.Muted.Render(fmt.Sprintf("No tasks on this page match %q.", st.Search))
		default:
			return th.Muted.Render("No tasks yet. Press a to add one.")
		}
	}

	l := m.list
	l.SetSize(m.listSize())
	d := itemDelegate{}
	if m.mode == modeEdit {
		d.editingID = m.editID
		d.editor = m.input.View
	}
	l.SetDelegate(d)
	return l.View()
}

// listSize leaves room for the header, banners, pager and help.
func (m Model) listSize() (int, int) {
	reserved := 10
	if m.mode == modeAdd {
		reserved += 4
	}
	if m.help.ShowAll {
		reserved += 4
	}
	return max(m.width-6, 20), max(m.height-reserved, 3)
}

func (m Model) pagerView() string {
	st := m.state
	th := ui.Current()
	prev, next := "‹ prev", "next ›"
	if st.CanPrev {
		prev = th.Accent.Render(prev)
	} else {
		prev = th.Muted.Render(prev)
	}
	if st.CanNext {
		next = th.Accent.Render(next)
	} else {
		next = th.Muted.Render(next)
	}
	info := fmt.Sprintf("page %d of %d · %d per page", st.Page, ui.PageCount(st.Total, st.PageSize), st.PageSize)
	return prev + "  " + th.Muted.Render(info) + "  " + next
}
