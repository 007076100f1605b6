package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/tasklist/internal/model"
	"github.com/idilsaglam/tasklist/internal/ui"
)

// todoItem adapts model.Todo to list.Item.
type todoItem struct {
	model.Todo
}

func (i todoItem) FilterValue() string { return i.Text }

// itemDelegate renders one todo per line. While an item is being edited
// its row shows the inline editor instead.
type itemDelegate struct {
	editingID int
	editor    func() string
}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(todoItem)
	if !ok {
		return
	}
	th := ui.Current()

	prefix := "  "
	if index == m.Index() {
		prefix = th.Selected.Render(">") + " "
	}
	if d.editor != nil && it.ID == d.editingID {
		fmt.Fprint(w, prefix+ui.Box(it.Todo)+" "+d.editor())
		return
	}

	text := ui.Truncate(it.Text, max(m.Width()-8, 10))
	if it.Completed {
		text = th.Done.Render(text)
	}
	fmt.Fprint(w, prefix+ui.Box(it.Todo)+" "+text)
}
