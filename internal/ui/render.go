package ui

import (
	"fmt"

	"github.com/idilsaglam/tasklist/internal/model"
)

// maxText is where list lines get truncated.
const maxText = 80

// Truncate shortens s to n runes with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// Box returns the themed checkbox for t.
func Box(t model.Todo) string {
	th := Current()
	if t.Completed {
		return th.Success.Render(th.BoxChecked)
	}
	return th.Muted.Render(th.BoxUnchecked)
}

// TodoLine renders one todo with its id, e.g. "   12  ☐ Buy milk".
func TodoLine(t model.Todo) string {
	th := Current()
	text := Truncate(t.Text, maxText)
	if t.Completed {
		text = th.Done.Render(text)
	}
	return fmt.Sprintf("%s %s %s", th.Muted.Render(fmt.Sprintf("%5d", t.ID)), Box(t), text)
}

// Header renders "Todos  ✔ d  • p  Total n".
func Header(todos []model.Todo, total int) string {
	th := Current()
	d, p := model.Stats(todos)
	return fmt.Sprintf("%s  %s %d  %s %d  %s %d",
		th.Title.Render("Todos"),
		th.Success.Render(th.SymDone), d,
		th.Pending.Render(th.SymPending), p,
		th.Accent.Render("Total"), total,
	)
}

// FlatLines renders todos one per line.
func FlatLines(todos []model.Todo) []string {
	if len(todos) == 0 {
		return []string{Current().Muted.Render("no items")}
	}
	out := make([]string, 0, len(todos))
	for _, t := range todos {
		out = append(out, TodoLine(t))
	}
	return out
}

// GroupLines renders pending todos, then done ones.
func GroupLines(todos []model.Todo) []string {
	var pend, done []model.Todo
	for _, t := range todos {
		if t.Completed {
			done = append(done, t)
		} else {
			pend = append(pend, t)
		}
	}
	th := Current()
	section := func(title string, items []model.Todo) []string {
		lines := []string{th.Accent.Render(title)}
		if len(items) == 0 {
			return append(lines, th.Muted.Render("(none)"))
		}
		return append(lines, FlatLines(items)...)
	}
	lines := section("Pending", pend)
	lines = append(lines, "")
	return append(lines, section("Done", done)...)
}

// PageCount is the number of pages needed for total at size, at least 1.
func PageCount(total, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}
