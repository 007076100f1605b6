package model

import "strings"

// Todo is the domain model for a task entry.
// Field names on the wire follow the remote service (todo, userId).
type Todo struct {
	ID        int    `json:"id"`
	Text      string `json:"todo"`
	Completed bool   `json:"completed"`
	OwnerID   int    `json:"userId"`
}

// Matches reports whether the todo text contains term, ignoring case.
// An empty term matches everything.
func (t Todo) Matches(term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Text), strings.ToLower(term))
}

// Filter returns the todos matching term, preserving order.
// The result never aliases the input.
func Filter(todos []Todo, term string) []Todo {
	out := make([]Todo, 0, len(todos))
	for _, t := range todos {
		if t.Matches(term) {
			out = append(out, t)
		}
	}
	return out
}

// Stats counts completed and pending todos.
func Stats(todos []Todo) (done, pending int) {
	for _, t := range todos {
		if t.Completed {
			done++
		} else {
			pending++
		}
	}
	return
}
