package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name string
		text string
		term string
		want bool
	}{
		{"empty term", "Buy milk", "", true},
		{"exact", "Buy milk", "milk", true},
		{"case insensitive", "Buy MILK", "Milk", true},
		{"miss", "Buy milk", "bread", false},
		{"empty text", "", "a", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Todo{Text: tt.text}.Matches(tt.term))
		})
	}
}

func TestFilterDoesNotAlias(t *testing.T) {
	in := []Todo{{ID: 1, Text: "Alpha"}, {ID: 2, Text: "beta"}, {ID: 3, Text: "ALPHABET"}}
	out := Filter(in, "alpha")
	assert.Equal(t, []Todo{{ID: 1, Text: "Alpha"}, {ID: 3, Text: "ALPHABET"}}, out)

	out[0].Text = "changed"
	assert.Equal(t, "Alpha", in[0].Text)
}

func TestStats(t *testing.T) {
	done, pending := Stats([]Todo{{Completed: true}, {}, {}, {Completed: true}, {}})
	assert.Equal(t, 2, done)
	assert.Equal(t, 3, pending)
}
