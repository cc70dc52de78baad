package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// The dictionary uses specific words to avoid partial collisions
// (e.g., "he" inside "The").
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	dictionary := []string{"badger", "snake", "western union"}
	mod, err := NewModerator(dictionary, replacementChar)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Simple word and space preservation",
			input:    "The badger is here",
			expected: "The ****** is here",
			words:    []string{"badger"},
		},
		{
			name:     "Leet speak and internal punctuation",
			input:    "Look at B.4.d.g.€r !",
			expected: "Look at ********** !",
			words:    []string{"badger"},
		},
		{
			name:     "Multi word pattern across spacing",
			input:    "pay by WESTERN   union please",
			expected: "pay by *************** please",
			words:    []string{"westernunion"},
		},
		{
			name:     "Nothing to censor",
			input:    "is this still available?",
			expected: "is this still available?",
			words:    nil,
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
			words:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := require.New(t)
			censored, found := mod.Censor(tt.input)
			r.Equal(tt.expected, censored)
			r.Equal(tt.words, found)
		})
	}
}

func TestLoadWordlists(t *testing.T) {
	req := require.New(t)

	data, err := LoadWordlists()
	req.NoError(err)
	req.NotEmpty(data.Words)
	req.Contains(data.Languages, "en")
	req.Contains(data.Languages, "fr")
}
