package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "mixed terminators",
			input:    "Hello world. How are you? Fine!",
			expected: []string{"Hello world.", "How are you?", "Fine!"},
		},
		{
			name:     "no terminator",
			input:    "No terminator here",
			expected: []string{"No terminator here"},
		},
		{
			name:     "unterminated remainder kept",
			input:    "One. Two and more",
			expected: []string{"One.", "Two and more"},
		},
		{
			name:     "blank remainder dropped",
			input:    "One.   ",
			expected: []string{"One."},
		},
		{
			name:     "terminator runs",
			input:    "Wait... what?!",
			expected: []string{"Wait...", "what?!"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, splitSentences(tt.input))
		})
	}
}

func TestExtractWords(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"simple text", "Hello world", 2},
		{"with punctuation", "Hello, world! How are you?", 5},
		{"extra whitespace", "  spaced \n\t out  ", 2},
		{"empty string", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words := extractWords(tt.input)
			if len(words) != tt.expected {
				t.Errorf("expected %d words, got %d", tt.expected, len(words))
			}
		})
	}

	assert.Equal(t, []string{"hello,", "world!"}, extractWords("Hello, WORLD!"))
}

func TestSplitParagraphs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"single", "Just one paragraph.", 1},
		{"blank line", "Para 1\n\nPara 2", 2},
		{"whitespace-only separator", "Para 1\n   \t\nPara 2", 2},
		{"repeated separators", "Para 1\n\n\n\nPara 2\n\nPara 3", 3},
		{"single newline stays together", "Para 1\nstill para 1", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, splitParagraphs(tt.input), tt.expected)
		})
	}
}

func TestCountSyllablesInWord(t *testing.T) {
	tests := []struct {
		word     string
		expected int
	}{
		{"the", 1},
		{"a", 1},
		{"table", 2},
		{"happy", 2},
		{"rhythm", 1},
		{"Table!", 2},
		{"123", 1},
	}

	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			assert.Equal(t, tt.expected, countSyllablesInWord(tt.word))
		})
	}
}

func TestCountSyllables(t *testing.T) {
	assert.Equal(t, 5, countSyllables("the happy table"))
	assert.Equal(t, 0, countSyllables(""))
}

func TestCleanWord(t *testing.T) {
	assert.Equal(t, "dont", cleanWord("Don't"))
	assert.Equal(t, "", cleanWord("42!"))
}

func TestNewDocument(t *testing.T) {
	doc := NewDocument("First paragraph here. It has two sentences.\n\nSecond paragraph")

	assert.Len(t, doc.Sentences, 3)
	assert.Len(t, doc.Words, 9)
	assert.Len(t, doc.Paragraphs, 2)
	assert.Equal(t, "first", doc.Words[0])
}
