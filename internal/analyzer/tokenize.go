package analyzer

import (
	"regexp"
	"strings"
)

var (
	sentencePattern  = regexp.MustCompile(`[^.!?]+[.!?]+`)
	paragraphPattern = regexp.MustCompile(`\n\s*\n`)
)

// Document is the tokenized form of an input text. All views are derived
// once at construction and never modified.
type Document struct {
	Text       string
	Sentences  []string
	Words      []string // lower-cased, whitespace-delimited
	Paragraphs []string
}

// NewDocument tokenizes text.
func NewDocument(text string) *Document {
	return &Document{
		Text:       text,
		Sentences:  splitSentences(text),
		Words:      extractWords(text),
		Paragraphs: splitParagraphs(text),
	}
}

// splitSentences returns the terminated sentences of text, trimmed, followed
// by any non-blank unterminated remainder. Text without any terminator is
// returned whole.
func splitSentences(text string) []string {
	spans := sentencePattern.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return []string{text}
	}

	sentences := make([]string, 0, len(spans)+1)
	for _, span := range spans {
		sentences = append(sentences, strings.TrimSpace(text[span[0]:span[1]]))
	}
	if rest := strings.TrimSpace(text[spans[len(spans)-1][1]:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// extractWords lower-cases text and splits it on whitespace
func extractWords(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// splitParagraphs splits on blank lines and drops empty paragraphs
func splitParagraphs(text string) []string {
	parts := paragraphPattern.Split(text, -1)
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// wordCount counts whitespace-delimited tokens
func wordCount(s string) int {
	return len(strings.Fields(s))
}

var (
	nonLetterPattern    = regexp.MustCompile(`[^a-z]`)
	silentEndingPattern = regexp.MustCompile(`(?:[^laeiouy]es|ed|[^laeiouy]e)$`)
	leadingYPattern     = regexp.MustCompile(`^y`)
	vowelGroupPattern   = regexp.MustCompile(`[aeiouy]{1,2}`)
)

// cleanWord keeps only the ASCII letters of a lower-cased word
func cleanWord(word string) string {
	return nonLetterPattern.ReplaceAllString(strings.ToLower(word), "")
}

// countSyllables estimates the syllables in text, at least one per word
func countSyllables(text string) int {
	count := 0
	for _, word := range strings.Fields(text) {
		count += countSyllablesInWord(word)
	}
	return count
}

// countSyllablesInWord counts vowel groups after dropping silent endings
func countSyllablesInWord(word string) int {
	word = cleanWord(word)
	if len(word) <= 3 {
		return 1
	}
	word = silentEndingPattern.ReplaceAllString(word, "")
	word = leadingYPattern.ReplaceAllString(word, "")
	if groups := len(vowelGroupPattern.FindAllString(word, -1)); groups > 0 {
		return groups
	}
	return 1
}

// WordCount returns the number of words Analyze counts in text
func WordCount(text string) int {
	return len(strings.Fields(text))
}
