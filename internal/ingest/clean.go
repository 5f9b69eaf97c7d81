package ingest

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"
)

// DefaultThreshold is the minimum paragraph score kept by StripBoilerplate
const DefaultThreshold = 0.3

// StopWords reports whether a lower-case word is a common function word
type StopWords interface {
	IsCommon(word string) bool
}

// ParagraphScore is the quality score for a paragraph
type ParagraphScore struct {
	Text             string
	Score            float64
	WordCount        int
	LinkDensity      float64
	StopwordRatio    float64
	CapitalizedRatio float64
	AvgWordLength    float64
	HasImageMarkers  bool
	IsBoilerplate    bool
	Reasons          []string
}

var (
	imageMarkers = []string{
		"image source:", "photo by:", "credit:", "getty images",
		"photograph:", "photographer:", "©", "copyright",
		"image caption:", "picture:", "courtesy of",
		"[image:", "[photo:", "via:",
	}

	boilerplatePatterns = []string{
		"click here", "read more", "subscribe", "sign up", "newsletter",
		"share this", "follow us", "related articles",
		"you may also like", "recommended for you", "advertisement",
		"sponsored content", "cookie policy", "privacy policy",
		"terms of service", "all rights reserved", "view comments",
		"post comment", "log in to", "register now",
		"buy now", "shop now", "add to cart",
		"trending now", "popular posts", "recent posts", "categories:",
		"tags:", "filed under:", "posted in:", "previous article",
		"next article", "back to top", "skip to content",
	}

	listItemPattern = regexp.MustCompile(`^\d+\.`)
	datePattern     = regexp.MustCompile(`(?i)posted on|published on|updated on|last modified|^\w+\s+\d{1,2},\s+\d{4}`)
	authorPattern   = regexp.MustCompile(`(?i)^by\s+[A-Z][a-z]+|^written by|^author:`)
)

// Cleaner drops navigation, captions and other boilerplate paragraphs from
// extracted documents before they are scored
type Cleaner struct {
	stopWords StopWords
	threshold float64
	logger    *slog.Logger
}

// NewCleaner creates a cleaner using stopWords for the function-word ratio
func NewCleaner(stopWords StopWords) *Cleaner {
	return &Cleaner{
		stopWords: stopWords,
		threshold: DefaultThreshold,
		logger:    slog.Default().With("component", "ingest"),
	}
}

// StripBoilerplate keeps paragraphs scoring at least the threshold that are
// not boilerplate. Text without paragraphs is returned unchanged.
func (c *Cleaner) StripBoilerplate(text string) string {
	paragraphs := splitIntoParagraphs(text)
	if len(paragraphs) == 0 {
		return text
	}

	kept := make([]string, 0, len(paragraphs))
	removed := 0
	for i, para := range paragraphs {
		score := c.scoreParagraph(para)
		if score.Score >= c.threshold && !score.IsBoilerplate {
			kept = append(kept, score.Text)
			continue
		}
		removed++
		c.logger.Debug("removed paragraph",
			"index", i,
			"score", score.Score,
			"reasons", strings.Join(score.Reasons, ","),
		)
	}

	c.logger.Debug("boilerplate stripped", "kept", len(kept), "removed", removed)

	return strings.Join(kept, "\n\n")
}

func cleanWord(word string) string {
	return strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	}))
}

// scoreParagraph scores a paragraph on several content-quality factors
func (c *Cleaner) scoreParagraph(para string) ParagraphScore {
	score := ParagraphScore{
		Text:  para,
		Score: 0.5,
	}

	trimmed := strings.TrimSpace(para)
	if len(trimmed) < 20 {
		score.Score = 0.0
		score.Reasons = append(score.Reasons, "too_short")
		return score
	}

	words := strings.Fields(para)
	score.WordCount = len(words)
	lowerPara := strings.ToLower(para)

	// Word count: 20-200 words per paragraph is typical prose
	switch {
	case score.WordCount < 10:
		score.Score -= 0.3
		score.Reasons = append(score.Reasons, "very_few_words")
	case score.WordCount >= 20 && score.WordCount <= 200:
		score.Score += 0.2
		score.Reasons = append(score.Reasons, "good_length")
	case score.WordCount > 300:
		score.Score -= 0.1
		score.Reasons = append(score.Reasons, "very_long")
	}

	linkCount := strings.Count(lowerPara, "http://") +
		strings.Count(lowerPara, "https://") +
		strings.Count(lowerPara, "www.") +
		strings.Count(para, "→") +
		strings.Count(para, "»")
	score.LinkDensity = float64(linkCount) / float64(score.WordCount)
	if score.LinkDensity > 0.1 {
		score.Score -= 0.4
		score.Reasons = append(score.Reasons, "high_link_density")
	}

	if c.stopWords != nil {
		stopwordCount := 0
		for _, word := range words {
			if c.stopWords.IsCommon(cleanWord(word)) {
				stopwordCount++
			}
		}
		score.StopwordRatio = float64(stopwordCount) / float64(score.WordCount)
		if score.StopwordRatio >= 0.25 && score.StopwordRatio <= 0.65 {
			score.Score += 0.15
			score.Reasons = append(score.Reasons, "natural_stopword_ratio")
		} else if score.StopwordRatio < 0.1 {
			score.Score -= 0.2
			score.Reasons = append(score.Reasons, "low_stopwords")
		}
	}

	totalLength := 0
	for _, word := range words {
		totalLength += len(word)
	}
	score.AvgWordLength = float64(totalLength) / float64(score.WordCount)
	if score.AvgWordLength >= 4.0 && score.AvgWordLength <= 6.0 {
		score.Score += 0.1
		score.Reasons = append(score.Reasons, "balanced_word_length")
	}

	for _, marker := range imageMarkers {
		if strings.Contains(lowerPara, marker) {
			score.HasImageMarkers = true
			score.Score -= 0.4
			score.Reasons = append(score.Reasons, "image_attribution")
			break
		}
	}

	for _, pattern := range boilerplatePatterns {
		if strings.Contains(lowerPara, pattern) {
			score.IsBoilerplate = true
			score.Score -= 0.5
			score.Reasons = append(score.Reasons, "boilerplate_pattern")
			break
		}
	}

	upperCount := 0
	lowerCount := 0
	for _, r := range para {
		if unicode.IsUpper(r) {
			upperCount++
		} else if unicode.IsLower(r) {
			lowerCount++
		}
	}
	if upperCount+lowerCount > 0 {
		score.CapitalizedRatio = float64(upperCount) / float64(upperCount+lowerCount)
		if score.CapitalizedRatio > 0.5 {
			score.Score -= 0.3
			score.Reasons = append(score.Reasons, "excessive_caps")
		}
	}

	punctCount := strings.Count(para, "!") + strings.Count(para, "?") +
		strings.Count(para, "*") + strings.Count(para, "#")
	if punctCount > score.WordCount/5 {
		score.Score -= 0.2
		score.Reasons = append(score.Reasons, "excessive_punctuation")
	}

	// Short bullet points carry little prose
	if strings.HasPrefix(trimmed, "•") || strings.HasPrefix(trimmed, "-") ||
		strings.HasPrefix(trimmed, "*") || listItemPattern.MatchString(trimmed) {
		if score.WordCount < 15 {
			score.Score -= 0.2
			score.Reasons = append(score.Reasons, "short_list_item")
		}
	}

	if datePattern.MatchString(para) && score.WordCount < 20 {
		score.Score -= 0.2
		score.Reasons = append(score.Reasons, "metadata_line")
	}

	if authorPattern.MatchString(trimmed) && score.WordCount < 15 {
		score.Score -= 0.2
		score.Reasons = append(score.Reasons, "author_byline")
	}

	if score.Score < 0.0 {
		score.Score = 0.0
	}
	if score.Score > 1.0 {
		score.Score = 1.0
	}

	return score
}

// splitIntoParagraphs splits on blank lines, and on single newlines inside
// very long blocks
func splitIntoParagraphs(text string) []string {
	paragraphs := strings.Split(text, "\n\n")

	result := make([]string, 0, len(paragraphs))
	for _, para := range paragraphs {
		trimmed := strings.TrimSpace(para)
		if trimmed == "" {
			continue
		}

		if len(trimmed) > 1000 {
			for _, subPara := range strings.Split(para, "\n") {
				if subTrimmed := strings.TrimSpace(subPara); subTrimmed != "" {
					result = append(result, subTrimmed)
				}
			}
		} else {
			result = append(result, trimmed)
		}
	}

	return result
}
