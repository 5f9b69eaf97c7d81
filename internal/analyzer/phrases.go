package analyzer

import (
	"math"
	"regexp"
	"strings"

	"github.com/zombar/aidetector/internal/models"
)

// detectPhrases counts every lexicon phrase in text and normalizes the total
// against the document length (one hit per ten words scores 100).
func detectPhrases(text string, lex *Lexicon) models.PhraseAnalysis {
	analysis := models.PhraseAnalysis{
		DetectedPhrases: []models.PhraseMatch{},
		CategoryScores:  make(map[string]int),
	}

	for _, p := range lex.phrases {
		count := p.Count(text)
		if count == 0 {
			continue
		}
		analysis.DetectedPhrases = append(analysis.DetectedPhrases, models.PhraseMatch{
			Phrase:   p.Text,
			Category: p.Category,
			Count:    count,
		})
		analysis.CategoryScores[p.Category] += count
		analysis.TotalMatches += count
	}

	words := wordCount(text)
	if words > 0 {
		analysis.NormalizedScore = math.Min(float64(analysis.TotalMatches)/(float64(words)/10)*100, 100)
	}
	return analysis
}

var (
	transitionOpener = regexp.MustCompile(`(?i)^(however|furthermore|moreover|additionally|consequently)`)
	listOpener       = regexp.MustCompile(`(?i)^(first|second|third|1\.|2\.|3\.|\d+\))`)
	hedgeOpener      = regexp.MustCompile(`(?i)^(it is|there are|this is|one can|we can)`)
)

// classifySentences scores each sentence on its own
func classifySentences(sentences []string, lex *Lexicon) []models.SentenceVerdict {
	verdicts := make([]models.SentenceVerdict, len(sentences))
	for i, s := range sentences {
		verdicts[i] = classifySentence(s, i, lex)
	}
	return verdicts
}

// classifySentence adds 15 per lexicon phrase contained in the sentence, 10
// for a 15-25 word length, and 20/15/10 for transition, list and hedge
// openers
func classifySentence(sentence string, index int, lex *Lexicon) models.SentenceVerdict {
	lower := strings.ToLower(sentence)
	score := 0
	for _, p := range lex.phrases {
		if strings.Contains(lower, p.Text) {
			score += 15
		}
	}

	words := wordCount(sentence)
	if words >= 15 && words <= 25 {
		score += 10
	}

	trimmed := strings.TrimSpace(sentence)
	if transitionOpener.MatchString(trimmed) {
		score += 20
	}
	if listOpener.MatchString(trimmed) {
		score += 15
	}
	if hedgeOpener.MatchString(trimmed) {
		score += 10
	}
	score = min(score, 100)

	return models.SentenceVerdict{
		Text:           sentence,
		Index:          index,
		WordCount:      words,
		AIProbability:  score,
		Classification: classify(score),
	}
}

func classify(score int) string {
	switch {
	case score >= 70:
		return models.ClassificationAI
	case score >= 40:
		return models.ClassificationMixed
	default:
		return models.ClassificationHuman
	}
}
