package analyzer

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/montanaflynn/stats"
	"github.com/zombar/aidetector/internal/models"
	"gonum.org/v1/gonum/stat"
)

// neutralScore is returned when there is too little text for a metric
const neutralScore = 50.0

const (
	minSentencesForVariance = 3
	minWordsForDistribution = 10
	minParagraphs           = 2
)

var (
	parenthesisPattern = regexp.MustCompile(`\([^)]+\)`)
	dashPattern        = regexp.MustCompile(`—|--`)
)

// localMetrics holds the nine document-level scores
type localMetrics struct {
	perplexity             float64
	burstiness             float64
	entropy                float64
	phrases                models.PhraseAnalysis
	structureUniformity    float64
	vocabRichness          float64
	readabilityConsistency float64
	punctuationVariety     float64
	paragraphUniformity    float64
	wordCount              int
	sentenceCount          int
}

func computeLocalMetrics(doc *Document, lex *Lexicon) localMetrics {
	return localMetrics{
		perplexity:             calculatePerplexity(doc.Words, lex),
		burstiness:             calculateBurstiness(doc.Sentences),
		entropy:                calculateEntropy(doc.Words),
		phrases:                detectPhrases(doc.Text, lex),
		structureUniformity:    calculateStructureUniformity(doc.Sentences),
		vocabRichness:          calculateVocabRichness(doc.Words),
		readabilityConsistency: calculateReadabilityConsistency(doc.Sentences),
		punctuationVariety:     calculatePunctuationVariety(doc.Text, doc.Sentences),
		paragraphUniformity:    calculateParagraphUniformity(doc.Paragraphs),
		wordCount:              len(doc.Words),
		sentenceCount:          len(doc.Sentences),
	}
}

// calculatePerplexity approximates language-model perplexity from the share
// of common words and repeated n-grams. Higher means less predictable.
func calculatePerplexity(words []string, lex *Lexicon) float64 {
	if len(words) < minWordsForDistribution {
		return neutralScore
	}

	bigrams := make(map[string]int)
	for i := 0; i+1 < len(words); i++ {
		bigrams[words[i]+" "+words[i+1]]++
	}
	trigrams := make(map[string]int)
	for i := 0; i+2 < len(words); i++ {
		trigrams[words[i]+" "+words[i+1]+" "+words[i+2]]++
	}

	common := 0
	for _, w := range words {
		if lex.IsCommon(cleanWord(w)) {
			common++
		}
	}

	n := float64(len(words))
	predictability := float64(common)/n*40 +
		float64(countRepeated(bigrams))/n*200 +
		float64(countRepeated(trigrams))/n*300

	return clamp(100-predictability, 0, 100)
}

func countRepeated(freq map[string]int) int {
	repeated := 0
	for _, c := range freq {
		if c > 1 {
			repeated++
		}
	}
	return repeated
}

// calculateBurstiness is the coefficient of variation of sentence complexity
func calculateBurstiness(sentences []string) float64 {
	if len(sentences) < minSentencesForVariance {
		return neutralScore
	}

	complexities := make([]float64, len(sentences))
	for i, s := range sentences {
		words := wordCount(s)
		letters := utf8.RuneCountInString(strings.Map(dropSpace, s))
		avgWordLen := float64(letters) / float64(max(words, 1))
		commas := strings.Count(s, ",")
		semicolons := strings.Count(s, ";")
		complexities[i] = float64(words)*0.5 + avgWordLen*2 + float64(commas)*3 + float64(semicolons)*5
	}

	mean, stdDev := meanStdDev(complexities)
	if mean <= 0 {
		return 0
	}
	return math.Min(stdDev/mean*100*2, 100)
}

func dropSpace(r rune) rune {
	if unicode.IsSpace(r) {
		return -1
	}
	return r
}

// calculateEntropy is the Shannon entropy of the word distribution, scaled
// so that 6 bits per word maps to 100
func calculateEntropy(words []string) float64 {
	if len(words) < minWordsForDistribution {
		return neutralScore
	}

	freq := make(map[string]int)
	total := 0
	for _, w := range words {
		if clean := cleanWord(w); clean != "" {
			freq[clean]++
			total++
		}
	}
	if total == 0 {
		return 0
	}

	keys := make([]string, 0, len(freq))
	for k := range freq {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	p := make([]float64, len(keys))
	for i, k := range keys {
		p[i] = float64(freq[k]) / float64(total)
	}

	bits := stat.Entropy(p) / math.Ln2
	return math.Min(bits/6*100, 100)
}

// calculateStructureUniformity is high when sentence lengths barely vary
func calculateStructureUniformity(sentences []string) float64 {
	if len(sentences) < minSentencesForVariance {
		return neutralScore
	}

	lengths := make([]float64, len(sentences))
	for i, s := range sentences {
		lengths[i] = float64(wordCount(s))
	}
	_, stdDev := meanStdDev(lengths)
	return math.Max(100-stdDev*5, 0)
}

// calculateVocabRichness combines type-token ratio and hapax legomena ratio
func calculateVocabRichness(words []string) float64 {
	if len(words) < minWordsForDistribution {
		return neutralScore
	}

	freq := make(map[string]int)
	total := 0
	for _, w := range words {
		if clean := cleanWord(w); len(clean) > 2 {
			freq[clean]++
			total++
		}
	}
	if total == 0 {
		return neutralScore
	}

	hapax := 0
	for _, c := range freq {
		if c == 1 {
			hapax++
		}
	}
	ttr := float64(len(freq)) / float64(total)
	hapaxRatio := float64(hapax) / float64(len(freq))
	return math.Min(ttr*50+hapaxRatio*50, 100)
}

// calculateReadabilityConsistency is the spread of per-sentence Flesch
// scores; it grows as readability varies between sentences
func calculateReadabilityConsistency(sentences []string) float64 {
	if len(sentences) < minSentencesForVariance {
		return neutralScore
	}

	scores := make([]float64, len(sentences))
	for i, s := range sentences {
		words := float64(max(wordCount(s), 1))
		syllables := float64(countSyllables(s))
		scores[i] = 206.835 - 1.015*words - 84.6*(syllables/words)
	}
	_, stdDev := meanStdDev(scores)
	return math.Min(stdDev*2, 100)
}

// calculatePunctuationVariety rewards mixed sentence endings and the use of
// parentheses, dashes and colons
func calculatePunctuationVariety(text string, sentences []string) float64 {
	endings := make(map[string]bool, 3)
	for _, s := range sentences {
		switch {
		case strings.HasSuffix(s, "!"):
			endings["exclaim"] = true
		case strings.HasSuffix(s, "?"):
			endings["question"] = true
		default:
			endings["period"] = true
		}
	}
	variety := float64(len(endings)) / 3

	parens := len(parenthesisPattern.FindAllStringIndex(text, -1))
	dashes := len(dashPattern.FindAllStringIndex(text, -1))
	colons := strings.Count(text, ":")

	score := variety*30 + float64(parens)*5 + float64(dashes)*5 + float64(colons)*3
	return math.Min(score, 100)
}

// calculateParagraphUniformity is the spread of paragraph lengths; uneven
// paragraphs score higher
func calculateParagraphUniformity(paragraphs []string) float64 {
	if len(paragraphs) < minParagraphs {
		return neutralScore
	}

	lengths := make([]float64, len(paragraphs))
	for i, p := range paragraphs {
		lengths[i] = float64(wordCount(p))
	}
	_, stdDev := meanStdDev(lengths)
	return math.Min(stdDev*3, 100)
}

// meanStdDev returns the mean and population standard deviation, or zeros
// for empty input
func meanStdDev(values []float64) (float64, float64) {
	data := stats.Float64Data(values)
	mean, err := stats.Mean(data)
	if err != nil {
		return 0, 0
	}
	stdDev, err := stats.StandardDeviationPopulation(data)
	if err != nil {
		return mean, 0
	}
	return mean, stdDev
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
