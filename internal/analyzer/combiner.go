package analyzer

import (
	"math"

	"github.com/zombar/aidetector/internal/models"
)

// Weights are the percentage contributions of each local metric to the
// composite score. They sum to 100.
type Weights struct {
	Perplexity             int
	Burstiness             int
	StructureUniformity    int
	VocabRichness          int
	PhraseDensity          int
	ReadabilityConsistency int
	PunctuationVariety     int
	ParagraphUniformity    int
}

// DefaultWeights returns the calibrated local weights
func DefaultWeights() Weights {
	return Weights{
		Perplexity:             15,
		Burstiness:             15,
		StructureUniformity:    15,
		VocabRichness:          10,
		PhraseDensity:          25,
		ReadabilityConsistency: 10,
		PunctuationVariety:     5,
		ParagraphUniformity:    5,
	}
}

// Total returns the sum of all weights in percent
func (w Weights) Total() int {
	return w.Perplexity + w.Burstiness + w.StructureUniformity + w.VocabRichness +
		w.PhraseDensity + w.ReadabilityConsistency + w.PunctuationVariety + w.ParagraphUniformity
}

// Blend of local and external scores when an external signal is present
const (
	localShare    = 0.4
	externalShare = 0.6
)

// Verdict thresholds on the final AI probability
const (
	aiGeneratedThreshold  = 75
	mixedContentThreshold = 45
)

// localScore folds the metrics into a 0-100 AI-likeness score. Metrics where
// a high value means human-like are inverted.
func (w Weights) localScore(m localMetrics) float64 {
	score := float64(w.Perplexity)*(100-m.perplexity) +
		float64(w.Burstiness)*(100-m.burstiness) +
		float64(w.StructureUniformity)*m.structureUniformity +
		float64(w.VocabRichness)*(100-m.vocabRichness) +
		float64(w.PhraseDensity)*m.phrases.NormalizedScore +
		float64(w.ReadabilityConsistency)*(100-m.readabilityConsistency) +
		float64(w.PunctuationVariety)*(100-m.punctuationVariety) +
		float64(w.ParagraphUniformity)*(100-m.paragraphUniformity)
	return score / 100
}

// combine builds the final result from the local metrics, the sentence
// verdicts and the optional external analysis
func combine(weights Weights, m localMetrics, sentences []models.SentenceVerdict, external *models.ExternalAnalysis) models.AnalysisResult {
	local := weights.localScore(m)

	final := local
	if external != nil {
		final = local*localShare + external.OverallAIProbability*externalShare
	}
	aiProbability := int(math.Round(clamp(final, 0, 100)))

	verdict, emoji := verdictFor(aiProbability)

	return models.AnalysisResult{
		AIProbability:    aiProbability,
		HumanProbability: 100 - aiProbability,
		Confidence:       confidence(m.wordCount, external),
		Verdict:          verdict,
		VerdictEmoji:     emoji,
		Metrics: models.Metrics{
			Perplexity:             roundScore(m.perplexity),
			Burstiness:             roundScore(m.burstiness),
			Entropy:                roundScore(m.entropy),
			StructureUniformity:    roundScore(m.structureUniformity),
			VocabRichness:          roundScore(m.vocabRichness),
			ReadabilityConsistency: roundScore(m.readabilityConsistency),
		},
		Signals: models.Signals{
			Perplexity:             m.perplexity,
			Burstiness:             m.burstiness,
			Entropy:                m.entropy,
			PhraseDensity:          m.phrases.NormalizedScore,
			StructureUniformity:    m.structureUniformity,
			VocabRichness:          m.vocabRichness,
			ReadabilityConsistency: m.readabilityConsistency,
			PunctuationVariety:     m.punctuationVariety,
			ParagraphUniformity:    m.paragraphUniformity,
			LocalScore:             local,
		},
		PhraseAnalysis:   m.phrases,
		SentenceAnalysis: sentences,
		APIAnalysis:      external,
		WordCount:        m.wordCount,
		SentenceCount:    m.sentenceCount,
	}
}

// verdictFor maps a final AI probability to its label and badge
func verdictFor(aiProbability int) (string, string) {
	switch {
	case aiProbability >= aiGeneratedThreshold:
		return models.VerdictAIGenerated, "🤖"
	case aiProbability >= mixedContentThreshold:
		return models.VerdictMixedContent, "⚠️"
	default:
		return models.VerdictHumanWritten, "✅"
	}
}

// confidence prefers the external model's own confidence and otherwise
// grows with the amount of text
func confidence(words int, external *models.ExternalAnalysis) int {
	if external != nil && external.Confidence != nil {
		return int(math.Round(clamp(*external.Confidence, 0, 100)))
	}
	switch {
	case words > 100:
		return 85
	case words > 50:
		return 70
	default:
		return 55
	}
}

func roundScore(v float64) int {
	return int(math.Round(v))
}
