package models

import "time"

// Verdict labels
const (
	VerdictAIGenerated  = "AI Generated"
	VerdictMixedContent = "Mixed Content"
	VerdictHumanWritten = "Human Written"
)

// Sentence classifications
const (
	ClassificationHuman = "human"
	ClassificationMixed = "mixed"
	ClassificationAI    = "ai"
)

// Analysis represents a persisted detection run
type Analysis struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Source    string         `json:"source,omitempty"` // File name, student name or other caller-supplied label
	Result    AnalysisResult `json:"result"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// AnalysisResult is the output of a single detection call
type AnalysisResult struct {
	AIProbability    int               `json:"ai_probability"`    // 0-100
	HumanProbability int               `json:"human_probability"` // 100 - AIProbability
	Confidence       int               `json:"confidence"`        // 0-100
	Verdict          string            `json:"verdict"`
	VerdictEmoji     string            `json:"verdict_emoji"`
	Metrics          Metrics           `json:"metrics"`
	Signals          Signals           `json:"signals"`
	PhraseAnalysis   PhraseAnalysis    `json:"phrase_analysis"`
	SentenceAnalysis []SentenceVerdict `json:"sentence_analysis"`
	APIAnalysis      *ExternalAnalysis `json:"api_analysis,omitempty"`
	WordCount        int               `json:"word_count"`
	SentenceCount    int               `json:"sentence_count"`
}

// Metrics holds the rounded headline scores shown to users
type Metrics struct {
	Perplexity             int `json:"perplexity"`
	Burstiness             int `json:"burstiness"`
	Entropy                int `json:"entropy"`
	StructureUniformity    int `json:"structure_uniformity"`
	VocabRichness          int `json:"vocab_richness"`
	ReadabilityConsistency int `json:"readability_consistency"`
}

// Signals holds the unrounded local metrics and the local composite score
type Signals struct {
	Perplexity             float64 `json:"perplexity"`
	Burstiness             float64 `json:"burstiness"`
	Entropy                float64 `json:"entropy"`
	PhraseDensity          float64 `json:"phrase_density"`
	StructureUniformity    float64 `json:"structure_uniformity"`
	VocabRichness          float64 `json:"vocab_richness"`
	ReadabilityConsistency float64 `json:"readability_consistency"`
	PunctuationVariety     float64 `json:"punctuation_variety"`
	ParagraphUniformity    float64 `json:"paragraph_uniformity"`
	LocalScore             float64 `json:"local_score"` // 0-100, higher is more AI-like
}

// PhraseMatch is a lexicon phrase found at least once in the document
type PhraseMatch struct {
	Phrase   string `json:"phrase"`
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// PhraseAnalysis summarises lexicon matches
type PhraseAnalysis struct {
	DetectedPhrases []PhraseMatch  `json:"detected_phrases"`
	TotalMatches    int            `json:"total_matches"`
	CategoryScores  map[string]int `json:"category_scores"`
	NormalizedScore float64        `json:"normalized_score"` // 0-100
}

// SentenceVerdict is the per-sentence heuristic classification
type SentenceVerdict struct {
	Text           string `json:"text"`
	Index          int    `json:"index"`
	WordCount      int    `json:"word_count"`
	AIProbability  int    `json:"ai_probability"`
	Classification string `json:"classification"` // human, mixed, ai
}

// ExternalAnalysis represents an LLM's assessment of the text
type ExternalAnalysis struct {
	OverallAIProbability float64  `json:"overall_ai_probability"`
	HumanProbability     float64  `json:"human_probability"`
	Confidence           *float64 `json:"confidence,omitempty"`
	PerplexityScore      string   `json:"perplexity_score,omitempty"` // low, medium, high
	BurstinessScore      string   `json:"burstiness_score,omitempty"` // low, medium, high
	DetectedPatterns     []string `json:"detected_patterns,omitempty"`
	SuspiciousSentences  []int    `json:"suspicious_sentences,omitempty"`
	Assessment           string   `json:"assessment,omitempty"`
	Verdict              string   `json:"verdict,omitempty"`
	Source               string   `json:"source,omitempty"` // Provider and model that produced it
}
