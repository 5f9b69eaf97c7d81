// Package prompts holds the LLM instructions shared by every external
// detection provider.
package prompts

import (
	"fmt"
	"unicode/utf8"
)

// MaxTextChars is the longest prefix of the input sent to a model
const MaxTextChars = 3000

// System instructs the model to act as a detector and answer in JSON
const System = `You are an advanced AI content detection system modeled after GPTZero and ZeroGPT.
Analyze text for AI-generation markers with high accuracy.

ANALYSIS CRITERIA:
1. Perplexity: How predictable is the word choice? (AI = low perplexity)
2. Burstiness: How varied is sentence complexity? (AI = low burstiness)
3. Vocabulary patterns: Overuse of transitions, hedging, formal phrases
4. Structural uniformity: AI text has consistent paragraph/sentence lengths
5. Personality markers: Human writing has distinct voice, opinions, errors
6. Topic coherence: AI tends to be generically comprehensive

RETURN ONLY valid JSON:
{
    "overallAiProbability": number (0-100),
    "humanProbability": number (0-100),
    "confidence": number (0-100),
    "perplexityScore": "low" | "medium" | "high",
    "burstinessScore": "low" | "medium" | "high",
    "detectedPatterns": ["pattern1", "pattern2"],
    "suspiciousSentences": [0, 2, 5],
    "assessment": "detailed assessment",
    "verdict": "Human" | "Mixed" | "AI Generated"
}`

// User builds the per-request prompt. Text longer than MaxTextChars runes is
// truncated and the original length is noted.
func User(text string) string {
	excerpt, truncated := Truncate(text)

	note := ""
	if truncated {
		note = fmt.Sprintf("(Truncated from %d chars)", utf8.RuneCountInString(text))
	}

	return fmt.Sprintf(`Analyze this text for AI generation (be thorough and accurate):

"""
%s
"""

%s

Provide detailed AI detection analysis.`, excerpt, note)
}

// Combined joins the system and user prompts for providers that take a
// single prompt string
func Combined(text string) string {
	return System + "\n\n" + User(text)
}

// Truncate returns at most MaxTextChars runes of text
func Truncate(text string) (string, bool) {
	if utf8.RuneCountInString(text) <= MaxTextChars {
		return text, false
	}
	runes := []rune(text)
	return string(runes[:MaxTextChars]), true
}
