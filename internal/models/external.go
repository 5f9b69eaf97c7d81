package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// externalPayload mirrors the JSON schema requested from the LLM. Numbers are
// pointers so that a missing field can be told apart from zero.
type externalPayload struct {
	OverallAIProbability *float64 `json:"overallAiProbability"`
	HumanProbability     *float64 `json:"humanProbability"`
	Confidence           *float64 `json:"confidence"`
	PerplexityScore      string   `json:"perplexityScore"`
	BurstinessScore      string   `json:"burstinessScore"`
	DetectedPatterns     []string `json:"detectedPatterns"`
	SuspiciousSentences  []int    `json:"suspiciousSentences"`
	Assessment           string   `json:"assessment"`
	Verdict              string   `json:"verdict"`
}

// ParseExternalAnalysis extracts the detection JSON object from an LLM reply.
// The reply may wrap the object in prose or code fences. A reply without an
// overallAiProbability in [0,100] is rejected.
func ParseExternalAnalysis(content string) (*ExternalAnalysis, error) {
	var payload externalPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &payload); err != nil {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("no JSON object found in response")
		}
		payload = externalPayload{}
		if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
			return nil, fmt.Errorf("failed to parse AI detection JSON: %w", err)
		}
	}

	if payload.OverallAIProbability == nil {
		return nil, fmt.Errorf("response is missing overallAiProbability")
	}
	ai := *payload.OverallAIProbability
	if ai < 0 || ai > 100 {
		return nil, fmt.Errorf("overallAiProbability out of range: %v", ai)
	}

	result := &ExternalAnalysis{
		OverallAIProbability: ai,
		HumanProbability:     100 - ai,
		PerplexityScore:      payload.PerplexityScore,
		BurstinessScore:      payload.BurstinessScore,
		DetectedPatterns:     payload.DetectedPatterns,
		SuspiciousSentences:  payload.SuspiciousSentences,
		Assessment:           payload.Assessment,
		Verdict:              payload.Verdict,
	}
	if payload.HumanProbability != nil && *payload.HumanProbability >= 0 && *payload.HumanProbability <= 100 {
		result.HumanProbability = *payload.HumanProbability
	}
	if c := payload.Confidence; c != nil && *c > 0 && *c <= 100 {
		confidence := *c
		result.Confidence = &confidence
	}
	return result, nil
}
