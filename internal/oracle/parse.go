package oracle

import (
	"encoding/json"
	"fmt"
	"strings"
)

// oracleResponse mirrors the JSON shape the prompt demands.
type oracleResponse struct {
	Analysis struct {
		QuestionType string `json:"question_type"`
		Reasoning    string `json:"reasoning"`
	} `json:"analysis"`
	Answer struct {
		BestOption  json.Number `json:"best_option"`
		Confidence  string      `json:"confidence"`
		Explanation string      `json:"explanation"`
	} `json:"answer"`
}

// extractJSON pulls the outermost brace-balanced JSON object out of raw model
// text, tolerating prose or code fences around it.
func extractJSON(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(raw); i++ {
		switch raw[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

// parseResponse turns raw model text into a validated Decision. An option
// number outside [1, numOptions] is an Error regardless of the reported
// confidence.
func parseResponse(raw string, numOptions int) Decision {
	raw = strings.TrimSpace(raw)

	jsonStr, ok := extractJSON(raw)
	if !ok {
		return errorDecision("no JSON object in response", raw)
	}

	var resp oracleResponse
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		return errorDecision(fmt.Sprintf("could not parse JSON: %v", err), raw)
	}

	option64, err := resp.Answer.BestOption.Int64()
	if err != nil || option64 < 1 || option64 > int64(numOptions) {
		return errorDecision(fmt.Sprintf("invalid option number: %s", resp.Answer.BestOption), raw)
	}

	// Only an explicit high/medium commits outright. A missing, empty, or
	// unrecognized confidence label is treated as a guess.
	confidence := strings.ToLower(strings.TrimSpace(resp.Answer.Confidence))
	status := LowConfidence
	switch confidence {
	case "high", "medium":
		status = Answered
	default:
		confidence = "low"
	}

	return Decision{
		Status:       status,
		Option:       int(option64),
		Confidence:   confidence,
		QuestionType: resp.Analysis.QuestionType,
		Reasoning:    resp.Analysis.Reasoning,
		Explanation:  resp.Answer.Explanation,
		Raw:          raw,
	}
}
