// Package oracle asks a Gemini-family model to answer a multiple-choice poll
// question and returns a structured, validated decision.
package oracle

// Status tags a Decision. There are exactly three outcomes: a committed
// answer, an answer the model itself flagged as a guess, or an unusable
// response.
type Status int

const (
	// Answered means the model picked an option with high or medium
	// confidence.
	Answered Status = iota
	// LowConfidence means the model picked an option but flagged it as a
	// guess; the caller should seek a human override.
	LowConfidence
	// Error means the response was unusable: transport failure, unparsable
	// output, or an option number outside the valid range.
	Error
)

// String implements fmt.Stringer for log output.
func (s Status) String() string {
	switch s {
	case Answered:
		return "answered"
	case LowConfidence:
		return "low_confidence"
	case Error:
		return "error"
	}
	return "unknown"
}

// Decision is a validated oracle response. Option is 1-indexed and lies in
// [1, option count] whenever Status != Error. Status is LowConfidence exactly
// when Confidence is "low".
type Decision struct {
	Status       Status
	Option       int
	Confidence   string // high, medium, low
	QuestionType string // factual, subjective, requires_context
	Reasoning    string
	Explanation  string
	Raw          string
}

// errorDecision builds an Error decision with the given reasoning.
func errorDecision(reasoning, raw string) Decision {
	return Decision{Status: Error, Reasoning: reasoning, Raw: raw}
}
