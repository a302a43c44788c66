package oracle

import (
	"fmt"
	"strings"
)

// buildPrompt renders the strict structured prompt. The model must always
// pick an option; the confidence rules push anything that depends on
// out-of-band context ("the diagram", "the previous slide") to "low".
func buildPrompt(question string, options []string) string {
	var list strings.Builder
	for i, opt := range options {
		fmt.Fprintf(&list, "  %d. %s\n", i+1, opt)
	}

	return fmt.Sprintf(`You are an AI assistant answering a multiple choice poll question.

QUESTION: %s

OPTIONS:
%s
INSTRUCTIONS:
Analyze the question and provide a structured JSON response. You MUST ALWAYS provide your best answer (integer 1-%d), even if the question is subjective or requires outside knowledge.

CONFIDENCE RULES (STRICT):
- "high": The question is completely self-contained, objective, and you are >95%% sure of the answer.
- "medium": The question is self-contained but might have minor ambiguity, or you are >70%% sure.
- "low": The question requires external context (e.g. "shown on the board", "this diagram", "previous slide", "what did the speaker say"), OR is highly subjective, OR you are guessing.
- IMPORTANT: If a question asks about "the correct node", "this code", or "the image", and no code/image is provided, you MUST set confidence to "low".

RESPONSE FORMAT (respond with ONLY this JSON, no other text):
{
  "analysis": {
    "question_type": "factual" | "subjective" | "requires_context",
    "reasoning": "<your step-by-step reasoning>"
  },
  "answer": {
    "best_option": <integer 1-%d>,
    "confidence": "high" | "medium" | "low",
    "explanation": "<why this is the best answer>"
  }
}

Now respond with ONLY the JSON for the given question:`, question, list.String(), len(options), len(options))
}
