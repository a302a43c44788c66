package oracle

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"pollwatch/internal/poll"
)

// Client asks a Gemini-family model via the GenAI API.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewClient creates an oracle client. The API key is required; model falls
// back to gemma-3-27b-it.
func NewClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("oracle API key is required")
	}
	if model == "" {
		model = "gemma-3-27b-it"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{client: client, model: model, timeout: timeout}, nil
}

// Ask answers a multiple-choice question. It never returns a Go error:
// transport failures and malformed model output are normalized into an
// Error decision so the caller has a single policy surface.
func (c *Client) Ask(ctx context.Context, snap poll.QuestionSnapshot) Decision {
	if snap.OptionCount() == 0 {
		return errorDecision("question has no options", "")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := buildPrompt(snap.Question, snap.Options)
	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return errorDecision(fmt.Sprintf("generate content: %v", err), "")
	}

	text := result.Text()
	if text == "" {
		return errorDecision("empty model response", "")
	}

	return parseResponse(text, snap.OptionCount())
}
