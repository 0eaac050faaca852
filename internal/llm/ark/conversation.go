package ark

import (
	"context"
	"encoding/json"
	"fmt"
)

// Conversation is a minimal multi-turn adapter over the responses API. It
// holds the previous response id and advances it on every Send, so the
// provider threads context between turns. Nothing in the extraction pipeline
// depends on it; it exists for interactive use of the same client.
type Conversation struct {
	client *Client
	prevID string
}

func (c *Client) NewConversation() *Conversation {
	return &Conversation{client: c}
}

// Send submits one user message and returns the model's reply, carrying the
// conversation state forward.
func (cv *Conversation) Send(ctx context.Context, message string) (string, error) {
	if err := cv.client.ensure(); err != nil {
		return "", err
	}
	body := map[string]any{
		"model": cv.client.cfg.Model,
		"input": message,
	}
	if cv.prevID != "" {
		body["previous_response_id"] = cv.prevID
	}

	raw, err := cv.client.post(ctx, "/responses", body)
	if err != nil {
		return "", err
	}

	var out struct {
		ID     string `json:"id"`
		Output []struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode responses payload: %w", err)
	}
	if out.ID != "" {
		cv.prevID = out.ID
	}
	for _, o := range out.Output {
		for _, part := range o.Content {
			if part.Text != "" {
				return part.Text, nil
			}
		}
	}
	return "", fmt.Errorf("responses payload carries no text output")
}
