package openai

import (
	"context"
	"errors"
	"net/http"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// CompleteJSON runs a chat completion in JSON mode and returns the raw JSON
// content of the first choice.
func (c *Client) CompleteJSON(ctx context.Context, model, system, prompt string) ([]byte, error) {
	req := chatRequest{
		Model:          model,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	if system != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: system})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt})

	var resp chatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/chat/completions", nil, req, &resp); err != nil {
		return nil, remoteErr("chat completion", "", "", err)
	}
	if len(resp.Choices) == 0 {
		return nil, remoteErr("chat completion", "", "", errors.New("no choices returned"))
	}
	return []byte(resp.Choices[0].Message.Content), nil
}
