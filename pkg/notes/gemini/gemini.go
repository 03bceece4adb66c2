// Package gemini generates study notes with the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/nstogner/labassist/pkg/notes"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Generator implements notes.Generator using Gemini in JSON mode.
type Generator struct {
	client *genai.Client
	model  string
}

// Verify interface compliance.
var _ notes.Generator = (*Generator)(nil)

// New creates a new Gemini notes generator.
func New(ctx context.Context, apiKey, model string) (*Generator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Generator{client: client, model: model}, nil
}

// GenerateJSON streams a JSON-mode completion and returns the assembled
// document.
func (g *Generator) GenerateJSON(ctx context.Context, system, prompt string) ([]byte, error) {
	slog.Debug("Gemini.GenerateJSON", "model", g.model)

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}}

	var out strings.Builder
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, config) {
		if err != nil {
			return nil, err
		}
		if resp == nil {
			continue
		}
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.Text != "" && !part.Thought {
					out.WriteString(part.Text)
				}
			}
		}
	}

	if out.Len() == 0 {
		return nil, errors.New("gemini returned no content")
	}
	return []byte(out.String()), nil
}
