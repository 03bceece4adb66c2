package openai_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nstogner/labassist/pkg/domain"
	"github.com/nstogner/labassist/pkg/remote"
	"github.com/nstogner/labassist/pkg/remote/openai"
)

func setupClient(t *testing.T) *openai.Client {
	t.Helper()
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping: OPENAI_API_KEY not set")
	}

	c, err := openai.New(openai.Options{
		APIKey:       apiKey,
		Organization: os.Getenv("OPENAI_ORG"),
		BaseURL:      os.Getenv("OPENAI_BASE_URL"),
	})
	if err != nil {
		t.Fatalf("openai.New: %v", err)
	}
	return c
}

// TestIntegrationAssistantRoundTrip creates an assistant, asks it one
// question over a streamed run, and removes everything it created.
func TestIntegrationAssistantRoundTrip(t *testing.T) {
	c := setupClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	cfg := domain.AssistantConfig{
		Name:         "labassist integration test",
		Model:        "gpt-4o-mini",
		Instructions: "Answer in one short sentence.",
		Temperature:  0.2,
		TopP:         1,
	}
	assistantID, err := c.CreateAssistant(ctx, cfg)
	if err != nil {
		t.Fatalf("CreateAssistant: %v", err)
	}
	defer c.DeleteAssistant(context.Background(), assistantID)

	cfg.Instructions = "Answer in one short sentence. Be polite."
	if err := c.UpdateAssistant(ctx, assistantID, cfg); err != nil {
		t.Fatalf("UpdateAssistant: %v", err)
	}

	threadID, err := c.CreateThread(ctx, "Say hello.")
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
	defer c.DeleteThread(context.Background(), threadID)

	stream, err := c.StreamRun(ctx, threadID, assistantID)
	if err != nil {
		t.Fatalf("StreamRun: %v", err)
	}
	defer stream.Close()

	var text strings.Builder
	lastSeq := 0
	for ev, err := range stream.Events() {
		if err != nil {
			t.Fatalf("stream: %v", err)
		}
		if ev.Seq != lastSeq+1 {
			t.Fatalf("Seq = %d after %d", ev.Seq, lastSeq)
		}
		lastSeq = ev.Seq
		if ev.Kind == remote.EventTextDelta {
			text.WriteString(ev.Text)
		}
	}
	if text.Len() == 0 {
		t.Error("No answer text streamed")
	}
	t.Logf("Answer: %s", text.String())
}

// TestIntegrationListFiles verifies pagination against the live listing.
func TestIntegrationListFiles(t *testing.T) {
	c := setupClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records, err := c.ListFiles(ctx)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	for _, r := range records {
		if r.ID == "" || r.CreatedAt.IsZero() {
			t.Errorf("incomplete record: %+v", r)
		}
	}
}
