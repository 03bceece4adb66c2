package gemini_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nstogner/labassist/pkg/notes"
	"github.com/nstogner/labassist/pkg/notes/gemini"
)

func setupGenerator(t *testing.T) *gemini.Generator {
	t.Helper()
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping: GEMINI_API_KEY not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	g, err := gemini.New(ctx, apiKey, "")
	if err != nil {
		t.Fatalf("gemini.New: %v", err)
	}
	return g
}

// TestIntegrationGeminiNotes verifies that Gemini produces a document that
// passes notes validation.
func TestIntegrationGeminiNotes(t *testing.T) {
	g := setupGenerator(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	set, err := notes.Generate(ctx, g)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(set.Notes) != notes.Count {
		t.Fatalf("got %d notes, want %d", len(set.Notes), notes.Count)
	}
	for _, n := range set.Notes {
		if n.Heading == "" {
			t.Errorf("note %d has empty heading", n.ID)
		}
	}
}
