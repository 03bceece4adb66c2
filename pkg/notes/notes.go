// Package notes generates and validates the exam study notes.
package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/nstogner/labassist/pkg/domain"
	"github.com/nstogner/labassist/pkg/remote"
)

// Count is the number of notes requested and accepted.
const Count = 10

// MaxSummaryLen is the longest accepted summary, in characters.
const MaxSummaryLen = 150

// SystemPrompt instructs the model to answer with the notes document only.
const SystemPrompt = `You are a study summarizer. Return exactly 10 unique notes that will help prepare for the exam. Respond ONLY with valid JSON matching this schema:
{
    "notes": [{
        "id": 1,
        "heading": "Concept Name",
        "summary": "Brief explanation (at most 150 characters)",
        "page_ref": 123
    }]
}
Use ids 1 through 10. Omit page_ref or set it to null when no page applies.`

// UserPrompt asks for the notes.
const UserPrompt = "Create the exam notes now."

// Schema is the JSON schema every generated document must satisfy.
const Schema = `{
  "type": "object",
  "required": ["notes"],
  "properties": {
    "notes": {
      "type": "array",
      "minItems": 10,
      "maxItems": 10,
      "items": {
        "type": "object",
        "required": ["id", "heading", "summary"],
        "properties": {
          "id": {"type": "integer", "minimum": 1, "maximum": 10},
          "heading": {"type": "string", "minLength": 1},
          "summary": {"type": "string", "minLength": 1, "maxLength": 150},
          "page_ref": {"type": ["integer", "null"], "minimum": 1}
        }
      }
    }
  }
}`

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("notes failed validation")

// Generator produces one JSON document from a system and user prompt.
type Generator interface {
	GenerateJSON(ctx context.Context, system, prompt string) ([]byte, error)
}

// Set is the saved notes document.
type Set struct {
	Notes []domain.Note `json:"notes"`
}

// OpenAI generates notes with a JSON-mode chat completion.
type OpenAI struct {
	Completions remote.Completions
	Model       string
}

func (o OpenAI) GenerateJSON(ctx context.Context, system, prompt string) ([]byte, error) {
	return o.Completions.CompleteJSON(ctx, o.Model, system, prompt)
}

// Generate asks gen for the notes and validates the result.
func Generate(ctx context.Context, gen Generator) (*Set, error) {
	raw, err := gen.GenerateJSON(ctx, SystemPrompt, UserPrompt)
	if err != nil {
		return nil, fmt.Errorf("generating notes: %w", err)
	}
	return Parse(raw)
}

var schemaLoader = gojsonschema.NewStringLoader(Schema)

// Parse validates raw against Schema and decodes it. Ids must also be
// unique.
func Parse(raw []byte) (*Set, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}

	var set Set
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	seen := make(map[int]bool, len(set.Notes))
	for _, n := range set.Notes {
		if seen[n.ID] {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalid, n.ID)
		}
		seen[n.ID] = true
	}
	return &set, nil
}

// Save writes set as indented JSON, replacing path atomically.
func Save(path string, set *Set) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding notes: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &domain.LocalIOError{Op: "create temp", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &domain.LocalIOError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &domain.LocalIOError{Op: "close", Path: tmpName, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return &domain.LocalIOError{Op: "chmod", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &domain.LocalIOError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
