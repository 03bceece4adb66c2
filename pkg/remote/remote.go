// Package remote describes the provider-side operations the lab assistant
// depends on. Implementations live in subpackages.
package remote

import (
	"context"
	"io"
	"iter"

	"github.com/nstogner/labassist/pkg/domain"
)

// Assistants manages the remote assistant resource.
type Assistants interface {
	// CreateAssistant creates an assistant from cfg and returns its id.
	CreateAssistant(ctx context.Context, cfg domain.AssistantConfig) (string, error)
	// UpdateAssistant replaces every field of the assistant with cfg.
	UpdateAssistant(ctx context.Context, id string, cfg domain.AssistantConfig) error
	DeleteAssistant(ctx context.Context, id string) error
}

// Threads manages conversation threads.
type Threads interface {
	// CreateThread creates a thread seeded with a single user message.
	CreateThread(ctx context.Context, userMessage string) (string, error)
	DeleteThread(ctx context.Context, id string) error
	ListThreads(ctx context.Context) ([]domain.ResourceRecord, error)
}

// Files manages uploaded files.
type Files interface {
	UploadFile(ctx context.Context, name string, r io.Reader, purpose string) (string, error)
	ListFiles(ctx context.Context) ([]domain.ResourceRecord, error)
	DeleteFile(ctx context.Context, id string) error
}

// VectorStores manages vector indexes built from uploaded files.
type VectorStores interface {
	CreateVectorStore(ctx context.Context, name string, fileIDs []string) (string, error)
	ListVectorStores(ctx context.Context) ([]domain.ResourceRecord, error)
	DeleteVectorStore(ctx context.Context, id string) error
}

// Runs starts assistant runs on a thread.
type Runs interface {
	// StreamRun starts a run and returns its event stream. The caller must
	// Close the stream, even if iteration ended early.
	StreamRun(ctx context.Context, threadID, assistantID string) (RunStream, error)
}

// Completions produces a single JSON object from a prompt.
type Completions interface {
	CompleteJSON(ctx context.Context, model, system, prompt string) ([]byte, error)
}

// Client is the full remote surface.
type Client interface {
	Assistants
	Threads
	Files
	VectorStores
	Runs
	Completions
}

// EventKind classifies a run stream event.
type EventKind int

const (
	// EventOther is any event without meaning to the conversation.
	EventOther EventKind = iota
	// EventTextDelta carries an answer text fragment.
	EventTextDelta
	// EventCitation carries a source annotation.
	EventCitation
)

func (k EventKind) String() string {
	switch k {
	case EventTextDelta:
		return "text_delta"
	case EventCitation:
		return "citation"
	default:
		return "other"
	}
}

// Event is one item of a run stream.
type Event struct {
	Kind EventKind
	// Seq increases by one for every event on a stream, starting at 1.
	Seq int
	// Name is the provider event name, e.g. "thread.run.created".
	Name     string
	Text     string
	Citation *domain.Citation
}

// RunStream is the ordered event sequence of one run. A normal end of the
// sequence means the run completed; a non-nil error ends it as failed.
type RunStream interface {
	Events() iter.Seq2[Event, error]
	Close() error
}
