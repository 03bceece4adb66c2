package domain

import (
	"strings"
	"time"
)

// RoleAssistant is the identity-store role under which the lab assistant's
// remote ID is recorded.
const RoleAssistant = "assistant"

// RoleLastThread records the thread used by the most recent exchange.
const RoleLastThread = "last_thread"

// Capability names accepted in AssistantConfig.Tools.
const (
	ToolFileSearch      = "file_search"
	ToolCodeInterpreter = "code_interpreter"
)

// File purposes.
const (
	PurposeAssistants = "assistants"
	PurposeFineTune   = "fine-tune"
)

// AssistantConfig is the desired state of the remote assistant. Every field is
// sent on every create or update; the remote side never merges.
type AssistantConfig struct {
	Name           string   `json:"name" mapstructure:"name"`
	Model          string   `json:"model" mapstructure:"model"`
	Instructions   string   `json:"instructions" mapstructure:"instructions"`
	Tools          []string `json:"tools" mapstructure:"tools"`
	VectorStoreIDs []string `json:"vector_store_ids,omitempty" mapstructure:"vector_store_ids"`
	Temperature    float64  `json:"temperature" mapstructure:"temperature"`
	TopP           float64  `json:"top_p" mapstructure:"top_p"`
}

// Identity binds a logical role to the ID the provider assigned.
type Identity struct {
	Role     string `json:"role"`
	RemoteID string `json:"remote_id"`
	// Created is true when the identity was minted by this call rather than
	// loaded from the store.
	Created bool `json:"-"`
}

// Citation is a source annotation delivered alongside answer text.
type Citation struct {
	// Type is the annotation kind, e.g. "file_citation" or "file_path".
	Type string `json:"type"`
	// Text is the marker as it appears in the answer, e.g. "【4:0†notes.pdf】".
	Text   string `json:"text"`
	FileID string `json:"file_id,omitempty"`
	Quote  string `json:"quote,omitempty"`

	// FragmentIndex is the index of the fragment that was most recently
	// appended when the citation arrived, or -1 if none had arrived yet.
	FragmentIndex int `json:"fragment_index"`
	// Offset is the length in bytes of the answer text at delivery time.
	Offset int `json:"offset"`
}

// Answer accumulates a streamed response. Fragments and citations are kept in
// delivery order.
type Answer struct {
	ThreadID  string     `json:"thread_id"`
	Fragments []string   `json:"fragments"`
	Citations []Citation `json:"citations"`

	length int
}

// AppendFragment appends a text delta.
func (a *Answer) AppendFragment(text string) {
	a.Fragments = append(a.Fragments, text)
	a.length += len(text)
}

// Attach tags c with the current fragment and offset and records it.
func (a *Answer) Attach(c Citation) Citation {
	c.FragmentIndex = len(a.Fragments) - 1
	c.Offset = a.length
	a.Citations = append(a.Citations, c)
	return c
}

// Text returns the concatenated answer text.
func (a *Answer) Text() string {
	return strings.Join(a.Fragments, "")
}

// Len returns the length in bytes of the answer text so far.
func (a *Answer) Len() int { return a.length }

// ExchangeStatus is the terminal status recorded for one question/answer exchange.
type ExchangeStatus string

const (
	ExchangeComplete ExchangeStatus = "complete"
	ExchangeFailed   ExchangeStatus = "failed"
)

// Exchange is the journal record of one question and its outcome.
type Exchange struct {
	ID            string         `json:"id"`
	AssistantID   string         `json:"assistant_id"`
	ThreadID      string         `json:"thread_id"`
	Question      string         `json:"question"`
	Answer        string         `json:"answer"`
	CitationCount int            `json:"citation_count"`
	Status        ExchangeStatus `json:"status"`
	Error         string         `json:"error,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
}

// Note is one generated study note.
type Note struct {
	ID      int    `json:"id"`
	Heading string `json:"heading"`
	Summary string `json:"summary"`
	PageRef *int   `json:"page_ref,omitempty"`
}
