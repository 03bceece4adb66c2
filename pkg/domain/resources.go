package domain

import "time"

// ResourceKind discriminates the remote resources the sweeper knows about.
type ResourceKind string

const (
	KindThread      ResourceKind = "thread"
	KindFile        ResourceKind = "file"
	KindVectorIndex ResourceKind = "vector_index"
	KindAssistant   ResourceKind = "assistant"
)

// SweepOrder is the order in which kinds are swept.
var SweepOrder = []ResourceKind{KindThread, KindFile, KindVectorIndex, KindAssistant}

// ResourceRecord is a handle to any enumerable remote resource.
type ResourceRecord struct {
	Kind      ResourceKind `json:"kind"`
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	// Purpose is set for files only.
	Purpose string `json:"purpose,omitempty"`
	// Name is informational (file name, vector store name) and never used
	// for classification.
	Name string `json:"name,omitempty"`
}

// Age returns how old the record is relative to now.
func (r ResourceRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}
