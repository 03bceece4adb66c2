// Package fake provides an in-memory remote.Client for tests.
package fake

import (
	"context"
	"fmt"
	"io"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/nstogner/labassist/pkg/domain"
	"github.com/nstogner/labassist/pkg/remote"
)

// ErrNotFound is returned for unknown ids.
var ErrNotFound = domain.ErrNotFound

// Verify interface compliance.
var _ remote.Client = (*Client)(nil)

// Client is an in-memory remote. The zero value is not usable; call New.
type Client struct {
	mu sync.Mutex

	// Now stamps created resources. Defaults to time.Now.
	Now func() time.Time

	// RunEvents are yielded, as given, by every stream StreamRun returns,
	// followed by RunErr if it is set.
	RunEvents []remote.Event
	RunErr    error

	// JSONResponse is returned by CompleteJSON.
	JSONResponse []byte

	Assistants   map[string]domain.AssistantConfig
	Threads      map[string]domain.ResourceRecord
	Files        map[string]domain.ResourceRecord
	VectorStores map[string]domain.ResourceRecord
	// Messages holds the seed message of every created thread.
	Messages map[string]string
	// Uploads holds the content of every uploaded file.
	Uploads map[string][]byte

	// Calls records each operation as "op id" in call order.
	Calls []string

	failures map[string]error
	nextID   int
}

func New() *Client {
	return &Client{
		Now:          time.Now,
		Assistants:   map[string]domain.AssistantConfig{},
		Threads:      map[string]domain.ResourceRecord{},
		Files:        map[string]domain.ResourceRecord{},
		VectorStores: map[string]domain.ResourceRecord{},
		Messages:     map[string]string{},
		Uploads:      map[string][]byte{},
		failures:     map[string]error{},
	}
}

// FailOn makes op fail with err. An empty id matches every id. Operation
// names are the method names, e.g. "DeleteThread".
func (c *Client) FailOn(op, id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[op+" "+id] = err
}

// AddThread seeds an existing thread.
func (c *Client) AddThread(id string, created time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Threads[id] = domain.ResourceRecord{Kind: domain.KindThread, ID: id, CreatedAt: created}
}

// AddFile seeds an existing file.
func (c *Client) AddFile(id, purpose string, created time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Files[id] = domain.ResourceRecord{Kind: domain.KindFile, ID: id, CreatedAt: created, Purpose: purpose}
}

// AddVectorStore seeds an existing vector store.
func (c *Client) AddVectorStore(id string, created time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.VectorStores[id] = domain.ResourceRecord{Kind: domain.KindVectorIndex, ID: id, CreatedAt: created}
}

// CallCount returns how many times op was called.
func (c *Client) CallCount(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.Calls {
		if len(call) >= len(op) && call[:len(op)] == op && (len(call) == len(op) || call[len(op)] == ' ') {
			n++
		}
	}
	return n
}

// begin records the call and returns the injected failure, if any. c.mu
// must be held.
func (c *Client) begin(op, id string) error {
	c.Calls = append(c.Calls, op+" "+id)
	if err, ok := c.failures[op+" "+id]; ok {
		return err
	}
	if err, ok := c.failures[op+" "]; ok {
		return err
	}
	return nil
}

func (c *Client) newID(prefix string) string {
	c.nextID++
	return fmt.Sprintf("%s_%d", prefix, c.nextID)
}

func (c *Client) CreateAssistant(ctx context.Context, cfg domain.AssistantConfig) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("CreateAssistant", ""); err != nil {
		return "", err
	}
	id := c.newID("asst")
	c.Assistants[id] = cfg
	return id, nil
}

func (c *Client) UpdateAssistant(ctx context.Context, id string, cfg domain.AssistantConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("UpdateAssistant", id); err != nil {
		return err
	}
	if _, ok := c.Assistants[id]; !ok {
		return &domain.RemoteError{Op: "update assistant", Kind: domain.KindAssistant, ID: id, Err: ErrNotFound}
	}
	c.Assistants[id] = cfg
	return nil
}

func (c *Client) DeleteAssistant(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("DeleteAssistant", id); err != nil {
		return err
	}
	if _, ok := c.Assistants[id]; !ok {
		return &domain.RemoteError{Op: "delete assistant", Kind: domain.KindAssistant, ID: id, Err: ErrNotFound}
	}
	delete(c.Assistants, id)
	return nil
}

func (c *Client) CreateThread(ctx context.Context, userMessage string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("CreateThread", ""); err != nil {
		return "", err
	}
	id := c.newID("thread")
	c.Threads[id] = domain.ResourceRecord{Kind: domain.KindThread, ID: id, CreatedAt: c.Now()}
	c.Messages[id] = userMessage
	return id, nil
}

func (c *Client) DeleteThread(ctx context.Context, id string) error {
	return c.deleteRecord("DeleteThread", c.Threads, id)
}

func (c *Client) ListThreads(ctx context.Context) ([]domain.ResourceRecord, error) {
	return c.list("ListThreads", c.Threads)
}

func (c *Client) UploadFile(ctx context.Context, name string, r io.Reader, purpose string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("UploadFile", name); err != nil {
		return "", err
	}
	id := c.newID("file")
	c.Files[id] = domain.ResourceRecord{Kind: domain.KindFile, ID: id, CreatedAt: c.Now(), Purpose: purpose, Name: name}
	c.Uploads[id] = data
	return id, nil
}

func (c *Client) ListFiles(ctx context.Context) ([]domain.ResourceRecord, error) {
	return c.list("ListFiles", c.Files)
}

func (c *Client) DeleteFile(ctx context.Context, id string) error {
	return c.deleteRecord("DeleteFile", c.Files, id)
}

func (c *Client) CreateVectorStore(ctx context.Context, name string, fileIDs []string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("CreateVectorStore", ""); err != nil {
		return "", err
	}
	for _, f := range fileIDs {
		if _, ok := c.Files[f]; !ok {
			return "", &domain.RemoteError{Op: "create vector store", Kind: domain.KindFile, ID: f, Err: ErrNotFound}
		}
	}
	id := c.newID("vs")
	c.VectorStores[id] = domain.ResourceRecord{Kind: domain.KindVectorIndex, ID: id, CreatedAt: c.Now(), Name: name}
	return id, nil
}

func (c *Client) ListVectorStores(ctx context.Context) ([]domain.ResourceRecord, error) {
	return c.list("ListVectorStores", c.VectorStores)
}

func (c *Client) DeleteVectorStore(ctx context.Context, id string) error {
	return c.deleteRecord("DeleteVectorStore", c.VectorStores, id)
}

func (c *Client) StreamRun(ctx context.Context, threadID, assistantID string) (remote.RunStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("StreamRun", threadID); err != nil {
		return nil, err
	}
	if _, ok := c.Threads[threadID]; !ok {
		return nil, &domain.RemoteError{Op: "start run", Kind: domain.KindThread, ID: threadID, Err: ErrNotFound}
	}
	if _, ok := c.Assistants[assistantID]; !ok {
		return nil, &domain.RemoteError{Op: "start run", Kind: domain.KindAssistant, ID: assistantID, Err: ErrNotFound}
	}
	return &Stream{Script: append([]remote.Event(nil), c.RunEvents...), Err: c.RunErr}, nil
}

func (c *Client) CompleteJSON(ctx context.Context, model, system, prompt string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("CompleteJSON", ""); err != nil {
		return nil, err
	}
	return c.JSONResponse, nil
}

func (c *Client) deleteRecord(op string, m map[string]domain.ResourceRecord, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(op, id); err != nil {
		return err
	}
	rec, ok := m[id]
	if !ok {
		return &domain.RemoteError{Op: op, ID: id, Err: ErrNotFound}
	}
	delete(m, rec.ID)
	return nil
}

// list returns records oldest first.
func (c *Client) list(op string, m map[string]domain.ResourceRecord) ([]domain.ResourceRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(op, ""); err != nil {
		return nil, err
	}
	records := make([]domain.ResourceRecord, 0, len(m))
	for _, r := range m {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// Stream is a scripted remote.RunStream.
type Stream struct {
	Script []remote.Event
	// Err, if set, ends the sequence after Script.
	Err    error
	Closed bool
}

func (s *Stream) Events() iter.Seq2[remote.Event, error] {
	return func(yield func(remote.Event, error) bool) {
		for _, ev := range s.Script {
			if !yield(ev, nil) {
				return
			}
		}
		if s.Err != nil {
			yield(remote.Event{}, s.Err)
		}
	}
}

func (s *Stream) Close() error {
	s.Closed = true
	return nil
}

// Sequence numbers events from 1 in the order given.
func Sequence(events ...remote.Event) []remote.Event {
	out := make([]remote.Event, len(events))
	for i, ev := range events {
		ev.Seq = i + 1
		out[i] = ev
	}
	return out
}

// Text is a text delta event.
func Text(s string) remote.Event {
	return remote.Event{Kind: remote.EventTextDelta, Name: "thread.message.delta", Text: s}
}

// Cite is a file citation event.
func Cite(marker, fileID string) remote.Event {
	return remote.Event{
		Kind:     remote.EventCitation,
		Name:     "thread.message.delta",
		Citation: &domain.Citation{Type: "file_citation", Text: marker, FileID: fileID},
	}
}

// Other is an event the conversation ignores.
func Other(name string) remote.Event {
	return remote.Event{Kind: remote.EventOther, Name: name}
}
