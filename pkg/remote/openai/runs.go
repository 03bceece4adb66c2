package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/nstogner/labassist/pkg/domain"
	"github.com/nstogner/labassist/pkg/remote"
)

// ErrStreamTruncated is returned when the event stream ends without the run
// reaching a terminal state.
var ErrStreamTruncated = errors.New("run stream ended before completion")

// RunError reports a run that reached a non-successful terminal state, or an
// error event on the stream.
type RunError struct {
	RunID   string
	Status  string
	Code    string
	Message string
}

func (e *RunError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "no details"
	}
	if e.Code != "" {
		return fmt.Sprintf("run %s: %s: %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("run %s: %s", e.Status, msg)
}

type runRequest struct {
	AssistantID string `json:"assistant_id"`
	Stream      bool   `json:"stream"`
}

// StreamRun starts a run on threadID and returns its SSE event stream.
func (c *Client) StreamRun(ctx context.Context, threadID, assistantID string) (remote.RunStream, error) {
	b, err := json.Marshal(runRequest{AssistantID: assistantID, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	resp, err := c.send(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/runs", nil,
		bytes.NewReader(b), "application/json", true)
	if err != nil {
		return nil, remoteErr("start run", domain.KindThread, threadID, err)
	}
	return newRunStream(resp.Body), nil
}

type runStream struct {
	body      io.ReadCloser
	scanner   *sseScanner
	seq       int
	consumed  bool
	completed bool
}

func newRunStream(body io.ReadCloser) *runStream {
	return &runStream{body: body, scanner: newSSEScanner(body)}
}

// Events yields the stream's events in arrival order. The sequence can be
// ranged over once.
func (s *runStream) Events() iter.Seq2[remote.Event, error] {
	return func(yield func(remote.Event, error) bool) {
		if s.consumed {
			yield(remote.Event{}, errors.New("run stream already consumed"))
			return
		}
		s.consumed = true

		for s.scanner.Next() {
			raw := s.scanner.Event()
			if raw.Type == "done" || raw.Data == "[DONE]" {
				return
			}
			events, err := s.translate(raw)
			if err != nil {
				yield(remote.Event{}, err)
				return
			}
			for _, ev := range events {
				if !yield(ev, nil) {
					return
				}
			}
		}
		if err := s.scanner.Err(); err != nil {
			yield(remote.Event{}, fmt.Errorf("reading run stream: %w", err))
			return
		}
		if !s.completed {
			yield(remote.Event{}, ErrStreamTruncated)
		}
	}
}

func (s *runStream) Close() error {
	return s.body.Close()
}

func (s *runStream) next(ev remote.Event) remote.Event {
	s.seq++
	ev.Seq = s.seq
	return ev
}

type runObject struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details"`
}

type messageDelta struct {
	Delta struct {
		Content []struct {
			Index int    `json:"index"`
			Type  string `json:"type"`
			Text  *struct {
				Value       string       `json:"value"`
				Annotations []annotation `json:"annotations"`
			} `json:"text"`
		} `json:"content"`
	} `json:"delta"`
}

type annotation struct {
	Type         string `json:"type"`
	Text         string `json:"text"`
	FileCitation *struct {
		FileID string `json:"file_id"`
		Quote  string `json:"quote"`
	} `json:"file_citation"`
	FilePath *struct {
		FileID string `json:"file_id"`
	} `json:"file_path"`
}

// translate maps one SSE event to zero or more stream events.
func (s *runStream) translate(raw sseEvent) ([]remote.Event, error) {
	switch raw.Type {
	case "thread.message.delta":
		var delta messageDelta
		if err := json.Unmarshal([]byte(raw.Data), &delta); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", raw.Type, err)
		}
		var out []remote.Event
		for _, part := range delta.Delta.Content {
			if part.Type != "text" || part.Text == nil {
				continue
			}
			if part.Text.Value != "" {
				out = append(out, s.next(remote.Event{Kind: remote.EventTextDelta, Name: raw.Type, Text: part.Text.Value}))
			}
			for _, a := range part.Text.Annotations {
				c, ok := a.citation()
				if !ok {
					continue
				}
				out = append(out, s.next(remote.Event{Kind: remote.EventCitation, Name: raw.Type, Citation: c}))
			}
		}
		return out, nil

	case "thread.run.completed":
		s.completed = true
		return []remote.Event{s.next(remote.Event{Kind: remote.EventOther, Name: raw.Type})}, nil

	case "thread.run.failed", "thread.run.cancelled", "thread.run.expired",
		"thread.run.incomplete", "thread.run.requires_action":
		return nil, runFailure(raw)

	case "error":
		return nil, streamErrorEvent(raw.Data)

	default:
		slog.Log(context.Background(), LevelTrace, "Run stream event", "event", raw.Type)
		return []remote.Event{s.next(remote.Event{Kind: remote.EventOther, Name: raw.Type})}, nil
	}
}

func (a annotation) citation() (*domain.Citation, bool) {
	switch {
	case a.Type == "file_citation" && a.FileCitation != nil:
		return &domain.Citation{Type: a.Type, Text: a.Text, FileID: a.FileCitation.FileID, Quote: a.FileCitation.Quote}, true
	case a.Type == "file_path" && a.FilePath != nil:
		return &domain.Citation{Type: a.Type, Text: a.Text, FileID: a.FilePath.FileID}, true
	default:
		return nil, false
	}
}

func runFailure(raw sseEvent) error {
	var run runObject
	if err := json.Unmarshal([]byte(raw.Data), &run); err != nil {
		return fmt.Errorf("decoding %s: %w", raw.Type, err)
	}
	re := &RunError{RunID: run.ID, Status: run.Status}
	if re.Status == "" {
		re.Status = raw.Type
	}
	if run.LastError != nil {
		re.Code = run.LastError.Code
		re.Message = run.LastError.Message
	}
	if run.IncompleteDetails != nil && re.Message == "" {
		re.Message = run.IncompleteDetails.Reason
	}
	return re
}

func streamErrorEvent(data string) error {
	var wire struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(data), &wire); err != nil {
		return &RunError{Status: "error", Message: data}
	}
	re := &RunError{Status: "error", Code: wire.Code, Message: wire.Message}
	if wire.Error != nil {
		re.Code = wire.Error.Code
		re.Message = wire.Error.Message
	}
	return re
}
