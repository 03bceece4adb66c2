package domain

import (
	"errors"
	"fmt"
)

// ErrNoAssistant is returned when an operation needs the assistant binding
// and none has been recorded yet.
var ErrNoAssistant = errors.New("no assistant recorded; run bootstrap first")

// ErrNotFound matches remote errors for resources that do not exist.
var ErrNotFound = errors.New("not found")

// ConfigError reports missing or invalid configuration. It is fatal before
// any remote call is made.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Key, e.Reason)
}

// RemoteError wraps a failed call to the remote provider.
type RemoteError struct {
	Op   string
	ID   string
	Kind ResourceKind
	Err  error
}

func (e *RemoteError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("remote %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// StreamError reports an exchange that ended in the failed state. Fragments
// already shown to the observer remain displayed but are not an answer.
type StreamError struct {
	ThreadID  string
	Displayed int
	Err       error
}

func (e *StreamError) Error() string {
	if e.Displayed > 0 {
		return fmt.Sprintf("answer stream failed after %d fragments: %v", e.Displayed, e.Err)
	}
	return fmt.Sprintf("answer stream failed: %v", e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// LocalIOError wraps a failed local file operation.
type LocalIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *LocalIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *LocalIOError) Unwrap() error { return e.Err }
