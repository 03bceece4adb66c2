// Package conversation asks the assistant one question at a time and
// assembles the streamed answer.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nstogner/labassist/pkg/domain"
	"github.com/nstogner/labassist/pkg/remote"
	"github.com/nstogner/labassist/pkg/store"
)

// ErrOutOfOrder is reported when a stream event arrives with an unexpected
// sequence number.
var ErrOutOfOrder = errors.New("stream event out of order")

// ErrEmptyQuestion is returned for blank questions.
var ErrEmptyQuestion = errors.New("question is empty")

// ErrNoEvents is reported when a run stream ends without delivering any
// event.
var ErrNoEvents = errors.New("run stream delivered no events")

// Observer is notified as the answer arrives, in delivery order.
type Observer interface {
	OnText(fragment string)
	OnCitation(c domain.Citation)
}

// StateObserver is optionally implemented by an Observer that wants to
// follow the exchange's state.
type StateObserver interface {
	OnState(s State)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Text     func(fragment string)
	Citation func(c domain.Citation)
	State    func(s State)
}

func (o ObserverFuncs) OnText(fragment string) {
	if o.Text != nil {
		o.Text(fragment)
	}
}

func (o ObserverFuncs) OnCitation(c domain.Citation) {
	if o.Citation != nil {
		o.Citation(c)
	}
}

func (o ObserverFuncs) OnState(s State) {
	if o.State != nil {
		o.State(s)
	}
}

// Engine runs exchanges against the remote assistant. Every question gets a
// fresh thread.
type Engine struct {
	threads remote.Threads
	runs    remote.Runs

	identities store.IdentityStore
	journal    store.JournalStore
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithIdentityStore records each exchange's thread under
// domain.RoleLastThread.
func WithIdentityStore(s store.IdentityStore) Option {
	return func(e *Engine) { e.identities = s }
}

// WithJournal appends every finished exchange to j.
func WithJournal(j store.JournalStore) Option {
	return func(e *Engine) { e.journal = j }
}

// WithClock overrides the time source used for journal timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(threads remote.Threads, runs remote.Runs, opts ...Option) *Engine {
	e := &Engine{threads: threads, runs: runs, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ask sends question to the assistant on a new thread and streams the
// answer to obs. The returned answer is only produced when the run
// completes; on failure the error is a *domain.StreamError (or a wrapped
// remote error if the run never started) and whatever obs already received
// stays displayed but is not an answer.
//
// Cancelling ctx abandons the exchange.
func (e *Engine) Ask(ctx context.Context, assistant domain.Identity, question string, obs Observer) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if assistant.RemoteID == "" {
		return nil, domain.ErrNoAssistant
	}
	if obs == nil {
		obs = ObserverFuncs{}
	}

	x := newExchange(obs)
	rec := &domain.Exchange{
		ID:          uuid.New().String(),
		AssistantID: assistant.RemoteID,
		Question:    question,
		StartedAt:   e.now(),
	}

	answer, err := e.run(ctx, x, assistant.RemoteID, question)
	rec.ThreadID = x.answer.ThreadID
	rec.FinishedAt = e.now()
	if err != nil {
		rec.Status = domain.ExchangeFailed
		rec.Error = err.Error()
		rec.Answer = x.answer.Text()
	} else {
		rec.Status = domain.ExchangeComplete
		rec.Answer = answer.Text()
		rec.CitationCount = len(answer.Citations)
	}
	e.record(ctx, rec)
	return answer, err
}

func (e *Engine) run(ctx context.Context, x *exchange, assistantID, question string) (*domain.Answer, error) {
	threadID, err := e.threads.CreateThread(ctx, question)
	if err != nil {
		x.fail()
		return nil, fmt.Errorf("creating thread: %w", err)
	}
	x.answer.ThreadID = threadID
	slog.Debug("Created thread", "threadID", threadID, "assistantID", assistantID)
	e.rememberThread(threadID)

	stream, err := e.runs.StreamRun(ctx, threadID, assistantID)
	if err != nil {
		x.fail()
		return nil, fmt.Errorf("starting run: %w", err)
	}
	defer stream.Close()

	for ev, err := range stream.Events() {
		if err != nil {
			return nil, x.streamFailure(err)
		}
		if err := ctx.Err(); err != nil {
			return nil, x.streamFailure(err)
		}
		if x.state == StateAwaitingRun {
			x.transition(StateStreaming)
		}
		if err := x.apply(ev); err != nil {
			return nil, x.streamFailure(err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, x.streamFailure(err)
	}
	if x.state == StateAwaitingRun {
		return nil, x.streamFailure(ErrNoEvents)
	}

	x.transition(StateComplete)
	slog.Debug("Exchange complete", "threadID", threadID, "fragments", len(x.answer.Fragments),
		"citations", len(x.answer.Citations), "bytes", x.answer.Len())
	return x.answer, nil
}

func (e *Engine) rememberThread(threadID string) {
	if e.identities == nil {
		return
	}
	if err := e.identities.Save(domain.RoleLastThread, threadID); err != nil {
		slog.Warn("Failed to record last thread", "threadID", threadID, "error", err)
	}
}

func (e *Engine) record(ctx context.Context, rec *domain.Exchange) {
	if e.journal == nil {
		return
	}
	// The exchange may have been cancelled; the record is still written.
	if err := e.journal.RecordExchange(context.WithoutCancel(ctx), rec); err != nil {
		slog.Warn("Failed to journal exchange", "exchangeID", rec.ID, "error", err)
	}
}
