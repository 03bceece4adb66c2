package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstogner/labassist/pkg/domain"
	"github.com/nstogner/labassist/pkg/remote"
	"github.com/nstogner/labassist/pkg/remote/fake"
	"github.com/nstogner/labassist/pkg/store"
	"github.com/nstogner/labassist/pkg/store/file"
)

// recorder captures observer callbacks in order.
type recorder struct {
	calls  []string
	cites  []domain.Citation
	states []State
}

func (r *recorder) OnText(fragment string) { r.calls = append(r.calls, "text:"+fragment) }
func (r *recorder) OnCitation(c domain.Citation) {
	r.calls = append(r.calls, "cite:"+c.FileID)
	r.cites = append(r.cites, c)
}
func (r *recorder) OnState(s State) { r.states = append(r.states, s) }

// memJournal is an in-memory JournalStore.
type memJournal struct {
	exchanges []domain.Exchange
}

func (j *memJournal) RecordExchange(ctx context.Context, ex *domain.Exchange) error {
	j.exchanges = append(j.exchanges, *ex)
	return nil
}
func (j *memJournal) RecentExchanges(ctx context.Context, limit int) ([]domain.Exchange, error) {
	return j.exchanges, nil
}
func (j *memJournal) RecordSweep(ctx context.Context, run *store.SweepRun) error { return nil }
func (j *memJournal) RecentSweeps(ctx context.Context, limit int) ([]store.SweepRun, error) {
	return nil, nil
}

func setup(t *testing.T, events ...remote.Event) (*fake.Client, domain.Identity) {
	t.Helper()
	c := fake.New()
	c.Assistants["asst_1"] = domain.AssistantConfig{Name: "lab"}
	c.RunEvents = fake.Sequence(events...)
	return c, domain.Identity{Role: domain.RoleAssistant, RemoteID: "asst_1"}
}

func TestAskStreamingOrder(t *testing.T) {
	c, asst := setup(t,
		fake.Other("thread.run.created"),
		fake.Text("Hello "),
		fake.Cite("【0†A】", "A"),
		fake.Text("world"),
		fake.Text("!"),
		fake.Other("thread.run.completed"),
	)
	rec := &recorder{}

	answer, err := New(c, c).Ask(context.Background(), asst, "What is RAG?", rec)
	require.NoError(t, err)

	assert.Equal(t, "Hello world!", answer.Text())
	assert.Equal(t, []string{"text:Hello ", "cite:A", "text:world", "text:!"}, rec.calls)
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, 0, answer.Citations[0].FragmentIndex)
	assert.Equal(t, len("Hello "), answer.Citations[0].Offset)
	assert.Equal(t, answer.Citations[0], rec.cites[0])
	assert.Equal(t, []State{StateAwaitingRun, StateStreaming, StateComplete}, rec.states)
}

func TestAskFreshThreadPerQuestion(t *testing.T) {
	c, asst := setup(t, fake.Text("ok"))
	e := New(c, c)

	a1, err := e.Ask(context.Background(), asst, "one", nil)
	require.NoError(t, err)
	a2, err := e.Ask(context.Background(), asst, "two", nil)
	require.NoError(t, err)

	assert.NotEqual(t, a1.ThreadID, a2.ThreadID)
	assert.Equal(t, "one", c.Messages[a1.ThreadID])
	assert.Equal(t, "two", c.Messages[a2.ThreadID])
	assert.Equal(t, 2, c.CallCount("CreateThread"))
}

func TestAskCitationBeforeText(t *testing.T) {
	c, asst := setup(t, fake.Cite("[1]", "A"), fake.Text("x"))

	answer, err := New(c, c).Ask(context.Background(), asst, "q", nil)
	require.NoError(t, err)
	assert.Equal(t, -1, answer.Citations[0].FragmentIndex)
	assert.Equal(t, 0, answer.Citations[0].Offset)
}

func TestAskStreamFailureKeepsDisplayed(t *testing.T) {
	c, asst := setup(t, fake.Text("partial "), fake.Text("answer"))
	c.RunErr = errors.New("run failed: server_error")
	rec := &recorder{}
	journal := &memJournal{}

	answer, err := New(c, c, WithJournal(journal)).Ask(context.Background(), asst, "q", rec)
	assert.Nil(t, answer)

	var streamErr *domain.StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, 2, streamErr.Displayed)
	assert.NotEmpty(t, streamErr.ThreadID)
	assert.Equal(t, []string{"text:partial ", "text:answer"}, rec.calls)
	assert.Equal(t, StateFailed, rec.states[len(rec.states)-1])

	require.Len(t, journal.exchanges, 1)
	assert.Equal(t, domain.ExchangeFailed, journal.exchanges[0].Status)
	assert.Equal(t, "partial answer", journal.exchanges[0].Answer)
}

func TestAskStreamErrorBeforeFirstEvent(t *testing.T) {
	c, asst := setup(t)
	c.RunErr = errors.New("connection reset")
	rec := &recorder{}

	_, err := New(c, c).Ask(context.Background(), asst, "q", rec)
	var streamErr *domain.StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, 0, streamErr.Displayed)
	assert.Equal(t, []State{StateAwaitingRun, StateFailed}, rec.states)
}

func TestAskEmptyStreamFails(t *testing.T) {
	c, asst := setup(t)
	rec := &recorder{}

	answer, err := New(c, c).Ask(context.Background(), asst, "q", rec)
	assert.Nil(t, answer)
	assert.ErrorIs(t, err, ErrNoEvents)
	assert.Equal(t, []State{StateAwaitingRun, StateFailed}, rec.states)
}

func TestAskOutOfOrderIsProtocolError(t *testing.T) {
	c, asst := setup(t)
	c.RunEvents = []remote.Event{
		{Kind: remote.EventTextDelta, Seq: 1, Text: "a"},
		{Kind: remote.EventTextDelta, Seq: 3, Text: "c"},
		{Kind: remote.EventTextDelta, Seq: 2, Text: "b"},
	}
	rec := &recorder{}

	_, err := New(c, c).Ask(context.Background(), asst, "q", rec)
	assert.ErrorIs(t, err, ErrOutOfOrder)
	assert.Equal(t, []string{"text:a"}, rec.calls)
}

func TestAskCreateThreadFailure(t *testing.T) {
	c, asst := setup(t, fake.Text("never"))
	c.FailOn("CreateThread", "", errors.New("unauthorized"))
	rec := &recorder{}

	_, err := New(c, c).Ask(context.Background(), asst, "q", rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
	assert.Equal(t, []State{StateAwaitingRun, StateFailed}, rec.states)
	assert.Equal(t, 0, c.CallCount("StreamRun"))
}

func TestAskCancelledStopsPulling(t *testing.T) {
	c, asst := setup(t, fake.Text("a"), fake.Text("b"), fake.Text("c"))
	ctx, cancel := context.WithCancel(context.Background())
	var got []string
	obs := ObserverFuncs{Text: func(s string) {
		got = append(got, s)
		cancel()
	}}

	_, err := New(c, c).Ask(ctx, asst, "q", obs)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a"}, got)
}

func TestAskRecordsLastThreadAndJournal(t *testing.T) {
	c, asst := setup(t, fake.Text("hi"), fake.Cite("[1]", "F"))
	ids := file.New(t.TempDir())
	journal := &memJournal{}
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	answer, err := New(c, c,
		WithIdentityStore(ids),
		WithJournal(journal),
		WithClock(func() time.Time { return now }),
	).Ask(context.Background(), asst, "  hello?  ", nil)
	require.NoError(t, err)

	last, ok, err := ids.Load(domain.RoleLastThread)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, answer.ThreadID, last)

	require.Len(t, journal.exchanges, 1)
	ex := journal.exchanges[0]
	assert.Equal(t, domain.ExchangeComplete, ex.Status)
	assert.Equal(t, "hello?", ex.Question)
	assert.Equal(t, "hi", ex.Answer)
	assert.Equal(t, 1, ex.CitationCount)
	assert.Equal(t, "asst_1", ex.AssistantID)
	assert.Equal(t, now, ex.StartedAt)
	assert.NotEmpty(t, ex.ID)
}

func TestAskRejectsEmptyQuestionAndMissingAssistant(t *testing.T) {
	c, asst := setup(t)
	e := New(c, c)

	_, err := e.Ask(context.Background(), asst, "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	_, err = e.Ask(context.Background(), domain.Identity{}, "q", nil)
	assert.ErrorIs(t, err, domain.ErrNoAssistant)
	assert.Empty(t, c.Calls)
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateAwaitingRun, StateStreaming, true},
		{StateAwaitingRun, StateFailed, true},
		{StateAwaitingRun, StateComplete, false},
		{StateStreaming, StateComplete, true},
		{StateStreaming, StateFailed, true},
		{StateComplete, StateFailed, false},
		{StateFailed, StateStreaming, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.ok, canTransition(tt.from, tt.to))
		})
	}
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateStreaming.Terminal())
}
