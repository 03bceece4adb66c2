package conversation

import (
	"fmt"

	"github.com/nstogner/labassist/pkg/domain"
	"github.com/nstogner/labassist/pkg/remote"
)

// State is the phase of one exchange.
type State int

const (
	StateAwaitingRun State = iota
	StateStreaming
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingRun:
		return "AWAITING_RUN"
	case StateStreaming:
		return "STREAMING"
	case StateComplete:
		return "COMPLETE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

var transitions = map[State][]State{
	StateAwaitingRun: {StateStreaming, StateFailed},
	StateStreaming:   {StateComplete, StateFailed},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// exchange holds the state of one question while its answer streams in.
type exchange struct {
	state   State
	lastSeq int
	answer  *domain.Answer
	obs     Observer
}

func newExchange(obs Observer) *exchange {
	x := &exchange{state: StateAwaitingRun, answer: &domain.Answer{}, obs: obs}
	x.notifyState()
	return x
}

func (x *exchange) transition(to State) {
	if !canTransition(x.state, to) {
		panic(fmt.Sprintf("conversation: invalid transition %s -> %s", x.state, to))
	}
	x.state = to
	x.notifyState()
}

func (x *exchange) notifyState() {
	if so, ok := x.obs.(StateObserver); ok {
		so.OnState(x.state)
	}
}

func (x *exchange) fail() {
	x.transition(StateFailed)
}

func (x *exchange) streamFailure(err error) error {
	x.fail()
	return &domain.StreamError{
		ThreadID:  x.answer.ThreadID,
		Displayed: len(x.answer.Fragments),
		Err:       err,
	}
}

// apply folds one event into the answer and notifies the observer.
func (x *exchange) apply(ev remote.Event) error {
	if ev.Seq != x.lastSeq+1 {
		return fmt.Errorf("%w: got seq %d after %d", ErrOutOfOrder, ev.Seq, x.lastSeq)
	}
	x.lastSeq = ev.Seq

	switch ev.Kind {
	case remote.EventTextDelta:
		x.answer.AppendFragment(ev.Text)
		x.obs.OnText(ev.Text)
	case remote.EventCitation:
		if ev.Citation == nil {
			return fmt.Errorf("citation event %d carries no citation", ev.Seq)
		}
		c := x.answer.Attach(*ev.Citation)
		x.obs.OnCitation(c)
	}
	return nil
}
