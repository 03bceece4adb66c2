package store

import (
	"context"
	"time"

	"github.com/nstogner/labassist/pkg/domain"
)

// IdentityStore persists role → remote ID bindings outside process memory.
// Each role has at most one binding.
type IdentityStore interface {
	// Load returns the remote ID bound to role. ok is false when no binding
	// exists; that is not an error.
	Load(role string) (id string, ok bool, err error)

	// Save binds role to id, replacing any previous binding. Readers observe
	// either the old or the new value, never a partial write.
	Save(role, id string) error

	// Delete removes the binding for role. Deleting a missing binding is not
	// an error.
	Delete(role string) error
}

// JournalStore records what the CLI did. It is append-only audit data and is
// never consulted to answer a question or to decide what to sweep.
type JournalStore interface {
	// RecordExchange persists the outcome of one question/answer exchange.
	RecordExchange(ctx context.Context, ex *domain.Exchange) error

	// RecentExchanges returns the most recent exchanges, newest first.
	// If limit > 0, returns at most that many.
	RecentExchanges(ctx context.Context, limit int) ([]domain.Exchange, error)

	// RecordSweep persists a sweep summary.
	RecordSweep(ctx context.Context, run *SweepRun) error

	// RecentSweeps returns the most recent sweep summaries, newest first.
	RecentSweeps(ctx context.Context, limit int) ([]SweepRun, error)
}

// SweepRun is the journal form of a sweep report.
type SweepRun struct {
	ID               string
	StartedAt        time.Time
	MaxAge           time.Duration
	IncludeAssistant bool
	Kinds            []SweepKindCount
	LocalRemoved     int
}

// SweepKindCount is the per-kind tally of a sweep.
type SweepKindCount struct {
	Kind       domain.ResourceKind
	Enumerated int
	Eligible   int
	Deleted    int
	Failed     int
}
