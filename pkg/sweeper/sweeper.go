// Package sweeper deletes stale remote resources and local leftovers.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/nstogner/labassist/pkg/domain"
	"github.com/nstogner/labassist/pkg/remote"
	"github.com/nstogner/labassist/pkg/store"
)

// Options selects what a sweep deletes.
type Options struct {
	// MaxAge is the age a thread, file or vector index must exceed to be
	// deleted.
	MaxAge time.Duration
	// IncludeAssistant deletes the bound assistant regardless of age.
	IncludeAssistant bool
}

// ItemFailure is one resource that could not be deleted.
type ItemFailure struct {
	ID     string
	Reason string
}

// KindReport is the outcome for one resource kind.
type KindReport struct {
	Kind       domain.ResourceKind
	Enumerated int
	Eligible   int
	Deleted    int
	Failures   []ItemFailure
	// ListError is set when the kind could not be enumerated; nothing of
	// that kind was deleted.
	ListError string
}

// LocalReport is the outcome of removing local auxiliary files.
type LocalReport struct {
	Removed        []string
	Failures       []ItemFailure
	DataDirRemoved bool
}

// Report summarises one sweep.
type Report struct {
	ID      string
	Now     time.Time
	Options Options
	Kinds   []KindReport
	Local   LocalReport
}

// Kind returns the report for kind, or nil.
func (r *Report) Kind(kind domain.ResourceKind) *KindReport {
	for i := range r.Kinds {
		if r.Kinds[i].Kind == kind {
			return &r.Kinds[i]
		}
	}
	return nil
}

// FailureCount counts failed deletions and enumerations across the sweep.
func (r *Report) FailureCount() int {
	n := len(r.Local.Failures)
	for _, k := range r.Kinds {
		n += len(k.Failures)
		if k.ListError != "" {
			n++
		}
	}
	return n
}

// Config wires a Sweeper.
type Config struct {
	Inventory  remote.Inventory
	Identities store.IdentityStore
	// Journal, if set, receives a record of every sweep.
	Journal store.JournalStore
	// LocalFiles are removed after the remote kinds, best effort.
	LocalFiles []string
	// DataDir is removed last if it is empty.
	DataDir string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Sweeper runs retention sweeps.
type Sweeper struct {
	cfg Config
}

func New(cfg Config) *Sweeper {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Sweeper{cfg: cfg}
}

// Sweep deletes threads, assistant-purpose files and vector indexes older
// than opts.MaxAge, then the assistant if opts.IncludeAssistant is set, then
// the local auxiliary files. A single instant is used for every age
// comparison. Failures on individual items are recorded in the report and do
// not stop the sweep; only cancellation and invalid options return an error.
func (s *Sweeper) Sweep(ctx context.Context, opts Options) (*Report, error) {
	if opts.MaxAge < 0 {
		return nil, fmt.Errorf("max age must not be negative, got %s", opts.MaxAge)
	}

	report := &Report{ID: uuid.New().String(), Now: s.cfg.Now(), Options: opts}
	slog.Info("Starting sweep", "sweepID", report.ID, "maxAge", opts.MaxAge, "includeAssistant", opts.IncludeAssistant)

	for _, kind := range domain.SweepOrder {
		var kr KindReport
		var err error
		if kind == domain.KindAssistant {
			kr, err = s.sweepAssistant(ctx, opts.IncludeAssistant)
		} else {
			kr, err = s.sweepKind(ctx, kind, rules[kind], opts.MaxAge, report.Now)
		}
		report.Kinds = append(report.Kinds, kr)
		if err != nil {
			return report, err
		}
	}

	report.Local = s.sweepLocal()
	s.record(ctx, report)
	return report, nil
}

// sweepKind enumerates every record of one kind before deleting any.
func (s *Sweeper) sweepKind(ctx context.Context, kind domain.ResourceKind, eligible eligibility, maxAge time.Duration, now time.Time) (KindReport, error) {
	kr := KindReport{Kind: kind}

	records, err := s.cfg.Inventory.List(ctx, kind)
	if err != nil {
		if ctx.Err() != nil {
			return kr, ctx.Err()
		}
		slog.Warn("Failed to enumerate", "kind", kind, "error", err)
		kr.ListError = err.Error()
		return kr, nil
	}
	kr.Enumerated = len(records)

	var matched []domain.ResourceRecord
	for _, rec := range records {
		if eligible(rec, maxAge, now) {
			matched = append(matched, rec)
		}
	}
	kr.Eligible = len(matched)

	for _, rec := range matched {
		if err := ctx.Err(); err != nil {
			return kr, err
		}
		if err := s.cfg.Inventory.Delete(ctx, kind, rec.ID); err != nil {
			slog.Warn("Failed to delete", "kind", kind, "id", rec.ID, "error", err)
			kr.Failures = append(kr.Failures, ItemFailure{ID: rec.ID, Reason: err.Error()})
			continue
		}
		slog.Debug("Deleted", "kind", kind, "id", rec.ID, "age", rec.Age(now))
		kr.Deleted++
	}
	return kr, nil
}

// sweepAssistant deletes the bound assistant when opted in. The binding is
// removed only after the remote delete succeeds or the remote side reports
// the assistant is already gone.
func (s *Sweeper) sweepAssistant(ctx context.Context, include bool) (KindReport, error) {
	kr := KindReport{Kind: domain.KindAssistant}

	id, ok, err := s.cfg.Identities.Load(domain.RoleAssistant)
	if err != nil {
		kr.ListError = err.Error()
		return kr, nil
	}
	if !ok {
		return kr, nil
	}
	kr.Enumerated = 1
	if !include {
		return kr, nil
	}
	kr.Eligible = 1

	if err := ctx.Err(); err != nil {
		return kr, err
	}
	err = s.cfg.Inventory.Delete(ctx, domain.KindAssistant, id)
	switch {
	case err == nil:
		slog.Info("Deleted assistant", "assistantID", id)
	case errors.Is(err, domain.ErrNotFound):
		slog.Info("Assistant already deleted, removing binding", "assistantID", id)
	default:
		slog.Warn("Failed to delete assistant", "assistantID", id, "error", err)
		kr.Failures = append(kr.Failures, ItemFailure{ID: id, Reason: err.Error()})
		return kr, nil
	}
	kr.Deleted = 1

	if err := s.cfg.Identities.Delete(domain.RoleAssistant); err != nil {
		kr.Failures = append(kr.Failures, ItemFailure{ID: id, Reason: "removing binding: " + err.Error()})
	}
	return kr, nil
}

func (s *Sweeper) sweepLocal() LocalReport {
	var lr LocalReport
	for _, path := range s.cfg.LocalFiles {
		err := os.Remove(path)
		switch {
		case err == nil:
			lr.Removed = append(lr.Removed, path)
		case errors.Is(err, os.ErrNotExist):
		default:
			ioErr := &domain.LocalIOError{Op: "remove", Path: path, Err: err}
			slog.Warn("Failed to remove local file", "error", ioErr)
			lr.Failures = append(lr.Failures, ItemFailure{ID: path, Reason: ioErr.Error()})
		}
	}

	if s.cfg.DataDir != "" {
		empty, err := isEmptyDir(s.cfg.DataDir)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			lr.Failures = append(lr.Failures, ItemFailure{ID: s.cfg.DataDir, Reason: err.Error()})
		}
		if empty {
			if err := os.Remove(s.cfg.DataDir); err != nil {
				lr.Failures = append(lr.Failures, ItemFailure{ID: s.cfg.DataDir, Reason: err.Error()})
			} else {
				lr.DataDirRemoved = true
			}
		}
	}
	return lr
}

func isEmptyDir(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()
	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

func (s *Sweeper) record(ctx context.Context, report *Report) {
	if s.cfg.Journal == nil {
		return
	}
	run := &store.SweepRun{
		ID:               report.ID,
		StartedAt:        report.Now,
		MaxAge:           report.Options.MaxAge,
		IncludeAssistant: report.Options.IncludeAssistant,
		LocalRemoved:     len(report.Local.Removed),
	}
	for _, k := range report.Kinds {
		failed := len(k.Failures)
		if k.ListError != "" {
			failed++
		}
		run.Kinds = append(run.Kinds, store.SweepKindCount{
			Kind:       k.Kind,
			Enumerated: k.Enumerated,
			Eligible:   k.Eligible,
			Deleted:    k.Deleted,
			Failed:     failed,
		})
	}
	if err := s.cfg.Journal.RecordSweep(ctx, run); err != nil {
		slog.Warn("Failed to journal sweep", "sweepID", report.ID, "error", err)
	}
}
