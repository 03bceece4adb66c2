package sqlite

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nstogner/labassist/pkg/domain"
	"github.com/nstogner/labassist/pkg/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	tmpFile := t.TempDir() + "/test.db"
	s, err := New(tmpFile)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
		os.Remove(tmpFile)
	})
	return s
}

func TestExchangeRecordAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ex := &domain.Exchange{
			ID:          uuid.New().String(),
			AssistantID: "asst_1",
			ThreadID:    "thread_" + string(rune('a'+i)),
			Question:    "question " + string(rune('A'+i)),
			Answer:      "answer",
			Status:      domain.ExchangeComplete,
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
			FinishedAt:  base.Add(time.Duration(i)*time.Minute + time.Second),
		}
		if err := s.RecordExchange(ctx, ex); err != nil {
			t.Fatalf("RecordExchange %d: %v", i, err)
		}
	}

	all, err := s.RecentExchanges(ctx, 0)
	if err != nil {
		t.Fatalf("RecentExchanges: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("RecentExchanges len = %d, want 5", len(all))
	}
	if all[0].Question != "question E" {
		t.Errorf("newest question = %q, want %q", all[0].Question, "question E")
	}

	limited, err := s.RecentExchanges(ctx, 2)
	if err != nil {
		t.Fatalf("RecentExchanges limit: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("RecentExchanges limited len = %d, want 2", len(limited))
	}
}

func TestExchangeFailedStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ex := &domain.Exchange{
		ID:       "ex-1",
		Question: "why?",
		Status:   domain.ExchangeFailed,
		Error:    "stream closed",
	}
	if err := s.RecordExchange(ctx, ex); err != nil {
		t.Fatalf("RecordExchange: %v", err)
	}
	if ex.FinishedAt.IsZero() || ex.StartedAt.IsZero() {
		t.Error("timestamps should be defaulted")
	}

	got, err := s.RecentExchanges(ctx, 1)
	if err != nil {
		t.Fatalf("RecentExchanges: %v", err)
	}
	if got[0].Status != domain.ExchangeFailed || got[0].Error != "stream closed" {
		t.Errorf("got status=%q error=%q", got[0].Status, got[0].Error)
	}
}

func TestExchangeRequiresID(t *testing.T) {
	s := newTestStore(t)
	if err := s.RecordExchange(context.Background(), &domain.Exchange{}); err == nil {
		t.Error("expected error for missing id")
	}
}

func TestSweepRecordAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &store.SweepRun{
		ID:               "sweep-1",
		StartedAt:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		MaxAge:           24 * time.Hour,
		IncludeAssistant: true,
		LocalRemoved:     2,
		Kinds: []store.SweepKindCount{
			{Kind: domain.KindThread, Enumerated: 3, Eligible: 3, Deleted: 2, Failed: 1},
			{Kind: domain.KindFile, Enumerated: 4, Eligible: 1, Deleted: 1},
			{Kind: domain.KindVectorIndex},
			{Kind: domain.KindAssistant, Enumerated: 1, Eligible: 1, Deleted: 1},
		},
	}
	if err := s.RecordSweep(ctx, run); err != nil {
		t.Fatalf("RecordSweep: %v", err)
	}

	runs, err := s.RecentSweeps(ctx, 10)
	if err != nil {
		t.Fatalf("RecentSweeps: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("RecentSweeps len = %d, want 1", len(runs))
	}
	got := runs[0]
	if got.MaxAge != 24*time.Hour || !got.IncludeAssistant || got.LocalRemoved != 2 {
		t.Errorf("sweep = %+v", got)
	}
	if len(got.Kinds) != 4 {
		t.Fatalf("kinds len = %d, want 4", len(got.Kinds))
	}
	if got.Kinds[0].Kind != domain.KindThread || got.Kinds[0].Failed != 1 {
		t.Errorf("first kind = %+v", got.Kinds[0])
	}
	if got.Kinds[3].Kind != domain.KindAssistant {
		t.Errorf("kinds out of order: %+v", got.Kinds)
	}
}

func TestSweepDuplicateIDRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &store.SweepRun{ID: "dup", StartedAt: time.Now(), Kinds: []store.SweepKindCount{{Kind: domain.KindThread}}}
	if err := s.RecordSweep(ctx, run); err != nil {
		t.Fatalf("RecordSweep: %v", err)
	}
	if err := s.RecordSweep(ctx, run); err == nil {
		t.Fatal("expected duplicate id error")
	}

	var count int
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sweep_kinds WHERE sweep_id=?`, "dup").Scan(&count)
	if count != 1 {
		t.Errorf("sweep_kinds rows = %d, want 1", count)
	}
}
