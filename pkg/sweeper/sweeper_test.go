package sweeper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstogner/labassist/pkg/domain"
	"github.com/nstogner/labassist/pkg/remote"
	"github.com/nstogner/labassist/pkg/remote/fake"
	"github.com/nstogner/labassist/pkg/store"
	"github.com/nstogner/labassist/pkg/store/file"
	"github.com/nstogner/labassist/pkg/store/sqlite"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	remote   *fake.Client
	ids      *file.Store
	stateDir string
	dataDir  string
	sweeper  *Sweeper
}

func newFixture(t *testing.T, journal store.JournalStore) *fixture {
	t.Helper()
	stateDir := t.TempDir()
	f := &fixture{
		remote:   fake.New(),
		ids:      file.New(stateDir),
		stateDir: stateDir,
		dataDir:  filepath.Join(stateDir, "data"),
	}
	f.sweeper = New(Config{
		Inventory:  remote.NewInventory(f.remote),
		Identities: f.ids,
		Journal:    journal,
		LocalFiles: []string{
			f.ids.Path(domain.RoleLastThread),
			filepath.Join(f.dataDir, "intro_to_llms.md"),
			filepath.Join(f.dataDir, "api_best_practices.md"),
		},
		DataDir: f.dataDir,
		Now:     func() time.Time { return now },
	})
	return f
}

func (f *fixture) bindAssistant(t *testing.T, id string) {
	t.Helper()
	f.remote.Assistants[id] = domain.AssistantConfig{Name: "lab"}
	require.NoError(t, f.ids.Save(domain.RoleAssistant, id))
}

func TestSweepAgeBoundaryIsStrict(t *testing.T) {
	f := newFixture(t, nil)
	f.remote.AddThread("exact", now.Add(-24*time.Hour))
	f.remote.AddThread("older", now.Add(-24*time.Hour-time.Second))
	f.remote.AddThread("young", now.Add(-time.Hour))

	report, err := f.sweeper.Sweep(context.Background(), Options{MaxAge: 24 * time.Hour})
	require.NoError(t, err)

	threads := report.Kind(domain.KindThread)
	assert.Equal(t, 3, threads.Enumerated)
	assert.Equal(t, 1, threads.Eligible)
	assert.Equal(t, 1, threads.Deleted)
	assert.Contains(t, f.remote.Threads, "exact")
	assert.Contains(t, f.remote.Threads, "young")
	assert.NotContains(t, f.remote.Threads, "older")
}

func TestSweepFilePurposeIsolation(t *testing.T) {
	f := newFixture(t, nil)
	old := now.Add(-48 * time.Hour)
	f.remote.AddFile("file-assist", domain.PurposeAssistants, old)
	f.remote.AddFile("file-tune", domain.PurposeFineTune, old)
	f.remote.AddFile("file-batch", "batch", old)

	report, err := f.sweeper.Sweep(context.Background(), Options{MaxAge: time.Hour})
	require.NoError(t, err)

	files := report.Kind(domain.KindFile)
	assert.Equal(t, 3, files.Enumerated)
	assert.Equal(t, 1, files.Eligible)
	assert.Contains(t, f.remote.Files, "file-tune")
	assert.Contains(t, f.remote.Files, "file-batch")
	assert.NotContains(t, f.remote.Files, "file-assist")
}

func TestSweepPartialFailureIsolation(t *testing.T) {
	f := newFixture(t, nil)
	old := now.Add(-48 * time.Hour)
	f.remote.AddThread("t1", old)
	f.remote.AddThread("t2", old.Add(time.Second))
	f.remote.AddThread("t3", old.Add(2*time.Second))
	f.remote.AddFile("f1", domain.PurposeAssistants, old)
	f.remote.AddVectorStore("vs1", old)
	f.remote.FailOn("DeleteThread", "t2", errors.New("server error"))

	report, err := f.sweeper.Sweep(context.Background(), Options{MaxAge: 24 * time.Hour})
	require.NoError(t, err)

	threads := report.Kind(domain.KindThread)
	assert.Equal(t, 3, threads.Eligible)
	assert.Equal(t, 2, threads.Deleted)
	require.Len(t, threads.Failures, 1)
	assert.Equal(t, "t2", threads.Failures[0].ID)
	assert.Contains(t, threads.Failures[0].Reason, "server error")
	assert.Equal(t, []string{"t2"}, keys(f.remote.Threads))

	assert.Equal(t, 1, report.Kind(domain.KindFile).Deleted)
	assert.Equal(t, 1, report.Kind(domain.KindVectorIndex).Deleted)
	assert.Equal(t, 1, report.FailureCount())
}

func TestSweepOrderAndEnumerateBeforeDelete(t *testing.T) {
	f := newFixture(t, nil)
	old := now.Add(-48 * time.Hour)
	f.remote.AddThread("t1", old)
	f.remote.AddThread("t2", old)
	f.remote.AddFile("f1", domain.PurposeAssistants, old)
	f.remote.AddVectorStore("vs1", old)
	f.bindAssistant(t, "asst_1")

	_, err := f.sweeper.Sweep(context.Background(), Options{MaxAge: time.Hour, IncludeAssistant: true})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ListThreads ",
		"DeleteThread t1",
		"DeleteThread t2",
		"ListFiles ",
		"DeleteFile f1",
		"ListVectorStores ",
		"DeleteVectorStore vs1",
		"DeleteAssistant asst_1",
	}, f.remote.Calls)
}

func TestSweepAssistantGating(t *testing.T) {
	f := newFixture(t, nil)
	f.bindAssistant(t, "asst_1")

	report, err := f.sweeper.Sweep(context.Background(), Options{MaxAge: 0})
	require.NoError(t, err)
	assert.Equal(t, 0, f.remote.CallCount("DeleteAssistant"))
	assert.Equal(t, 1, report.Kind(domain.KindAssistant).Enumerated)
	assert.Equal(t, 0, report.Kind(domain.KindAssistant).Eligible)
	id, ok, err := f.ids.Load(domain.RoleAssistant)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "asst_1", id)

	report, err = f.sweeper.Sweep(context.Background(), Options{MaxAge: 0, IncludeAssistant: true})
	require.NoError(t, err)
	assert.Equal(t, 1, f.remote.CallCount("DeleteAssistant"))
	assert.Equal(t, 1, report.Kind(domain.KindAssistant).Deleted)
	_, ok, err = f.ids.Load(domain.RoleAssistant)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSweepAssistantFailureKeepsBinding(t *testing.T) {
	f := newFixture(t, nil)
	f.bindAssistant(t, "asst_1")
	f.remote.FailOn("DeleteAssistant", "asst_1", errors.New("forbidden"))

	report, err := f.sweeper.Sweep(context.Background(), Options{IncludeAssistant: true})
	require.NoError(t, err)
	assert.Len(t, report.Kind(domain.KindAssistant).Failures, 1)

	_, ok, err := f.ids.Load(domain.RoleAssistant)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSweepStaleAssistantBindingRemoved(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ids.Save(domain.RoleAssistant, "asst_gone"))

	report, err := f.sweeper.Sweep(context.Background(), Options{IncludeAssistant: true})
	require.NoError(t, err)

	kr := report.Kind(domain.KindAssistant)
	assert.Empty(t, kr.Failures)
	assert.Equal(t, 1, kr.Deleted)
	assert.Equal(t, 1, f.remote.CallCount("DeleteAssistant"))

	_, ok, err := f.ids.Load(domain.RoleAssistant)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSweepKindsFollowSweepOrder(t *testing.T) {
	f := newFixture(t, nil)

	report, err := f.sweeper.Sweep(context.Background(), Options{})
	require.NoError(t, err)

	var kinds []domain.ResourceKind
	for _, kr := range report.Kinds {
		kinds = append(kinds, kr.Kind)
	}
	assert.Equal(t, domain.SweepOrder, kinds)
}

func TestSweepNoBindingIncludeAssistant(t *testing.T) {
	f := newFixture(t, nil)

	report, err := f.sweeper.Sweep(context.Background(), Options{IncludeAssistant: true})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Kind(domain.KindAssistant).Enumerated)
	assert.Equal(t, 0, f.remote.CallCount("DeleteAssistant"))
}

func TestSweepListFailureContinues(t *testing.T) {
	f := newFixture(t, nil)
	f.remote.AddVectorStore("vs1", now.Add(-48*time.Hour))
	f.remote.FailOn("ListThreads", "", errors.New("unavailable"))

	report, err := f.sweeper.Sweep(context.Background(), Options{MaxAge: time.Hour})
	require.NoError(t, err)
	assert.Contains(t, report.Kind(domain.KindThread).ListError, "unavailable")
	assert.Equal(t, 1, report.Kind(domain.KindVectorIndex).Deleted)
}

func TestSweepLocalFiles(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ids.Save(domain.RoleLastThread, "thread_9"))
	require.NoError(t, os.MkdirAll(f.dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.dataDir, "intro_to_llms.md"), []byte("x"), 0o644))

	report, err := f.sweeper.Sweep(context.Background(), Options{MaxAge: time.Hour})
	require.NoError(t, err)
	assert.Len(t, report.Local.Removed, 2)
	assert.True(t, report.Local.DataDirRemoved)
	assert.NoDirExists(t, f.dataDir)
	assert.NoFileExists(t, f.ids.Path(domain.RoleLastThread))
}

func TestSweepKeepsNonEmptyDataDir(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, os.MkdirAll(f.dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.dataDir, "lecture.pdf"), []byte("x"), 0o644))

	report, err := f.sweeper.Sweep(context.Background(), Options{MaxAge: time.Hour})
	require.NoError(t, err)
	assert.False(t, report.Local.DataDirRemoved)
	assert.FileExists(t, filepath.Join(f.dataDir, "lecture.pdf"))
	assert.Empty(t, report.Local.Failures)
}

func TestSweepRejectsNegativeAge(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.sweeper.Sweep(context.Background(), Options{MaxAge: -time.Hour})
	assert.Error(t, err)
	assert.Empty(t, f.remote.Calls)
}

func TestSweepCancelled(t *testing.T) {
	f := newFixture(t, nil)
	f.remote.AddThread("t1", now.Add(-48*time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.sweeper.Sweep(ctx, Options{MaxAge: time.Hour})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, f.remote.Threads, "t1")
}

func TestSweepJournaled(t *testing.T) {
	journal, err := sqlite.New(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	f := newFixture(t, journal)
	f.remote.AddThread("t1", now.Add(-48*time.Hour))

	report, err := f.sweeper.Sweep(context.Background(), Options{MaxAge: 24 * time.Hour})
	require.NoError(t, err)

	runs, err := journal.RecentSweeps(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.ID, runs[0].ID)
	assert.Equal(t, 24*time.Hour, runs[0].MaxAge)
	require.Len(t, runs[0].Kinds, 4)
	assert.Equal(t, domain.KindThread, runs[0].Kinds[0].Kind)
	assert.Equal(t, 1, runs[0].Kinds[0].Deleted)
}

func TestSurvey(t *testing.T) {
	f := newFixture(t, nil)
	f.remote.AddThread("t1", now)
	f.remote.AddThread("t2", now)
	f.remote.AddFile("f1", domain.PurposeAssistants, now)
	f.remote.AddFile("f2", domain.PurposeFineTune, now)
	f.remote.AddVectorStore("vs1", now)
	f.bindAssistant(t, "asst_1")
	f.remote.FailOn("ListVectorStores", "", errors.New("nope"))

	u, err := f.sweeper.Survey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, u.Threads)
	assert.Equal(t, 1, u.AssistantFiles)
	assert.Equal(t, 0, u.VectorStores)
	assert.Equal(t, "asst_1", u.AssistantID)
	assert.Contains(t, u.Errors[domain.KindVectorIndex], "nope")
	assert.Equal(t, 0, f.remote.CallCount("DeleteThread"))
}

func keys(m map[string]domain.ResourceRecord) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}
