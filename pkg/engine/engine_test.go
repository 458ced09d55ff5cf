package engine

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-lean-crate/miner/pkg/model"
	"github.com/the-lean-crate/miner/pkg/report"
	"github.com/the-lean-crate/miner/pkg/scheduler"
	"github.com/the-lean-crate/miner/pkg/storage"
)

func newTestEngine(t *testing.T) (*Engine, *storage.BoltStore) {
	t.Helper()
	dir, err := os.MkdirTemp("", "engine-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	store, err := storage.NewBoltStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	downloads := make(chan scheduler.DownloadRequest, 8)
	extracts := make(chan scheduler.ExtractRequest, 8)
	sched := scheduler.New(store, downloads, extracts)

	agg, err := report.NewAggregator(dir+"/reports", nil)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.TaskChunkSize = 2
	cfg.ReportChunkSize = 2
	e := New(cfg, store, sched, agg, nil, nil)
	return e, store
}

type fakeIndexDiff struct {
	changes []model.PackageVersion
	err     error
}

func (f *fakeIndexDiff) FetchChanges(ctx context.Context) ([]model.PackageVersion, error) {
	return f.changes, f.err
}

func TestFetchIndex_PersistsChangesAndMeta(t *testing.T) {
	e, store := newTestEngine(t)
	e.index = &fakeIndexDiff{changes: []model.PackageVersion{
		{Name: "demo", Version: "1.0.0", Kind: model.ChangeKindAdded},
		{Name: "demo", Version: "1.1.0", Kind: model.ChangeKindAdded},
	}}

	require.NoError(t, e.fetchIndex())

	pkg, err := store.GetPackage("demo")
	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, []string{"1.0.0", "1.1.0"}, pkg.Versions)

	pv, err := store.GetPackageVersion("demo", "1.0.0")
	require.NoError(t, err)
	require.NotNil(t, pv)

	ctx, err := store.GetContext(storage.DayKey(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ctx.Counts.PackageVersions)
}

func TestFetchIndex_PropagatesCollaboratorError(t *testing.T) {
	e, _ := newTestEngine(t)
	boom := assert.AnError
	e.index = &fakeIndexDiff{err: boom}

	err := e.fetchIndex()
	assert.ErrorIs(t, err, boom)
}

func TestProcessTasks_SchedulesEveryVersionAndWrapsCursor(t *testing.T) {
	e, store := newTestEngine(t)
	for _, v := range []string{"1.0.0", "2.0.0", "3.0.0"} {
		require.NoError(t, store.UpsertPackageVersion(&model.PackageVersion{Name: "demo", Version: v}))
	}

	require.NoError(t, e.processTasks())
	assert.NotEmpty(t, e.taskCursor, "expected a resumable cursor after a full chunk")

	require.NoError(t, e.processTasks())
	assert.Empty(t, e.taskCursor, "expected the cursor to wrap once the tail chunk was short")

	for _, v := range []string{"1.0.0", "2.0.0", "3.0.0"} {
		task, err := store.GetTask(scheduler.ProcessDownload, "demo", v)
		require.NoError(t, err)
		require.NotNil(t, task)
		assert.Equal(t, model.TaskInProgress, task.State.Kind)
	}
}

func TestGenerateReports_SkipsPackagesWithoutExtractionYet(t *testing.T) {
	e, store := newTestEngine(t)
	require.NoError(t, store.UpsertPackageVersion(&model.PackageVersion{Name: "demo", Version: "1.0.0"}))
	require.NoError(t, store.UpsertPackage("demo", &model.PackageVersion{Name: "demo", Version: "1.0.0"}))

	require.NoError(t, e.generateReports())

	done, err := store.IsReportDone(versionReportKey("demo", "1.0.0"))
	require.NoError(t, err)
	assert.False(t, done)

	pkgDone, err := store.IsReportDone(packageReportKey("demo"))
	require.NoError(t, err)
	assert.False(t, pkgDone)
}

func TestGenerateReports_MergesAndMarksCompleteOnceExtracted(t *testing.T) {
	e, store := newTestEngine(t)
	require.NoError(t, store.UpsertPackageVersion(&model.PackageVersion{Name: "demo", Version: "1.0.0"}))
	require.NoError(t, store.UpsertPackage("demo", &model.PackageVersion{Name: "demo", Version: "1.0.0"}))
	require.NoError(t, store.PutResult("demo", "1.0.0", model.TaskResultExplodedArchive, "", model.TaskResult{
		Kind: model.TaskResultExplodedArchive,
		ExplodedArchive: &model.ExplodedArchiveResult{
			EntriesMetaData: []model.ArchiveHeader{
				{Path: []byte("Cargo.toml")},
				{Path: []byte("src/lib.rs")},
				{Path: []byte("tests/it.rs")},
			},
			SelectedEntries: []model.SelectedEntry{
				{Header: model.ArchiveHeader{Path: []byte("Cargo.toml")}, Content: []byte("[package]\nname=\"demo\"\n")},
			},
		},
	}))

	require.NoError(t, e.generateReports())

	done, err := store.IsReportDone(versionReportKey("demo", "1.0.0"))
	require.NoError(t, err)
	assert.True(t, done)

	pkgDone, err := store.IsReportDone(packageReportKey("demo"))
	require.NoError(t, err)
	assert.True(t, pkgDone)

	collection := e.aggregator.Collection()
	assert.Equal(t, uint64(1), collection.VersionsSeen)
	assert.Equal(t, uint64(1), collection.PackagesSeen)
}

func TestDeadlineExceeded(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e.clock = func() time.Time { return now }

	e.cfg.Deadline = now.Add(time.Minute)
	assert.False(t, e.deadlineExceeded())

	e.cfg.Deadline = now.Add(-time.Minute)
	assert.True(t, e.deadlineExceeded())

	e.cfg.Deadline = time.Time{}
	assert.False(t, e.deadlineExceeded(), "zero deadline means no deadline")
}

func TestSleep_ReturnsFalseOnStop(t *testing.T) {
	e, _ := newTestEngine(t)
	close(e.stopCh)
	assert.False(t, e.sleep(5*time.Second))
}
