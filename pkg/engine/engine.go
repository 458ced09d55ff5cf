package engine

import (
	"archive/tar"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/the-lean-crate/miner/pkg/log"
	"github.com/the-lean-crate/miner/pkg/metrics"
	"github.com/the-lean-crate/miner/pkg/model"
	"github.com/the-lean-crate/miner/pkg/report"
	"github.com/the-lean-crate/miner/pkg/scheduler"
	"github.com/the-lean-crate/miner/pkg/storage"
	"github.com/the-lean-crate/miner/pkg/waste"
)

// Config bundles the tunables of the three loops.
type Config struct {
	IndexInterval  time.Duration
	TaskInterval   time.Duration
	ReportInterval time.Duration

	TaskChunkSize   int
	ReportChunkSize int

	// Deadline, if non-zero, is the wall-clock time at which every loop stops
	// cleanly. A zero value means the engine runs until Stop is called.
	Deadline time.Time
}

// DefaultConfig returns the intervals and chunk sizes named in the design:
// index fetch every 60s, task processing every 60s in chunks of up to 1000,
// report generation every 10s in chunks of up to 500.
func DefaultConfig() Config {
	return Config{
		IndexInterval:   60 * time.Second,
		TaskInterval:    60 * time.Second,
		ReportInterval:  10 * time.Second,
		TaskChunkSize:   1000,
		ReportChunkSize: 500,
	}
}

// Engine ties the Store, Scheduler, and ReportAggregator together behind
// three independently-ticked loops.
type Engine struct {
	cfg         Config
	store       storage.Store
	scheduler   *scheduler.Scheduler
	aggregator  *report.Aggregator
	index       IndexDiff
	clock       Clock
	startupTime time.Time
	logger      zerolog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup

	taskCursor   string
	reportCursor string
}

// New builds an Engine. clock defaults to SystemClock if nil, and startup
// time (used by the Scheduler to detect orphaned InProgress tasks) is taken
// from the first clock reading.
func New(cfg Config, store storage.Store, sched *scheduler.Scheduler, aggregator *report.Aggregator, index IndexDiff, clock Clock) *Engine {
	if clock == nil {
		clock = SystemClock()
	}
	runID := uuid.NewString()
	return &Engine{
		cfg:         cfg,
		store:       store,
		scheduler:   sched,
		aggregator:  aggregator,
		index:       index,
		clock:       clock,
		startupTime: clock(),
		logger:      log.WithComponent("engine").With().Str("run_id", runID).Logger(),
		stopCh:      make(chan struct{}),
	}
}

// Start launches the three loops as background goroutines.
func (e *Engine) Start() {
	e.wg.Add(3)
	go e.runIndexLoop()
	go e.runTaskLoop()
	go e.runReportLoop()
}

// Stop signals all loops to exit and waits for them to do so.
func (e *Engine) Stop() {
	close(e.stopCh)
	e.wg.Wait()
}

func (e *Engine) deadlineExceeded() bool {
	return !e.cfg.Deadline.IsZero() && !e.clock().Before(e.cfg.Deadline)
}

// sleep waits for interval, decomposed into 1-second steps so stop signals
// and the deadline are honored at sub-interval granularity rather than only
// once per tick. It returns false if the wait was cut short.
func (e *Engine) sleep(interval time.Duration) bool {
	remaining := interval
	for remaining > 0 {
		step := remaining
		if step > time.Second {
			step = time.Second
		}
		select {
		case <-e.stopCh:
			return false
		case <-time.After(step):
		}
		remaining -= step
		if e.deadlineExceeded() {
			return false
		}
	}
	return true
}

// --- Index fetch loop -----------------------------------------------------

func (e *Engine) runIndexLoop() {
	defer e.wg.Done()
	for {
		if e.deadlineExceeded() {
			return
		}
		if err := e.fetchIndex(); err != nil {
			e.logger.Error().Err(err).Msg("index fetch failed")
		}
		if !e.sleep(e.cfg.IndexInterval) {
			return
		}
	}
}

func (e *Engine) fetchIndex() error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.LoopDuration, "index")

	changes, err := e.index.FetchChanges(context.Background())
	if err != nil {
		return err
	}

	for i := range changes {
		pv := changes[i]
		if err := e.store.UpsertPackageVersion(&pv); err != nil {
			e.logger.Error().Err(err).Str("package", pv.Name).Str("version", pv.Version).Msg("failed to persist package version")
			continue
		}
		if err := e.store.UpsertPackage(pv.Name, &pv); err != nil {
			e.logger.Error().Err(err).Str("package", pv.Name).Msg("failed to persist package")
		}
	}

	day := storage.DayKey(e.clock())
	delta := model.Context{
		Counts:    model.Counts{PackageVersions: uint64(len(changes))},
		Durations: model.Durations{FetchPackageVersions: timer.Duration()},
	}
	if err := e.store.MergeContext(day, delta); err != nil {
		e.logger.Error().Err(err).Msg("failed to merge meta context")
	}

	e.logger.Info().Int("changes", len(changes)).Msg("index fetch complete")
	return nil
}

// --- Task processing loop --------------------------------------------------

func (e *Engine) runTaskLoop() {
	defer e.wg.Done()
	for {
		if e.deadlineExceeded() {
			return
		}
		if err := e.processTasks(); err != nil {
			e.logger.Error().Err(err).Msg("task processing chunk failed")
		}
		if !e.sleep(e.cfg.TaskInterval) {
			return
		}
	}
}

// processTasks walks one chunk of crate_versions, oldest-to-newest in key
// order, scheduling each. A per-item Scheduler error is logged and does not
// abort the chunk, matching spec.md §7's "log and continue" policy for the
// Engine loop.
func (e *Engine) processTasks() error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.LoopDuration, "task")

	count := 0
	lastKey, err := e.store.IteratePackageVersions(e.taskCursor, e.cfg.TaskChunkSize, func(pv model.PackageVersion) error {
		count++
		item := pv
		if _, err := e.scheduler.Schedule(&item, e.startupTime); err != nil {
			e.logger.Error().Err(err).Str("package", pv.Name).Str("version", pv.Version).Msg("failed to schedule package version")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if count < e.cfg.TaskChunkSize {
		e.taskCursor = ""
	} else {
		e.taskCursor = lastKey
	}
	return nil
}

// --- Report generation loop -------------------------------------------------

func (e *Engine) runReportLoop() {
	defer e.wg.Done()
	for {
		if e.deadlineExceeded() {
			return
		}
		if err := e.generateReports(); err != nil {
			e.logger.Error().Err(err).Msg("report generation chunk failed")
		}
		if !e.sleep(e.cfg.ReportInterval) {
			return
		}
	}
}

// generateReports walks one chunk of crates, producing and merging a version
// report for every version whose ExplodedArchive result is ready and whose
// report has not already been persisted.
func (e *Engine) generateReports() error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.LoopDuration, "report")

	count := 0
	lastName, err := e.store.IteratePackages(e.reportCursor, e.cfg.ReportChunkSize, func(name string, pkg model.Package) error {
		count++
		e.generatePackageReports(name, pkg)
		return nil
	})
	if err != nil {
		return err
	}

	if count < e.cfg.ReportChunkSize {
		e.reportCursor = ""
	} else {
		e.reportCursor = lastName
	}
	return nil
}

func (e *Engine) generatePackageReports(name string, pkg model.Package) {
	if len(pkg.Versions) == 0 {
		return
	}

	allDone := true
	for _, version := range pkg.Versions {
		key := versionReportKey(name, version)
		done, err := e.store.IsReportDone(key)
		if err != nil {
			e.logger.Error().Err(err).Str("package", name).Str("version", version).Msg("failed to check report status")
			allDone = false
			continue
		}
		if done {
			continue
		}

		result, err := e.store.GetResult(name, version, model.TaskResultExplodedArchive, "")
		if err != nil {
			e.logger.Error().Err(err).Str("package", name).Str("version", version).Msg("failed to load extraction result")
			allDone = false
			continue
		}
		if result == nil || result.ExplodedArchive == nil {
			// Not extracted yet; this package isn't done.
			allDone = false
			continue
		}

		content := buildArchiveContent(name, version, result.ExplodedArchive)
		fixes := waste.Analyze(content)
		versionReport := model.NewVersionReport(name, version, fixes)

		timer := metrics.NewTimer()
		_, err = e.aggregator.MergeVersion(versionReport)
		timer.ObserveDuration(metrics.ReportMergeDuration)

		status := "success"
		if err != nil {
			status = "failure"
			e.logger.Error().Err(err).Str("package", name).Str("version", version).Msg("failed to merge version report")
			allDone = false
		} else if err := e.store.MarkReportDone(key); err != nil {
			e.logger.Error().Err(err).Str("package", name).Str("version", version).Msg("failed to mark report done")
			allDone = false
		}
		metrics.ReportsTotal.WithLabelValues(status).Inc()
	}

	if !allDone {
		return
	}

	pkgKey := packageReportKey(name)
	done, err := e.store.IsReportDone(pkgKey)
	if err != nil || done {
		return
	}
	if err := e.aggregator.MarkPackageComplete(); err != nil {
		e.logger.Error().Err(err).Str("package", name).Msg("failed to mark package complete")
		return
	}
	if err := e.store.MarkReportDone(pkgKey); err != nil {
		e.logger.Error().Err(err).Str("package", name).Msg("failed to persist package completion marker")
	}
}

func versionReportKey(name, version string) string {
	return name + ":" + version + ":version_report"
}

func packageReportKey(name string) string {
	return name + ":package_report"
}

// implicitEntry names match files the registry inserts into every archive,
// excluded from waste analysis per spec.md §4.5's preprocessing step.
func implicitEntry(path string) bool {
	return path == "Cargo.toml.orig" || path == ".cargo_vcs_info.json"
}

func buildArchiveContent(name, version string, ea *model.ExplodedArchiveResult) waste.ArchiveContent {
	paths := make([]string, 0, len(ea.EntriesMetaData))
	for _, h := range ea.EntriesMetaData {
		if h.EntryType == tar.TypeDir {
			continue
		}
		p := string(h.Path)
		if implicitEntry(p) {
			continue
		}
		paths = append(paths, p)
	}

	var manifest []byte
	sources := make(map[string][]byte, len(ea.SelectedEntries))
	for _, s := range ea.SelectedEntries {
		p := string(s.Header.Path)
		if p == "Cargo.toml" {
			manifest = s.Content
			continue
		}
		sources[p] = s.Content
	}

	return waste.ArchiveContent{
		Name:            name,
		Version:         version,
		Paths:           paths,
		ManifestContent: manifest,
		Sources:         sources,
	}
}
