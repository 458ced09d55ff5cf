package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/the-lean-crate/miner/pkg/log"
	"github.com/the-lean-crate/miner/pkg/model"
	"github.com/the-lean-crate/miner/pkg/storage"
)

// Process names used as the first component of a task key.
const (
	ProcessDownload = "download"
	ProcessExtract  = "extract_crate"
)

// maxAttempts bounds how many times a failed task is retried before the
// scheduler gives up on it permanently.
const maxAttempts = 3

// downloadURLTemplate is the crates.io download endpoint.
const downloadURLTemplate = "https://crates.io/api/v1/crates/%s/%s/download"

// DownloadRequest is what the scheduler hands the Downloader worker pool.
type DownloadRequest struct {
	PackageName string
	Version     string
	Kind        string
	URL         string
}

// ExtractRequest is what the scheduler hands the Extractor worker pool once
// a package version's download task has completed.
type ExtractRequest struct {
	DownloadTask model.Task
	PackageName  string
	Version      string
}

// Outcome reports what Schedule did for a given package version.
type Outcome int

const (
	// Submitted means at least one task (download or extract) was enqueued,
	// or is already owned by another in-flight worker.
	Submitted Outcome = iota
	// Complete means both the download and extract tasks were already done;
	// there is nothing left to schedule for this version.
	Complete
	// PermanentFailure means the download task exhausted its retry budget
	// (the extract task is never evaluated in that case), or the download is
	// Complete and the extract task exhausted its retry budget.
	PermanentFailure
)

// Scheduler decides, for one package version at a time, whether to enqueue a
// download task, an extract task, both, or neither, consulting persisted
// task state through Store.
type Scheduler struct {
	store     storage.Store
	downloads chan<- DownloadRequest
	extracts  chan<- ExtractRequest
	logger    zerolog.Logger
}

// New builds a Scheduler writing to the given bounded channels. Both
// channels should have capacity 1, matching the single-slot backpressure
// model shared with the worker pools that drain them.
func New(store storage.Store, downloads chan<- DownloadRequest, extracts chan<- ExtractRequest) *Scheduler {
	return &Scheduler{
		store:     store,
		downloads: downloads,
		extracts:  extracts,
		logger:    log.WithComponent("scheduler"),
	}
}

// submitOutcome is the internal three-way result of evaluating one task,
// finer-grained than the Outcome the caller sees: done distinguishes "this
// task is Complete, go evaluate the next one" from the terminal outcomes the
// scheduler reports back for the package version as a whole.
type submitOutcome int

const (
	submitted submitOutcome = iota
	done
	permanentFailure
)

// Schedule evaluates the download task for pv and, only if it is already
// Complete, the extract task, enqueueing whichever of them needs work.
// startupTime is the current process's start time, used to detect orphaned
// InProgress tasks left behind by a crashed prior run.
func (s *Scheduler) Schedule(pv *model.PackageVersion, startupTime time.Time) (Outcome, error) {
	downloadTask, err := s.taskOrDefault(ProcessDownload, pv.Name, pv.Version)
	if err != nil {
		return Submitted, err
	}

	outcome, downloadTask, err := s.submitDownload(pv, downloadTask, startupTime)
	if err != nil {
		return Submitted, err
	}
	if outcome != done {
		return toOutcome(outcome), nil
	}

	extractTask, err := s.taskOrDefault(ProcessExtract, pv.Name, pv.Version)
	if err != nil {
		return Submitted, err
	}
	outcome, err = s.submitExtract(pv, downloadTask, extractTask, startupTime)
	if err != nil {
		return Submitted, err
	}
	return toOutcome(outcome), nil
}

func toOutcome(o submitOutcome) Outcome {
	switch o {
	case permanentFailure:
		return PermanentFailure
	case done:
		return Complete
	default:
		return Submitted
	}
}

// taskOrDefault loads a task's persisted state, falling back to a fresh
// NotStarted task when none exists yet.
func (s *Scheduler) taskOrDefault(process, name, version string) (model.Task, error) {
	t, err := s.store.GetTask(process, name, version)
	if err != nil {
		return model.Task{}, err
	}
	if t != nil {
		return *t, nil
	}
	return model.Task{Process: process, Version: version}, nil
}

// decide applies the shared part of the per-task rule: Complete tasks are
// reported done without being re-evaluated; tasks that have exhausted their
// retry budget are reported permanentFailure; everything else is left to the
// caller to check CanBeStarted and, if true, submit.
func decide(task model.Task) (submitOutcome, bool) {
	switch task.State.Kind {
	case model.TaskComplete:
		return done, false
	case model.TaskAttemptsWithFailure:
		if len(task.State.Failures) >= maxAttempts {
			return permanentFailure, false
		}
	}
	return submitted, true
}

func (s *Scheduler) submitDownload(pv *model.PackageVersion, task model.Task, startupTime time.Time) (submitOutcome, model.Task, error) {
	outcome, mayStart := decide(task)
	if !mayStart {
		return outcome, task, nil
	}
	if !task.CanBeStarted(startupTime) {
		return submitted, task, nil
	}

	inProgress := inProgressTask(task)
	if task.State.Kind == model.TaskAttemptsWithFailure {
		s.logger.Info().Int("attempt", len(task.State.Failures)+1).Str("package", pv.Name).Str("version", pv.Version).Msg("retrying download task")
	}
	if err := s.store.UpsertTask(ProcessDownload, pv.Name, pv.Version, inProgress); err != nil {
		return submitted, task, err
	}
	s.downloads <- DownloadRequest{
		PackageName: pv.Name,
		Version:     pv.Version,
		Kind:        "crate",
		URL:         fmt.Sprintf(downloadURLTemplate, pv.Name, pv.Version),
	}
	return submitted, inProgress, nil
}

func (s *Scheduler) submitExtract(pv *model.PackageVersion, downloadTask, extractTask model.Task, startupTime time.Time) (submitOutcome, error) {
	outcome, mayStart := decide(extractTask)
	if !mayStart {
		return outcome, nil
	}
	if !extractTask.CanBeStarted(startupTime) {
		return submitted, nil
	}

	inProgress := inProgressTask(extractTask)
	if extractTask.State.Kind == model.TaskAttemptsWithFailure {
		s.logger.Info().Int("attempt", len(extractTask.State.Failures)+1).Str("package", pv.Name).Str("version", pv.Version).Msg("retrying extract task")
	}
	if err := s.store.UpsertTask(ProcessExtract, pv.Name, pv.Version, inProgress); err != nil {
		return submitted, err
	}
	s.extracts <- ExtractRequest{
		DownloadTask: downloadTask,
		PackageName:  pv.Name,
		Version:      pv.Version,
	}
	return submitted, nil
}

func inProgressTask(task model.Task) model.Task {
	return model.Task{
		Process: task.Process,
		Version: task.Version,
		State:   model.TaskState{Kind: model.TaskInProgress, PriorFailures: task.State.Failures},
	}
}
