// Package storage implements the embedded key/value store the engine uses to
// persist everything it learns between runs: known packages and versions,
// task state, task results, per-day meta counters, and which reports have
// already been written to disk.
package storage

import (
	"time"

	"github.com/the-lean-crate/miner/pkg/model"
)

// Store is the persistence surface the scheduler, workers, and engine share.
// All six tables described in the design are reachable through it; callers
// never touch the underlying bbolt buckets directly.
type Store interface {
	// Packages (table: crates)
	GetPackage(name string) (*model.Package, error)
	UpsertPackage(name string, version *model.PackageVersion) error
	IteratePackages(afterName string, limit int, fn func(name string, pkg model.Package) error) (string, error)

	// PackageVersions (table: crate_versions)
	GetPackageVersion(name, version string) (*model.PackageVersion, error)
	UpsertPackageVersion(v *model.PackageVersion) error
	CountPackageVersions() (uint64, error)
	IteratePackageVersions(afterKey string, limit int, fn func(pv model.PackageVersion) error) (string, error)

	// Tasks (table: tasks)
	GetTask(process, name, version string) (*model.Task, error)
	UpsertTask(process, name, version string, task model.Task) error
	IterateTasks(fn func(process, name, version string, task model.Task) error) error

	// Results (table: results)
	GetResult(name, version string, kind model.TaskResultKind, discriminant string) (*model.TaskResult, error)
	PutResult(name, version string, kind model.TaskResultKind, discriminant string, result model.TaskResult) error

	// Meta (table: meta), keyed by day in YYYY-MM-DD form
	GetContext(day string) (model.Context, error)
	MergeContext(day string, delta model.Context) error

	// ReportsDone (table: reports_done)
	IsReportDone(key string) (bool, error)
	MarkReportDone(key string) error

	Close() error
}

// DayKey formats t as the day key used for the meta table.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
