package metrics

import (
	"time"

	"github.com/the-lean-crate/miner/pkg/model"
)

// TaskLister is the narrow slice of storage.Store the Collector needs: the
// ability to walk every stored task. Declared locally to avoid a hard
// dependency from pkg/metrics onto pkg/storage's full interface.
type TaskLister interface {
	IterateTasks(fn func(process, name, version string, task model.Task) error) error
	CountPackageVersions() (uint64, error)
}

// Collector periodically snapshots task-state counts out of the Store and
// into the TasksPending/TasksInProgress gauges.
type Collector struct {
	store  TaskLister
	stopCh chan struct{}
}

// NewCollector creates a metrics collector over store.
func NewCollector(store TaskLister) *Collector {
	return &Collector{store: store, stopCh: make(chan struct{})}
}

// Start begins collecting metrics every 15 seconds, plus once immediately.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	var pending, inProgress float64
	_ = c.store.IterateTasks(func(_, _, _ string, task model.Task) error {
		switch task.State.Kind {
		case model.TaskNotStarted, model.TaskAttemptsWithFailure:
			pending++
		case model.TaskInProgress:
			inProgress++
		}
		return nil
	})
	TasksPending.Set(pending)
	TasksInProgress.Set(inProgress)

	if n, err := c.store.CountPackageVersions(); err == nil {
		PackageVersionsTotal.Set(float64(n))
	}
}
