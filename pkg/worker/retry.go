package worker

import (
	modelerrors "github.com/the-lean-crate/miner/pkg/errors"
	"github.com/the-lean-crate/miner/pkg/model"
)

// maxRetriesOnTimeout bounds how many times a single task attempt is
// restarted after a KindTimeout failure before it is demoted to a regular
// failed attempt.
const maxRetriesOnTimeout = 80

// attemptWithRetry runs process, restarting it on a timeout failure up to
// maxRetries times, and turns the final outcome into the TaskState that
// should be persisted: Complete on success, AttemptsWithFailure with the
// failure's message otherwise.
func attemptWithRetry(process func() error, maxRetries int) model.TaskState {
	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = process()
		if lastErr == nil {
			return model.TaskState{Kind: model.TaskComplete}
		}
		if modelerrors.IsKind(lastErr, modelerrors.KindTimeout) && attempt <= maxRetries {
			continue
		}
		return model.TaskState{Kind: model.TaskAttemptsWithFailure, Failures: []string{lastErr.Error()}}
	}
}
