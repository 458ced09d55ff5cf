// Package model holds the record types persisted by the Store and passed
// between the scheduler, workers, waste analyzer, and report aggregator.
//
// Most types here are plain data; the state machine lives on Task/TaskState
// and the merge monoid lives on Report/Fix. Neither type reaches out to the
// Store or the network — they are kept deliberately inert so they can be
// constructed and compared in tests without any I/O.
package model
