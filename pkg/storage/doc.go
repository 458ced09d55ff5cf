/*
Package storage provides BoltDB-backed state persistence for the miner's
accumulated knowledge about the registry.

Six buckets hold everything the engine learns between runs:

	┌──────────────────── BOLTDB STORAGE ──────────────────────┐
	│                                                            │
	│  File: <dataDir>/miner.db                                 │
	│  Format: B+tree with MVCC, ACID transactions with fsync   │
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │ crates          (package name)              │          │
	│  │ crate_versions  (name:version)               │          │
	│  │ tasks           (process:name:version)       │          │
	│  │ results         (name:version:kind[:disc])   │          │
	│  │ meta            (YYYY-MM-DD)                 │          │
	│  │ reports_done    (report key)                 │          │
	│  └────────────────────────────────────────────┘          │
	│                                                            │
	└────────────────────────────────────────────────────────────┘

Every write goes through withRetry, which treats bolt.ErrTimeout as a busy
signal and retries with exponential backoff (1ms, doubling, capped at 250ms)
for up to 100 seconds before giving up. Values are JSON-encoded; the tasks
and meta buckets additionally merge the incoming value with whatever is
already stored rather than overwriting it outright — see UpsertTask and
MergeContext.
*/
package storage
