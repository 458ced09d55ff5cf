/*
Package metrics exposes Prometheus instrumentation for the miner.

	┌───────────────────── METRICS ─────────────────────────┐
	│ Gauges:   miner_tasks_pending, miner_tasks_in_progress, │
	│           miner_queue_depth{stage}, miner_packages_total│
	│ Counters: miner_downloads_total{status},                │
	│           miner_extractions_total{status},              │
	│           miner_reports_total{status}                   │
	│ Histograms: miner_download_duration_seconds,             │
	│           miner_extraction_duration_seconds,             │
	│           miner_waste_analysis_duration_seconds,         │
	│           miner_report_merge_duration_seconds,           │
	│           miner_loop_duration_seconds{loop}              │
	└──────────────────────────────────────────────────────────┘

Handler() serves the Prometheus text exposition format. Collector polls the
Store every 15 seconds to keep the task-state gauges current between engine
loop iterations. Timer is the shared helper every stage uses to record its
own duration: start one with NewTimer(), defer timer.ObserveDuration(hist) at
the call site, or timer.ObserveDurationVec(vec, labels...) for a labeled
histogram, as the engine's loop bodies do for miner_loop_duration_seconds.

health.go additionally serves /health, /ready, and /live for process
supervisors; "storage" and "engine" are the two components gating readiness.
*/
package metrics
