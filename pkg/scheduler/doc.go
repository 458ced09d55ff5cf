// Package scheduler decides, per package version, which tasks to enqueue
// onto the downloader and extractor work channels based on persisted task
// state. It never performs network or file I/O itself: every decision is a
// Store read plus, at most, one Store write and one bounded channel send per
// task.
package scheduler
