// Package worker implements the two task runners the scheduler hands work
// to: Downloader fetches one archive per DownloadRequest with resumable
// Range-based HTTP GETs, and Extractor explodes a downloaded archive into a
// header list plus a handful of captured entry contents.
//
// Both share the same retry policy: a timeout restarts the whole task, up to
// a fixed attempt budget, while any other failure demotes the task straight
// to AttemptsWithFailure.
package worker
