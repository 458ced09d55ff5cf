// Package report implements the merge monoid over model.Report values and
// its incremental on-disk persistence.
//
// Every package gets its own JSON snapshot file on disk, keyed by name; a
// further snapshot holds the registry-wide collection. A Renderer is invoked
// after each package snapshot is updated and again after the collection is
// updated, so a richer HTML renderer can be swapped in without touching the
// aggregator.
package report
