// Package waste implements the pure analyzer that inspects one extracted
// package archive and proposes manifest fixes that would have excluded the
// files it did not need to ship.
//
// The analyzer never touches the network or the Store: it is handed an
// already-extracted ArchiveContent (file path list, manifest content and
// selected source contents) and returns a list of model.Fix values. This keeps it trivially
// testable and lets the engine run it inline in the report-generation loop
// without any I/O of its own.
package waste
