package model

// ArchiveHeader carries the metadata of a single entry in a tar archive.
type ArchiveHeader struct {
	// Path is the normalized entry path; kept as bytes since archive entries
	// are not guaranteed to be valid UTF-8.
	Path      []byte
	Size      uint64
	EntryType byte // matches archive/tar's TypeFlag byte
}

// SelectedEntry pairs an ArchiveHeader with captured file content. Only the
// manifest, build script, and library/binary entry points are captured this
// way; the manifest is always captured in full, the others may be truncated.
type SelectedEntry struct {
	Header  ArchiveHeader
	Content []byte
}

// TaskResultKind enumerates the shapes a TaskResult can take.
type TaskResultKind int

const (
	TaskResultNone TaskResultKind = iota
	TaskResultDownload
	TaskResultExplodedArchive
)

// DownloadResult is the outcome of a successful archive download.
type DownloadResult struct {
	Kind          string // discriminates multiple download kinds sharing one task key, e.g. "crate"
	URL           string
	ContentLength uint32
	ContentType   *string
}

// ExplodedArchiveResult is the outcome of a successful extraction.
type ExplodedArchiveResult struct {
	EntriesMetaData []ArchiveHeader
	SelectedEntries []SelectedEntry
}

// TaskResult is an append-only-variant result record: once a kind is chosen
// for a given task key, later writes are expected to carry the same kind, so
// that schema evolution only ever adds new kinds rather than changing
// existing ones.
type TaskResult struct {
	Kind            TaskResultKind
	Download        *DownloadResult
	ExplodedArchive *ExplodedArchiveResult
}
