package worker

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/rs/zerolog"

	modelerrors "github.com/the-lean-crate/miner/pkg/errors"
	"github.com/the-lean-crate/miner/pkg/log"
	"github.com/the-lean-crate/miner/pkg/metrics"
	"github.com/the-lean-crate/miner/pkg/model"
	"github.com/the-lean-crate/miner/pkg/scheduler"
	"github.com/the-lean-crate/miner/pkg/storage"
	"github.com/the-lean-crate/miner/pkg/waste"
)

// maxCapturedEntrySize bounds how many bytes of any single non-manifest
// entry's content are kept in memory; archive/tar's Next() silently skips
// whatever of the current entry's body a short Read didn't consume.
const maxCapturedEntrySize = 1 << 20

// Extractor explodes a downloaded archive named by each ExtractRequest it
// receives into a full header list plus selected entry contents: the
// manifest in full, and whichever build script/lib/bin entries the
// manifest's conventions point to.
type Extractor struct {
	store     storage.Store
	assetsDir string
	logger    zerolog.Logger
}

// NewExtractor builds an Extractor reading downloaded archives from
// assetsDir.
func NewExtractor(assetsDir string, store storage.Store) *Extractor {
	return &Extractor{store: store, assetsDir: assetsDir, logger: log.WithComponent("extractor")}
}

// Run drains requests until the channel is closed or ctx is canceled.
func (e *Extractor) Run(ctx context.Context, requests <-chan scheduler.ExtractRequest) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			e.handle(req)
		}
	}
}

func (e *Extractor) handle(req scheduler.ExtractRequest) {
	timer := metrics.NewTimer()
	state := attemptWithRetry(func() error { return e.extract(req) }, maxRetriesOnTimeout)
	timer.ObserveDuration(metrics.ExtractionDuration)

	status := "success"
	if state.Kind != model.TaskComplete {
		status = "failure"
		e.logger.Warn().Str("package", req.PackageName).Str("version", req.Version).
			Strs("failures", state.Failures).Msg("extraction failed")
	}
	metrics.ExtractionsTotal.WithLabelValues(status).Inc()

	if err := e.store.UpsertTask(scheduler.ProcessExtract, req.PackageName, req.Version, model.Task{
		Process: scheduler.ProcessExtract,
		Version: req.Version,
		State:   state,
	}); err != nil {
		e.logger.Error().Err(err).Msg("failed to persist extract task state")
	}
}

func (e *Extractor) archivePath(req scheduler.ExtractRequest) string {
	return filepath.Join(e.assetsDir, req.PackageName, req.Version, "crate")
}

func (e *Extractor) extract(req scheduler.ExtractRequest) error {
	f, err := os.Open(e.archivePath(req))
	if err != nil {
		return modelerrors.StorageIO("open downloaded archive", err)
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return modelerrors.ParseFailure("open gzip stream", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)

	var headers []model.ArchiveHeader
	contents := map[string][]byte{}
	var topLevelPrefix string

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return modelerrors.InvalidHeader(err.Error())
		}

		if topLevelPrefix == "" {
			if idx := strings.IndexByte(hdr.Name, '/'); idx >= 0 {
				topLevelPrefix = hdr.Name[:idx+1]
			}
		}
		relPath := strings.TrimPrefix(hdr.Name, topLevelPrefix)

		headers = append(headers, model.ArchiveHeader{
			Path:      []byte(relPath),
			Size:      uint64(hdr.Size),
			EntryType: hdr.Typeflag,
		})

		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		limit := int64(maxCapturedEntrySize)
		if relPath == "Cargo.toml" {
			limit = hdr.Size
		}
		data, err := io.ReadAll(io.LimitReader(tr, limit))
		if err != nil {
			return modelerrors.InvalidHeader(err.Error())
		}
		contents[relPath] = data
	}

	manifestContent := contents["Cargo.toml"]
	selected := []model.SelectedEntry{}
	if manifestContent != nil {
		selected = append(selected, model.SelectedEntry{
			Header:  headerFor(headers, "Cargo.toml"),
			Content: manifestContent,
		})
	}

	paths := make([]string, 0, len(contents))
	for p := range contents {
		paths = append(paths, p)
	}
	for _, ep := range waste.EntryPoints(manifestContent, paths) {
		if ep == "Cargo.toml" {
			continue
		}
		if data, ok := contents[ep]; ok {
			selected = append(selected, model.SelectedEntry{Header: headerFor(headers, ep), Content: data})
		}
	}

	result := model.TaskResult{
		Kind: model.TaskResultExplodedArchive,
		ExplodedArchive: &model.ExplodedArchiveResult{
			EntriesMetaData: headers,
			SelectedEntries: selected,
		},
	}
	return e.store.PutResult(req.PackageName, req.Version, model.TaskResultExplodedArchive, "", result)
}

func headerFor(headers []model.ArchiveHeader, path string) model.ArchiveHeader {
	for _, h := range headers {
		if string(h.Path) == path {
			return h
		}
	}
	return model.ArchiveHeader{Path: []byte(path)}
}
