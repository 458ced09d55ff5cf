package worker

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	modelerrors "github.com/the-lean-crate/miner/pkg/errors"
	"github.com/the-lean-crate/miner/pkg/log"
	"github.com/the-lean-crate/miner/pkg/metrics"
	"github.com/the-lean-crate/miner/pkg/model"
	"github.com/the-lean-crate/miner/pkg/scheduler"
	"github.com/the-lean-crate/miner/pkg/storage"
)

const (
	connectTimeout = 15 * time.Second
	chunkTimeout   = 10 * time.Second
)

// Downloader fetches the archive named by each DownloadRequest it receives,
// resuming from whatever partial file already exists on disk, and persists
// both the resulting task state and, on success, a Download result record.
type Downloader struct {
	client    *http.Client
	store     storage.Store
	assetsDir string
	logger    zerolog.Logger
}

// NewDownloader builds a Downloader storing archives under assetsDir.
func NewDownloader(assetsDir string, store storage.Store) *Downloader {
	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.RetryMax = 2
	rc.RetryWaitMin = 50 * time.Millisecond
	rc.RetryWaitMax = 200 * time.Millisecond
	return &Downloader{
		client:    rc.StandardClient(),
		store:     store,
		assetsDir: assetsDir,
		logger:    log.WithComponent("downloader"),
	}
}

// Run drains requests until the channel is closed or ctx is canceled.
func (d *Downloader) Run(ctx context.Context, requests <-chan scheduler.DownloadRequest) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			d.handle(ctx, req)
		}
	}
}

func (d *Downloader) handle(ctx context.Context, req scheduler.DownloadRequest) {
	timer := metrics.NewTimer()
	state := attemptWithRetry(func() error { return d.download(ctx, req) }, maxRetriesOnTimeout)
	timer.ObserveDuration(metrics.DownloadDuration)

	status := "success"
	if state.Kind != model.TaskComplete {
		status = "failure"
		d.logger.Warn().Str("package", req.PackageName).Str("version", req.Version).
			Strs("failures", state.Failures).Msg("download failed")
	}
	metrics.DownloadsTotal.WithLabelValues(status).Inc()

	if err := d.store.UpsertTask(scheduler.ProcessDownload, req.PackageName, req.Version, model.Task{
		Process: scheduler.ProcessDownload,
		Version: req.Version,
		State:   state,
	}); err != nil {
		d.logger.Error().Err(err).Msg("failed to persist download task state")
	}
}

func (d *Downloader) outputPath(req scheduler.DownloadRequest) string {
	return filepath.Join(d.assetsDir, req.PackageName, req.Version, req.Kind)
}

// download implements spec.md's Downloader algorithm: resumable range GET,
// 416 treated as already complete, streamed body under a per-chunk timeout.
func (d *Downloader) download(ctx context.Context, req scheduler.DownloadRequest) error {
	outFile := d.outputPath(req)
	if err := os.MkdirAll(filepath.Dir(outFile), 0755); err != nil {
		return modelerrors.StorageIO("create download directory", err)
	}

	var startByte int64
	if info, err := os.Stat(outFile); err == nil {
		startByte = info.Size()
	}

	// connectTimeout bounds only the wait for the response headers; once they
	// arrive, the body is governed by the per-chunk timeout instead.
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	connectTimer := time.AfterFunc(connectTimeout, cancel)

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		return modelerrors.Wrap(modelerrors.KindMessage, "build download request", err)
	}
	httpReq.Header.Set("Range", "bytes="+strconv.FormatInt(startByte, 10)+"-")

	resp, err := d.client.Do(httpReq)
	if !connectTimer.Stop() {
		if err == nil {
			resp.Body.Close()
		}
		return modelerrors.Timeout(connectTimeout, "connect/HEAD timed out")
	}
	if err != nil {
		return modelerrors.Wrap(modelerrors.KindMessage, "download request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return modelerrors.HTTPStatus(resp.StatusCode, req.URL)
	}

	remaining := resp.ContentLength
	if remaining < 0 {
		return modelerrors.InvalidHeader("expected content-length")
	}
	totalLength := uint32(startByte + remaining)

	if remaining > 0 {
		flags := os.O_CREATE | os.O_WRONLY
		if startByte > 0 {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		out, err := os.OpenFile(outFile, flags, 0644)
		if err != nil {
			return modelerrors.StorageIO("open download destination", err)
		}
		defer out.Close()

		if err := streamWithChunkTimeout(resp.Body, out, chunkTimeout); err != nil {
			return err
		}
	}

	if req.Kind == "" {
		return nil
	}
	var contentType *string
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		contentType = &ct
	}
	result := model.TaskResult{
		Kind: model.TaskResultDownload,
		Download: &model.DownloadResult{
			Kind:          req.Kind,
			URL:           req.URL,
			ContentLength: totalLength,
			ContentType:   contentType,
		},
	}
	return d.store.PutResult(req.PackageName, req.Version, model.TaskResultDownload, req.Kind, result)
}
