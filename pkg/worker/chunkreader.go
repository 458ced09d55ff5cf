package worker

import (
	"io"
	"time"

	modelerrors "github.com/the-lean-crate/miner/pkg/errors"
)

const readChunkSize = 32 * 1024

// streamWithChunkTimeout copies from r to w, enforcing a timeout on each
// individual read: a download that stalls mid-body fails fast rather than
// hanging for the connection's full lifetime.
//
// A timed-out read leaves its goroutine running until the underlying reader
// itself unblocks; http.Response.Body offers no per-read deadline, so this
// is the cost of enforcing one at this layer.
func streamWithChunkTimeout(r io.Reader, w io.Writer, timeout time.Duration) error {
	for {
		buf := make([]byte, readChunkSize)
		n, err := readChunk(r, buf, timeout)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return modelerrors.StorageIO("write download chunk", werr)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

type chunkResult struct {
	n   int
	err error
}

func readChunk(r io.Reader, buf []byte, timeout time.Duration) (int, error) {
	ch := make(chan chunkResult, 1)
	go func() {
		n, err := r.Read(buf)
		ch <- chunkResult{n, err}
	}()
	select {
	case res := <-ch:
		return res.n, res.err
	case <-time.After(timeout):
		return 0, modelerrors.Timeout(timeout, "chunk read timed out")
	}
}
