package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	modelerrors "github.com/the-lean-crate/miner/pkg/errors"
	"github.com/the-lean-crate/miner/pkg/model"
)

// collectionFileName is the fixed sentinel filename for the registry-wide
// collection snapshot, distinct from any real package name.
const collectionFileName = "_collection.json"

// sanitizeFileName keeps package-name-derived filenames confined to the
// reports directory even if a package name ever contains a path separator.
func sanitizeFileName(name string) string {
	return strings.ReplaceAll(strings.ReplaceAll(name, "/", "_"), "..", "_")
}

func packagePath(dir, name string) string {
	return filepath.Join(dir, sanitizeFileName(name)+".json")
}

func collectionPath(dir string) string {
	return filepath.Join(dir, collectionFileName)
}

// loadReport reads a report snapshot from path. A missing file is not an
// error: it reports ok=false so the caller can fall back to an empty report.
func loadReport(path string) (r model.Report, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Report{}, false, nil
		}
		return model.Report{}, false, modelerrors.StorageIO("read report snapshot", err)
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return model.Report{}, false, modelerrors.ParseFailure("decode report snapshot", err)
	}
	return r, true, nil
}

func saveReport(path string, r model.Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return modelerrors.ParseFailure("encode report snapshot", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return modelerrors.StorageIO("write report snapshot", err)
	}
	return nil
}
