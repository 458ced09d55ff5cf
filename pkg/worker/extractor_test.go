package worker

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-lean-crate/miner/pkg/model"
	"github.com/the-lean-crate/miner/pkg/scheduler"
)

func writeTestArchive(t *testing.T, path string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gz := gzip.NewWriter(f)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
			Mode:     0644,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
}

func TestExtractor_CapturesManifestAndEntryPoints(t *testing.T) {
	assetsDir := t.TempDir()
	writeTestArchive(t, filepath.Join(assetsDir, "demo", "1.0.0", "crate"), map[string]string{
		"demo-1.0.0/Cargo.toml":  "[package]\nname = \"demo\"\nversion = \"1.0.0\"\n",
		"demo-1.0.0/src/lib.rs":  "pub fn hello() {}",
		"demo-1.0.0/tests/a.rs": "#[test] fn it_works() {}",
	})

	store := newTestStore(t)
	ex := NewExtractor(assetsDir, store)
	req := scheduler.ExtractRequest{PackageName: "demo", Version: "1.0.0"}
	ex.handle(req)

	task, err := store.GetTask(scheduler.ProcessExtract, "demo", "1.0.0")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, model.TaskComplete, task.State.Kind)

	result, err := store.GetResult("demo", "1.0.0", model.TaskResultExplodedArchive, "")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Len(t, result.ExplodedArchive.EntriesMetaData, 3)

	var gotManifest, gotLib bool
	for _, s := range result.ExplodedArchive.SelectedEntries {
		switch string(s.Header.Path) {
		case "Cargo.toml":
			gotManifest = true
			assert.Contains(t, string(s.Content), "name = \"demo\"")
		case "src/lib.rs":
			gotLib = true
		}
	}
	assert.True(t, gotManifest, "expected manifest to be captured")
	assert.True(t, gotLib, "expected default lib entry point to be captured")
}

func TestExtractor_MissingArchive_RecordsFailure(t *testing.T) {
	store := newTestStore(t)
	ex := NewExtractor(t.TempDir(), store)
	req := scheduler.ExtractRequest{PackageName: "demo", Version: "1.0.0"}
	ex.handle(req)

	task, err := store.GetTask(scheduler.ProcessExtract, "demo", "1.0.0")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, model.TaskAttemptsWithFailure, task.State.Kind)
}
