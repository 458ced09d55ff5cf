package report

import (
	"bytes"
	"os"
	"sync"

	"github.com/rs/zerolog"

	modelerrors "github.com/the-lean-crate/miner/pkg/errors"
	"github.com/the-lean-crate/miner/pkg/log"
	"github.com/the-lean-crate/miner/pkg/model"
)

// Aggregator merges per-version reports into per-package reports and a
// single registry-wide collection, persisting a JSON snapshot of each after
// every merge and invoking a Renderer on the result.
type Aggregator struct {
	dir      string
	renderer Renderer
	logger   zerolog.Logger

	mu         sync.Mutex
	collection model.Report
}

// NewAggregator opens (or creates) the reports directory and loads whatever
// collection snapshot already exists there. A nil renderer defaults to
// JSONRenderer.
func NewAggregator(dir string, renderer Renderer) (*Aggregator, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if renderer == nil {
		renderer = JSONRenderer{}
	}

	collection, ok, err := loadReport(collectionPath(dir))
	if err != nil {
		return nil, err
	}
	if !ok {
		collection = model.NewEmptyCollectionReport()
	}

	return &Aggregator{
		dir:        dir,
		renderer:   renderer,
		logger:     log.WithComponent("report"),
		collection: collection,
	}, nil
}

// MergeVersion folds a per-version report into its package's running
// aggregate, persists the updated package snapshot, renders it, then folds
// that version's own contribution into the collection and does the same. It
// leaves the collection's PackagesSeen unchanged and returns the updated
// package report.
func (a *Aggregator) MergeVersion(version model.Report) (model.Report, error) {
	if version.Kind != model.ReportVersionKind {
		return model.Report{}, modelerrors.Bug("report.MergeVersion requires a version report")
	}

	pkgPath := packagePath(a.dir, version.PackageName)
	existing, ok, err := loadReport(pkgPath)
	if err != nil {
		return model.Report{}, err
	}
	if !ok {
		existing = model.NewEmptyPackageReport(version.PackageName)
	}

	updated := model.FromVersionReport(existing, version)
	if err := saveReport(pkgPath, updated); err != nil {
		return model.Report{}, err
	}
	if err := a.render(pkgPath, updated); err != nil {
		a.logger.Warn().Err(err).Str("package", version.PackageName).Msg("render package report failed")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Only this version's own contribution goes into the collection; the
	// collection's package count is maintained by MarkPackageComplete.
	delta := model.FromVersionReport(model.NewEmptyPackageReport(version.PackageName), version)
	packagesSeen := a.collection.PackagesSeen
	a.collection = a.collection.Merge(model.Report{
		Kind:             model.ReportCollectionKind,
		WasteByExtension: delta.WasteByExtension,
		InfoByPackage: map[string]model.VersionInfo{
			updated.Name: delta.InfoByVersion[version.Version],
		},
		VersionsSeen: 1,
		PackagesSeen: 0,
	})
	a.collection.PackagesSeen = packagesSeen
	if err := saveReport(collectionPath(a.dir), a.collection); err != nil {
		return model.Report{}, err
	}
	if err := a.render(collectionPath(a.dir), a.collection); err != nil {
		a.logger.Warn().Err(err).Msg("render collection report failed")
	}

	return updated, nil
}

// MarkPackageComplete increments the collection's package count once a
// package has had every known version merged in.
func (a *Aggregator) MarkPackageComplete() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.collection.PackagesSeen++
	return saveReport(collectionPath(a.dir), a.collection)
}

// Collection returns the current merged collection report.
func (a *Aggregator) Collection() model.Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.collection
}

func (a *Aggregator) render(snapshotPath string, r model.Report) error {
	var buf bytes.Buffer
	if err := a.renderer.Render(r, &buf); err != nil {
		return err
	}
	return os.WriteFile(renderedPath(snapshotPath), buf.Bytes(), 0644)
}

func renderedPath(snapshotPath string) string {
	return snapshotPath + ".rendered"
}
