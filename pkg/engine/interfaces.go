package engine

import (
	"context"

	"github.com/the-lean-crate/miner/pkg/model"
)

// IndexDiff abstracts the registry index: opening or cloning the index's
// working copy happens once, outside the engine, before it starts; the
// index-fetch loop only ever calls FetchChanges.
type IndexDiff interface {
	FetchChanges(ctx context.Context) ([]model.PackageVersion, error)
}
