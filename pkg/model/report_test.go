package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromVersionReport_PotentialOnlyCountsForImprovedInclude(t *testing.T) {
	newInclude := Fix{Kind: FixNewInclude, Waste: []string{"tests/fixture.rs"}}
	improved := Fix{Kind: FixImprovedInclude, Waste: []string{"examples/demo.rs"}, PotentialWaste: []string{"examples/other.rs"}}

	version := NewVersionReport("demo", "1.0.0", []Fix{newInclude, improved})
	pkg := FromVersionReport(NewEmptyPackageReport("demo"), version)

	// waste: tests/fixture.rs + examples/demo.rs (NewInclude: no potential added)
	// potential: examples/other.rs only counted because its Fix is ImprovedInclude
	assert.EqualValues(t, 3, pkg.WasteByExtension["rs"].FilesCount)
	assert.Equal(t, "1.0.0", pkg.WasteByExtension["rs"].WasteLatestVersion)
}

func TestVersionInfo_Add_KeepsLargerVersionName(t *testing.T) {
	a := VersionInfo{AggregateFileInfo: AggregateFileInfo{FilesCount: 1}, WasteLatestVersion: "2.0.0"}
	b := VersionInfo{AggregateFileInfo: AggregateFileInfo{FilesCount: 1}, WasteLatestVersion: "10.0.0"}

	// Plain lexicographic comparison: "2.0.0" > "10.0.0" as strings, so "2.0.0" wins
	// even though it is numerically the older release. This mirrors the
	// original's string-based comparison rather than a semver-aware one.
	sum := a.Add(b)
	assert.Equal(t, "2.0.0", sum.WasteLatestVersion)
	assert.EqualValues(t, 2, sum.FilesCount)
}

func TestReport_Merge_PackageLevelIsCommutative(t *testing.T) {
	left := Report{Kind: ReportPackageKind, Name: "demo", WasteByExtension: map[string]VersionInfo{
		"rs": {AggregateFileInfo: AggregateFileInfo{FilesCount: 2}, WasteLatestVersion: "1.0.0"},
	}}
	right := Report{Kind: ReportPackageKind, Name: "demo", WasteByExtension: map[string]VersionInfo{
		"rs": {AggregateFileInfo: AggregateFileInfo{FilesCount: 3}, WasteLatestVersion: "1.1.0"},
	}}

	ab := left.Merge(right)
	ba := right.Merge(left)

	assert.Equal(t, ab.WasteByExtension["rs"].FilesCount, ba.WasteByExtension["rs"].FilesCount)
	assert.EqualValues(t, 5, ab.WasteByExtension["rs"].FilesCount)
}

func TestFix_Merge_DedupsLists(t *testing.T) {
	a := Fix{Kind: FixEnrichedExclude, Exclude: []string{"*.log"}, Waste: []string{"a.log"}}
	b := Fix{Kind: FixEnrichedExclude, Exclude: []string{"*.log", "*.tmp"}, Waste: []string{"a.log", "b.tmp"}}

	merged := a.Merge(b)
	assert.ElementsMatch(t, []string{"*.log", "*.tmp"}, merged.Exclude)
	assert.ElementsMatch(t, []string{"a.log", "b.tmp"}, merged.Waste)
}

func TestReport_Merge_ThreeVersionsAcrossTwoPackages_PromoteToCollection(t *testing.T) {
	v1 := NewVersionReport("foo", "1.0.0", []Fix{{Kind: FixNewInclude, Waste: []string{"tests/a.rs"}}})
	v2 := NewVersionReport("foo", "2.0.0", []Fix{{Kind: FixNewInclude, Waste: []string{"tests/b.rs"}}})
	v3 := NewVersionReport("bar", "1.0.0", []Fix{{Kind: FixNewInclude, Waste: []string{"tests/c.rs"}}})

	orderings := [][]Report{
		{v1, v2, v3},
		{v2, v1, v3},
		{v3, v2, v1},
	}

	var collections []Report
	for _, order := range orderings {
		merged := order[0].Merge(order[1]).Merge(order[2])
		require.Equal(t, ReportCollectionKind, merged.Kind)
		require.Len(t, merged.InfoByPackage, 2)
		collections = append(collections, merged)
	}

	for _, c := range collections[1:] {
		assert.Equal(t, collections[0].InfoByPackage, c.InfoByPackage)
		assert.Equal(t, collections[0].WasteByExtension, c.WasteByExtension)
		assert.Equal(t, collections[0].VersionsSeen, c.VersionsSeen)
		assert.Equal(t, collections[0].PackagesSeen, c.PackagesSeen)
	}

	assert.EqualValues(t, 3, collections[0].WasteByExtension["rs"].FilesCount)
	assert.EqualValues(t, 3, collections[0].VersionsSeen)
	assert.EqualValues(t, 2, collections[0].PackagesSeen)
}
