package waste

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-lean-crate/miner/pkg/model"
)

func TestAnalyze_NoIncludeNoExclude_ProposesNewInclude(t *testing.T) {
	pkg := ArchiveContent{
		Name:    "demo",
		Version: "1.0.0",
		Paths: []string{
			"Cargo.toml",
			"src/lib.rs",
			"tests/fixture.rs",
			"benches/bench.rs",
		},
		ManifestContent: []byte(`
[package]
name = "demo"
version = "1.0.0"
`),
		Sources: map[string][]byte{
			"src/lib.rs": []byte(`pub fn hello() {}`),
		},
	}

	fixes := Analyze(pkg)
	require.Len(t, fixes, 1)
	assert.Equal(t, model.FixNewInclude, fixes[0].Kind)
	assert.Contains(t, fixes[0].Waste, "tests/fixture.rs")
	assert.Contains(t, fixes[0].Waste, "benches/bench.rs")
	assert.NotContains(t, fixes[0].Waste, "src/lib.rs")
}

func TestAnalyze_NoWaste_ProposesNothing(t *testing.T) {
	pkg := ArchiveContent{
		Name:    "demo",
		Version: "1.0.0",
		Paths:   []string{"Cargo.toml", "src/lib.rs"},
		ManifestContent: []byte(`
[package]
name = "demo"
version = "1.0.0"
`),
		Sources: map[string][]byte{"src/lib.rs": []byte(`pub fn hello() {}`)},
	}

	assert.Empty(t, Analyze(pkg))
}

// TestAnalyze_FreshArchiveNoManifestDirectives_ProposesStandardInclude
// anchors the plain no-include/no-exclude case: an unshipped README and a
// wasted test file, with the proposed include list preserving the two
// patterns that always ship ("src/**/*", "Cargo.*") verbatim.
func TestAnalyze_FreshArchiveNoManifestDirectives_ProposesStandardInclude(t *testing.T) {
	pkg := ArchiveContent{
		Name:    "foo",
		Version: "1.0.0",
		Paths:   []string{"src/lib.rs", "Cargo.toml", "tests/it.rs", "README.md"},
		ManifestContent: []byte(`
[package]
name = "foo"
version = "1.0.0"
`),
		Sources: map[string][]byte{"src/lib.rs": []byte(`pub fn hello() {}`)},
	}

	fixes := Analyze(pkg)
	require.Len(t, fixes, 1)
	assert.Equal(t, model.FixNewInclude, fixes[0].Kind)
	assert.Equal(t, []string{"tests/it.rs"}, fixes[0].Waste)
	assert.Equal(t, []string{"src/**/*", "Cargo.*", "README.md"}, fixes[0].Include)
	assert.False(t, fixes[0].HasBuildScript)
}

// TestAnalyze_CompileTimeIncludeIsNotWaste covers an include_bytes! target:
// it must surface in the proposed include list and must never be reported
// as waste, even though nothing in the manifest names it explicitly.
func TestAnalyze_CompileTimeIncludeIsNotWaste(t *testing.T) {
	pkg := ArchiveContent{
		Name:    "demo",
		Version: "1.0.0",
		Paths:   []string{"Cargo.toml", "src/lib.rs", "data/blob.bin", "tests/other.rs"},
		ManifestContent: []byte(`
[package]
name = "demo"
version = "1.0.0"
`),
		Sources: map[string][]byte{
			"src/lib.rs": []byte(`static X: &[u8] = include_bytes!("../data/blob.bin");`),
		},
	}

	fixes := Analyze(pkg)
	require.Len(t, fixes, 1)
	assert.Contains(t, fixes[0].Include, "data/blob.bin")
	assert.NotContains(t, fixes[0].Waste, "data/blob.bin")
	assert.Contains(t, fixes[0].Waste, "tests/other.rs")
}

// TestAnalyze_RedundantCargoLockInInclude_StripsImplicitEntry covers
// enrich_includes: Cargo.lock never needs to be named explicitly, since
// Cargo always ships it, so it moves from Include into IncludeRemoved and no
// other change is proposed.
func TestAnalyze_RedundantCargoLockInInclude_StripsImplicitEntry(t *testing.T) {
	pkg := ArchiveContent{
		Name:    "demo",
		Version: "1.0.0",
		Paths:   []string{"Cargo.toml", "src/lib.rs"},
		ManifestContent: []byte(`
[package]
name = "demo"
version = "1.0.0"
include = ["src/**/*", "Cargo.lock"]
`),
		Sources: map[string][]byte{"src/lib.rs": []byte(`pub fn hello() {}`)},
	}

	fixes := Analyze(pkg)
	require.Len(t, fixes, 1)
	f := fixes[0]
	assert.Equal(t, model.FixImprovedInclude, f.Kind)
	assert.Equal(t, []string{"src/**/*"}, f.Include)
	assert.Equal(t, []string{"Cargo.lock"}, f.IncludeRemoved)
	assert.False(t, f.HasBuildScript)
	assert.Empty(t, f.PotentialPatterns)
	assert.Empty(t, f.PotentialWaste)
}

func TestAnalyze_ExcludeOnly_EnrichesForUnreferencedFiles(t *testing.T) {
	pkg := ArchiveContent{
		Name:    "demo",
		Version: "1.0.0",
		Paths:   []string{"Cargo.toml", "src/lib.rs", "tests/big.rs"},
		ManifestContent: []byte(`
[package]
name = "demo"
version = "1.0.0"
exclude = ["*.log"]
`),
		Sources: map[string][]byte{"src/lib.rs": []byte(`pub fn hello(){}`)},
	}

	fixes := Analyze(pkg)
	require.Len(t, fixes, 1)
	assert.Equal(t, model.FixEnrichedExclude, fixes[0].Kind)
	assert.Contains(t, fixes[0].Waste, "tests/big.rs")
}

func TestAnalyze_IncludeAndExclude_RemovesRedundantExclude(t *testing.T) {
	pkg := ArchiveContent{
		Name:    "demo",
		Version: "1.0.0",
		Paths:   []string{"Cargo.toml", "src/lib.rs"},
		ManifestContent: []byte(`
[package]
name = "demo"
version = "1.0.0"
include = ["src/lib.rs", "Cargo.toml"]
exclude = ["tests/**"]
`),
		Sources: map[string][]byte{"src/lib.rs": []byte(`pub fn hello(){}`)},
	}

	fixes := Analyze(pkg)
	require.Len(t, fixes, 1)
	assert.Equal(t, model.FixRemoveExclude, fixes[0].Kind)
	assert.Equal(t, []string{"tests/**"}, fixes[0].Removed)
}

// TestAnalyze_ConflictingExcludeAndInclude_PreservesSurvivingEntry covers
// the per-pattern explicit-listing rewrite: "tests/**" in exclude swallows
// the "tests/**" include pattern (nothing survives it once tests/fixtures is
// dropped), but "src/tests/helpers.rs" lives under src/, not under the
// excluded tests/ tree, so it is never touched and "src/**/*" passes through
// unchanged.
func TestAnalyze_ConflictingExcludeAndInclude_PreservesSurvivingEntry(t *testing.T) {
	pkg := ArchiveContent{
		Name:    "demo",
		Version: "1.0.0",
		Paths:   []string{"Cargo.toml", "src/lib.rs", "src/tests/helpers.rs", "tests/fixtures/x.bin"},
		ManifestContent: []byte(`
[package]
name = "demo"
version = "1.0.0"
include = ["src/**/*", "tests/**"]
exclude = ["tests/**"]
`),
		Sources: map[string][]byte{"src/lib.rs": []byte(`pub fn hello(){}`)},
	}

	fixes := Analyze(pkg)
	require.Len(t, fixes, 1)
	f := fixes[0]
	assert.Equal(t, model.FixRemoveExcludeAndUseInclude, f.Kind)
	assert.Equal(t, []string{"src/**/*"}, f.Include)
	assert.Equal(t, []string{"tests/**"}, f.IncludeRemoved)
	assert.Equal(t, []string{"tests/fixtures/x.bin"}, f.Waste)
	assert.NotContains(t, f.Waste, "src/tests/helpers.rs")
}

func TestToCrateRelativePath_ResolvesAndIsIdempotent(t *testing.T) {
	resolved := toCrateRelativePath("src/lib.rs", "data/fixture.txt")
	assert.Equal(t, "src/data/fixture.txt", resolved)

	again := toCrateRelativePath("", resolved)
	assert.Equal(t, resolved, again)
}

func TestSimplify_PrefersLiteralWhenPatternMatchesOneFile(t *testing.T) {
	candidates := []string{"src/lib.rs", "src/main.rs"}
	out := simplify([]string{"src/l*.rs"}, candidates)
	assert.Equal(t, []string{"src/lib.rs"}, out)
}
