package waste

import (
	"path"
	"sort"

	"github.com/the-lean-crate/miner/pkg/model"
)

// ArchiveContent is the analyzer's input: everything it needs to know about
// one extracted package version, already resolved to crate-relative paths
// (i.e. with the "<name>-<version>/" archive prefix stripped).
type ArchiveContent struct {
	Name    string
	Version string
	// Paths lists every file entry shipped in the archive.
	Paths []string
	// ManifestContent is the raw Cargo.toml content, always present and
	// always captured in full by the extractor.
	ManifestContent []byte
	// Sources maps a crate-relative path (build script, lib entry, bin
	// entries) to its captured content, used to scan for include_str!/
	// include_bytes! references and build-script path heuristics.
	Sources map[string][]byte
}

// Analyze inspects one package version and proposes manifest fixes that
// would reduce what it ships. Which of the four algorithms runs depends only
// on whether the manifest currently declares `include` and/or `exclude`.
func Analyze(pkg ArchiveContent) []model.Fix {
	manifest := parseManifest(pkg.ManifestContent)

	switch {
	case !manifest.hasInclude() && !manifest.hasExclude():
		return standardIncludes(pkg, manifest)
	case manifest.hasInclude() && !manifest.hasExclude():
		return enrichIncludes(pkg, manifest)
	case !manifest.hasInclude() && manifest.hasExclude():
		return enrichExcludes(pkg, manifest)
	default:
		return computeIncludesFromIncludesAndExcludes(pkg, manifest)
	}
}

// buildScriptPath resolves the package's build script path, defaulting to
// "build.rs" when the manifest leaves `package.build` unset, and reports
// whether that path is actually present in the archive.
func buildScriptPath(pkg ArchiveContent, manifest cargoManifest) (string, bool) {
	name := manifest.Package.Build
	if name == "" {
		name = "build.rs"
	}
	for _, p := range pkg.Paths {
		if p == name {
			return name, true
		}
	}
	return "", false
}

// compileTimeIncludePatterns collects every path the package's entry points
// reference at compile time: include_str!/include_bytes! targets found in
// lib/bin sources (resolved relative to the referencing file), the
// non-default source directories those entry points live in, and paths
// parsed out of the build script.
func compileTimeIncludePatterns(pkg ArchiveContent, manifest cargoManifest) []string {
	var out []string
	for _, ep := range EntryPoints(pkg.ManifestContent, pkg.Paths) {
		if src, ok := pkg.Sources[ep]; ok {
			for _, ref := range extractCompileTimeIncludes(src) {
				out = append(out, toCrateRelativePath(ep, ref))
			}
		}
		out = append(out, addToIncludesIfNonDefault(ep)...)
	}
	if name, present := buildScriptPath(pkg, manifest); present {
		if src, ok := pkg.Sources[name]; ok {
			out = append(out, buildScriptIncludePatterns(src)...)
		}
	}
	return dedup(out)
}

// addToIncludesIfNonDefault adds a recursive pattern for an entry point's
// containing directory, unless that directory is already covered by a
// standard include pattern (e.g. "src", whose "src/**/*" is standard).
func addToIncludesIfNonDefault(entryPoint string) []string {
	dir := path.Dir(entryPoint)
	if dir == "." {
		return nil
	}
	recursive := dir + "/**/*"
	for _, p := range standardIncludePatterns {
		if p == recursive {
			return nil
		}
	}
	return []string{dir + "/**/*.rs"}
}

// buildScriptIncludePatterns turns the paths a build script reads at
// build-time into include patterns: one non-greedy pattern per distinct
// parent directory, plus one per original path, so a build script that reads
// a whole directory's worth of files gets it covered even if new files are
// added to it later.
func buildScriptIncludePatterns(source []byte) []string {
	paths := extractBuildScriptPaths(source)
	if len(paths) == 0 {
		return nil
	}
	var dirs []string
	seen := map[string]bool{}
	for _, p := range paths {
		if d := path.Dir(p); d != "." && !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	var out []string
	for _, d := range dirs {
		out = append(out, d+"/*")
	}
	for _, p := range paths {
		out = append(out, p+"/*")
	}
	return out
}

// standardIncludes handles the case where the manifest declares neither
// `include` nor `exclude`. "src/**/*" and "Cargo.*" always ship regardless of
// what else is present, so they are always proposed verbatim; the rest of
// the standard include family (authors/license/readme/changelog) and any
// compile-time-derived patterns get simplified against what's actually
// present.
func standardIncludes(pkg ArchiveContent, manifest cargoManifest) []model.Fix {
	name, hasBuildScript := buildScriptPath(pkg, manifest)
	extra := compileTimeIncludePatterns(pkg, manifest)
	if hasBuildScript {
		extra = dedup(append(extra, name))
	}

	corePatterns := []string{"src/**/*", "Cargo.*"}
	docPatterns := standardIncludePatterns[2:]

	allPatterns := dedup(append(append(append([]string(nil), corePatterns...), docPatterns...), extra...))
	included, excluded := splitMatchedAndUnmatched(allPatterns, pkg.Paths)
	sort.Strings(excluded)

	var nonCore []string
	for _, e := range included {
		if !matchesAny(corePatterns, e) {
			nonCore = append(nonCore, e)
		}
	}
	simplified := simplify(dedup(append(append([]string(nil), docPatterns...), extra...)), nonCore)

	avoid := nonGreedyPatterns(extra)
	negated, negatedWaste := potentialNegatedIncludes(included, avoid)

	if len(excluded) == 0 && len(negated) == 0 {
		return nil
	}

	waste := dedup(append(append([]string(nil), excluded...), negatedWaste...))
	sort.Strings(waste)

	return []model.Fix{{
		Kind:              model.FixNewInclude,
		Include:           dedup(append(append(append([]string(nil), corePatterns...), simplified...), negated...)),
		HasBuildScript:    hasBuildScript,
		Waste:             waste,
		PotentialPatterns: negated,
	}}
}

// enrichIncludes handles the case where `include` is already declared but
// `exclude` is not: implicit entries (Cargo.toml, Cargo.lock and their
// "./"-prefixed forms) never need to be listed explicitly, since Cargo ships
// them regardless, so the fix strips them out of the declared list. If
// nothing needed stripping, no fix is proposed.
func enrichIncludes(pkg ArchiveContent, manifest cargoManifest) []model.Fix {
	_, hasBuildScript := buildScriptPath(pkg, manifest)

	kept, removed := stripImplicitIncludes(manifest.Package.Include)
	if len(removed) == 0 {
		return nil
	}

	avoid := nonGreedyPatterns(kept)
	negated, negatedWaste := potentialNegatedIncludes(pkg.Paths, avoid)

	fix := model.Fix{
		Kind:           model.FixImprovedInclude,
		Include:        kept,
		IncludeRemoved: removed,
		HasBuildScript: hasBuildScript,
	}
	if len(negated) > 0 {
		fix.PotentialPatterns = negated
		fix.PotentialWaste = negatedWaste
	}
	return []model.Fix{fix}
}

// enrichExcludes handles the case where only `exclude` is declared: any file
// shaped like standard waste (tests, fixtures, docs, ...) that isn't already
// covered by the declared excludes or by a compile-time reference is
// genuinely wasted, so the fix widens exclude to cover it.
func enrichExcludes(pkg ArchiveContent, manifest cargoManifest) []model.Fix {
	_, hasBuildScript := buildScriptPath(pkg, manifest)
	avoid := dedup(append(append([]string(nil), standardIncludePatterns...), compileTimeIncludePatterns(pkg, manifest)...))

	var waste []string
	for _, p := range pkg.Paths {
		if matchesAny(manifest.Package.Exclude, p) {
			continue
		}
		if !matchesAny(standardExcludePatterns, p) {
			continue
		}
		if matchesAny(avoid, p) {
			continue
		}
		waste = append(waste, p)
	}
	sort.Strings(waste)
	if len(waste) == 0 {
		return nil
	}

	var candidates []string
	for _, dir := range directoriesOf(waste) {
		candidates = append(candidates, nonGreedyPattern(dir))
	}
	added := simplify(dedup(candidates), pkg.Paths)

	return []model.Fix{{
		Kind:           model.FixEnrichedExclude,
		Exclude:        dedup(append(append([]string(nil), manifest.Package.Exclude...), added...)),
		ExcludeAdded:   added,
		Waste:          waste,
		HasBuildScript: hasBuildScript,
	}}
}

// computeIncludesFromIncludesAndExcludes handles the case where both
// `include` and `exclude` are declared. Exclude patterns that don't actually
// remove anything from what include already ships are dead weight once
// include is in effect, so a manifest with nothing left to exclude proposes
// dropping exclude outright. Otherwise, every include pattern that reaches
// into the excluded set gets replaced by the explicit list of entries it
// still matches outside that set, so the conflict is resolved without
// silently losing files the pattern was also relied on for.
func computeIncludesFromIncludesAndExcludes(pkg ArchiveContent, manifest cargoManifest) []model.Fix {
	include := manifest.Package.Include
	exclude := manifest.Package.Exclude

	excludedByPattern, remaining := splitMatchedAndUnmatched(exclude, pkg.Paths)

	excludedDirs, _ := splitMatchedAndUnmatched(exclude, directoriesOf(pkg.Paths))
	var excludedByDir, stillRemaining []string
	for _, p := range remaining {
		underExcludedDir := false
		for _, d := range excludedDirs {
			if matchPattern(d+"/**", p) {
				underExcludedDir = true
				break
			}
		}
		if underExcludedDir {
			excludedByDir = append(excludedByDir, p)
		} else {
			stillRemaining = append(stillRemaining, p)
		}
	}
	remaining = stillRemaining
	excluded := dedup(append(excludedByPattern, excludedByDir...))

	if len(excluded) == 0 {
		return []model.Fix{{Kind: model.FixRemoveExclude, Removed: exclude}}
	}
	sort.Strings(excluded)

	newInclude, includeAdded, includeRemoved := rewriteIncludesAroundExcluded(include, excluded, remaining)
	if len(includeAdded) == 0 && len(includeRemoved) == 0 {
		return nil
	}

	return []model.Fix{{
		Kind:           model.FixRemoveExcludeAndUseInclude,
		Include:        newInclude,
		IncludeAdded:   includeAdded,
		IncludeRemoved: includeRemoved,
		Removed:        exclude,
		Waste:          excluded,
	}}
}

// rewriteIncludesAroundExcluded replaces each include pattern that matches
// an excluded entry with the explicit list of remaining (non-excluded)
// entries it still matches, so that dropping exclude doesn't silently pull
// excluded files back in. Patterns untouched by the exclude pass through
// unchanged. Implicit entries are stripped from the result afterward.
func rewriteIncludesAroundExcluded(include, excluded, remaining []string) (newInclude, added, removed []string) {
	for _, pat := range include {
		if matchesAnyOf(pat, excluded) {
			var explicit []string
			for _, e := range remaining {
				if matchPattern(pat, e) {
					explicit = append(explicit, e)
				}
			}
			removed = append(removed, pat)
			added = append(added, explicit...)
			newInclude = append(newInclude, explicit...)
		} else {
			newInclude = append(newInclude, pat)
		}
	}
	kept, strippedImplicit := stripImplicitIncludes(newInclude)
	removed = append(removed, strippedImplicit...)
	return dedup(kept), dedup(added), dedup(removed)
}

func matchesAnyOf(pattern string, entries []string) bool {
	for _, e := range entries {
		if matchPattern(pattern, e) {
			return true
		}
	}
	return false
}
