package waste

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// standardIncludePatterns lists the files Cargo ships by default when a
// manifest declares neither `include` nor `exclude`.
var standardIncludePatterns = []string{
	"src/**/*", "Cargo.*",
	"authors", "AUTHORS",
	"license.*", "license-*", "LICENSE.*", "LICENSE-*", "license", "LICENSE",
	"readme.*", "README.*", "readme", "README",
	"changelog.*", "CHANGELOG.*", "changelog", "CHANGELOG",
}

// standardExcludePatterns lists file shapes Cargo packages never need to
// ship: images, build artifacts, and the usual test/doc/example trees.
var standardExcludePatterns = []string{
	"**/*.jpg", "**/*.jpeg", "**/*.png", "**/*.gif", "**/*.bmp",
	"**/doc/**/*", "**/docs/**/*",
	"**/benches/**/*", "**/benchmark/**/*", "**/benchmarks/**/*",
	"**/test/**/*", "**/*_test.*", "**/*_test/**/*", "**/tests/**/*", "**/*_tests.*", "**/*_tests/**/*", "**/testing/**/*",
	"**/spec/**/*", "**/*_spec.*", "**/*_spec/**/*", "**/specs/**/*", "**/*_specs.*", "**/*_specs/**/*",
	"**/example/**/*", "**/examples/**/*",
	"**/target/**/*", "**/build/**/*", "**/out/**/*", "**/tmp/**/*", "**/etc/**/*",
	"**/testdata/**/*", "**/samples/**/*", "**/assets/**/*", "**/maps/**/*", "**/media/**/*",
	"**/fixtures/**/*", "**/node_modules/**/*",
}

// matchPattern reports whether path matches pattern using the same
// semantics as a typical Cargo-style gitignore glob: literal path
// separators ('*' does not cross '/'), backslash escapes honored,
// case-sensitive comparison. A pattern naming a directory also matches
// everything nested under it.
func matchPattern(pattern, path string) bool {
	pattern = strings.TrimPrefix(pattern, "./")
	if strings.HasSuffix(pattern, "/") {
		pattern += "**"
	}
	ok, err := doublestar.Match(pattern, path)
	if err != nil {
		return false
	}
	if ok {
		return true
	}
	// A directory-only pattern like "target" should also match everything
	// nested under it, same as gitignore semantics.
	ok, _ = doublestar.Match(pattern+"/**", path)
	return ok
}

// matchesAny reports whether path matches any of patterns.
func matchesAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if matchPattern(p, path) {
			return true
		}
	}
	return false
}

// splitMatchedAndUnmatched partitions paths into those matching at least one
// pattern in patterns and those matching none.
func splitMatchedAndUnmatched(patterns, paths []string) (matched, unmatched []string) {
	for _, p := range paths {
		if matchesAny(patterns, p) {
			matched = append(matched, p)
		} else {
			unmatched = append(unmatched, p)
		}
	}
	return matched, unmatched
}

// simplify reduces each pattern, in order, against a shrinking pool of
// candidates: a pattern matching no remaining candidate is dropped, one
// matching exactly one is replaced by that literal path (a single-file
// pattern carries no benefit over naming the file directly), and one
// matching more than one is kept as-is. Matched candidates are removed from
// the pool before the next pattern is considered, so no file is counted
// against two patterns.
func simplify(patterns []string, candidates []string) []string {
	pool := append([]string(nil), candidates...)
	out := make([]string, 0, len(patterns))
	for _, pat := range patterns {
		var matched, rest []string
		for _, c := range pool {
			if matchPattern(pat, c) {
				matched = append(matched, c)
			} else {
				rest = append(rest, c)
			}
		}
		switch len(matched) {
		case 0:
		case 1:
			out = append(out, matched[0])
		default:
			out = append(out, pat)
		}
		pool = rest
	}
	return out
}

// nonGreedyPattern turns a directory path into a pattern that matches only
// files immediately and recursively beneath it, e.g. "src" -> "src/**".
func nonGreedyPattern(dir string) string {
	dir = strings.TrimSuffix(dir, "/")
	return dir + "/**"
}

// nonGreedyPatterns filters patterns down to the ones shaped like a
// directory wildcard: no leading '*' but a trailing one. These are the
// candidates considered when checking whether a standard-exclude match has
// already been accounted for by one of the caller's own patterns.
func nonGreedyPatterns(patterns []string) []string {
	var out []string
	for _, p := range patterns {
		if !strings.HasPrefix(p, "*") && strings.HasSuffix(p, "*") {
			out = append(out, p)
		}
	}
	return out
}

// directoriesOf returns the set of distinct parent directories among paths,
// in first-seen order.
func directoriesOf(paths []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range paths {
		idx := strings.LastIndex(p, "/")
		if idx < 0 {
			continue
		}
		dir := p[:idx]
		if !seen[dir] {
			seen[dir] = true
			out = append(out, dir)
		}
	}
	return out
}

// potentialNegatedIncludes finds entries that match a standard exclude
// pattern and are not covered by any of avoid (the caller's own
// include-shaped patterns); entries matching avoid are skipped. Shipping such
// an entry despite the standard exclude is a choice worth calling out
// explicitly, so it is reported back
// as a negated pattern ("!pattern") the caller can add to make the conflict
// visible in the manifest, alongside the entries it would silence.
func potentialNegatedIncludes(entries []string, avoid []string) (patterns []string, waste []string) {
	seen := map[string]bool{}
	for _, e := range entries {
		if matchesAny(avoid, e) {
			continue
		}
		for _, pat := range standardExcludePatterns {
			if matchPattern(pat, e) {
				if !seen[pat] {
					seen[pat] = true
					patterns = append(patterns, "!"+pat)
				}
				waste = append(waste, e)
				break
			}
		}
	}
	return patterns, waste
}

func dedup(items []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(items))
	for _, i := range items {
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	return out
}

// stripImplicitIncludes removes the manifest and lockfile entries Cargo adds
// to every archive regardless of `include`, returning both what's left and
// what was removed.
func stripImplicitIncludes(patterns []string) (kept, removed []string) {
	for _, p := range patterns {
		switch p {
		case "Cargo.toml.orig", "Cargo.toml", "Cargo.lock", "./Cargo.toml", "./Cargo.lock":
			removed = append(removed, p)
		default:
			kept = append(kept, p)
		}
	}
	return kept, removed
}
