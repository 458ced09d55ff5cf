package waste

import (
	"path"
	"regexp"
	"strings"
)

// compileTimeIncludePattern matches Rust's include_str!/include_bytes!
// macro invocations, capturing the string literal path argument.
var compileTimeIncludePattern = regexp.MustCompile(`include_(?:str|bytes)!\s*\(\s*"([^"]+)"\s*\)`)

// extractCompileTimeIncludes scans Rust source content for include_str!/
// include_bytes! invocations and returns the literal paths they reference,
// unresolved (relative to the source file they were found in).
func extractCompileTimeIncludes(source []byte) []string {
	matches := compileTimeIncludePattern.FindAllSubmatch(source, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, string(m[1]))
	}
	return out
}

// buildScriptPathPattern matches string literals inside build.rs that look
// like filesystem paths: it is intentionally loose, since build scripts
// construct paths in many ways, and is filtered further below.
var buildScriptPathPattern = regexp.MustCompile(`"([^"]+)"`)

// extractBuildScriptPaths scans a build script for string literals that
// plausibly name a path read by the build, applying the same filters the
// original heuristic uses to cut false positives:
//   - must contain at least one path separator or a recognizable extension
//   - discarded if it contains '{' (format string), a space, or '@'
//   - discarded if it looks like an ALL-CAPS environment variable name
//   - discarded if it starts with "cargo:" (build script directive output)
//     or "-" (a compiler flag)
func extractBuildScriptPaths(source []byte) []string {
	matches := buildScriptPathPattern.FindAllSubmatch(source, -1)
	var out []string
	for _, m := range matches {
		candidate := string(m[1])
		if looksLikeBuildScriptPath(candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

func looksLikeBuildScriptPath(s string) bool {
	if s == "" {
		return false
	}
	if strings.ContainsAny(s, "{ @") {
		return false
	}
	if strings.HasPrefix(s, "cargo:") {
		return false
	}
	if strings.HasPrefix(s, "-") {
		return false
	}
	if isAllCapsEnvVarName(s) {
		return false
	}
	return strings.Contains(s, "/") || strings.Contains(s, ".")
}

func isAllCapsEnvVarName(s string) bool {
	hasLetter := false
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r == '_':
			hasLetter = hasLetter || (r >= 'A' && r <= 'Z')
		case r >= '0' && r <= '9':
			// digits are fine within an env var name
		default:
			return false
		}
	}
	return hasLetter
}

// toCrateRelativePath resolves a path reference found inside sourceFile
// (itself crate-relative) to a crate-relative path, collapsing "." and
// leading ".." components against sourceFile's parent directory.
//
// Resolution is idempotent: resolving an already crate-relative path
// against the crate root ("") returns the same path unchanged.
func toCrateRelativePath(sourceFile, reference string) string {
	if path.IsAbs(reference) {
		return path.Clean(reference)[1:]
	}
	dir := path.Dir(sourceFile)
	if dir == "." {
		dir = ""
	}
	joined := path.Join(dir, reference)
	return path.Clean(joined)
}
