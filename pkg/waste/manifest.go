package waste

import "github.com/BurntSushi/toml"

// cargoManifest mirrors the subset of Cargo.toml the analyzer cares about.
// Unknown keys are ignored by BurntSushi/toml's default decoding.
type cargoManifest struct {
	Package struct {
		Include []string `toml:"include"`
		Exclude []string `toml:"exclude"`
		Build   string   `toml:"build"`
	} `toml:"package"`
	Lib struct {
		Path string `toml:"path"`
	} `toml:"lib"`
	Bin []struct {
		Path string `toml:"path"`
	} `toml:"bin"`
}

// parseManifest decodes Cargo.toml content. A decode failure yields a
// zero-value manifest rather than an error: a malformed manifest should not
// abort analysis of an otherwise inspectable archive, matching the
// original's tolerant unwrap_or_default() behavior.
func parseManifest(data []byte) cargoManifest {
	var m cargoManifest
	_, _ = toml.Decode(string(data), &m)
	return m
}

// hasInclude reports whether the manifest declares a non-empty include list.
func (m cargoManifest) hasInclude() bool { return len(m.Package.Include) > 0 }

// hasExclude reports whether the manifest declares a non-empty exclude list.
func (m cargoManifest) hasExclude() bool { return len(m.Package.Exclude) > 0 }

// entryPointPaths returns every crate-relative path the manifest designates
// as an entry point: the build script plus every lib/bin target path.
func (m cargoManifest) entryPointPaths() []string {
	var paths []string
	if m.Package.Build != "" {
		paths = append(paths, m.Package.Build)
	}
	if m.Lib.Path != "" {
		paths = append(paths, m.Lib.Path)
	}
	for _, b := range m.Bin {
		if b.Path != "" {
			paths = append(paths, b.Path)
		}
	}
	return paths
}

func contains(paths []string, target string) bool {
	for _, p := range paths {
		if p == target {
			return true
		}
	}
	return false
}

// EntryPoints returns every crate-relative entry point path the extractor
// should capture content for: the manifest's declared build script/lib/bin
// paths, falling back to Cargo's conventional defaults (build.rs, src/lib.rs,
// src/main.rs) whenever the manifest leaves them unset and the archive
// actually ships that default path.
func EntryPoints(manifestContent []byte, availablePaths []string) []string {
	m := parseManifest(manifestContent)
	paths := m.entryPointPaths()

	if m.Package.Build == "" && contains(availablePaths, "build.rs") {
		paths = append(paths, "build.rs")
	}
	if m.Lib.Path == "" && contains(availablePaths, "src/lib.rs") {
		paths = append(paths, "src/lib.rs")
	}
	if len(m.Bin) == 0 && contains(availablePaths, "src/main.rs") {
		paths = append(paths, "src/main.rs")
	}
	return paths
}
