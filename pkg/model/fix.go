package model

// FixKind enumerates the shapes a manifest fix proposal can take.
type FixKind int

const (
	// FixNewInclude proposes adding an `include` key where none existed.
	// Include, HasBuildScript.
	FixNewInclude FixKind = iota
	// FixImprovedInclude proposes stripping implicit entries out of an
	// existing `include` key. Include, IncludeRemoved, optional
	// PotentialPatterns/PotentialWaste, HasBuildScript.
	FixImprovedInclude
	// FixEnrichedExclude proposes widening an existing `exclude` key.
	// Exclude, ExcludeAdded, HasBuildScript.
	FixEnrichedExclude
	// FixRemoveExcludeAndUseInclude proposes dropping `exclude` entirely in
	// favor of an equivalent, more precise `include` list. IncludeAdded,
	// Include, IncludeRemoved.
	FixRemoveExcludeAndUseInclude
	// FixRemoveExclude proposes dropping exclude patterns that match nothing
	// shippable. Removed.
	FixRemoveExclude
)

// Fix is a single proposed manifest change, plus the wasted-file evidence
// that justifies it. Not every field applies to every Kind; see the FixKind
// constants above for which fields a given kind populates.
type Fix struct {
	Kind Kind

	Include        []string // patterns to add or already present, merged
	IncludeAdded   []string // literal paths substituted in place of a pattern that swallowed excluded entries
	IncludeRemoved []string // implicit entries (Cargo.toml, Cargo.lock, ...) stripped out of Include
	Exclude        []string // patterns to add or already present, merged
	ExcludeAdded   []string // new exclude patterns proposed on top of the existing ones
	Removed        []string // exclude patterns this fix makes obsolete
	Waste          []string // files removed from the shipped set by this fix
	HasBuildScript bool     // build.rs is part of the package and was folded into the analysis

	PotentialPatterns []string // negated include patterns ("!pattern") that would silence PotentialWaste
	PotentialWaste    []string // files matched by both a standard include and a standard exclude
}

// Kind is an alias kept local to this file so Fix.Kind reads naturally;
// defined separately to avoid colliding with FixKind's own zero value name.
type Kind = FixKind

func dedupAppend(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	out := append([]string(nil), existing...)
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range incoming {
		if !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}
	return out
}

// Merge combines two fixes describing the same kind of change, deduplicating
// each list. Merging fixes of different kinds is a programming error and
// panics, mirroring the tightly scoped call sites that produce Fix values in
// the waste analyzer (each algorithm only ever merges its own kind).
func (f Fix) Merge(other Fix) Fix {
	if f.Kind != other.Kind {
		panic("model: cannot merge fixes of different kinds")
	}
	return Fix{
		Kind:              f.Kind,
		Include:           dedupAppend(f.Include, other.Include),
		IncludeAdded:      dedupAppend(f.IncludeAdded, other.IncludeAdded),
		IncludeRemoved:    dedupAppend(f.IncludeRemoved, other.IncludeRemoved),
		Exclude:           dedupAppend(f.Exclude, other.Exclude),
		ExcludeAdded:      dedupAppend(f.ExcludeAdded, other.ExcludeAdded),
		Removed:           dedupAppend(f.Removed, other.Removed),
		Waste:             dedupAppend(f.Waste, other.Waste),
		HasBuildScript:    f.HasBuildScript || other.HasBuildScript,
		PotentialPatterns: dedupAppend(f.PotentialPatterns, other.PotentialPatterns),
		PotentialWaste:    dedupAppend(f.PotentialWaste, other.PotentialWaste),
	}
}
