package model

// ReportKind enumerates the three levels a Report can summarize.
type ReportKind int

const (
	// ReportVersionKind summarizes the waste analysis of one package version.
	ReportVersionKind ReportKind = iota
	// ReportPackageKind summarizes every version of one package.
	ReportPackageKind
	// ReportCollectionKind summarizes every package mined so far.
	ReportCollectionKind
)

// NoExtension is the bucket key used for files with no extension when
// grouping waste by file extension.
const NoExtension = "<NO_EXT>"

// AggregateFileInfo accumulates simple counters over a set of files.
type AggregateFileInfo struct {
	FilesCount uint64
	FilesSize  uint64
}

// Add sums two AggregateFileInfo values.
func (a AggregateFileInfo) Add(b AggregateFileInfo) AggregateFileInfo {
	return AggregateFileInfo{
		FilesCount: a.FilesCount + b.FilesCount,
		FilesSize:  a.FilesSize + b.FilesSize,
	}
}

// VersionInfo is AggregateFileInfo plus the name of the package version that
// currently "owns" the aggregate, used to track the observed waste of the
// latest known version of a package even as older versions' waste is folded
// into the same running total.
type VersionInfo struct {
	AggregateFileInfo
	WasteLatestVersion string
}

// Add combines two VersionInfo values. Counters are always summed; the
// WasteLatestVersion field is kept from whichever side names the
// lexicographically larger version string, with the left-hand side winning
// ties. This intentionally mirrors a plain string comparison rather than a
// semver-aware one.
func (v VersionInfo) Add(other VersionInfo) VersionInfo {
	sum := v.AggregateFileInfo.Add(other.AggregateFileInfo)
	latest := other.WasteLatestVersion
	if v.WasteLatestVersion >= other.WasteLatestVersion {
		latest = v.WasteLatestVersion
	}
	return VersionInfo{AggregateFileInfo: sum, WasteLatestVersion: latest}
}

func mergeVersionInfoMaps(a, b map[string]VersionInfo) map[string]VersionInfo {
	out := make(map[string]VersionInfo, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if cur, ok := out[k]; ok {
			out[k] = cur.Add(v)
		} else {
			out[k] = v
		}
	}
	return out
}

// Report is the tagged union produced by the waste analyzer and merged by
// the report aggregator. Merge implements the promotion monoid: merging two
// reports of mismatched kinds promotes the finer-grained side (Version below
// Package below Collection) up before combining, so any pair of reports can
// always be merged into at least the coarser of the two kinds involved.
type Report struct {
	Kind ReportKind

	// Name identifies the package (ReportPackageKind) or is empty
	// (ReportCollectionKind); PackageName identifies the owning package for
	// ReportVersionKind.
	Name        string
	PackageName string
	Version     string // ReportVersionKind only

	Fixes []Fix // ReportVersionKind only

	// WasteByExtension buckets accumulated waste by file extension,
	// NoExtension for extensionless files. Populated for ReportPackageKind
	// and ReportCollectionKind.
	WasteByExtension map[string]VersionInfo

	// InfoByVersion holds one entry per version folded into a
	// ReportPackageKind report, keyed by version string.
	InfoByVersion map[string]VersionInfo
	// InfoByPackage holds one entry per package folded into a
	// ReportCollectionKind report, keyed by package name.
	InfoByPackage map[string]VersionInfo

	// VersionsSeen counts how many versions contributed to this report, used
	// by ReportCollectionKind to report package/version totals.
	VersionsSeen uint64
	PackagesSeen uint64
}

// NewVersionReport builds a ReportVersionKind report.
func NewVersionReport(packageName, version string, fixes []Fix) Report {
	return Report{Kind: ReportVersionKind, PackageName: packageName, Version: version, Fixes: fixes}
}

// NewEmptyPackageReport builds a zero-valued ReportPackageKind report for the
// named package, ready to be merged with per-version reports.
func NewEmptyPackageReport(name string) Report {
	return Report{
		Kind:             ReportPackageKind,
		Name:             name,
		WasteByExtension: map[string]VersionInfo{},
		InfoByVersion:    map[string]VersionInfo{},
	}
}

// NewEmptyCollectionReport builds a zero-valued ReportCollectionKind report.
func NewEmptyCollectionReport() Report {
	return Report{
		Kind:             ReportCollectionKind,
		WasteByExtension: map[string]VersionInfo{},
		InfoByPackage:    map[string]VersionInfo{},
	}
}

func extensionOf(path string) string {
	dot := -1
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			break
		}
		if path[i] == '.' {
			dot = i
			break
		}
	}
	if dot < 0 || dot == len(path)-1 {
		return NoExtension
	}
	return path[dot+1:]
}

// fixToWastedFilesAggregate turns a single Fix's waste evidence into
// per-extension VersionInfo entries for the given version string.
//
// Only FixImprovedInclude contributes a PotentialWaste-derived entry in
// addition to its Waste entry: FixNewInclude's potential waste was already
// folded into Waste when the fix was constructed, so counting it again here
// would double it.
func fixToWastedFilesAggregate(f Fix, version string) map[string]VersionInfo {
	out := map[string]VersionInfo{}
	add := func(path string, size uint64) {
		ext := extensionOf(path)
		cur := out[ext]
		cur = cur.Add(VersionInfo{AggregateFileInfo: AggregateFileInfo{FilesCount: 1, FilesSize: size}, WasteLatestVersion: version})
		out[ext] = cur
	}
	for _, p := range f.Waste {
		add(p, 0)
	}
	if f.Kind == FixImprovedInclude {
		for _, p := range f.PotentialWaste {
			add(p, 0)
		}
	}
	return out
}

// FromVersionReport folds a ReportVersionKind report into a ReportPackageKind
// aggregate, extracting waste-by-extension entries from every fix and
// recording the version's own total under InfoByVersion.
func FromVersionReport(pkg Report, version Report) Report {
	if version.Kind != ReportVersionKind {
		panic("model: FromVersionReport requires a version report")
	}
	waste := map[string]VersionInfo{}
	for ext, vi := range pkg.WasteByExtension {
		waste[ext] = vi
	}
	var versionTotal AggregateFileInfo
	for _, f := range version.Fixes {
		for ext, vi := range fixToWastedFilesAggregate(f, version.Version) {
			versionTotal = versionTotal.Add(vi.AggregateFileInfo)
			if cur, ok := waste[ext]; ok {
				waste[ext] = cur.Add(vi)
			} else {
				waste[ext] = vi
			}
		}
	}

	infoByVersion := make(map[string]VersionInfo, len(pkg.InfoByVersion)+1)
	for v, vi := range pkg.InfoByVersion {
		infoByVersion[v] = vi
	}
	infoByVersion[version.Version] = VersionInfo{AggregateFileInfo: versionTotal, WasteLatestVersion: version.Version}

	return Report{
		Kind:             ReportPackageKind,
		Name:             version.PackageName,
		WasteByExtension: waste,
		InfoByVersion:    infoByVersion,
		VersionsSeen:     pkg.VersionsSeen + 1,
		PackagesSeen:     pkg.PackagesSeen,
	}
}

// versionToPackage promotes a single ReportVersionKind report into the
// one-version ReportPackageKind aggregate it would produce if folded into an
// empty package report.
func versionToPackage(v Report) Report {
	return FromVersionReport(NewEmptyPackageReport(v.PackageName), v)
}

// packageToCollection promotes a ReportPackageKind report into the
// one-package ReportCollectionKind aggregate it would produce if folded into
// an empty collection report. The package's InfoByVersion entries collapse
// into a single InfoByPackage entry: the summed total across versions, with
// WasteLatestVersion naming the lexicographically largest version seen.
func packageToCollection(p Report) Report {
	var total AggregateFileInfo
	latest := ""
	for v, vi := range p.InfoByVersion {
		total = total.Add(vi.AggregateFileInfo)
		if v > latest {
			latest = v
		}
	}
	info := map[string]VersionInfo{}
	if p.Name != "" {
		info[p.Name] = VersionInfo{AggregateFileInfo: total, WasteLatestVersion: latest}
	}
	return Report{
		Kind:             ReportCollectionKind,
		WasteByExtension: p.WasteByExtension,
		InfoByPackage:    info,
		VersionsSeen:     p.VersionsSeen,
		PackagesSeen:     1,
	}
}

// asCollection promotes any report up to ReportCollectionKind.
func asCollection(r Report) Report {
	switch r.Kind {
	case ReportCollectionKind:
		return r
	case ReportPackageKind:
		return packageToCollection(r)
	case ReportVersionKind:
		return packageToCollection(versionToPackage(r))
	default:
		panic("model: unknown report kind")
	}
}

// mergePackagesSameName merges two ReportPackageKind reports that share a
// Name: every map sums by key, counters add.
func mergePackagesSameName(a, b Report) Report {
	return Report{
		Kind:             ReportPackageKind,
		Name:             a.Name,
		WasteByExtension: mergeVersionInfoMaps(a.WasteByExtension, b.WasteByExtension),
		InfoByVersion:    mergeVersionInfoMaps(a.InfoByVersion, b.InfoByVersion),
		VersionsSeen:     a.VersionsSeen + b.VersionsSeen,
		PackagesSeen:     a.PackagesSeen + b.PackagesSeen,
	}
}

// mergeCollections merges two ReportCollectionKind reports. PackagesSeen is
// recomputed from the deduplicated InfoByPackage map rather than summed: the
// same package can reach Collection level through more than one promotion
// path depending on merge associativity (two of its versions arriving via
// separate branches before ever meeting at Package level), and summing the
// two sides' counters would count it twice.
func mergeCollections(a, b Report) Report {
	infoByPackage := mergeVersionInfoMaps(a.InfoByPackage, b.InfoByPackage)
	return Report{
		Kind:             ReportCollectionKind,
		WasteByExtension: mergeVersionInfoMaps(a.WasteByExtension, b.WasteByExtension),
		InfoByPackage:    infoByPackage,
		VersionsSeen:     a.VersionsSeen + b.VersionsSeen,
		PackagesSeen:     uint64(len(infoByPackage)),
	}
}

// combinePackages merges two ReportPackageKind reports. Same name: sums
// directly. Different names: neither package subsumes the other, so both
// promote to ReportCollectionKind and merge there instead, matching the
// Package⊕Package decision for differing names.
func combinePackages(a, b Report) Report {
	if a.Name == "" {
		return b
	}
	if b.Name == "" {
		return a
	}
	if a.Name == b.Name {
		return mergePackagesSameName(a, b)
	}
	return mergeCollections(packageToCollection(a), packageToCollection(b))
}

// Merge combines two reports, promoting whichever side is finer-grained
// until both sides share a kind:
//
//   - Version⊕Version promotes both to Package and merges (same package name:
//     sums; different names: promotes again to Collection).
//   - Version⊕Package and Package⊕Package follow the same rule.
//   - Anything paired with a Collection promotes the other side all the way
//     up and merges at the Collection level.
func (r Report) Merge(other Report) Report {
	switch {
	case r.Kind == ReportCollectionKind || other.Kind == ReportCollectionKind:
		return mergeCollections(asCollection(r), asCollection(other))
	case r.Kind == ReportVersionKind && other.Kind == ReportVersionKind:
		return combinePackages(versionToPackage(r), versionToPackage(other))
	case r.Kind == ReportVersionKind:
		return combinePackages(versionToPackage(r), other)
	case other.Kind == ReportVersionKind:
		return combinePackages(r, versionToPackage(other))
	default:
		return combinePackages(r, other)
	}
}
