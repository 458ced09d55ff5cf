package model

import "time"

// Counts tracks element counts of various kinds stored in the Store.
type Counts struct {
	PackageVersions uint64
	Packages        uint32
}

// Durations tracks wall-clock time spent on various kinds of computation.
type Durations struct {
	FetchPackageVersions time.Duration
}

// Context records the work performed thus far, persisted in the meta table
// under a day-keyed key so historical days remain queryable.
type Context struct {
	Counts    Counts
	Durations Durations
}

// Add combines two Contexts field-wise, used when folding a run's Context
// into the day's running total.
func (c Context) Add(rhs Context) Context {
	return Context{
		Counts: Counts{
			PackageVersions: c.Counts.PackageVersions + rhs.Counts.PackageVersions,
			Packages:        c.Counts.Packages + rhs.Counts.Packages,
		},
		Durations: Durations{
			FetchPackageVersions: c.Durations.FetchPackageVersions + rhs.Durations.FetchPackageVersions,
		},
	}
}
