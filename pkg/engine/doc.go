// Package engine orchestrates the three periodic loops that drive the
// miner: fetching index changes, scheduling tasks against them, and merging
// waste reports. All three share one optional global deadline, checked
// between chunks and at loop boundaries rather than only at the top of each
// tick.
package engine
