package engine

import "time"

// Clock abstracts "now" so deadline logic can be driven by table-driven
// tests instead of real sleeps.
type Clock func() time.Time

// SystemClock returns the wall-clock Clock used outside tests.
func SystemClock() Clock {
	return time.Now
}
