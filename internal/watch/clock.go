package watch

import "time"

// Clock abstracts the debounce timer so coalescing logic is deterministic in
// tests without real wall-clock delays.
type Clock interface {
	// After returns a channel that fires once after d.
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the wall-clock implementation used outside tests.
type SystemClock struct{}

// After defers to time.After.
func (SystemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
