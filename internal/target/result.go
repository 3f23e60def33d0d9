package target

import (
	"fmt"
	"time"
)

// Status is the terminal state of a target within one build cycle.
type Status int

const (
	// StatusSuccess means the build action ran and completed.
	StatusSuccess Status = iota
	// StatusSkipped means the target was already up to date.
	StatusSkipped
	// StatusFailed means the build action failed, or an upstream dependency did.
	StatusFailed
)

// String returns the status name used in event payloads.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the terminal outcome of one target in one cycle.
type Result struct {
	TargetID string
	Status   Status
	// Err is set only for StatusFailed.
	Err error
	// Duration is how long the build action ran. Zero for skipped targets
	// and for targets failed by upstream propagation.
	Duration time.Duration
	// Outputs are the files actually written on success.
	Outputs []string
}

// CycleResult aggregates one full pass over the target graph. Results are
// kept in completion order, which is the order events were emitted.
type CycleResult struct {
	Results  []Result
	Duration time.Duration
}

// Succeeded returns the number of targets whose build action ran and completed.
func (c *CycleResult) Succeeded() int { return c.count(StatusSuccess) }

// Skipped returns the number of up-to-date targets.
func (c *CycleResult) Skipped() int { return c.count(StatusSkipped) }

// Failed returns the number of failed targets, including upstream propagation.
func (c *CycleResult) Failed() int { return c.count(StatusFailed) }

// OK reports whether every target succeeded or was skipped.
func (c *CycleResult) OK() bool { return c.Failed() == 0 }

func (c *CycleResult) count(s Status) int {
	n := 0
	for _, r := range c.Results {
		if r.Status == s {
			n++
		}
	}
	return n
}

// Failures returns the failed results in completion order.
func (c *CycleResult) Failures() []Result {
	var out []Result
	for _, r := range c.Results {
		if r.Status == StatusFailed {
			out = append(out, r)
		}
	}
	return out
}

// Summary renders a one-line human-readable outcome.
func (c *CycleResult) Summary() string {
	if c.OK() {
		return fmt.Sprintf("build succeeded: %d built, %d skipped (%d total) in %s",
			c.Succeeded(), c.Skipped(), len(c.Results), c.Duration.Round(time.Millisecond))
	}
	return fmt.Sprintf("build failed: %d built, %d skipped, %d failed (%d total)",
		c.Succeeded(), c.Skipped(), c.Failed(), len(c.Results))
}
