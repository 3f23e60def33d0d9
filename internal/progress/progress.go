// Package progress renders scheduler events as console text or as a
// line-delimited JSON event stream for machine consumption.
//
// The scheduler guarantees exactly one terminal event per target, bracketed
// by one BuildStarted and one BuildCompleted per cycle. Events arrive in
// completion order, not dependency order.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/scbrown/pixelsrc/internal/target"
)

// Reporter observes one build cycle.
type Reporter interface {
	BuildStarted(totalTargets int)
	TargetStarted(targetID string)
	TargetCompleted(res target.Result)
	BuildCompleted(cycle *target.CycleResult)
}

// Null discards all events.
type Null struct{}

func (Null) BuildStarted(int)                  {}
func (Null) TargetStarted(string)              {}
func (Null) TargetCompleted(target.Result)     {}
func (Null) BuildCompleted(*target.CycleResult) {}

// Console writes human-readable lines. Per-target lines are emitted only in
// verbose mode except for failures, which always print at the point of that
// target's completion.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

// NewConsole creates a console reporter.
func NewConsole(w io.Writer, verbose bool) *Console {
	return &Console{w: w, verbose: verbose}
}

func (c *Console) BuildStarted(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "Building %d targets...\n", total)
}

func (c *Console) TargetStarted(id string) {
	if !c.verbose {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "  %s ...\n", id)
}

func (c *Console) TargetCompleted(res target.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch res.Status {
	case target.StatusSuccess:
		if c.verbose {
			fmt.Fprintf(c.w, "  %s done in %s\n", res.TargetID, res.Duration.Round(time.Millisecond))
		}
	case target.StatusSkipped:
		if c.verbose {
			fmt.Fprintf(c.w, "  %s up to date\n", res.TargetID)
		}
	case target.StatusFailed:
		fmt.Fprintf(c.w, "  %s failed: %v\n", res.TargetID, res.Err)
	}
}

func (c *Console) BuildCompleted(cycle *target.CycleResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, cycle.Summary())
}

// JSON writes one JSON object per line with an "event" field, matching the
// build_started / target_completed / build_completed stream consumed by
// editor integrations.
type JSON struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSON creates a structured event stream reporter.
func NewJSON(w io.Writer) *JSON {
	return &JSON{w: w}
}

type buildStartedEvent struct {
	Event        string `json:"event"`
	TotalTargets int    `json:"total_targets"`
}

type targetCompletedEvent struct {
	Event      string `json:"event"`
	TargetID   string `json:"target_id"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

type buildCompletedEvent struct {
	Event      string `json:"event"`
	Success    bool   `json:"success"`
	DurationMS int64  `json:"duration_ms"`
	Succeeded  int    `json:"succeeded"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
}

func (j *JSON) emit(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.w.Write(data)
	io.WriteString(j.w, "\n")
}

func (j *JSON) BuildStarted(total int) {
	j.emit(buildStartedEvent{Event: "build_started", TotalTargets: total})
}

func (j *JSON) TargetStarted(string) {}

func (j *JSON) TargetCompleted(res target.Result) {
	ev := targetCompletedEvent{
		Event:      "target_completed",
		TargetID:   res.TargetID,
		Status:     res.Status.String(),
		DurationMS: res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	j.emit(ev)
}

func (j *JSON) BuildCompleted(cycle *target.CycleResult) {
	j.emit(buildCompletedEvent{
		Event:      "build_completed",
		Success:    cycle.OK(),
		DurationMS: cycle.Duration.Milliseconds(),
		Succeeded:  cycle.Succeeded(),
		Skipped:    cycle.Skipped(),
		Failed:     cycle.Failed(),
	})
}

// Recorder captures events for tests.
type Recorder struct {
	mu        sync.Mutex
	Started   []string
	Completed []target.Result
	Builds    int
	Cycles    []*target.CycleResult
}

func (r *Recorder) BuildStarted(int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Builds++
}

func (r *Recorder) TargetStarted(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Started = append(r.Started, id)
}

func (r *Recorder) TargetCompleted(res target.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Completed = append(r.Completed, res)
}

func (r *Recorder) BuildCompleted(cycle *target.CycleResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Cycles = append(r.Cycles, cycle)
}

// Result returns the recorded terminal result for a target id.
func (r *Recorder) Result(id string) (target.Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.Completed {
		if res.TargetID == id {
			return res, true
		}
	}
	return target.Result{}, false
}
