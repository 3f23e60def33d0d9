// Package watch wraps the build cycle in a debounced, crash-tolerant
// reactive loop driven by filesystem change notifications.
//
// The controller is an explicit state machine - Idle, Debouncing,
// BuildRunning - driven by an event channel and an injectable clock. Bursts
// of change events (editor atomic saves produce unlink+recreate pairs)
// coalesce into one rebuild; an event arriving mid-build queues exactly one
// follow-up cycle. Cycles never run concurrently and a requested rebuild is
// never dropped.
package watch

import (
	"context"
	"time"

	"github.com/scbrown/pixelsrc/internal/ctxlog"
)

// State is the controller's current phase.
type State int

const (
	// Idle means no pending changes and no build in flight.
	Idle State = iota
	// Debouncing means a change arrived and the settle window is open.
	Debouncing
	// BuildRunning means a build cycle is executing.
	BuildRunning
)

// Event is one filesystem change notification.
type Event struct {
	Path string
}

// BuildFunc runs one full build cycle. A failed cycle returns the controller
// to Idle like any other; staleness is derived from current reality, not
// from the prior cycle's outcome, so no recovery path is needed.
type BuildFunc func(ctx context.Context) error

// Controller owns the watch loop state machine.
type Controller struct {
	debounce time.Duration
	clock    Clock
	build    BuildFunc
}

// NewController creates a watch controller. A nil clock means the system
// clock.
func NewController(debounce time.Duration, clock Clock, build BuildFunc) *Controller {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Controller{debounce: debounce, clock: clock, build: build}
}

// Run consumes change events until the context is cancelled. Cancellation is
// graceful: an in-flight build cycle finishes (targets are never killed
// mid-write) before Run returns.
func (c *Controller) Run(ctx context.Context, events <-chan Event) error {
	logger := ctxlog.FromContext(ctx)

	state := Idle
	pending := false
	var timer <-chan time.Time
	var buildDone chan error

	startBuild := func() {
		state = BuildRunning
		timer = nil
		buildDone = make(chan error, 1)
		go func() {
			buildDone <- c.build(ctx)
		}()
	}

	for {
		switch state {
		case Idle:
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				logger.Debug("Change detected.", "path", ev.Path)
				state = Debouncing
				timer = c.clock.After(c.debounce)
			}

		case Debouncing:
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				// Another change inside the window: restart the timer so
				// the burst settles before building.
				logger.Debug("Change detected, debounce restarted.", "path", ev.Path)
				timer = c.clock.After(c.debounce)
			case <-timer:
				startBuild()
			}

		case BuildRunning:
			select {
			case ev, ok := <-events:
				if !ok {
					pending = false
					<-buildDone
					return nil
				}
				logger.Debug("Change detected during build, rebuild queued.", "path", ev.Path)
				pending = true
			case err := <-buildDone:
				if err != nil {
					logger.Warn("Build cycle failed; watching continues.", "error", err)
				}
				if ctx.Err() != nil {
					return nil
				}
				if pending {
					pending = false
					startBuild()
					continue
				}
				state = Idle
			}
		}
	}
}
