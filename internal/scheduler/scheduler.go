// Package scheduler executes a target graph with a bounded worker pool,
// consulting the manifest for staleness and reporting progress events.
//
// Dependency bookkeeping uses per-target in-degree counters. The counters,
// the terminal-state table, and the ready hand-off share one mutex:
// decrementing a dependent's in-degree and claiming it for dispatch is a
// single atomic step, so a target can neither be dispatched twice nor
// stranded un-queued.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/scbrown/pixelsrc/internal/ctxlog"
	"github.com/scbrown/pixelsrc/internal/graph"
	"github.com/scbrown/pixelsrc/internal/manifest"
	"github.com/scbrown/pixelsrc/internal/progress"
	"github.com/scbrown/pixelsrc/internal/target"
)

// ErrUpstream marks targets that never ran because a dependency failed.
var ErrUpstream = errors.New("upstream error")

// Request is the input handed to a build capability: the target itself plus
// the output files of every dependency, keyed by dependency target id.
type Request struct {
	Target     *target.Target
	DepOutputs map[string][]string
}

// Capability is a delegated build action for one target kind. It is opaque
// to the scheduler and potentially slow; it returns the output files it
// wrote, or an error that fails only this target.
type Capability interface {
	Build(ctx context.Context, req Request) ([]string, error)
}

// Options tune one scheduler instance.
type Options struct {
	// Workers bounds the pool size. Zero means available hardware parallelism.
	Workers int
	// Force treats every target as stale, bypassing the manifest.
	Force bool
}

// Scheduler runs one graph. Create a fresh instance per build cycle; the
// per-cycle bookkeeping (in-degree counters, rebuilt flags) is not reusable.
type Scheduler struct {
	graph   *graph.Graph
	man     *manifest.Manifest
	caps    map[target.Kind]Capability
	rep     progress.Reporter
	workers int
	force   bool

	mu       sync.Mutex
	indegree []int
	failed   []bool
	rebuilt  []bool
	outputs  [][]string
	outHash  []string
	inHash   []string
	results  []target.Result

	ready chan int
	wg    sync.WaitGroup
}

// New wires a scheduler. Every target kind present in the graph must have a
// capability bound; a missing binding is a wiring error surfaced here rather
// than mid-execution.
func New(g *graph.Graph, m *manifest.Manifest, caps map[target.Kind]Capability, rep progress.Reporter, opts Options) (*Scheduler, error) {
	for i := 0; i < g.Len(); i++ {
		kind := g.Target(i).Kind
		if _, ok := caps[kind]; !ok {
			return nil, fmt.Errorf("no capability bound for target kind %q", kind)
		}
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if rep == nil {
		rep = progress.Null{}
	}
	n := g.Len()
	return &Scheduler{
		graph:    g,
		man:      m,
		caps:     caps,
		rep:      rep,
		workers:  workers,
		force:    opts.Force,
		indegree: g.InDegrees(),
		failed:   make([]bool, n),
		rebuilt:  make([]bool, n),
		outputs:  make([][]string, n),
		outHash:  make([]string, n),
		inHash:   make([]string, n),
		results:  make([]target.Result, 0, n),
		ready:    make(chan int, n),
	}, nil
}

// Run executes the whole graph and returns the cycle result. A failed target
// fails its transitive dependents but never aborts unrelated branches. The
// manifest is saved at the end; a save failure is logged, not fatal.
// Cancelling the context stops new dispatches while in-flight targets finish.
func (s *Scheduler) Run(ctx context.Context) *target.CycleResult {
	logger := ctxlog.FromContext(ctx)
	start := time.Now()
	n := s.graph.Len()

	s.rep.BuildStarted(n)
	if n == 0 {
		cycle := &target.CycleResult{Duration: time.Since(start)}
		s.rep.BuildCompleted(cycle)
		return cycle
	}

	s.wg.Add(n)
	for w := 0; w < s.workers; w++ {
		go s.worker(ctx, w)
	}

	// The arena is sorted by target id, so seeding roots in index order
	// breaks ties among initially ready targets by ascending id.
	for _, i := range s.graph.Waves()[0] {
		s.resolve(ctx, i)
	}

	s.wg.Wait()
	close(s.ready)

	cycle := &target.CycleResult{Results: s.results, Duration: time.Since(start)}
	s.rep.BuildCompleted(cycle)

	if err := s.man.Save(ctx); err != nil {
		logger.Warn("Failed to save manifest; next cycle rebuilds from scratch.", "error", err)
	}
	return cycle
}

// resolve decides the fate of a target whose dependencies have all reached a
// terminal state. Exactly one goroutine calls resolve per target: either the
// seeding loop or the finish call of its last outstanding dependency. Fresh
// targets resolve as Skipped here without ever occupying a worker; stale
// ones are queued for the pool.
func (s *Scheduler) resolve(ctx context.Context, i int) {
	t := s.graph.Target(i)

	failedDep, depOutHash := s.depSnapshot(i)
	if failedDep != "" {
		s.finish(ctx, i, target.Result{
			TargetID: t.ID,
			Status:   target.StatusFailed,
			Err:      fmt.Errorf("%w: dependency %s failed", ErrUpstream, failedDep),
		})
		return
	}

	if ctx.Err() != nil {
		s.finish(ctx, i, target.Result{TargetID: t.ID, Status: target.StatusFailed, Err: ctx.Err()})
		return
	}

	stale := s.force || s.anyDepRebuilt(i)
	hash, err := manifest.InputHash(t, depOutHash)
	if err != nil {
		// Unreadable inputs degrade to "stale"; the build action will
		// surface the real error if the file is genuinely gone.
		ctxlog.FromContext(ctx).Debug("Input hash failed, treating target as stale.",
			"target", t.ID, "error", err)
		stale = true
	} else {
		s.mu.Lock()
		s.inHash[i] = hash
		s.mu.Unlock()
		if !stale && !s.man.UpToDate(t.ID, hash) {
			stale = true
		}
	}

	if !stale {
		entry, _ := s.man.Entry(t.ID)
		s.mu.Lock()
		s.outputs[i] = entry.Outputs
		s.outHash[i] = entry.OutputHash
		s.mu.Unlock()
		s.finish(ctx, i, target.Result{TargetID: t.ID, Status: target.StatusSkipped})
		return
	}

	s.ready <- i
}

// worker is the processing loop of one pool member. It only ever sees stale
// targets; skip decisions were made at resolve time.
func (s *Scheduler) worker(ctx context.Context, id int) {
	logger := ctxlog.FromContext(ctx).With("worker", id)

	for i := range s.ready {
		t := s.graph.Target(i)

		if ctx.Err() != nil {
			s.finish(ctx, i, target.Result{TargetID: t.ID, Status: target.StatusFailed, Err: ctx.Err()})
			continue
		}

		s.rep.TargetStarted(t.ID)
		logger.Debug("Building target.", "target", t.ID)

		req := Request{Target: t, DepOutputs: s.depOutputMap(i)}
		startedAt := time.Now()
		outputs, err := s.caps[t.Kind].Build(ctx, req)
		elapsed := time.Since(startedAt)

		if err != nil {
			logger.Debug("Target failed.", "target", t.ID, "error", err)
			s.finish(ctx, i, target.Result{
				TargetID: t.ID,
				Status:   target.StatusFailed,
				Err:      err,
				Duration: elapsed,
			})
			continue
		}

		s.record(ctx, i, outputs)
		s.finish(ctx, i, target.Result{
			TargetID: t.ID,
			Status:   target.StatusSuccess,
			Duration: elapsed,
			Outputs:  outputs,
		})
	}
}

// record stores a successful build in the manifest. Hashing failures degrade
// to "not recorded": the target stays stale and rebuilds next cycle, which
// is slower but never wrong.
func (s *Scheduler) record(ctx context.Context, i int, outputs []string) {
	logger := ctxlog.FromContext(ctx)
	t := s.graph.Target(i)

	outHash, err := manifest.OutputHash(outputs)
	if err != nil {
		logger.Warn("Could not hash outputs; target will rebuild next cycle.",
			"target", t.ID, "error", err)
		return
	}

	s.mu.Lock()
	inHash := s.inHash[i]
	s.outputs[i] = outputs
	s.outHash[i] = outHash
	s.mu.Unlock()

	if inHash == "" {
		_, depOutHash := s.depSnapshot(i)
		inHash, err = manifest.InputHash(t, depOutHash)
		if err != nil {
			logger.Warn("Could not hash inputs; target will rebuild next cycle.",
				"target", t.ID, "error", err)
			return
		}
	}

	s.man.Record(t.ID, manifest.Entry{
		InputHash:  inHash,
		Outputs:    outputs,
		OutputHash: outHash,
		BuiltAt:    time.Now().UTC(),
	})
}

// finish records a target's terminal state, emits its completion event, and
// claims any dependent whose last dependency this was. The in-degree
// decrement and the claim happen under one lock; the completion event is
// emitted under the same lock so event order matches the results slice.
func (s *Scheduler) finish(ctx context.Context, i int, res target.Result) {
	s.mu.Lock()
	s.failed[i] = res.Status == target.StatusFailed
	s.rebuilt[i] = res.Status == target.StatusSuccess
	s.results = append(s.results, res)

	var newlyReady []int
	for _, j := range s.graph.Dependents(i) {
		s.indegree[j]--
		if s.indegree[j] == 0 {
			newlyReady = append(newlyReady, j)
		}
	}
	s.rep.TargetCompleted(res)
	s.mu.Unlock()

	s.wg.Done()
	for _, j := range newlyReady {
		s.resolve(ctx, j)
	}
}

// depSnapshot returns the id of the first failed dependency (empty when none
// failed) and the dependency output hashes for input hashing. All
// dependencies are terminal by the time this runs.
func (s *Scheduler) depSnapshot(i int) (failedDep string, depOutHash map[string]string) {
	depOutHash = make(map[string]string)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.graph.Deps(i) {
		dep := s.graph.Target(j)
		if s.failed[j] && failedDep == "" {
			failedDep = dep.ID
		}
		depOutHash[dep.ID] = s.outHash[j]
	}
	return failedDep, depOutHash
}

func (s *Scheduler) anyDepRebuilt(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.graph.Deps(i) {
		if s.rebuilt[j] {
			return true
		}
	}
	return false
}

func (s *Scheduler) depOutputMap(i int) map[string][]string {
	out := make(map[string][]string)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.graph.Deps(i) {
		out[s.graph.Target(j).ID] = s.outputs[j]
	}
	return out
}
