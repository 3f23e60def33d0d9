// Package graph builds and validates the dependency DAG of build targets.
//
// Targets live in an index-addressed arena with adjacency lists and explicit
// in-degree counters, so the scheduler's dependency bookkeeping is O(V+E)
// and mutated under a single lock rather than through pointer-linked nodes.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scbrown/pixelsrc/internal/config"
	"github.com/scbrown/pixelsrc/internal/target"
)

// Graph is an immutable, validated DAG of build targets. Construction fails
// on duplicate ids, duplicate output paths, unknown dependency references,
// and cycles, so the scheduler can assume a well-formed graph.
type Graph struct {
	targets []*target.Target
	index   map[string]int

	// deps[i] and dependents[i] are arena indices, sorted ascending.
	deps       [][]int
	dependents [][]int

	waves [][]int
}

// New validates the target set and assembles the arena. Targets are sorted
// by id first, so identical inputs always produce an identical graph.
func New(targets []*target.Target) (*Graph, error) {
	sorted := make([]*target.Target, len(targets))
	copy(sorted, targets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	g := &Graph{
		targets:    sorted,
		index:      make(map[string]int, len(sorted)),
		deps:       make([][]int, len(sorted)),
		dependents: make([][]int, len(sorted)),
	}

	outputs := make(map[string]string)
	for i, t := range sorted {
		if _, dup := g.index[t.ID]; dup {
			return nil, config.Errorf("duplicate target id %q", t.ID)
		}
		g.index[t.ID] = i
		for _, out := range t.Outputs {
			if owner, claimed := outputs[out]; claimed {
				return nil, config.Errorf("targets %q and %q both claim output path %q", owner, t.ID, out)
			}
			outputs[out] = t.ID
		}
	}

	for i, t := range sorted {
		for _, depID := range t.DependsOn {
			j, ok := g.index[depID]
			if !ok {
				return nil, config.Errorf("target %q depends on undeclared target %q", t.ID, depID)
			}
			if j == i {
				return nil, config.Errorf("target %q depends on itself", t.ID)
			}
			g.deps[i] = append(g.deps[i], j)
			g.dependents[j] = append(g.dependents[j], i)
		}
	}
	for i := range g.dependents {
		sort.Ints(g.dependents[i])
	}

	if err := g.detectCycle(); err != nil {
		return nil, err
	}
	g.waves = g.computeWaves()
	return g, nil
}

// detectCycle runs a depth-first search with an explicit recursion stack.
// Duplicate ids and unknown references are already rejected, so any error
// here names a genuine dependency cycle.
func (g *Graph) detectCycle() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(g.targets))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return config.Errorf("dependency cycle detected involving target %q", g.targets[i].ID)
		}
		state[i] = visiting
		for _, j := range g.deps[i] {
			if err := visit(j); err != nil {
				return err
			}
		}
		state[i] = done
		return nil
	}

	for i := range g.targets {
		if err := visit(i); err != nil {
			return err
		}
	}
	return nil
}

// computeWaves layers the graph with Kahn's algorithm. Targets within a wave
// share no dependency edge and may run concurrently. The arena is sorted by
// id, so iterating indices in order keeps wave membership deterministic.
func (g *Graph) computeWaves() [][]int {
	indegree := make([]int, len(g.targets))
	for i := range g.targets {
		indegree[i] = len(g.deps[i])
	}

	var waves [][]int
	remaining := len(g.targets)
	current := make([]int, 0)
	for i := range g.targets {
		if indegree[i] == 0 {
			current = append(current, i)
		}
	}

	for remaining > 0 {
		waves = append(waves, current)
		remaining -= len(current)
		next := make([]int, 0)
		for _, i := range current {
			for _, j := range g.dependents[i] {
				indegree[j]--
				if indegree[j] == 0 {
					next = append(next, j)
				}
			}
		}
		sort.Ints(next)
		current = next
	}
	return waves
}

// Subset restricts the graph to targets matching any of the filters, plus
// their transitive dependencies so every kept target remains buildable.
// Filters use the target.Matches syntax ("atlas:main", "sprite", "*:hero").
func (g *Graph) Subset(filters []string) (*Graph, error) {
	keep := make([]bool, len(g.targets))
	var mark func(i int)
	mark = func(i int) {
		if keep[i] {
			return
		}
		keep[i] = true
		for _, j := range g.deps[i] {
			mark(j)
		}
	}

	matched := false
	for i, t := range g.targets {
		for _, f := range filters {
			if t.Matches(f) {
				mark(i)
				matched = true
				break
			}
		}
	}
	if !matched {
		return nil, config.Errorf("no targets match %s", strings.Join(filters, ", "))
	}

	sub := make([]*target.Target, 0, len(g.targets))
	for i, t := range g.targets {
		if keep[i] {
			sub = append(sub, t)
		}
	}
	return New(sub)
}

// Len returns the number of targets.
func (g *Graph) Len() int { return len(g.targets) }

// Target returns the target at arena index i.
func (g *Graph) Target(i int) *target.Target { return g.targets[i] }

// Lookup returns the arena index for a target id.
func (g *Graph) Lookup(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Deps returns the arena indices this target depends on.
func (g *Graph) Deps(i int) []int { return g.deps[i] }

// Dependents returns the arena indices that depend on this target.
func (g *Graph) Dependents(i int) []int { return g.dependents[i] }

// InDegrees returns a fresh in-degree counter slice for one execution pass.
func (g *Graph) InDegrees() []int {
	indegree := make([]int, len(g.targets))
	for i := range g.targets {
		indegree[i] = len(g.deps[i])
	}
	return indegree
}

// Waves returns the topological layering: each wave's members have all their
// dependencies in earlier waves.
func (g *Graph) Waves() [][]int { return g.waves }

// String renders a compact description for debug logging.
func (g *Graph) String() string {
	return fmt.Sprintf("graph{targets=%d waves=%d}", len(g.targets), len(g.waves))
}
