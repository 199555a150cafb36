package resolver

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ros-infrastructure/rosinstall-generator/internal/diag"
	"github.com/ros-infrastructure/rosinstall-generator/internal/distro"
)

type traversal int

const (
	modeExact traversal = iota
	modeDeps
	modeDepsUpTo
)

// closure is a single run of the traversal over concrete package names.
type closure struct {
	graph    *distro.Graph
	sink     diag.Sink
	mode     traversal
	targets  []string
	excluded mapset.Set[string]
	limit    mapset.Set[string]
	maxDepth int
	depsOnly bool
	filter   BuildKindFilter
}

// walk is the unfiltered breadth-first expansion with provenance.
type walk struct {
	order []string
	depth map[string]int
	// children holds the dependency edges taken from expanded nodes.
	children map[string][]string
}

func (c *closure) run() (*ResolvedSet, error) {
	var (
		included []string
		depth    map[string]int
		via      map[string][]string
	)

	if c.mode == modeExact {
		depth = make(map[string]int)
		for _, t := range c.targets {
			if !c.excluded.Contains(t) {
				included = append(included, t)
				depth[t] = 0
			}
		}
	} else {
		w, err := c.expand()
		if err != nil {
			return nil, err
		}
		included, depth, via = c.prune(w)
		if c.mode == modeDepsUpTo {
			included = c.intersectUpTo(included)
		}
	}

	if c.depsOnly {
		explicit := mapset.NewThreadUnsafeSet(c.targets...)
		included = keep(included, func(n string) bool { return !explicit.Contains(n) })
	}

	var filterErr error
	included = keep(included, func(n string) bool {
		p, err := c.graph.Lookup(n)
		if err != nil {
			filterErr = err
			return false
		}
		return c.filter.Keep(p)
	})
	if filterErr != nil {
		return nil, filterErr
	}

	res := &ResolvedSet{
		Included: included,
		DepthOf:  make(map[string]int, len(included)),
		Via:      make(map[string][]string),
		Targets:  c.targets,
	}
	in := mapset.NewThreadUnsafeSet(included...)
	for _, n := range included {
		res.DepthOf[n] = depth[n]
		for _, p := range via[n] {
			if in.Contains(p) {
				res.Via[n] = append(res.Via[n], p)
			}
		}
	}
	return res, nil
}

// expand walks the dependency edges from the targets, ignoring exclusions.
// A node is expanded when its depth is below the bound; the first discovery
// fixes its depth.
func (c *closure) expand() (*walk, error) {
	w := &walk{
		depth:    make(map[string]int),
		children: make(map[string][]string),
	}
	var queue []string
	for _, t := range c.targets {
		if _, ok := w.depth[t]; ok {
			continue
		}
		w.depth[t] = 0
		w.order = append(w.order, t)
		queue = append(queue, t)
	}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		d := w.depth[n]
		if c.maxDepth > 0 && d >= c.maxDepth {
			continue
		}

		deps, err := c.graph.DependenciesOf(n)
		if err != nil {
			return nil, err
		}
		if ext := c.graph.ExternalDependenciesOf(n); len(ext) > 0 {
			c.sink.Debug("dependencies outside the distribution are not expanded", "package", n, "dependencies", ext)
		}
		for _, dep := range deps {
			w.children[n] = append(w.children[n], dep)
			if _, seen := w.depth[dep]; seen {
				continue
			}
			w.depth[dep] = d + 1
			w.order = append(w.order, dep)
			queue = append(queue, dep)
		}
	}
	return w, nil
}

// prune removes excluded nodes and every node that was only discovered
// through removed nodes. Survivors are marked from the non-excluded targets
// along the edges recorded by the walk, so nodes kept alive only by a cycle
// through an excluded node are dropped too. The walk already applied the
// depth bound; depths are the ones fixed at first discovery.
func (c *closure) prune(w *walk) ([]string, map[string]int, map[string][]string) {
	alive := mapset.NewThreadUnsafeSet[string]()
	var queue []string
	for _, t := range c.targets {
		if !c.excluded.Contains(t) && alive.Add(t) {
			queue = append(queue, t)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, child := range w.children[n] {
			if !c.excluded.Contains(child) && alive.Add(child) {
				queue = append(queue, child)
			}
		}
	}

	order := keep(w.order, func(n string) bool { return alive.Contains(n) })
	depth := make(map[string]int, len(order))
	via := make(map[string][]string)
	for _, n := range order {
		depth[n] = w.depth[n]
		for _, child := range w.children[n] {
			if alive.Contains(child) {
				via[child] = append(via[child], n)
			}
		}
	}

	if dropped := len(w.order) - len(order); dropped > 0 {
		c.sink.Debug("packages dropped by exclusions", "count", dropped)
	}
	return order, depth, via
}

// intersectUpTo keeps the explicit targets plus every node that lies on a
// dependency path towards a member of the limit set.
func (c *closure) intersectUpTo(forward []string) []string {
	inForward := mapset.NewThreadUnsafeSet(forward...)
	reaches := mapset.NewThreadUnsafeSet[string]()
	var queue []string
	for _, n := range forward {
		if c.limit.Contains(n) {
			reaches.Add(n)
			queue = append(queue, n)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, p := range c.graph.DependentsOf(n) {
			if inForward.Contains(p) && reaches.Add(p) {
				queue = append(queue, p)
			}
		}
	}

	explicit := mapset.NewThreadUnsafeSet(c.targets...)
	return keep(forward, func(n string) bool {
		return reaches.Contains(n) || explicit.Contains(n)
	})
}

func keep(names []string, pred func(string) bool) []string {
	out := names[:0:0]
	for _, n := range names {
		if pred(n) {
			out = append(out, n)
		}
	}
	return out
}
