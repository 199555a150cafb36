// Package resolver computes the dependency closure of a selection request
// over a distribution snapshot.
package resolver

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ros-infrastructure/rosinstall-generator/internal/diag"
	"github.com/ros-infrastructure/rosinstall-generator/internal/distro"
	rerr "github.com/ros-infrastructure/rosinstall-generator/internal/errors"
	"github.com/ros-infrastructure/rosinstall-generator/internal/selection"
)

// Expander resolves symbolic references into package names.
type Expander interface {
	Expand(ctx context.Context, role string, refs []selection.Reference) (*selection.Selection, error)
}

// Resolver resolves requests against one distribution snapshot.
type Resolver struct {
	graph    *distro.Graph
	expander Expander
	sink     diag.Sink
}

// NewResolver creates a resolver.
func NewResolver(g *distro.Graph, exp Expander, sink diag.Sink) *Resolver {
	return &Resolver{graph: g, expander: exp, sink: diag.Or(sink)}
}

// Resolve expands the request's references and computes its closure.
// Any unknown name aborts the resolution.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*ResolvedSet, error) {
	if err := selection.CheckTargets(req.Targets); err != nil {
		return nil, err
	}
	if req.MaxDepth < 0 {
		return nil, rerr.Usage("dependency depth must be a positive integer, got %d", req.MaxDepth)
	}

	targets, err := r.expander.Expand(ctx, "target", req.Targets)
	if err != nil {
		return nil, err
	}
	excludes, err := r.expander.Expand(ctx, "--exclude", req.Excludes)
	if err != nil {
		return nil, err
	}

	c := closure{
		graph:    r.graph,
		sink:     r.sink,
		targets:  targets.Packages,
		excluded: excludes.Set(),
		maxDepth: req.MaxDepth,
		depsOnly: req.DepsOnly,
		filter:   req.Filter,
	}

	switch m := req.Mode.(type) {
	case nil, ExactSet:
		c.mode = modeExact
	case WithDeps:
		c.mode = modeDeps
	case DepsUpTo:
		limit, err := r.expander.Expand(ctx, "--deps-up-to", m.Limit)
		if err != nil {
			return nil, err
		}
		c.mode = modeDepsUpTo
		c.limit = limit.Set()
	default:
		return nil, rerr.New(rerr.CodeInternal, "unhandled traversal mode %T", m)
	}

	remaining := mapset.NewThreadUnsafeSet(targets.Packages...).Difference(c.excluded)
	if remaining.Cardinality() == 0 && len(targets.Repositories) == 0 {
		return nil, rerr.New(rerr.CodeEmptySelection, "no packages left after applying the exclusions")
	}

	res, err := c.run()
	if err != nil {
		return nil, err
	}
	res.Repositories = targets.Repositories
	r.sink.Debug("resolved packages", "count", len(res.Included))
	return res, nil
}
