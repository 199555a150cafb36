// Package distro is the read-only, in-memory view over a distribution
// snapshot: packages, the repositories defining them and the dependency
// edges between them.
package distro

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/dominikbraun/graph"

	rerr "github.com/ros-infrastructure/rosinstall-generator/internal/errors"
)

// Graph is an immutable distribution snapshot. It is safe for concurrent
// reads; nothing mutates it after Build.
type Graph struct {
	name     string
	packages map[string]*PackageNode
	repos    map[string]*RepositoryDescriptor
	variants map[string][]string

	successors   map[string][]string
	predecessors map[string][]string
	external     map[string][]string
}

// Builder accumulates repositories and packages before freezing them into a Graph.
type Builder struct {
	name     string
	packages map[string]*PackageNode
	repos    map[string]*RepositoryDescriptor
	variants map[string][]string
	err      error
}

// NewBuilder starts a snapshot for the named distribution.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:     name,
		packages: make(map[string]*PackageNode),
		repos:    make(map[string]*RepositoryDescriptor),
		variants: make(map[string][]string),
	}
}

// AddRepository registers a repository. Its package list is derived from
// the packages added later.
func (b *Builder) AddRepository(r RepositoryDescriptor) *Builder {
	if b.err != nil {
		return b
	}
	if _, ok := b.repos[r.Key]; ok {
		b.err = rerr.About(rerr.CodeInvalidIndex, r.Key, "repository defined twice")
		return b
	}
	r.Packages = nil
	b.repos[r.Key] = &r
	return b
}

// AddPackage registers a package of an already added repository.
func (b *Builder) AddPackage(p PackageNode) *Builder {
	if b.err != nil {
		return b
	}
	if _, ok := b.packages[p.Name]; ok {
		b.err = rerr.About(rerr.CodeInvalidIndex, p.Name, "package defined twice")
		return b
	}
	if _, ok := b.repos[p.Repository]; !ok {
		b.err = rerr.About(rerr.CodeInvalidIndex, p.Name, "package references unknown repository %q", p.Repository)
		return b
	}
	deps := slices.Clone(p.Dependencies)
	sort.Strings(deps)
	p.Dependencies = slices.Compact(deps)
	b.packages[p.Name] = &p
	return b
}

// AddVariant registers a named group of packages.
func (b *Builder) AddVariant(name string, members []string) *Builder {
	b.variants[name] = slices.Clone(members)
	return b
}

// Build freezes the snapshot.
func (b *Builder) Build() (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}

	for _, p := range b.packages {
		r := b.repos[p.Repository]
		r.Packages = append(r.Packages, p.Name)
	}
	for _, r := range b.repos {
		sort.Strings(r.Packages)
	}
	for name, members := range b.variants {
		for _, m := range members {
			if _, ok := b.packages[m]; !ok {
				return nil, rerr.About(rerr.CodeInvalidIndex, name, "variant member %q is not in the distribution", m)
			}
		}
	}

	g := &Graph{
		name:         b.name,
		packages:     b.packages,
		repos:        b.repos,
		variants:     b.variants,
		successors:   make(map[string][]string),
		predecessors: make(map[string][]string),
		external:     make(map[string][]string),
	}
	if err := g.index(); err != nil {
		return nil, err
	}
	return g, nil
}

// index materializes the dependency relation between snapshot members.
// Declared dependencies outside the snapshot are kept apart as external.
func (g *Graph) index() error {
	dg := graph.New(graph.StringHash, graph.Directed())
	for name := range g.packages {
		if err := dg.AddVertex(name); err != nil {
			return fmt.Errorf("adding package %s: %w", name, err)
		}
	}
	for name, p := range g.packages {
		for _, dep := range p.Dependencies {
			if dep == name {
				continue
			}
			if _, ok := g.packages[dep]; !ok {
				g.external[name] = append(g.external[name], dep)
				continue
			}
			if err := dg.AddEdge(name, dep); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return fmt.Errorf("adding dependency %s -> %s: %w", name, dep, err)
			}
		}
	}

	adj, err := dg.AdjacencyMap()
	if err != nil {
		return fmt.Errorf("building adjacency map: %w", err)
	}
	pred, err := dg.PredecessorMap()
	if err != nil {
		return fmt.Errorf("building predecessor map: %w", err)
	}
	for name, out := range adj {
		if len(out) > 0 {
			g.successors[name] = sortedKeys(out)
		}
	}
	for name, in := range pred {
		if len(in) > 0 {
			g.predecessors[name] = sortedKeys(in)
		}
	}
	return nil
}

// Name returns the distribution name.
func (g *Graph) Name() string { return g.name }

// Has reports whether name is a package of the snapshot.
func (g *Graph) Has(name string) bool {
	_, ok := g.packages[name]
	return ok
}

// Lookup returns the package called name.
func (g *Graph) Lookup(name string) (*PackageNode, error) {
	p, ok := g.packages[name]
	if !ok {
		return nil, rerr.UnknownPackage(name, "")
	}
	return p, nil
}

// DependenciesOf returns the declared dependencies of name that are part
// of the snapshot, sorted.
func (g *Graph) DependenciesOf(name string) ([]string, error) {
	if !g.Has(name) {
		return nil, rerr.UnknownPackage(name, "")
	}
	return g.successors[name], nil
}

// ExternalDependenciesOf returns declared dependencies of name that are not
// part of the snapshot. They are never expanded.
func (g *Graph) ExternalDependenciesOf(name string) []string {
	return g.external[name]
}

// DependentsOf returns the snapshot packages declaring a dependency on name, sorted.
func (g *Graph) DependentsOf(name string) []string {
	return g.predecessors[name]
}

// RepositoryOf returns the repository defining package name.
func (g *Graph) RepositoryOf(name string) (*RepositoryDescriptor, error) {
	p, err := g.Lookup(name)
	if err != nil {
		return nil, err
	}
	return g.repos[p.Repository], nil
}

// Repository returns the repository with the given key.
func (g *Graph) Repository(key string) (*RepositoryDescriptor, error) {
	r, ok := g.repos[key]
	if !ok {
		return nil, rerr.UnknownRepository(key)
	}
	return r, nil
}

// HasRepository reports whether key names a repository of the snapshot.
func (g *Graph) HasRepository(key string) bool {
	_, ok := g.repos[key]
	return ok
}

// Variant returns the members of a named variant.
func (g *Graph) Variant(name string) ([]string, bool) {
	m, ok := g.variants[name]
	return m, ok
}

// PackageNames returns every package name, sorted.
func (g *Graph) PackageNames() []string {
	return sortedKeys(g.packages)
}

// ReleasedPackageNames returns the packages whose repository carries a release version, sorted.
func (g *Graph) ReleasedPackageNames() []string {
	var names []string
	for name, p := range g.packages {
		if g.repos[p.Repository].Released() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// RepositoryNames returns every repository key, sorted.
func (g *Graph) RepositoryNames() []string {
	return sortedKeys(g.repos)
}

// sortedKeys returns the keys of m in ascending order (nil for an empty map).
func sortedKeys[V any](m map[string]V) []string {
	var keys []string
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
