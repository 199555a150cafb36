package selection

import (
	"context"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ros-infrastructure/rosinstall-generator/internal/diag"
	"github.com/ros-infrastructure/rosinstall-generator/internal/distro"
	rerr "github.com/ros-infrastructure/rosinstall-generator/internal/errors"
)

// Discoverer finds package names outside the distribution index.
type Discoverer interface {
	// FindAll returns the packages found recursively below roots, deduplicated.
	FindAll(ctx context.Context, roots []string) ([]string, error)
	// Environment returns the packages available in the active environment.
	Environment(ctx context.Context) ([]string, error)
}

// Selection is the concrete result of expanding references.
type Selection struct {
	// Packages in reference order, each expansion sorted, without duplicates.
	Packages []string
	// Repositories explicitly named, in reference order.
	Repositories []string
}

// Set returns the packages as a set.
func (s *Selection) Set() mapset.Set[string] {
	return mapset.NewThreadUnsafeSet(s.Packages...)
}

// Expander resolves references against a distribution.
type Expander struct {
	graph *distro.Graph
	disc  Discoverer
	sink  diag.Sink
}

// NewExpander creates an expander. disc may be nil when no path or
// environment references will be expanded.
func NewExpander(g *distro.Graph, disc Discoverer, sink diag.Sink) *Expander {
	return &Expander{graph: g, disc: disc, sink: diag.Or(sink)}
}

// Expand resolves refs into package names. role names the purpose of the
// references ("target", "--exclude", ...) for diagnostics. Explicit names
// missing from the distribution are fatal; discovered names that are not
// part of it are reported and skipped.
func (e *Expander) Expand(ctx context.Context, role string, refs []Reference) (*Selection, error) {
	sel := &Selection{}
	seen := mapset.NewThreadUnsafeSet[string]()
	add := func(names []string) {
		for _, n := range names {
			if seen.Add(n) {
				sel.Packages = append(sel.Packages, n)
			}
		}
	}

	var roots []string
	for _, ref := range refs {
		switch ref.Kind {
		case PackageName:
			names, err := e.expandName(ref.Value, role)
			if err != nil {
				return nil, err
			}
			add(names)
		case RepositoryName:
			repo, err := e.graph.Repository(ref.Value)
			if err != nil {
				return nil, err
			}
			sel.Repositories = append(sel.Repositories, repo.Key)
			if len(repo.Packages) == 0 {
				e.sink.Warn("repository defines no known packages", "repository", repo.Key)
			}
			add(repo.Packages)
		case FilesystemPath:
			roots = append(roots, ref.Value)
		case AllPackages:
			add(e.graph.ReleasedPackageNames())
		case AllRepositories:
			for _, key := range e.graph.RepositoryNames() {
				repo, err := e.graph.Repository(key)
				if err != nil {
					return nil, err
				}
				if repo.Kind == distro.LegacyBuilt {
					continue
				}
				sel.Repositories = append(sel.Repositories, key)
				// unreleased repositories carry no dependency information
				if repo.Released() {
					add(repo.Packages)
				}
			}
		case CurrentEnvironment:
			if e.disc == nil {
				return nil, rerr.Usage("%q is not available without an environment", KeywordCurrentEnvironment)
			}
			found, err := e.disc.Environment(ctx)
			if err != nil {
				return nil, err
			}
			add(e.known(found, role, "environment"))
		}
	}

	if len(roots) > 0 {
		if e.disc == nil {
			return nil, rerr.Usage("path references are not available without package discovery")
		}
		found, err := e.disc.FindAll(ctx, roots)
		if err != nil {
			return nil, err
		}
		e.sink.Debug("packages found below paths", "role", role, "count", len(found))
		add(e.known(found, role, "path"))
	}

	return sel, nil
}

func (e *Expander) expandName(name, role string) ([]string, error) {
	if e.graph.Has(name) {
		return []string{name}, nil
	}
	if members, ok := e.graph.Variant(name); ok {
		out := append([]string(nil), members...)
		sort.Strings(out)
		return out, nil
	}
	if role == "target" {
		role = ""
	}
	return nil, rerr.UnknownPackage(name, role)
}

// known keeps the discovered names that are part of the distribution.
func (e *Expander) known(found []string, role, origin string) []string {
	sorted := append([]string(nil), found...)
	sort.Strings(sorted)
	out := make([]string, 0, len(sorted))
	var unknown []string
	for _, n := range sorted {
		if e.graph.Has(n) {
			out = append(out, n)
		} else {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		e.sink.Warn("packages not in the distribution will be ignored",
			"role", role, "origin", origin, "packages", unknown)
	}
	return out
}
