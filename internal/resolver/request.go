package resolver

import (
	"github.com/ros-infrastructure/rosinstall-generator/internal/distro"
	"github.com/ros-infrastructure/rosinstall-generator/internal/selection"
)

// Mode is the traversal mode of a request: ExactSet, WithDeps or DepsUpTo.
type Mode interface {
	isMode()
}

// ExactSet resolves the targets without expanding dependencies.
type ExactSet struct{}

// WithDeps adds the recursive dependencies of the targets.
type WithDeps struct{}

// DepsUpTo adds the recursive dependencies of the targets that lie on a
// dependency path towards one of Limit.
type DepsUpTo struct {
	Limit []selection.Reference
}

func (ExactSet) isMode() {}
func (WithDeps) isMode() {}
func (DepsUpTo) isMode() {}

// BuildKindFilter restricts the resolved packages by how they are built.
type BuildKindFilter int

const (
	AnyKind BuildKindFilter = iota
	SourceOnly
	LegacyOnly
	SourceCatkinOnly
	SourceNonCatkinOnly
)

func (f BuildKindFilter) String() string {
	switch f {
	case SourceOnly:
		return "source-only"
	case LegacyOnly:
		return "legacy-only"
	case SourceCatkinOnly:
		return "catkin-only"
	case SourceNonCatkinOnly:
		return "non-catkin-only"
	}
	return "any"
}

// Keep reports whether p passes the filter.
func (f BuildKindFilter) Keep(p *distro.PackageNode) bool {
	switch f {
	case SourceOnly:
		return p.Kind == distro.SourceBuilt
	case LegacyOnly:
		return p.Kind == distro.LegacyBuilt
	case SourceCatkinOnly:
		return p.IsCatkin()
	case SourceNonCatkinOnly:
		return p.Kind == distro.SourceBuilt && !p.IsCatkin()
	}
	return true
}

// Request is one immutable resolution request.
type Request struct {
	Targets []selection.Reference
	Mode    Mode
	// MaxDepth bounds the number of dependency hops; zero means unbounded.
	MaxDepth int
	// DepsOnly drops the explicit targets from the result.
	DepsOnly bool
	Excludes []selection.Reference
	Filter   BuildKindFilter
}

// ResolvedSet is the outcome of a resolution.
type ResolvedSet struct {
	// Included packages in discovery order.
	Included []string
	// DepthOf holds the hop distance of every included package from the targets.
	DepthOf map[string]int
	// Via holds, for every included package reached through a dependency
	// edge, the included packages it was discovered from.
	Via map[string][]string
	// Targets are the expanded explicit targets.
	Targets []string
	// Repositories are the repositories named as targets.
	Repositories []string
}
