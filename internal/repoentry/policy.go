package repoentry

// Source selects which version of a repository is checked out.
type Source int

const (
	// Release checks out the per-package release tag of the release repository.
	Release Source = iota
	// Upstream checks out the upstream repository at its release version.
	Upstream
	// UpstreamDevelopment checks out the upstream development branch.
	UpstreamDevelopment
)

func (s Source) String() string {
	switch s {
	case Upstream:
		return "upstream"
	case UpstreamDevelopment:
		return "upstream-development"
	}
	return "release"
}

// Layout decides how local names are formed.
type Layout int

const (
	// Nested places packages below a folder named after their repository.
	Nested Layout = iota
	// Flat uses the package name as local name.
	Flat
)

// Policy is the source-variant and layout policy of a run.
type Policy struct {
	Source  Source
	Tarball bool
	Layout  Layout
}
