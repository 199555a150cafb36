package distro

import (
	"slices"
	"strings"
)

// BuildKind tells how a package is built, which decides how it can be sourced.
type BuildKind int

const (
	// SourceBuilt packages (catkin/ament "wet" packages) are checked out from VCS.
	SourceBuilt BuildKind = iota
	// LegacyBuilt packages (rosbuild "dry" stacks) are only available as release tarballs.
	LegacyBuilt
)

func (k BuildKind) String() string {
	if k == LegacyBuilt {
		return "legacy"
	}
	return "source"
}

// DefaultBuildType is the build type of a package.xml without an explicit export.
const DefaultBuildType = "catkin"

// VCSType is the kind of checkout an entry describes.
type VCSType string

const (
	Git     VCSType = "git"
	Hg      VCSType = "hg"
	Svn     VCSType = "svn"
	Tarball VCSType = "tar"
)

// ParseVCSType maps an index type string onto a VCSType.
func ParseVCSType(s string) (VCSType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "git":
		return Git, true
	case "hg":
		return Hg, true
	case "svn":
		return Svn, true
	case "tar":
		return Tarball, true
	}
	return "", false
}

// PackageNode is one package of a distribution snapshot. Nodes are shared
// read-only once the Graph has been built.
type PackageNode struct {
	Name       string
	Repository string
	// Dependencies holds every declared dependency, sorted, including names
	// that are not part of the snapshot (system or unreleased dependencies).
	Dependencies []string
	Kind         BuildKind
	// BuildType is the package.xml build_type export ("catkin", "ament_cmake", ...).
	BuildType string
}

// IsCatkin reports whether the package is built with catkin.
func (p PackageNode) IsCatkin() bool {
	return p.Kind == SourceBuilt && (p.BuildType == "" || p.BuildType == DefaultBuildType)
}

// ReleaseRepository is the released form of a repository: a release
// (bloom/gbp) repository for source-built packages, a tarball for legacy ones.
type ReleaseRepository struct {
	Type VCSType
	URL  string
	// Version is the full release version, e.g. "1.2.3-0"; empty when unreleased.
	Version string
	// TagTemplate formats per-package release tags; {package}, {version} and
	// {upstream_version} are substituted.
	TagTemplate string
}

// Tag returns the release tag of pkg.
func (r ReleaseRepository) Tag(pkg string) string {
	upstream, _, _ := strings.Cut(r.Version, "-")
	return strings.NewReplacer(
		"{package}", pkg,
		"{version}", r.Version,
		"{upstream_version}", upstream,
	).Replace(r.TagTemplate)
}

// SourceRepository is the upstream development repository.
type SourceRepository struct {
	Type    VCSType
	URL     string
	Version string
}

// RepositoryDescriptor identifies the repository that defines one or more packages.
type RepositoryDescriptor struct {
	Key     string
	Kind    BuildKind
	Release *ReleaseRepository
	Source  *SourceRepository
	// Packages lists the packages defined by this repository, sorted.
	Packages []string
}

// Released reports whether the repository carries a release version.
func (r *RepositoryDescriptor) Released() bool {
	return r.Release != nil && r.Release.Version != ""
}

// SoleProvider reports whether pkg is the only package this repository defines.
func (r *RepositoryDescriptor) SoleProvider(pkg string) bool {
	return len(r.Packages) == 1 && r.Packages[0] == pkg
}

// Defines reports whether pkg belongs to this repository.
func (r *RepositoryDescriptor) Defines(pkg string) bool {
	_, found := slices.BinarySearch(r.Packages, pkg)
	return found
}
