// Package distrotest builds small distribution snapshots for tests.
package distrotest

import (
	"sort"
	"testing"

	"github.com/ros-infrastructure/rosinstall-generator/internal/distro"
)

// Package describes a fixture package. Zero fields get defaults: the
// repository is named after the package and the build type is catkin.
type Package struct {
	Name      string
	Repo      string
	Deps      []string
	BuildType string
	Legacy    bool
}

// Repo overrides the defaults of a fixture repository.
type Repo struct {
	Key            string
	ReleaseURL     string
	ReleaseVersion string
	Unreleased     bool
	SourceURL      string
	SourceType     distro.VCSType
	SourceBranch   string
	NoSource       bool
}

// Build creates a snapshot named "testing" from packages and optional repository overrides.
func Build(t testing.TB, pkgs []Package, repos ...Repo) *distro.Graph {
	t.Helper()
	g, err := build(pkgs, repos)
	if err != nil {
		t.Fatalf("building fixture distribution: %v", err)
	}
	return g
}

// FromEdges creates a snapshot where every package lives in its own
// repository and edges maps a package to its dependencies.
func FromEdges(t testing.TB, edges map[string][]string) *distro.Graph {
	t.Helper()
	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for from, tos := range edges {
		add(from)
		for _, to := range tos {
			add(to)
		}
	}
	sort.Strings(names)

	pkgs := make([]Package, 0, len(names))
	for _, n := range names {
		pkgs = append(pkgs, Package{Name: n, Deps: edges[n]})
	}
	return Build(t, pkgs)
}

func build(pkgs []Package, overrides []Repo) (*distro.Graph, error) {
	byKey := make(map[string]Repo)
	for _, r := range overrides {
		byKey[r.Key] = r
	}

	b := distro.NewBuilder("testing")
	added := make(map[string]bool)
	for _, p := range pkgs {
		key := p.Repo
		if key == "" {
			key = p.Name
		}
		if !added[key] {
			added[key] = true
			b.AddRepository(descriptor(key, p.Legacy, byKey[key]))
		}
	}
	for _, p := range pkgs {
		key := p.Repo
		if key == "" {
			key = p.Name
		}
		kind := distro.SourceBuilt
		if p.Legacy {
			kind = distro.LegacyBuilt
		}
		bt := p.BuildType
		if bt == "" && !p.Legacy {
			bt = distro.DefaultBuildType
		}
		b.AddPackage(distro.PackageNode{
			Name:         p.Name,
			Repository:   key,
			Dependencies: p.Deps,
			Kind:         kind,
			BuildType:    bt,
		})
	}
	return b.Build()
}

func descriptor(key string, legacy bool, o Repo) distro.RepositoryDescriptor {
	if legacy {
		version := o.ReleaseVersion
		if version == "" && !o.Unreleased {
			version = "1.0.0"
		}
		return distro.RepositoryDescriptor{
			Key:  key,
			Kind: distro.LegacyBuilt,
			Release: &distro.ReleaseRepository{
				Type:    distro.Tarball,
				URL:     "https://download.example.com/stacks/" + key + "/" + key + "-" + version + ".tar.bz2",
				Version: version,
			},
		}
	}

	r := distro.RepositoryDescriptor{Key: key, Kind: distro.SourceBuilt}
	rel := &distro.ReleaseRepository{
		Type:        distro.Git,
		URL:         o.ReleaseURL,
		Version:     o.ReleaseVersion,
		TagTemplate: "release/testing/{package}/{version}",
	}
	if rel.URL == "" {
		rel.URL = "https://github.com/ros-gbp/" + key + "-release.git"
	}
	if rel.Version == "" && !o.Unreleased {
		rel.Version = "1.2.3-0"
	}
	if o.Unreleased {
		rel.Version = ""
	}
	r.Release = rel

	if !o.NoSource {
		src := &distro.SourceRepository{Type: o.SourceType, URL: o.SourceURL, Version: o.SourceBranch}
		if src.Type == "" {
			src.Type = distro.Git
		}
		if src.URL == "" {
			src.URL = "https://github.com/ros/" + key + ".git"
		}
		if src.Version == "" {
			src.Version = "main"
		}
		r.Source = src
	}
	return r
}
