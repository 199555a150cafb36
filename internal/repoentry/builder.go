// Package repoentry maps resolved packages onto repository checkout entries.
package repoentry

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/ros-infrastructure/rosinstall-generator/internal/diag"
	"github.com/ros-infrastructure/rosinstall-generator/internal/distro"
	rerr "github.com/ros-infrastructure/rosinstall-generator/internal/errors"
	"github.com/ros-infrastructure/rosinstall-generator/internal/resolver"
)

// Entry is one checkout of the manifest.
type Entry struct {
	LocalName string
	Type      distro.VCSType
	URI       string
	// Version is the ref to check out; for tarballs the folder the archive unpacks into.
	Version string

	// Repository is the key of the owning repository.
	Repository string
	// Packages are the resolved packages served by this entry.
	Packages []string
}

// Builder creates entries under one policy.
type Builder struct {
	graph  *distro.Graph
	policy Policy
	sink   diag.Sink
}

// NewBuilder creates a builder.
func NewBuilder(g *distro.Graph, p Policy, sink diag.Sink) *Builder {
	return &Builder{graph: g, policy: p, sink: diag.Or(sink)}
}

// Build returns the entries for res in resolution order. A package without a
// source under the policy aborts the whole build.
func (b *Builder) Build(res *resolver.ResolvedSet) ([]Entry, error) {
	var entries []Entry
	byRepo := make(map[string]int)

	for _, name := range res.Included {
		p, err := b.graph.Lookup(name)
		if err != nil {
			return nil, err
		}
		repo, err := b.graph.RepositoryOf(name)
		if err != nil {
			return nil, err
		}

		if p.Kind == distro.LegacyBuilt {
			e, err := b.legacy(p, repo)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
			continue
		}

		if b.policy.Source == Release {
			e, err := b.release(p, repo)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
			continue
		}

		if i, ok := byRepo[repo.Key]; ok {
			entries[i].Packages = append(entries[i].Packages, name)
			continue
		}
		e, err := b.upstream(repo)
		if err != nil {
			return nil, err
		}
		e.Packages = []string{name}
		byRepo[repo.Key] = len(entries)
		entries = append(entries, e)
	}

	if b.policy.Source != Release {
		for _, key := range res.Repositories {
			if _, ok := byRepo[key]; ok {
				continue
			}
			repo, err := b.graph.Repository(key)
			if err != nil {
				return nil, err
			}
			if repo.Kind == distro.LegacyBuilt {
				continue
			}
			if b.policy.Source == Upstream && !repo.Released() {
				b.sink.Warn("repository without a release is skipped", "repository", key)
				continue
			}
			e, err := b.upstream(repo)
			if err != nil {
				return nil, err
			}
			byRepo[key] = len(entries)
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (b *Builder) legacy(p *distro.PackageNode, repo *distro.RepositoryDescriptor) (Entry, error) {
	if !repo.Released() {
		return Entry{}, rerr.About(rerr.CodeSourceUnavailable, p.Name, "legacy package has no released tarball")
	}
	return Entry{
		LocalName:  p.Name,
		Type:       distro.Tarball,
		URI:        repo.Release.URL,
		Version:    p.Name + "-" + repo.Release.Version,
		Repository: repo.Key,
		Packages:   []string{p.Name},
	}, nil
}

func (b *Builder) release(p *distro.PackageNode, repo *distro.RepositoryDescriptor) (Entry, error) {
	if !repo.Released() {
		return Entry{}, rerr.About(rerr.CodeSourceUnavailable, p.Name, "package in repository %q has no release version", repo.Key)
	}

	local := p.Name
	if b.policy.Layout == Nested && !repo.SoleProvider(p.Name) {
		local = repo.Key + "/" + p.Name
	}
	e := Entry{
		LocalName:  local,
		Type:       repo.Release.Type,
		URI:        repo.Release.URL,
		Version:    repo.Release.Tag(p.Name),
		Repository: repo.Key,
		Packages:   []string{p.Name},
	}
	return b.maybeTarball(e), nil
}

func (b *Builder) upstream(repo *distro.RepositoryDescriptor) (Entry, error) {
	if repo.Source == nil || repo.Source.URL == "" {
		return Entry{}, rerr.About(rerr.CodeSourceUnavailable, repo.Key, "repository has no upstream source entry")
	}

	e := Entry{
		LocalName:  repo.Key,
		Type:       repo.Source.Type,
		URI:        repo.Source.URL,
		Repository: repo.Key,
	}
	switch b.policy.Source {
	case Upstream:
		if !repo.Released() {
			return Entry{}, rerr.About(rerr.CodeSourceUnavailable, repo.Key, "repository has no release version")
		}
		e.Version = b.upstreamVersion(repo)
	case UpstreamDevelopment:
		e.Version = repo.Source.Version
	}
	return b.maybeTarball(e), nil
}

// upstreamVersion strips the packaging increment from a release version.
// The increment parses as a semantic pre-release, so a semantic release
// version yields its core version; anything else is cut at the first hyphen.
func (b *Builder) upstreamVersion(repo *distro.RepositoryDescriptor) string {
	release := repo.Release.Version
	v, err := semver.StrictNewVersion(release)
	if err != nil {
		upstream, _, _ := strings.Cut(release, "-")
		b.sink.Debug("release version is not semantic, using its prefix verbatim as tag",
			"repository", repo.Key, "version", release, "tag", upstream)
		return upstream
	}
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}

func (b *Builder) maybeTarball(e Entry) Entry {
	if !b.policy.Tarball || e.Type == distro.Tarball {
		return e
	}
	uri, version, err := tarballFor(e.URI, e.Version)
	if err != nil {
		b.sink.Warn("tarball requested but not available, falling back on a VCS checkout",
			"local-name", e.LocalName, "reason", err)
		return e
	}
	e.Type = distro.Tarball
	e.URI = uri
	e.Version = version
	return e
}
