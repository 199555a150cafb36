// Package options validates command-line input and turns it into a
// resolution request and an output policy.
package options

import (
	"os"
	"slices"

	rerr "github.com/ros-infrastructure/rosinstall-generator/internal/errors"
	"github.com/ros-infrastructure/rosinstall-generator/internal/manifest"
	"github.com/ros-infrastructure/rosinstall-generator/internal/repoentry"
	"github.com/ros-infrastructure/rosinstall-generator/internal/resolver"
	"github.com/ros-infrastructure/rosinstall-generator/internal/selection"
)

// LegacyDistro is the only distribution that carries legacy (rosbuild) stacks.
const LegacyDistro = "groovy"

// Raw is the unvalidated command line.
type Raw struct {
	Rosdistro string
	Names     []string
	FromPaths []string
	Repos     []string

	Upstream            bool
	UpstreamDevelopment bool

	Deps bool
	// DepsUpTo limits the dependencies to packages that reach one of these.
	DepsUpTo []string
	// DepsDepth is nil when --deps-depth was not given.
	DepsDepth *int
	DepsOnly  bool

	WetOnly       bool
	DryOnly       bool
	CatkinOnly    bool
	NonCatkinOnly bool

	Excludes     []string
	ExcludePaths []string

	Flat   bool
	Tar    bool
	Format string
}

// Validated is a checked command line.
type Validated struct {
	Distro  string
	Request resolver.Request
	Policy  repoentry.Policy
	Format  manifest.Format
}

// Validate checks raw and derives the request.
func Validate(raw Raw) (*Validated, error) {
	if raw.Rosdistro == "" {
		return nil, rerr.Usage("no distribution given: pass --rosdistro or set ROS_DISTRO")
	}
	if err := exclusive(
		flag{"--upstream", raw.Upstream},
		flag{"--upstream-development", raw.UpstreamDevelopment},
	); err != nil {
		return nil, err
	}
	if err := exclusive(
		flag{"--deps", raw.Deps},
		flag{"--deps-up-to", len(raw.DepsUpTo) > 0},
	); err != nil {
		return nil, err
	}
	if err := exclusive(
		flag{"--wet-only", raw.WetOnly},
		flag{"--dry-only", raw.DryOnly},
		flag{"--catkin-only", raw.CatkinOnly},
		flag{"--non-catkin-only", raw.NonCatkinOnly},
	); err != nil {
		return nil, err
	}

	legacy := raw.Rosdistro == LegacyDistro
	if legacy && raw.DepsDepth != nil {
		return nil, rerr.Usage("option '--deps-depth N' is not available for the ROS distro %q", LegacyDistro)
	}
	wetOnly := raw.WetOnly || raw.CatkinOnly || raw.NonCatkinOnly
	if !legacy {
		if raw.DryOnly {
			return nil, rerr.Usage("for the ROS distro %q there are no rosbuild released packages so '--dry-only' is not a valid option", raw.Rosdistro)
		}
		wetOnly = true
	}

	if len(raw.Names) == 0 && len(raw.FromPaths) == 0 && len(raw.Repos) == 0 {
		return nil, rerr.Usage("either some package names must be specified, some --from-path or some repository names using --repos")
	}
	if slices.Contains(raw.Names, selection.KeywordAllPackages) && (len(raw.Names) > 1 || len(raw.Repos) > 0) {
		return nil, rerr.New(rerr.CodeInvalidSelection,
			"when using %q as a package name no other names can be specified", selection.KeywordAllPackages)
	}
	if slices.Contains(raw.Excludes, selection.KeywordAllPackages) || slices.Contains(raw.DepsUpTo, selection.KeywordAllPackages) {
		return nil, rerr.New(rerr.CodeInvalidSelection,
			"%q can only be used as a package or repository name", selection.KeywordAllPackages)
	}

	if !raw.Deps && len(raw.DepsUpTo) == 0 {
		if raw.DepsDepth != nil {
			return nil, rerr.Usage("option '--deps-depth N' can only be used together with either '--deps' or '--deps-up-to'")
		}
		if raw.DepsOnly {
			return nil, rerr.Usage("option '--deps-only' can only be used together with either '--deps' or '--deps-up-to'")
		}
	}
	if raw.DepsDepth != nil && *raw.DepsDepth < 1 {
		return nil, rerr.Usage("the argument 'N' to the option '--deps-depth' must be a positive integer")
	}

	for _, dirs := range [][]string{raw.FromPaths, raw.ExcludePaths} {
		for _, d := range dirs {
			if info, err := os.Stat(d); err != nil || !info.IsDir() {
				return nil, rerr.Usage("%q is not an existing directory", d)
			}
		}
	}

	format, err := manifest.ParseFormat(raw.Format)
	if err != nil {
		return nil, err
	}

	repos, err := selection.ParseRepositories(raw.Repos)
	if err != nil {
		return nil, err
	}
	targets := selection.ParseNames(raw.Names)
	targets = append(targets, selection.ParsePaths(raw.FromPaths)...)
	targets = append(targets, repos...)

	req := resolver.Request{
		Targets:  targets,
		Mode:     resolver.ExactSet{},
		DepsOnly: raw.DepsOnly,
		Excludes: append(selection.ParseNames(raw.Excludes), selection.ParsePaths(raw.ExcludePaths)...),
		Filter:   filter(raw, wetOnly),
	}
	switch {
	case raw.Deps:
		req.Mode = resolver.WithDeps{}
	case len(raw.DepsUpTo) > 0:
		req.Mode = resolver.DepsUpTo{Limit: selection.ParseNames(raw.DepsUpTo)}
	}
	if raw.DepsDepth != nil {
		req.MaxDepth = *raw.DepsDepth
	}

	policy := repoentry.Policy{Source: repoentry.Release, Tarball: raw.Tar, Layout: repoentry.Nested}
	switch {
	case raw.Upstream:
		policy.Source = repoentry.Upstream
	case raw.UpstreamDevelopment:
		policy.Source = repoentry.UpstreamDevelopment
	}
	if raw.Flat {
		policy.Layout = repoentry.Flat
	}

	return &Validated{Distro: raw.Rosdistro, Request: req, Policy: policy, Format: format}, nil
}

func filter(raw Raw, wetOnly bool) resolver.BuildKindFilter {
	switch {
	case raw.CatkinOnly:
		return resolver.SourceCatkinOnly
	case raw.NonCatkinOnly:
		return resolver.SourceNonCatkinOnly
	case raw.DryOnly:
		return resolver.LegacyOnly
	case wetOnly:
		return resolver.SourceOnly
	}
	return resolver.AnyKind
}

type flag struct {
	name string
	set  bool
}

func exclusive(flags ...flag) error {
	var set []string
	for _, f := range flags {
		if f.set {
			set = append(set, f.name)
		}
	}
	if len(set) > 1 {
		return rerr.Usage("options %s and %s are mutually exclusive", set[0], set[1])
	}
	return nil
}
