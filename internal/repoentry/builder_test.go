package repoentry

import (
	"reflect"
	"testing"

	"github.com/ros-infrastructure/rosinstall-generator/internal/diag"
	"github.com/ros-infrastructure/rosinstall-generator/internal/distro"
	"github.com/ros-infrastructure/rosinstall-generator/internal/distro/distrotest"
	rerr "github.com/ros-infrastructure/rosinstall-generator/internal/errors"
	"github.com/ros-infrastructure/rosinstall-generator/internal/resolver"
)

func fixture(t *testing.T, repos ...distrotest.Repo) *distro.Graph {
	t.Helper()
	return distrotest.Build(t, []distrotest.Package{
		{Name: "roscpp", Repo: "ros_comm", Deps: []string{"genmsg"}},
		{Name: "rospy", Repo: "ros_comm", Deps: []string{"genmsg"}},
		{Name: "genmsg"},
		{Name: "navigation", Legacy: true},
	}, repos...)
}

func included(ns ...string) *resolver.ResolvedSet {
	return &resolver.ResolvedSet{Included: ns}
}

func TestBuild_Release(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		want   []Entry
	}{
		{
			name:   "nested",
			policy: Policy{Source: Release},
			want: []Entry{
				{
					LocalName:  "ros_comm/roscpp",
					Type:       distro.Git,
					URI:        "https://github.com/ros-gbp/ros_comm-release.git",
					Version:    "release/testing/roscpp/1.2.3-0",
					Repository: "ros_comm",
					Packages:   []string{"roscpp"},
				},
				{
					LocalName:  "genmsg",
					Type:       distro.Git,
					URI:        "https://github.com/ros-gbp/genmsg-release.git",
					Version:    "release/testing/genmsg/1.2.3-0",
					Repository: "genmsg",
					Packages:   []string{"genmsg"},
				},
			},
		},
		{
			name:   "flat",
			policy: Policy{Source: Release, Layout: Flat},
			want: []Entry{
				{
					LocalName:  "roscpp",
					Type:       distro.Git,
					URI:        "https://github.com/ros-gbp/ros_comm-release.git",
					Version:    "release/testing/roscpp/1.2.3-0",
					Repository: "ros_comm",
					Packages:   []string{"roscpp"},
				},
				{
					LocalName:  "genmsg",
					Type:       distro.Git,
					URI:        "https://github.com/ros-gbp/genmsg-release.git",
					Version:    "release/testing/genmsg/1.2.3-0",
					Repository: "genmsg",
					Packages:   []string{"genmsg"},
				},
			},
		},
		{
			name:   "tarball",
			policy: Policy{Source: Release, Tarball: true},
			want: []Entry{
				{
					LocalName:  "ros_comm/roscpp",
					Type:       distro.Tarball,
					URI:        "https://github.com/ros-gbp/ros_comm-release/archive/release/testing/roscpp/1.2.3-0.tar.gz",
					Version:    "ros_comm-release-release-testing-roscpp-1.2.3-0",
					Repository: "ros_comm",
					Packages:   []string{"roscpp"},
				},
				{
					LocalName:  "genmsg",
					Type:       distro.Tarball,
					URI:        "https://github.com/ros-gbp/genmsg-release/archive/release/testing/genmsg/1.2.3-0.tar.gz",
					Version:    "genmsg-release-release-testing-genmsg-1.2.3-0",
					Repository: "genmsg",
					Packages:   []string{"genmsg"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(fixture(t), tt.policy, nil)
			got, err := b.Build(included("roscpp", "genmsg"))
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Build() =\n%+v\nwant\n%+v", got, tt.want)
			}
		})
	}
}

func TestBuild_UpstreamGroupsByRepository(t *testing.T) {
	tests := []struct {
		name           string
		source         Source
		releaseVersion string
		wantVersion    string
	}{
		{name: "upstream", source: Upstream, wantVersion: "1.2.3"},
		{name: "upstream pre-release", source: Upstream, releaseVersion: "2.0.0-rc.1-4", wantVersion: "2.0.0"},
		{name: "upstream not semantic", source: Upstream, releaseVersion: "2014.1-3", wantVersion: "2014.1"},
		{name: "development", source: UpstreamDevelopment, wantVersion: "main"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := fixture(t,
				distrotest.Repo{Key: "ros_comm", ReleaseVersion: tt.releaseVersion},
				distrotest.Repo{Key: "genmsg", ReleaseVersion: tt.releaseVersion},
			)
			b := NewBuilder(g, Policy{Source: tt.source}, nil)
			got, err := b.Build(included("roscpp", "rospy", "genmsg"))
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			want := []Entry{
				{
					LocalName:  "ros_comm",
					Type:       distro.Git,
					URI:        "https://github.com/ros/ros_comm.git",
					Version:    tt.wantVersion,
					Repository: "ros_comm",
					Packages:   []string{"roscpp", "rospy"},
				},
				{
					LocalName:  "genmsg",
					Type:       distro.Git,
					URI:        "https://github.com/ros/genmsg.git",
					Version:    tt.wantVersion,
					Repository: "genmsg",
					Packages:   []string{"genmsg"},
				},
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Build() =\n%+v\nwant\n%+v", got, want)
			}
		})
	}
}

func TestBuild_RepositoryTargets(t *testing.T) {
	g := fixture(t, distrotest.Repo{Key: "ros_comm", Unreleased: true})

	b := NewBuilder(g, Policy{Source: UpstreamDevelopment}, nil)
	got, err := b.Build(&resolver.ResolvedSet{Repositories: []string{"ros_comm"}})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(got) != 1 || got[0].LocalName != "ros_comm" || got[0].Version != "main" {
		t.Errorf("Build() = %+v, want a single ros_comm entry on main", got)
	}

	rec := &diag.Recorder{}
	b = NewBuilder(g, Policy{Source: Upstream}, rec)
	got, err = b.Build(&resolver.ResolvedSet{Repositories: []string{"ros_comm"}})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Build() = %+v, want unreleased repository skipped", got)
	}
	if len(rec.Warnings()) != 1 {
		t.Errorf("warnings = %v, want one", rec.Warnings())
	}
}

func TestBuild_LegacyIsAlwaysTarball(t *testing.T) {
	for _, source := range []Source{Release, Upstream, UpstreamDevelopment} {
		t.Run(source.String(), func(t *testing.T) {
			b := NewBuilder(fixture(t), Policy{Source: source}, nil)
			got, err := b.Build(included("navigation"))
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			want := []Entry{{
				LocalName:  "navigation",
				Type:       distro.Tarball,
				URI:        "https://download.example.com/stacks/navigation/navigation-1.0.0.tar.bz2",
				Version:    "navigation-1.0.0",
				Repository: "navigation",
				Packages:   []string{"navigation"},
			}}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Build() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestBuild_SourceUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		repo    distrotest.Repo
		policy  Policy
		include string
	}{
		{
			name:    "release without version",
			repo:    distrotest.Repo{Key: "genmsg", Unreleased: true},
			policy:  Policy{Source: Release},
			include: "genmsg",
		},
		{
			name:    "upstream without version",
			repo:    distrotest.Repo{Key: "genmsg", Unreleased: true},
			policy:  Policy{Source: Upstream},
			include: "genmsg",
		},
		{
			name:    "development without source",
			repo:    distrotest.Repo{Key: "genmsg", NoSource: true},
			policy:  Policy{Source: UpstreamDevelopment},
			include: "genmsg",
		},
		{
			name:    "legacy without release",
			repo:    distrotest.Repo{Key: "navigation", Unreleased: true},
			policy:  Policy{Source: Release},
			include: "navigation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(fixture(t, tt.repo), tt.policy, nil)
			_, err := b.Build(included("roscpp", tt.include))
			if !rerr.Is(err, rerr.CodeSourceUnavailable) {
				t.Fatalf("Build() error = %v, want %s", err, rerr.CodeSourceUnavailable)
			}
			if got := rerr.SubjectOf(err); got != tt.include && got != tt.repo.Key {
				t.Errorf("error subject = %q, want %q", got, tt.include)
			}
		})
	}
}

func TestBuild_TarballFallsBackOnUnknownHost(t *testing.T) {
	g := fixture(t, distrotest.Repo{Key: "genmsg", SourceURL: "https://vcs.example.org/genmsg.git"})
	rec := &diag.Recorder{}

	b := NewBuilder(g, Policy{Source: UpstreamDevelopment, Tarball: true}, rec)
	got, err := b.Build(included("genmsg"))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got[0].Type != distro.Git || got[0].URI != "https://vcs.example.org/genmsg.git" || got[0].Version != "main" {
		t.Errorf("Build() = %+v, want the VCS entry unchanged", got[0])
	}
	if len(rec.Warnings()) != 1 {
		t.Errorf("warnings = %v, want one", rec.Warnings())
	}
}

func TestTarballFor(t *testing.T) {
	tests := []struct {
		url, ref    string
		wantURI     string
		wantVersion string
		wantErr     bool
	}{
		{
			url:         "https://github.com/ros/ros_comm.git",
			ref:         "noetic-devel",
			wantURI:     "https://github.com/ros/ros_comm/archive/noetic-devel.tar.gz",
			wantVersion: "ros_comm-noetic-devel",
		},
		{
			url:         "git@github.com:ros/genmsg.git",
			ref:         "0.5.16",
			wantURI:     "https://github.com/ros/genmsg/archive/0.5.16.tar.gz",
			wantVersion: "genmsg-0.5.16",
		},
		{
			url:         "https://bitbucket.org/osrf/gazebo",
			ref:         "gazebo11_11.0.0",
			wantURI:     "https://bitbucket.org/osrf/gazebo/get/gazebo11_11.0.0.tar.gz",
			wantVersion: "gazebo-gazebo11_11.0.0",
		},
		{
			url:         "https://gitlab.com/group/sub/proj.git",
			ref:         "release/1.0",
			wantURI:     "https://gitlab.com/group/sub/proj/-/archive/release/1.0/archive.tar.gz",
			wantVersion: "proj-release-1.0",
		},
		{url: "https://vcs.example.org/proj.git", ref: "main", wantErr: true},
		{url: "not a url", ref: "main", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			uri, version, err := tarballFor(tt.url, tt.ref)
			if (err != nil) != tt.wantErr {
				t.Fatalf("tarballFor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if uri != tt.wantURI || version != tt.wantVersion {
				t.Errorf("tarballFor() = %q, %q, want %q, %q", uri, version, tt.wantURI, tt.wantVersion)
			}
		})
	}
}
