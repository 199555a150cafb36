package options

import (
	"reflect"
	"testing"

	rerr "github.com/ros-infrastructure/rosinstall-generator/internal/errors"
	"github.com/ros-infrastructure/rosinstall-generator/internal/manifest"
	"github.com/ros-infrastructure/rosinstall-generator/internal/repoentry"
	"github.com/ros-infrastructure/rosinstall-generator/internal/resolver"
	"github.com/ros-infrastructure/rosinstall-generator/internal/selection"
)

func depth(n int) *int { return &n }

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		raw  Raw
		want Validated
	}{
		{
			name: "defaults",
			raw:  Raw{Rosdistro: "noetic", Names: []string{"roscpp"}},
			want: Validated{
				Distro: "noetic",
				Request: resolver.Request{
					Targets:  []selection.Reference{selection.Package("roscpp")},
					Mode:     resolver.ExactSet{},
					Excludes: []selection.Reference{},
					Filter:   resolver.SourceOnly,
				},
				Policy: repoentry.Policy{Source: repoentry.Release},
				Format: manifest.Rosinstall,
			},
		},
		{
			name: "deps with depth and excludes",
			raw: Raw{
				Rosdistro:    "noetic",
				Names:        []string{"roscpp"},
				FromPaths:    []string{dir},
				Repos:        []string{"ros_comm"},
				Deps:         true,
				DepsDepth:    depth(2),
				DepsOnly:     true,
				Excludes:     []string{"RPP"},
				ExcludePaths: []string{dir},
				Upstream:     true,
				Flat:         true,
				Tar:          true,
				Format:       "repos",
			},
			want: Validated{
				Distro: "noetic",
				Request: resolver.Request{
					Targets: []selection.Reference{
						selection.Package("roscpp"),
						selection.Path(dir),
						selection.Repository("ros_comm"),
					},
					Mode:     resolver.WithDeps{},
					MaxDepth: 2,
					DepsOnly: true,
					Excludes: []selection.Reference{selection.Environment(), selection.Path(dir)},
					Filter:   resolver.SourceOnly,
				},
				Policy: repoentry.Policy{Source: repoentry.Upstream, Tarball: true, Layout: repoentry.Flat},
				Format: manifest.Repos,
			},
		},
		{
			name: "deps up to on the legacy distro",
			raw:  Raw{Rosdistro: "groovy", Names: []string{"navigation"}, DepsUpTo: []string{"roscpp"}, UpstreamDevelopment: true},
			want: Validated{
				Distro: "groovy",
				Request: resolver.Request{
					Targets:  []selection.Reference{selection.Package("navigation")},
					Mode:     resolver.DepsUpTo{Limit: []selection.Reference{selection.Package("roscpp")}},
					Excludes: []selection.Reference{},
					Filter:   resolver.AnyKind,
				},
				Policy: repoentry.Policy{Source: repoentry.UpstreamDevelopment},
				Format: manifest.Rosinstall,
			},
		},
		{
			name: "dry only",
			raw:  Raw{Rosdistro: "groovy", Names: []string{"ALL"}, DryOnly: true},
			want: Validated{
				Distro: "groovy",
				Request: resolver.Request{
					Targets:  []selection.Reference{selection.All()},
					Mode:     resolver.ExactSet{},
					Excludes: []selection.Reference{},
					Filter:   resolver.LegacyOnly,
				},
				Format: manifest.Rosinstall,
			},
		},
		{
			name: "catkin only",
			raw:  Raw{Rosdistro: "groovy", Repos: []string{"ALL"}, CatkinOnly: true},
			want: Validated{
				Distro: "groovy",
				Request: resolver.Request{
					Targets:  []selection.Reference{selection.AllRepos()},
					Mode:     resolver.ExactSet{},
					Excludes: []selection.Reference{},
					Filter:   resolver.SourceCatkinOnly,
				},
				Format: manifest.Rosinstall,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.raw)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if !reflect.DeepEqual(*got, tt.want) {
				t.Errorf("Validate() =\n%+v\nwant\n%+v", *got, tt.want)
			}
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	base := func(mod func(*Raw)) Raw {
		r := Raw{Rosdistro: "noetic", Names: []string{"roscpp"}}
		mod(&r)
		return r
	}

	tests := []struct {
		name     string
		raw      Raw
		wantCode rerr.Code
	}{
		{"no distro", base(func(r *Raw) { r.Rosdistro = "" }), rerr.CodeUsage},
		{"nothing selected", base(func(r *Raw) { r.Names = nil }), rerr.CodeUsage},
		{"upstream twice", base(func(r *Raw) { r.Upstream, r.UpstreamDevelopment = true, true }), rerr.CodeUsage},
		{"deps and deps up to", base(func(r *Raw) { r.Deps, r.DepsUpTo = true, []string{"a"} }), rerr.CodeUsage},
		{"two kind filters", base(func(r *Raw) { r.CatkinOnly, r.NonCatkinOnly = true, true }), rerr.CodeUsage},
		{"dry only on wet distro", base(func(r *Raw) { r.DryOnly = true }), rerr.CodeUsage},
		{"depth on legacy distro", base(func(r *Raw) { r.Rosdistro, r.Deps, r.DepsDepth = "groovy", true, depth(1) }), rerr.CodeUsage},
		{"depth without deps", base(func(r *Raw) { r.DepsDepth = depth(1) }), rerr.CodeUsage},
		{"deps only without deps", base(func(r *Raw) { r.DepsOnly = true }), rerr.CodeUsage},
		{"zero depth", base(func(r *Raw) { r.Deps, r.DepsDepth = true, depth(0) }), rerr.CodeUsage},
		{"negative depth", base(func(r *Raw) { r.Deps, r.DepsDepth = true, depth(-2) }), rerr.CodeUsage},
		{"missing from path", base(func(r *Raw) { r.FromPaths = []string{"/does/not/exist"} }), rerr.CodeUsage},
		{"unknown format", base(func(r *Raw) { r.Format = "json" }), rerr.CodeUsage},
		{"RPP as repository", base(func(r *Raw) { r.Repos = []string{"RPP"} }), rerr.CodeUsage},
		{"ALL with other names", base(func(r *Raw) { r.Names = []string{"ALL", "roscpp"} }), rerr.CodeInvalidSelection},
		{"ALL with repositories", base(func(r *Raw) { r.Names, r.Repos = []string{"ALL"}, []string{"ros_comm"} }), rerr.CodeInvalidSelection},
		{"ALL as exclude", base(func(r *Raw) { r.Excludes = []string{"ALL"} }), rerr.CodeInvalidSelection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.raw)
			if !rerr.Is(err, tt.wantCode) {
				t.Errorf("Validate() error = %v, want %s", err, tt.wantCode)
			}
		})
	}
}
