package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	rerr "github.com/ros-infrastructure/rosinstall-generator/internal/errors"
	"github.com/ros-infrastructure/rosinstall-generator/internal/index"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
rosdistro = "noetic"
index_url = "file:///srv/rosdistro/index-v4.yaml"
format = "repos"
cache_dir = "/var/cache/rg"
cache_ttl = "1h30m"
`)
	f, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := File{
		Rosdistro: "noetic",
		IndexURL:  "file:///srv/rosdistro/index-v4.yaml",
		Format:    "repos",
		CacheDir:  "/var/cache/rg",
		CacheTTL:  "1h30m",
	}
	if f != want {
		t.Errorf("Load() = %+v, want %+v", f, want)
	}
}

func TestLoad_Errors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.toml")

	if f, err := Load(missing, false); err != nil || f != (File{}) {
		t.Errorf("Load(missing, optional) = %+v, %v, want empty", f, err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing required", missing},
		{"syntax", writeConfig(t, "rosdistro = ")},
		{"unknown key", writeConfig(t, `distro = "noetic"`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path, true)
			if !rerr.Is(err, rerr.CodeUsage) {
				t.Errorf("Load() error = %v, want %s", err, rerr.CodeUsage)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")

	tests := []struct {
		name string
		file File
		env  map[string]string
		want Settings
	}{
		{
			name: "defaults",
			want: Settings{
				IndexURL: index.DefaultURL,
				Format:   "rosinstall",
				CacheDir: filepath.Join("/tmp/xdg-cache", appName),
			},
		},
		{
			name: "file",
			file: File{Rosdistro: "noetic", IndexURL: "/srv/index.yaml", Format: "repos", CacheDir: "/c", CacheTTL: "2h"},
			want: Settings{Rosdistro: "noetic", IndexURL: "/srv/index.yaml", Format: "repos", CacheDir: "/c", CacheTTL: 2 * time.Hour},
		},
		{
			name: "environment wins over file",
			file: File{Rosdistro: "noetic", IndexURL: "/srv/index.yaml", CacheDir: "/c"},
			env:  map[string]string{EnvDistro: "humble", EnvIndexURL: "https://example.com/index.yaml", EnvPackagePath: "/opt/ros"},
			want: Settings{Rosdistro: "humble", IndexURL: "https://example.com/index.yaml", Format: "rosinstall", CacheDir: "/c", PackagePath: "/opt/ros"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.file.Merge(envOf(tt.env))
			if err != nil {
				t.Fatalf("Merge() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Merge() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMerge_InvalidTTL(t *testing.T) {
	_, err := File{CacheDir: "/c", CacheTTL: "soon"}.Merge(envOf(nil))
	if !rerr.Is(err, rerr.CodeUsage) {
		t.Errorf("Merge() error = %v, want %s", err, rerr.CodeUsage)
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
	got, err := DefaultPath()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/tmp/xdg-config", appName, "config.toml"); got != want {
		t.Errorf("DefaultPath() = %q, want %q", got, want)
	}
}
