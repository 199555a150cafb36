// Package config reads the optional config file and merges it with the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	rerr "github.com/ros-infrastructure/rosinstall-generator/internal/errors"
	"github.com/ros-infrastructure/rosinstall-generator/internal/index"
)

const appName = "rosinstall-generator"

// Environment variables.
const (
	EnvDistro      = "ROS_DISTRO"
	EnvIndexURL    = "ROSDISTRO_INDEX_URL"
	EnvPackagePath = "ROS_PACKAGE_PATH"
)

// File is the TOML config file.
type File struct {
	Rosdistro string `toml:"rosdistro"`
	IndexURL  string `toml:"index_url"`
	Format    string `toml:"format"`
	CacheDir  string `toml:"cache_dir"`
	// CacheTTL is a Go duration string, e.g. "12h".
	CacheTTL string `toml:"cache_ttl"`
}

// Settings are the effective values below command-line flags.
type Settings struct {
	Rosdistro   string
	IndexURL    string
	Format      string
	CacheDir    string
	CacheTTL    time.Duration
	PackagePath string
}

// DefaultPath returns the config file location.
func DefaultPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// DefaultCacheDir returns the index cache location.
func DefaultCacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// Load reads the config file at path. A missing file yields an empty File
// unless required is set.
func Load(path string, required bool) (File, error) {
	var f File
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return f, nil
		}
		return f, rerr.Wrap(rerr.CodeUsage, err, "reading config")
	}
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return f, rerr.Wrap(rerr.CodeUsage, err, "parsing config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return f, rerr.Usage("config %s: unknown key %q", path, undecoded[0].String())
	}
	return f, nil
}

// Merge applies the environment over the file and fills defaults.
func (f File) Merge(getenv func(string) string) (Settings, error) {
	s := Settings{
		Rosdistro:   first(getenv(EnvDistro), f.Rosdistro),
		IndexURL:    first(getenv(EnvIndexURL), f.IndexURL, index.DefaultURL),
		Format:      first(f.Format, "rosinstall"),
		CacheDir:    f.CacheDir,
		PackagePath: getenv(EnvPackagePath),
	}
	if s.CacheDir == "" {
		dir, err := DefaultCacheDir()
		if err != nil {
			return s, fmt.Errorf("locating cache dir: %w", err)
		}
		s.CacheDir = dir
	}
	if f.CacheTTL != "" {
		ttl, err := time.ParseDuration(f.CacheTTL)
		if err != nil || ttl < 0 {
			return s, rerr.Usage("config: invalid cache_ttl %q", f.CacheTTL)
		}
		s.CacheTTL = ttl
	}
	return s, nil
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
