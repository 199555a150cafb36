// Package index loads a distribution snapshot from a rosdistro index.
package index

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ros-infrastructure/rosinstall-generator/internal/diag"
	"github.com/ros-infrastructure/rosinstall-generator/internal/distro"
	rerr "github.com/ros-infrastructure/rosinstall-generator/internal/errors"
)

// DefaultURL is the upstream rosdistro index.
const DefaultURL = "https://raw.githubusercontent.com/ros/rosdistro/master/index-v4.yaml"

type indexFile struct {
	Type          string                       `yaml:"type"`
	Version       int                          `yaml:"version"`
	Distributions map[string]indexDistribution `yaml:"distributions"`
}

type indexDistribution struct {
	DistributionCache  string `yaml:"distribution_cache"`
	DistributionType   string `yaml:"distribution_type"`
	PythonVersion      int    `yaml:"python_version"`
	LegacyDistribution string `yaml:"legacy_distribution"`
}

type cacheFile struct {
	Type               string             `yaml:"type"`
	DistributionFile   []distributionFile `yaml:"distribution_file"`
	ReleasePackageXMLs map[string]string  `yaml:"release_package_xmls"`
}

type distributionFile struct {
	Repositories map[string]repositoryEntry `yaml:"repositories"`
}

type repositoryEntry struct {
	Release *releaseEntry `yaml:"release"`
	Source  *sourceEntry  `yaml:"source"`
}

type releaseEntry struct {
	Packages []string          `yaml:"packages"`
	Tags     map[string]string `yaml:"tags"`
	URL      string            `yaml:"url"`
	Version  string            `yaml:"version"`
}

type sourceEntry struct {
	Type    string `yaml:"type"`
	URL     string `yaml:"url"`
	Version string `yaml:"version"`
}

type legacyFile struct {
	Stacks   map[string]legacyStack `yaml:"stacks"`
	Variants map[string][]string    `yaml:"variants"`
}

type legacyStack struct {
	Version string   `yaml:"version"`
	Depends []string `yaml:"depends"`
	Tarball string   `yaml:"tarball"`
}

// Options configures a Loader.
type Options struct {
	// CacheDir holds downloaded documents; empty disables the disk cache.
	CacheDir string
	// TTL is how long a cached document stays fresh. Zero means 24h.
	TTL time.Duration
	// MaxRetries bounds download retries. Zero means 3.
	MaxRetries    uint64
	RetryInterval time.Duration
	Client        *http.Client
	Sink          diag.Sink
}

// Loader reads distribution snapshots from one index.
type Loader struct {
	url   string
	fetch *fetcher
	sink  diag.Sink
}

// NewLoader creates a loader for the index at indexURL.
func NewLoader(indexURL string, opts Options) *Loader {
	if indexURL == "" {
		indexURL = DefaultURL
	}
	f := &fetcher{
		client:        opts.Client,
		cacheDir:      opts.CacheDir,
		ttl:           opts.TTL,
		maxRetries:    opts.MaxRetries,
		retryInterval: opts.RetryInterval,
		sink:          diag.Or(opts.Sink),
	}
	if f.client == nil {
		f.client = newHTTPClient()
	}
	if f.ttl <= 0 {
		f.ttl = defaultTTL
	}
	if f.maxRetries == 0 {
		f.maxRetries = defaultMaxRetries
	}
	if f.retryInterval <= 0 {
		f.retryInterval = defaultRetryInterval
	}
	return &Loader{url: indexURL, fetch: f, sink: f.sink}
}

// URL returns the index location.
func (l *Loader) URL() string {
	return l.url
}

func (l *Loader) index(ctx context.Context) (*indexFile, error) {
	data, err := l.fetch.get(ctx, l.url)
	if err != nil {
		return nil, rerr.Wrap(rerr.CodeIndexUnavailable, err, "fetching index %s", l.url)
	}
	var idx indexFile
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, rerr.Wrap(rerr.CodeInvalidIndex, err, "parsing index %s", l.url)
	}
	if idx.Type != "index" {
		return nil, rerr.New(rerr.CodeInvalidIndex, "%s is not a rosdistro index (type %q)", l.url, idx.Type)
	}
	if idx.Version < 3 {
		return nil, rerr.New(rerr.CodeInvalidIndex, "unsupported index version %d", idx.Version)
	}
	return &idx, nil
}

// Distributions lists the distribution names of the index.
func (l *Loader) Distributions(ctx context.Context) ([]string, error) {
	idx, err := l.index(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(idx.Distributions))
	for n := range idx.Distributions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Load builds the snapshot of distribution name.
func (l *Loader) Load(ctx context.Context, name string) (*distro.Graph, error) {
	idx, err := l.index(ctx)
	if err != nil {
		return nil, err
	}
	d, ok := idx.Distributions[name]
	if !ok {
		known := make([]string, 0, len(idx.Distributions))
		for n := range idx.Distributions {
			known = append(known, n)
		}
		sort.Strings(known)
		return nil, rerr.About(rerr.CodeIndexUnavailable, name,
			"distribution not in index %s (known: %s)", l.url, strings.Join(known, ", "))
	}
	if d.DistributionCache == "" {
		return nil, rerr.About(rerr.CodeIndexUnavailable, name, "index has no distribution cache")
	}

	cacheLoc := resolve(l.url, d.DistributionCache)
	l.sink.Debug("loading distribution cache", "distro", name, "location", cacheLoc)
	data, err := l.fetch.get(ctx, cacheLoc)
	if err != nil {
		return nil, rerr.Wrap(rerr.CodeIndexUnavailable, err, "fetching distribution cache of %s", name)
	}
	cache, err := decodeCache(data)
	if err != nil {
		return nil, rerr.Wrap(rerr.CodeInvalidIndex, err, "parsing distribution cache of %s", name)
	}

	var legacy *legacyFile
	if d.LegacyDistribution != "" {
		loc := resolve(l.url, d.LegacyDistribution)
		data, err := l.fetch.get(ctx, loc)
		if err != nil {
			return nil, rerr.Wrap(rerr.CodeIndexUnavailable, err, "fetching legacy distribution of %s", name)
		}
		legacy = &legacyFile{}
		if err := yaml.Unmarshal(data, legacy); err != nil {
			return nil, rerr.Wrap(rerr.CodeInvalidIndex, err, "parsing legacy distribution of %s", name)
		}
	}

	return l.build(name, newConditionContext(name, d), cache, legacy)
}

func decodeCache(data []byte) (*cacheFile, error) {
	if len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decompressing: %w", err)
		}
		defer gz.Close()
		if data, err = io.ReadAll(gz); err != nil {
			return nil, fmt.Errorf("decompressing: %w", err)
		}
	}
	var c cacheFile
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Type != "" && c.Type != "cache" {
		return nil, fmt.Errorf("unexpected document type %q", c.Type)
	}
	return &c, nil
}

func (l *Loader) build(name string, cond conditionContext, cache *cacheFile, legacy *legacyFile) (*distro.Graph, error) {
	// later distribution files override earlier ones per repository
	repos := make(map[string]repositoryEntry)
	for _, f := range cache.DistributionFile {
		for key, r := range f.Repositories {
			repos[key] = r
		}
	}
	keys := make([]string, 0, len(repos))
	for k := range repos {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b := distro.NewBuilder(name)
	source := make(map[string]bool)
	for _, key := range keys {
		r := repos[key]
		desc, pkgs := l.descriptor(name, key, r)
		b.AddRepository(desc)
		for _, pkg := range pkgs {
			source[pkg] = true
			b.AddPackage(l.node(pkg, key, desc, cache.ReleasePackageXMLs[pkg], cond))
		}
	}

	if legacy != nil {
		stacks := make([]string, 0, len(legacy.Stacks))
		for s := range legacy.Stacks {
			stacks = append(stacks, s)
		}
		sort.Strings(stacks)
		for _, s := range stacks {
			if source[s] {
				l.sink.Warn("legacy stack shadowed by a source package", "stack", s)
				continue
			}
			if _, ok := repos[s]; ok {
				l.sink.Warn("legacy stack shadowed by a source repository", "stack", s)
				continue
			}
			st := legacy.Stacks[s]
			b.AddRepository(distro.RepositoryDescriptor{
				Key:  s,
				Kind: distro.LegacyBuilt,
				Release: &distro.ReleaseRepository{
					Type:    distro.Tarball,
					URL:     st.Tarball,
					Version: st.Version,
				},
			})
			b.AddPackage(distro.PackageNode{
				Name:         s,
				Repository:   s,
				Dependencies: st.Depends,
				Kind:         distro.LegacyBuilt,
			})
		}
		for v, members := range legacy.Variants {
			b.AddVariant(v, members)
		}
	}
	return b.Build()
}

func (l *Loader) descriptor(distroName, key string, r repositoryEntry) (distro.RepositoryDescriptor, []string) {
	desc := distro.RepositoryDescriptor{Key: key, Kind: distro.SourceBuilt}
	var pkgs []string

	if r.Release != nil {
		tmpl := r.Release.Tags["release"]
		if tmpl == "" {
			tmpl = "release/" + distroName + "/{package}/{version}"
		}
		desc.Release = &distro.ReleaseRepository{
			Type:        distro.Git,
			URL:         r.Release.URL,
			Version:     r.Release.Version,
			TagTemplate: tmpl,
		}
		pkgs = r.Release.Packages
		if len(pkgs) == 0 {
			pkgs = []string{key}
		}
	}

	if r.Source != nil && r.Source.URL != "" {
		vcs, ok := distro.ParseVCSType(r.Source.Type)
		if !ok {
			l.sink.Warn("ignoring source entry of unknown type", "repository", key, "type", r.Source.Type)
		} else {
			desc.Source = &distro.SourceRepository{Type: vcs, URL: r.Source.URL, Version: r.Source.Version}
		}
	}
	return desc, pkgs
}

func (l *Loader) node(pkg, repo string, desc distro.RepositoryDescriptor, xmlText string, cond conditionContext) distro.PackageNode {
	n := distro.PackageNode{
		Name:       pkg,
		Repository: repo,
		Kind:       distro.SourceBuilt,
		BuildType:  distro.DefaultBuildType,
	}
	if !desc.Released() {
		return n
	}
	if xmlText == "" {
		l.sink.Debug("released package without package.xml in cache", "package", pkg)
		return n
	}
	m, err := parsePackageXML(xmlText, cond)
	if err != nil {
		l.sink.Warn("ignoring unparsable package.xml", "package", pkg, "err", err)
		return n
	}
	n.Dependencies = m.Dependencies
	n.BuildType = m.BuildType
	return n
}
