// Package discovery finds packages on disk.
package discovery

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ros-infrastructure/rosinstall-generator/internal/diag"
	rerr "github.com/ros-infrastructure/rosinstall-generator/internal/errors"
)

const manifestFile = "package.xml"

// Marker files that exclude a directory tree from discovery.
var ignoreMarkers = []string{"CATKIN_IGNORE", "COLCON_IGNORE", "AMENT_IGNORE"}

// Legacy build system manifests, recognized in the environment only.
var legacyManifests = []string{"stack.xml", "manifest.xml"}

// Job is one root to search.
type Job struct {
	Root   string
	Legacy bool
}

// Result is the outcome of one Job.
type Result struct {
	Job      Job
	Packages []string
	Error    error
}

// Finder searches directory trees for packages.
type Finder struct {
	packagePath string
	sink        diag.Sink
}

// NewFinder creates a finder. packagePath is the ROS_PACKAGE_PATH value
// used by Environment.
func NewFinder(packagePath string, sink diag.Sink) *Finder {
	return &Finder{packagePath: packagePath, sink: diag.Or(sink)}
}

// Find returns the names of the packages below root in walk order.
func (f *Finder) Find(ctx context.Context, root string) ([]string, error) {
	return f.find(ctx, Job{Root: root})
}

// FindAll searches roots in parallel, one worker per root, and returns the
// merged names in root order without duplicates.
func (f *Finder) FindAll(ctx context.Context, roots []string) ([]string, error) {
	jobs := make([]Job, len(roots))
	for i, r := range roots {
		jobs[i] = Job{Root: r}
	}
	return f.run(ctx, jobs)
}

// Environment returns the packages found along ROS_PACKAGE_PATH, including
// legacy stacks and packages. Missing entries are skipped.
func (f *Finder) Environment(ctx context.Context) ([]string, error) {
	if strings.TrimSpace(f.packagePath) == "" {
		return nil, rerr.Usage("ROS_PACKAGE_PATH is not set")
	}
	var jobs []Job
	for _, p := range filepath.SplitList(f.packagePath) {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			f.sink.Debug("skipping missing ROS_PACKAGE_PATH entry", "path", p)
			continue
		}
		jobs = append(jobs, Job{Root: p, Legacy: true})
	}
	return f.run(ctx, jobs)
}

func (f *Finder) run(ctx context.Context, jobs []Job) ([]string, error) {
	if len(jobs) == 0 {
		return nil, nil
	}

	type indexed struct {
		i int
		Result
	}
	jobChan := make(chan int, len(jobs))
	resultChan := make(chan indexed, len(jobs))

	var wg sync.WaitGroup
	for w := 0; w < len(jobs); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobChan {
				pkgs, err := f.find(ctx, jobs[i])
				resultChan <- indexed{i: i, Result: Result{Job: jobs[i], Packages: pkgs, Error: err}}
			}
		}()
	}

	for i := range jobs {
		jobChan <- i
	}
	close(jobChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]Result, len(jobs))
	for r := range resultChan {
		results[r.i] = r.Result
	}

	var names []string
	seen := make(map[string]bool)
	for _, r := range results {
		if r.Error != nil {
			return nil, r.Error
		}
		for _, n := range r.Packages {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names, nil
}

func (f *Finder) find(ctx context.Context, job Job) ([]string, error) {
	info, err := os.Stat(job.Root)
	if err != nil {
		return nil, rerr.Wrap(rerr.CodeDiscoveryFailed, err, "searching %s", job.Root)
	}
	if !info.IsDir() {
		return nil, rerr.New(rerr.CodeDiscoveryFailed, "searching %s: not a directory", job.Root)
	}

	var names []string
	err = filepath.WalkDir(job.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != job.Root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		for _, m := range ignoreMarkers {
			if exists(filepath.Join(path, m)) {
				return filepath.SkipDir
			}
		}

		if exists(filepath.Join(path, manifestFile)) {
			name, err := packageName(filepath.Join(path, manifestFile))
			if err != nil {
				return err
			}
			names = append(names, name)
			return filepath.SkipDir
		}
		if job.Legacy {
			for _, m := range legacyManifests {
				if exists(filepath.Join(path, m)) {
					names = append(names, filepath.Base(path))
					return filepath.SkipDir
				}
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, rerr.Wrap(rerr.CodeDiscoveryFailed, err, "searching %s", job.Root)
	}
	f.sink.Debug("searched for packages", "root", job.Root, "found", len(names))
	return names, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func packageName(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var px struct {
		Name string `xml:"name"`
	}
	if err := xml.Unmarshal(data, &px); err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}
	name := strings.TrimSpace(px.Name)
	if name == "" {
		return "", fmt.Errorf("parsing %s: missing <name>", path)
	}
	return name, nil
}
