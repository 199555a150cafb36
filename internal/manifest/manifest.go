// Package manifest assembles repository entries into a checkout manifest.
package manifest

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	rerr "github.com/ros-infrastructure/rosinstall-generator/internal/errors"
	"github.com/ros-infrastructure/rosinstall-generator/internal/repoentry"
)

// Format is an output shape.
type Format int

const (
	// Rosinstall is a sequence of single-key mappings keyed by VCS type.
	Rosinstall Format = iota
	// Repos is a single repositories mapping keyed by local name.
	Repos
)

func (f Format) String() string {
	if f == Repos {
		return "repos"
	}
	return "rosinstall"
}

// ParseFormat maps a --format value onto a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "rosinstall":
		return Rosinstall, nil
	case "repos":
		return Repos, nil
	}
	return 0, rerr.Usage("unknown format %q, expected rosinstall or repos", s)
}

// Assemble deduplicates entries by local name and sorts them. Identical
// entries collapse into one; differing entries with the same local name fail
// with DUPLICATE_LOCAL_NAME.
func Assemble(entries []repoentry.Entry) ([]repoentry.Entry, error) {
	out := make([]repoentry.Entry, 0, len(entries))
	seen := make(map[string]int, len(entries))

	for _, e := range entries {
		i, ok := seen[e.LocalName]
		if !ok {
			seen[e.LocalName] = len(out)
			e.Packages = slices.Clone(e.Packages)
			out = append(out, e)
			continue
		}
		prev := &out[i]
		if !sameCheckout(*prev, e) {
			return nil, rerr.About(rerr.CodeDuplicateLocalName, e.LocalName,
				"conflicting checkouts %s and %s", describe(*prev), describe(e))
		}
		for _, p := range e.Packages {
			if !slices.Contains(prev.Packages, p) {
				prev.Packages = append(prev.Packages, p)
			}
		}
	}

	Sort(out)
	return out, nil
}

// Sort orders entries by local name.
func Sort(entries []repoentry.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LocalName < entries[j].LocalName
	})
}

func sameCheckout(a, b repoentry.Entry) bool {
	return a.Type == b.Type && a.URI == b.URI && a.Version == b.Version
}

func describe(e repoentry.Entry) string {
	if e.Version == "" {
		return fmt.Sprintf("%s %s", e.Type, e.URI)
	}
	return fmt.Sprintf("%s %s@%s", e.Type, e.URI, e.Version)
}
