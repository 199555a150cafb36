package manifest

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/ros-infrastructure/rosinstall-generator/internal/distro"
	"github.com/ros-infrastructure/rosinstall-generator/internal/repoentry"
)

type rosinstallFields struct {
	LocalName string `yaml:"local-name"`
	URI       string `yaml:"uri"`
	Version   string `yaml:"version,omitempty"`
}

type reposFields struct {
	Type    string `yaml:"type"`
	URL     string `yaml:"url"`
	Version string `yaml:"version,omitempty"`
}

type reposDocument struct {
	Repositories map[string]reposFields `yaml:"repositories"`
}

// Emitter writes manifests in one format.
type Emitter struct {
	w      io.Writer
	format Format
}

// NewEmitter creates a new manifest emitter.
func NewEmitter(w io.Writer, format Format) *Emitter {
	return &Emitter{w: w, format: format}
}

// Emit writes entries sorted by local name. Entries are expected to be
// assembled already.
func (e *Emitter) Emit(entries []repoentry.Entry) error {
	sorted := make([]repoentry.Entry, len(entries))
	copy(sorted, entries)
	Sort(sorted)

	var doc interface{}
	switch e.format {
	case Repos:
		doc = reposDoc(sorted)
	default:
		doc = rosinstallDoc(sorted)
	}

	enc := yaml.NewEncoder(e.w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func rosinstallDoc(entries []repoentry.Entry) []map[string]rosinstallFields {
	doc := make([]map[string]rosinstallFields, 0, len(entries))
	for _, en := range entries {
		doc = append(doc, map[string]rosinstallFields{
			string(en.Type): {LocalName: en.LocalName, URI: en.URI, Version: version(en)},
		})
	}
	return doc
}

func reposDoc(entries []repoentry.Entry) reposDocument {
	doc := reposDocument{Repositories: make(map[string]reposFields, len(entries))}
	for _, en := range entries {
		doc.Repositories[en.LocalName] = reposFields{Type: string(en.Type), URL: en.URI, Version: version(en)}
	}
	return doc
}

// version is the ref written for en. Archives carry no ref in either format.
func version(en repoentry.Entry) string {
	if en.Type == distro.Tarball {
		return ""
	}
	return en.Version
}
