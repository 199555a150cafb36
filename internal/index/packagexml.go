package index

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	"github.com/ros-infrastructure/rosinstall-generator/internal/distro"
)

type packageXML struct {
	Name                  string          `xml:"name"`
	Depend                []conditionalText `xml:"depend"`
	BuildDepend           []conditionalText `xml:"build_depend"`
	BuildtoolDepend       []conditionalText `xml:"buildtool_depend"`
	BuildExportDepend     []conditionalText `xml:"build_export_depend"`
	BuildtoolExportDepend []conditionalText `xml:"buildtool_export_depend"`
	ExecDepend            []conditionalText `xml:"exec_depend"`
	RunDepend             []conditionalText `xml:"run_depend"`
	TestDepend            []conditionalText `xml:"test_depend"`
	Export                struct {
		BuildType []conditionalText `xml:"build_type"`
	} `xml:"export"`
}

// conditionalText is a tag whose text applies only when its format 3
// condition attribute holds.
type conditionalText struct {
	Name      string `xml:",chardata"`
	Condition string `xml:"condition,attr"`
}

// packageManifest is the part of a package.xml the graph needs.
type packageManifest struct {
	Name         string
	Dependencies []string
	BuildType    string
}

// parsePackageXML reads the manifest, dropping dependencies and build types
// whose condition does not hold in cond.
func parsePackageXML(text string, cond conditionContext) (packageManifest, error) {
	var px packageXML
	if err := xml.Unmarshal([]byte(text), &px); err != nil {
		return packageManifest{}, fmt.Errorf("parsing package.xml: %w", err)
	}

	m := packageManifest{
		Name:      strings.TrimSpace(px.Name),
		BuildType: distro.DefaultBuildType,
	}
	if m.Name == "" {
		return packageManifest{}, fmt.Errorf("parsing package.xml: missing <name>")
	}
	for _, bt := range px.Export.BuildType {
		ok, err := cond.evaluate(bt.Condition)
		if err != nil {
			return packageManifest{}, fmt.Errorf("parsing package.xml of %s: %w", m.Name, err)
		}
		if name := strings.TrimSpace(bt.Name); ok && name != "" {
			m.BuildType = name
			break
		}
	}

	seen := make(map[string]bool)
	for _, group := range [][]conditionalText{
		px.Depend, px.BuildDepend, px.BuildtoolDepend, px.BuildExportDepend,
		px.BuildtoolExportDepend, px.ExecDepend, px.RunDepend, px.TestDepend,
	} {
		for _, d := range group {
			ok, err := cond.evaluate(d.Condition)
			if err != nil {
				return packageManifest{}, fmt.Errorf("parsing package.xml of %s: %w", m.Name, err)
			}
			name := strings.TrimSpace(d.Name)
			if ok && name != "" && !seen[name] {
				seen[name] = true
				m.Dependencies = append(m.Dependencies, name)
			}
		}
	}
	sort.Strings(m.Dependencies)
	return m, nil
}
