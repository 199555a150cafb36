package repoentry

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var vcsURLRe = regexp.MustCompile(`^(?:\w+://|git@)([\w.-]+)[:/]([\w./-]*?)(?:\.git)?$`)

type archiveHost struct {
	marker   string
	template string
}

// Hosts are matched in order against the server name.
var archiveHosts = []archiveHost{
	{"github", "https://%s/%s/archive/%s.tar.gz"},
	{"bitbucket", "https://%s/%s/get/%s.tar.gz"},
	{"gitlab", "https://%s/%s/-/archive/%s/archive.tar.gz"},
}

// tarballFor maps a hosted VCS url and ref onto an archive download url and
// the name of the folder the archive unpacks into.
func tarballFor(url, ref string) (uri, version string, err error) {
	m := vcsURLRe.FindStringSubmatch(url)
	if m == nil {
		return "", "", fmt.Errorf("cannot parse repository url %q", url)
	}
	server, repoPath := m[1], m[2]
	for _, h := range archiveHosts {
		if strings.Contains(server, h.marker) {
			uri = fmt.Sprintf(h.template, server, repoPath, ref)
			version = path.Base(repoPath) + "-" + strings.ReplaceAll(ref, "/", "-")
			return uri, version, nil
		}
	}
	return "", "", fmt.Errorf("unrecognized git server %q", server)
}
