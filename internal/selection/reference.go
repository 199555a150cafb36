// Package selection turns symbolic target references into concrete package
// name sets against a distribution snapshot.
package selection

import (
	"fmt"

	rerr "github.com/ros-infrastructure/rosinstall-generator/internal/errors"
)

// Command-line keywords for the sentinel references.
const (
	KeywordAllPackages        = "ALL"
	KeywordCurrentEnvironment = "RPP"
)

// Kind is the variant of a Reference.
type Kind int

const (
	// PackageName names a package, a legacy stack or a variant.
	PackageName Kind = iota
	// RepositoryName names a repository; it stands for all its packages.
	RepositoryName
	// FilesystemPath stands for every package found below a directory.
	FilesystemPath
	// AllPackages stands for every released package of the distribution.
	AllPackages
	// CurrentEnvironment stands for every package of the active environment.
	CurrentEnvironment
	// AllRepositories stands for every source repository of the distribution.
	AllRepositories
)

func (k Kind) String() string {
	switch k {
	case PackageName:
		return "package"
	case RepositoryName:
		return "repository"
	case FilesystemPath:
		return "path"
	case AllPackages:
		return "all packages"
	case CurrentEnvironment:
		return "current environment"
	case AllRepositories:
		return "all repositories"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Reference is one target, exclude or limit item before expansion.
type Reference struct {
	Kind  Kind
	Value string
}

func Package(name string) Reference { return Reference{Kind: PackageName, Value: name} }
func Repository(name string) Reference { return Reference{Kind: RepositoryName, Value: name} }
func Path(dir string) Reference { return Reference{Kind: FilesystemPath, Value: dir} }
func All() Reference { return Reference{Kind: AllPackages} }
func Environment() Reference { return Reference{Kind: CurrentEnvironment} }
func AllRepos() Reference { return Reference{Kind: AllRepositories} }

// IsSentinel reports whether r stands for a computed set rather than a name.
func (r Reference) IsSentinel() bool {
	return r.Kind == AllPackages || r.Kind == CurrentEnvironment || r.Kind == AllRepositories
}

func (r Reference) String() string {
	switch r.Kind {
	case AllPackages:
		return KeywordAllPackages
	case CurrentEnvironment:
		return KeywordCurrentEnvironment
	case AllRepositories:
		return "repo:" + KeywordAllPackages
	case FilesystemPath:
		return "path:" + r.Value
	case RepositoryName:
		return "repo:" + r.Value
	}
	return r.Value
}

// ParseNames maps positional names onto references, recognizing the
// ALL and RPP keywords.
func ParseNames(names []string) []Reference {
	refs := make([]Reference, 0, len(names))
	for _, n := range names {
		switch n {
		case KeywordAllPackages:
			refs = append(refs, All())
		case KeywordCurrentEnvironment:
			refs = append(refs, Environment())
		default:
			refs = append(refs, Package(n))
		}
	}
	return refs
}

// ParseRepositories maps repository names onto references. ALL is the only
// keyword accepted here.
func ParseRepositories(names []string) ([]Reference, error) {
	refs := make([]Reference, 0, len(names))
	for _, n := range names {
		switch n {
		case KeywordAllPackages:
			refs = append(refs, AllRepos())
		case KeywordCurrentEnvironment:
			return nil, rerr.Usage("the only keyword supported by --repos is %q", KeywordAllPackages)
		default:
			refs = append(refs, Repository(n))
		}
	}
	return refs, nil
}

// ParsePaths maps directories onto references.
func ParsePaths(dirs []string) []Reference {
	refs := make([]Reference, 0, len(dirs))
	for _, d := range dirs {
		refs = append(refs, Path(d))
	}
	return refs
}

// CheckTargets enforces that the all-packages sentinel appears alone.
func CheckTargets(refs []Reference) error {
	for _, r := range refs {
		if r.Kind == AllPackages && len(refs) > 1 {
			return rerr.New(rerr.CodeInvalidSelection,
				"when using %q no other package or repository names can be specified", KeywordAllPackages)
		}
	}
	return nil
}
