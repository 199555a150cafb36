package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ros-infrastructure/rosinstall-generator/internal/config"
	"github.com/ros-infrastructure/rosinstall-generator/internal/discovery"
	rerr "github.com/ros-infrastructure/rosinstall-generator/internal/errors"
	"github.com/ros-infrastructure/rosinstall-generator/internal/index"
	"github.com/ros-infrastructure/rosinstall-generator/internal/manifest"
	"github.com/ros-infrastructure/rosinstall-generator/internal/options"
	"github.com/ros-infrastructure/rosinstall-generator/internal/repoentry"
	"github.com/ros-infrastructure/rosinstall-generator/internal/resolver"
	"github.com/ros-infrastructure/rosinstall-generator/internal/selection"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type flags struct {
	raw        options.Raw
	depth      int
	verbose    bool
	debug      bool
	output     string
	indexURL   string
	configPath string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	logger := log.NewWithOptions(stderr, log.Options{Level: log.InfoLevel})

	var f flags
	rootCmd := &cobra.Command{
		Use:   "rosinstall-generator [pkgname...]",
		Short: "Generate a .rosinstall file for a set of packages",
		Long: "rosinstall-generator resolves packages of a ROS distribution with their dependencies " +
			"and prints the repositories to check out in rosinstall or repos format.\n\n" +
			"Package names may be catkin package names, rosbuild stack names or variant names. " +
			"Use '" + selection.KeywordCurrentEnvironment + "' for all packages of the current environment and '" +
			selection.KeywordAllPackages + "' for all released packages (only usable as a single argument).",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.raw.Names = args
			if cmd.Flags().Changed("deps-depth") {
				f.raw.DepsDepth = &f.depth
			}
			return run(cmd.Context(), cmd, &f, logger, stdout, stderr, getenv)
		},
	}

	fl := rootCmd.Flags()
	fl.BoolVar(&f.debug, "debug", false, "Print debug information about fetching the ROS distribution files to stderr")
	fl.BoolVar(&f.verbose, "verbose", false, "Print verbose information to stderr")
	fl.StringVar(&f.raw.Rosdistro, "rosdistro", "", "The ROS distro (default: environment variable ROS_DISTRO if defined)")
	fl.StringSliceVar(&f.raw.FromPaths, "from-path", nil, "Add the catkin packages found recursively under the given paths as if they would have been passed as package names")
	fl.StringSliceVar(&f.raw.Repos, "repos", nil, "Repository names containing catkin packages; '"+selection.KeywordAllPackages+"' for all repositories")

	fl.BoolVar(&f.raw.Upstream, "upstream", false, "Fetch the release tag of catkin packages from the upstream repo instead of the gbp")
	fl.BoolVar(&f.raw.UpstreamDevelopment, "upstream-development", false, "Fetch the development version of catkin packages from the upstream repo instead of the gbp")

	fl.BoolVar(&f.raw.Deps, "deps", false, "Include recursive dependencies")
	fl.StringSliceVar(&f.raw.DepsUpTo, "deps-up-to", nil, "Limit the recursive dependencies to packages which (in-)directly depend on a package in this set")
	fl.IntVar(&f.depth, "deps-depth", 0, "Limit recursive dependencies to a specific level (not supported on Groovy)")
	fl.BoolVar(&f.raw.DepsOnly, "deps-only", false, "Include only the recursive dependencies but not the specified packages")

	fl.BoolVar(&f.raw.WetOnly, "wet-only", false, "Only include catkin packages")
	fl.BoolVar(&f.raw.DryOnly, "dry-only", false, "Only include rosbuild stacks")
	fl.BoolVar(&f.raw.CatkinOnly, "catkin-only", false, "Only wet packages with build type 'catkin'")
	fl.BoolVar(&f.raw.NonCatkinOnly, "non-catkin-only", false, "Only wet packages with build type other than 'catkin'")

	fl.StringSliceVar(&f.raw.Excludes, "exclude", nil, "Exclude a set of packages (also skips further recursive dependencies)")
	fl.StringSliceVar(&f.raw.ExcludePaths, "exclude-path", nil, "Exclude the catkin packages found recursively under the given paths")

	fl.BoolVar(&f.raw.Flat, "flat", false, "Use a flat folder structure without a parent folder named after the repository")
	fl.BoolVar(&f.raw.Tar, "tar", false, "Use tarballs instead of repositories for catkin packages (rosbuild stacks are always tarballs)")
	fl.StringVar(&f.raw.Format, "format", "rosinstall", "Output the repository information in rosinstall or repos format")

	fl.StringVarP(&f.output, "output", "o", "", "Write the manifest to this file instead of stdout")
	fl.StringVar(&f.indexURL, "index-url", "", "Location of the rosdistro index (default: ROSDISTRO_INDEX_URL or the upstream index)")
	fl.StringVar(&f.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/rosinstall-generator/config.toml)")

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return rerr.Usage("%v", err)
	})

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error(err)
		if rerr.Is(err, rerr.CodeUsage) {
			return exitUsage
		}
		return exitError
	}
	return exitOK
}

func run(ctx context.Context, cmd *cobra.Command, f *flags, logger *log.Logger, stdout, stderr io.Writer, getenv func(string) string) error {
	if f.verbose {
		logger.SetLevel(log.DebugLevel)
	}
	indexLog := logger.WithPrefix("index")
	indexLog.SetLevel(log.InfoLevel)
	if f.debug {
		indexLog.SetLevel(log.DebugLevel)
	}

	cfgPath := f.configPath
	if cfgPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return fmt.Errorf("locating config: %w", err)
		}
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath, f.configPath != "")
	if err != nil {
		return err
	}
	settings, err := cfg.Merge(getenv)
	if err != nil {
		return err
	}

	if !cmd.Flags().Changed("rosdistro") {
		f.raw.Rosdistro = settings.Rosdistro
		if f.raw.Rosdistro != "" {
			fmt.Fprintf(stderr, "Using ROS_DISTRO: %s\n", f.raw.Rosdistro)
		}
	}
	if !cmd.Flags().Changed("format") {
		f.raw.Format = settings.Format
	}
	if f.indexURL != "" {
		settings.IndexURL = f.indexURL
	}

	v, err := options.Validate(f.raw)
	if err != nil {
		return err
	}

	loader := index.NewLoader(settings.IndexURL, index.Options{
		CacheDir: settings.CacheDir,
		TTL:      settings.CacheTTL,
		Sink:     indexLog,
	})
	logger.Debug("loading distribution", "distro", v.Distro, "index", loader.URL())
	g, err := loader.Load(ctx, v.Distro)
	if err != nil {
		return err
	}

	finder := discovery.NewFinder(settings.PackagePath, logger)
	res, err := resolver.NewResolver(g, selection.NewExpander(g, finder, logger), logger).Resolve(ctx, v.Request)
	if err != nil {
		return err
	}
	logger.Debug("resolved packages", "count", len(res.Included), "mode", fmt.Sprintf("%T", v.Request.Mode), "filter", v.Request.Filter)
	for _, name := range res.Included {
		logger.Debug("included", "package", name, "depth", res.DepthOf[name], "via", res.Via[name])
	}

	entries, err := repoentry.NewBuilder(g, v.Policy, logger).Build(res)
	if err != nil {
		return err
	}
	entries, err = manifest.Assemble(entries)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := manifest.NewEmitter(&buf, v.Format).Emit(entries); err != nil {
		return fmt.Errorf("rendering manifest: %w", err)
	}

	if f.output == "" {
		_, err := stdout.Write(buf.Bytes())
		return err
	}
	if err := writeFile(f.output, buf.Bytes()); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	logger.Info("wrote manifest", "path", f.output, "entries", len(entries), "format", v.Format)
	return nil
}

// writeFile writes to a temp file first, then renames.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
