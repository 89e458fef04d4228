package builder

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/qobs-build/cobble/internal/cache"
	"github.com/qobs-build/cobble/internal/clean"
	"github.com/qobs-build/cobble/internal/msg"
	"github.com/qobs-build/cobble/internal/toolchain"
	"golang.org/x/sync/errgroup"
)

// Options are the per-invocation knobs given on the command line
type Options struct {
	Profile string
	// Flavor overrides [toolchain] flavor when non-empty
	Flavor string
	// Jobs bounds concurrent compiles inside one source group; <= 0 means 1
	Jobs int
	// RunArgs are passed to the executable
	RunArgs []string
	// Exec spawns child processes; nil means real processes with inherited stdio
	Exec toolchain.Executor
}

type Builder struct {
	cfg        *Config
	env        ConfigEnv
	basedir    string
	flavor     toolchain.Flavor
	settings   *toolchain.Settings
	executable string // relative to basedir

	compiler *toolchain.Compiler
	linker   *toolchain.Linker
	runner   *toolchain.Runner
	cache    *cache.Cache
	jobs     int
	runArgs  []string
}

// NewBuilderInDirectory loads Cobble.toml from path
func NewBuilderInDirectory(path string, opts Options) (*Builder, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if opts.Profile == "" {
		opts.Profile = "debug"
	}

	env := NewConfigEnv(path, opts.Profile)
	cfg, err := ParseConfigFromFile(filepath.Join(path, ConfigFilename), env)
	if err != nil {
		return nil, err
	}
	return New(path, cfg, env, opts)
}

// New assembles a builder for an already parsed config
func New(basedir string, cfg *Config, env ConfigEnv, opts Options) (*Builder, error) {
	flavorName := opts.Flavor
	if flavorName == "" {
		flavorName = cfg.Toolchain.Flavor
	}
	if flavorName == "" {
		flavorName = defaultFlavor()
	}
	flavor, err := toolchain.FlavorByName(flavorName)
	if err != nil {
		return nil, err
	}

	profile := opts.Profile
	if profile == "" {
		profile = "debug"
	}
	debugFlags, err := cfg.profileFlags(profile, flavor.Name())
	if err != nil {
		return nil, err
	}

	settings := toolchain.NewSettings(toolchain.Options{
		Standard:    cfg.Flags.Standard,
		Encoding:    cfg.Flags.Encoding,
		Debug:       debugFlags,
		IncludeDirs: cfg.Flags.Include,
		LibraryDirs: cfg.Flags.LibDirs,
		Libraries:   cfg.Flags.Libs,
		LinkerFlags: cfg.Flags.Link,
	})

	compilerTool := cfg.Toolchain.Compiler
	if compilerTool == "" {
		compilerTool = findCompiler(flavor)
	}
	if compilerTool == "" {
		compilerTool = flavor.DefaultCompiler()
		msg.Warn("no %s compiler found, trying %q", flavor.Name(), compilerTool)
	}
	linkerTool := cfg.Toolchain.Linker
	if linkerTool == "" {
		linkerTool = compilerTool
	}

	executor := opts.Exec
	if executor == nil {
		executor = toolchain.NewProcessExecutor()
	}
	jobs := max(opts.Jobs, 1)

	return &Builder{
		cfg:        cfg,
		env:        env,
		basedir:    basedir,
		flavor:     flavor,
		settings:   settings,
		executable: flavor.ExecutableName(cfg.Project.Name),
		compiler:   &toolchain.Compiler{Tool: compilerTool, Flavor: flavor, Exec: executor, Dir: basedir},
		linker:     &toolchain.Linker{Tool: linkerTool, Flavor: flavor, Exec: executor, Dir: basedir},
		runner:     &toolchain.Runner{Exec: executor, Dir: basedir},
		cache:      cache.New(basedir),
		jobs:       jobs,
		runArgs:    slices.Clone(opts.RunArgs),
	}, nil
}

func defaultFlavor() string {
	if runtime.GOOS == "windows" {
		return toolchain.FlavorMSVC
	}
	return toolchain.FlavorGNU
}

// Executable returns the path of the linked program, relative to the project directory
func (b *Builder) Executable() string { return b.executable }

// Dispatch runs one target. The returned status is the exit status of the
// launched program for targets that run it, 0 otherwise.
func (b *Builder) Dispatch(ctx context.Context, target Target) (int, error) {
	switch target {
	case TargetAll:
		return b.BuildAndRun(ctx, cache.Full)
	case TargetMain:
		return b.BuildAndRun(ctx, cache.Incremental)
	case TargetClean:
		_, err := b.Clean()
		return 0, err
	case TargetRun:
		return b.Run(ctx)
	case TargetFetch:
		return 0, b.Fetch()
	}
	return 0, fmt.Errorf("%w %s", ErrUnknownTarget, target)
}

// BuildAndRun builds with the given policy then launches the executable
func (b *Builder) BuildAndRun(ctx context.Context, policy cache.Policy) (int, error) {
	if err := b.Build(ctx, policy); err != nil {
		return 0, err
	}
	return b.Run(ctx)
}

// Build compiles (or reuses) the library group, compiles the application
// group and links them. The first failure stops the build.
func (b *Builder) Build(ctx context.Context, policy cache.Policy) error {
	sources, err := NewSourceSet(b.cfg.Sources.Library, b.cfg.Sources.Application)
	if err != nil {
		return fmt.Errorf("[sources]: %w", err)
	}
	if err := b.cfg.RunPrepare(b.env); err != nil {
		return err
	}

	libObjs, err := b.libraryArtifacts(ctx, policy, sources.Library)
	if err != nil {
		return err
	}
	appObjs, err := b.compileGroup(ctx, sources.Application)
	if err != nil {
		return err
	}

	objs := slices.Concat(libObjs, appObjs)
	if err := b.linker.Link(ctx, objs, b.settings, b.executable); err != nil {
		return err
	}

	if policy == cache.Full {
		m := cache.NewManifest(b.flavor.Name(), b.settings.Fingerprint(), objs)
		if err := b.cache.SaveManifest(m); err != nil {
			msg.Warn("failed to save build manifest: %v", err)
		}
	}
	return nil
}

func (b *Builder) libraryArtifacts(ctx context.Context, policy cache.Policy, library []string) ([]string, error) {
	if policy == cache.Full {
		objs, err := b.compileGroup(ctx, library)
		if err != nil {
			return nil, err
		}
		if len(objs) > 0 {
			msg.Info("compiled %d library sources", len(objs))
		}
		return objs, nil
	}

	if m, err := b.cache.LoadManifest(); err != nil {
		msg.Warn("failed to read build manifest: %v", err)
	} else if m != nil {
		if why := m.Stale(b.flavor.Name(), b.settings.Fingerprint()); why != "" {
			msg.Warn("reusing library artifacts although %s", why)
		}
	}
	objs, err := b.cache.Reuse(library, b.flavor.ObjectExt())
	if err != nil {
		return nil, err
	}
	if len(objs) > 0 {
		msg.Step("Reusing", "%d library artifacts", len(objs))
	}
	return objs, nil
}

// compileGroup compiles sources with at most b.jobs compilers at a time and
// returns their artifacts in source order. No new compile starts after one
// has failed.
func (b *Builder) compileGroup(parent context.Context, sources []string) ([]string, error) {
	objs := make([]string, len(sources))
	eg, ctx := errgroup.WithContext(parent)
	eg.SetLimit(b.jobs)

	for i, src := range sources {
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			obj, err := b.compiler.Compile(ctx, src, b.settings)
			if err != nil {
				return err
			}
			objs[i] = obj
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	// an interrupt may have stopped the loop before every source was started
	if err := parent.Err(); err != nil {
		return nil, err
	}
	return objs, nil
}

// Run launches the executable left by the last successful link
func (b *Builder) Run(ctx context.Context) (int, error) {
	if _, err := os.Stat(filepath.Join(b.basedir, b.executable)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("executable %s not found, build it with the `all` target first", b.executable)
		}
		return 0, err
	}

	status, err := b.runner.Run(ctx, b.executable, b.runArgs)
	if err != nil {
		return status, err
	}
	if status != 0 {
		msg.Warn("%s exited with status %d", b.executable, status)
	}
	return status, nil
}

// Clean removes object files, executables and debug files from the project
// tree, and forgets the last build manifest
func (b *Builder) Clean() (clean.Report, error) {
	return sweepProject(b.basedir, b.flavor.CleanPatterns(b.executable))
}

// CleanInDirectory cleans the project at path. A Cobble.toml that cannot be
// loaded does not stop the sweep: the files of every flavor are removed
// instead, except a GNU executable whose name only the config knows.
func CleanInDirectory(path string, opts Options) (clean.Report, error) {
	b, err := NewBuilderInDirectory(path, opts)
	if err == nil {
		return b.Clean()
	}

	path, absErr := filepath.Abs(path)
	if absErr != nil {
		return clean.Report{}, absErr
	}
	msg.Warn("%v, sweeping the files of every toolchain", err)
	var patterns []string
	for _, name := range toolchain.Flavors() {
		flavor, _ := toolchain.FlavorByName(name)
		patterns = append(patterns, flavor.CleanPatterns("")...)
	}
	return sweepProject(path, patterns)
}

func sweepProject(basedir string, patterns []string) (clean.Report, error) {
	report, err := clean.Sweep(basedir, patterns, []string{".git"})
	if err != nil {
		return report, err
	}
	for _, o := range report.Outcomes {
		if o.Err != nil {
			msg.Warn("could not remove %s: %v", o.Path, o.Err)
		} else {
			msg.Step("Removed", "%s", o.Path)
		}
	}
	if err := cache.New(basedir).RemoveManifest(); err != nil {
		msg.Warn("failed to remove build manifest: %v", err)
	}
	msg.Info("removed %d files", report.Removed())
	return report, nil
}

// Fetch clones every [fetch] entry whose directory is missing or empty
func (b *Builder) Fetch() error {
	if len(b.cfg.Fetch) == 0 {
		msg.Info("nothing to fetch")
		return nil
	}
	for _, dir := range slices.Sorted(maps.Keys(b.cfg.Fetch)) {
		path, err := b.env.resolve(dir)
		if err != nil {
			return err
		}
		missing, err := needsFetch(path)
		if err != nil {
			return err
		}
		if !missing {
			msg.Step("Fresh", "%s", dir)
			continue
		}

		src, err := resolveFetchSource(b.cfg.Fetch[dir])
		if err != nil {
			return fmt.Errorf("[fetch] %s: %w", dir, err)
		}
		msg.Step("Fetching", "%s from %s", dir, src)
		if err := cloneGitRepo(src, path); err != nil {
			return fmt.Errorf("failed to fetch %s: %w", dir, err)
		}
	}
	return nil
}
