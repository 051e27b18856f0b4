// Package builder makes sure the shared base image and the per-project
// image exist before a command runs in them.
package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"iotz/internal/buildscript"
	"iotz/internal/console"
	"iotz/internal/engine"
	"iotz/internal/project"
	"iotz/internal/settings"
	"iotz/internal/toolchain"
)

// ErrNotInitialized is returned by `connect` when the project image does not exist.
var ErrNotInitialized = errors.New("there wasn't any project 'initialized' on this path")

const commandConnect = "connect"

// Config holds the builder's collaborators.
type Config struct {
	Engine   engine.Engine
	Registry *toolchain.Registry
	Settings *settings.Settings
	Console  *console.Printer
	Output   io.Writer // docker build progress, defaults to os.Stdout
	Logger   *log.Logger
}

// Builder provisions images.
type Builder struct {
	engine   engine.Engine
	registry *toolchain.Registry
	settings *settings.Settings
	console  *console.Printer
	output   io.Writer
	logger   *log.Logger
}

// New creates a Builder. Nil settings, console, output and logger are defaulted.
func New(cfg Config) *Builder {
	if cfg.Settings == nil {
		cfg.Settings = settings.Default()
	}
	if cfg.Console == nil {
		cfg.Console = console.New()
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "[builder] ", log.LstdFlags|log.Lmsgprefix)
	}
	if cfg.Registry == nil {
		cfg.Registry = toolchain.NewRegistry()
	}

	return &Builder{
		engine:   cfg.Engine,
		registry: cfg.Registry,
		settings: cfg.Settings,
		console:  cfg.Console,
		output:   cfg.Output,
		logger:   cfg.Logger,
	}
}

// Identity returns the container identity of path under the current settings.
func (b *Builder) Identity(path string) (project.Identity, error) {
	return project.IdentityFor(path, b.settings.ImagePrefix, b.settings.InstanceSuffix)
}

// Ensure prepares the images command needs and returns the exit code of
// any build it ran (0 when nothing had to be built). A non-nil error is a
// fatal condition: unusable configuration, an uninitialised project on
// connect, or a failure to reach the engine.
func (b *Builder) Ensure(ctx context.Context, command, path string, cfg *project.Config) (int, error) {
	id, err := b.Identity(path)
	if err != nil {
		return 0, err
	}

	if command == toolchain.CommandClean && !cfg.HasToolchain() {
		return 0, nil
	}

	exists, err := b.engine.ImageExists(ctx, id.Image)
	if err != nil {
		return 0, err
	}
	if !exists && command == commandConnect {
		return 0, ErrNotInitialized
	}

	if code, err := b.EnsureBase(ctx); err != nil || code != 0 {
		return code, err
	}
	if exists && command != toolchain.CommandInit {
		return 0, nil
	}

	if cfg == nil {
		return 0, project.ErrNoConfig
	}
	if !cfg.HasToolchain() {
		return 0, project.ErrNoToolchain
	}
	plugin, err := b.registry.Require(cfg.Toolchain)
	if err != nil {
		return 0, err
	}

	res, err := plugin.Build(cfg, "", toolchain.CommandContainerInit, path)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", cfg.Toolchain, err)
	}
	if res == nil {
		res = &toolchain.BuildResult{}
	}

	b.console.Progress("initializing the project container..")
	code, err := b.buildIn(ctx, path, id.Image, b.ProjectScript(id, res.Run))
	if err != nil {
		return code, err
	}

	// The callback runs after every finished build, failed or not.
	if res.Callback != nil {
		if err := res.Callback(cfg); err != nil {
			return code, fmt.Errorf("%s: %w", cfg.Toolchain, err)
		}
	}
	return code, nil
}

// EnsureBase builds the shared base image when it is missing.
func (b *Builder) EnsureBase(ctx context.Context) (int, error) {
	base := b.settings.BaseImage
	exists, err := b.engine.ImageExists(ctx, base)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, nil
	}

	dir, err := os.MkdirTemp("", "iotz-base-")
	if err != nil {
		return 0, fmt.Errorf("create base build context: %w", err)
	}
	defer os.RemoveAll(dir)

	b.console.Progress("setting up the base image " + base + " (this may take a while)..")
	return b.buildIn(ctx, dir, base, b.BaseScript())
}

// BaseScript is the recipe for the shared base image: common packages then
// every plugin's extension, in registration order.
func (b *Builder) BaseScript() *buildscript.Script {
	s := buildscript.New(b.settings.BaseFrom)
	s.Env("DEBIAN_FRONTEND", "noninteractive")
	if len(b.settings.BasePackages) > 0 {
		s.Run("apt-get update", "apt-get install -y "+strings.Join(b.settings.BasePackages, " "), "apt-get clean")
	}
	for _, ext := range b.registry.Extensions() {
		s.Raw(ext.Run)
	}
	return s.Workdir(b.settings.MountPoint)
}

// ProjectScript is the recipe for a project image. run is the plugin's
// container_init fragment and may be empty.
func (b *Builder) ProjectScript(id project.Identity, run string) *buildscript.Script {
	return buildscript.New(b.settings.BaseImage).
		Workdir(b.settings.MountPoint).
		Run("echo "+buildscript.Quote("Setting up "+id.Image), run)
}

// buildIn writes script into dir, builds tag from it and removes the
// script again whatever the outcome.
func (b *Builder) buildIn(ctx context.Context, dir, tag string, script *buildscript.Script) (int, error) {
	scriptPath := filepath.Join(dir, b.settings.BuildScript)
	if err := script.WriteFile(scriptPath); err != nil {
		return 0, err
	}
	defer func() {
		if err := os.Remove(scriptPath); err != nil && !os.IsNotExist(err) {
			b.logger.Printf("remove %s: %v", scriptPath, err)
		}
	}()

	b.logger.Printf("building %s:\n%s", tag, script)
	code, err := b.engine.BuildImage(ctx, engine.BuildSpec{
		ContextDir: dir,
		Dockerfile: b.settings.BuildScript,
		Tag:        tag,
		Output:     b.output,
	})
	if err != nil {
		return 0, err
	}
	if code != 0 {
		b.logger.Printf("build of %s exited with %d", tag, code)
	}
	return code, nil
}
