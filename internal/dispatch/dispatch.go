// Package dispatch routes an iotz verb through configuration, image
// provisioning, the toolchain plugin and the container runner.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"iotz/internal/builder"
	"iotz/internal/console"
	"iotz/internal/engine"
	"iotz/internal/history"
	"iotz/internal/project"
	"iotz/internal/runner"
	"iotz/internal/settings"
	"iotz/internal/toolchain"
)

// Built-in verbs besides the toolchain commands.
const (
	VerbRun     = "run"
	VerbConnect = "connect"
	VerbMake    = "make"
)

// Args is one parsed invocation: the verb and everything after it.
type Args struct {
	Command string
	Arg     string
}

// Config holds the dispatcher's collaborators. Engine and Registry are
// required; the rest are derived from them when nil.
type Config struct {
	Engine   engine.Engine
	Registry *toolchain.Registry
	Settings *settings.Settings
	Builder  *builder.Builder
	Runner   *runner.Runner
	Resolver *project.Resolver
	History  *history.Recorder
	Console  *console.Printer
	Logger   *log.Logger
}

// Dispatcher executes verbs. It owns the single active container slot of
// the process.
type Dispatcher struct {
	engine   engine.Engine
	registry *toolchain.Registry
	settings *settings.Settings
	builder  *builder.Builder
	runner   *runner.Runner
	resolver *project.Resolver
	history  *history.Recorder
	console  *console.Printer
	logger   *log.Logger

	inst runner.Instance
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.Settings == nil {
		cfg.Settings = settings.Default()
	}
	if cfg.Console == nil {
		cfg.Console = console.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "[iotz] ", log.LstdFlags|log.Lmsgprefix)
	}
	if cfg.Registry == nil {
		cfg.Registry = toolchain.NewRegistry()
	}
	if cfg.Builder == nil {
		cfg.Builder = builder.New(builder.Config{
			Engine:   cfg.Engine,
			Registry: cfg.Registry,
			Settings: cfg.Settings,
			Console:  cfg.Console,
			Output:   cfg.Console.Out,
			Logger:   cfg.Logger,
		})
	}
	if cfg.Runner == nil {
		cfg.Runner = runner.New(runner.Config{
			Engine:   cfg.Engine,
			Settings: cfg.Settings,
			Stdout:   cfg.Console.Out,
			Stderr:   cfg.Console.Err,
			Logger:   cfg.Logger,
		})
	}
	if cfg.Resolver == nil {
		cfg.Resolver = project.NewResolver(cfg.Registry, cfg.Logger)
	}

	return &Dispatcher{
		engine:   cfg.Engine,
		registry: cfg.Registry,
		settings: cfg.Settings,
		builder:  cfg.Builder,
		runner:   cfg.Runner,
		resolver: cfg.Resolver,
		history:  cfg.History,
		console:  cfg.Console,
		logger:   cfg.Logger,
	}
}

// Dispatch runs one verb against the project at path and records it in the
// history. Failures of the build or the container come back as
// *ExitCodeError; configuration and usage problems as other errors.
func (d *Dispatcher) Dispatch(ctx context.Context, args Args, path string) (err error) {
	start := time.Now()
	entry := history.Entry{Command: args.Command, Arg: args.Arg, Path: path}
	defer func() {
		entry.ExitCode = ExitCode(err)
		entry.Duration = float64(time.Since(start).Microseconds()) / 1000
		if err != nil {
			entry.Error = err.Error()
		}
		if herr := d.history.Record(entry); herr != nil {
			d.logger.Printf("record history: %v", herr)
		}
	}()

	if !d.knownVerb(args.Command) {
		return fmt.Errorf("%w %q", ErrUnknownCommand, args.Command)
	}

	cfg := d.resolver.Resolve(path, args.Arg, args.Command)
	if cfg != nil {
		entry.Toolchain = cfg.Toolchain
	}
	if id, err := d.builder.Identity(path); err == nil {
		entry.Image = id.Image
	}

	code, err := d.builder.Ensure(ctx, args.Command, path, cfg)
	if err != nil {
		return err
	}

	var (
		command string
		res     *toolchain.BuildResult
	)

	switch args.Command {
	case toolchain.CommandInit, toolchain.CommandCompile, toolchain.CommandClean, toolchain.CommandExport:
		if !cfg.HasToolchain() {
			if args.Command == toolchain.CommandClean {
				return d.removeImage(ctx, path)
			}
			if cfg == nil {
				return project.ErrNoConfig
			}
			return project.ErrNoToolchain
		}
		plugin, err := d.registry.Require(cfg.Toolchain)
		if err != nil {
			return err
		}
		if res, err = plugin.Build(cfg, args.Arg, args.Command, path); err != nil {
			return fmt.Errorf("%s: %w", cfg.Toolchain, err)
		}
		if res == nil {
			res = &toolchain.BuildResult{}
		}
		command = res.Run

	case VerbRun:
		if args.Arg == "" {
			return d.missingArgument(args.Command, code)
		}
		command = args.Arg

	case VerbConnect:
		if code != 0 {
			return &ExitCodeError{Code: code}
		}
		code, err := d.runner.Connect(ctx, &d.inst, path)
		if err != nil {
			return err
		}
		if code != 0 {
			return &ExitCodeError{Code: code}
		}
		return nil

	case VerbMake:
		command = strings.TrimSpace(VerbMake + " " + args.Arg)

	default:
		plugin := d.registry.Lookup(args.Command).Plugin
		caller, ok := plugin.(toolchain.DirectCaller)
		if !ok {
			return fmt.Errorf("%w %q: toolchain %s has no direct calls", ErrUnknownCommand, args.Command, plugin.Name())
		}
		if res, err = caller.DirectCall(cfg, args.Arg, args.Command, path); err != nil {
			return err
		}
		if res == nil || res.Run == "" {
			return d.missingArgument(args.Command, code)
		}
		command = res.Run
	}

	if code != 0 {
		return &ExitCodeError{Code: code}
	}

	if command != "" {
		code, err := d.runner.Run(ctx, &d.inst, path, command, runner.Options{Commit: res != nil && res.CommitChanges})
		if err != nil {
			return err
		}
		if code != 0 {
			return &ExitCodeError{Code: code}
		}
	}

	if res != nil && res.Callback != nil {
		if err := res.Callback(cfg); err != nil {
			return fmt.Errorf("%s: %w", cfg.Toolchain, err)
		}
	}
	if args.Command == toolchain.CommandClean {
		return d.removeImage(ctx, path)
	}
	return nil
}

// knownVerb reports whether command is built in or names a toolchain.
func (d *Dispatcher) knownVerb(command string) bool {
	switch command {
	case toolchain.CommandInit, toolchain.CommandCompile, toolchain.CommandClean, toolchain.CommandExport,
		VerbRun, VerbConnect, VerbMake:
		return true
	}
	return d.registry.IsToolchain(command)
}

func (d *Dispatcher) missingArgument(command string, pending int) error {
	err := fmt.Errorf("%w: you should provide a command to run after %q", ErrMissingArgument, command)
	if pending != 0 {
		return errors.Join(err, &ExitCodeError{Code: pending})
	}
	return err
}

// removeImage deletes the project image. It succeeds when there is none.
func (d *Dispatcher) removeImage(ctx context.Context, path string) error {
	id, err := d.builder.Identity(path)
	if err != nil {
		return err
	}
	if err := d.engine.RemoveImage(ctx, id.Image); err != nil {
		return err
	}
	d.console.Success("container is deleted")
	return nil
}
