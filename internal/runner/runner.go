// Package runner launches commands in a project's container and tracks
// the single container the process currently owns.
package runner

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/term"

	"iotz/internal/engine"
	"iotz/internal/project"
	"iotz/internal/settings"
)

// Instance remembers the container launched by this invocation so the
// interrupt path can stop it. The zero value is ready to use.
type Instance struct {
	mu   sync.Mutex
	name string
}

// Set records the active container name.
func (i *Instance) Set(name string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.name = name
}

// Name returns the active container name, or "" when none is running.
func (i *Instance) Name() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.name
}

// Clear forgets the active container.
func (i *Instance) Clear() {
	i.Set("")
}

// Options tune a single Run.
type Options struct {
	// Commit saves the container's filesystem into the project image when
	// the command succeeds.
	Commit bool
}

// Config holds the runner's collaborators.
type Config struct {
	Engine   engine.Engine
	Settings *settings.Settings
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	Environ  []string // host environment, defaults to os.Environ()
	Logger   *log.Logger
}

// Runner executes shell commands in project containers.
type Runner struct {
	engine   engine.Engine
	settings *settings.Settings
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	env      []string
	logger   *log.Logger
}

// New creates a Runner bound to the process streams unless Config says otherwise.
func New(cfg Config) *Runner {
	if cfg.Settings == nil {
		cfg.Settings = settings.Default()
	}
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.Environ == nil {
		cfg.Environ = os.Environ()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "[runner] ", log.LstdFlags|log.Lmsgprefix)
	}

	return &Runner{
		engine:   cfg.Engine,
		settings: cfg.Settings,
		stdin:    cfg.Stdin,
		stdout:   cfg.Stdout,
		stderr:   cfg.Stderr,
		env:      ForwardEnvironment(cfg.Environ),
		logger:   cfg.Logger,
	}
}

// Run executes `<shell> -c command` in a fresh container of path's project
// image and returns the command's exit code. A stale container with the
// same name is removed first. If ctx is cancelled the container is stopped
// and ctx.Err() is returned.
func (r *Runner) Run(ctx context.Context, inst *Instance, path, command string, opts Options) (int, error) {
	spec, err := r.spec(path, []string{r.settings.Shell, "-c", command})
	if err != nil {
		return 0, err
	}
	spec.Tty = isTerminal(r.stdin)
	spec.Keep = opts.Commit

	return r.launch(ctx, inst, spec, opts.Commit)
}

// Connect opens an interactive shell in the project container. When stdin
// is a terminal it is put in raw mode for the duration of the session.
func (r *Runner) Connect(ctx context.Context, inst *Instance, path string) (int, error) {
	spec, err := r.spec(path, []string{r.settings.Shell})
	if err != nil {
		return 0, err
	}
	spec.Interactive = true

	if f, ok := r.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		spec.Tty = true
		if w, h, err := term.GetSize(fd); err == nil {
			spec.Width, spec.Height = uint(w), uint(h)
		}
		state, err := term.MakeRaw(fd)
		if err != nil {
			return 0, fmt.Errorf("set terminal raw mode: %w", err)
		}
		defer term.Restore(fd, state)
	}

	return r.launch(ctx, inst, spec, false)
}

// Interrupt force-stops the active container, if any. Errors are logged
// and otherwise ignored.
func (r *Runner) Interrupt(inst *Instance) {
	name := inst.Name()
	if name == "" {
		return
	}
	ctx := context.Background()
	if err := r.engine.KillContainer(ctx, name); err != nil {
		r.logger.Printf("kill %s: %v", name, err)
	}
	if err := r.engine.RemoveContainer(ctx, name); err != nil {
		r.logger.Printf("remove %s: %v", name, err)
	}
	inst.Clear()
}

func (r *Runner) spec(path string, cmd []string) (engine.RunSpec, error) {
	id, err := project.IdentityFor(path, r.settings.ImagePrefix, r.settings.InstanceSuffix)
	if err != nil {
		return engine.RunSpec{}, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return engine.RunSpec{}, fmt.Errorf("resolve project directory: %w", err)
	}

	return engine.RunSpec{
		Image:      id.Image,
		Name:       id.Instance,
		Cmd:        cmd,
		Binds:      []string{abs + ":" + r.settings.MountPoint + ":rw,cached"},
		WorkingDir: r.settings.MountPoint,
		Env:        r.env,
		Stdin:      r.stdin,
		Stdout:     r.stdout,
		Stderr:     r.stderr,
	}, nil
}

func (r *Runner) launch(ctx context.Context, inst *Instance, spec engine.RunSpec, commit bool) (int, error) {
	if err := r.engine.RemoveContainer(ctx, spec.Name); err != nil {
		r.logger.Printf("remove stale %s: %v", spec.Name, err)
	}

	inst.Set(spec.Name)
	defer inst.Clear()

	code, err := r.engine.Run(ctx, spec)
	if ctx.Err() != nil {
		r.Interrupt(inst)
		return code, ctx.Err()
	}
	if err != nil {
		return code, err
	}

	if commit {
		defer func() {
			if err := r.engine.RemoveContainer(context.Background(), spec.Name); err != nil {
				r.logger.Printf("remove %s: %v", spec.Name, err)
			}
		}()
		if code == 0 {
			if err := r.engine.Commit(ctx, spec.Name, spec.Image); err != nil {
				return code, err
			}
		}
	}
	return code, nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
