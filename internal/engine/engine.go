// Package engine wraps the container runtime operations iotz needs:
// image inspection, builds, removal, and running named containers.
package engine

import (
	"context"
	"io"
)

// BuildSpec describes one image build.
type BuildSpec struct {
	ContextDir string    // directory sent as the build context
	Dockerfile string    // path of the build script, relative to ContextDir
	Tag        string    // image reference to tag the result with
	Output     io.Writer // build progress; nil discards it
}

// RunSpec describes one container run.
type RunSpec struct {
	Image      string
	Name       string
	Cmd        []string
	Binds      []string // host:container[:opts]
	WorkingDir string
	Env        []string

	Tty         bool
	Interactive bool // attach Stdin
	Keep        bool // leave the container in place after it exits

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Initial terminal size, applied when Tty is set and both are non-zero.
	Width  uint
	Height uint
}

// Engine is the container runtime seen by the builder and the runner.
//
// BuildImage and Run return the exit code of the build or the container
// process; the error is reserved for failures to talk to the runtime.
type Engine interface {
	Ping(ctx context.Context) error
	ImageExists(ctx context.Context, ref string) (bool, error)
	BuildImage(ctx context.Context, spec BuildSpec) (int, error)
	// RemoveImage force-removes ref. A missing image is not an error.
	RemoveImage(ctx context.Context, ref string) error
	Run(ctx context.Context, spec RunSpec) (int, error)
	Commit(ctx context.Context, container, ref string) error
	KillContainer(ctx context.Context, name string) error
	// RemoveContainer force-removes name. A missing container is not an error.
	RemoveContainer(ctx context.Context, name string) error
}
