// Package toolchain defines the contract toolchain plugins implement and
// the registry that resolves toolchain names to plugins.
package toolchain

import (
	"errors"

	"iotz/internal/project"
)

// ErrUnknownToolchain is returned when a toolchain name has no registered plugin.
var ErrUnknownToolchain = errors.New("unknown toolchain")

// Commands the core passes to Plugin.Build.
const (
	CommandInit          = "init"
	CommandCompile       = "compile"
	CommandClean         = "clean"
	CommandExport        = "export"
	CommandContainerInit = "container_init"
)

// BuildResult is what a plugin hands back for one invocation.
type BuildResult struct {
	// Run is a shell command fragment, appended to the project build script
	// for CommandContainerInit and executed in the container otherwise.
	Run string

	// Callback, if set, runs after the command with the resolved config.
	Callback func(cfg *project.Config) error

	// CommitChanges asks for the container to be committed back to the
	// project image after Run succeeds.
	CommitChanges bool
}

// Plugin is the minimal toolchain capability.
type Plugin interface {
	// Name is the canonical toolchain identifier used in iotz.json.
	Name() string

	// Build maps a generic command (init, compile, clean, export,
	// container_init) to the toolchain's concrete invocation.
	Build(cfg *project.Config, runArg, command, path string) (*BuildResult, error)
}

// DirectCaller handles toolchain-specific verbs, e.g. `iotz micropython main.py`.
type DirectCaller interface {
	DirectCall(cfg *project.Config, runArg, command, path string) (*BuildResult, error)
}

// Extender contributes lines to the shared base image.
type Extender interface {
	CreateExtension() *BuildResult
}

// Detector recognises a project, or an invocation, as belonging to the toolchain.
type Detector interface {
	DetectProject(path, runArg, command string) bool
}

// Scaffolder creates a new project skeleton.
type Scaffolder interface {
	CreateProject(path, runArg string) error
}

// Aliaser lists extra verbs the plugin answers to besides its Name.
type Aliaser interface {
	Aliases() []string
}
