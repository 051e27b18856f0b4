// Package micropython is the micro-python toolchain: it builds the unix port
// of MicroPython into the base image and runs scripts with it.
package micropython

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"iotz/internal/project"
	"iotz/internal/toolchain"
)

// Name is the toolchain identifier used in iotz.json.
const Name = "micro-python"

// Verbs answered directly by the plugin.
const (
	VerbMicropython = "micropython"
	VerbUpip        = "upip"
)

// setupScript is appended verbatim to the shared base image.
const setupScript = `
RUN apt-get update
RUN apt-get install -y build-essential libreadline-dev libffi-dev git pkg-config && apt clean
RUN mkdir /tools && cd /tools \
  && git clone --recurse-submodules https://github.com/micropython/micropython.git \
  && cd ./micropython/ports/unix \
  && make axtls \
  && make
RUN ln -s /tools/micropython/ports/unix/micropython /usr/bin/micropython
`

// Plugin implements toolchain.Plugin and its optional capabilities.
type Plugin struct{}

// New returns the micro-python plugin.
func New() *Plugin {
	return &Plugin{}
}

func (p *Plugin) Name() string { return Name }

// Aliases lets `iotz micropython <file>` and `iotz upip <pkg>` reach the plugin.
func (p *Plugin) Aliases() []string {
	return []string{VerbMicropython, VerbUpip}
}

// DetectProject claims invocations that name micropython explicitly,
// either as the verb or as its argument.
func (p *Plugin) DetectProject(path, runArg, command string) bool {
	for _, s := range []string{command, runArg} {
		switch s {
		case Name, VerbMicropython, VerbUpip:
			return true
		}
	}
	return false
}

func (p *Plugin) CreateExtension() *toolchain.BuildResult {
	return &toolchain.BuildResult{Run: setupScript}
}

// Build maps the generic commands. Only compile runs anything.
func (p *Plugin) Build(cfg *project.Config, runArg, command, path string) (*toolchain.BuildResult, error) {
	switch command {
	case toolchain.CommandInit, toolchain.CommandContainerInit,
		toolchain.CommandClean, toolchain.CommandExport:
		return &toolchain.BuildResult{}, nil
	case toolchain.CommandCompile:
		return &toolchain.BuildResult{Run: strings.TrimSpace("micropython " + runArg)}, nil
	default:
		return nil, fmt.Errorf("micro-python: unknown command %q", command)
	}
}

// DirectCall handles `micropython <args>` and `upip <args>`. Packages
// installed by upip are committed to the project image.
func (p *Plugin) DirectCall(cfg *project.Config, runArg, command, path string) (*toolchain.BuildResult, error) {
	switch command {
	case VerbUpip:
		if runArg == "" {
			return nil, fmt.Errorf("upip: a package command is required, e.g. 'iotz upip install micropython-logging'")
		}
		return &toolchain.BuildResult{
			Run:           "micropython -m upip " + runArg,
			CommitChanges: true,
		}, nil
	case VerbMicropython, Name:
		return p.Build(cfg, runArg, toolchain.CommandCompile, path)
	default:
		return nil, fmt.Errorf("micro-python: unknown command %q", command)
	}
}

// CreateProject writes a hello-world script and iotz.json. The first word of
// runArg, if any, names the project and a sub folder of path.
func (p *Plugin) CreateProject(path, runArg string) error {
	projectName := "sampleApplication"
	target := path
	if fields := strings.Fields(runArg); len(fields) > 0 {
		projectName = fields[0]
		target = filepath.Join(path, projectName)
		if err := os.Mkdir(target, 0755); err != nil && !os.IsExist(err) {
			return fmt.Errorf("can't create folder %s: %w", projectName, err)
		}
	}

	script := filepath.Join(target, projectName+".py")
	if err := os.WriteFile(script, []byte("print('hello')\n"), 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(script), err)
	}

	return project.WriteConfig(target, &project.Config{Name: projectName, Toolchain: Name})
}
