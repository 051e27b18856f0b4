// Package buildscript assembles Dockerfiles from an ordered list of
// instruction records and serializes them only at the boundary.
package buildscript

import (
	"fmt"
	"os"
	"strings"
)

// Kind is a Dockerfile instruction keyword. KindRaw marks a verbatim
// fragment supplied by a toolchain plugin.
type Kind string

const (
	KindFrom    Kind = "FROM"
	KindWorkdir Kind = "WORKDIR"
	KindRun     Kind = "RUN"
	KindEnv     Kind = "ENV"
	KindRaw     Kind = ""
)

// Instruction is a single line (or fragment) of the script.
type Instruction struct {
	Kind Kind
	Args string
}

func (i Instruction) String() string {
	if i.Kind == KindRaw {
		return i.Args
	}
	return string(i.Kind) + " " + i.Args
}

// Script is an ordered build script.
type Script struct {
	instructions []Instruction
}

// New returns a script starting with FROM image.
func New(image string) *Script {
	s := &Script{}
	return s.add(KindFrom, image)
}

func (s *Script) add(kind Kind, args string) *Script {
	s.instructions = append(s.instructions, Instruction{Kind: kind, Args: args})
	return s
}

// Workdir appends a WORKDIR instruction.
func (s *Script) Workdir(dir string) *Script {
	return s.add(KindWorkdir, dir)
}

// Env appends an ENV instruction.
func (s *Script) Env(key, value string) *Script {
	return s.add(KindEnv, key+"="+value)
}

// Run appends one RUN instruction chaining the non-empty steps with &&.
// A call with no non-empty steps is a no-op.
func (s *Script) Run(steps ...string) *Script {
	parts := make([]string, 0, len(steps))
	for _, step := range steps {
		if step = strings.TrimSpace(step); step != "" {
			parts = append(parts, step)
		}
	}
	if len(parts) == 0 {
		return s
	}
	return s.add(KindRun, strings.Join(parts, " && "))
}

// Raw appends a fragment verbatim. Plugin extension snippets already carry
// their own instruction keywords.
func (s *Script) Raw(fragment string) *Script {
	if strings.TrimSpace(fragment) == "" {
		return s
	}
	return s.add(KindRaw, strings.Trim(fragment, "\n"))
}

// Instructions returns a copy of the recorded instructions.
func (s *Script) Instructions() []Instruction {
	out := make([]Instruction, len(s.instructions))
	copy(out, s.instructions)
	return out
}

// String renders the script as Dockerfile text.
func (s *Script) String() string {
	var b strings.Builder
	for _, inst := range s.instructions {
		b.WriteString(inst.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteFile writes the rendered script to path.
func (s *Script) WriteFile(path string) error {
	if err := os.WriteFile(path, []byte(s.String()), 0644); err != nil {
		return fmt.Errorf("write build script: %w", err)
	}
	return nil
}

// Quote wraps s in double quotes for use inside a RUN line.
func Quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
