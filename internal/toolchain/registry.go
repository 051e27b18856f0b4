package toolchain

import (
	"fmt"
	"strings"
)

// Lookup is the result of resolving a toolchain identifier.
type Lookup struct {
	Plugin Plugin
	Found  bool
}

// Registry maps toolchain names and aliases to plugins. Registration order
// is significant: AutoDetect asks detectors in that order and the first
// match wins.
type Registry struct {
	plugins []Plugin
	byName  map[string]Plugin // canonical name and aliases
}

// NewRegistry registers plugins in the given order.
// It panics on an invalid or duplicate name; the set is fixed at build time.
func NewRegistry(plugins ...Plugin) *Registry {
	r := &Registry{byName: make(map[string]Plugin)}
	for _, p := range plugins {
		if err := r.register(p); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) register(p Plugin) error {
	names := []string{p.Name()}
	if a, ok := p.(Aliaser); ok {
		names = append(names, a.Aliases()...)
	}

	for _, name := range names {
		if err := validateName(name); err != nil {
			return fmt.Errorf("toolchain %q: %w", p.Name(), err)
		}
		if owner, exists := r.byName[name]; exists {
			return fmt.Errorf("toolchain name %q already registered by %q", name, owner.Name())
		}
	}
	for _, name := range names {
		r.byName[name] = p
	}
	r.plugins = append(r.plugins, p)
	return nil
}

// validateName rejects names that cannot be typed as a CLI verb.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if strings.ContainsAny(name, " /\x00") {
		return fmt.Errorf("name cannot contain spaces, / or null bytes")
	}
	return nil
}

// Canonical resolves a name or alias to the plugin's canonical name.
// For unknown names, strict mode returns "" and lenient mode returns the
// input unchanged; the bool reports whether the name is registered.
func (r *Registry) Canonical(name string, strict bool) (string, bool) {
	if p, ok := r.byName[name]; ok {
		return p.Name(), true
	}
	if strict {
		return "", false
	}
	return name, false
}

// Lookup resolves a name or alias to its plugin.
func (r *Registry) Lookup(name string) Lookup {
	p, ok := r.byName[name]
	return Lookup{Plugin: p, Found: ok}
}

// Require is Lookup for callers that treat a missing plugin as fatal.
func (r *Registry) Require(name string) (Plugin, error) {
	l := r.Lookup(name)
	if !l.Found {
		return nil, fmt.Errorf("%w %q", ErrUnknownToolchain, name)
	}
	return l.Plugin, nil
}

// IsToolchain reports whether name is a registered toolchain name or alias.
func (r *Registry) IsToolchain(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// AutoDetect returns the canonical name of the first registered plugin
// whose detector claims path.
func (r *Registry) AutoDetect(path, runArg, command string) (string, bool) {
	for _, p := range r.plugins {
		d, ok := p.(Detector)
		if !ok {
			continue
		}
		if d.DetectProject(path, runArg, command) {
			return p.Name(), true
		}
	}
	return "", false
}

// Plugins returns the plugins in registration order.
func (r *Registry) Plugins() []Plugin {
	out := make([]Plugin, len(r.plugins))
	copy(out, r.plugins)
	return out
}

// Extensions returns the base image contributions in registration order.
func (r *Registry) Extensions() []*BuildResult {
	var out []*BuildResult
	for _, p := range r.plugins {
		e, ok := p.(Extender)
		if !ok {
			continue
		}
		if ext := e.CreateExtension(); ext != nil {
			out = append(out, ext)
		}
	}
	return out
}
