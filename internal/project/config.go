// Package project reads the per-project iotz.json, infers a toolchain when
// the file is missing or incomplete, and derives the container identity of
// a project directory.
package project

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
)

// FileName is the project configuration file at the project root.
const FileName = "iotz.json"

// Config is the parsed iotz.json. Fields other than name and toolchain are
// kept in Extra, untouched, for toolchain plugins.
type Config struct {
	Name      string
	Toolchain string
	Extra     map[string]json.RawMessage
}

// HasToolchain reports whether a toolchain is set.
func (c *Config) HasToolchain() bool {
	return c != nil && c.Toolchain != ""
}

// UnmarshalJSON splits known fields from plugin-specific ones.
func (c *Config) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("config is not a JSON object")
	}

	if v, ok := raw["name"]; ok {
		if err := json.Unmarshal(v, &c.Name); err != nil {
			return fmt.Errorf("field name: %w", err)
		}
		delete(raw, "name")
	}
	if v, ok := raw["toolchain"]; ok {
		if err := json.Unmarshal(v, &c.Toolchain); err != nil {
			return fmt.Errorf("field toolchain: %w", err)
		}
		delete(raw, "toolchain")
	}
	if len(raw) > 0 {
		c.Extra = raw
	}
	return nil
}

// MarshalJSON writes known fields and Extra back as one object.
func (c Config) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Extra)+2)
	for k, v := range c.Extra {
		out[k] = v
	}
	if c.Name != "" {
		out["name"] = c.Name
	}
	if c.Toolchain != "" {
		out["toolchain"] = c.Toolchain
	}
	return json.Marshal(out)
}

// ExtraString returns a plugin-specific string field.
func (c *Config) ExtraString(key string) (string, bool) {
	if c == nil || c.Extra == nil {
		return "", false
	}
	v, ok := c.Extra[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}

// ExtraKeys returns the sorted plugin-specific field names.
func (c *Config) ExtraKeys() []string {
	keys := make([]string, 0, len(c.Extra))
	for k := range c.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Load parses dir/iotz.json. It returns (nil, nil) when the file does not
// exist and an error when it exists but cannot be read or parsed.
func Load(dir string) (*Config, error) {
	//nolint:gosec // the path is the user's own project directory
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", FileName, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", FileName, err)
	}
	return &cfg, nil
}

// Detector infers a toolchain for a directory and invocation.
type Detector interface {
	AutoDetect(path, runArg, command string) (string, bool)
}

// Resolver loads project configuration, falling back to toolchain detection.
type Resolver struct {
	Detector Detector
	Logger   *log.Logger
}

// NewResolver returns a Resolver. A nil logger discards diagnostics.
func NewResolver(detector Detector, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Resolver{Detector: detector, Logger: logger}
}

// Resolve returns the configuration for path, or nil when there is neither
// a readable iotz.json nor a detectable toolchain. A detected toolchain is
// merged into a loaded config only when the config has none. Resolve never
// writes to disk.
func (r *Resolver) Resolve(path, runArg, command string) *Config {
	cfg, err := Load(path)
	if err != nil {
		r.Logger.Printf("ignoring %s: %v", FileName, err)
		cfg = nil
	}

	if cfg != nil && cfg.HasToolchain() {
		return cfg
	}

	detected, ok := r.detect(path, runArg, command)
	if cfg == nil {
		if !ok {
			return nil
		}
		r.Logger.Printf("detected toolchain %q for %s", detected, path)
		return &Config{Toolchain: detected}
	}

	if ok {
		r.Logger.Printf("detected toolchain %q for %s (missing in %s)", detected, path, FileName)
		cfg.Toolchain = detected
	}
	return cfg
}

func (r *Resolver) detect(path, runArg, command string) (string, bool) {
	if r.Detector == nil {
		return "", false
	}
	return r.Detector.AutoDetect(path, runArg, command)
}
