// Package settings loads the global iotz configuration: image naming,
// the base image recipe, container mount layout and history/watch options.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable that overrides the settings file location.
const EnvPath = "IOTZ_CONFIG"

// Defaults used when a field is absent from the settings file.
const (
	DefaultBaseImage      = "azureiot/iotz_local"
	DefaultBaseFrom       = "ubuntu:18.04"
	DefaultImagePrefix    = "aiot_iotz_"
	DefaultInstanceSuffix = "_"
	DefaultMountPoint     = "/src/program"
	DefaultShell          = "/bin/bash"
	DefaultBuildScript    = "Dockerfile.iotz"
	DefaultWatchDebounce  = 500 * time.Millisecond
)

// WatchConfig controls `iotz watch`.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce,omitempty"`
	Ignore   []string      `yaml:"ignore,omitempty"` // directory or file base names skipped by the watcher
}

// Settings is the top-level tool configuration.
type Settings struct {
	BaseImage      string      `yaml:"base_image"`
	BaseFrom       string      `yaml:"base_from"`
	BasePackages   []string    `yaml:"base_packages,omitempty"`
	ImagePrefix    string      `yaml:"image_prefix"`
	InstanceSuffix string      `yaml:"instance_suffix"`
	MountPoint     string      `yaml:"mount_point"`
	Shell          string      `yaml:"shell"`
	BuildScript    string      `yaml:"build_script"`
	HistoryPath    *string     `yaml:"history_path,omitempty"` // nil means default; "" disables history
	Watch          WatchConfig `yaml:"watch,omitempty"`
}

// DefaultPath returns the conventional settings file: ~/.iotz/config.yaml,
// or the value of IOTZ_CONFIG when set.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".iotz", "config.yaml"), nil
}

// Load reads settings from a YAML file. A missing file is not an error and
// yields Default(); a malformed file is.
func Load(path string) (*Settings, error) {
	s := &Settings{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse settings file: %w", err)
	}

	s.applyDefaults()
	return s, nil
}

// Default returns the settings used when no file is present.
func Default() *Settings {
	s := &Settings{}
	s.applyDefaults()
	return s
}

func (s *Settings) applyDefaults() {
	if s.BaseImage == "" {
		s.BaseImage = DefaultBaseImage
	}
	if s.BaseFrom == "" {
		s.BaseFrom = DefaultBaseFrom
	}
	if len(s.BasePackages) == 0 {
		s.BasePackages = []string{"build-essential", "git", "make", "python3", "curl"}
	}
	if s.ImagePrefix == "" {
		s.ImagePrefix = DefaultImagePrefix
	}
	if s.InstanceSuffix == "" {
		s.InstanceSuffix = DefaultInstanceSuffix
	}
	if s.MountPoint == "" {
		s.MountPoint = DefaultMountPoint
	}
	if s.Shell == "" {
		s.Shell = DefaultShell
	}
	if s.BuildScript == "" {
		s.BuildScript = DefaultBuildScript
	}
	if s.Watch.Debounce == 0 {
		s.Watch.Debounce = DefaultWatchDebounce
	}
	if len(s.Watch.Ignore) == 0 {
		s.Watch.Ignore = []string{".git", "node_modules"}
	}
}

// History returns the history log path with ~ expanded. An empty string
// means history recording is disabled.
func (s *Settings) History() (string, error) {
	if s.HistoryPath == nil {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, ".iotz", "history.log"), nil
	}

	p := *s.HistoryPath
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
	}
	return p, nil
}
