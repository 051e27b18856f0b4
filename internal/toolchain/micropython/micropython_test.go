package micropython

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iotz/internal/project"
	"iotz/internal/toolchain"
)

var (
	_ toolchain.Plugin       = (*Plugin)(nil)
	_ toolchain.DirectCaller = (*Plugin)(nil)
	_ toolchain.Extender     = (*Plugin)(nil)
	_ toolchain.Detector     = (*Plugin)(nil)
	_ toolchain.Scaffolder   = (*Plugin)(nil)
	_ toolchain.Aliaser      = (*Plugin)(nil)
)

func TestBuild(t *testing.T) {
	p := New()
	cfg := &project.Config{Name: "app", Toolchain: Name}

	tests := []struct {
		command string
		arg     string
		want    string
		wantErr bool
	}{
		{command: toolchain.CommandCompile, arg: "main.py", want: "micropython main.py"},
		{command: toolchain.CommandCompile, want: "micropython"},
		{command: toolchain.CommandInit},
		{command: toolchain.CommandContainerInit},
		{command: toolchain.CommandClean},
		{command: toolchain.CommandExport},
		{command: "flash", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.arg, func(t *testing.T) {
			res, err := p.Build(cfg, tt.arg, tt.command, "/src")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Run)
			assert.Nil(t, res.Callback)
			assert.False(t, res.CommitChanges)
		})
	}
}

func TestDirectCall(t *testing.T) {
	p := New()

	res, err := p.DirectCall(nil, "install micropython-logging", VerbUpip, "/src")
	require.NoError(t, err)
	assert.Equal(t, "micropython -m upip install micropython-logging", res.Run)
	assert.True(t, res.CommitChanges)

	res, err = p.DirectCall(nil, "main.py", VerbMicropython, "/src")
	require.NoError(t, err)
	assert.Equal(t, "micropython main.py", res.Run)
	assert.False(t, res.CommitChanges)

	_, err = p.DirectCall(nil, "", VerbUpip, "/src")
	assert.Error(t, err)

	_, err = p.DirectCall(nil, "", "arduino", "/src")
	assert.Error(t, err)
}

func TestDetectProject(t *testing.T) {
	p := New()
	assert.True(t, p.DetectProject("/src", "", "micropython"))
	assert.True(t, p.DetectProject("/src", "micro-python", "init"))
	assert.True(t, p.DetectProject("/src", "", "upip"))
	assert.False(t, p.DetectProject("/src", "main.py", "compile"))
}

func TestCreateExtension(t *testing.T) {
	ext := New().CreateExtension()
	require.NotNil(t, ext)
	assert.Contains(t, ext.Run, "RUN apt-get update")
	assert.Contains(t, ext.Run, "make axtls")
	assert.Contains(t, ext.Run, "/usr/bin/micropython")
}

func TestCreateProjectNamed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, New().CreateProject(dir, "blinky"))

	script, err := os.ReadFile(filepath.Join(dir, "blinky", "blinky.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('hello')", strings.TrimSpace(string(script)))

	cfg, err := project.Load(filepath.Join(dir, "blinky"))
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "blinky", cfg.Name)
	assert.Equal(t, Name, cfg.Toolchain)
}

func TestCreateProjectDefaultName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, New().CreateProject(dir, ""))

	_, err := os.Stat(filepath.Join(dir, "sampleApplication.py"))
	require.NoError(t, err)

	cfg, err := project.Load(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "sampleApplication", cfg.Name)
}

func TestCreateProjectExistingFolder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "app"), 0755))
	assert.NoError(t, New().CreateProject(dir, "app"))
}
