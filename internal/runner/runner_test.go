package runner

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iotz/internal/engine"
	"iotz/internal/project"
	"iotz/internal/settings"
)

func newTestRunner(eng engine.Engine) *Runner {
	return New(Config{
		Engine:   eng,
		Settings: settings.Default(),
		Stdin:    strings.NewReader(""),
		Stdout:   &bytes.Buffer{},
		Stderr:   &bytes.Buffer{},
		Environ:  []string{"TERM=xterm", "HOME=/root", "AWS_SECRET_ACCESS_KEY=x", "TZ=UTC"},
	})
}

func TestForwardEnvironment(t *testing.T) {
	got := ForwardEnvironment([]string{
		"PATH=/usr/bin",
		"TERM=xterm-256color",
		"LANG=en_US.UTF-8",
		"DOCKER_HOST=unix:///var/run/docker.sock",
		"LC_ALL=C",
		"TZ=Europe/Berlin",
		"GARBAGE",
	})
	assert.Equal(t, []string{"TERM=xterm-256color", "LANG=en_US.UTF-8", "LC_ALL=C", "TZ=Europe/Berlin"}, got)
}

func TestInstance(t *testing.T) {
	var inst Instance
	assert.Empty(t, inst.Name())
	inst.Set("aiot_iotz_1_")
	assert.Equal(t, "aiot_iotz_1_", inst.Name())
	inst.Clear()
	assert.Empty(t, inst.Name())
}

func TestRunLaunchesProjectContainer(t *testing.T) {
	dir := t.TempDir()
	eng := engine.NewMockEngine()
	var inst Instance
	var activeDuringRun string
	eng.RunFn = func(ctx context.Context, spec engine.RunSpec) (int, error) {
		activeDuringRun = inst.Name()
		return 0, nil
	}
	r := newTestRunner(eng)

	code, err := r.Run(context.Background(), &inst, dir, "make all", Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	id, err := project.IdentityFor(dir, settings.DefaultImagePrefix, settings.DefaultInstanceSuffix)
	require.NoError(t, err)
	abs, _ := filepath.Abs(dir)

	assert.Equal(t, []string{"RemoveContainer", "Run"}, eng.Methods())
	assert.Equal(t, id.Instance, eng.CallsTo("RemoveContainer")[0].Ref)

	spec := eng.CallsTo("Run")[0].Run
	assert.Equal(t, id.Image, spec.Image)
	assert.Equal(t, id.Instance, spec.Name)
	assert.Equal(t, []string{"/bin/bash", "-c", "make all"}, spec.Cmd)
	assert.Equal(t, []string{abs + ":/src/program:rw,cached"}, spec.Binds)
	assert.Equal(t, "/src/program", spec.WorkingDir)
	assert.Equal(t, []string{"TERM=xterm", "TZ=UTC"}, spec.Env)
	assert.False(t, spec.Keep)
	assert.False(t, spec.Interactive)

	assert.Equal(t, id.Instance, activeDuringRun)
	assert.Empty(t, inst.Name())
}

func TestRunPropagatesExitCode(t *testing.T) {
	eng := engine.NewMockEngine()
	eng.RunFn = func(ctx context.Context, spec engine.RunSpec) (int, error) { return 42, nil }

	code, err := newTestRunner(eng).Run(context.Background(), &Instance{}, t.TempDir(), "false", Options{})
	require.NoError(t, err)
	assert.Equal(t, 42, code)
}

func TestRunCommit(t *testing.T) {
	dir := t.TempDir()
	eng := engine.NewMockEngine()
	r := newTestRunner(eng)

	_, err := r.Run(context.Background(), &Instance{}, dir, "micropython -m upip install x", Options{Commit: true})
	require.NoError(t, err)

	id, _ := project.IdentityFor(dir, settings.DefaultImagePrefix, settings.DefaultInstanceSuffix)
	assert.Equal(t, []string{"RemoveContainer", "Run", "Commit", "RemoveContainer"}, eng.Methods())
	assert.True(t, eng.CallsTo("Run")[0].Run.Keep)
	assert.Equal(t, id.Instance+"->"+id.Image, eng.CallsTo("Commit")[0].Ref)
}

func TestRunCommitSkippedOnFailure(t *testing.T) {
	eng := engine.NewMockEngine()
	eng.RunFn = func(ctx context.Context, spec engine.RunSpec) (int, error) { return 1, nil }

	code, err := newTestRunner(eng).Run(context.Background(), &Instance{}, t.TempDir(), "x", Options{Commit: true})
	require.NoError(t, err)
	assert.Equal(t, 1, code)
	assert.Empty(t, eng.CallsTo("Commit"))
	assert.Len(t, eng.CallsTo("RemoveContainer"), 2)
}

func TestRunInterrupted(t *testing.T) {
	dir := t.TempDir()
	eng := engine.NewMockEngine()
	ctx, cancel := context.WithCancel(context.Background())
	eng.RunFn = func(ctx context.Context, spec engine.RunSpec) (int, error) {
		cancel()
		return 0, ctx.Err()
	}
	var inst Instance

	_, err := newTestRunner(eng).Run(ctx, &inst, dir, "sleep 100", Options{})
	assert.ErrorIs(t, err, context.Canceled)

	id, _ := project.IdentityFor(dir, settings.DefaultImagePrefix, settings.DefaultInstanceSuffix)
	require.Len(t, eng.CallsTo("KillContainer"), 1)
	assert.Equal(t, id.Instance, eng.CallsTo("KillContainer")[0].Ref)
	assert.Equal(t, []string{"RemoveContainer", "Run", "KillContainer", "RemoveContainer"}, eng.Methods())
	assert.Empty(t, inst.Name())
}

func TestInterruptWithoutActiveContainer(t *testing.T) {
	eng := engine.NewMockEngine()
	newTestRunner(eng).Interrupt(&Instance{})
	assert.Empty(t, eng.Calls)
}

func TestConnectIsInteractive(t *testing.T) {
	eng := engine.NewMockEngine()

	_, err := newTestRunner(eng).Connect(context.Background(), &Instance{}, t.TempDir())
	require.NoError(t, err)

	spec := eng.CallsTo("Run")[0].Run
	assert.True(t, spec.Interactive)
	assert.False(t, spec.Tty, "a non-terminal stdin gets no TTY")
	assert.Equal(t, []string{"/bin/bash"}, spec.Cmd)
}
