package engine_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/docker/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iotz/internal/engine"
)

// skipIfNoDocker skips the test if Docker is not available.
func skipIfNoDocker(t *testing.T) client.APIClient {
	t.Helper()
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		t.Skipf("skipping docker test: %v", err)
	}
	if _, err := cli.Ping(context.Background()); err != nil {
		t.Skipf("skipping docker test: docker not reachable: %v", err)
	}
	return cli
}

func TestDockerEngine_ImplementsInterface(t *testing.T) {
	var _ engine.Engine = (*engine.DockerEngine)(nil)
}

func TestDockerEngine_BuildRunRemove(t *testing.T) {
	cli := skipIfNoDocker(t)
	eng := engine.NewDockerEngine(cli, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	dir := t.TempDir()
	script := "FROM alpine:latest\nWORKDIR /src/program\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile.iotz"), []byte(script), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello from host\n"), 0644))

	tag := "iotz_engine_test:latest"
	code, err := eng.BuildImage(ctx, engine.BuildSpec{ContextDir: dir, Dockerfile: "Dockerfile.iotz", Tag: tag})
	require.NoError(t, err)
	require.Equal(t, 0, code)
	t.Cleanup(func() { _ = eng.RemoveImage(context.Background(), tag) })

	exists, err := eng.ImageExists(ctx, tag)
	require.NoError(t, err)
	assert.True(t, exists)

	var stdout bytes.Buffer
	code, err = eng.Run(ctx, engine.RunSpec{
		Image:  tag,
		Name:   "iotz_engine_test_run",
		Cmd:    []string{"/bin/sh", "-c", "cat hello.txt; exit 3"},
		Binds:  []string{dir + ":/src/program:rw"},
		Stdout: &stdout,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Contains(t, stdout.String(), "hello from host")

	require.NoError(t, eng.RemoveContainer(ctx, "iotz_engine_test_run"))
	require.NoError(t, eng.RemoveImage(ctx, tag))
	exists, err = eng.ImageExists(ctx, tag)
	require.NoError(t, err)
	assert.False(t, exists)
}
