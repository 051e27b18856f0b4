package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"golang.org/x/term"
)

// DockerEngine implements Engine on top of the Docker Engine API.
type DockerEngine struct {
	client client.APIClient
	logger *log.Logger
}

// NewDockerEngine wraps an existing API client. A nil logger discards diagnostics.
func NewDockerEngine(cli client.APIClient, logger *log.Logger) *DockerEngine {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &DockerEngine{client: cli, logger: logger}
}

// NewDockerEngineFromEnv connects using DOCKER_HOST and friends.
func NewDockerEngineFromEnv(logger *log.Logger) (*DockerEngine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return NewDockerEngine(cli, logger), nil
}

// Close releases the underlying client.
func (d *DockerEngine) Close() error {
	return d.client.Close()
}

func (d *DockerEngine) Ping(ctx context.Context) error {
	if _, err := d.client.Ping(ctx); err != nil {
		return fmt.Errorf("docker daemon not reachable: %w", err)
	}
	return nil
}

func (d *DockerEngine) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, err := d.client.ImageInspect(ctx, ref)
	if err == nil {
		return true, nil
	}
	if cerrdefs.IsNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("inspect image %s: %w", ref, err)
}

// BuildImage sends ContextDir as a tar stream and renders the daemon's
// progress messages to spec.Output. A failing build step yields its exit
// code, not an error.
func (d *DockerEngine) BuildImage(ctx context.Context, spec BuildSpec) (int, error) {
	d.logger.Printf("building %s from %s/%s", spec.Tag, spec.ContextDir, spec.Dockerfile)

	buildCtx := tarContext(spec.ContextDir)
	defer buildCtx.Close()

	resp, err := d.client.ImageBuild(ctx, buildCtx, build.ImageBuildOptions{
		Tags:        []string{spec.Tag},
		Dockerfile:  spec.Dockerfile,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return 0, fmt.Errorf("build image %s: %w", spec.Tag, err)
	}
	defer resp.Body.Close()

	out := spec.Output
	if out == nil {
		out = io.Discard
	}
	fd, isTerm := terminalFd(out)

	err = jsonmessage.DisplayJSONMessagesStream(resp.Body, out, fd, isTerm, nil)
	if err == nil {
		return 0, nil
	}

	var jerr *jsonmessage.JSONError
	if errors.As(err, &jerr) {
		fmt.Fprintln(out, jerr.Message)
		if jerr.Code != 0 {
			return jerr.Code, nil
		}
		return 1, nil
	}
	return 0, fmt.Errorf("read build output: %w", err)
}

func (d *DockerEngine) RemoveImage(ctx context.Context, ref string) error {
	_, err := d.client.ImageRemove(ctx, ref, image.RemoveOptions{Force: true, PruneChildren: true})
	if err != nil && !cerrdefs.IsNotFound(err) {
		return fmt.Errorf("remove image %s: %w", ref, err)
	}
	return nil
}

// Run creates, attaches to and starts a container, then waits for it to
// exit. If ctx is cancelled first the container is killed and removed.
func (d *DockerEngine) Run(ctx context.Context, spec RunSpec) (int, error) {
	d.logger.Printf("run %s (%s): %v", spec.Name, spec.Image, spec.Cmd)

	cfg := &container.Config{
		Image:        spec.Image,
		Cmd:          spec.Cmd,
		WorkingDir:   spec.WorkingDir,
		Env:          spec.Env,
		Tty:          spec.Tty,
		AttachStdout: true,
		AttachStderr: true,
		AttachStdin:  spec.Interactive,
		OpenStdin:    spec.Interactive,
		StdinOnce:    spec.Interactive,
	}
	hostCfg := &container.HostConfig{Binds: spec.Binds}

	created, err := d.client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return 0, fmt.Errorf("create container %s: %w", spec.Name, err)
	}
	id := created.ID

	if !spec.Keep {
		defer func() {
			if err := d.client.ContainerRemove(context.Background(), id, container.RemoveOptions{Force: true}); err != nil && !cerrdefs.IsNotFound(err) {
				d.logger.Printf("remove container %s: %v", spec.Name, err)
			}
		}()
	}

	attach, err := d.client.ContainerAttach(ctx, id, container.AttachOptions{
		Stream: true,
		Stdin:  spec.Interactive,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return 0, fmt.Errorf("attach container %s: %w", spec.Name, err)
	}
	defer attach.Close()

	if err := d.client.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return 0, fmt.Errorf("start container %s: %w", spec.Name, err)
	}

	if spec.Tty && spec.Width > 0 && spec.Height > 0 {
		if err := d.client.ContainerResize(ctx, id, container.ResizeOptions{Width: spec.Width, Height: spec.Height}); err != nil {
			d.logger.Printf("resize %s: %v", spec.Name, err)
		}
	}

	stdout, stderr := orDiscard(spec.Stdout), orDiscard(spec.Stderr)
	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		var err error
		if spec.Tty {
			_, err = io.Copy(stdout, attach.Reader)
		} else {
			_, err = stdcopy.StdCopy(stdout, stderr, attach.Reader)
		}
		if err != nil {
			d.logger.Printf("stream %s: %v", spec.Name, err)
		}
	}()

	if spec.Interactive && spec.Stdin != nil {
		go func() {
			io.Copy(attach.Conn, spec.Stdin)
			attach.CloseWrite()
		}()
	}

	statusCh, errCh := d.client.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			if ctx.Err() != nil {
				d.stop(id)
				return 0, ctx.Err()
			}
			return 0, fmt.Errorf("wait container %s: %w", spec.Name, err)
		}
		return 0, nil
	case status := <-statusCh:
		<-streamDone
		if status.Error != nil && status.Error.Message != "" {
			return 0, fmt.Errorf("container %s: %s", spec.Name, status.Error.Message)
		}
		return int(status.StatusCode), nil
	case <-ctx.Done():
		d.stop(id)
		return 0, ctx.Err()
	}
}

// stop kills a container outside the (already cancelled) request context.
func (d *DockerEngine) stop(id string) {
	if err := d.client.ContainerKill(context.Background(), id, "SIGKILL"); err != nil && !cerrdefs.IsNotFound(err) {
		d.logger.Printf("kill %s: %v", id, err)
	}
}

func (d *DockerEngine) Commit(ctx context.Context, name, ref string) error {
	if _, err := d.client.ContainerCommit(ctx, name, container.CommitOptions{Reference: ref}); err != nil {
		return fmt.Errorf("commit %s to %s: %w", name, ref, err)
	}
	return nil
}

func (d *DockerEngine) KillContainer(ctx context.Context, name string) error {
	if err := d.client.ContainerKill(ctx, name, "SIGKILL"); err != nil && !cerrdefs.IsNotFound(err) {
		return fmt.Errorf("kill container %s: %w", name, err)
	}
	return nil
}

func (d *DockerEngine) RemoveContainer(ctx context.Context, name string) error {
	if err := d.client.ContainerRemove(ctx, name, container.RemoveOptions{Force: true}); err != nil && !cerrdefs.IsNotFound(err) {
		return fmt.Errorf("remove container %s: %w", name, err)
	}
	return nil
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// terminalFd reports the descriptor of w when it is a terminal.
func terminalFd(w io.Writer) (uintptr, bool) {
	f, ok := w.(*os.File)
	if !ok {
		return 0, false
	}
	return f.Fd(), term.IsTerminal(int(f.Fd()))
}

var _ Engine = (*DockerEngine)(nil)

