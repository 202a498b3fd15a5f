package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/rs/zerolog/log"

	"github.com/asadpanda/insteon-mqtt/pkg/invocation"
)

// KillTimeout bounds the cleanup calls made after the run context is gone.
var KillTimeout = 30 * time.Second

// DockerAPI is the part of the Docker Engine client the API engine uses.
type DockerAPI interface {
	ImageInspectWithRaw(ctx context.Context, image string) (types.ImageInspect, []byte, error)
	ImagePull(ctx context.Context, ref string, options types.ImagePullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerAttach(ctx context.Context, container string, options types.ContainerAttachOptions) (types.HijackedResponse, error)
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerStart(ctx context.Context, containerID string, options types.ContainerStartOptions) error
	ContainerKill(ctx context.Context, containerID, signal string) error
	ContainerRemove(ctx context.Context, containerID string, options types.ContainerRemoveOptions) error
	Close() error
}

// API runs the builder through the Docker Engine API.
type API struct {
	cli    DockerAPI
	stdout io.Writer
	stderr io.Writer
}

// NewAPI connects to the daemon at host, e.g. "unix:///var/run/docker.sock".
func NewAPI(host string) (*API, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithHost(host), client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return NewAPIWithClient(cli), nil
}

func NewAPIWithClient(cli DockerAPI) *API {
	return &API{cli: cli, stdout: os.Stdout, stderr: os.Stderr}
}

func (a *API) SetOutput(stdout, stderr io.Writer) *API {
	a.stdout = stdout
	a.stderr = stderr
	return a
}

func (a *API) Run(ctx context.Context, inv *invocation.Invocation) (int, error) {
	if err := a.ensureImage(ctx, inv.Image); err != nil {
		return 1, err
	}

	resp, err := a.cli.ContainerCreate(ctx,
		&container.Config{
			Image:        inv.Image,
			Cmd:          inv.BuilderArgs(),
			AttachStdout: true,
			AttachStderr: true,
		},
		&container.HostConfig{
			Binds:      inv.Binds(),
			Privileged: inv.Privileged,
			AutoRemove: inv.Remove,
		}, nil, nil, "")
	if err != nil {
		return 1, fmt.Errorf("failed to create container: %w", err)
	}
	id := resp.ID
	for _, w := range resp.Warnings {
		log.Warn().Str("container", shortID(id)).Msg(w)
	}
	log.Info().Str("image", inv.Image).Str("container", shortID(id)).Msg("Running")

	hijacked, err := a.cli.ContainerAttach(ctx, id, types.ContainerAttachOptions{
		Stream: true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		a.remove(id)
		return 1, fmt.Errorf("failed to attach to container: %w", err)
	}
	defer hijacked.Close()

	// subscribe before start, AutoRemove may delete the container right after it exits
	statusCh, errCh := a.cli.ContainerWait(ctx, id, container.WaitConditionNextExit)

	if err := a.cli.ContainerStart(ctx, id, types.ContainerStartOptions{}); err != nil {
		a.remove(id)
		return 1, fmt.Errorf("failed to start container: %w", err)
	}

	copied := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(a.stdout, a.stderr, hijacked.Reader)
		copied <- err
	}()

	select {
	case status := <-statusCh:
		if err := <-copied; err != nil {
			log.Warn().Err(err).Msg("Output stream ended with error")
		}
		if status.Error != nil && status.Error.Message != "" {
			return int(status.StatusCode), fmt.Errorf("waiting for container: %s", status.Error.Message)
		}
		log.Debug().Int64("code", status.StatusCode).Str("engine", "api").Msg("Builder exited")
		return int(status.StatusCode), nil
	case err := <-errCh:
		if ctx.Err() != nil {
			log.Warn().Str("container", shortID(id)).Msg("Interrupted, stopping builder")
			a.kill(id)
		}
		return 1, fmt.Errorf("waiting for container: %w", err)
	}
}

func (a *API) Close() error {
	return a.cli.Close()
}

func (a *API) ensureImage(ctx context.Context, image string) error {
	_, _, err := a.cli.ImageInspectWithRaw(ctx, image)
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to inspect image: %w", err)
	}

	log.Info().Str("image", image).Msg("Pulling")
	reader, err := a.cli.ImagePull(ctx, image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	if err := jsonmessage.DisplayJSONMessagesStream(reader, a.stderr, 0, false, nil); err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	return nil
}

func (a *API) kill(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), KillTimeout)
	defer cancel()
	if err := a.cli.ContainerKill(ctx, id, "SIGKILL"); err != nil {
		log.Warn().Err(err).Str("container", shortID(id)).Msg("Container kill returned an error")
	}
}

func (a *API) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), KillTimeout)
	defer cancel()
	if err := a.cli.ContainerRemove(ctx, id, types.ContainerRemoveOptions{Force: true}); err != nil && !errdefs.IsNotFound(err) {
		log.Warn().Err(err).Str("container", shortID(id)).Msg("Problem removing the container")
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
