package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

// APIClient defines the subset of Docker API methods the sandbox uses.
// This allows for mocking in tests.
type APIClient interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Close() error
}

// DockerSandbox runs the test runner inside a throwaway container with the
// per-run working directory bind-mounted at /workspace.
type DockerSandbox struct {
	api   APIClient
	image string
}

// NewDockerSandbox creates a sandbox backed by the local Docker daemon.
func NewDockerSandbox(image string) (*DockerSandbox, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerSandbox{api: cli, image: image}, nil
}

// NewDockerSandboxWithAPI injects an APIClient, for tests.
func NewDockerSandboxWithAPI(api APIClient, image string) *DockerSandbox {
	return &DockerSandbox{api: api, image: image}
}

func (s *DockerSandbox) Close() error {
	return s.api.Close()
}

func (s *DockerSandbox) Run(ctx context.Context, spec RunSpec) (*RunResult, error) {
	command, err := expandCommand(spec.Command, spec.ScriptPath)
	if err != nil {
		return nil, err
	}

	cfg := &container.Config{
		Image:      s.image,
		Cmd:        command,
		WorkingDir: "/workspace",
		Env:        spec.Env,
	}
	hostCfg := &container.HostConfig{
		Binds: []string{fmt.Sprintf("%s:/workspace", spec.WorkDir)},
	}

	created, err := s.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	containerID := created.ID
	defer func() {
		_ = s.api.ContainerRemove(context.Background(), containerID, container.RemoveOptions{Force: true})
	}()

	if err := s.api.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	waitCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	started := time.Now()
	result := &RunResult{}

	statusCh, errCh := s.api.ContainerWait(waitCtx, containerID, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		result.ExitCode = int(status.StatusCode)
	case err := <-errCh:
		if waitCtx.Err() == context.DeadlineExceeded {
			result.TimedOut = true
			result.ExitCode = -1
			// Force-terminate the runner; logs are still collected below.
			stopTimeout := 5
			_ = s.api.ContainerStop(context.Background(), containerID, container.StopOptions{Timeout: &stopTimeout})
		} else {
			return nil, fmt.Errorf("failed waiting for container: %w", err)
		}
	}
	result.Duration = time.Since(started)

	stdout, stderr, err := s.collectLogs(containerID)
	if err == nil {
		result.Stdout = stdout
		result.Stderr = stderr
	}
	return result, nil
}

// collectLogs demultiplexes the container's combined log stream.
func (s *DockerSandbox) collectLogs(containerID string) (string, string, error) {
	logsCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rc, err := s.api.ContainerLogs(logsCtx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to read container logs: %w", err)
	}
	defer rc.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, rc); err != nil {
		return "", "", fmt.Errorf("failed to demux container logs: %w", err)
	}
	return stdout.String(), stderr.String(), nil
}
