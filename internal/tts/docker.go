package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (
	// DefaultDockerImage must provide espeak-ng and ffmpeg.
	DefaultDockerImage = "manolo-tts:latest"

	outputDir        = "/audio"
	runTimeout       = 60 * time.Second
	memoryLimitBytes = 128 * 1024 * 1024
	cpuQuota         = 50000
	pidsLimit        = 64
)

// espeakScript reads its inputs from the environment so text is never
// interpreted by the shell.
const espeakScript = `espeak-ng -v "$TTS_LANG" --stdout "$TTS_TEXT" | ffmpeg -loglevel error -y -f wav -i - "$TTS_OUT"`

type dockerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ImageInspect(ctx context.Context, imageID string, opts ...client.ImageInspectOption) (image.InspectResponse, error)
}

// Docker runs espeak-ng in a short-lived container per request. The output
// directory is bind mounted into the container.
type Docker struct {
	cli   dockerAPI
	image string
}

// NewDocker connects to the Docker daemon from the environment.
func NewDocker(img string) (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	slog.Info("Docker client initialized", "purpose", "tts")
	return newDocker(cli, img), nil
}

func newDocker(cli dockerAPI, img string) *Docker {
	if img == "" {
		img = DefaultDockerImage
	}
	return &Docker{cli: cli, image: img}
}

// Check verifies the speech image is available locally.
func (d *Docker) Check(ctx context.Context) error {
	if _, err := d.cli.ImageInspect(ctx, d.image); err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("tts image %s not found: %w", d.image, err)
		}
		return fmt.Errorf("inspect tts image %s: %w", d.image, err)
	}
	return nil
}

// Synthesize renders text into dst, which must be an absolute host path.
func (d *Docker) Synthesize(ctx context.Context, text, lang, dst string) error {
	if text == "" {
		return errors.New("tts: empty text")
	}
	dir, name := filepath.Split(dst)
	if !filepath.IsAbs(dir) {
		return fmt.Errorf("tts: output path %q must be absolute", dst)
	}

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	config := &container.Config{
		Image: d.image,
		Cmd:   []string{"sh", "-c", espeakScript},
		Env: []string{
			"TTS_LANG=" + lang,
			"TTS_TEXT=" + text,
			"TTS_OUT=" + outputDir + "/" + name,
		},
	}
	hostConfig := &container.HostConfig{
		NetworkMode: "none",
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: filepath.Clean(dir),
			Target: outputDir,
		}},
		Resources: container.Resources{
			Memory:    memoryLimitBytes,
			CPUQuota:  cpuQuota,
			PidsLimit: ptr(int64(pidsLimit)),
		},
	}

	resp, err := d.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, "")
	if err != nil {
		return fmt.Errorf("create tts container: %w", err)
	}
	defer d.remove(resp.ID)

	waitCh, errCh := d.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNextExit)
	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("start tts container %s: %w", resp.ID, err)
	}

	select {
	case res := <-waitCh:
		if res.Error != nil {
			return fmt.Errorf("tts container %s: %s", resp.ID, res.Error.Message)
		}
		if res.StatusCode != 0 {
			return fmt.Errorf("tts container %s exited with code %d", resp.ID, res.StatusCode)
		}
	case err := <-errCh:
		return fmt.Errorf("wait tts container %s: %w", resp.ID, err)
	}
	slog.Debug("Speech synthesized", "backend", BackendDocker, "container_id", resp.ID, "path", dst)
	return nil
}

func (d *Docker) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil && !errdefs.IsNotFound(err) {
		slog.Warn("Failed to remove tts container", "container_id", id, "error", err)
	}
}

func ptr[T any](v T) *T {
	return &v
}
