package docker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// Client wraps the Docker SDK client.
type Client struct {
	inner *client.Client
}

// Container is the subset of container state the supervisor reports.
type Container struct {
	ID        string            `json:"id"`
	Name      string            `json:"nome"`
	Image     string            `json:"imagem"`
	State     string            `json:"estado"`
	Status    string            `json:"status"`
	StartedAt string            `json:"iniciadoEm,omitempty"`
	Labels    map[string]string `json:"-"`
}

// New creates a new Docker client using environment defaults.
func New(host string) (*Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	inner, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Client{inner: inner}, nil
}

// Ping validates connectivity to the Docker daemon.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.inner == nil {
		return fmt.Errorf("docker client not initialized")
	}
	var ping types.Ping
	ping, err := c.inner.Ping(ctx)
	if err != nil {
		return fmt.Errorf("docker ping: %w", err)
	}
	if ping.APIVersion == "" {
		return fmt.Errorf("docker ping returned empty API version")
	}
	return nil
}

// FindByLabel returns the first container, running or not, carrying
// label=value.
func (c *Client) FindByLabel(ctx context.Context, label, value string) (Container, error) {
	if c == nil || c.inner == nil {
		return Container{}, fmt.Errorf("docker client not initialized")
	}
	list, err := c.inner.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", label+"="+value)),
	})
	if err != nil {
		return Container{}, fmt.Errorf("docker list containers: %w", err)
	}
	if len(list) == 0 {
		return Container{}, fmt.Errorf("%w: container with %s=%s", ErrNotFound, label, value)
	}
	summary := list[0]
	name := ""
	if len(summary.Names) > 0 {
		name = strings.TrimPrefix(summary.Names[0], "/")
	}
	out := Container{
		ID:     summary.ID,
		Name:   name,
		Image:  summary.Image,
		State:  summary.State,
		Status: summary.Status,
		Labels: summary.Labels,
	}
	if inspect, err := c.inner.ContainerInspect(ctx, summary.ID); err == nil && inspect.ContainerJSONBase != nil && inspect.State != nil {
		out.StartedAt = inspect.State.StartedAt
	}
	return out, nil
}

// Start starts a stopped container.
func (c *Client) Start(ctx context.Context, id string) error {
	if err := c.inner.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("docker start %s: %w", id, err)
	}
	return nil
}

// Stop stops a container, waiting up to timeout before killing it.
func (c *Client) Stop(ctx context.Context, id string, timeout time.Duration) error {
	seconds := int(timeout.Seconds())
	if err := c.inner.ContainerStop(ctx, id, container.StopOptions{Timeout: &seconds}); err != nil {
		return fmt.Errorf("docker stop %s: %w", id, err)
	}
	return nil
}

// Restart restarts a container.
func (c *Client) Restart(ctx context.Context, id string, timeout time.Duration) error {
	seconds := int(timeout.Seconds())
	if err := c.inner.ContainerRestart(ctx, id, container.StopOptions{Timeout: &seconds}); err != nil {
		return fmt.Errorf("docker restart %s: %w", id, err)
	}
	return nil
}

// Close releases resources held by the Docker client.
func (c *Client) Close() error {
	if c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
