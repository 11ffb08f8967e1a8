package dockerengine

import (
	"context"
	"fmt"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/client"
)

// ListContainers lists containers, restricted to running ones unless all is true.
func (c *Client) ListContainers(ctx context.Context, all bool) ([]container.Summary, error) {
	opts := client.ContainerListOptions{All: all}
	if !all {
		opts.Filters = make(client.Filters).Add("status", "running")
	}
	result, err := c.api.ContainerList(ctx, opts)
	if err != nil {
		return nil, classify(err)
	}
	return result.Items, nil
}

// ListContainersByLabel lists all containers carrying the given label
// key=value pair, used by the Stack phase to find containers belonging
// to a compose project.
func (c *Client) ListContainersByLabel(ctx context.Context, key, value string) ([]container.Summary, error) {
	filter := fmt.Sprintf("%s=%s", key, value)
	opts := client.ContainerListOptions{
		All:     true,
		Filters: make(client.Filters).Add("label", filter),
	}
	result, err := c.api.ContainerList(ctx, opts)
	if err != nil {
		return nil, classify(err)
	}
	return result.Items, nil
}

// InspectContainer returns full container details by ID.
func (c *Client) InspectContainer(ctx context.Context, id string) (container.InspectResponse, error) {
	result, err := c.api.ContainerInspect(ctx, id, client.ContainerInspectOptions{})
	if err != nil {
		return container.InspectResponse{}, classify(err)
	}
	return result.Container, nil
}

// StopContainer stops a running container, giving it timeoutSeconds to
// exit gracefully before the daemon kills it.
func (c *Client) StopContainer(ctx context.Context, id string, timeoutSeconds int) error {
	_, err := c.api.ContainerStop(ctx, id, client.ContainerStopOptions{Timeout: &timeoutSeconds})
	return classify(err)
}

// RemoveContainer removes a container, optionally forcing removal of a
// running one.
func (c *Client) RemoveContainer(ctx context.Context, id string, force bool) error {
	_, err := c.api.ContainerRemove(ctx, id, client.ContainerRemoveOptions{Force: force})
	return classify(err)
}

// CreateContainer creates a container from the given spec under name and
// returns its new ID.
func (c *Client) CreateContainer(ctx context.Context, name string, spec ContainerSpec) (string, error) {
	resp, err := c.api.ContainerCreate(ctx, client.ContainerCreateOptions{
		Name:             name,
		Config:           spec.Config,
		HostConfig:       spec.HostConfig,
		NetworkingConfig: spec.NetConfig,
	})
	if err != nil {
		return "", classify(err)
	}
	return resp.ID, nil
}

// StartContainer starts a stopped container.
func (c *Client) StartContainer(ctx context.Context, id string) error {
	_, err := c.api.ContainerStart(ctx, id, client.ContainerStartOptions{})
	return classify(err)
}
