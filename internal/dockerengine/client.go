// Package dockerengine is a thin capability wrapper over the Docker engine
// API: the "Engine Gateway" of the update daemon.
package dockerengine

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/moby/moby/client"
)

// Client wraps the Docker API client with the capability set the update
// engine needs: list/inspect containers and images, pull, tag, create,
// start, stop, remove, delete image.
type Client struct {
	api *client.Client
}

// NewClient creates a Docker client connected to the given socket or TCP
// endpoint. dockerHost follows the same conventions as the DOCKER_HOST
// environment variable: a unix socket path, "unix://…", or "tcp://…".
func NewClient(dockerHost string) (*Client, error) {
	var opts []client.Opt

	switch {
	case strings.HasPrefix(dockerHost, "tcp://"), strings.HasPrefix(dockerHost, "tcps://"):
		opts = append(opts, client.WithHost(dockerHost))
	case strings.HasPrefix(dockerHost, "unix://"):
		opts = append(opts, withUnixSocket(strings.TrimPrefix(dockerHost, "unix://")))
	default:
		opts = append(opts, withUnixSocket(dockerHost))
	}

	api, err := client.New(opts...)
	if err != nil {
		return nil, err
	}
	return &Client{api: api}, nil
}

func withUnixSocket(path string) client.Opt {
	return client.WithHTTPClient(&http.Client{
		Transport: &http.Transport{
			DialContext: func(_ context.Context, _, _ string) (net.Conn, error) {
				return net.DialTimeout("unix", path, 30*time.Second)
			},
		},
	})
}

// Ping checks that the Docker daemon is reachable. A failure here is fatal
// at startup (EngineUnavailable, spec §7).
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.Ping(ctx, client.PingOptions{})
	return err
}

// Close releases the underlying Docker client resources.
func (c *Client) Close() error {
	return c.api.Close()
}
