package dockerengine

import (
	"context"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/network"
)

// ContainerSpec describes a container to be created: the image to run it
// from plus enough of its former configuration to recreate it faithfully.
type ContainerSpec struct {
	Image      string
	Config     *container.Config
	HostConfig *container.HostConfig
	NetConfig  *network.NetworkingConfig
}

// PullEvent is a single decoded line from the image pull status stream.
// Status mirrors the Docker daemon's own vocabulary: "Pulling fs layer",
// "Downloading", "Extracting", "Pull complete", "Status: Downloaded newer
// image for …" / "Status: Image is up to date for …".
type PullEvent struct {
	Status   string
	Progress string
}

// API is the capability set the update engine needs from the Docker
// daemon: list/inspect containers and images, recreate containers, and
// pull/tag/delete images.
type API interface {
	ListContainers(ctx context.Context, all bool) ([]container.Summary, error)
	ListContainersByLabel(ctx context.Context, key, value string) ([]container.Summary, error)
	InspectContainer(ctx context.Context, id string) (container.InspectResponse, error)
	StopContainer(ctx context.Context, id string, timeoutSeconds int) error
	RemoveContainer(ctx context.Context, id string, force bool) error
	CreateContainer(ctx context.Context, name string, spec ContainerSpec) (string, error)
	StartContainer(ctx context.Context, id string) error

	ListImages(ctx context.Context, all bool) ([]ImageSummary, error)
	InspectImage(ctx context.Context, ref string) (ImageSummary, error)
	Pull(ctx context.Context, repo, tag string, sink func(PullEvent)) error
	TagImage(ctx context.Context, id, repo, tag string, force bool) error
	DeleteImage(ctx context.Context, ref string, force bool) error

	Ping(ctx context.Context) error
	Close() error
}

var _ API = (*Client)(nil)

// ImageSummary is the subset of image metadata the update engine consults:
// its ID, the repo:tag / repo@digest names it carries, and the repo
// digests the daemon recorded at pull time (used for freshness comparison).
type ImageSummary struct {
	ID          string
	RepoTags    []string
	RepoDigests []string
	Size        int64
	Created     int64
}
