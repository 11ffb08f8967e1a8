package dockerengine

import (
	"context"

	"github.com/moby/moby/client"
)

// ListImages lists images, restricted to tagged/referenced ones unless all is true.
func (c *Client) ListImages(ctx context.Context, all bool) ([]ImageSummary, error) {
	result, err := c.api.ImageList(ctx, client.ImageListOptions{All: all})
	if err != nil {
		return nil, classify(err)
	}
	summaries := make([]ImageSummary, 0, len(result.Items))
	for _, img := range result.Items {
		summaries = append(summaries, ImageSummary{
			ID:          img.ID,
			RepoTags:    img.RepoTags,
			RepoDigests: img.RepoDigests,
			Size:        img.Size,
			Created:     img.Created,
		})
	}
	return summaries, nil
}

// InspectImage returns metadata for a single local image by reference or ID.
func (c *Client) InspectImage(ctx context.Context, ref string) (ImageSummary, error) {
	resp, err := c.api.ImageInspect(ctx, ref)
	if err != nil {
		return ImageSummary{}, classify(err)
	}
	return ImageSummary{
		ID:          resp.ID,
		RepoTags:    resp.RepoTags,
		RepoDigests: resp.RepoDigests,
		Size:        resp.Size,
		Created:     parseCreated(resp.Created),
	}, nil
}

// TagImage applies repo:tag to an existing local image by ID. force is
// accepted for interface symmetry with the capability list; the daemon's
// ImageTag always overwrites an existing tag, so it is not passed through.
func (c *Client) TagImage(ctx context.Context, id, repo, tag string, force bool) error {
	target := repo + ":" + tag
	_, err := c.api.ImageTag(ctx, client.ImageTagOptions{Source: id, Target: target})
	return classify(err)
}

// DeleteImage removes an image by reference or ID. force maps to the
// daemon's force-remove flag, used when a container still references the
// image under a different tag.
func (c *Client) DeleteImage(ctx context.Context, ref string, force bool) error {
	_, err := c.api.ImageRemove(ctx, ref, client.ImageRemoveOptions{Force: force, PruneChildren: true})
	return classify(err)
}
