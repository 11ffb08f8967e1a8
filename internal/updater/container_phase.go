package updater

import (
	"context"
	"strings"

	"github.com/moby/moby/api/types/container"

	"github.com/drydock/drydock/internal/metrics"
	"github.com/drydock/drydock/internal/reference"
)

// runContainerPhase enumerates all containers (including stopped ones)
// and, for each not skipped by the filters evaluated in order below,
// consults the Freshness Oracle and runs the Update State Machine when an
// update is available (spec §4.E.3).
//
// Skip rules, first match wins: image is digest-pinned (starts with
// "sha256:" as a bare reference, or reference.IsDigestPinned()); the
// reference or container name contains a configured exclude pattern; the
// container's name is in ignored_containers; the image's repository is in
// stack_repos.
func (u *Updater) runContainerPhase(ctx context.Context, state *CycleState, result *CycleResult) {
	containers, err := u.docker.ListContainers(ctx, true)
	if err != nil {
		u.log.Warn("container phase: failed to list containers", "error", err)
		return
	}
	result.ContainersSeen = len(containers)
	metrics.ContainersObserved.Set(float64(len(containers)))

	for _, c := range containers {
		select {
		case <-ctx.Done():
			return
		default:
		}
		u.processContainer(ctx, c, state, result)
	}
}

func (u *Updater) processContainer(ctx context.Context, c container.Summary, state *CycleState, result *CycleResult) {
	name := containerName(c)

	if strings.HasPrefix(c.Image, "sha256:") {
		return
	}
	if matchesExclude(state.ExcludePatterns, c.Image, name) {
		return
	}
	if state.IgnoredContainers[name] {
		return
	}

	ref, err := reference.Parse(c.Image)
	if err != nil {
		u.log.Debug("container phase: unparsable image reference, skipping", "container", name, "image", c.Image)
		return
	}
	if ref.IsDigestPinned() {
		return
	}
	if state.StackRepos[ref.Repository] {
		return
	}

	freshResult, err := u.oracle.HasNewer(ctx, ref)
	if err != nil {
		metrics.RegistryErrorsTotal.WithLabelValues("pull").Inc()
		u.log.Debug("container phase: freshness check failed, skipping", "container", name, "image", c.Image, "error", err)
		return
	}
	if !freshResult.HasNewer {
		return
	}

	rec := u.updateContainer(ctx, c.ID, name, ref, freshResult)
	result.Updates = append(result.Updates, rec)
	u.appendRecord(rec)
}

// containerName extracts a container's name, stripping the leading "/".
func containerName(c container.Summary) string {
	if len(c.Names) > 0 {
		name := c.Names[0]
		if len(name) > 0 && name[0] == '/' {
			return name[1:]
		}
		return name
	}
	return truncateID(c.ID)
}

// truncateID safely truncates a container ID to 12 characters for logging.
func truncateID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
