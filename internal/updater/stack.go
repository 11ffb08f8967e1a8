package updater

import (
	"context"
	"errors"
	"strings"

	"github.com/drydock/drydock/internal/metrics"
	"github.com/drydock/drydock/internal/notify"
	"github.com/drydock/drydock/internal/orchestrator"
	"github.com/drydock/drydock/internal/reference"
)

// runStackPhase enumerates Portainer-managed stacks, redeploys any whose
// images have a newer version available, and records which containers and
// repositories the container phase must then skip (spec §4.E.2).
func (u *Updater) runStackPhase(ctx context.Context, state *CycleState, result *CycleResult) {
	endpoints, err := u.scanner.Endpoints(ctx)
	if err != nil {
		u.log.Warn("stack phase: failed to list endpoints", "error", err)
		return
	}

	stacks, err := u.scanner.Stacks(ctx)
	if err != nil {
		u.log.Warn("stack phase: failed to list stacks", "error", err)
		return
	}

	for _, stack := range stacks {
		select {
		case <-ctx.Done():
			return
		default:
		}
		u.processStack(ctx, stack, endpoints, state, result)
	}
}

func (u *Updater) processStack(ctx context.Context, stack orchestrator.Stack, endpoints []orchestrator.Endpoint, state *CycleState, result *CycleResult) {
	manifest, err := u.scanner.Client().GetManifest(ctx, stack.ID)
	if err != nil {
		if errors.Is(err, orchestrator.ErrManifestNotFound) {
			u.log.Warn("stack phase: manifest not found, skipping stack", "stack", stack.Name)
			return
		}
		u.log.Warn("stack phase: failed to fetch manifest", "stack", stack.Name, "error", err)
		return
	}

	images := u.stackImages(ctx, stack, endpoints, manifest)
	if len(images) == 0 {
		return
	}

	anyNewer := false
	for _, imageRef := range images {
		ref, err := reference.Parse(imageRef)
		if err != nil {
			continue
		}
		state.StackRepos[ref.Repository] = true

		if matchesExclude(state.ExcludePatterns, imageRef, "") || ref.IsDigestPinned() {
			continue
		}

		freshResult, err := u.oracle.HasNewer(ctx, ref)
		if err != nil {
			metrics.RegistryErrorsTotal.WithLabelValues("pull").Inc()
			u.log.Debug("stack phase: freshness check failed", "stack", stack.Name, "image", imageRef, "error", err)
			continue
		}
		if freshResult.HasNewer {
			anyNewer = true
		}
	}

	if !anyNewer {
		return
	}

	if err := u.scanner.RedeployStack(ctx, stack.ID, stack.EndpointID); err != nil {
		metrics.StackRedeploysTotal.WithLabelValues("failed").Inc()
		result.StacksFailed++
		u.log.Error("stack phase: redeploy failed", "stack", stack.Name, "error", err)
		return
	}

	metrics.StackRedeploysTotal.WithLabelValues("success").Inc()
	result.StacksRedeployed++
	u.log.Info("stack phase: redeployed stack", "stack", stack.Name)

	u.notifier.Notify(ctx, u.event(notify.EventStackRedeployed, stack.Name, "", "", "", ""))

	u.ignoreStackContainers(ctx, stack, endpoints, state)
}

// stackImages determines the set of image references a stack uses. The
// primary source of truth is the engine's live containers carrying the
// stack's compose-project label; the manifest's declared images
// supplement that (e.g. a scaled-to-zero service with no live container)
// per spec §9's documented Open Question resolution.
func (u *Updater) stackImages(ctx context.Context, stack orchestrator.Stack, endpoints []orchestrator.Endpoint, manifest string) []string {
	seen := make(map[string]bool)
	var images []string

	for _, ep := range endpoints {
		if ep.ID != stack.EndpointID {
			continue
		}
		containers, err := u.scanner.EndpointContainers(ctx, ep)
		if err != nil {
			continue
		}
		for _, c := range containers {
			if c.StackID != stack.ID {
				continue
			}
			if !seen[c.Image] {
				seen[c.Image] = true
				images = append(images, c.Image)
			}
		}
	}

	for _, img := range orchestrator.ParseManifestImages(manifest, stack.Env) {
		if !seen[img] {
			seen[img] = true
			images = append(images, img)
		}
	}
	return images
}

// ignoreStackContainers inserts every container carrying the stack's
// compose-project label into ignored_containers, so the container phase
// does not attempt to update them again this cycle.
func (u *Updater) ignoreStackContainers(ctx context.Context, stack orchestrator.Stack, endpoints []orchestrator.Endpoint, state *CycleState) {
	for _, ep := range endpoints {
		if ep.ID != stack.EndpointID {
			continue
		}
		containers, err := u.scanner.EndpointContainers(ctx, ep)
		if err != nil {
			continue
		}
		for _, c := range containers {
			if c.StackID == stack.ID {
				state.IgnoredContainers[strings.TrimPrefix(c.Name, "/")] = true
			}
		}
	}
}
