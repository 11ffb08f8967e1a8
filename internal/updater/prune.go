package updater

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/drydock/drydock/internal/metrics"
)

// backupTagPattern matches the "backup-<UTC timestamp>" tags created by
// the Idle -> BackupTagging transition.
var backupTagPattern = regexp.MustCompile(`^backup-(\d{14})$`)

// runPrune deletes obsolete image tags before the Stack and Container
// phases run (spec §4.E.5). A repository is only touched once at least
// one of its tags still backs a live container; an entirely unused
// repository is left alone, since nothing here claims ownership of
// images this process never touched.
//
// Within a touched repository: a tag whose image ID is still referenced
// by any container (running or not) is kept; a backup-* tag is kept
// until it ages past the configured retention window, and deleted
// outright if its timestamp suffix doesn't parse; every other unused tag
// is deleted.
func (u *Updater) runPrune(ctx context.Context, result *CycleResult) {
	containers, err := u.docker.ListContainers(ctx, true)
	if err != nil {
		u.log.Warn("prune: failed to list containers", "error", err)
		return
	}
	usedIDs := make(map[string]bool, len(containers))
	for _, c := range containers {
		if c.ImageID != "" {
			usedIDs[c.ImageID] = true
		}
	}

	images, err := u.docker.ListImages(ctx, true)
	if err != nil {
		u.log.Warn("prune: failed to list images", "error", err)
		return
	}

	type taggedImage struct {
		id  string
		tag string
		ref string
	}
	byRepo := make(map[string][]taggedImage)
	for _, img := range images {
		for _, rt := range img.RepoTags {
			repo, tag := splitRepoTag(rt)
			if repo == "" || tag == "" || repo == "<none>" || tag == "<none>" {
				continue
			}
			byRepo[repo] = append(byRepo[repo], taggedImage{id: img.ID, tag: tag, ref: rt})
		}
	}

	retention := u.cfg.BackupRetention()
	now := u.clock.Now().UTC()

	for _, entries := range byRepo {
		inUse := false
		for _, e := range entries {
			if usedIDs[e.id] {
				inUse = true
				break
			}
		}
		if !inUse {
			continue
		}

		for _, e := range entries {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if usedIDs[e.id] {
				continue
			}

			if !shouldDeleteTag(e.tag, now, retention) {
				continue
			}

			if err := u.docker.DeleteImage(ctx, e.ref, false); err != nil {
				metrics.PruneErrorsTotal.Inc()
				result.PruneErrors++
				u.log.Warn("prune: failed to delete image", "image", e.ref, "error", err)
				continue
			}
			metrics.PruneDeletionsTotal.Inc()
			result.ImagesDeleted++
			u.log.Info("prune: deleted image", "image", e.ref)
		}
	}
}

// shouldDeleteTag decides the fate of one unused tag within a
// still-in-use repository.
func shouldDeleteTag(tag string, now time.Time, retention time.Duration) bool {
	if !strings.HasPrefix(tag, "backup-") {
		return true
	}
	m := backupTagPattern.FindStringSubmatch(tag)
	if m == nil {
		return true
	}
	stamp, err := time.Parse("20060102150405", m[1])
	if err != nil {
		return true
	}
	return now.Sub(stamp) > retention
}

func splitRepoTag(ref string) (repo, tag string) {
	i := strings.LastIndex(ref, ":")
	if i < 0 {
		return ref, ""
	}
	return ref[:i], ref[i+1:]
}
