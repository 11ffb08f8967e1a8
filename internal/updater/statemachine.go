package updater

import (
	"context"
	"strconv"
	"time"

	"github.com/drydock/drydock/internal/dockerengine"
	"github.com/drydock/drydock/internal/freshness"
	"github.com/drydock/drydock/internal/metrics"
	"github.com/drydock/drydock/internal/notify"
	"github.com/drydock/drydock/internal/reference"
)

// healthPollInterval is the fixed cadence the state machine polls a
// freshly started container's state at during HealthProbing (spec §4.E.4).
const healthPollInterval = 2 * time.Second

// updateContainer drives a single container through the Update State
// Machine: Idle -> BackupTagging -> Replacing -> HealthProbing, ending in
// Committed, RolledBack, or Abandoned (spec §4.E.4).
func (u *Updater) updateContainer(ctx context.Context, id, name string, ref reference.Reference, fresh freshness.Result) UpdateRecord {
	started := u.clock.Now()
	newImage := repoName(ref) + ":" + ref.Tag

	u.notifier.Notify(ctx, u.event(notify.EventUpdateStarted, name, newImage, newImage, fresh.OldDigest, fresh.NewDigest))
	u.log.Info("update starting", "container", name, "image", newImage)

	// Idle -> BackupTagging: tag the outgoing image so a rollback has
	// something stable to recreate from. Failure abandons the attempt
	// before anything has been touched.
	backupTag := "backup-" + u.clock.Now().UTC().Format("20060102150405")
	if err := u.docker.TagImage(ctx, fresh.OldID, repoName(ref), backupTag, true); err != nil {
		return u.abandoned(ctx, name, newImage, fresh, started, err)
	}

	insp, err := u.docker.InspectContainer(ctx, id)
	if err != nil {
		return u.abandoned(ctx, name, newImage, fresh, started, err)
	}
	snap := snapshotFrom(name, insp)

	// BackupTagging -> Replacing: stop and remove are best-effort, a
	// container already gone is not itself a failure.
	if err := u.docker.StopContainer(ctx, id, 10); err != nil {
		u.log.Warn("update: stop failed, continuing", "container", name, "error", err)
	}
	if err := u.docker.RemoveContainer(ctx, id, true); err != nil {
		u.log.Warn("update: remove failed, continuing", "container", name, "error", err)
	}

	newCfg := cloneConfig(snap.Config)
	newCfg.Image = newImage
	spec := dockerengine.ContainerSpec{
		Image:      newImage,
		Config:     newCfg,
		HostConfig: snap.HostConfig,
		NetConfig:  snap.NetConfig,
	}

	// Create and start ignore cycle cancellation so a shutdown never
	// interrupts them mid-call.
	createCtx := context.WithoutCancel(ctx)
	newID, err := u.docker.CreateContainer(createCtx, name, spec)
	if err == nil {
		err = u.docker.StartContainer(createCtx, newID)
	}
	if err != nil {
		return u.rollingBack(ctx, name, snap, ref, backupTag, newImage, fresh, started, newID, err)
	}

	// Replacing -> HealthProbing.
	return u.probeHealth(ctx, name, snap, ref, backupTag, newImage, fresh, started, newID)
}

// probeHealth polls the new container every healthPollInterval up to the
// configured check window. A container that stops with exit code 0 is
// treated as a clean, intentional exit and committed; a nonzero exit or a
// window that elapses with the container still running both end the
// probe — the former rolls back, the latter commits.
func (u *Updater) probeHealth(ctx context.Context, name string, snap Snapshot, ref reference.Reference, backupTag, newImage string, fresh freshness.Result, started time.Time, newID string) UpdateRecord {
	window := u.cfg.ContainerCheckWindow()
	var elapsed time.Duration

	for {
		select {
		case <-ctx.Done():
			return u.committed(ctx, name, newImage, fresh, started)
		case <-u.clock.After(healthPollInterval):
		}
		elapsed += healthPollInterval

		insp, err := u.docker.InspectContainer(ctx, newID)
		if err == nil && insp.State != nil && !insp.State.Running {
			if insp.State.ExitCode == 0 {
				return u.committed(ctx, name, newImage, fresh, started)
			}
			return u.rollingBack(ctx, name, snap, ref, backupTag, newImage, fresh, started, newID,
				errExitedUnhealthy(insp.State.ExitCode))
		}

		if elapsed >= window {
			return u.committed(ctx, name, newImage, fresh, started)
		}
	}
}

// rollingBack recreates the container from its pre-update snapshot but
// pointed at the backup-tagged image, and marks it ignored for the
// process lifetime so future cycles never attempt this container again
// (spec §4.E.4 HealthProbing -> RollingBack -> RolledBack).
func (u *Updater) rollingBack(ctx context.Context, name string, snap Snapshot, ref reference.Reference, backupTag, newImage string, fresh freshness.Result, started time.Time, failedID string, cause error) UpdateRecord {
	u.log.Warn("update failed, rolling back", "container", name, "error", cause)

	if failedID != "" {
		if err := u.docker.StopContainer(ctx, failedID, 10); err != nil {
			u.log.Warn("rollback: stop of failed container failed, continuing", "container", name, "error", err)
		}
		if err := u.docker.RemoveContainer(ctx, failedID, true); err != nil {
			u.log.Warn("rollback: remove of failed container failed, continuing", "container", name, "error", err)
		}
	}

	u.markRolledBack(name)

	backupImage := repoName(ref) + ":" + backupTag
	rollbackCfg := cloneConfig(snap.Config)
	rollbackCfg.Image = backupImage
	spec := dockerengine.ContainerSpec{
		Image:      backupImage,
		Config:     rollbackCfg,
		HostConfig: snap.HostConfig,
		NetConfig:  snap.NetConfig,
	}

	duration := u.clock.Since(started)
	createCtx := context.WithoutCancel(ctx)
	rollbackID, err := u.docker.CreateContainer(createCtx, name, spec)
	if err == nil {
		err = u.docker.StartContainer(createCtx, rollbackID)
	}
	if err != nil {
		u.log.Error("rollback recreate failed", "container", name, "error", err)
		metrics.UpdatesTotal.WithLabelValues(string(OutcomeRolledBack)).Inc()
		u.notifier.Notify(ctx, u.event(notify.EventRollbackFailed, name, newImage, backupImage, fresh.OldDigest, fresh.NewDigest))
		return UpdateRecord{
			Timestamp: u.clock.Now(),
			Container: name,
			OldImage:  newImage,
			NewImage:  backupImage,
			OldDigest: fresh.OldDigest,
			NewDigest: fresh.NewDigest,
			Outcome:   OutcomeRolledBack,
			Duration:  duration,
			Error:     err.Error(),
		}
	}

	metrics.UpdatesTotal.WithLabelValues(string(OutcomeRolledBack)).Inc()
	metrics.UpdateDuration.Observe(duration.Seconds())
	u.notifier.Notify(ctx, u.event(notify.EventRollbackOK, name, newImage, backupImage, fresh.OldDigest, fresh.NewDigest))
	u.log.Info("rollback complete", "container", name, "image", backupImage)

	return UpdateRecord{
		Timestamp: u.clock.Now(),
		Container: name,
		OldImage:  newImage,
		NewImage:  backupImage,
		OldDigest: fresh.OldDigest,
		NewDigest: fresh.NewDigest,
		Outcome:   OutcomeRolledBack,
		Duration:  duration,
		Error:     cause.Error(),
	}
}

func (u *Updater) committed(ctx context.Context, name, newImage string, fresh freshness.Result, started time.Time) UpdateRecord {
	duration := u.clock.Since(started)
	metrics.UpdatesTotal.WithLabelValues(string(OutcomeCommitted)).Inc()
	metrics.UpdateDuration.Observe(duration.Seconds())
	u.notifier.Notify(ctx, u.event(notify.EventUpdateSucceeded, name, newImage, newImage, fresh.OldDigest, fresh.NewDigest))
	u.log.Info("update committed", "container", name, "image", newImage, "duration", duration)

	return UpdateRecord{
		Timestamp: u.clock.Now(),
		Container: name,
		OldImage:  newImage,
		NewImage:  newImage,
		OldDigest: fresh.OldDigest,
		NewDigest: fresh.NewDigest,
		Outcome:   OutcomeCommitted,
		Duration:  duration,
	}
}

func (u *Updater) abandoned(ctx context.Context, name, newImage string, fresh freshness.Result, started time.Time, cause error) UpdateRecord {
	duration := u.clock.Since(started)
	metrics.UpdatesTotal.WithLabelValues(string(OutcomeAbandoned)).Inc()
	u.notifier.Notify(ctx, u.event(notify.EventUpdateFailed, name, newImage, newImage, fresh.OldDigest, fresh.NewDigest))
	u.log.Warn("update abandoned", "container", name, "error", cause)

	return UpdateRecord{
		Timestamp: u.clock.Now(),
		Container: name,
		OldImage:  newImage,
		NewImage:  newImage,
		OldDigest: fresh.OldDigest,
		NewDigest: fresh.NewDigest,
		Outcome:   OutcomeAbandoned,
		Duration:  duration,
		Error:     cause.Error(),
	}
}

// repoName renders the registry-qualified repository name TagImage and
// CreateContainer need, omitting the default docker.io prefix the same
// way the Freshness Oracle does.
func repoName(ref reference.Reference) string {
	if ref.Registry == "docker.io" {
		return ref.Repository
	}
	return ref.Registry + "/" + ref.Repository
}

type exitedUnhealthyError struct {
	code int
}

func (e *exitedUnhealthyError) Error() string {
	return "container exited with nonzero status " + strconv.Itoa(e.code)
}

func errExitedUnhealthy(code int) error {
	return &exitedUnhealthyError{code: code}
}
