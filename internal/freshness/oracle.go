// Package freshness implements the "Freshness Oracle": it decides whether
// a running container's image has a newer version available, either by
// pulling and comparing local image state, or by querying the registry
// directly without touching local storage.
package freshness

import (
	"context"
	"strings"

	"github.com/drydock/drydock/internal/dockerengine"
	"github.com/drydock/drydock/internal/logging"
	"github.com/drydock/drydock/internal/reference"
)

// Result holds the outcome of a freshness check.
type Result struct {
	Ref        reference.Reference
	OldID      string
	NewID      string
	OldDigest  string
	NewDigest  string
	HasNewer   bool
	FirstPull  bool // true when no local copy of the image existed before the check
	PullStatus []string
}

// Oracle answers "does this image have an update available" by pulling
// the image reference and comparing the resulting image ID/digest against
// what was locally present before the pull (spec §4.D).
type Oracle struct {
	engine dockerengine.API
	log    *logging.Logger
	direct *DirectChecker // optional registry-direct precheck, nil disables it
}

// NewOracle constructs a Freshness Oracle over the given engine gateway.
func NewOracle(engine dockerengine.API, log *logging.Logger) *Oracle {
	return &Oracle{engine: engine, log: log}
}

// WithDirectChecker enables the registry-direct precheck: before pulling,
// HasNewer HEADs the registry's manifest for ref and skips the pull
// entirely when the remote digest already matches what's stored locally.
// A HEAD failure or digest mismatch falls back to the normal pull-based
// check, so this only ever saves work — it never changes the answer.
func (o *Oracle) WithDirectChecker(d *DirectChecker) *Oracle {
	o.direct = d
	return o
}

// HasNewer determines whether ref has a newer version available.
//
// Digest-pinned references are immutable by definition and always report
// no update (step 1). Otherwise the oracle:
//  1. resolves the image's current local id/digest, trying every
//     canonical alias of ref (registry.io/name vs. bare name, etc.) since
//     the daemon may have the image stored under any of them;
//  2. pulls repo:tag, observing progress events as they arrive;
//  3. re-resolves the local id/digest after the pull;
//  4. reports an update when either the id or repo digest changed, or
//     when no local copy existed before the pull at all (a first pull is
//     always reported as "newer" — there is nothing to roll forward
//     from, but the caller still needs to know a fresh image landed).
func (o *Oracle) HasNewer(ctx context.Context, ref reference.Reference) (Result, error) {
	result := Result{Ref: ref}

	if ref.IsDigestPinned() {
		return result, nil
	}

	oldID, oldDigest, found := o.resolveLocal(ctx, ref)
	result.OldID = oldID
	result.OldDigest = oldDigest
	result.FirstPull = !found

	if o.direct != nil && found && oldDigest != "" {
		if remote, err := o.direct.RemoteDigest(ctx, ref); err == nil && digestsMatch(oldDigest, remote) {
			result.NewID = oldID
			result.NewDigest = oldDigest
			result.HasNewer = false
			return result, nil
		}
	}

	err := o.engine.Pull(ctx, fullRepo(ref), ref.Tag, func(ev dockerengine.PullEvent) {
		if ev.Status != "" {
			result.PullStatus = append(result.PullStatus, ev.Status)
		}
	})
	if err != nil {
		return result, err
	}

	newID, newDigest, _ := o.resolveLocal(ctx, ref)
	result.NewID = newID
	result.NewDigest = newDigest

	result.HasNewer = result.FirstPull || oldID != newID || !digestsMatch(oldDigest, newDigest)
	return result, nil
}

// resolveLocal inspects the local image store, trying every canonical
// alias of ref until one resolves, since the daemon may have recorded the
// image under docker.io/library/x, library/x, or x interchangeably.
func (o *Oracle) resolveLocal(ctx context.Context, ref reference.Reference) (id, digest string, found bool) {
	for _, alias := range reference.CanonicalAliases(ref) {
		summary, err := o.engine.InspectImage(ctx, alias)
		if err != nil {
			continue
		}
		id = summary.ID
		if len(summary.RepoDigests) > 0 {
			digest = summary.RepoDigests[0]
		}
		return id, digest, true
	}
	return "", "", false
}

func fullRepo(ref reference.Reference) string {
	if ref.Registry == "docker.io" {
		return ref.Repository
	}
	return ref.Registry + "/" + ref.Repository
}

// digestsMatch compares two repo digests, ignoring the "repo@" prefix a
// local digest carries but a bare sha256 comparison would not.
func digestsMatch(a, b string) bool {
	return extractHash(a) == extractHash(b)
}

func extractHash(digest string) string {
	if i := strings.LastIndex(digest, "sha256:"); i >= 0 {
		return digest[i:]
	}
	return digest
}
