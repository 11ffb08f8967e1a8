// Package updater implements the Update Engine: the cycle that prunes
// obsolete backup tags, redeploys out-of-date Portainer stacks, and
// recreates out-of-date standalone containers through a backup-tag-based
// rollback state machine.
package updater

import (
	"maps"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/network"
)

// Snapshot is an immutable capture of a container's configuration, taken
// by inspect immediately before it is stopped, and consumed by the
// recreate step (spec §3 Container Snapshot).
type Snapshot struct {
	Name       string
	Image      string
	Config     *container.Config
	HostConfig *container.HostConfig
	NetConfig  *network.NetworkingConfig
}

// snapshotFrom captures a Snapshot from a live inspect response.
func snapshotFrom(name string, insp container.InspectResponse) Snapshot {
	return Snapshot{
		Name:       name,
		Image:      insp.Config.Image,
		Config:     cloneConfig(insp.Config),
		HostConfig: insp.HostConfig,
		NetConfig:  rebuildNetworkingConfig(insp.NetworkSettings),
	}
}

// cloneConfig creates a shallow copy of the container config with cloned labels.
func cloneConfig(cfg *container.Config) *container.Config {
	if cfg == nil {
		return &container.Config{}
	}
	clone := *cfg
	clone.Labels = maps.Clone(cfg.Labels)
	return &clone
}

// rebuildNetworkingConfig extracts only the IPAM config, aliases, driver
// opts, network ID, and MAC address from NetworkSettings — not operational
// fields like Gateway or IPAddress, which the daemon assigns fresh on create.
func rebuildNetworkingConfig(ns *container.NetworkSettings) *network.NetworkingConfig {
	if ns == nil || len(ns.Networks) == 0 {
		return nil
	}
	endpoints := make(map[string]*network.EndpointSettings, len(ns.Networks))
	for name, ep := range ns.Networks {
		endpoints[name] = &network.EndpointSettings{
			IPAMConfig: ep.IPAMConfig,
			Aliases:    ep.Aliases,
			DriverOpts: ep.DriverOpts,
			NetworkID:  ep.NetworkID,
			MacAddress: ep.MacAddress,
		}
	}
	return &network.NetworkingConfig{EndpointsConfig: endpoints}
}

// Outcome is the terminal state of a single container's update attempt.
type Outcome string

const (
	OutcomeCommitted  Outcome = "committed"
	OutcomeRolledBack Outcome = "rolled_back"
	OutcomeAbandoned  Outcome = "abandoned"
)

// UpdateRecord is a supplemented, in-memory-only audit entry for one
// container update attempt, kept in a bounded ring buffer so an operator
// can see what the last cycle did without grepping logs (SPEC_FULL.md §3
// expansion). Never persisted to disk.
type UpdateRecord struct {
	Timestamp time.Time
	Container string
	OldImage  string
	NewImage  string
	OldDigest string
	NewDigest string
	Outcome   Outcome
	Duration  time.Duration
	Error     string
}

// CycleState is the process-wide, per-cycle bookkeeping the spec's Cycle
// State data model describes (spec §3): ignored_containers and
// stack_repos reset at the start of every cycle; exclude_patterns never
// reset. ignored_containers is seeded from the Updater's rollback set,
// which is the one piece of ignored-container membership that outlives a
// single cycle (spec §5 "Ownership of external state").
type CycleState struct {
	IgnoredContainers map[string]bool
	StackRepos        map[string]bool
	ExcludePatterns   []string
}

// newCycleState builds a fresh per-cycle state, seeding ignored_containers
// with names previously rolled back (those persist for the process
// lifetime) while stack_repos always starts empty.
func newCycleState(rolledBack map[string]bool, excludePatterns []string) *CycleState {
	ignored := make(map[string]bool, len(rolledBack))
	maps.Copy(ignored, rolledBack)
	return &CycleState{
		IgnoredContainers: ignored,
		StackRepos:        make(map[string]bool),
		ExcludePatterns:   excludePatterns,
	}
}

// CycleResult summarises one RunCycle invocation.
type CycleResult struct {
	Started          time.Time
	Duration         time.Duration
	ContainersSeen   int
	StacksRedeployed int
	StacksFailed     int
	Updates          []UpdateRecord
	ImagesDeleted    int
	PruneErrors      int
}
