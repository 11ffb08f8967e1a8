package updater

import (
	"context"
	"strings"
	"sync"

	"github.com/drydock/drydock/internal/clock"
	"github.com/drydock/drydock/internal/config"
	"github.com/drydock/drydock/internal/dockerengine"
	"github.com/drydock/drydock/internal/freshness"
	"github.com/drydock/drydock/internal/logging"
	"github.com/drydock/drydock/internal/metrics"
	"github.com/drydock/drydock/internal/notify"
	"github.com/drydock/drydock/internal/orchestrator"
)

const maxUpdateRecords = 200

// Updater runs the drydock update cycle: Prune, then the Stack phase
// (when an orchestrator is configured), then the Container phase (spec
// §4.E.1). Phases never overlap and run strictly in that order.
type Updater struct {
	docker   dockerengine.API
	oracle   *freshness.Oracle
	scanner  *orchestrator.Scanner
	cfg      *config.Config
	log      *logging.Logger
	clock    clock.Clock
	notifier *notify.Multi

	mu         sync.Mutex
	rolledBack map[string]bool // container names ignored since they were rolled back (process lifetime)
	records    []UpdateRecord  // bounded ring buffer, most recent last
}

// New constructs an Updater. scanner may be nil when no orchestrator is
// configured (config.Config.OrchestratorEnabled() is false); the Stack
// phase is then skipped entirely for every cycle.
func New(docker dockerengine.API, oracle *freshness.Oracle, scanner *orchestrator.Scanner, cfg *config.Config, log *logging.Logger, clk clock.Clock, notifier *notify.Multi) *Updater {
	return &Updater{
		docker:     docker,
		oracle:     oracle,
		scanner:    scanner,
		cfg:        cfg,
		log:        log,
		clock:      clk,
		notifier:   notifier,
		rolledBack: make(map[string]bool),
	}
}

// Records returns a copy of the in-memory update record ring buffer, most
// recent last. Exposed only to the owning process — never over a network
// interface (spec's "no API of its own" non-goal).
func (u *Updater) Records() []UpdateRecord {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]UpdateRecord, len(u.records))
	copy(out, u.records)
	return out
}

func (u *Updater) appendRecord(r UpdateRecord) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.records = append(u.records, r)
	if len(u.records) > maxUpdateRecords {
		u.records = u.records[len(u.records)-maxUpdateRecords:]
	}
}

func (u *Updater) markRolledBack(name string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rolledBack[name] = true
}

func (u *Updater) rolledBackSnapshot() map[string]bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make(map[string]bool, len(u.rolledBack))
	for k := range u.rolledBack {
		out[k] = true
	}
	return out
}

// RunCycle executes one full cycle: Prune, Stack phase, Container phase,
// strictly sequential (spec §4.E.1, §5 ordering guarantees). A phase
// failure is logged and the cycle continues to the next phase — nothing
// short of ConfigInvalid/EngineUnavailable at startup aborts the process
// (spec §7).
func (u *Updater) RunCycle(ctx context.Context) CycleResult {
	start := u.clock.Now()
	result := CycleResult{Started: start}

	state := newCycleState(u.rolledBackSnapshot(), u.cfg.ExcludePatterns())

	u.runPrune(ctx, &result)

	if u.scanner != nil && u.cfg.OrchestratorEnabled() {
		u.scanner.ResetCache()
		u.runStackPhase(ctx, state, &result)
	}

	u.runContainerPhase(ctx, state, &result)

	result.Duration = u.clock.Since(start)
	metrics.CyclesTotal.Inc()
	metrics.CycleDuration.Observe(result.Duration.Seconds())
	u.log.Info("cycle complete",
		"duration", result.Duration,
		"containers_seen", result.ContainersSeen,
		"stacks_redeployed", result.StacksRedeployed,
		"stacks_failed", result.StacksFailed,
		"updates", len(result.Updates),
		"images_deleted", result.ImagesDeleted,
	)
	return result
}

// matchesExclude reports whether ref or name contains any configured
// exclude substring.
func matchesExclude(patterns []string, ref, name string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(ref, p) || strings.Contains(name, p) {
			return true
		}
	}
	return false
}
