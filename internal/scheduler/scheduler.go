// Package scheduler computes the delay until a cycle's next run and drives
// the run loop that fires cycles at that cadence.
package scheduler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/drydock/drydock/internal/clock"
	"github.com/drydock/drydock/internal/config"
	"github.com/drydock/drydock/internal/logging"
)

// Mode identifies which of the four cadence families governs the
// scheduler, or cron when a cron expression is configured.
type Mode string

const (
	ModeInterval Mode = "INTERVAL"
	ModeDaily    Mode = "DAILY"
	ModeWeekly   Mode = "WEEKLY"
	ModeMonthly  Mode = "MONTHLY"
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// NextDelay computes the delay until the next scheduled cycle given mode,
// the parsed UPDATE_INTERVAL, the raw UPDATE_TIME/UPDATE_DAY strings, and
// the current time. cronExpr, when non-empty, takes precedence over mode entirely.
func NextDelay(mode Mode, interval time.Duration, timeOfDay, day string, cronExpr string, now time.Time) time.Duration {
	if cronExpr != "" {
		if d, ok := nextCronDelay(cronExpr, now); ok {
			return d
		}
	}

	switch mode {
	case ModeDaily:
		return nextDailyDelay(timeOfDay, now)
	case ModeWeekly:
		return nextWeeklyDelay(day, timeOfDay, now)
	case ModeMonthly:
		return nextMonthlyDelay(day, timeOfDay, now)
	default:
		return nextIntervalDelay(interval)
	}
}

// nextIntervalDelay returns d, or the 10-minute default when d is below
// 1 second. d has normally been parsed from the UPDATE_INTERVAL string by
// config.ParseIntervalSuffix, which already returns that default for
// empty or malformed input.
func nextIntervalDelay(d time.Duration) time.Duration {
	if d < time.Second {
		return 10 * time.Minute
	}
	return d
}

func nextDailyDelay(timeOfDay string, now time.Time) time.Duration {
	hh, mm, ok := parseHHMM(timeOfDay)
	if !ok {
		return 10 * time.Minute
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

func nextWeeklyDelay(day, timeOfDay string, now time.Time) time.Duration {
	hh, mm, ok := parseHHMM(timeOfDay)
	if !ok {
		return 10 * time.Minute
	}
	target, ok := weekdays[strings.ToLower(strings.TrimSpace(day))]
	if !ok {
		return 10 * time.Minute
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, now.Location())
	daysAhead := (int(target) - int(now.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, daysAhead)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next.Sub(now)
}

func nextMonthlyDelay(day, timeOfDay string, now time.Time) time.Duration {
	hh, mm, ok := parseHHMM(timeOfDay)
	if !ok {
		return 10 * time.Minute
	}
	dom, err := strconv.Atoi(strings.TrimSpace(day))
	if err != nil {
		return 10 * time.Minute
	}
	if dom < 1 {
		dom = 1
	}
	if dom > 28 {
		dom = 28
	}

	next := time.Date(now.Year(), now.Month(), dom, hh, mm, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 1, 0)
	}
	return next.Sub(now)
}

func parseHHMM(s string) (hh, mm int, ok bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, false
	}
	return t.Hour(), t.Minute(), true
}

func nextCronDelay(expr string, now time.Time) (time.Duration, bool) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return 0, false
	}
	next := schedule.Next(now)
	return next.Sub(now), true
}

// CycleFunc runs a single cycle. The context is cancelled when the
// scheduler is stopped mid-cycle.
type CycleFunc func(ctx context.Context)

// Scheduler drives the cycle loop: run a cycle, compute the delay until
// the next one, sleep, repeat, until its context is cancelled.
type Scheduler struct {
	cfg   *config.Config
	log   *logging.Logger
	clock clock.Clock
	run   CycleFunc
}

// New constructs a Scheduler that invokes run once per cycle.
func New(cfg *config.Config, log *logging.Logger, clk clock.Clock, run CycleFunc) *Scheduler {
	return &Scheduler{cfg: cfg, log: log, clock: clk, run: run}
}

// Run performs an initial cycle immediately, then fires subsequent cycles
// at the delay NextDelay computes after each run. It returns nil when ctx
// is cancelled between cycles.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("starting initial cycle")
	s.run(ctx)

	for {
		delay := NextDelay(Mode(s.cfg.UpdateMode), s.cfg.UpdateInterval, s.cfg.UpdateTime, s.cfg.UpdateDay, s.cfg.CronExpr, s.clock.Now())
		s.log.Info("next cycle scheduled", "delay", delay)

		select {
		case <-s.clock.After(delay):
			if ctx.Err() != nil {
				return nil
			}
			s.log.Info("starting scheduled cycle")
			s.run(ctx)
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return nil
		}
	}
}
