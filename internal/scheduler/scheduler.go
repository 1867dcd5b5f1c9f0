package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/notifier"
)

// Source is the evaluator surface the jobs need.
type Source interface {
	Prune() (int, error)
	Stats() model.TriggerStats
	Regime() model.RegimeHint
}

// Gauge receives the active cooldown count after each prune.
type Gauge interface {
	SetActiveCooldowns(n int)
}

// Scheduler manages the periodic maintenance jobs.
type Scheduler struct {
	Cron     *cron.Cron
	Source   Source
	Notifier notifier.Notifier
	Gauge    Gauge
	Ctx      context.Context

	log zerolog.Logger
}

// NewScheduler creates a new Scheduler. Cron specs carry a seconds field.
func NewScheduler(ctx context.Context, src Source, n notifier.Notifier, g Gauge, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Source:   src,
		Notifier: n,
		Gauge:    g,
		Ctx:      ctx,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// RegisterAll registers the prune job and the stats report job.
// An empty stats spec disables the report.
func (s *Scheduler) RegisterAll(pruneCron, statsCron string) error {
	if _, err := s.Cron.AddFunc(pruneCron, s.pruneTask); err != nil {
		return fmt.Errorf("register prune task: %w", err)
	}
	if statsCron == "" {
		return nil
	}
	if _, err := s.Cron.AddFunc(statsCron, s.statsTask); err != nil {
		return fmt.Errorf("register stats task: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunPruneNow executes the prune job immediately.
func (s *Scheduler) RunPruneNow() { s.pruneTask() }

func (s *Scheduler) pruneTask() {
	removed, err := s.Source.Prune()
	if err != nil {
		s.log.Error().Err(err).Msg("prune cooldown ledger")
		return
	}
	stats := s.Source.Stats()
	if s.Gauge != nil {
		s.Gauge.SetActiveCooldowns(stats.ActiveCooldowns)
	}
	if removed > 0 {
		s.log.Debug().Int("removed", removed).Int("active", stats.ActiveCooldowns).Msg("cooldown ledger pruned")
	}
}

func (s *Scheduler) statsTask() {
	report := notifier.FormatStats(s.Source.Stats(), s.Source.Regime())
	if err := s.Notifier.Notify(s.Ctx, report); err != nil {
		s.log.Error().Err(err).Msg("send stats report")
	}
}
