package service

import (
	"context"

	"github.com/robfig/cron/v3"

	"competitive-intel-agent/internal/intel/config"
	"competitive-intel-agent/pkg/logger"
)

// NewsRefresher re-collects news for all tracked companies on a schedule.
// An empty schedule disables it.
type NewsRefresher struct {
	orchestrator *Orchestrator
	cfg          *config.Config
	logger       *logger.Logger
	cron         *cron.Cron
}

// NewNewsRefresher creates a new NewsRefresher.
func NewNewsRefresher(orch *Orchestrator, cfg *config.Config, log *logger.Logger) *NewsRefresher {
	return &NewsRefresher{
		orchestrator: orch,
		cfg:          cfg,
		logger:       log,
	}
}

// Start registers the refresh job and starts the scheduler.
func (r *NewsRefresher) Start(ctx context.Context) error {
	schedule := r.cfg.News.RefreshSchedule
	if schedule == "" {
		r.logger.Info("News refresh schedule empty, refresher disabled")
		return nil
	}

	r.cron = cron.New()
	_, err := r.cron.AddFunc(schedule, func() {
		r.logger.Info("Running scheduled news refresh")
		r.orchestrator.RefreshAllNews(ctx)
	})
	if err != nil {
		return err
	}

	r.cron.Start()
	r.logger.Info("News refresher started", logger.StringField("schedule", schedule))
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (r *NewsRefresher) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}
