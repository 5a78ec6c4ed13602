package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/sdiouf/wabot"
	"github.com/sdiouf/wabot/internal/config"
)

// Scheduler sends the configured broadcast message on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	bot    *wabot.Client
	cfg    config.BroadcastConfig
	logger *zap.Logger
}

// NewScheduler creates a scheduler around the bot client.
func NewScheduler(cfg config.BroadcastConfig, bot *wabot.Client, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:   cron.New(),
		bot:    bot,
		cfg:    cfg,
		logger: logger,
	}
}

// Start registers the broadcast job and starts the cron loop. Without a
// configured recipient the scheduler stays idle.
func (s *Scheduler) Start() {
	if s.cfg.Recipient == "" {
		s.logger.Info("no broadcast recipient configured, scheduler idle")
		return
	}

	s.logger.Info("starting scheduler", zap.String("schedule", s.cfg.CronSchedule))
	if _, err := s.cron.AddFunc(s.cfg.CronSchedule, s.sendBroadcast); err != nil {
		s.logger.Error("failed to schedule broadcast", zap.Error(err))
		return
	}
	s.cron.Start()
}

// Stop stops the cron loop.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

func (s *Scheduler) sendBroadcast() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.bot.SendText(ctx, s.cfg.Recipient, s.cfg.Message); err != nil {
		s.logger.Error("failed to send broadcast", zap.Error(err))
		return
	}
	s.logger.Info("broadcast sent", zap.String("to", s.cfg.Recipient))
}
