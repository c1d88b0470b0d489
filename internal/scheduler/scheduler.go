package scheduler

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/rafaeyza/salestrack/internal/config"
	"github.com/rafaeyza/salestrack/internal/replay"
)

// Scheduler manages scheduled tasks on the agent. Its one job is the replay
// safety net: even if the connectivity-regained edge is missed (agent
// restarted while online, probe raced a drain), queued visits still get a
// periodic delivery attempt.
type Scheduler struct {
	cron     *cron.Cron
	replayer *replay.Replayer
	cfg      config.SyncConfig
	logger   *zap.Logger
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(cfg config.SyncConfig, replayer *replay.Replayer, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		cron:     cron.New(),
		replayer: replayer,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", zap.String("replay_cron", s.cfg.ReplayCron))

	_, err := s.cron.AddFunc(s.cfg.ReplayCron, func() {
		s.logger.Debug("replay safety net tick")
		s.replayer.Wake()
	})
	if err != nil {
		s.logger.Error("failed to schedule replay safety net", zap.Error(err))
	}

	s.cron.Start()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}
