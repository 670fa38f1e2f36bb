package backup

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs backups on the configured cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	svc     *Service
	spec    string
	timeout time.Duration
	log     *zap.Logger
}

// NewScheduler creates a scheduler for svc. log may be nil.
func NewScheduler(svc *Service, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cron:    cron.New(),
		svc:     svc,
		spec:    svc.cfg.Schedule,
		timeout: 2 * time.Minute,
		log:     log,
	}
}

// Start registers the backup job and starts the cron loop. An empty
// schedule leaves the scheduler idle.
func (s *Scheduler) Start() error {
	if s.spec == "" {
		s.log.Info("scheduled backups disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.spec, s.runBackup); err != nil {
		return err
	}
	s.log.Info("starting backup scheduler", zap.String("schedule", s.spec), zap.String("dir", s.svc.cfg.Dir))
	s.cron.Start()
	return nil
}

// Stop stops the cron loop and waits for a running backup to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("backup scheduler stopped")
}

func (s *Scheduler) runBackup() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.svc.Run(ctx); err != nil {
		s.log.Error("scheduled backup failed", zap.Error(err))
	}
}
