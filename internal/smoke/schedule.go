package smoke

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler re-runs a job on a cron expression. It exists so the smoke
// suite can run unattended against environments that drift overnight.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

// NewScheduler builds a stopped scheduler. A nil logger falls back to
// slog.Default.
func NewScheduler(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{cron: cron.New(), log: log}
}

// Start registers the job under the given five-field cron spec and begins
// the schedule. It returns the first planned run time.
func (s *Scheduler) Start(spec string, job func()) (time.Time, error) {
	id, err := s.cron.AddFunc(spec, job)
	if err != nil {
		return time.Time{}, fmt.Errorf("cron schedule %q: %w", spec, err)
	}
	s.cron.Start()
	next := s.cron.Entry(id).Next
	s.log.Info("smoke suite scheduled", "spec", spec, "next", next)
	return next, nil
}

// Stop halts the schedule and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
