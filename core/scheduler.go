package core

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/navigator-sdk/navigator/logger"
)

// Scheduler gives a plugin its own cron job namespace over a shared
// cron.Cron instance, so CognitiveModel/IntentPredictor-style periodic
// work doesn't need a bespoke goroutine+ticker per plugin.
type Scheduler struct {
	cron       *cron.Cron
	pluginName string
	jobIDs     map[string]cron.EntryID
}

func newScheduler(c *cron.Cron, pluginName string) *Scheduler {
	return &Scheduler{cron: c, pluginName: pluginName, jobIDs: make(map[string]cron.EntryID)}
}

// Schedule adds or replaces a job under jobName, running on cronExpr
// (standard 5-field cron syntax or an "@every"/"@hourly"-style shortcut).
// Job panics are recovered and logged; they never kill the shared cron.
func (s *Scheduler) Schedule(jobName, cronExpr string, job func()) error {
	if existing, ok := s.jobIDs[jobName]; ok {
		s.cron.Remove(existing)
		delete(s.jobIDs, jobName)
	}

	wrapped := func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Core().Error().Str("plugin", s.pluginName).Str("job", jobName).
					Interface("panic", r).Msg("scheduled job panicked")
			}
		}()
		job()
	}

	id, err := s.cron.AddFunc(cronExpr, wrapped)
	if err != nil {
		return fmt.Errorf("core: schedule %s/%s: %w", s.pluginName, jobName, err)
	}
	s.jobIDs[jobName] = id
	return nil
}

// Remove cancels a scheduled job; a no-op if it isn't scheduled.
func (s *Scheduler) Remove(jobName string) {
	if id, ok := s.jobIDs[jobName]; ok {
		s.cron.Remove(id)
		delete(s.jobIDs, jobName)
	}
}

// RemoveAll cancels every job this plugin scheduled, called by the core
// during Stop/Destroy.
func (s *Scheduler) RemoveAll() {
	for name, id := range s.jobIDs {
		s.cron.Remove(id)
		delete(s.jobIDs, name)
	}
}

// ListJobs returns this plugin's scheduled job names, order undefined.
func (s *Scheduler) ListJobs() []string {
	names := make([]string, 0, len(s.jobIDs))
	for name := range s.jobIDs {
		names = append(names, name)
	}
	return names
}
