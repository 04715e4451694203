// Package jobs runs the recurring automation work on cron schedules: the
// due-task runner and the newsletter and re-engagement ticks.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/dispatcher"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/errors"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/logger"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/runner"
)

// EventHandler is satisfied by *intake.Intake.
type EventHandler interface {
	Handle(ctx context.Context, ev dispatcher.Event, messageID string) (*models.WorkflowResult, error)
}

type TaskRunner interface {
	RunOnce(ctx context.Context) (runner.Summary, error)
}

// Job is one unit of recurring work. at is the time the schedule fired.
type Job func(ctx context.Context, at time.Time) error

type Scheduler struct {
	cron    *cron.Cron
	logger  logger.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewScheduler builds a scheduler whose jobs recover from panics and never
// overlap with themselves. Each run gets timeout as its deadline.
func NewScheduler(log logger.Logger, timeout time.Duration) *Scheduler {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	cronLogger := cronLogAdapter{log: log}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		logger:  log,
		timeout: timeout,
		now:     time.Now,
	}
}

// Register adds job under the cron expression expr. An empty expr leaves the job disabled.
func (s *Scheduler) Register(name, expr string, job Job) error {
	if expr == "" {
		s.logger.Info("job disabled", map[string]interface{}{"job": name})
		return nil
	}
	if _, err := s.cron.AddFunc(expr, s.wrap(name, job)); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, expr, err)
	}
	s.logger.Info("job scheduled", map[string]interface{}{"job": name, "schedule": expr})
	return nil
}

func (s *Scheduler) wrap(name string, job Job) func() {
	return func() {
		at := s.now()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := job(ctx, at); err != nil {
			s.logger.Error("job failed", map[string]interface{}{
				"job":      name,
				"error":    err.Error(),
				"duration": time.Since(at).String(),
			})
		}
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs; the returned context is done once running jobs
// finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunnerJob fires due tasks until a pass claims nothing or ctx runs out.
func RunnerJob(r TaskRunner, log logger.Logger) Job {
	return func(ctx context.Context, _ time.Time) error {
		for ctx.Err() == nil {
			sum, err := r.RunOnce(ctx)
			if err != nil {
				return err
			}
			if sum.Claimed == 0 {
				return nil
			}
			log.Debug("runner pass", map[string]interface{}{"claimed": sum.Claimed})
		}
		return nil
	}
}

// TickJob raises eventType with an empty payload. The message id is derived
// from the firing minute so replicas sharing a deduplicator fire it once.
func TickJob(h EventHandler, eventType dispatcher.EventType) Job {
	return func(ctx context.Context, at time.Time) error {
		id := fmt.Sprintf("%s@%s", eventType, at.UTC().Truncate(time.Minute).Format(time.RFC3339))
		result, err := h.Handle(ctx, dispatcher.Event{Type: eventType}, id)
		if err != nil {
			return err
		}
		if result != nil && !result.Success {
			return errors.NewWorkflowFailedError(result.Workflow, result.Errors)
		}
		return nil
	}
}

// cronLogAdapter satisfies cron.Logger.
type cronLogAdapter struct {
	log logger.Logger
}

func (a cronLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.log.Debug(msg, kvFields(keysAndValues))
}

func (a cronLogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := kvFields(keysAndValues)
	fields["error"] = err.Error()
	a.log.Error(msg, fields)
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
