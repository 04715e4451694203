package workflow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/logger"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/metrics"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/observability"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

const (
	DefaultCallTimeout = 10 * time.Second
	tracerName         = "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/workflow"
)

const (
	outcomeSuccess = "success"
	outcomeSkipped = "skipped"
	outcomeFailure = "failure"
)

// Runtime is what every run needs besides its collaborators.
type Runtime struct {
	Logger      logger.Logger
	Observer    *observability.Observability
	CallTimeout time.Duration
	Now         func() time.Time
}

func (rt Runtime) normalized() Runtime {
	if rt.Logger == nil {
		rt.Logger = logger.NewNoOpLogger()
	}
	if rt.CallTimeout <= 0 {
		rt.CallTimeout = DefaultCallTimeout
	}
	if rt.Now == nil {
		rt.Now = time.Now
	}
	return rt
}

// Run is one orchestrator invocation. Stages append to ActionsExecuted or
// Errors; after Fail, Skip, or a failed Require no further stage runs.
type Run struct {
	ctx     context.Context
	span    trace.Span
	tracer  trace.Tracer
	rt      Runtime
	log     logger.Logger
	started time.Time
	result  *models.WorkflowResult
	stopped bool
	skipped bool
}

// Start opens a run named workflow. Callers must call Finish.
func Start(ctx context.Context, workflow string, rt Runtime) *Run {
	rt = rt.normalized()
	tracer := observability.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "workflow."+workflow, trace.WithAttributes(attribute.String("workflow", workflow)))

	return &Run{
		ctx:     ctx,
		span:    span,
		tracer:  tracer,
		rt:      rt,
		log:     rt.Logger.WithFields(map[string]interface{}{"workflow": workflow}),
		started: time.Now(),
		result: &models.WorkflowResult{
			Workflow:        workflow,
			ActionsExecuted: []string{},
			ScheduledTasks:  []models.ScheduledTask{},
			Errors:          []string{},
		},
	}
}

func (r *Run) Context() context.Context { return r.ctx }

func (r *Run) Logger() logger.Logger { return r.log }

func (r *Run) Now() time.Time { return r.rt.Now() }

// Stopped reports whether later stages will be skipped.
func (r *Run) Stopped() bool { return r.stopped }

// Stage runs fn with the call timeout. A failure is recorded and the run
// continues. It returns whether fn succeeded.
func (r *Run) Stage(name string, fn func(ctx context.Context) error) bool {
	if r.stopped {
		return false
	}
	err := r.call(name, fn)
	if err != nil {
		r.stageError(name, err)
		return false
	}
	return true
}

// Require is a Stage whose failure stops the run.
func (r *Run) Require(name string, fn func(ctx context.Context) error) bool {
	if r.Stage(name, fn) {
		return true
	}
	r.stopped = true
	return false
}

func (r *Run) call(name string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(r.ctx, r.rt.CallTimeout)
	defer cancel()

	ctx, span := r.tracer.Start(ctx, "stage."+name)
	defer span.End()

	err := fn(ctx)
	if err == nil && ctx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("timed out after %s", r.rt.CallTimeout)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Run) stageError(stage string, err error) {
	msg := fmt.Sprintf("%s: %v", stage, err)
	r.result.Errors = append(r.result.Errors, msg)
	metrics.WorkflowStageFailures.WithLabelValues(r.result.Workflow, stage).Inc()
	r.log.Warn("stage failed", map[string]interface{}{"stage": stage, "error": err.Error()})
}

// Action records a completed action.
func (r *Run) Action(format string, args ...interface{}) {
	r.result.ActionsExecuted = append(r.result.ActionsExecuted, fmt.Sprintf(format, args...))
}

// Error records a non-fatal error without stopping the run.
func (r *Run) Error(format string, args ...interface{}) {
	r.result.Errors = append(r.result.Errors, fmt.Sprintf(format, args...))
}

// Skip ends the run as a soft skip: the reason becomes an action and the
// result stays successful.
func (r *Run) Skip(reason string) {
	r.result.ActionsExecuted = append(r.result.ActionsExecuted, reason)
	r.stopped = true
	r.skipped = true
	r.log.Info("workflow skipped", map[string]interface{}{"reason": reason})
}

// Fail ends the run with a hard failure.
func (r *Run) Fail(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.result.Errors = append(r.result.Errors, msg)
	r.stopped = true
	r.log.Error("workflow failed", map[string]interface{}{"error": msg})
}

// Schedule appends tasks to the result in order.
func (r *Run) Schedule(tasks ...models.ScheduledTask) {
	for _, t := range tasks {
		r.result.ScheduledTasks = append(r.result.ScheduledTasks, t)
		metrics.TasksScheduled.WithLabelValues(t.TaskType).Inc()
	}
}

func (r *Run) SetSegmentation(s *models.SegmentationSummary) {
	r.result.SegmentationResults = s
}

func (r *Run) SetEngagementScore(score int) {
	r.result.EngagementScore = &score
}

// Result exposes the in-progress result, mostly for tracking stages.
func (r *Run) Result() *models.WorkflowResult {
	return r.result
}

// Finish settles Success, records metrics and closes the run span.
func (r *Run) Finish() *models.WorkflowResult {
	res := r.result
	res.Success = len(res.Errors) == 0
	elapsed := time.Since(r.started)

	outcome := outcomeSuccess
	switch {
	case !res.Success:
		outcome = outcomeFailure
		r.span.SetStatus(codes.Error, res.Errors[0])
	case r.skipped:
		outcome = outcomeSkipped
	}
	metrics.WorkflowRuns.WithLabelValues(res.Workflow, outcome).Inc()
	metrics.WorkflowDuration.WithLabelValues(res.Workflow).Observe(elapsed.Seconds())
	r.rt.Observer.RecordWorkflow(r.ctx, res.Workflow, res.Success, elapsed)

	r.span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.Int("actions", len(res.ActionsExecuted)),
		attribute.Int("scheduled_tasks", len(res.ScheduledTasks)),
	)
	r.span.End()

	r.log.Info("workflow finished", map[string]interface{}{
		"outcome":        outcome,
		"actions":        len(res.ActionsExecuted),
		"scheduledTasks": len(res.ScheduledTasks),
		"errors":         len(res.Errors),
		"durationMs":     elapsed.Milliseconds(),
	})
	return res
}

// TrackingEvent summarizes the run for an AnalyticsSink.
func (r *Run) TrackingEvent(memberID string, attrs map[string]interface{}) models.TrackingEvent {
	return models.TrackingEvent{
		Workflow:       r.result.Workflow,
		MemberID:       memberID,
		Success:        len(r.result.Errors) == 0,
		Actions:        len(r.result.ActionsExecuted),
		ScheduledTasks: len(r.result.ScheduledTasks),
		Errors:         len(r.result.Errors),
		Attributes:     attrs,
		Timestamp:      r.rt.Now(),
	}
}
