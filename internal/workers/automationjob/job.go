// Package automationjob is the job plumbing shared by the automation
// workers: variable validation, event hand-off, and completing or failing
// the Zeebe job.
package automationjob

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/dispatcher"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/errors"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/logger"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/metrics"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/validation"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

// EventHandler is satisfied by *intake.Intake.
type EventHandler interface {
	Handle(ctx context.Context, ev dispatcher.Event, messageID string) (*models.WorkflowResult, error)
}

// Output is the variable set every automation job completes with.
type Output struct {
	Workflow        string                      `json:"workflow"`
	WorkflowSuccess bool                        `json:"workflowSuccess"`
	Duplicate       bool                        `json:"duplicate,omitempty"`
	ActionsExecuted []string                    `json:"actionsExecuted"`
	ScheduledTasks  int                         `json:"scheduledTaskCount"`
	WorkflowErrors  []string                    `json:"workflowErrors,omitempty"`
	EngagementScore *int                        `json:"engagementScore,omitempty"`
	Segmentation    *models.SegmentationSummary `json:"segmentation,omitempty"`
}

// FromResult flattens a workflow result. A nil result is a duplicate
// delivery that was already handled.
func FromResult(eventType dispatcher.EventType, r *models.WorkflowResult) *Output {
	if r == nil {
		return &Output{Workflow: string(eventType), WorkflowSuccess: true, Duplicate: true, ActionsExecuted: []string{}}
	}
	actions := r.ActionsExecuted
	if actions == nil {
		actions = []string{}
	}
	return &Output{
		Workflow:        r.Workflow,
		WorkflowSuccess: r.Success,
		ActionsExecuted: actions,
		ScheduledTasks:  len(r.ScheduledTasks),
		WorkflowErrors:  r.Errors,
		EngagementScore: r.EngagementScore,
		Segmentation:    r.SegmentationResults,
	}
}

// Raise encodes payload as an event and hands it to h.
func Raise(ctx context.Context, h EventHandler, eventType dispatcher.EventType, payload interface{}, messageID string) (*Output, error) {
	ev, err := dispatcher.NewEvent(eventType, payload)
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	result, err := h.Handle(ctx, ev, messageID)
	if err != nil {
		return nil, err
	}
	return FromResult(eventType, result), nil
}

// Decode validates the job variables against schema and unmarshals them
// into out.
func Decode(job entities.Job, schema validation.JSONSchema, out interface{}) error {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return errors.NewInvalidInputError(fmt.Sprintf("parse job variables: %v", err))
	}

	result := validation.ValidateInput(variables, schema)
	if !result.Valid {
		return errors.NewInvalidInputError(strings.Join(result.GetErrorMessages(), "; "))
	}

	if err := json.Unmarshal([]byte(job.GetVariables()), out); err != nil {
		return errors.NewInvalidInputError(fmt.Sprintf("decode job variables: %v", err))
	}
	return nil
}

// MessageID keys a job for redelivery protection; Zeebe keeps the job key
// across retries.
func MessageID(job entities.Job) string {
	return fmt.Sprintf("zeebe-job-%d", job.GetKey())
}

// Runner completes or fails jobs for one task type.
type Runner struct {
	taskType string
	timeout  time.Duration
	logger   logger.Logger
	errors   *errors.ErrorHandler
}

func NewRunner(taskType string, timeout time.Duration, log logger.Logger) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{
		taskType: taskType,
		timeout:  timeout,
		logger:   log,
		errors:   errors.NewErrorHandler(log),
	}
}

// Run executes fn under the job timeout. Errors go through the shared error
// handler; a successful Output completes the job.
func (r *Runner) Run(client worker.JobClient, job entities.Job, fn func(ctx context.Context) (*Output, error)) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(r.taskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(r.taskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	r.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
		"worker":             r.taskType,
	})

	output, err := fn(ctx)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(r.taskType, errorCode(err)).Inc()
		r.errors.HandleJobError(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		r.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		r.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(r.taskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(r.taskType).Observe(time.Since(startTime).Seconds())
	r.logger.Info("job completed", map[string]interface{}{
		"jobKey":          job.GetKey(),
		"workflow":        output.Workflow,
		"workflowSuccess": output.WorkflowSuccess,
		"scheduledTasks":  output.ScheduledTasks,
	})
}

func errorCode(err error) string {
	if stdErr, ok := errors.AsStandardError(err); ok {
		return string(stdErr.Code)
	}
	return "INTERNAL_ERROR"
}
