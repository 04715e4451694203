// Package runner fires scheduled tasks once they fall due: it claims them
// from the queue, re-checks their preconditions and hands them to the
// transport, the CRM, or the external automation hook.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/orchestrators"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/personalize"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/tiers"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/triggers"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/workflow"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/errors"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/logger"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/metrics"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/store/postgres"
)

// Hook events raised for A/B tasks; the external system owns winner
// selection.
const (
	HookABTestAnalysis = "ab_test.analysis"
	HookABTestDeploy   = "ab_test.deploy_winner"
)

const (
	DefaultBatchSize   = 100
	DefaultMaxAttempts = 5
	DefaultRetryBase   = time.Minute
)

// Queue is the persistent side of the task sink.
type Queue interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]postgres.ClaimedTask, error)
	Complete(ctx context.Context, id string) error
	Skip(ctx context.Context, id, reason string) error
	Fail(ctx context.Context, id string, cause error, retryAt *time.Time) error
}

type CampaignProgress interface {
	AdvanceCampaign(ctx context.Context, memberID, campaignID string, step int, last bool) error
}

type Config struct {
	BatchSize   int
	MaxAttempts int
	RetryBase   time.Duration
}

type Deps struct {
	Queue        Queue
	Members      workflow.MemberStore
	Transport    workflow.Transport
	StaffTasks   workflow.StaffTaskSink
	Hook         workflow.ExternalAutomationHook
	Campaigns    CampaignProgress
	Templates    personalize.TemplateSource
	Organization string
	Ladder       tiers.Ladder
	Logger       logger.Logger
	Now          func() time.Time
}

// Summary counts the outcomes of one RunOnce pass.
type Summary struct {
	Claimed   int
	Completed int
	Skipped   int
	Retried   int
	Failed    int
}

type Runner struct {
	config       Config
	deps         Deps
	conditions   *triggers.StepConditionChecker
	personalizer *personalize.Personalizer
	logger       logger.Logger
}

func New(config Config, deps Deps) *Runner {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.RetryBase <= 0 {
		config.RetryBase = DefaultRetryBase
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	if deps.StaffTasks == nil {
		deps.StaffTasks = workflow.NoopStaffTasks{}
	}
	if deps.Hook == nil {
		deps.Hook = workflow.NoopHook{}
	}
	if deps.Ladder.Name == "" {
		deps.Ladder = tiers.Canonical()
	}
	return &Runner{
		config:       config,
		deps:         deps,
		conditions:   triggers.NewStepConditionChecker(deps.Members, deps.Ladder, deps.Now),
		personalizer: personalize.New(deps.Templates, deps.Organization),
		logger:       deps.Logger.WithFields(map[string]interface{}{"component": "runner"}),
	}
}

// skipped marks a task whose preconditions no longer hold.
type skipped struct{ reason string }

func (s skipped) Error() string { return s.reason }

// RunOnce claims one batch of due tasks and processes each in turn.
func (r *Runner) RunOnce(ctx context.Context) (Summary, error) {
	var sum Summary
	now := r.deps.Now()

	claimed, err := r.deps.Queue.ClaimDue(ctx, now, r.config.BatchSize)
	if err != nil {
		return sum, err
	}
	sum.Claimed = len(claimed)

	for _, c := range claimed {
		if ctx.Err() != nil {
			// unprocessed claims go back to pending for the next pass
			r.retry(context.Background(), c, ctx.Err(), now, &sum)
			continue
		}
		r.process(ctx, c, &sum)
	}

	if sum.Claimed > 0 {
		r.logger.Info("runner pass finished", map[string]interface{}{
			"claimed":   sum.Claimed,
			"completed": sum.Completed,
			"skipped":   sum.Skipped,
			"retried":   sum.Retried,
			"failed":    sum.Failed,
		})
	}
	return sum, nil
}

func (r *Runner) process(ctx context.Context, c postgres.ClaimedTask, sum *Summary) {
	task := c.Task
	err := r.execute(ctx, task)

	var outcome string
	switch e := err.(type) {
	case nil:
		outcome = "completed"
		sum.Completed++
		r.mark(ctx, task, r.deps.Queue.Complete(ctx, task.ID))
	case skipped:
		outcome = "skipped"
		sum.Skipped++
		r.mark(ctx, task, r.deps.Queue.Skip(ctx, task.ID, e.reason))
	default:
		if retryable(err) && c.Attempt < r.config.MaxAttempts {
			outcome = "retried"
			r.retry(ctx, c, err, r.deps.Now(), sum)
		} else {
			outcome = "failed"
			sum.Failed++
			r.mark(ctx, task, r.deps.Queue.Fail(ctx, task.ID, err, nil))
			r.logger.Error("task failed", map[string]interface{}{
				"taskId":   task.ID,
				"taskType": task.TaskType,
				"attempt":  c.Attempt,
				"error":    err.Error(),
			})
		}
	}
	metrics.RunnerTasks.WithLabelValues(task.TaskType, outcome).Inc()
}

func (r *Runner) retry(ctx context.Context, c postgres.ClaimedTask, cause error, now time.Time, sum *Summary) {
	sum.Retried++
	retryAt := now.Add(r.backoff(c.Attempt))
	r.mark(ctx, c.Task, r.deps.Queue.Fail(ctx, c.Task.ID, cause, &retryAt))
	r.logger.Warn("task will be retried", map[string]interface{}{
		"taskId":  c.Task.ID,
		"attempt": c.Attempt,
		"retryAt": retryAt,
		"error":   cause.Error(),
	})
}

// backoff doubles per attempt and is capped at a day.
func (r *Runner) backoff(attempt int) time.Duration {
	d := r.config.RetryBase
	for i := 1; i < attempt && d < 24*time.Hour; i++ {
		d *= 2
	}
	if d > 24*time.Hour {
		d = 24 * time.Hour
	}
	return d
}

func (r *Runner) mark(_ context.Context, task models.ScheduledTask, err error) {
	if err != nil {
		r.logger.Error("failed to update task status", map[string]interface{}{
			"taskId": task.ID,
			"error":  err.Error(),
		})
	}
}

func retryable(err error) bool {
	if stdErr, ok := errors.AsStandardError(err); ok {
		return stdErr.Retryable
	}
	return true
}

func (r *Runner) execute(ctx context.Context, task models.ScheduledTask) error {
	switch task.TaskType {
	case models.TaskStaffFollowUp:
		return r.staffFollowUp(ctx, task)
	case models.TaskABTestSend:
		return r.abTestSend(ctx, task)
	case models.TaskABTestAnalysis:
		return r.deps.Hook.Trigger(ctx, HookABTestAnalysis, task.Data)
	case models.TaskABTestWinnerDeploy:
		return r.deps.Hook.Trigger(ctx, HookABTestDeploy, task.Data)
	case models.TaskSendMessage, models.TaskSendNewsletter, models.TaskSendTaxReceipt,
		models.TaskSendImpactUpdate, models.TaskDonorRecognition, models.TaskTierCelebration,
		models.TaskDripStep, models.TaskEventReminder, models.TaskEventSurvey, models.TaskEventFollowUp,
		models.TaskReengagementStep, models.TaskBehavioralSequence, models.TaskThankYou,
		models.TaskEventRegistrationAck:
		return r.deliver(ctx, task)
	default:
		return errors.NewInvalidInputError(fmt.Sprintf("no handler for task type %q", task.TaskType))
	}
}

// deliver sends a pre-rendered message after re-checking subscription and
// the step condition against the member's current record.
func (r *Runner) deliver(ctx context.Context, task models.ScheduledTask) error {
	p, err := models.ParseMessagePayload(task.Data)
	if err != nil {
		return errors.NewInvalidInputError(err.Error())
	}

	member, err := r.deps.Members.GetMember(ctx, p.MemberID)
	if err != nil {
		return err
	}

	if err := r.precheck(ctx, member, p); err != nil {
		if _, ok := err.(skipped); ok {
			r.advance(ctx, task, p)
		}
		return err
	}

	err = r.deps.Transport.Send(ctx, p.Channel, member.Recipient(), models.Message{
		Subject:     p.Subject,
		Content:     p.Content,
		Attachments: p.Attachments,
	})
	recordDelivery(p.Channel, err)
	if err != nil {
		return err
	}
	r.advance(ctx, task, p)
	return nil
}

func (r *Runner) precheck(ctx context.Context, member models.Member, p models.MessagePayload) error {
	if p.Channel == models.ChannelEmail && !member.EmailSubscribed {
		return skipped{reason: "member unsubscribed from email"}
	}
	ok, err := r.conditions.Check(ctx, member, p.Condition)
	if err != nil {
		return err
	}
	if !ok {
		return skipped{reason: fmt.Sprintf("step condition %s no longer holds", p.Condition)}
	}
	return nil
}

// advance moves a drip enrollment past the step, whether it was sent or
// skipped.
func (r *Runner) advance(ctx context.Context, task models.ScheduledTask, p models.MessagePayload) {
	if task.TaskType != models.TaskDripStep || r.deps.Campaigns == nil || p.CampaignID == "" {
		return
	}
	last := false
	if ct, err := models.ParseCampaignType(p.CampaignID); err == nil {
		if def, ok := orchestrators.DripCampaign(ct); ok {
			last = p.Step >= len(def.Steps)-1
		}
	}
	if err := r.deps.Campaigns.AdvanceCampaign(ctx, p.MemberID, p.CampaignID, p.Step, last); err != nil {
		r.logger.Warn("failed to advance campaign", map[string]interface{}{
			"memberId":   p.MemberID,
			"campaignId": p.CampaignID,
			"step":       p.Step,
			"error":      err.Error(),
		})
	}
}

func (r *Runner) staffFollowUp(ctx context.Context, task models.ScheduledTask) error {
	subject, _ := task.Data["subject"].(string)
	if subject == "" {
		return errors.NewInvalidInputError("staff follow-up without subject")
	}
	memberID, _ := task.Data["memberId"].(string)
	description, _ := task.Data["description"].(string)
	priority, _ := task.Data["priority"].(string)

	return r.deps.StaffTasks.CreateTask(ctx, models.StaffTask{
		Subject:     subject,
		Description: description,
		MemberID:    memberID,
		DueDate:     r.deps.Now(),
		Priority:    models.Priority(priority),
	})
}

// abTestSend personalizes the variant template for every member of the
// group. Individual failures are logged; the task fails only when nothing
// could be sent.
func (r *Runner) abTestSend(ctx context.Context, task models.ScheduledTask) error {
	templateID, _ := task.Data["templateId"].(string)
	testID, _ := task.Data["testId"].(string)
	variantID, _ := task.Data["variantId"].(string)
	memberIDs := stringSlice(task.Data["memberIds"])

	var sent, failed int
	var lastErr error
	for _, id := range memberIDs {
		member, err := r.deps.Members.GetMember(ctx, id)
		if err != nil {
			failed++
			lastErr = err
			continue
		}
		if !member.EmailSubscribed {
			continue
		}
		rendered, ok := r.personalizer.Personalize(templateID, member, map[string]interface{}{
			"test_id":    testID,
			"variant_id": variantID,
		})
		if !ok {
			return errors.NewTemplateNotFoundError(templateID)
		}
		err = r.deps.Transport.Send(ctx, rendered.Channel, member.Recipient(), models.Message{
			Subject: rendered.Subject,
			Content: rendered.Content,
		})
		recordDelivery(rendered.Channel, err)
		if err != nil {
			failed++
			lastErr = err
			continue
		}
		sent++
	}

	if failed > 0 {
		r.logger.Warn("A/B variant partially delivered", map[string]interface{}{
			"testId":    testID,
			"variantId": variantID,
			"sent":      sent,
			"failed":    failed,
		})
	}
	if sent == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}

func recordDelivery(channel models.Channel, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	metrics.Deliveries.WithLabelValues(string(channel), outcome).Inc()
}

// stringSlice accepts the []string written by the scheduler and the
// []interface{} read back from JSON.
func stringSlice(v interface{}) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
