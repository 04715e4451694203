// Package orchestrators composes segmentation, trigger evaluation,
// personalization and scheduling into the automation workflows.
package orchestrators

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/personalize"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/schedule"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/tiers"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/workflow"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/metrics"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

// Workflow names reported in WorkflowResult.Workflow and metrics labels.
const (
	WorkflowNewsletter        = "newsletter"
	WorkflowBehavioral        = "behavioral_trigger"
	WorkflowReengagement      = "reengagement"
	WorkflowDrip              = "drip_campaign"
	WorkflowABTest            = "ab_test"
	WorkflowDonationAck       = "donation_acknowledgment"
	WorkflowEventRegistration = "event_registration"
	WorkflowEventCheckIn      = "event_check_in"
)

const (
	DefaultInactiveThresholdDays = 90
	defaultRetryAttempts         = 3
	defaultRetryBase             = 200 * time.Millisecond
)

// Deps are the collaborators every orchestrator is built from. Nil optional
// collaborators are replaced with no-op implementations.
type Deps struct {
	Members      workflow.MemberStore
	Transport    workflow.Transport
	ExecutionLog workflow.ExecutionLog
	Analytics    workflow.AnalyticsSink
	Hook         workflow.ExternalAutomationHook
	Campaigns    workflow.CampaignStateStore
	Templates    personalize.TemplateSource

	Runtime      workflow.Runtime
	Organization string

	// Shuffle reorders A/B audiences; defaults to math/rand.
	Shuffle func(n int, swap func(i, j int))

	Ladder                tiers.Ladder
	NewsletterHour        int
	InactiveThresholdDays int
	EventReminderHours    []int
	ABAnalysisHours       int
	ABDeploymentHours     int
	StrictTriggerKeys     bool

	RetryAttempts int
	RetryBase     time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Analytics == nil {
		d.Analytics = workflow.NoopAnalytics{}
	}
	if d.Hook == nil {
		d.Hook = workflow.NoopHook{}
	}
	if d.Campaigns == nil {
		d.Campaigns = workflow.NewMemoryCampaignStates()
	}
	if d.ExecutionLog == nil {
		d.ExecutionLog = workflow.NewMemoryExecutionLog()
	}
	if d.Runtime.Now == nil {
		d.Runtime.Now = time.Now
	}
	if d.Shuffle == nil {
		d.Shuffle = rand.Shuffle
	}
	if d.Ladder.Name == "" {
		d.Ladder = tiers.Canonical()
	}
	if d.NewsletterHour == 0 {
		d.NewsletterHour = schedule.DefaultNewsletterHour
	}
	if d.InactiveThresholdDays <= 0 {
		d.InactiveThresholdDays = DefaultInactiveThresholdDays
	}
	if len(d.EventReminderHours) == 0 {
		d.EventReminderHours = DefaultEventReminderHours()
	}
	if d.ABAnalysisHours <= 0 {
		d.ABAnalysisHours = 48
	}
	if d.ABDeploymentHours <= 0 {
		d.ABDeploymentHours = 72
	}
	if d.RetryAttempts <= 0 {
		d.RetryAttempts = defaultRetryAttempts
	}
	if d.RetryBase <= 0 {
		d.RetryBase = defaultRetryBase
	}
	return d
}

// base holds what every orchestrator shares.
type base struct {
	deps         Deps
	personalizer *personalize.Personalizer
	scheduler    *schedule.Scheduler
}

func newBase(deps Deps) base {
	deps = deps.withDefaults()
	return base{
		deps:         deps,
		personalizer: personalize.New(deps.Templates, deps.Organization),
		scheduler:    schedule.New(deps.Runtime.Now),
	}
}

func (b base) start(ctx context.Context, name string) *workflow.Run {
	return workflow.Start(ctx, name, b.deps.Runtime)
}

// send delivers a rendered template to member right away.
func (b base) send(ctx context.Context, member models.Member, r personalize.Rendered) error {
	err := b.deps.Transport.Send(ctx, r.Channel, member.Recipient(), models.Message{
		Subject: r.Subject,
		Content: r.Content,
	})
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	metrics.Deliveries.WithLabelValues(string(r.Channel), outcome).Inc()
	return err
}

// messageData is the task payload for a pre-rendered message.
func messageData(member models.Member, r personalize.Rendered) models.MessagePayload {
	return models.MessagePayload{
		MemberID:   member.ID,
		Channel:    r.Channel,
		Recipient:  member.Recipient(),
		TemplateID: r.TemplateID,
		Subject:    r.Subject,
		Content:    r.Content,
	}
}

// deliverSequence sends the due part of tasks now and schedules the rest.
// Failed immediate sends are recorded per step and never stop later steps.
func (b base) deliverSequence(run *workflow.Run, tasks []models.ScheduledTask, label string) (sent, scheduled int) {
	due, future := schedule.SplitDue(tasks, b.deps.Runtime.Now())
	for _, task := range due {
		payload, err := models.ParseMessagePayload(task.Data)
		if err != nil {
			run.Error("%s %s: %v", label, task.TaskType, err)
			continue
		}
		ok := run.Stage("send_message", func(ctx context.Context) error {
			err := b.deps.Transport.Send(ctx, payload.Channel, payload.Recipient, models.Message{
				Subject: payload.Subject,
				Content: payload.Content,
			})
			if err != nil {
				return fmt.Errorf("%s %s: %w", label, payload.TemplateID, err)
			}
			return nil
		})
		outcome := "sent"
		if ok {
			sent++
		} else {
			outcome = "failed"
		}
		metrics.Deliveries.WithLabelValues(string(payload.Channel), outcome).Inc()
	}
	run.Schedule(future...)
	return sent, len(future)
}

func (b base) track(run *workflow.Run, memberID string, attrs map[string]interface{}) {
	run.Stage("tracking", func(ctx context.Context) error {
		return b.deps.Analytics.Track(ctx, run.TrackingEvent(memberID, attrs))
	})
}

func (b base) retry(ctx context.Context, fn func(ctx context.Context) error) error {
	return workflow.Retry(ctx, b.deps.RetryAttempts, b.deps.RetryBase, fn)
}

func (b base) fetchMember(run *workflow.Run, memberID string) (models.Member, bool) {
	var member models.Member
	ok := run.Require("fetch_member", func(ctx context.Context) error {
		m, err := b.deps.Members.GetMember(ctx, memberID)
		if err != nil {
			return err
		}
		member = m
		return nil
	})
	return member, ok
}
