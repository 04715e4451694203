package orchestrators

import (
	"context"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/schedule"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/triggers"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

const (
	skipConditionsNotMet = "Trigger conditions not met, workflow skipped"
	hookPrefixBehavior   = "behavior."
)

type BehavioralRequest struct {
	MemberID string                 `json:"memberId"`
	Trigger  models.BehaviorTrigger `json:"trigger"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

type Behavioral struct {
	base
	conditions *triggers.Evaluator
	limits     *triggers.LimitChecker
}

func NewBehavioral(deps Deps) *Behavioral {
	b := newBase(deps)
	var opts []triggers.Option
	if b.deps.StrictTriggerKeys {
		opts = append(opts, triggers.WithStrictUnknown())
	}
	return &Behavioral{
		base:       b,
		conditions: triggers.NewEvaluator(b.deps.Runtime.Now, opts...),
		limits:     triggers.NewLimitChecker(b.deps.ExecutionLog),
	}
}

// Run reacts to one member action: it gates on conditions and execution
// limits, raises the engagement score and delivers the event's sequence.
func (o *Behavioral) Run(ctx context.Context, req BehavioralRequest) *models.WorkflowResult {
	run := o.start(ctx, WorkflowBehavioral)
	event := BehaviorEvent(req.Trigger.Event)

	steps, ok := BehaviorSequence(event)
	if !ok {
		run.Fail("unknown behavioral event %q", req.Trigger.Event)
		return run.Finish()
	}

	member, ok := o.fetchMember(run, req.MemberID)
	if !ok {
		return run.Finish()
	}

	if !o.conditions.EvaluateConditions(member, req.Trigger.Conditions, req.Context) {
		run.Skip(skipConditionsNotMet)
		return run.Finish()
	}

	now := run.Now()
	var decision triggers.Decision
	run.Require("execution_limits", func(ctx context.Context) error {
		d, err := o.limits.Check(ctx, member.ID, req.Trigger, now)
		if err != nil {
			return err
		}
		decision = d
		return nil
	})
	if run.Stopped() {
		return run.Finish()
	}
	if !decision.Allowed {
		run.Skip(decision.SkipMessage())
		return run.Finish()
	}

	run.Stage("update_engagement", func(ctx context.Context) error {
		score := models.ClampEngagement(member.EngagementScore + EngagementBoost(event))
		err := o.retry(ctx, func(ctx context.Context) error {
			return o.deps.Members.UpdateMember(ctx, member.ID, models.MemberPatch{EngagementScore: &score})
		})
		if err != nil {
			return err
		}
		member.EngagementScore = score
		run.SetEngagementScore(score)
		run.Action("Engagement score updated to %d", score)
		return nil
	})

	scheduleSteps := make([]schedule.Step, 0, len(steps))
	for _, step := range steps {
		rendered, ok := o.personalizer.Personalize(step.TemplateID, member, req.Context)
		if !ok {
			run.Error("personalize %s: template not found", step.TemplateID)
			continue
		}
		scheduleSteps = append(scheduleSteps, schedule.Step{
			DelayHours: step.DelayHours,
			TaskType:   models.TaskBehavioralSequence,
			Data:       messageData(member, rendered).ToData(),
		})
	}
	tasks := o.scheduler.Sequence(now, req.Trigger.DelayHours, scheduleSteps)
	sent, scheduled := o.deliverSequence(run, tasks, string(event))
	run.Action("Behavioral sequence for %s: %d sent, %d scheduled", event, sent, scheduled)

	run.Stage("record_execution", func(ctx context.Context) error {
		return o.limits.Record(ctx, member.ID, req.Trigger.Event, now, decision)
	})

	run.Stage("external_hook", func(ctx context.Context) error {
		return o.deps.Hook.Trigger(ctx, hookPrefixBehavior+req.Trigger.Event, map[string]interface{}{
			"memberId":        member.ID,
			"event":           req.Trigger.Event,
			"engagementScore": member.EngagementScore,
		})
	})

	o.track(run, member.ID, map[string]interface{}{"event": req.Trigger.Event})
	return run.Finish()
}
