package orchestrators

import (
	"context"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/schedule"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

type DripRequest struct {
	MemberID     string `json:"memberId"`
	CampaignType string `json:"campaignType"`
}

type Drip struct {
	base
}

func NewDrip(deps Deps) *Drip {
	return &Drip{base: newBase(deps)}
}

// Run enrolls a member and pre-schedules every campaign step, day 0
// included. Step conditions travel with the task and are re-checked by the
// runner when the step falls due.
func (o *Drip) Run(ctx context.Context, req DripRequest) *models.WorkflowResult {
	run := o.start(ctx, WorkflowDrip)

	campaignType, err := models.ParseCampaignType(req.CampaignType)
	if err != nil {
		run.Fail("unknown campaign type %q", req.CampaignType)
		return run.Finish()
	}
	def, _ := DripCampaign(campaignType)

	member, ok := o.fetchMember(run, req.MemberID)
	if !ok {
		return run.Finish()
	}
	if !member.EmailSubscribed {
		run.Skip("Member not subscribed to email, campaign enrollment skipped")
		return run.Finish()
	}

	start := run.Now()
	var created bool
	ok = run.Require("save_campaign_state", func(ctx context.Context) error {
		c, err := o.deps.Campaigns.SaveCampaignState(ctx, models.CampaignState{
			MemberID:    member.ID,
			CampaignID:  string(def.Type),
			StartDate:   start,
			CurrentStep: 0,
			Status:      models.CampaignStatusActive,
		})
		created = c
		return err
	})
	if !ok {
		return run.Finish()
	}
	if !created {
		run.Skip("Member already enrolled in " + def.Name + ", enrollment skipped")
		return run.Finish()
	}
	run.Action("Enrolled member %s in %s", member.ID, def.Name)

	steps := make([]schedule.DayStep, 0, len(def.Steps))
	for i, step := range def.Steps {
		rendered, ok := o.personalizer.Personalize(step.TemplateID, member, nil)
		if !ok {
			run.Error("campaign step %d: template %s not found", i, step.TemplateID)
			continue
		}
		payload := messageData(member, rendered)
		payload.Condition = step.Condition
		payload.CampaignID = string(def.Type)
		payload.Step = i
		steps = append(steps, schedule.DayStep{
			Day:      step.Day,
			TaskType: models.TaskDripStep,
			Data:     payload.ToData(),
		})
	}
	run.Schedule(o.scheduler.DaySequence(start, steps)...)
	run.Action("Scheduled %d campaign steps over %d days", len(steps), def.DurationDays)

	o.track(run, member.ID, map[string]interface{}{"campaign": string(def.Type)})
	return run.Finish()
}
