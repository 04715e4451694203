package orchestrators

import (
	"context"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/schedule"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/segmentation"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

type NewsletterRequest struct {
	TemplateID string                    `json:"templateId"`
	Rules      []models.SegmentationRule `json:"rules"`
	Context    map[string]interface{}    `json:"context,omitempty"`
}

type Newsletter struct {
	base
	segmenter *segmentation.Evaluator
}

func NewNewsletter(deps Deps) *Newsletter {
	b := newBase(deps)
	return &Newsletter{base: b, segmenter: segmentation.NewEvaluator(b.deps.Runtime.Now)}
}

// Run segments subscribers and schedules one personalized newsletter per
// included member at the next delivery slot.
func (o *Newsletter) Run(ctx context.Context, req NewsletterRequest) *models.WorkflowResult {
	run := o.start(ctx, WorkflowNewsletter)
	templateID := req.TemplateID
	if templateID == "" {
		templateID = DefaultNewsletterTemplateID
	}

	if _, ok := o.deps.Templates.Get(templateID); !ok {
		run.Fail("template %s not found", templateID)
		return run.Finish()
	}

	var subscribers []models.Member
	run.Require("fetch_subscribers", func(ctx context.Context) error {
		members, err := o.deps.Members.ListNewsletterSubscribers(ctx)
		if err != nil {
			return err
		}
		subscribers = members
		return nil
	})

	// Without rules every subscriber receives the newsletter.
	var segmented segmentation.Result
	if len(req.Rules) > 0 {
		run.Require("segmentation", func(context.Context) error {
			segmented = o.segmenter.Evaluate(subscribers, req.Rules)
			run.SetSegmentation(segmented.Summary())
			run.Action("Segmented %d subscribers into %d members", len(subscribers), len(segmented.Members))
			return nil
		})
	} else if !run.Stopped() {
		segmented.Members = subscribers
		run.Action("No segmentation rules, sending to all %d subscribers", len(subscribers))
	}
	if run.Stopped() {
		return run.Finish()
	}
	if len(segmented.Members) == 0 {
		if len(req.Rules) > 0 {
			run.Skip("No subscribers matched segmentation rules, newsletter skipped")
		} else {
			run.Skip("No newsletter subscribers, newsletter skipped")
		}
		return run.Finish()
	}

	slot := schedule.NextDeliverySlot(run.Now(), o.deps.NewsletterHour)
	scheduled := 0
	for _, member := range segmented.Members {
		rendered, ok := o.personalizer.Personalize(templateID, member, req.Context)
		if !ok {
			run.Error("personalize %s for member %s: template not found", templateID, member.ID)
			continue
		}
		run.Schedule(o.scheduler.At(slot, models.TaskSendNewsletter, messageData(member, rendered).ToData(), models.PriorityMedium))
		scheduled++
	}
	run.Action("Scheduled %d newsletters for %s", scheduled, slot.Format("2006-01-02 15:04"))

	o.track(run, "", map[string]interface{}{
		"templateId": templateID,
		"recipients": scheduled,
		"segments":   segmented.Segments,
	})
	return run.Finish()
}
