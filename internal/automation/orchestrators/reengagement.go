package orchestrators

import (
	"context"
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/schedule"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/workflow"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

type ReengagementRequest struct {
	ThresholdDays int `json:"thresholdDays,omitempty"`
}

type Reengagement struct {
	base
}

func NewReengagement(deps Deps) *Reengagement {
	return &Reengagement{base: newBase(deps)}
}

// Run buckets inactive members by engagement and starts each bucket's
// sequence. One member's failure never blocks the others.
func (o *Reengagement) Run(ctx context.Context, req ReengagementRequest) *models.WorkflowResult {
	run := o.start(ctx, WorkflowReengagement)
	threshold := req.ThresholdDays
	if threshold <= 0 {
		threshold = o.deps.InactiveThresholdDays
	}

	var inactive []models.Member
	ok := run.Require("fetch_inactive_members", func(ctx context.Context) error {
		members, err := o.deps.Members.ListInactiveMembers(ctx, threshold)
		if err != nil {
			return err
		}
		inactive = members
		return nil
	})
	if !ok {
		return run.Finish()
	}
	if len(inactive) == 0 {
		run.Skip("No inactive members found, re-engagement skipped")
		return run.Finish()
	}

	buckets, summary := bucketMembers(inactive)
	run.SetSegmentation(summary)
	run.Action("Bucketed %d inactive members (high=%d, medium=%d, low=%d)",
		len(inactive), summary.Buckets[string(BucketHigh)], summary.Buckets[string(BucketMedium)], summary.Buckets[string(BucketLow)])

	now := run.Now()
	var sent, scheduled int
	for _, bucket := range Buckets {
		steps := ReengagementSequence(bucket)
		for _, member := range buckets[bucket] {
			s, f := o.startSequence(run, member, steps, now)
			sent += s
			scheduled += f
		}
	}
	run.Action("Re-engagement sequences started: %d sent, %d scheduled", sent, scheduled)

	o.track(run, "", map[string]interface{}{
		"thresholdDays": threshold,
		"members":       len(inactive),
		"buckets":       summary.Buckets,
	})
	return run.Finish()
}

func (o *Reengagement) startSequence(run *workflow.Run, member models.Member, steps []SequenceStep, now time.Time) (sent, scheduled int) {
	scheduleSteps := make([]schedule.Step, 0, len(steps))
	for _, step := range steps {
		rendered, ok := o.personalizer.Personalize(step.TemplateID, member, nil)
		if !ok {
			run.Error("member %s: template %s not found", member.ID, step.TemplateID)
			continue
		}
		scheduleSteps = append(scheduleSteps, schedule.Step{
			DelayHours: step.DelayHours,
			TaskType:   models.TaskReengagementStep,
			Data:       messageData(member, rendered).ToData(),
		})
	}
	tasks := o.scheduler.Sequence(now, 0, scheduleSteps)
	return o.deliverSequence(run, tasks, "member "+member.ID)
}

// bucketMembers partitions members into disjoint engagement buckets.
func bucketMembers(members []models.Member) (map[Bucket][]models.Member, *models.SegmentationSummary) {
	buckets := make(map[Bucket][]models.Member, len(Buckets))
	summary := &models.SegmentationSummary{
		MatchedMembers: len(members),
		Buckets:        make(map[string]int, len(Buckets)),
		Groups:         make(map[string][]string, len(Buckets)),
	}

	var total int
	for _, m := range members {
		b := BucketFor(m.EngagementScore)
		buckets[b] = append(buckets[b], m)
		summary.Groups[string(b)] = append(summary.Groups[string(b)], m.ID)
		total += m.EngagementScore
	}
	for _, b := range Buckets {
		summary.Buckets[string(b)] = len(buckets[b])
		if len(buckets[b]) > 0 {
			summary.Segments = append(summary.Segments, string(b))
		}
	}
	if len(members) > 0 {
		summary.AverageScore = float64(total) / float64(len(members))
	}
	return buckets, summary
}
