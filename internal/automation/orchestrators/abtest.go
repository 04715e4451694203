package orchestrators

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

const (
	WinnerGroup       = "winner_group"
	abTestSendDelay   = time.Hour
	maxTestPercentage = 100
)

type ABVariant struct {
	ID         string `json:"id"`
	TemplateID string `json:"templateId"`
}

type ABTestRequest struct {
	TestID          string      `json:"testId"`
	Name            string      `json:"name"`
	Variants        []ABVariant `json:"variants"`
	TestPercentage  float64     `json:"testPercentage"`
	AudienceIDs     []string    `json:"audience,omitempty"`
	AnalysisHours   int         `json:"analysisHours,omitempty"`
	DeploymentHours int         `json:"deploymentHours,omitempty"`
}

func (r ABTestRequest) validate() error {
	if len(r.Variants) < 2 {
		return fmt.Errorf("an A/B test needs at least 2 variants, got %d", len(r.Variants))
	}
	if r.TestPercentage <= 0 || r.TestPercentage > maxTestPercentage {
		return fmt.Errorf("test percentage must be in (0, 100], got %v", r.TestPercentage)
	}
	seen := make(map[string]bool, len(r.Variants))
	for _, v := range r.Variants {
		if v.ID == "" || v.ID == WinnerGroup {
			return fmt.Errorf("invalid variant id %q", v.ID)
		}
		if seen[v.ID] {
			return fmt.Errorf("duplicate variant %s", v.ID)
		}
		seen[v.ID] = true
	}
	return nil
}

type ABTest struct {
	base
}

func NewABTest(deps Deps) *ABTest {
	return &ABTest{base: newBase(deps)}
}

// Run splits the audience into equal variant groups and a winner group, then
// schedules the send, analysis and deployment tasks independently.
func (o *ABTest) Run(ctx context.Context, req ABTestRequest) *models.WorkflowResult {
	run := o.start(ctx, WorkflowABTest)

	if err := req.validate(); err != nil {
		run.Fail("invalid A/B test: %v", err)
		return run.Finish()
	}
	for _, v := range req.Variants {
		if _, ok := o.deps.Templates.Get(v.TemplateID); !ok {
			run.Fail("variant %s: template %s not found", v.ID, v.TemplateID)
			return run.Finish()
		}
	}

	var audience []string
	ok := run.Require("resolve_audience", func(ctx context.Context) error {
		if len(req.AudienceIDs) > 0 {
			audience = append([]string(nil), req.AudienceIDs...)
			return nil
		}
		members, err := o.deps.Members.ListNewsletterSubscribers(ctx)
		if err != nil {
			return err
		}
		for _, m := range members {
			audience = append(audience, m.ID)
		}
		return nil
	})
	if !ok {
		return run.Finish()
	}

	groups, groupSize := splitAudience(audience, req.Variants, req.TestPercentage, o.deps.Shuffle)
	if groupSize == 0 {
		run.Skip(fmt.Sprintf("Audience of %d too small for %d variants, A/B test skipped", len(audience), len(req.Variants)))
		return run.Finish()
	}
	run.SetSegmentation(&models.SegmentationSummary{
		MatchedMembers: len(audience),
		Segments:       groupNames(req.Variants),
		Groups:         groups,
		Buckets:        groupCounts(groups),
	})
	run.Action("Split %d members into %d groups of %d, %d held for winner", len(audience), len(req.Variants), groupSize, len(groups[WinnerGroup]))

	analysis := time.Duration(o.deps.ABAnalysisHours) * time.Hour
	if req.AnalysisHours > 0 {
		analysis = time.Duration(req.AnalysisHours) * time.Hour
	}
	deployment := time.Duration(o.deps.ABDeploymentHours) * time.Hour
	if req.DeploymentHours > 0 {
		deployment = time.Duration(req.DeploymentHours) * time.Hour
	}

	for _, v := range req.Variants {
		run.Schedule(o.scheduler.After(abTestSendDelay, models.TaskABTestSend, map[string]interface{}{
			"testId":     req.TestID,
			"variantId":  v.ID,
			"templateId": v.TemplateID,
			"memberIds":  groups[v.ID],
		}, models.PriorityMedium))
	}
	run.Schedule(o.scheduler.After(analysis, models.TaskABTestAnalysis, map[string]interface{}{
		"testId":   req.TestID,
		"variants": groupNames(req.Variants),
	}, models.PriorityMedium))
	run.Schedule(o.scheduler.After(deployment, models.TaskABTestWinnerDeploy, map[string]interface{}{
		"testId":    req.TestID,
		"memberIds": groups[WinnerGroup],
	}, models.PriorityMedium))
	run.Action("Scheduled test sends, analysis at +%s and winner deployment at +%s", analysis, deployment)

	o.track(run, "", map[string]interface{}{"testId": req.TestID, "variants": len(req.Variants)})
	return run.Finish()
}

// splitAudience shuffles audience and carves floor(n*pct/100/variants)
// members per variant; the remainder forms the winner group.
func splitAudience(audience []string, variants []ABVariant, pct float64, shuffle func(n int, swap func(i, j int))) (map[string][]string, int) {
	pool := append([]string(nil), audience...)
	shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	size := int(math.Floor(float64(len(pool)) * pct / 100 / float64(len(variants))))
	groups := make(map[string][]string, len(variants)+1)
	offset := 0
	for _, v := range variants {
		groups[v.ID] = pool[offset : offset+size]
		offset += size
	}
	groups[WinnerGroup] = pool[offset:]
	return groups, size
}

func groupNames(variants []ABVariant) []string {
	names := make([]string, len(variants))
	for i, v := range variants {
		names[i] = v.ID
	}
	return names
}

func groupCounts(groups map[string][]string) map[string]int {
	counts := make(map[string]int, len(groups))
	for k, v := range groups {
		counts[k] = len(v)
	}
	return counts
}
