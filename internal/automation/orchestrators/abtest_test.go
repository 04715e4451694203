package orchestrators

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func audience(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("m-%02d", i)
	}
	return ids
}

var twoVariants = []ABVariant{
	{ID: "A", TemplateID: "monthly_newsletter"},
	{ID: "B", TemplateID: "impact_story"},
}

func TestABTest_SplitsAndSchedulesIndependentTasks(t *testing.T) {
	f := newFixture(t)

	res := NewABTest(f.deps).Run(context.Background(), ABTestRequest{
		TestID:         "spring-appeal",
		Variants:       twoVariants,
		TestPercentage: 50,
		AudienceIDs:    audience(10),
	})

	require.True(t, res.Success, res.Errors)
	groups := res.SegmentationResults.Groups
	assert.Equal(t, []string{"m-00", "m-01"}, groups["A"])
	assert.Equal(t, []string{"m-02", "m-03"}, groups["B"])
	assert.Len(t, groups[WinnerGroup], 6)
	assert.Equal(t, 10, res.SegmentationResults.MatchedMembers)

	require.Equal(t, []string{
		models.TaskABTestSend, models.TaskABTestSend, models.TaskABTestAnalysis, models.TaskABTestWinnerDeploy,
	}, taskTypes(res.ScheduledTasks))
	assert.Equal(t, fixedNow.Add(time.Hour), res.ScheduledTasks[0].ScheduledFor)
	assert.Equal(t, fixedNow.Add(48*time.Hour), res.ScheduledTasks[2].ScheduledFor)
	assert.Equal(t, fixedNow.Add(72*time.Hour), res.ScheduledTasks[3].ScheduledFor)
	assert.Equal(t, "B", res.ScheduledTasks[1].Data["variantId"])
}

func TestABTest_GroupSizeFloors(t *testing.T) {
	groups, size := splitAudience(audience(7), []ABVariant{{ID: "A"}, {ID: "B"}, {ID: "C"}}, 100, func(int, func(i, j int)) {})

	assert.Equal(t, 2, size)
	assert.Len(t, groups[WinnerGroup], 1)
}

func TestABTest_ShuffleIsApplied(t *testing.T) {
	reverse := func(n int, swap func(i, j int)) {
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}

	groups, _ := splitAudience(audience(4), twoVariants, 100, reverse)

	assert.Equal(t, []string{"m-03", "m-02"}, groups["A"])
}

func TestABTest_CustomTimings(t *testing.T) {
	f := newFixture(t)

	res := NewABTest(f.deps).Run(context.Background(), ABTestRequest{
		Variants:        twoVariants,
		TestPercentage:  100,
		AudienceIDs:     audience(4),
		AnalysisHours:   24,
		DeploymentHours: 36,
	})

	require.True(t, res.Success, res.Errors)
	assert.Equal(t, fixedNow.Add(24*time.Hour), res.ScheduledTasks[2].ScheduledFor)
	assert.Equal(t, fixedNow.Add(36*time.Hour), res.ScheduledTasks[3].ScheduledFor)
}

func TestABTest_AudienceDefaultsToSubscribers(t *testing.T) {
	f := newFixture(t,
		models.Member{ID: "a", EmailSubscribed: true},
		models.Member{ID: "b", EmailSubscribed: true},
		models.Member{ID: "c", EmailSubscribed: false},
	)

	res := NewABTest(f.deps).Run(context.Background(), ABTestRequest{Variants: twoVariants, TestPercentage: 100})

	require.True(t, res.Success, res.Errors)
	assert.Equal(t, 2, res.SegmentationResults.MatchedMembers)
}

func TestABTest_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  ABTestRequest
		want string
	}{
		{"one variant", ABTestRequest{Variants: twoVariants[:1], TestPercentage: 50}, "at least 2 variants"},
		{"zero percent", ABTestRequest{Variants: twoVariants, TestPercentage: 0}, "test percentage"},
		{"over 100 percent", ABTestRequest{Variants: twoVariants, TestPercentage: 120}, "test percentage"},
		{"duplicate variant", ABTestRequest{Variants: []ABVariant{{ID: "A"}, {ID: "A"}}, TestPercentage: 50}, "duplicate variant"},
		{"reserved variant id", ABTestRequest{Variants: []ABVariant{{ID: "A"}, {ID: WinnerGroup}}, TestPercentage: 50}, "invalid variant id"},
		{"missing template", ABTestRequest{Variants: []ABVariant{{ID: "A", TemplateID: "x"}, {ID: "B", TemplateID: "impact_story"}}, TestPercentage: 50}, "template x not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.req.AudienceIDs = audience(10)

			res := NewABTest(f.deps).Run(context.Background(), tt.req)

			assert.False(t, res.Success)
			require.Len(t, res.Errors, 1)
			assert.Contains(t, res.Errors[0], tt.want)
			assert.Empty(t, res.ScheduledTasks)
		})
	}
}

func TestABTest_TooSmallAudienceIsSoftSkip(t *testing.T) {
	f := newFixture(t)

	res := NewABTest(f.deps).Run(context.Background(), ABTestRequest{Variants: twoVariants, TestPercentage: 10, AudienceIDs: audience(5)})

	assert.True(t, res.Success)
	assert.Empty(t, res.ScheduledTasks)
}
