package segmentation

import (
	"testing"
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestEvaluator() *Evaluator {
	return NewEvaluator(func() time.Time { return fixedNow })
}

func daysAgo(d int) *time.Time {
	t := fixedNow.AddDate(0, 0, -d)
	return &t
}

func TestEvaluator_EvaluateRule(t *testing.T) {
	e := newTestEvaluator()

	tests := []struct {
		name   string
		member models.Member
		cond   models.ConditionKind
		want   bool
	}{
		{"high engagement above threshold", models.Member{EngagementScore: 76}, models.ConditionHighEngagement, true},
		{"high engagement at threshold", models.Member{EngagementScore: 75}, models.ConditionHighEngagement, false},
		{"recent donor within window", models.Member{LastDonationDate: daysAgo(29)}, models.ConditionRecentDonor, true},
		{"recent donor outside window", models.Member{LastDonationDate: daysAgo(31)}, models.ConditionRecentDonor, false},
		{"recent donor without donation", models.Member{}, models.ConditionRecentDonor, false},
		{"premium gold", models.Member{Tier: models.TierGold}, models.ConditionPremiumTier, true},
		{"premium platinum", models.Member{Tier: models.TierPlatinum}, models.ConditionPremiumTier, true},
		{"premium champion", models.Member{Tier: models.TierChampion}, models.ConditionPremiumTier, true},
		{"premium patron", models.Member{Tier: models.TierPatron}, models.ConditionPremiumTier, true},
		{"not premium advocate", models.Member{Tier: models.TierAdvocate}, models.ConditionPremiumTier, false},
		{"not premium silver", models.Member{Tier: models.TierSilver}, models.ConditionPremiumTier, false},
		{"new member", models.Member{MemberSince: *daysAgo(3)}, models.ConditionNewMember, true},
		{"old member", models.Member{MemberSince: *daysAgo(400)}, models.ConditionNewMember, false},
		{"custom fails closed", models.Member{EngagementScore: 100}, models.ConditionCustom, false},
		{"unknown fails closed", models.Member{EngagementScore: 100}, "lapsed_volunteer", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.EvaluateRule(tt.member, models.SegmentationRule{Name: "r", Condition: tt.cond, Weight: 1})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluator_Evaluate_ScenarioFromSegmentationRules(t *testing.T) {
	e := newTestEvaluator()

	a := models.Member{ID: "A", EngagementScore: 80, LastDonationDate: daysAgo(5)}
	b := models.Member{ID: "B", EngagementScore: 10}
	rules := []models.SegmentationRule{
		{Name: "engaged", Condition: models.ConditionHighEngagement, Weight: 2},
		{Name: "donor", Condition: models.ConditionRecentDonor, Weight: 3},
	}

	result := e.Evaluate([]models.Member{a, b}, rules)

	require.Len(t, result.Members, 1)
	assert.Equal(t, "A", result.Members[0].ID)
	assert.Equal(t, []string{"engaged", "donor"}, result.Segments)
	assert.Equal(t, 5.0, result.Score)
	require.Len(t, result.Scores, 1)
	assert.Equal(t, 5.0, result.Scores[0].Weight)
	assert.True(t, result.Rules[0].Matched)
	assert.True(t, result.Rules[1].Matched)
}

func TestEvaluator_Evaluate_DoesNotMutateRules(t *testing.T) {
	e := newTestEvaluator()
	rules := []models.SegmentationRule{
		{Name: "engaged", Condition: models.ConditionHighEngagement, Weight: 2},
	}
	snapshot := append([]models.SegmentationRule(nil), rules...)

	_ = e.Evaluate([]models.Member{{ID: "A", EngagementScore: 90}}, rules)

	assert.Equal(t, snapshot, rules)
}

func TestEvaluator_Evaluate_ZeroWeightExcluded(t *testing.T) {
	e := newTestEvaluator()
	rules := []models.SegmentationRule{
		{Name: "engaged", Condition: models.ConditionHighEngagement, Weight: 0},
		{Name: "custom", Condition: models.ConditionCustom, Weight: 10},
	}

	result := e.Evaluate([]models.Member{{ID: "A", EngagementScore: 99}}, rules)

	assert.Empty(t, result.Members)
	assert.Empty(t, result.Segments)
	assert.Zero(t, result.Score)
	assert.True(t, result.Rules[0].Matched)
	assert.False(t, result.Rules[1].Matched)
}

func TestEvaluator_Evaluate_NoMembers(t *testing.T) {
	result := newTestEvaluator().Evaluate(nil, []models.SegmentationRule{
		{Name: "engaged", Condition: models.ConditionHighEngagement, Weight: 1},
	})

	assert.Empty(t, result.Members)
	assert.Zero(t, result.Score)
	assert.False(t, result.Rules[0].Matched)

	summary := result.Summary()
	assert.Equal(t, 0, summary.MatchedMembers)
}

func TestEvaluator_Evaluate_SegmentsDeduplicatedInOrder(t *testing.T) {
	e := newTestEvaluator()
	members := []models.Member{
		{ID: "1", Tier: models.TierGold},
		{ID: "2", Tier: models.TierGold, EngagementScore: 90},
		{ID: "3", EngagementScore: 95},
	}
	rules := []models.SegmentationRule{
		{Name: "vip", Condition: models.ConditionPremiumTier, Weight: 1},
		{Name: "engaged", Condition: models.ConditionHighEngagement, Weight: 1},
	}

	result := e.Evaluate(members, rules)

	assert.Len(t, result.Members, 3)
	assert.Equal(t, []string{"vip", "engaged"}, result.Segments)
	assert.InDelta(t, 4.0/3.0, result.Score, 1e-9)
}
