package orchestrators

import (
	"context"
	"testing"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/triggers"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrip_OnboardingSchedulesSixSteps(t *testing.T) {
	f := newFixture(t, models.Member{ID: "m-1", FirstName: "Sam", EmailSubscribed: true})

	res := NewDrip(f.deps).Run(context.Background(), DripRequest{MemberID: "m-1", CampaignType: "new_member_onboarding"})

	require.True(t, res.Success, res.Errors)
	require.Len(t, res.ScheduledTasks, 6)
	for i, day := range []int{0, 1, 3, 7, 14, 30} {
		task := res.ScheduledTasks[i]
		assert.Equal(t, fixedNow.AddDate(0, 0, day), task.ScheduledFor, "step %d", i)
		assert.Equal(t, models.TaskDripStep, task.TaskType)
	}

	first, err := models.ParseMessagePayload(res.ScheduledTasks[0].Data)
	require.NoError(t, err)
	assert.Equal(t, "welcome_email", first.TemplateID)
	assert.Equal(t, "new_member_onboarding", first.CampaignID)
	assert.Empty(t, first.Condition)

	fourth, _ := models.ParseMessagePayload(res.ScheduledTasks[3].Data)
	assert.Equal(t, triggers.StepNoDonation, fourth.Condition)
	assert.Equal(t, 3, fourth.Step)

	state, ok := f.campaigns.Get("m-1", "new_member_onboarding")
	require.True(t, ok)
	assert.Equal(t, models.CampaignStatusActive, state.Status)
	assert.Equal(t, 0, state.CurrentStep)
	assert.Equal(t, fixedNow, state.StartDate)
	assert.Empty(t, f.transport.Sent)
}

func TestDrip_StewardshipSteps(t *testing.T) {
	f := newFixture(t, models.Member{ID: "m-1", EmailSubscribed: true})

	res := NewDrip(f.deps).Run(context.Background(), DripRequest{MemberID: "m-1", CampaignType: "donor_stewardship"})

	require.True(t, res.Success, res.Errors)
	require.Len(t, res.ScheduledTasks, 5)
	assert.Equal(t, fixedNow.AddDate(0, 0, 90), res.ScheduledTasks[4].ScheduledFor)
}

func TestDrip_AlreadyEnrolledIsSoftSkip(t *testing.T) {
	f := newFixture(t, models.Member{ID: "m-1", EmailSubscribed: true})
	o := NewDrip(f.deps)
	req := DripRequest{MemberID: "m-1", CampaignType: "new_member_onboarding"}

	o.Run(context.Background(), req)
	res := o.Run(context.Background(), req)

	assert.True(t, res.Success)
	assert.Empty(t, res.ScheduledTasks)
	assert.Equal(t, []string{"Member already enrolled in New Member Onboarding, enrollment skipped"}, res.ActionsExecuted)
}

func TestDrip_UnsubscribedIsSoftSkip(t *testing.T) {
	f := newFixture(t, models.Member{ID: "m-1", EmailSubscribed: false})

	res := NewDrip(f.deps).Run(context.Background(), DripRequest{MemberID: "m-1", CampaignType: "new_member_onboarding"})

	assert.True(t, res.Success)
	assert.Empty(t, res.ScheduledTasks)
	_, enrolled := f.campaigns.Get("m-1", "new_member_onboarding")
	assert.False(t, enrolled)
}

func TestDrip_UnknownCampaignFails(t *testing.T) {
	f := newFixture(t, models.Member{ID: "m-1", EmailSubscribed: true})

	res := NewDrip(f.deps).Run(context.Background(), DripRequest{MemberID: "m-1", CampaignType: "summer_gala"})

	assert.False(t, res.Success)
	assert.Equal(t, []string{`unknown campaign type "summer_gala"`}, res.Errors)
}
