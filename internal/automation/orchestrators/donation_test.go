package orchestrators

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/tiers"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/workflow"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyMembers fails the first failUpdates calls to UpdateMember.
type flakyMembers struct {
	*workflow.MemoryMemberStore
	failUpdates int
	updates     int
}

func (s *flakyMembers) UpdateMember(ctx context.Context, id string, patch models.MemberPatch) error {
	s.updates++
	if s.updates <= s.failUpdates {
		return errors.New("connection reset")
	}
	return s.MemoryMemberStore.UpdateMember(ctx, id, patch)
}

func donor(tier models.Tier) models.Member {
	return models.Member{ID: "m-1", FirstName: "Jane", LastName: "Doe", Email: "jane@example.org", Tier: tier, EngagementScore: 50}
}

func TestDonationAcknowledgment_ThousandDollarGiftUpgradesToAdvocate(t *testing.T) {
	f := newFixture(t, donor(models.TierMember))

	res := NewDonationAcknowledgment(f.deps).Run(context.Background(), DonationRequest{
		Payment: models.PaymentConfirmation{DonationID: "d-1", MemberID: "m-1", Amount: 1000, Designation: "Food Bank"},
	})

	require.True(t, res.Success, res.Errors)
	assert.Contains(t, res.ActionsExecuted, "Tier upgraded from member to advocate")

	m, _ := f.members.GetMember(context.Background(), "m-1")
	assert.Equal(t, models.TierAdvocate, m.Tier)
	assert.Equal(t, 60, m.EngagementScore)
	require.NotNil(t, m.LastDonationDate)
	assert.Equal(t, fixedNow, *m.LastDonationDate)

	require.Len(t, f.transport.Sent, 1)
	assert.Equal(t, "Thank you for your gift of $1000.00", f.transport.Sent[0].Message.Subject)
	assert.Contains(t, f.transport.Sent[0].Message.Content, "Food Bank")

	assert.Equal(t, []string{
		models.TaskSendTaxReceipt,
		models.TaskTierCelebration,
		models.TaskSendImpactUpdate,
		models.TaskDonorRecognition,
		models.TaskStaffFollowUp,
	}, taskTypes(res.ScheduledTasks))

	byType := map[string]models.ScheduledTask{}
	for _, task := range res.ScheduledTasks {
		byType[task.TaskType] = task
	}
	assert.Equal(t, fixedNow.Add(24*time.Hour), byType[models.TaskSendTaxReceipt].ScheduledFor)
	assert.Equal(t, models.PriorityHigh, byType[models.TaskSendTaxReceipt].Priority)
	assert.Equal(t, fixedNow.Add(time.Hour), byType[models.TaskTierCelebration].ScheduledFor)
	assert.Contains(t, byType[models.TaskTierCelebration].Data["subject"], "advocate")
	assert.Equal(t, fixedNow.AddDate(0, 0, 30), byType[models.TaskSendImpactUpdate].ScheduledFor)
	assert.Equal(t, fixedNow.AddDate(0, 0, 7), byType[models.TaskDonorRecognition].ScheduledFor)
	assert.Equal(t, fixedNow.AddDate(0, 0, 3), byType[models.TaskStaffFollowUp].ScheduledFor)
	assert.Equal(t, models.PriorityHigh, byType[models.TaskStaffFollowUp].Priority)

	require.Len(t, f.hook.calls, 1)
	assert.Equal(t, HookDonationAcknowledged, f.hook.calls[0].Event)
}

func TestDonationAcknowledgment_ClassicLadderDisagreesAtThousand(t *testing.T) {
	f := newFixture(t, donor(models.TierBronze))
	f.deps.Ladder = tiers.ClassicLadder

	res := NewDonationAcknowledgment(f.deps).Run(context.Background(), DonationRequest{
		Payment: models.PaymentConfirmation{DonationID: "d-1", MemberID: "m-1", Amount: 1000},
	})

	require.True(t, res.Success, res.Errors)
	m, _ := f.members.GetMember(context.Background(), "m-1")
	assert.Equal(t, models.TierSilver, m.Tier)
}

func TestDonationAcknowledgment_SmallGift(t *testing.T) {
	f := newFixture(t, donor(models.TierMember))

	res := NewDonationAcknowledgment(f.deps).Run(context.Background(), DonationRequest{
		Payment: models.PaymentConfirmation{DonationID: "d-2", MemberID: "m-1", Amount: 50},
	})

	require.True(t, res.Success, res.Errors)
	assert.Equal(t, []string{models.TaskSendTaxReceipt, models.TaskSendImpactUpdate, models.TaskStaffFollowUp}, taskTypes(res.ScheduledTasks))
	assert.Equal(t, models.PriorityMedium, res.ScheduledTasks[2].Priority)
	assert.Contains(t, res.ActionsExecuted, "Tier unchanged (member, $50.00 this year)")
}

func TestDonationAcknowledgment_ClassicTierNeverDowngrades(t *testing.T) {
	tests := []struct {
		tier   models.Tier
		amount float64
	}{
		{models.TierPlatinum, 150},
		{models.TierGold, 20},
		{models.TierGold, 1000},
		{models.TierSilver, 500},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			f := newFixture(t, donor(tt.tier))

			res := NewDonationAcknowledgment(f.deps).Run(context.Background(), DonationRequest{
				Payment: models.PaymentConfirmation{DonationID: "d-1", MemberID: "m-1", Amount: tt.amount},
			})

			require.True(t, res.Success, res.Errors)
			m, _ := f.members.GetMember(context.Background(), "m-1")
			assert.Equal(t, tt.tier, m.Tier)
			assert.NotContains(t, taskTypes(res.ScheduledTasks), models.TaskTierCelebration)
		})
	}
}

func TestDonationAcknowledgment_GoldToPatronIsAnUpgrade(t *testing.T) {
	f := newFixture(t, donor(models.TierGold))

	res := NewDonationAcknowledgment(f.deps).Run(context.Background(), DonationRequest{
		Payment: models.PaymentConfirmation{DonationID: "d-1", MemberID: "m-1", Amount: 5000},
	})

	require.True(t, res.Success, res.Errors)
	assert.Contains(t, res.ActionsExecuted, "Tier upgraded from gold to patron")
	assert.Contains(t, taskTypes(res.ScheduledTasks), models.TaskTierCelebration)
}

func TestDonationAcknowledgment_UnknownTierSkipsTierCheck(t *testing.T) {
	f := newFixture(t, donor("diamond"))

	res := NewDonationAcknowledgment(f.deps).Run(context.Background(), DonationRequest{
		Payment: models.PaymentConfirmation{DonationID: "d-1", MemberID: "m-1", Amount: 20000},
	})

	require.True(t, res.Success, res.Errors)
	assert.Contains(t, res.ActionsExecuted, "Tier check skipped (unknown tier diamond)")
	m, _ := f.members.GetMember(context.Background(), "m-1")
	assert.Equal(t, models.Tier("diamond"), m.Tier)
	assert.NotContains(t, taskTypes(res.ScheduledTasks), models.TaskTierCelebration)
}

func TestDonationAcknowledgment_UsesYearToDateTotal(t *testing.T) {
	f := newFixture(t, donor(models.TierFriend))
	f.members.AddDonation(models.Donation{ID: "old", MemberID: "m-1", Amount: 5000, DonatedAt: fixedNow.AddDate(-1, 0, 0)})
	f.members.AddDonation(models.Donation{ID: "early", MemberID: "m-1", Amount: 400, DonatedAt: fixedNow.AddDate(0, -2, 0)})
	f.members.AddDonation(models.Donation{ID: "d-3", MemberID: "m-1", Amount: 100, DonatedAt: fixedNow})

	res := NewDonationAcknowledgment(f.deps).Run(context.Background(), DonationRequest{
		Payment: models.PaymentConfirmation{DonationID: "d-3", MemberID: "m-1", Amount: 100},
	})

	require.True(t, res.Success, res.Errors)
	assert.Contains(t, res.ActionsExecuted, "Tier upgraded from friend to supporter")
}

func TestDonationAcknowledgment_DelayedThankYou(t *testing.T) {
	f := newFixture(t, donor(models.TierMember))

	res := NewDonationAcknowledgment(f.deps).Run(context.Background(), DonationRequest{
		Payment:            models.PaymentConfirmation{DonationID: "d-1", MemberID: "m-1", Amount: 20},
		ThankYouDelayHours: 2,
	})

	require.True(t, res.Success, res.Errors)
	assert.Empty(t, f.transport.Sent)
	assert.Equal(t, models.TaskThankYou, res.ScheduledTasks[0].TaskType)
	assert.Equal(t, fixedNow.Add(2*time.Hour), res.ScheduledTasks[0].ScheduledFor)
}

func TestDonationAcknowledgment_RetriesMemberPatches(t *testing.T) {
	f := newFixture(t)
	store := &flakyMembers{MemoryMemberStore: workflow.NewMemoryMemberStore(clock, donor(models.TierMember)), failUpdates: 2}
	f.deps.Members = store

	res := NewDonationAcknowledgment(f.deps).Run(context.Background(), DonationRequest{
		Payment: models.PaymentConfirmation{DonationID: "d-1", MemberID: "m-1", Amount: 150},
	})

	require.True(t, res.Success, res.Errors)
	m, _ := store.GetMember(context.Background(), "m-1")
	assert.Equal(t, models.TierFriend, m.Tier)
	assert.Equal(t, 60, m.EngagementScore)
}

func TestDonationAcknowledgment_PatchFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	f.deps.Members = &flakyMembers{MemoryMemberStore: workflow.NewMemoryMemberStore(clock, donor(models.TierMember)), failUpdates: 100}

	res := NewDonationAcknowledgment(f.deps).Run(context.Background(), DonationRequest{
		Payment: models.PaymentConfirmation{DonationID: "d-1", MemberID: "m-1", Amount: 150},
	})

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "tier_upgrade")
	assert.Contains(t, res.Errors[1], "acknowledge_member")
	assert.NotContains(t, taskTypes(res.ScheduledTasks), models.TaskTierCelebration)
	assert.Contains(t, taskTypes(res.ScheduledTasks), models.TaskStaffFollowUp)
	assert.Len(t, f.hook.calls, 1)
}

func TestDonationAcknowledgment_MemberNotFound(t *testing.T) {
	f := newFixture(t)

	res := NewDonationAcknowledgment(f.deps).Run(context.Background(), DonationRequest{
		Payment: models.PaymentConfirmation{DonationID: "d-1", MemberID: "ghost", Amount: 10},
	})

	assert.False(t, res.Success)
	assert.Contains(t, res.Errors[0], "fetch_member_and_donations")
	assert.Empty(t, res.ScheduledTasks)
}

func TestDonationAcknowledgment_InvalidPayment(t *testing.T) {
	f := newFixture(t, donor(models.TierMember))

	res := NewDonationAcknowledgment(f.deps).Run(context.Background(), DonationRequest{
		Payment: models.PaymentConfirmation{MemberID: "m-1", Amount: 0},
	})

	assert.False(t, res.Success)
}
