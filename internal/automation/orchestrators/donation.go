package orchestrators

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/personalize"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/tiers"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/workflow"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

const (
	HookDonationAcknowledged = "donation.acknowledged"
	defaultDesignation       = "General Fund"

	taxReceiptDelay     = 24 * time.Hour
	celebrationDelay    = time.Hour
	staffFollowUpDelay  = 3 * 24 * time.Hour
	recognitionDelay    = 7 * 24 * time.Hour
	impactUpdateDelay   = 30 * 24 * time.Hour
	recognitionMinimum  = 500
	highPriorityMinimum = 1000
	acknowledgmentBoost = 10
)

type DonationRequest struct {
	Payment            models.PaymentConfirmation `json:"payment"`
	ThankYouDelayHours float64                    `json:"thankYouDelayHours,omitempty"`
}

type DonationAcknowledgment struct {
	base
}

func NewDonationAcknowledgment(deps Deps) *DonationAcknowledgment {
	return &DonationAcknowledgment{base: newBase(deps)}
}

// Run acknowledges a settled donation: thank-you, tax receipt, tier check,
// member patch, stewardship follow-ups and a staff task.
func (o *DonationAcknowledgment) Run(ctx context.Context, req DonationRequest) *models.WorkflowResult {
	run := o.start(ctx, WorkflowDonationAck)
	p := req.Payment
	if p.MemberID == "" || p.Amount <= 0 {
		run.Fail("invalid payment confirmation: memberId and a positive amount are required")
		return run.Finish()
	}

	var (
		member    models.Member
		donations []models.Donation
	)
	ok := run.Require("fetch_member_and_donations", func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			m, err := o.deps.Members.GetMember(gctx, p.MemberID)
			member = m
			return err
		})
		g.Go(func() error {
			d, err := o.deps.Members.GetMemberDonations(gctx, p.MemberID)
			donations = d
			return err
		})
		return g.Wait()
	})
	if !ok {
		return run.Finish()
	}

	now := run.Now()
	vars := donationContext(p)

	o.thankYou(run, member, vars, req.ThankYouDelayHours)

	if r, ok := o.personalizer.Personalize(TemplateTaxReceipt, member, vars); ok {
		run.Schedule(o.scheduler.After(taxReceiptDelay, models.TaskSendTaxReceipt, messageData(member, r).ToData(), models.PriorityHigh))
		run.Action("Tax receipt scheduled")
	} else {
		run.Error("template %s not found", TemplateTaxReceipt)
	}

	o.tierCheck(run, member, withCurrentDonation(donations, p, now), now)

	run.Stage("acknowledge_member", func(ctx context.Context) error {
		score := models.ClampEngagement(member.EngagementScore + acknowledgmentBoost)
		err := o.retry(ctx, func(ctx context.Context) error {
			return o.deps.Members.UpdateMember(ctx, member.ID, models.MemberPatch{
				LastDonationDate: &now,
				EngagementScore:  &score,
			})
		})
		if err != nil {
			run.Logger().Error("member acknowledgment not persisted", map[string]interface{}{
				"memberId": member.ID, "donationId": p.DonationID, "error": err.Error(),
			})
			return err
		}
		run.SetEngagementScore(score)
		run.Action("Member record updated (engagement %d)", score)
		return nil
	})

	o.scheduleTemplate(run, member, vars, TemplateImpactUpdate, models.TaskSendImpactUpdate, impactUpdateDelay, models.PriorityLow, "Impact update scheduled")

	if p.Amount >= recognitionMinimum {
		o.scheduleTemplate(run, member, vars, TemplateDonorRecognition, models.TaskDonorRecognition, recognitionDelay, models.PriorityMedium, "Donor recognition scheduled")
	}

	priority := models.PriorityMedium
	if p.Amount >= highPriorityMinimum {
		priority = models.PriorityHigh
	}
	run.Schedule(o.scheduler.After(staffFollowUpDelay, models.TaskStaffFollowUp, map[string]interface{}{
		"memberId":    member.ID,
		"subject":     fmt.Sprintf("Follow up with %s on $%.2f gift", member.FullName(), p.Amount),
		"description": fmt.Sprintf("Donation %s to %s. Personal thank-you call recommended.", p.DonationID, designation(p)),
		"priority":    string(priority),
	}, priority))
	run.Action("Staff follow-up scheduled (%s priority)", priority)

	run.Stage("external_hook", func(ctx context.Context) error {
		return o.deps.Hook.Trigger(ctx, HookDonationAcknowledged, map[string]interface{}{
			"memberId":    member.ID,
			"donationId":  p.DonationID,
			"amount":      p.Amount,
			"isRecurring": p.IsRecurring,
		})
	})

	o.track(run, member.ID, map[string]interface{}{"donationId": p.DonationID, "amount": p.Amount})
	return run.Finish()
}

func (o *DonationAcknowledgment) thankYou(run *workflow.Run, member models.Member, vars map[string]interface{}, delayHours float64) {
	r, ok := o.personalizer.Personalize(TemplateDonationThankYou, member, vars)
	if !ok {
		run.Error("template %s not found", TemplateDonationThankYou)
		return
	}
	if delayHours <= 0 {
		if run.Stage("send_thank_you", func(ctx context.Context) error { return o.send(ctx, member, r) }) {
			run.Action("Thank-you sent")
		}
		return
	}
	delay := time.Duration(delayHours * float64(time.Hour))
	run.Schedule(o.scheduler.After(delay, models.TaskThankYou, messageData(member, r).ToData(), models.PriorityHigh))
	run.Action("Thank-you scheduled")
}

// tierCheck maps this calendar year's giving through the ladder and persists
// and celebrates an upgrade. A tier never moves down.
func (o *DonationAcknowledgment) tierCheck(run *workflow.Run, member models.Member, donations []models.Donation, now time.Time) {
	ladder := o.deps.Ladder
	if _, known := tiers.Floor(member.Tier); !known {
		run.Logger().Warn("tier check skipped for unknown tier", map[string]interface{}{
			"memberId": member.ID, "tier": string(member.Tier),
		})
		run.Action("Tier check skipped (unknown tier %s)", member.Tier)
		return
	}
	total := tiers.YearToDateTotal(donations, now)
	next := ladder.TierFor(total)
	if !ladder.IsUpgrade(member.Tier, next) {
		run.Action("Tier unchanged (%s, $%.2f this year)", member.Tier, total)
		return
	}

	ok := run.Stage("tier_upgrade", func(ctx context.Context) error {
		err := o.retry(ctx, func(ctx context.Context) error {
			return o.deps.Members.UpdateMember(ctx, member.ID, models.MemberPatch{Tier: &next})
		})
		if err != nil {
			run.Logger().Error("tier upgrade not persisted", map[string]interface{}{
				"memberId": member.ID, "tier": string(next), "error": err.Error(),
			})
		}
		return err
	})
	if !ok {
		return
	}
	run.Action("Tier upgraded from %s to %s", member.Tier, next)

	vars := map[string]interface{}{
		"previous_tier":            string(member.Tier),
		"new_tier":                 string(next),
		personalize.VarMemberTier:  string(next),
		personalize.VarTierMessage: personalize.TierMessage(next),
	}
	if r, ok := o.personalizer.Personalize(TemplateTierCelebration, member, vars); ok {
		run.Schedule(o.scheduler.After(celebrationDelay, models.TaskTierCelebration, messageData(member, r).ToData(), models.PriorityHigh))
		run.Action("Tier celebration scheduled")
	} else {
		run.Error("template %s not found", TemplateTierCelebration)
	}
}

func (o *DonationAcknowledgment) scheduleTemplate(run *workflow.Run, member models.Member, vars map[string]interface{}, templateID, taskType string, delay time.Duration, priority models.Priority, action string) {
	r, ok := o.personalizer.Personalize(templateID, member, vars)
	if !ok {
		run.Error("template %s not found", templateID)
		return
	}
	run.Schedule(o.scheduler.After(delay, taskType, messageData(member, r).ToData(), priority))
	run.Action("%s", action)
}

// withCurrentDonation adds the confirmed payment unless the store already
// has it.
func withCurrentDonation(donations []models.Donation, p models.PaymentConfirmation, now time.Time) []models.Donation {
	for _, d := range donations {
		if p.DonationID != "" && d.ID == p.DonationID {
			return donations
		}
	}
	return append(append([]models.Donation(nil), donations...), models.Donation{
		ID:          p.DonationID,
		MemberID:    p.MemberID,
		Amount:      p.Amount,
		Designation: p.Designation,
		IsRecurring: p.IsRecurring,
		DonatedAt:   now,
	})
}

func donationContext(p models.PaymentConfirmation) map[string]interface{} {
	return map[string]interface{}{
		"donation_amount": fmt.Sprintf("%.2f", p.Amount),
		"donation_id":     p.DonationID,
		"designation":     designation(p),
	}
}

func designation(p models.PaymentConfirmation) string {
	if p.Designation == "" {
		return defaultDesignation
	}
	return p.Designation
}
