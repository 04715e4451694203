// internal/automation/triggers/steps.go
package triggers

import (
	"context"
	"fmt"
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/tiers"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

// Drip step conditions, re-checked when the step fires.
const (
	StepNoDonation         = "no_donation"
	StepEligibleForUpgrade = "eligible_for_upgrade"
)

type DonationLookup interface {
	GetMemberDonations(ctx context.Context, memberID string) ([]models.Donation, error)
}

type StepConditionChecker struct {
	donations DonationLookup
	ladder    tiers.Ladder
	now       func() time.Time
}

func NewStepConditionChecker(donations DonationLookup, ladder tiers.Ladder, now func() time.Time) *StepConditionChecker {
	if now == nil {
		now = time.Now
	}
	return &StepConditionChecker{donations: donations, ladder: ladder, now: now}
}

// Check reports whether the step should still be delivered to member.
// An empty condition always passes; unknown conditions never do.
func (c *StepConditionChecker) Check(ctx context.Context, member models.Member, condition string) (bool, error) {
	switch condition {
	case "":
		return true, nil
	case StepNoDonation:
		if member.LastDonationDate != nil {
			return false, nil
		}
		donations, err := c.donations.GetMemberDonations(ctx, member.ID)
		if err != nil {
			return false, fmt.Errorf("load donations: %w", err)
		}
		return len(donations) == 0, nil
	case StepEligibleForUpgrade:
		if _, ok := c.ladder.NextThreshold(member.Tier); !ok {
			return false, nil
		}
		donations, err := c.donations.GetMemberDonations(ctx, member.ID)
		if err != nil {
			return false, fmt.Errorf("load donations: %w", err)
		}
		return tiers.YearToDateTotal(donations, c.now()) > 0, nil
	default:
		return false, nil
	}
}
