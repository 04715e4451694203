package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/database"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

const CampaignStatusCompleted = "completed"

// CampaignStore keeps one enrollment row per member and drip campaign.
type CampaignStore struct {
	db  *database.PostgresClient
	now func() time.Time
}

func NewCampaignStore(db *database.PostgresClient, now func() time.Time) *CampaignStore {
	if now == nil {
		now = time.Now
	}
	return &CampaignStore{db: db, now: now}
}

// SaveCampaignState enrolls the member unless an enrollment already exists.
func (s *CampaignStore) SaveCampaignState(ctx context.Context, state models.CampaignState) (bool, error) {
	res, err := s.db.Exec(ctx, `
		INSERT INTO campaign_enrollments (member_id, campaign_id, start_date, current_step, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (member_id, campaign_id) DO NOTHING`,
		state.MemberID, state.CampaignID, state.StartDate.UTC(), state.CurrentStep, state.Status, s.now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("save campaign state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save campaign state: %w", err)
	}
	return n == 1, nil
}

// AdvanceCampaign moves the enrollment forward to step. It never moves it
// back, so out-of-order step deliveries are harmless.
func (s *CampaignStore) AdvanceCampaign(ctx context.Context, memberID, campaignID string, step int, last bool) error {
	status := models.CampaignStatusActive
	if last {
		status = CampaignStatusCompleted
	}
	_, err := s.db.Exec(ctx, `
		UPDATE campaign_enrollments SET current_step = $3, status = $4, updated_at = $5
		WHERE member_id = $1 AND campaign_id = $2 AND current_step < $3`,
		memberID, campaignID, step, status, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("advance campaign %s for %s: %w", campaignID, memberID, err)
	}
	return nil
}
