package dripenrollment

import (
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/validation"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

func GetInputSchema() validation.JSONSchema {
	minLen := 1
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"memberId": {Type: "string", MinLength: &minLen},
			"campaignType": {
				Type: "string",
				Enum: []string{string(models.CampaignNewMemberOnboarding), string(models.CampaignDonorStewardship)},
			},
		},
		Required:             []string{"memberId"},
		AdditionalProperties: true,
	}
}
