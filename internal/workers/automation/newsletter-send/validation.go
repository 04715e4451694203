package newslettersend

import (
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/validation"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

func GetInputSchema() validation.JSONSchema {
	zero := 0.0
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"templateId": {Type: "string"},
			"rules": {
				Type: "array",
				Items: &validation.Property{
					Type: "object",
					Properties: map[string]validation.Property{
						"name": {Type: "string"},
						"condition": {Type: "string", Enum: []string{
							string(models.ConditionHighEngagement),
							string(models.ConditionRecentDonor),
							string(models.ConditionPremiumTier),
							string(models.ConditionNewMember),
							string(models.ConditionCustom),
						}},
						"weight": {Type: "number", Minimum: &zero},
					},
					Required: []string{"condition"},
				},
			},
			"context": {Type: "object"},
		},
		AdditionalProperties: true,
	}
}
