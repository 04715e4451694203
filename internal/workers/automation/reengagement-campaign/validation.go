package reengagementcampaign

import "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	one := 1.0
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"thresholdDays": {Type: "integer", Minimum: &one},
		},
		AdditionalProperties: true,
	}
}
