package donationacknowledgment

import "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	minAmount := 0.01
	minLen := 1
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"donationId":  {Type: "string", MinLength: &minLen},
			"memberId":    {Type: "string", MinLength: &minLen},
			"amount":      {Type: "number", Minimum: &minAmount},
			"designation": {Type: "string"},
			"isRecurring": {Type: "boolean"},
		},
		Required:             []string{"donationId", "memberId", "amount"},
		AdditionalProperties: true,
	}
}
