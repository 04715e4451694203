package eventregistration

import "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	one := 1.0
	minLen := 1
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"memberId": {Type: "string", MinLength: &minLen},
			"event": {
				Type: "object",
				Properties: map[string]validation.Property{
					"id":       {Type: "string", MinLength: &minLen},
					"name":     {Type: "string", MinLength: &minLen},
					"location": {Type: "string"},
					"startsAt": {Type: "string"},
					"endsAt":   {Type: "string"},
				},
				Required: []string{"id", "name", "startsAt"},
			},
			"reminderHours": {Type: "array", Items: &validation.Property{Type: "integer", Minimum: &one}},
		},
		Required:             []string{"memberId", "event"},
		AdditionalProperties: true,
	}
}
