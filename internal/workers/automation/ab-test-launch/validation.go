package abtestlaunch

import "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	zero, hundred, one := 0.0, 100.0, 1.0
	minID := 1
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"testId":         {Type: "string", MinLength: &minID},
			"name":           {Type: "string"},
			"testPercentage": {Type: "number", Minimum: &zero, Maximum: &hundred},
			"variants": {
				Type: "array",
				Items: &validation.Property{
					Type: "object",
					Properties: map[string]validation.Property{
						"id":         {Type: "string", MinLength: &minID},
						"templateId": {Type: "string", MinLength: &minID},
					},
					Required: []string{"id", "templateId"},
				},
			},
			"audience":        {Type: "array", Items: &validation.Property{Type: "string"}},
			"analysisHours":   {Type: "integer", Minimum: &one},
			"deploymentHours": {Type: "integer", Minimum: &one},
		},
		Required:             []string{"testId", "variants", "testPercentage"},
		AdditionalProperties: true,
	}
}
