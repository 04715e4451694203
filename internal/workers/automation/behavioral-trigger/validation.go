package behavioraltrigger

import "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/validation"

// GetInputSchema accepts any trigger event name; unknown events are
// reported by the workflow itself.
func GetInputSchema() validation.JSONSchema {
	minLen := 1
	zero := 0.0
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"memberId": {Type: "string", MinLength: &minLen},
			"trigger": {
				Type: "object",
				Properties: map[string]validation.Property{
					"event":          {Type: "string", MinLength: &minLen},
					"conditions":     {Type: "object"},
					"delay":          {Type: "number", Minimum: &zero},
					"maxExecutions":  {Type: "integer", Minimum: &zero},
					"cooldownPeriod": {Type: "number", Minimum: &zero},
				},
				Required: []string{"event"},
			},
			"context": {Type: "object"},
		},
		Required:             []string{"memberId", "trigger"},
		AdditionalProperties: true,
	}
}
