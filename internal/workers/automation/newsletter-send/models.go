package newslettersend

import "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"

// Input overrides the configured newsletter template and rules when set.
type Input struct {
	TemplateID string                    `json:"templateId,omitempty"`
	Rules      []models.SegmentationRule `json:"rules,omitempty"`
	Context    map[string]interface{}    `json:"context,omitempty"`
}
