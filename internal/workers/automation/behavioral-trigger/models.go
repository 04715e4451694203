package behavioraltrigger

import "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"

type Input struct {
	MemberID string                 `json:"memberId"`
	Trigger  models.BehaviorTrigger `json:"trigger"`
	Context  map[string]interface{} `json:"context,omitempty"`
}
