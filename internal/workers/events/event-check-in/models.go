package eventcheckin

import "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"

type Input struct {
	MemberID string              `json:"memberId"`
	Event    models.CharityEvent `json:"event"`
}
