// internal/workers/automation/donation-acknowledgment/models.go
package donationacknowledgment

// Input mirrors the payment system's confirmation as carried in process
// variables.
type Input struct {
	DonationID  string  `json:"donationId"`
	MemberID    string  `json:"memberId"`
	Amount      float64 `json:"amount"`
	Designation string  `json:"designation,omitempty"`
	IsRecurring bool    `json:"isRecurring"`
}
