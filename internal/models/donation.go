// internal/models/donation.go
package models

import "time"

type Donation struct {
	ID          string    `json:"id"`
	MemberID    string    `json:"memberId"`
	Amount      float64   `json:"amount"`
	Designation string    `json:"designation,omitempty"`
	IsRecurring bool      `json:"isRecurring"`
	DonatedAt   time.Time `json:"donatedAt"`
}

// PaymentConfirmation is emitted by the payment system once a donation settles.
type PaymentConfirmation struct {
	DonationID  string  `json:"donationId"`
	MemberID    string  `json:"memberId"`
	Amount      float64 `json:"amount"`
	Designation string  `json:"designation,omitempty"`
	IsRecurring bool    `json:"isRecurring"`
}
