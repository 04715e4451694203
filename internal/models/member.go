// internal/models/member.go
package models

import (
	"strings"
	"time"
)

// Tier is a membership level. Two vocabularies are in use: the acknowledgment
// ladder (member..champion) and the classic ladder (bronze..platinum).
type Tier string

const (
	TierMember    Tier = "member"
	TierFriend    Tier = "friend"
	TierSupporter Tier = "supporter"
	TierAdvocate  Tier = "advocate"
	TierPatron    Tier = "patron"
	TierChampion  Tier = "champion"

	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// IsPremium reports whether the tier counts as premium for segmentation.
// patron and champion are the acknowledgment-ladder equivalents of gold and platinum.
func (t Tier) IsPremium() bool {
	switch t {
	case TierGold, TierPlatinum, TierPatron, TierChampion:
		return true
	}
	return false
}

const (
	MinEngagementScore = 0
	MaxEngagementScore = 100
)

// ClampEngagement bounds an engagement score to [0,100].
func ClampEngagement(score int) int {
	if score < MinEngagementScore {
		return MinEngagementScore
	}
	if score > MaxEngagementScore {
		return MaxEngagementScore
	}
	return score
}

type Member struct {
	ID               string     `json:"id"`
	FirstName        string     `json:"firstName"`
	LastName         string     `json:"lastName"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone,omitempty"`
	PushEndpointARN  string     `json:"pushEndpointArn,omitempty"`
	Tier             Tier       `json:"tier"`
	EngagementScore  int        `json:"engagementScore"`
	TotalDonated     float64    `json:"totalDonated"`
	LastDonationDate *time.Time `json:"lastDonationDate,omitempty"`
	MemberSince      time.Time  `json:"memberSince"`
	EmailSubscribed  bool       `json:"emailSubscribed"`
}

// FullName joins first and last name.
func (m Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

func (m Member) Recipient() Recipient {
	return Recipient{
		MemberID:        m.ID,
		Name:            m.FullName(),
		Email:           m.Email,
		Phone:           m.Phone,
		PushEndpointARN: m.PushEndpointARN,
	}
}

// Recipient is the delivery address of a member on every channel.
type Recipient struct {
	MemberID        string `json:"memberId"`
	Name            string `json:"name,omitempty"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	PushEndpointARN string `json:"pushEndpointArn,omitempty"`
}

// MemberPatch carries partial member updates; nil fields are left untouched.
type MemberPatch struct {
	Tier             *Tier      `json:"tier,omitempty"`
	EngagementScore  *int       `json:"engagementScore,omitempty"`
	LastDonationDate *time.Time `json:"lastDonationDate,omitempty"`
	EmailSubscribed  *bool      `json:"emailSubscribed,omitempty"`
}

func (p MemberPatch) IsEmpty() bool {
	return p.Tier == nil && p.EngagementScore == nil && p.LastDonationDate == nil && p.EmailSubscribed == nil
}
