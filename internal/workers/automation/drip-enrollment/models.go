package dripenrollment

// Input enrolls one member. CampaignType defaults to new member onboarding.
type Input struct {
	MemberID     string `json:"memberId"`
	CampaignType string `json:"campaignType,omitempty"`
}
