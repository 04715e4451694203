package orchestrators

import (
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/triggers"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

// SequenceStep is one entry of a fixed hour-offset sequence. DelayHours is
// added to the previous step's offset.
type SequenceStep struct {
	DelayHours float64
	TemplateID string
}

// BehaviorEvent is the closed set of member actions with a behavioral sequence.
type BehaviorEvent string

const (
	EventDonationMade      BehaviorEvent = "donation_made"
	EventVolunteerSignup   BehaviorEvent = "volunteer_signup"
	EventMembershipRenewed BehaviorEvent = "membership_renewed"
	EventEmailOpened       BehaviorEvent = "email_opened"
	EventWebsiteVisit      BehaviorEvent = "website_visit"
)

type behaviorPlan struct {
	steps           []SequenceStep
	engagementBoost int
}

var behaviorPlans = map[BehaviorEvent]behaviorPlan{
	EventDonationMade: {
		steps: []SequenceStep{
			{DelayHours: 0, TemplateID: "behavioral_donation_thanks"},
			{DelayHours: 72, TemplateID: "behavioral_donation_impact"},
		},
		engagementBoost: 10,
	},
	EventVolunteerSignup: {
		steps: []SequenceStep{
			{DelayHours: 0, TemplateID: "behavioral_volunteer_welcome"},
			{DelayHours: 48, TemplateID: "behavioral_volunteer_orientation"},
		},
		engagementBoost: 8,
	},
	EventMembershipRenewed: {
		steps:           []SequenceStep{{DelayHours: 0, TemplateID: "behavioral_renewal_thanks"}},
		engagementBoost: 6,
	},
	EventEmailOpened: {
		steps:           []SequenceStep{{DelayHours: 0, TemplateID: "behavioral_email_engaged"}},
		engagementBoost: 2,
	},
	EventWebsiteVisit: {
		steps:           []SequenceStep{{DelayHours: 0, TemplateID: "behavioral_site_visit_followup"}},
		engagementBoost: 1,
	},
}

// BehaviorSequence returns the fixed steps for event.
func BehaviorSequence(event BehaviorEvent) ([]SequenceStep, bool) {
	p, ok := behaviorPlans[event]
	if !ok {
		return nil, false
	}
	return append([]SequenceStep(nil), p.steps...), true
}

// EngagementBoost is the score increase a behavioral event earns.
func EngagementBoost(event BehaviorEvent) int {
	return behaviorPlans[event].engagementBoost
}

// Bucket is a re-engagement engagement band.
type Bucket string

const (
	BucketHigh   Bucket = "high"
	BucketMedium Bucket = "medium"
	BucketLow    Bucket = "low"
)

// Buckets lists bands from most to least engaged.
var Buckets = []Bucket{BucketHigh, BucketMedium, BucketLow}

// BucketFor places a score: above 50 high, 25 through 50 medium, below 25 low.
func BucketFor(score int) Bucket {
	switch {
	case score > 50:
		return BucketHigh
	case score >= 25:
		return BucketMedium
	default:
		return BucketLow
	}
}

var reengagementSequences = map[Bucket][]SequenceStep{
	BucketHigh: {
		{DelayHours: 0, TemplateID: "reengagement_we_miss_you"},
		{DelayHours: 72, TemplateID: "reengagement_impact_update"},
		{DelayHours: 168, TemplateID: "reengagement_special_invitation"},
	},
	BucketMedium: {
		{DelayHours: 0, TemplateID: "reengagement_we_miss_you"},
		{DelayHours: 120, TemplateID: "reengagement_success_stories"},
		{DelayHours: 240, TemplateID: "reengagement_feedback_survey"},
	},
	BucketLow: {
		{DelayHours: 0, TemplateID: "reengagement_last_chance"},
		{DelayHours: 336, TemplateID: "reengagement_preferences_update"},
	},
}

func ReengagementSequence(b Bucket) []SequenceStep {
	return append([]SequenceStep(nil), reengagementSequences[b]...)
}

var dripCampaigns = map[models.CampaignType]models.DripCampaignDefinition{
	models.CampaignNewMemberOnboarding: {
		Type:         models.CampaignNewMemberOnboarding,
		Name:         "New Member Onboarding",
		DurationDays: 30,
		Steps: []models.DripStep{
			{Day: 0, TemplateID: "welcome_email"},
			{Day: 1, TemplateID: "getting_started"},
			{Day: 3, TemplateID: "community_introduction"},
			{Day: 7, TemplateID: "first_donation_invitation", Condition: triggers.StepNoDonation},
			{Day: 14, TemplateID: "impact_story"},
			{Day: 30, TemplateID: "membership_review", Condition: triggers.StepEligibleForUpgrade},
		},
	},
	models.CampaignDonorStewardship: {
		Type:         models.CampaignDonorStewardship,
		Name:         "Donor Stewardship",
		DurationDays: 90,
		Steps: []models.DripStep{
			{Day: 0, TemplateID: "stewardship_thank_you"},
			{Day: 7, TemplateID: "stewardship_impact_report"},
			{Day: 30, TemplateID: "stewardship_donor_spotlight"},
			{Day: 60, TemplateID: "stewardship_upgrade_invitation", Condition: triggers.StepEligibleForUpgrade},
			{Day: 90, TemplateID: "stewardship_anniversary"},
		},
	},
}

// DripCampaign returns a copy of the campaign definition.
func DripCampaign(t models.CampaignType) (models.DripCampaignDefinition, bool) {
	def, ok := dripCampaigns[t]
	if !ok {
		return models.DripCampaignDefinition{}, false
	}
	def.Steps = append([]models.DripStep(nil), def.Steps...)
	return def, true
}

// Fixed donation and event templates.
const (
	TemplateDonationThankYou    = "donation_thank_you"
	TemplateTaxReceipt          = "donation_tax_receipt"
	TemplateTierCelebration     = "tier_upgrade_celebration"
	TemplateImpactUpdate        = "donation_impact_update"
	TemplateDonorRecognition    = "donor_recognition"
	TemplateEventConfirmation   = "event_registration_confirmation"
	TemplateEventReminder       = "event_reminder"
	TemplateEventReminderSMS    = "event_reminder_sms"
	TemplateEventAttendance     = "event_attendance_thanks"
	TemplateEventSurvey         = "event_survey"
	TemplateEventFollowUp       = "event_follow_up"
	DefaultNewsletterTemplateID = "monthly_newsletter"
	smsReminderMaxHours         = 2
)

// DefaultEventReminderHours are hours before the event start.
func DefaultEventReminderHours() []int {
	return []int{168, 24, 1}
}

// FixedTemplateIDs lists every template the fixed tables reference.
func FixedTemplateIDs() []string {
	ids := []string{
		DefaultNewsletterTemplateID,
		TemplateDonationThankYou, TemplateTaxReceipt, TemplateTierCelebration,
		TemplateImpactUpdate, TemplateDonorRecognition,
		TemplateEventConfirmation, TemplateEventReminder, TemplateEventReminderSMS,
		TemplateEventAttendance, TemplateEventSurvey, TemplateEventFollowUp,
	}
	for _, p := range behaviorPlans {
		for _, s := range p.steps {
			ids = append(ids, s.TemplateID)
		}
	}
	for _, steps := range reengagementSequences {
		for _, s := range steps {
			ids = append(ids, s.TemplateID)
		}
	}
	for _, def := range dripCampaigns {
		for _, s := range def.Steps {
			ids = append(ids, s.TemplateID)
		}
	}
	return ids
}
