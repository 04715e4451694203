// internal/models/workflow.go
package models

import (
	"fmt"
	"time"
)

// ConditionKind is the closed set of segmentation rule conditions.
type ConditionKind string

const (
	ConditionHighEngagement ConditionKind = "high_engagement"
	ConditionRecentDonor    ConditionKind = "recent_donor"
	ConditionPremiumTier    ConditionKind = "premium_tier"
	ConditionNewMember      ConditionKind = "new_member"
	ConditionCustom         ConditionKind = "custom"
)

type SegmentationRule struct {
	Name      string        `json:"name"`
	Condition ConditionKind `json:"condition"`
	Weight    float64       `json:"weight"`
}

// BehaviorTrigger describes when a behavioral sequence may fire.
type BehaviorTrigger struct {
	Event         string                 `json:"event"`
	Conditions    map[string]interface{} `json:"conditions,omitempty"`
	DelayHours    float64                `json:"delay"`
	MaxExecutions *int                   `json:"maxExecutions,omitempty"`
	CooldownHours *float64               `json:"cooldownPeriod,omitempty"`
}

// CampaignType is the closed set of drip campaigns.
type CampaignType string

const (
	CampaignNewMemberOnboarding CampaignType = "new_member_onboarding"
	CampaignDonorStewardship    CampaignType = "donor_stewardship"
)

func ParseCampaignType(s string) (CampaignType, error) {
	switch CampaignType(s) {
	case CampaignNewMemberOnboarding, CampaignDonorStewardship:
		return CampaignType(s), nil
	}
	return "", fmt.Errorf("unknown campaign type %q", s)
}

type DripStep struct {
	Day        int    `json:"day"`
	TemplateID string `json:"templateId"`
	Condition  string `json:"condition,omitempty"`
}

type DripCampaignDefinition struct {
	Type         CampaignType `json:"type"`
	Name         string       `json:"name"`
	DurationDays int          `json:"durationDays"`
	Steps        []DripStep   `json:"steps"`
}

const CampaignStatusActive = "active"

type CampaignState struct {
	MemberID    string    `json:"memberId"`
	CampaignID  string    `json:"campaignId"`
	StartDate   time.Time `json:"startDate"`
	CurrentStep int       `json:"currentStep"`
	Status      string    `json:"status"`
}

// CharityEvent is a scheduled gathering members can register for.
type CharityEvent struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Location string    `json:"location,omitempty"`
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`
}

type SegmentationSummary struct {
	MatchedMembers int                 `json:"matchedMembers"`
	Segments       []string            `json:"segments"`
	AverageScore   float64             `json:"averageScore"`
	Buckets        map[string]int      `json:"buckets,omitempty"`
	Groups         map[string][]string `json:"groups,omitempty"`
}

// WorkflowResult is the outcome of one orchestrator run. Success is false
// whenever Errors is non-empty.
type WorkflowResult struct {
	Workflow            string               `json:"workflow"`
	Success             bool                 `json:"success"`
	ActionsExecuted     []string             `json:"actionsExecuted"`
	ScheduledTasks      []ScheduledTask      `json:"scheduledTasks"`
	Errors              []string             `json:"errors"`
	SegmentationResults *SegmentationSummary `json:"segmentationResults,omitempty"`
	EngagementScore     *int                 `json:"engagementScore,omitempty"`
}

// TrackingEvent is what analytics sinks receive once a workflow finishes.
type TrackingEvent struct {
	Workflow       string                 `json:"workflow"`
	MemberID       string                 `json:"memberId,omitempty"`
	Success        bool                   `json:"success"`
	Actions        int                    `json:"actions"`
	ScheduledTasks int                    `json:"scheduledTasks"`
	Errors         int                    `json:"errors"`
	Attributes     map[string]interface{} `json:"attributes,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
}
