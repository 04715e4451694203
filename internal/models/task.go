// internal/models/task.go
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Task types understood by the due-task runner.
const (
	TaskSendMessage          = "send_message"
	TaskSendNewsletter       = "send_newsletter"
	TaskSendTaxReceipt       = "send_tax_receipt"
	TaskSendImpactUpdate     = "send_impact_update"
	TaskDonorRecognition     = "donor_recognition"
	TaskTierCelebration      = "tier_upgrade_celebration"
	TaskStaffFollowUp        = "staff_follow_up"
	TaskDripStep             = "drip_campaign_step"
	TaskEventReminder        = "event_reminder"
	TaskEventSurvey          = "event_survey"
	TaskEventFollowUp        = "event_follow_up"
	TaskABTestSend           = "ab_test_send"
	TaskABTestAnalysis       = "ab_test_analysis"
	TaskABTestWinnerDeploy   = "ab_test_winner_deployment"
	TaskReengagementStep     = "reengagement_step"
	TaskBehavioralSequence   = "behavioral_sequence_step"
	TaskThankYou             = "send_thank_you"
	TaskEventRegistrationAck = "event_registration_confirmation"
)

// ScheduledTask is a unit of deferred work. The automation core only produces
// these; persisting and firing them belongs to the task sink and runner.
type ScheduledTask struct {
	ID           string                 `json:"id"`
	TaskType     string                 `json:"taskType"`
	ScheduledFor time.Time              `json:"scheduledFor"`
	Data         map[string]interface{} `json:"data"`
	Priority     Priority               `json:"priority"`
}

// MessagePayload is the typed view of ScheduledTask.Data for tasks that
// deliver a rendered message to one member.
type MessagePayload struct {
	MemberID    string       `json:"memberId"`
	Channel     Channel      `json:"channel"`
	Recipient   Recipient    `json:"recipient"`
	TemplateID  string       `json:"templateId"`
	Subject     string       `json:"subject"`
	Content     string       `json:"content"`
	Condition   string       `json:"condition,omitempty"`
	CampaignID  string       `json:"campaignId,omitempty"`
	Step        int          `json:"step,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// ToData flattens the payload into the opaque task data map.
func (p MessagePayload) ToData() map[string]interface{} {
	raw, err := json.Marshal(p)
	if err != nil {
		return map[string]interface{}{"memberId": p.MemberID}
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return map[string]interface{}{"memberId": p.MemberID}
	}
	return data
}

// ParseMessagePayload reads a MessagePayload back out of task data.
func ParseMessagePayload(data map[string]interface{}) (MessagePayload, error) {
	var p MessagePayload
	raw, err := json.Marshal(data)
	if err != nil {
		return p, fmt.Errorf("encode task data: %w", err)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode message payload: %w", err)
	}
	if p.MemberID == "" {
		return p, fmt.Errorf("message payload missing memberId")
	}
	return p, nil
}

// StaffTask is a follow-up item for a human, created in the CRM.
type StaffTask struct {
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	MemberID    string    `json:"memberId"`
	DueDate     time.Time `json:"dueDate"`
	Priority    Priority  `json:"priority"`
}
