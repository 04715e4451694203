// Package workflow holds the pipeline every orchestrator runs on and the
// collaborator interfaces orchestrators are constructed with.
package workflow

import (
	"context"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/triggers"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

// MemberStore is the external member record system.
type MemberStore interface {
	GetMember(ctx context.Context, id string) (models.Member, error)
	UpdateMember(ctx context.Context, id string, patch models.MemberPatch) error
	GetMemberDonations(ctx context.Context, memberID string) ([]models.Donation, error)
	ListInactiveMembers(ctx context.Context, thresholdDays int) ([]models.Member, error)
	ListNewsletterSubscribers(ctx context.Context) ([]models.Member, error)
}

// Transport delivers one message on one channel.
type Transport interface {
	Send(ctx context.Context, channel models.Channel, recipient models.Recipient, msg models.Message) error
}

type (
	ExecutionLog       = triggers.ExecutionLog
	AtomicExecutionLog = triggers.AtomicExecutionLog
)

// TaskSink persists scheduled tasks for a later runner.
type TaskSink interface {
	Enqueue(ctx context.Context, task models.ScheduledTask) error
}

// AnalyticsSink receives one tracking record per finished workflow.
type AnalyticsSink interface {
	Track(ctx context.Context, event models.TrackingEvent) error
}

// ExternalAutomationHook notifies an outside automation system (a BPMN
// engine or webhook consumer) that something happened.
type ExternalAutomationHook interface {
	Trigger(ctx context.Context, event string, payload map[string]interface{}) error
}

// StaffTaskSink creates follow-up items for staff.
type StaffTaskSink interface {
	CreateTask(ctx context.Context, task models.StaffTask) error
}

// CampaignStateStore saves drip enrollments. created is false when the member
// is already enrolled in the campaign.
type CampaignStateStore interface {
	SaveCampaignState(ctx context.Context, state models.CampaignState) (created bool, err error)
}
