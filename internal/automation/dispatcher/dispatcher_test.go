package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/orchestrators"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/templates"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/workflow"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/logger"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type failingSink struct{ err error }

func (s failingSink) Enqueue(context.Context, models.ScheduledTask) error { return s.err }

// panickingMembers blows up on the first lookup.
type panickingMembers struct {
	*workflow.MemoryMemberStore
}

func (panickingMembers) GetMember(context.Context, string) (models.Member, error) {
	panic("member cache not initialised")
}

func newDeps(t *testing.T, members workflow.MemberStore) orchestrators.Deps {
	return orchestrators.Deps{
		Members:   members,
		Transport: &workflow.RecordingTransport{},
		Templates: templates.MustDefault(),
		Runtime: workflow.Runtime{
			Logger:      logger.NewTestLogger(t),
			CallTimeout: time.Second,
			Now:         clock,
		},
		Shuffle:   func(int, func(i, j int)) {},
		RetryBase: time.Millisecond,
	}
}

func jane() models.Member {
	return models.Member{
		ID:              "m-1",
		FirstName:       "Jane",
		LastName:        "Doe",
		Email:           "jane@example.org",
		Tier:            models.TierMember,
		EngagementScore: 40,
		MemberSince:     fixedNow.AddDate(0, 0, -2),
		EmailSubscribed: true,
	}
}

func mustEvent(t *testing.T, et EventType, payload interface{}) Event {
	t.Helper()
	ev, err := NewEvent(et, payload)
	require.NoError(t, err)
	return ev
}

// ==========================
// Routing
// ==========================

func TestDispatch_PaymentConfirmedEnqueuesFollowUps(t *testing.T) {
	store := workflow.NewMemoryMemberStore(clock, jane())
	sink := &workflow.MemoryTaskSink{}
	d := New(newDeps(t, store), sink, logger.NewTestLogger(t))

	res := d.Dispatch(context.Background(), mustEvent(t, EventPaymentConfirmed, models.PaymentConfirmation{
		DonationID: "d-1", MemberID: "m-1", Amount: 50,
	}))

	require.True(t, res.Success, res.Errors)
	assert.Equal(t, orchestrators.WorkflowDonationAck, res.Workflow)
	require.NotEmpty(t, res.ScheduledTasks)
	assert.Equal(t, res.ScheduledTasks, sink.Tasks)
}

func TestDispatch_MemberRegisteredStartsOnboarding(t *testing.T) {
	store := workflow.NewMemoryMemberStore(clock, jane())
	sink := &workflow.MemoryTaskSink{}
	d := New(newDeps(t, store), sink, nil)

	res := d.Dispatch(context.Background(), mustEvent(t, EventMemberRegistered, MemberRegistered{MemberID: "m-1"}))

	require.True(t, res.Success, res.Errors)
	assert.Equal(t, orchestrators.WorkflowDrip, res.Workflow)
	assert.Len(t, sink.Tasks, 6)
}

func TestDispatch_DripEnrollmentStartsNamedCampaign(t *testing.T) {
	store := workflow.NewMemoryMemberStore(clock, jane())
	sink := &workflow.MemoryTaskSink{}
	d := New(newDeps(t, store), sink, nil)

	res := d.Dispatch(context.Background(), mustEvent(t, EventDripEnrollment, orchestrators.DripRequest{
		MemberID:     "m-1",
		CampaignType: string(models.CampaignDonorStewardship),
	}))

	require.True(t, res.Success, res.Errors)
	assert.Equal(t, orchestrators.WorkflowDrip, res.Workflow)
	assert.Len(t, sink.Tasks, 5)
}

func TestDispatch_NewsletterTickUsesDefaults(t *testing.T) {
	store := workflow.NewMemoryMemberStore(clock, jane())
	sink := &workflow.MemoryTaskSink{}
	d := New(newDeps(t, store), sink, nil, WithNewsletterDefaults(orchestrators.NewsletterRequest{
		TemplateID: orchestrators.DefaultNewsletterTemplateID,
		Rules:      []models.SegmentationRule{{Name: "new", Condition: models.ConditionNewMember, Weight: 1}},
	}))

	res := d.Dispatch(context.Background(), Event{Type: EventNewsletterTick})

	require.True(t, res.Success, res.Errors)
	require.Len(t, sink.Tasks, 1)
	assert.Equal(t, models.TaskSendNewsletter, sink.Tasks[0].TaskType)
}

func TestDispatch_UnknownEventType(t *testing.T) {
	d := New(newDeps(t, workflow.NewMemoryMemberStore(clock)), &workflow.MemoryTaskSink{}, nil)

	res := d.Dispatch(context.Background(), Event{Type: "member.teleported"})

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "member.teleported")
}

func TestDispatch_MissingPayload(t *testing.T) {
	d := New(newDeps(t, workflow.NewMemoryMemberStore(clock)), &workflow.MemoryTaskSink{}, nil)

	res := d.Dispatch(context.Background(), Event{Type: EventMemberAction})

	assert.False(t, res.Success)
	assert.Equal(t, orchestrators.WorkflowBehavioral, res.Workflow)
}

func TestDispatch_MalformedPayload(t *testing.T) {
	d := New(newDeps(t, workflow.NewMemoryMemberStore(clock)), &workflow.MemoryTaskSink{}, nil)

	res := d.Dispatch(context.Background(), Event{Type: EventABTestLaunch, Payload: json.RawMessage(`{"variants":"nope"}`)})

	assert.False(t, res.Success)
	assert.Contains(t, res.Errors[0], "decode ab_test.launch payload")
}

// ==========================
// Failure handling
// ==========================

func TestDispatch_RecoversPanics(t *testing.T) {
	store := panickingMembers{workflow.NewMemoryMemberStore(clock)}
	d := New(newDeps(t, store), &workflow.MemoryTaskSink{}, nil)

	var res *models.WorkflowResult
	assert.NotPanics(t, func() {
		res = d.Dispatch(context.Background(), mustEvent(t, EventMemberRegistered, MemberRegistered{MemberID: "m-1"}))
	})

	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Contains(t, res.Errors[0], "member cache not initialised")
}

func TestDispatch_EnqueueFailuresBecomeErrors(t *testing.T) {
	store := workflow.NewMemoryMemberStore(clock, jane())
	d := New(newDeps(t, store), failingSink{err: errors.New("queue unavailable")}, nil)

	res := d.Dispatch(context.Background(), mustEvent(t, EventMemberRegistered, MemberRegistered{MemberID: "m-1"}))

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 6)
	assert.Contains(t, res.Errors[0], "queue unavailable")
}

func TestEventType_Valid(t *testing.T) {
	assert.True(t, EventEventCheckedIn.Valid())
	assert.False(t, EventType("payment.refunded").Valid())
}
