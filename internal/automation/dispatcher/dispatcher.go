// Package dispatcher routes automation events to orchestrators and hands
// the scheduled tasks they produce to the task sink.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/orchestrators"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/workflow"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/errors"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/logger"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

type EventType string

const (
	EventPaymentConfirmed EventType = "payment.confirmed"
	EventMemberAction     EventType = "member.action"
	EventMemberRegistered EventType = "member.registered"
	EventDripEnrollment   EventType = "drip.enroll"
	EventNewsletterTick   EventType = "newsletter.tick"
	EventReengagementTick EventType = "reengagement.tick"
	EventABTestLaunch     EventType = "ab_test.launch"
	EventEventRegistered  EventType = "event.registered"
	EventEventCheckedIn   EventType = "event.checked_in"
)

func (t EventType) Valid() bool {
	switch t {
	case EventPaymentConfirmed, EventMemberAction, EventMemberRegistered, EventDripEnrollment, EventNewsletterTick,
		EventReengagementTick, EventABTestLaunch, EventEventRegistered, EventEventCheckedIn:
		return true
	}
	return false
}

// Event is one inbound automation trigger. Payload is decoded according to
// Type.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent encodes payload into an Event.
func NewEvent(t EventType, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Event{Type: t, Payload: raw}, nil
}

// MemberRegistered is the payload of member.registered.
type MemberRegistered struct {
	MemberID string `json:"memberId"`
}

type Dispatcher struct {
	newsletter   *orchestrators.Newsletter
	behavioral   *orchestrators.Behavioral
	reengagement *orchestrators.Reengagement
	drip         *orchestrators.Drip
	abTest       *orchestrators.ABTest
	donation     *orchestrators.DonationAcknowledgment
	events       *orchestrators.Events

	tasks              workflow.TaskSink
	logger             logger.Logger
	newsletterDefaults orchestrators.NewsletterRequest
}

type Option func(*Dispatcher)

// WithNewsletterDefaults fills newsletter.tick events that carry no template
// or rules.
func WithNewsletterDefaults(req orchestrators.NewsletterRequest) Option {
	return func(d *Dispatcher) { d.newsletterDefaults = req }
}

func New(deps orchestrators.Deps, tasks workflow.TaskSink, log logger.Logger, opts ...Option) *Dispatcher {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if deps.Runtime.Logger == nil {
		deps.Runtime.Logger = log
	}
	d := &Dispatcher{
		newsletter:   orchestrators.NewNewsletter(deps),
		behavioral:   orchestrators.NewBehavioral(deps),
		reengagement: orchestrators.NewReengagement(deps),
		drip:         orchestrators.NewDrip(deps),
		abTest:       orchestrators.NewABTest(deps),
		donation:     orchestrators.NewDonationAcknowledgment(deps),
		events:       orchestrators.NewEvents(deps),
		tasks:        tasks,
		logger:       log.WithFields(map[string]interface{}{"component": "dispatcher"}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch always returns a result. Panics inside an orchestrator are
// recovered and reported as a failed result.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (result *models.WorkflowResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("orchestrator panicked", map[string]interface{}{
				"eventType": string(ev.Type),
				"panic":     fmt.Sprint(r),
				"stack":     string(debug.Stack()),
			})
			result = failed(string(ev.Type), fmt.Sprintf("internal error: %v", r))
		}
	}()

	result = d.route(ctx, ev)
	d.enqueue(ctx, result)
	return result
}

func (d *Dispatcher) route(ctx context.Context, ev Event) *models.WorkflowResult {
	switch ev.Type {
	case EventPaymentConfirmed:
		var p models.PaymentConfirmation
		if err := decode(ev, &p); err != nil {
			return failed(orchestrators.WorkflowDonationAck, errorText(err))
		}
		return d.donation.Run(ctx, orchestrators.DonationRequest{Payment: p})

	case EventMemberAction:
		var req orchestrators.BehavioralRequest
		if err := decode(ev, &req); err != nil {
			return failed(orchestrators.WorkflowBehavioral, errorText(err))
		}
		return d.behavioral.Run(ctx, req)

	case EventMemberRegistered:
		var p MemberRegistered
		if err := decode(ev, &p); err != nil {
			return failed(orchestrators.WorkflowDrip, errorText(err))
		}
		return d.drip.Run(ctx, orchestrators.DripRequest{
			MemberID:     p.MemberID,
			CampaignType: string(models.CampaignNewMemberOnboarding),
		})

	case EventDripEnrollment:
		var req orchestrators.DripRequest
		if err := decode(ev, &req); err != nil {
			return failed(orchestrators.WorkflowDrip, errorText(err))
		}
		return d.drip.Run(ctx, req)

	case EventNewsletterTick:
		var req orchestrators.NewsletterRequest
		if err := decodeOptional(ev, &req); err != nil {
			return failed(orchestrators.WorkflowNewsletter, errorText(err))
		}
		if req.TemplateID == "" {
			req.TemplateID = d.newsletterDefaults.TemplateID
		}
		if len(req.Rules) == 0 {
			req.Rules = d.newsletterDefaults.Rules
		}
		return d.newsletter.Run(ctx, req)

	case EventReengagementTick:
		var req orchestrators.ReengagementRequest
		if err := decodeOptional(ev, &req); err != nil {
			return failed(orchestrators.WorkflowReengagement, errorText(err))
		}
		return d.reengagement.Run(ctx, req)

	case EventABTestLaunch:
		var req orchestrators.ABTestRequest
		if err := decode(ev, &req); err != nil {
			return failed(orchestrators.WorkflowABTest, errorText(err))
		}
		return d.abTest.Run(ctx, req)

	case EventEventRegistered:
		var req orchestrators.EventRegistrationRequest
		if err := decode(ev, &req); err != nil {
			return failed(orchestrators.WorkflowEventRegistration, errorText(err))
		}
		return d.events.Register(ctx, req)

	case EventEventCheckedIn:
		var req orchestrators.EventCheckInRequest
		if err := decode(ev, &req); err != nil {
			return failed(orchestrators.WorkflowEventCheckIn, errorText(err))
		}
		return d.events.CheckIn(ctx, req)

	default:
		err := errors.NewUnknownEventTypeError(string(ev.Type))
		d.logger.Warn("unknown event type", map[string]interface{}{"eventType": string(ev.Type)})
		return failed(string(ev.Type), errorText(err))
	}
}

// enqueue hands every scheduled task to the sink; failures become result
// errors.
func (d *Dispatcher) enqueue(ctx context.Context, result *models.WorkflowResult) {
	if d.tasks == nil {
		return
	}
	for _, task := range result.ScheduledTasks {
		if err := d.tasks.Enqueue(ctx, task); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("enqueue %s %s: %v", task.TaskType, task.ID, err))
			d.logger.Error("failed to enqueue task", map[string]interface{}{
				"taskId":   task.ID,
				"taskType": task.TaskType,
				"error":    err.Error(),
			})
		}
	}
	result.Success = len(result.Errors) == 0
}

func decode(ev Event, v interface{}) error {
	if len(ev.Payload) == 0 {
		return errors.NewInvalidInputError(fmt.Sprintf("%s event has no payload", ev.Type))
	}
	return decodeOptional(ev, v)
}

func decodeOptional(ev Event, v interface{}) error {
	if len(ev.Payload) == 0 || string(ev.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(ev.Payload, v); err != nil {
		return errors.NewInvalidInputError(fmt.Sprintf("decode %s payload: %v", ev.Type, err))
	}
	return nil
}

func failed(workflow, msg string) *models.WorkflowResult {
	return &models.WorkflowResult{
		Workflow:        workflow,
		Success:         false,
		ActionsExecuted: []string{},
		ScheduledTasks:  []models.ScheduledTask{},
		Errors:          []string{msg},
	}
}

func errorText(err error) string {
	if stdErr, ok := errors.AsStandardError(err); ok && stdErr.Details != "" {
		return stdErr.Message + ": " + stdErr.Details
	}
	return err.Error()
}
