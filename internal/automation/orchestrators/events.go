package orchestrators

import (
	"context"
	"fmt"
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

const (
	surveyDelay   = 2 * time.Hour
	followUpDelay = 3 * 24 * time.Hour
	eventTimeFmt  = "Monday, January 2, 2006 3:04 PM"
)

type EventRegistrationRequest struct {
	MemberID      string              `json:"memberId"`
	Event         models.CharityEvent `json:"event"`
	ReminderHours []int               `json:"reminderHours,omitempty"`
}

type EventCheckInRequest struct {
	MemberID string              `json:"memberId"`
	Event    models.CharityEvent `json:"event"`
}

type Events struct {
	base
}

func NewEvents(deps Deps) *Events {
	return &Events{base: newBase(deps)}
}

// Register confirms a registration and schedules the reminders that are
// still ahead of now.
func (o *Events) Register(ctx context.Context, req EventRegistrationRequest) *models.WorkflowResult {
	run := o.start(ctx, WorkflowEventRegistration)
	if req.Event.ID == "" || req.Event.StartsAt.IsZero() {
		run.Fail("invalid event: id and start time are required")
		return run.Finish()
	}

	member, ok := o.fetchMember(run, req.MemberID)
	if !ok {
		return run.Finish()
	}

	vars := eventContext(req.Event)
	if r, ok := o.personalizer.Personalize(TemplateEventConfirmation, member, vars); ok {
		if run.Stage("send_confirmation", func(ctx context.Context) error { return o.send(ctx, member, r) }) {
			run.Action("Registration confirmation sent for %s", req.Event.Name)
		}
	} else {
		run.Error("template %s not found", TemplateEventConfirmation)
	}

	offsets := req.ReminderHours
	if len(offsets) == 0 {
		offsets = o.deps.EventReminderHours
	}
	now := run.Now()
	for _, h := range offsets {
		at := req.Event.StartsAt.Add(-time.Duration(h) * time.Hour)
		if !at.After(now) {
			run.Action("Skipped %dh reminder, already past", h)
			continue
		}

		templateID := TemplateEventReminder
		if h <= smsReminderMaxHours && member.Phone != "" {
			templateID = TemplateEventReminderSMS
		}
		reminderVars := eventContext(req.Event)
		reminderVars["time_until_event"] = humanizeHours(h)

		r, ok := o.personalizer.Personalize(templateID, member, reminderVars)
		if !ok {
			run.Error("template %s not found", templateID)
			continue
		}
		payload := messageData(member, r)
		data := payload.ToData()
		data["eventId"] = req.Event.ID
		run.Schedule(o.scheduler.At(at, models.TaskEventReminder, data, models.PriorityMedium))
		run.Action("Scheduled %dh reminder", h)
	}

	o.track(run, member.ID, map[string]interface{}{"eventId": req.Event.ID})
	return run.Finish()
}

// CheckIn thanks an attendee now and schedules the survey and follow-up
// relative to the event end.
func (o *Events) CheckIn(ctx context.Context, req EventCheckInRequest) *models.WorkflowResult {
	run := o.start(ctx, WorkflowEventCheckIn)
	if req.Event.ID == "" {
		run.Fail("invalid event: id is required")
		return run.Finish()
	}

	member, ok := o.fetchMember(run, req.MemberID)
	if !ok {
		return run.Finish()
	}

	vars := eventContext(req.Event)
	if r, ok := o.personalizer.Personalize(TemplateEventAttendance, member, vars); ok {
		if run.Stage("send_attendance_thanks", func(ctx context.Context) error { return o.send(ctx, member, r) }) {
			run.Action("Attendance thank-you sent")
		}
	} else {
		run.Error("template %s not found", TemplateEventAttendance)
	}

	end := req.Event.EndsAt
	if end.IsZero() {
		end = run.Now()
	}
	for _, step := range []struct {
		templateID string
		taskType   string
		at         time.Time
	}{
		{TemplateEventSurvey, models.TaskEventSurvey, end.Add(surveyDelay)},
		{TemplateEventFollowUp, models.TaskEventFollowUp, end.Add(followUpDelay)},
	} {
		r, ok := o.personalizer.Personalize(step.templateID, member, vars)
		if !ok {
			run.Error("template %s not found", step.templateID)
			continue
		}
		data := messageData(member, r).ToData()
		data["eventId"] = req.Event.ID
		run.Schedule(o.scheduler.At(step.at, step.taskType, data, models.PriorityMedium))
		run.Action("Scheduled %s", step.templateID)
	}

	o.track(run, member.ID, map[string]interface{}{"eventId": req.Event.ID})
	return run.Finish()
}

func eventContext(e models.CharityEvent) map[string]interface{} {
	location := e.Location
	if location == "" {
		location = "the venue"
	}
	return map[string]interface{}{
		"event_name":     e.Name,
		"event_date":     e.StartsAt.Format(eventTimeFmt),
		"event_location": location,
	}
}

func humanizeHours(h int) string {
	switch {
	case h%24 == 0 && h/24 == 1:
		return "1 day"
	case h%24 == 0:
		return fmt.Sprintf("%d days", h/24)
	case h == 1:
		return "1 hour"
	default:
		return fmt.Sprintf("%d hours", h)
	}
}
