package eventcheckin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/logger"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/workers/automationjob"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/workers/automationjob/jobtest"
)

func createTestHandler(t *testing.T, p *jobtest.Pipeline) *Handler {
	return NewHandler(&Config{Enabled: true, Timeout: 5 * time.Second}, p.Intake, logger.NewTestLogger(t))
}

func TestHandler_Execute_ThanksAndSchedulesSurveyAndFollowUp(t *testing.T) {
	p := jobtest.NewPipeline(t, jobtest.Member("m-1", "Jane"))
	h := createTestHandler(t, p)
	event := models.CharityEvent{
		ID:       "ev-run",
		Name:     "Charity 5K",
		StartsAt: jobtest.Now.Add(-3 * time.Hour),
		EndsAt:   jobtest.Now.Add(-time.Hour),
	}

	out, err := h.Execute(context.Background(), &Input{MemberID: "m-1", Event: event})

	require.NoError(t, err)
	assert.True(t, out.WorkflowSuccess, out.WorkflowErrors)
	require.Len(t, p.Transport.Sent, 1)
	assert.Contains(t, p.Transport.Sent[0].Message.Subject, "Charity 5K")

	require.Len(t, p.Tasks.Tasks, 2)
	assert.Equal(t, models.TaskEventSurvey, p.Tasks.Tasks[0].TaskType)
	assert.Equal(t, models.TaskEventFollowUp, p.Tasks.Tasks[1].TaskType)
	for _, task := range p.Tasks.Tasks {
		assert.True(t, task.ScheduledFor.After(event.EndsAt))
		assert.Equal(t, "ev-run", task.Data["eventId"])
	}
}

func TestHandler_Handle_DecodesJobVariables(t *testing.T) {
	var in Input
	job := jobtest.NewJob(7, TaskType, map[string]interface{}{
		"memberId": "m-1",
		"event": map[string]interface{}{
			"id":     "ev-run",
			"name":   "Charity 5K",
			"endsAt": "2026-05-20T14:00:00Z",
		},
	})

	require.NoError(t, automationjob.Decode(job, GetInputSchema(), &in))
	assert.Equal(t, "ev-run", in.Event.ID)
	assert.Equal(t, time.Date(2026, 5, 20, 14, 0, 0, 0, time.UTC), in.Event.EndsAt.UTC())
}

func TestInputSchema_RequiresMember(t *testing.T) {
	var in Input
	job := jobtest.NewJob(1, TaskType, map[string]interface{}{
		"event": map[string]interface{}{"id": "ev-1"},
	})

	assert.Error(t, automationjob.Decode(job, GetInputSchema(), &in))
}
