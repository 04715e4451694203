package dripenrollment

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

func TestHandler_Execute_DefaultsToOnboarding(t *testing.T) {
	p := jobtest.NewPipeline(t, jobtest.Member("m-1", "Jane"))
	h := createTestHandler(t, p)

	out, err := h.Execute(context.Background(), &Input{MemberID: "m-1"})

	require.NoError(t, err)
	assert.True(t, out.WorkflowSuccess, out.WorkflowErrors)
	assert.Equal(t, 6, out.ScheduledTasks)
	for _, task := range p.Tasks.Tasks {
		assert.Equal(t, models.TaskDripStep, task.TaskType)
		assert.Equal(t, "new_member_onboarding", task.Data["campaignId"])
	}
}

func TestHandler_Execute_SecondEnrollmentIsSkipped(t *testing.T) {
	p := jobtest.NewPipeline(t, jobtest.Member("m-1", "Jane"))
	h := createTestHandler(t, p)
	in := &Input{MemberID: "m-1", CampaignType: "donor_stewardship"}

	first, err := h.Execute(context.Background(), in)
	require.NoError(t, err)
	second, err := h.Execute(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 5, first.ScheduledTasks)
	assert.Zero(t, second.ScheduledTasks)
	assert.True(t, second.WorkflowSuccess)
	assert.Len(t, p.Tasks.Tasks, 5)
}

func TestInputSchema_RejectsUnknownCampaign(t *testing.T) {
	var in Input
	err := automationjob.Decode(jobtest.NewJob(1, TaskType, map[string]interface{}{
		"memberId":     "m-1",
		"campaignType": "holiday_blitz",
	}), GetInputSchema(), &in)

	assert.Error(t, err)
}
