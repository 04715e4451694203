package abtestlaunch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/orchestrators"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/logger"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/workers/automationjob"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/workers/automationjob/jobtest"
)

func createTestHandler(t *testing.T, p *jobtest.Pipeline) *Handler {
	return NewHandler(&Config{Enabled: true, Timeout: 5 * time.Second}, p.Intake, logger.NewTestLogger(t))
}

func variants(ids ...string) []orchestrators.ABVariant {
	out := make([]orchestrators.ABVariant, len(ids))
	for i, id := range ids {
		out[i] = orchestrators.ABVariant{ID: id, TemplateID: "monthly_newsletter"}
	}
	return out
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute_SchedulesSendsAnalysisAndDeployment(t *testing.T) {
	p := jobtest.NewPipeline(t,
		jobtest.Member("m-1", "Ann"), jobtest.Member("m-2", "Ben"),
		jobtest.Member("m-3", "Cal"), jobtest.Member("m-4", "Dee"))
	h := createTestHandler(t, p)

	out, err := h.Execute(context.Background(), &Input{
		TestID:         "spring-subject",
		Variants:       variants("a", "b"),
		TestPercentage: 50,
	})

	require.NoError(t, err)
	assert.True(t, out.WorkflowSuccess, out.WorkflowErrors)
	assert.Equal(t, 4, out.ScheduledTasks)
	require.NotNil(t, out.Segmentation)
	assert.Equal(t, 1, out.Segmentation.Buckets["a"])
	assert.Equal(t, 1, out.Segmentation.Buckets["b"])
	assert.Equal(t, 2, out.Segmentation.Buckets[orchestrators.WinnerGroup])

	var types []string
	for _, task := range p.Tasks.Tasks {
		types = append(types, task.TaskType)
	}
	assert.ElementsMatch(t, []string{
		models.TaskABTestSend, models.TaskABTestSend, models.TaskABTestAnalysis, models.TaskABTestWinnerDeploy,
	}, types)
}

func TestHandler_Execute_SingleVariantIsWorkflowFailure(t *testing.T) {
	p := jobtest.NewPipeline(t, jobtest.Member("m-1", "Ann"))
	h := createTestHandler(t, p)

	out, err := h.Execute(context.Background(), &Input{
		TestID:         "solo",
		Variants:       variants("a"),
		TestPercentage: 50,
	})

	require.NoError(t, err)
	assert.False(t, out.WorkflowSuccess)
	assert.Empty(t, p.Tasks.Tasks)
}

// ==========================
// Schema
// ==========================

func TestInputSchema(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]interface{}
		wantErr bool
	}{
		{
			name: "valid",
			vars: map[string]interface{}{
				"testId":         "t-1",
				"testPercentage": 20,
				"variants": []interface{}{
					map[string]interface{}{"id": "a", "templateId": "x"},
					map[string]interface{}{"id": "b", "templateId": "y"},
				},
			},
		},
		{
			name:    "missing variants",
			vars:    map[string]interface{}{"testId": "t-1", "testPercentage": 20},
			wantErr: true,
		},
		{
			name: "percentage above 100",
			vars: map[string]interface{}{
				"testId":         "t-1",
				"testPercentage": 150,
				"variants":       []interface{}{},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in Input
			err := automationjob.Decode(jobtest.NewJob(1, TaskType, tt.vars), GetInputSchema(), &in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, in.Variants, 2)
		})
	}
}
