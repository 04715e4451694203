// Package jobtest builds Zeebe jobs and an in-memory automation pipeline
// for worker tests.
package jobtest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/dispatcher"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/orchestrators"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/templates"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/workflow"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/logger"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/intake"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

var Now = time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)

func Clock() time.Time { return Now }

func NewJob(key int64, taskType string, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	activatedJob := &pb.ActivatedJob{
		Key:                      key,
		Type:                     taskType,
		ProcessInstanceKey:       key * 10,
		BpmnProcessId:            "charity-automation",
		ProcessDefinitionVersion: 1,
		ProcessDefinitionKey:     1,
		ElementId:                "Activity_" + taskType,
		ElementInstanceKey:       1,
		CustomHeaders:            "{}",
		Worker:                   "test-worker",
		Retries:                  3,
		Variables:                string(variablesJSON),
	}

	return entities.Job{ActivatedJob: activatedJob}
}

// Pipeline is a dispatcher over in-memory stores behind an intake.
type Pipeline struct {
	Intake    *intake.Intake
	Members   *workflow.MemoryMemberStore
	Tasks     *workflow.MemoryTaskSink
	Transport *workflow.RecordingTransport
}

func NewPipeline(t *testing.T, members ...models.Member) *Pipeline {
	t.Helper()
	p := &Pipeline{
		Members:   workflow.NewMemoryMemberStore(Clock, members...),
		Tasks:     &workflow.MemoryTaskSink{},
		Transport: &workflow.RecordingTransport{},
	}
	deps := orchestrators.Deps{
		Members:   p.Members,
		Transport: p.Transport,
		Templates: templates.MustDefault(),
		Runtime: workflow.Runtime{
			Logger:      logger.NewTestLogger(t),
			CallTimeout: time.Second,
			Now:         Clock,
		},
		Shuffle:   func(int, func(i, j int)) {},
		RetryBase: time.Millisecond,
	}
	d := dispatcher.New(deps, p.Tasks, logger.NewTestLogger(t))
	p.Intake = intake.New(d, nil, nil, logger.NewTestLogger(t))
	return p
}

// Member is a subscribed member who joined two days before Now.
func Member(id, firstName string) models.Member {
	return models.Member{
		ID:              id,
		FirstName:       firstName,
		LastName:        "Doe",
		Email:           firstName + "@example.org",
		Phone:           "+14045550100",
		Tier:            models.TierMember,
		EngagementScore: 40,
		MemberSince:     Now.AddDate(0, 0, -2),
		EmailSubscribed: true,
	}
}
