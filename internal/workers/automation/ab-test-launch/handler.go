package abtestlaunch

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/dispatcher"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/logger"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/workers/automationjob"
)

const TaskType = "ab-test-launch"

type Handler struct {
	config *Config
	events automationjob.EventHandler
	logger logger.Logger
	runner *automationjob.Runner
}

func NewHandler(config *Config, events automationjob.EventHandler, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		events: events,
		logger: log,
		runner: automationjob.NewRunner(TaskType, config.Timeout, log),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.runner.Run(client, job, func(ctx context.Context) (*automationjob.Output, error) {
		var input Input
		if err := automationjob.Decode(job, GetInputSchema(), &input); err != nil {
			return nil, err
		}
		return h.execute(ctx, &input, automationjob.MessageID(job))
	})
}

// Execute launches the test. Variant and percentage rules beyond the schema
// are enforced by the workflow and reported as workflow errors.
func (h *Handler) Execute(ctx context.Context, input *Input) (*automationjob.Output, error) {
	return h.execute(ctx, input, "")
}

func (h *Handler) execute(ctx context.Context, input *Input, messageID string) (*automationjob.Output, error) {
	h.logger.Info("Launching A/B test", map[string]interface{}{
		"testId":   input.TestID,
		"variants": len(input.Variants),
	})
	return automationjob.Raise(ctx, h.events, dispatcher.EventABTestLaunch, input.request(), messageID)
}
