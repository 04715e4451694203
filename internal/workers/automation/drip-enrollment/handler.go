package dripenrollment

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/dispatcher"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/orchestrators"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/logger"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/workers/automationjob"
)

const TaskType = "drip-enrollment"

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
		// enrollment is already idempotent per member and campaign
		return h.Execute(ctx, &input)
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*automationjob.Output, error) {
	campaign := input.CampaignType
	if campaign == "" {
		campaign = string(models.CampaignNewMemberOnboarding)
	}
	req := orchestrators.DripRequest{MemberID: input.MemberID, CampaignType: campaign}
	return automationjob.Raise(ctx, h.events, dispatcher.EventDripEnrollment, req, "")
}
