package abtestlaunch

import "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/orchestrators"

type Input struct {
	TestID          string                    `json:"testId"`
	Name            string                    `json:"name"`
	Variants        []orchestrators.ABVariant `json:"variants"`
	TestPercentage  float64                   `json:"testPercentage"`
	Audience        []string                  `json:"audience,omitempty"`
	AnalysisHours   int                       `json:"analysisHours,omitempty"`
	DeploymentHours int                       `json:"deploymentHours,omitempty"`
}

func (in *Input) request() orchestrators.ABTestRequest {
	return orchestrators.ABTestRequest{
		TestID:          in.TestID,
		Name:            in.Name,
		Variants:        in.Variants,
		TestPercentage:  in.TestPercentage,
		AudienceIDs:     in.Audience,
		AnalysisHours:   in.AnalysisHours,
		DeploymentHours: in.DeploymentHours,
	}
}
