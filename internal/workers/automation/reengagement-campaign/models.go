package reengagementcampaign

type Input struct {
	ThresholdDays int `json:"thresholdDays,omitempty"`
}
