package behavioraltrigger

import (
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/config"
)

type Config struct {
	Enabled bool
	Timeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	wc := config.GetWorkerConfig(cfg, TaskType)
	return &Config{Enabled: wc.Enabled, Timeout: config.GetDuration(wc.Timeout)}
}
