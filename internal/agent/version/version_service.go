package version

import (
	"time"

	"flux-exporter/internal/config"
)

func Get(cfg config.Config) *GetVersionResponse {
	return &GetVersionResponse{
		ExporterVersion: cfg.ExporterVersion,
		SchedulerMode:   string(cfg.SchedulerMode),
		ListenAddr:      cfg.ListenAddr,
		PollInterval:    cfg.PollInterval.String(),
		CheckedAtUnix:   time.Now().UTC().Unix(),
	}
}
