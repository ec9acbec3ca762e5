package flux

import (
	"crypto/tls"
	"fmt"
	"log/slog"

	"flux-exporter/internal/config"
)

// NewClientFromConfig returns the scheduler client for cfg.SchedulerMode and
// a close function releasing its resources.
func NewClientFromConfig(cfg config.Config, tlsCfg *tls.Config, logger *slog.Logger) (Client, func() error, error) {
	switch cfg.SchedulerMode {
	case config.SchedulerModeCLI:
		return NewCLIClient(cfg.FluxCommand, ExecRunner{}), func() error { return nil }, nil
	case config.SchedulerModeGRPC:
		c := NewGRPCClient(
			cfg.GatewayAddr,
			tlsCfg,
			cfg.GatewayToken,
			cfg.GRPCListJobsMethod,
			cfg.GRPCGetRankMethod,
			cfg.GatewayDialTimeout,
			logger,
		)
		return c, c.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported scheduler mode %q", cfg.SchedulerMode)
	}
}
