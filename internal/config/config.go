package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type SchedulerMode string

const (
	SchedulerModeCLI  SchedulerMode = "cli"
	SchedulerModeGRPC SchedulerMode = "grpc"
	HardcodedVersion  string        = "V0.1"
)

type Config struct {
	ListenAddr         string        `toml:"listen_addr"`
	PollInterval       time.Duration `toml:"poll_interval"`
	QueryTimeout       time.Duration `toml:"query_timeout"`
	ShutdownTimeout    time.Duration `toml:"shutdown_timeout"`
	SchedulerMode      SchedulerMode `toml:"scheduler_mode"`
	FluxCommand        string        `toml:"flux_command"`
	GatewayAddr        string        `toml:"gateway_addr"`
	GatewayToken       string        `toml:"gateway_token"`
	GatewayDialTimeout time.Duration `toml:"gateway_dial_timeout"`
	GRPCListJobsMethod string        `toml:"grpc_list_jobs_method"`
	GRPCGetRankMethod  string        `toml:"grpc_get_rank_method"`
	ExporterVersion    string        `toml:"-"`
	TLSEnabled         bool          `toml:"tls_enabled"`
	TLSSkipVerify      bool          `toml:"tls_skip_verify"`
	TLSCAPath          string        `toml:"tls_ca_path"`
	TLSCertPath        string        `toml:"tls_cert_path"`
	TLSKeyPath         string        `toml:"tls_key_path"`
	LogJSON            bool          `toml:"log_json"`
	LogLevel           string        `toml:"log_level"`
}

func Default() Config {
	return Config{
		ListenAddr:         ":8080",
		PollInterval:       5 * time.Second,
		QueryTimeout:       10 * time.Second,
		ShutdownTimeout:    10 * time.Second,
		SchedulerMode:      SchedulerModeCLI,
		FluxCommand:        "flux",
		GatewayAddr:        "127.0.0.1:50051",
		GatewayDialTimeout: 8 * time.Second,
		GRPCListJobsMethod: "/flux.scheduler.v1.SchedulerService/ListJobs",
		GRPCGetRankMethod:  "/flux.scheduler.v1.SchedulerService/GetRank",
		ExporterVersion:    HardcodedVersion,
		LogLevel:           "info",
	}
}

// Load builds the configuration from defaults, then the optional TOML file
// named by FLUX_EXPORTER_CONFIG, then FLUX_EXPORTER_* environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := env("FLUX_EXPORTER_CONFIG", ""); path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.ListenAddr = env("FLUX_EXPORTER_LISTEN_ADDR", cfg.ListenAddr)
	cfg.PollInterval = envDuration("FLUX_EXPORTER_POLL_INTERVAL", cfg.PollInterval)
	cfg.QueryTimeout = envDuration("FLUX_EXPORTER_QUERY_TIMEOUT", cfg.QueryTimeout)
	cfg.ShutdownTimeout = envDuration("FLUX_EXPORTER_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.SchedulerMode = SchedulerMode(strings.ToLower(env("FLUX_EXPORTER_SCHEDULER_MODE", string(cfg.SchedulerMode))))
	cfg.FluxCommand = env("FLUX_EXPORTER_FLUX_COMMAND", cfg.FluxCommand)
	cfg.GatewayAddr = env("FLUX_EXPORTER_GATEWAY_ADDR", cfg.GatewayAddr)
	cfg.GatewayToken = env("FLUX_EXPORTER_GATEWAY_TOKEN", cfg.GatewayToken)
	cfg.GatewayDialTimeout = envDuration("FLUX_EXPORTER_GATEWAY_DIAL_TIMEOUT", cfg.GatewayDialTimeout)
	cfg.GRPCListJobsMethod = env("FLUX_EXPORTER_GRPC_LIST_JOBS_METHOD", cfg.GRPCListJobsMethod)
	cfg.GRPCGetRankMethod = env("FLUX_EXPORTER_GRPC_GET_RANK_METHOD", cfg.GRPCGetRankMethod)
	cfg.TLSEnabled = envBool("FLUX_EXPORTER_TLS_ENABLED", cfg.TLSEnabled)
	cfg.TLSSkipVerify = envBool("FLUX_EXPORTER_TLS_SKIP_VERIFY", cfg.TLSSkipVerify)
	cfg.TLSCAPath = env("FLUX_EXPORTER_TLS_CA_PATH", cfg.TLSCAPath)
	cfg.TLSCertPath = env("FLUX_EXPORTER_TLS_CERT_PATH", cfg.TLSCertPath)
	cfg.TLSKeyPath = env("FLUX_EXPORTER_TLS_KEY_PATH", cfg.TLSKeyPath)
	cfg.LogJSON = envBool("FLUX_EXPORTER_LOG_JSON", cfg.LogJSON)
	cfg.LogLevel = strings.ToLower(env("FLUX_EXPORTER_LOG_LEVEL", cfg.LogLevel))
	cfg.ExporterVersion = HardcodedVersion

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("FLUX_EXPORTER_LISTEN_ADDR is required")
	}
	if strings.TrimSpace(c.ExporterVersion) == "" {
		return errors.New("exporter version must not be empty")
	}
	if c.PollInterval <= 0 {
		return errors.New("FLUX_EXPORTER_POLL_INTERVAL must be > 0")
	}
	if c.QueryTimeout < 0 {
		return errors.New("FLUX_EXPORTER_QUERY_TIMEOUT must be >= 0")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("FLUX_EXPORTER_SHUTDOWN_TIMEOUT must be > 0")
	}
	switch c.SchedulerMode {
	case SchedulerModeCLI:
		if strings.TrimSpace(c.FluxCommand) == "" {
			return errors.New("FLUX_EXPORTER_FLUX_COMMAND is required for cli mode")
		}
	case SchedulerModeGRPC:
		if strings.TrimSpace(c.GatewayAddr) == "" {
			return errors.New("FLUX_EXPORTER_GATEWAY_ADDR is required for grpc mode")
		}
		if strings.TrimSpace(c.GRPCListJobsMethod) == "" {
			return errors.New("FLUX_EXPORTER_GRPC_LIST_JOBS_METHOD is required for grpc mode")
		}
		if strings.TrimSpace(c.GRPCGetRankMethod) == "" {
			return errors.New("FLUX_EXPORTER_GRPC_GET_RANK_METHOD is required for grpc mode")
		}
	default:
		return fmt.Errorf("unsupported scheduler mode %q", c.SchedulerMode)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return nil
}

func (c Config) TLSConfig() (*tls.Config, error) {
	if !c.TLSEnabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.TLSSkipVerify}
	if c.TLSCAPath != "" {
		caBytes, err := os.ReadFile(c.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, errors.New("append CA cert failed")
		}
		tlsCfg.RootCAs = pool
	}
	if c.TLSCertPath != "" || c.TLSKeyPath != "" {
		if c.TLSCertPath == "" || c.TLSKeyPath == "" {
			return nil, errors.New("both TLS cert and key are required")
		}
		crt, err := tls.LoadX509KeyPair(c.TLSCertPath, c.TLSKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load mTLS cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{crt}
	}
	return tlsCfg, nil
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
