package version

type GetVersionResponse struct {
	ExporterVersion string `json:"exporter_version"`
	SchedulerMode   string `json:"scheduler_mode"`
	ListenAddr      string `json:"listen_addr"`
	PollInterval    string `json:"poll_interval"`
	CheckedAtUnix   int64  `json:"checked_at_unix"`
}
