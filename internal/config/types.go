package config

// Config is the daemon's configuration file, YAML or JSON.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// Unknown keys are rejected so typos surface at startup instead of being
// silently ignored.
type Config struct {
	Telegram    TelegramConfig     `json:"telegram"`
	Queue       QueueConfig        `json:"queue"`
	Dispatch    DispatchConfig     `json:"dispatch"`
	Storage     StorageConfig      `json:"storage"`
	Logging     LoggingConfig      `json:"logging"`
	Maintenance *MaintenanceConfig `json:"maintenance,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// APIURL overrides the Bot API endpoint (local bot API servers, tests).
	APIURL string `json:"api_url,omitempty"`
	// CallTimeout bounds each outbound transport call.
	CallTimeout string `json:"call_timeout,omitempty"`
}

type QueueConfig struct {
	// Dir is the task queue directory shared with the admin front-end.
	Dir          string `json:"dir"`
	PollInterval string `json:"poll_interval,omitempty"`
	// Watch enables the fsnotify nudge that scans ahead of the next tick.
	Watch bool `json:"watch,omitempty"`
}

// DispatchConfig controls backpressure and the optional retry decorator.
//
// Defaults (when fields are omitted/zero):
//   - send_interval: "3s"
//   - retry_max: 0 (attempt-once)
//   - retry_base: "200ms"
type DispatchConfig struct {
	SendInterval string `json:"send_interval,omitempty"`
	RetryMax     int    `json:"retry_max,omitempty"`
	RetryBase    string `json:"retry_base,omitempty"`
}

// StorageConfig locates the receipt database.
//
// Example:
//
//	"storage": { "path": "./storage.db" }
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// MaintenanceConfig schedules the housekeeping sweep (quarantine cleanup,
// queue depth report). If the section is omitted, maintenance is disabled.
type MaintenanceConfig struct {
	Enabled bool `json:"enabled"`
	// Cron is a standard 5-field cron expression; default "0 3 * * *".
	Cron string `json:"cron,omitempty"`
	// QuarantineMaxAge is how long quarantined documents are kept.
	QuarantineMaxAge string `json:"quarantine_max_age,omitempty"`
}
