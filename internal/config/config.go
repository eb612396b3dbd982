// Package config provides configuration management for Relay.
package config

import (
	"time"
)

// Config is the root configuration structure for Relay.
type Config struct {
	Hooks   HooksConfig   `mapstructure:"hooks"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Watch   WatchConfig   `mapstructure:"watch"`
	AI      AIConfig      `mapstructure:"ai"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Daemon  DaemonConfig  `mapstructure:"daemon"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// HooksConfig holds hook storage settings.
type HooksConfig struct {
	// Dir is the directory holding one YAML document per hook.
	Dir string `mapstructure:"dir"`
}

// EngineConfig holds execution engine settings.
type EngineConfig struct {
	// HistoryCapacity bounds the in-memory execution history.
	HistoryCapacity int `mapstructure:"history_capacity"`

	// HistoryLimit is the default number of entries returned by history queries.
	HistoryLimit int `mapstructure:"history_limit"`

	// StopOnRetryExhausted halts a run when a retried action never succeeds.
	// The default keeps the original behavior: move on to the next action.
	StopOnRetryExhausted bool `mapstructure:"stop_on_retry_exhausted"`
}

// WatchConfig holds file-watch settings.
type WatchConfig struct {
	// Debounce coalesces bursts of change events for the same path.
	Debounce time.Duration `mapstructure:"debounce"`
}

// AIConfig holds settings for the AI completion service.
type AIConfig struct {
	// Provider selects the wire format ("anthropic" or "openai").
	Provider string `mapstructure:"provider"`

	// BaseURL is the API endpoint root.
	BaseURL string `mapstructure:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `mapstructure:"api_key_env"`

	// Model is the model identifier sent with every request.
	Model string `mapstructure:"model"`

	// MaxTokens caps the generated response length.
	MaxTokens int `mapstructure:"max_tokens"`

	// Timeout bounds a single completion call.
	Timeout time.Duration `mapstructure:"timeout"`
}

// NotifyConfig holds notification settings.
type NotifyConfig struct {
	// Command, when set, is run for each notification with {{title}} and
	// {{message}} placeholders (e.g. `notify-send "{{title}}" "{{message}}"`).
	// When empty, notifications go to the log.
	Command string `mapstructure:"command"`
}

// DaemonConfig holds settings for the watch daemon.
type DaemonConfig struct {
	// Listen is the address serving the metrics and feed endpoints
	// (e.g. "localhost:9091"). Empty disables the listener.
	Listen string `mapstructure:"listen"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`

	// Format is "console" or "json".
	Format string `mapstructure:"format"`

	// Caller adds the caller file:line to each entry.
	Caller bool `mapstructure:"caller"`

	// Timestamp adds a timestamp to each entry.
	Timestamp bool `mapstructure:"timestamp"`
}
