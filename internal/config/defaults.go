package config

import "time"

// Default configuration values.
const (
	// Hook storage defaults.
	DefaultHooksDir = "hooks"

	// Engine defaults.
	DefaultHistoryCapacity = 1000
	DefaultHistoryLimit    = 50

	// Watch defaults.
	DefaultWatchDebounce = 200 * time.Millisecond

	// AI defaults.
	DefaultAIProvider  = "anthropic"
	DefaultAIBaseURL   = "https://api.anthropic.com"
	DefaultAIKeyEnv    = "ANTHROPIC_API_KEY"
	DefaultAIModel     = "claude-sonnet-4-5"
	DefaultAIMaxTokens = 1024
	DefaultAITimeout   = 60 * time.Second

	// Logging defaults.
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Hooks: HooksConfig{
			Dir: DefaultHooksDir,
		},
		Engine: EngineConfig{
			HistoryCapacity: DefaultHistoryCapacity,
			HistoryLimit:    DefaultHistoryLimit,
		},
		Watch: WatchConfig{
			Debounce: DefaultWatchDebounce,
		},
		AI: AIConfig{
			Provider:  DefaultAIProvider,
			BaseURL:   DefaultAIBaseURL,
			APIKeyEnv: DefaultAIKeyEnv,
			Model:     DefaultAIModel,
			MaxTokens: DefaultAIMaxTokens,
			Timeout:   DefaultAITimeout,
		},
		Logging: LoggingConfig{
			Level:     DefaultLogLevel,
			Format:    DefaultLogFormat,
			Timestamp: true,
		},
	}
}
