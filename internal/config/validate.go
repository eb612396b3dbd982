package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("configuration validation failed: %s", strings.Join(msgs, "; "))
}

func Validate(cfg *Config) error {
	var errs ValidationErrors

	if cfg.Hooks.Dir == "" {
		errs = append(errs, ValidationError{
			Field:   "hooks.dir",
			Message: "hooks directory must not be empty",
		})
	}

	if cfg.Engine.HistoryCapacity <= 0 {
		errs = append(errs, ValidationError{
			Field:   "engine.history_capacity",
			Message: "history capacity must be positive",
		})
	}

	if cfg.Engine.HistoryLimit <= 0 {
		errs = append(errs, ValidationError{
			Field:   "engine.history_limit",
			Message: "history limit must be positive",
		})
	}

	if cfg.Engine.HistoryLimit > cfg.Engine.HistoryCapacity {
		errs = append(errs, ValidationError{
			Field:   "engine.history_limit",
			Message: "history limit cannot exceed history capacity",
		})
	}

	if cfg.Watch.Debounce < 0 {
		errs = append(errs, ValidationError{
			Field:   "watch.debounce",
			Message: "debounce interval cannot be negative",
		})
	}

	switch cfg.AI.Provider {
	case "anthropic", "openai":
	default:
		errs = append(errs, ValidationError{
			Field:   "ai.provider",
			Message: fmt.Sprintf("unknown provider %q (supported: anthropic, openai)", cfg.AI.Provider),
		})
	}

	if cfg.AI.MaxTokens <= 0 {
		errs = append(errs, ValidationError{
			Field:   "ai.max_tokens",
			Message: "max tokens must be positive",
		})
	}

	if cfg.AI.Timeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "ai.timeout",
			Message: "timeout must be positive",
		})
	}

	switch cfg.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown log level %q", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown log format %q (supported: console, json)", cfg.Logging.Format),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
