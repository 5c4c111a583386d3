package config

import (
	"log/slog"
	"runtime"
	"strings"

	"blockext/internal/pipeline"
	"blockext/internal/synth"
)

const (
	EnvExtensionID   = "BLOCKEXT_EXTENSION_ID"
	EnvExtensionName = "BLOCKEXT_EXTENSION_NAME"
	EnvClassName     = "BLOCKEXT_CLASS_NAME"
	EnvValidate      = "BLOCKEXT_VALIDATE"
	EnvLint          = "BLOCKEXT_LINT"
	EnvLintRules     = "BLOCKEXT_LINT_RULES"
	EnvWorkers       = "BLOCKEXT_WORKERS"
	EnvLogLevel      = "BLOCKEXT_LOG_LEVEL"
)

// Options resolves pipeline options from the environment. Validation is
// off and linting on unless configured otherwise.
func Options() pipeline.Options {
	return pipeline.Options{
		Synth: synth.Options{
			ExtensionID:   Get(EnvExtensionID),
			ExtensionName: Get(EnvExtensionName),
			ClassName:     Get(EnvClassName),
		},
		Validate:     GetBool(false, EnvValidate),
		Lint:         GetBool(true, EnvLint),
		LintRulesDir: Get(EnvLintRules),
	}
}

// Workers returns the batch build worker count.
func Workers() int {
	return GetInt(runtime.NumCPU(), EnvWorkers)
}

// LogLevel maps BLOCKEXT_LOG_LEVEL (or LOG_LEVEL) to a slog level. verbose
// forces debug.
func LogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(Get(EnvLogLevel, "LOG_LEVEL"))) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
