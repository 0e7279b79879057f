package flags

// Package flags defines canonical CLI flag names shared across the CLI and
// its environment binding. Every persistent flag can also be set through an
// ORGAUDIT_* environment variable derived from its name (see EnvPrefix).
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.PersistentFlags().StringVar(&cfg.Output.Format, flags.FlagFormat, "text", "...")
//	arg := "--" + flags.FlagFormat
const (
	// EnvPrefix prefixes environment overrides, e.g. ORGAUDIT_FORMAT=json.
	EnvPrefix = "ORGAUDIT"

	// Auth
	FlagToken   = "token"
	FlagEnvFile = "env-file"
	FlagAPIURL  = "api-url"

	// Output
	FlagFormat = "format"
	FlagColor  = "color"

	// Runtime
	FlagDebug        = "debug"
	FlagNoDebug      = "no-debug"
	FlagTimeout      = "timeout"
	FlagMaxRedirects = "max-redirects"
	FlagLogRedirects = "log-redirects"
	FlagConcurrency  = "concurrency"

	// repo-status
	FlagDetails = "details"
)
