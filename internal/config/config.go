package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	// MAINTAINER NOTE: keep in sync with the persistent flags in internal/cli/root.go.
	Auth    Auth
	Output  Output
	Runtime Runtime
}

type Auth struct {
	// Token is an explicit GitHub token (see --token). Empty means resolve
	// from GITHUB_TOKEN, the env file, or the gh CLI.
	Token string

	// EnvFile is a dotenv file consulted for GITHUB_TOKEN (see --env-file).
	EnvFile string

	// APIURL is the REST API root (see --api-url). Empty means api.github.com.
	APIURL string
}

type Output struct {
	// Format controls how results are written to stdout (see --format).
	// Allowed values: text, json, ndjson.
	Format string

	// Color enables ANSI colors in text output (see --color).
	// Allowed values: auto, always, never.
	Color string
}

type Runtime struct {
	// Debug enables debug logging to stderr (see --debug / --no-debug).
	Debug bool

	// Timeout bounds a whole command run (see --timeout). Must be > 0.
	Timeout time.Duration

	// MaxRedirects is how many branch-rename redirects a lookup follows
	// (see --max-redirects).
	MaxRedirects int

	// Concurrency is how many repositories of a listing are inspected at
	// once (see --concurrency). Output order is unaffected. Must be >= 1.
	Concurrency int

	// LogRedirects logs redirected API responses in debug mode (see --log-redirects).
	LogRedirects bool
}

func New() *Config {
	return &Config{
		Auth: Auth{
			EnvFile: ".env",
		},
		Output: Output{
			Format: "text",
			Color:  "auto",
		},
		Runtime: Runtime{
			Timeout:      30 * time.Minute,
			MaxRedirects: 1,
			Concurrency:  1,
		},
	}
}

func (c *Config) Validate() error {
	c.Auth.Token = strings.TrimSpace(c.Auth.Token)
	c.Auth.EnvFile = strings.TrimSpace(c.Auth.EnvFile)
	c.Auth.APIURL = strings.TrimSpace(c.Auth.APIURL)

	c.Output.Format = normalizeEnumValue(c.Output.Format)
	if c.Output.Format == "" {
		c.Output.Format = "text"
	}
	if c.Output.Format != "text" && c.Output.Format != "json" && c.Output.Format != "ndjson" {
		return fmt.Errorf("unsupported --format: %s (must be one of: text, json, ndjson)", c.Output.Format)
	}

	c.Output.Color = normalizeEnumValue(c.Output.Color)
	if c.Output.Color == "" {
		c.Output.Color = "auto"
	}
	if c.Output.Color != "auto" && c.Output.Color != "always" && c.Output.Color != "never" {
		return fmt.Errorf("unsupported --color: %s (must be one of: auto, always, never)", c.Output.Color)
	}

	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}
	if c.Runtime.MaxRedirects < 0 {
		return errors.New("--max-redirects must be >= 0")
	}
	if c.Runtime.Concurrency < 1 {
		return errors.New("--concurrency must be >= 1")
	}
	return nil
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
