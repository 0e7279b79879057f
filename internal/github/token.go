package github

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvToken is the environment variable (and .env key) holding the token.
const EnvToken = "GITHUB_TOKEN"

type AuthTokenSource string

const (
	AuthTokenSourceExplicit AuthTokenSource = "explicit"
	AuthTokenSourceEnv      AuthTokenSource = "env:GITHUB_TOKEN"
	AuthTokenSourceDotEnv   AuthTokenSource = "dotenv"
	AuthTokenSourceGitHubCL AuthTokenSource = "gh"
)

// ResolveAuthToken resolves a GitHub access token.
//
// Precedence:
//  1. provided (if non-empty)
//  2. GITHUB_TOKEN env var
//  3. GITHUB_TOKEN in envFile (a dotenv file; skipped when absent)
//  4. GitHub CLI: `gh auth token -h github.com`
//
// It never prints the token.
func ResolveAuthToken(ctx context.Context, provided string, envFile string) (token string, source AuthTokenSource, err error) {
	if tok := strings.TrimSpace(provided); tok != "" {
		return tok, AuthTokenSourceExplicit, nil
	}

	if env := strings.TrimSpace(os.Getenv(EnvToken)); env != "" {
		return env, AuthTokenSourceEnv, nil
	}

	tok, err := tokenFromDotEnv(envFile)
	if err != nil {
		return "", "", err
	}
	if tok != "" {
		return tok, AuthTokenSourceDotEnv, nil
	}

	tok, ok, err := tokenFromGitHubCLI(ctx)
	if err != nil {
		return "", "", err
	}
	if ok {
		return tok, AuthTokenSourceGitHubCL, nil
	}
	return "", "", nil
}

func tokenFromDotEnv(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return strings.TrimSpace(v.GetString(EnvToken)), nil
}

func tokenFromGitHubCLI(ctx context.Context) (token string, ok bool, err error) {
	_, lookErr := exec.LookPath("gh")
	if lookErr != nil {
		return "", false, nil
	}

	// Keep this bounded so a broken gh config or credential helper
	// doesn't hang the audit.
	cmdCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(cmdCtx, "gh", "auth", "token", "-h", "github.com")
	env := os.Environ()
	filteredEnv := env[:0]
	for _, entry := range env {
		if strings.HasPrefix(entry, "GH_PAGER=") {
			continue
		}
		filteredEnv = append(filteredEnv, entry)
	}
	cmd.Env = append(filteredEnv, "GH_PAGER=cat")
	out, runErr := cmd.CombinedOutput()
	if runErr != nil {
		if cmdCtx.Err() != nil {
			return "", false, cmdCtx.Err()
		}
		// gh present but logged out: treat as "no token" and keep its output private.
		return "", false, nil
	}

	tok := strings.TrimSpace(string(out))
	if tok == "" {
		return "", false, nil
	}
	if strings.ContainsAny(tok, " \t\n\r") {
		return "", false, errors.New("invalid token returned by gh: contains whitespace")
	}

	return tok, true, nil
}
