package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"orgaudit/internal/audit"
	"orgaudit/internal/fetcher"
	"orgaudit/internal/flags"
	gh "orgaudit/internal/github"
	"orgaudit/internal/logging"
	"orgaudit/internal/output"

	"github.com/fatih/color"
	"github.com/google/go-github/v81/github"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// session is the per-command runtime: logger, output and, once
// authenticated, the collector.
type session struct {
	logger    *zap.Logger
	out       *output.Manager
	collector *audit.Collector
}

// applyEnvironment sets every flag not given on the command line from its
// ORGAUDIT_* environment variable, e.g. ORGAUDIT_MAX_REDIRECTS for
// --max-redirects.
func applyEnvironment(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix(flags.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs []error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed || f.Name == "help" || f.Name == "version" {
			return
		}
		if !v.IsSet(f.Name) {
			return
		}
		if err := cmd.Flags().Set(f.Name, v.GetString(f.Name)); err != nil {
			errs = append(errs, fmt.Errorf("%s_%s: %w", flags.EnvPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), err))
		}
	})
	return errors.Join(errs...)
}

func colorEnabled(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return w == os.Stdout && !color.NoColor
	}
}

// newSession validates the configuration and prepares logging and output.
// The debug banner is the first output line of every audit command.
func newSession(cmd *cobra.Command) (*session, error) {
	if err := applyEnvironment(cmd); err != nil {
		return nil, err
	}
	if noDebug {
		cfg.Runtime.Debug = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &session{
		logger: logging.New(cfg.Runtime.Debug, cmd.ErrOrStderr()),
		out:    output.NewManager(),
	}
	w := cmd.OutOrStdout()
	if err := s.out.AddSink(output.NewConsoleSink(w, cfg.Output.Format, colorEnabled(cfg.Output.Color, w))); err != nil {
		return nil, err
	}

	state := "off"
	if cfg.Runtime.Debug {
		state = "on"
	}
	if err := s.out.Printf("Debug mode is %s", state); err != nil {
		return nil, err
	}
	return s, nil
}

// login resolves the token, verifies it and builds the collector. Missing or
// rejected tokens are reported and end the command with errReported.
func (s *session) login(ctx context.Context) error {
	token, source, err := gh.ResolveAuthToken(ctx, cfg.Auth.Token, cfg.Auth.EnvFile)
	if err != nil {
		return fmt.Errorf("resolve GitHub token: %w", err)
	}
	if token == "" {
		_ = s.out.Errorf(nil, "Missing `.env` file or environment variable: `%s`. Exiting.", gh.EnvToken)
		return errReported
	}
	s.logger.Debug("resolved GitHub token", zap.String("source", string(source)))

	client, err := gh.NewClient(ctx, token,
		gh.WithLogger(s.logger),
		gh.WithRedirectLogs(cfg.Runtime.LogRedirects),
		gh.WithMaxRedirects(cfg.Runtime.MaxRedirects),
		gh.WithBaseURL(cfg.Auth.APIURL),
	)
	if err != nil {
		return err
	}
	f := fetcher.NewFetcher(client, fetcher.NewRequestBudget(s.logger), s.logger)
	s.collector = audit.NewCollector(f, s.out, s.logger, audit.WithConcurrency(cfg.Runtime.Concurrency))

	if err := s.collector.Login(ctx); err != nil {
		s.logger.Debug("login failed", zap.Error(err))
		_ = s.out.Errorf(loginCause(err), "Failed to login with given token. Please verify that the token is valid! Exiting.")
		return errReported
	}
	return nil
}

// loginCause is the GitHub response error behind a failed login, or err
// itself when the request never got a response.
func loginCause(err error) error {
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		return respErr
	}
	return err
}

func (s *session) close() error {
	err := s.out.Close()
	if syncErr := logging.Sync(s.logger); err == nil {
		err = syncErr
	}
	return err
}

// runAudit runs fn for an authenticated session bounded by --timeout.
// prepare runs before authentication; it may echo and validate input.
func runAudit(cmd *cobra.Command, prepare func(s *session) error, fn func(ctx context.Context, c *audit.Collector) error) (err error) {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.close(); err == nil {
			err = closeErr
		}
	}()

	if prepare != nil {
		if err := prepare(s); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Runtime.Timeout)
	defer cancel()

	if err := s.login(ctx); err != nil {
		return err
	}
	return fn(ctx, s.collector)
}
