package cli

import (
	"errors"
	"fmt"
	"os"

	"orgaudit/internal/config"
	"orgaudit/internal/flags"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var (
	cfg     = config.New()
	noDebug bool
)

// errReported marks failures whose message was already written to the
// command output; Execute only sets the exit status for them.
var errReported = errors.New("reported")

var rootCmd = &cobra.Command{
	Use:   "orgaudit",
	Short: "Audit teams, repositories and branch protection of a GitHub organization",
	Long: `orgaudit reads a GitHub organization via API and reports its teams,
repositories and the branch protection of their default branches.

Besides the default branch, every repository is checked for the conventional
main and master branches. Branches GitHub reaches through a rename redirect are
reported once.

Examples:
	# List the teams of an organization
	orgaudit teams my-org

	# Protection of every repository of an organization
	orgaudit repos my-org

	# Repositories a team administers or is assumed to own
	orgaudit repos my-org platform

	# One repository, with topics, teams, branches and status checks
	orgaudit repo-status my-org/api --details

	# Repositories listed per team in a YAML file
	orgaudit branch-protection teams.yaml

Authentication:
	The token is taken from --token, the GITHUB_TOKEN environment variable,
	GITHUB_TOKEN in the --env-file dotenv file (default .env), or the GitHub CLI
	(gh auth token), in that order.

Environment:
	Every global flag can be set as ORGAUDIT_<FLAG>, e.g. ORGAUDIT_FORMAT=json.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// MAINTAINER NOTE: keep in sync with internal/config/config.go.
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.Auth.Token, flags.FlagToken, "", "GitHub access token (default: GITHUB_TOKEN, .env, gh auth token)")
	pf.StringVar(&cfg.Auth.EnvFile, flags.FlagEnvFile, cfg.Auth.EnvFile, "Dotenv file consulted for GITHUB_TOKEN")
	pf.StringVar(&cfg.Auth.APIURL, flags.FlagAPIURL, "", "GitHub REST API root (e.g. https://ghe.example.com/api/v3/)")
	pf.StringVar(&cfg.Output.Format, flags.FlagFormat, cfg.Output.Format, "Output format: text|json|ndjson")
	pf.StringVar(&cfg.Output.Color, flags.FlagColor, cfg.Output.Color, "Colored text output: auto|always|never")
	pf.BoolVar(&cfg.Runtime.Debug, flags.FlagDebug, false, "Enable debug logging to stderr (every GitHub API call)")
	pf.BoolVar(&noDebug, flags.FlagNoDebug, false, "Disable debug logging")
	pf.DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Timeout for the whole command")
	pf.IntVar(&cfg.Runtime.MaxRedirects, flags.FlagMaxRedirects, cfg.Runtime.MaxRedirects, "Branch rename redirects to follow per lookup")
	pf.IntVar(&cfg.Runtime.Concurrency, flags.FlagConcurrency, cfg.Runtime.Concurrency, "Repositories inspected in parallel by the listing commands")
	pf.BoolVar(&cfg.Runtime.LogRedirects, flags.FlagLogRedirects, false, "Also log redirected API responses in debug mode")
	rootCmd.MarkFlagsMutuallyExclusive(flags.FlagDebug, flags.FlagNoDebug)
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
