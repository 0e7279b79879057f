package cli

import (
	"context"

	"orgaudit/internal/audit"
	"orgaudit/internal/flags"

	"github.com/spf13/cobra"
)

var repoStatusDetails bool

var repoStatusCmd = &cobra.Command{
	Use:   "repo-status <owner/repo>",
	Short: "Report branch protection of one repository",
	Long: `Prints the branch protection of the repository's default branch and of its
main/master branches. The repository may be given as OWNER/REPO or as a
github.com URL.

With --details, also prints topics, teams with access, assumed owner teams,
branches and the required status checks of the default branch.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := args[0]
		return runAudit(cmd,
			func(s *session) error { return s.out.Printf("Retrieve protected-status of repo %s", repo) },
			func(ctx context.Context, c *audit.Collector) error {
				return c.RepoStatus(ctx, repo, repoStatusDetails)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(repoStatusCmd)
	repoStatusCmd.Flags().BoolVar(&repoStatusDetails, flags.FlagDetails, false, "Also print topics, teams, branches and required status checks")
}
