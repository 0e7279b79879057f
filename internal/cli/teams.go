package cli

import (
	"context"

	"orgaudit/internal/audit"

	"github.com/spf13/cobra"
)

var teamsCmd = &cobra.Command{
	Use:   "teams <org>",
	Short: "List the teams of an organization",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		org := args[0]
		return runAudit(cmd,
			func(s *session) error { return s.out.Printf("Listing teams of org %s", org) },
			func(ctx context.Context, c *audit.Collector) error { return c.Teams(ctx, org) },
		)
	},
}

var reposCmd = &cobra.Command{
	Use:   "repos <org> [team]",
	Short: "Report branch protection of an organization's or a team's repositories",
	Long: `Without a team, prints the branch protection of every repository of the
organization; archived repositories are marked.

With a team (name or slug), prints the repositories the team administers and
the repositories whose topics name the team (assumed ownership).`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		org := args[0]
		if len(args) == 1 {
			return runAudit(cmd,
				func(s *session) error { return s.out.Printf("Listing repos of org %s", org) },
				func(ctx context.Context, c *audit.Collector) error { return c.OrgRepos(ctx, org) },
			)
		}
		team := args[1]
		return runAudit(cmd,
			func(s *session) error { return s.out.Printf("Listing repos of team %s", team) },
			func(ctx context.Context, c *audit.Collector) error { return c.TeamRepos(ctx, org, team) },
		)
	},
}

func init() {
	rootCmd.AddCommand(teamsCmd)
	rootCmd.AddCommand(reposCmd)
}
