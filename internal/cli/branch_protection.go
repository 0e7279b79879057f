package cli

import (
	"context"
	"errors"
	"path/filepath"

	"orgaudit/internal/audit"
	"orgaudit/internal/config"

	"github.com/spf13/cobra"
)

var branchProtectionCmd = &cobra.Command{
	Use:   "branch-protection <config-file>",
	Short: "Report branch protection of the repositories listed per team in a YAML file",
	Long: `Reads a YAML file of the form

	teams:
	  - name: platform
	    repos:
	      - my-org/api
	      - https://github.com/my-org/web

and prints the branch protection of every listed repository, team by team.
The file is validated before authenticating; a malformed file ends the command
with exit status 1 and no API call is made.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		var teams *config.TeamsConfiguration
		return runAudit(cmd,
			func(s *session) error {
				if err := s.out.Printf("Retrieve branch-protection for repos from config-file: %s", filepath.Base(path)); err != nil {
					return err
				}
				loaded, err := config.LoadTeamsConfigurationFile(path)
				if err != nil {
					reportConfigError(s, err)
					return errReported
				}
				teams = loaded
				return nil
			},
			func(ctx context.Context, c *audit.Collector) error {
				return c.BranchProtection(ctx, teams)
			},
		)
	},
}

func reportConfigError(s *session, err error) {
	_ = s.out.Printf("Error while parsing YAML file:")
	var perr *config.ParseError
	if errors.As(err, &perr) {
		if mark := perr.Mark(); mark != "" {
			_ = s.out.Printf("%s", mark)
		}
		_ = s.out.Printf("  %s", perr.Problem)
		_ = s.out.Printf("Please correct data and retry.")
	} else {
		_ = s.out.Errorf(err, "Could not read the configuration file.")
	}
	_ = s.out.Printf("Exiting.")
	if cfg.Output.Format == "json" {
		// Progress lines are not part of the JSON aggregate.
		_ = s.out.Errorf(err, "Error while parsing YAML file.")
	}
}

func init() {
	rootCmd.AddCommand(branchProtectionCmd)
}
