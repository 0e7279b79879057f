// Package audit implements the organization audit commands: team and
// repository listings, ownership assumptions and branch-protection reports.
package audit

import (
	"context"
	"errors"
	"fmt"

	"orgaudit/internal/config"
	"orgaudit/internal/fetcher"
	gh "orgaudit/internal/github"
	"orgaudit/internal/output"
	"orgaudit/internal/protection"

	"github.com/google/go-github/v81/github"
	"go.uber.org/zap"
)

// ErrLoginFailed is returned by Login when GitHub rejects the token.
var ErrLoginFailed = errors.New("failed to login with given token")

// Writer receives output records (see package output).
type Writer interface {
	Write(v any) error
}

type Collector struct {
	fetcher     *fetcher.Fetcher
	out         Writer
	inspector   *protection.Inspector
	logger      *zap.Logger
	concurrency int
}

type Option func(*Collector)

// WithConcurrency bounds how many repositories of a listing are inspected
// at once. Output order is unaffected. Values below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func NewCollector(f *fetcher.Fetcher, out Writer, logger *zap.Logger, opts ...Option) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		fetcher:     f,
		out:         out,
		logger:      logger,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.inspector = protection.NewInspector(c)
	return c
}

func (c *Collector) printf(format string, args ...any) error {
	return c.out.Write(output.Message{Text: fmt.Sprintf(format, args...)})
}

func (c *Collector) reportError(repo string, err error, format string, args ...any) error {
	return c.out.Write(output.ErrorMessage{Repo: repo, Text: fmt.Sprintf(format, args...), Err: err})
}

// Login verifies the token and announces the authenticated user.
func (c *Collector) Login(ctx context.Context) error {
	login, err := c.fetcher.Login(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	return c.printf("User %s logged in.", login)
}

// ListTeams lists the teams of org.
func (c *Collector) ListTeams(org string) *gh.Sequence[*github.Team] {
	return c.fetcher.Teams(org)
}

// ListRepos lists the repositories of org.
func (c *Collector) ListRepos(org string) *gh.Sequence[*github.Repository] {
	return c.fetcher.OrgRepos(org)
}

// ListReposForTeam lists the repositories the team can access, with the
// team's permissions on each.
func (c *Collector) ListReposForTeam(org, team string) *gh.Sequence[*github.Repository] {
	return c.fetcher.TeamRepos(org, TeamSlug(team))
}

// Inspect reports branch protection for repo.
func (c *Collector) Inspect(ctx context.Context, repo *github.Repository) protection.Report {
	report := c.inspector.Inspect(ctx, repoHandle{repo: repo})
	c.logger.Debug("inspected repository",
		zap.String("repo", report.Repo),
		zap.Bool("default_known", report.Primary.Known),
		zap.Int("extra_branches", len(report.Extra)),
	)
	return report
}

// organizationName is the display name of org, falling back to its login.
func (c *Collector) organizationName(ctx context.Context, org string) (string, error) {
	o, err := c.fetcher.Organization(ctx, org)
	if err != nil {
		return "", err
	}
	if name := o.GetName(); name != "" {
		return name, nil
	}
	if login := o.GetLogin(); login != "" {
		return login, nil
	}
	return org, nil
}

// Teams prints the teams of org.
func (c *Collector) Teams(ctx context.Context, org string) error {
	name, err := c.organizationName(ctx, org)
	if err != nil {
		return c.orgError(org, err)
	}
	teams, err := c.ListTeams(org).Collect(ctx)
	if err != nil {
		return fmt.Errorf("list teams of %s: %w", org, err)
	}

	if err := c.printf("Found %d teams for org %s:", len(teams), name); err != nil {
		return err
	}
	for _, t := range teams {
		if err := c.out.Write(output.Team{Org: org, Name: t.GetName(), Slug: t.GetSlug()}); err != nil {
			return err
		}
	}
	return nil
}

// OrgRepos prints one protection line per repository of org.
func (c *Collector) OrgRepos(ctx context.Context, org string) error {
	name, err := c.organizationName(ctx, org)
	if err != nil {
		return c.orgError(org, err)
	}
	if err := c.printf("Listing all repositories (this can take a while) .."); err != nil {
		return err
	}
	repos, err := c.ListRepos(org).Collect(ctx)
	if err != nil {
		return fmt.Errorf("list repositories of %s: %w", org, err)
	}

	if err := c.printf("Found %d repositories for org %s:", len(repos), name); err != nil {
		return err
	}
	return c.protectionLines(ctx, repos, "*", true, "org")
}

// TeamRepos prints the repositories team administers and those it is
// assumed to own through a matching topic.
func (c *Collector) TeamRepos(ctx context.Context, org, teamName string) error {
	slug := TeamSlug(teamName)
	t, err := c.fetcher.TeamBySlug(ctx, org, slug)
	if err != nil {
		if gh.IsAccessDenied(err) {
			return c.reportError("", err, "Team `%s` not found in org `%s`: Please verify the name and your access permissions!", teamName, org)
		}
		return fmt.Errorf("get team %s/%s: %w", org, slug, err)
	}
	team := teamFrom(t)

	repos, err := c.fetcher.TeamRepos(org, team.Slug).Collect(ctx)
	if err != nil {
		return fmt.Errorf("list repositories of team %s: %w", team.Name, err)
	}
	if err := c.printf("Found %d repositories accessible for team %s.", len(repos), team.Name); err != nil {
		return err
	}

	if err := c.printf("Filtering out repos with admin-permissions by %s ..", team.Name); err != nil {
		return err
	}
	var administered []*github.Repository
	for _, r := range repos {
		if hasAdmin(r) {
			administered = append(administered, r)
		}
	}
	if err := c.printf("Filtered %d repos administered by %s:", len(administered), team.Name); err != nil {
		return err
	}
	if err := c.protectionLines(ctx, administered, "*", true, "admin"); err != nil {
		return err
	}

	var owned []*github.Repository
	for _, r := range repos {
		if len(AssumedOwners(r.Topics, []Team{team})) > 0 {
			owned = append(owned, r)
		}
	}
	if err := c.printf("Assume ownership for %d repos:", len(owned)); err != nil {
		return err
	}
	return c.protectionLines(ctx, owned, "", false, "owned")
}

func (c *Collector) protectionLines(ctx context.Context, repos []*github.Repository, prefix string, markArchived bool, section string) error {
	scheduler, err := NewScheduler(c.Inspect, c.concurrency)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reports, errs := scheduler.Execute(ctx, repos)
	for report := range reports {
		rec := output.Protection{
			Prefix:       prefix,
			MarkArchived: markArchived,
			Section:      section,
			Report:       report,
		}
		if err := c.out.Write(rec); err != nil {
			return err
		}
	}
	return <-errs
}

func (c *Collector) orgError(org string, err error) error {
	if gh.IsAccessDenied(err) {
		return c.reportError("", err, "Org `%s` not found: Please verify the name and your access permissions!", org)
	}
	return fmt.Errorf("get organization %s: %w", org, err)
}

// RepoStatus prints the protection line of one repository and, with details,
// its topics, teams, branches and required status checks. A repository that
// does not exist or is not visible to the token is reported, not returned
// as an error.
func (c *Collector) RepoStatus(ctx context.Context, selector string, details bool) error {
	full, err := config.NormalizeRepoSelector(selector)
	if err != nil {
		return c.reportError(selector, err, "Repo `%s` not found: Please verify the name and your access permissions!", selector)
	}
	owner, name, _ := config.SplitOwnerRepo(full)

	repo, err := c.fetcher.Repository(ctx, owner, name)
	if err != nil {
		if gh.IsAccessDenied(err) {
			return c.reportError(full, err, "Repo `%s` not found: Please verify the name and your access permissions!", full)
		}
		return fmt.Errorf("get repository %s: %w", full, err)
	}

	report := c.Inspect(ctx, repo)
	if err := c.out.Write(output.Protection{Section: "repo", Report: report}); err != nil {
		return err
	}
	if !details {
		return nil
	}
	return c.out.Write(c.details(ctx, owner, name, repo, report))
}

func (c *Collector) details(ctx context.Context, owner, name string, repo *github.Repository, report protection.Report) output.RepoDetails {
	d := output.RepoDetails{
		Repo:          repo.GetFullName(),
		DefaultBranch: repo.GetDefaultBranch(),
	}

	topics, err := c.fetcher.Topics(ctx, owner, name)
	if err != nil {
		d.TopicsError = err.Error()
	}
	d.Topics = nonNil(topics)

	ghTeams, err := c.fetcher.RepoTeams(owner, name).Collect(ctx)
	if err != nil {
		c.logger.Debug("repository teams not accessible", zap.String("repo", d.Repo), zap.Error(err))
		d.TeamsError = err.Error()
	} else {
		teams := make([]Team, 0, len(ghTeams))
		d.Teams = make([]string, 0, len(ghTeams))
		for _, t := range ghTeams {
			teams = append(teams, teamFrom(t))
			d.Teams = append(d.Teams, t.GetName())
		}
		d.AssumedOwners = nonNil(AssumedOwners(topics, teams))
	}

	branches, err := c.fetcher.Branches(owner, name).Collect(ctx)
	if err != nil {
		d.BranchesError = err.Error()
	}
	d.Branches = make([]string, 0, len(branches))
	for _, b := range branches {
		d.Branches = append(d.Branches, b.GetName())
	}

	checkBranch := d.DefaultBranch
	if report.Primary.Known {
		protected := report.Primary.Branch.Protected
		d.Protected = &protected
		d.DefaultBranch = report.Primary.Branch.Name
		checkBranch = report.Primary.Branch.Name
	} else if report.Primary.Err != nil {
		d.DefaultBranchError = report.Primary.Err.Error()
	}

	checks, err := c.fetcher.RequiredStatusChecks(ctx, owner, name, checkBranch)
	if err != nil {
		d.RequiredStatusChecksError = err.Error()
	} else {
		d.RequiredStatusChecks = checks
	}
	return d
}

// BranchProtection prints the protection line of every repository listed in
// cfg, team by team.
func (c *Collector) BranchProtection(ctx context.Context, cfg *config.TeamsConfiguration) error {
	for _, team := range cfg.Teams {
		if err := c.printf("Collecting %d repositories for team '%s'", len(team.Repos), team.Name); err != nil {
			return err
		}
		for _, repo := range team.Repos {
			if err := c.RepoStatus(ctx, repo, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
