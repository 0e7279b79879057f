// Package fetcher wraps the GitHub API calls used by the audit commands with
// rate-limit accounting, response caching and single-flight deduplication.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	gh "orgaudit/internal/github"

	"github.com/google/go-github/v81/github"
	"go.uber.org/zap"
)

type Fetcher struct {
	client *gh.Client
	budget *RequestBudget
	group  Group
	cache  *Cache
	logger *zap.Logger
}

func NewFetcher(client *gh.Client, budget *RequestBudget, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client: client,
		budget: budget,
		cache:  NewCache(),
		logger: logger,
	}
}

func (f *Fetcher) Budget() *RequestBudget {
	return f.budget
}

// call runs one API request against the budget and records the rate-limit
// headers of its response.
func call[T any](ctx context.Context, f *Fetcher, do func() (T, *github.Response, error)) (T, *github.Response, error) {
	var zero T
	if ctx == nil {
		return zero, nil, fmt.Errorf("fetch: nil context")
	}
	if f == nil || f.client == nil || f.client.Client == nil {
		return zero, nil, fmt.Errorf("fetch: nil GitHub client (use NewFetcher)")
	}
	if f.budget == nil {
		return zero, nil, fmt.Errorf("fetch: nil request budget (use NewFetcher)")
	}
	if err := f.budget.Acquire(ctx); err != nil {
		return zero, nil, err
	}
	val, resp, err := do()
	if resp != nil {
		f.budget.UpdateFromResponse(resp.Response)
	}
	return val, resp, err
}

// cached memoizes successful results under key; concurrent identical
// requests share one API call.
func cached[T any](f *Fetcher, key string, fn func() (T, error)) (T, error) {
	if val, ok := f.cache.Get(key); ok {
		return val.(T), nil
	}
	val, err, _ := f.group.Do(key, func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	f.cache.Set(key, val)
	return val.(T), nil
}

// Login verifies the token and returns the authenticated user's login.
func (f *Fetcher) Login(ctx context.Context) (string, error) {
	user, _, err := call(ctx, f, func() (*github.User, *github.Response, error) {
		return f.client.Client.Users.Get(ctx, "")
	})
	if err != nil {
		return "", err
	}
	return user.GetLogin(), nil
}

func (f *Fetcher) Organization(ctx context.Context, org string) (*github.Organization, error) {
	o, _, err := call(ctx, f, func() (*github.Organization, *github.Response, error) {
		return f.client.Client.Organizations.Get(ctx, org)
	})
	return o, err
}

func (f *Fetcher) TeamBySlug(ctx context.Context, org, slug string) (*github.Team, error) {
	t, _, err := call(ctx, f, func() (*github.Team, *github.Response, error) {
		return f.client.Client.Teams.GetTeamBySlug(ctx, org, slug)
	})
	return t, err
}

func (f *Fetcher) Teams(org string) *gh.Sequence[*github.Team] {
	return gh.NewSequence(func(ctx context.Context, opts github.ListOptions) ([]*github.Team, *github.Response, error) {
		return call(ctx, f, func() ([]*github.Team, *github.Response, error) {
			return f.client.Client.Teams.ListTeams(ctx, org, &opts)
		})
	})
}

func (f *Fetcher) OrgRepos(org string) *gh.Sequence[*github.Repository] {
	return gh.NewSequence(func(ctx context.Context, opts github.ListOptions) ([]*github.Repository, *github.Response, error) {
		return call(ctx, f, func() ([]*github.Repository, *github.Response, error) {
			return f.client.Client.Repositories.ListByOrg(ctx, org, &github.RepositoryListByOrgOptions{ListOptions: opts})
		})
	})
}

func (f *Fetcher) TeamRepos(org, slug string) *gh.Sequence[*github.Repository] {
	return gh.NewSequence(func(ctx context.Context, opts github.ListOptions) ([]*github.Repository, *github.Response, error) {
		return call(ctx, f, func() ([]*github.Repository, *github.Response, error) {
			return f.client.Client.Teams.ListTeamReposBySlug(ctx, org, slug, &opts)
		})
	})
}

func (f *Fetcher) RepoTeams(owner, repo string) *gh.Sequence[*github.Team] {
	return gh.NewSequence(func(ctx context.Context, opts github.ListOptions) ([]*github.Team, *github.Response, error) {
		return call(ctx, f, func() ([]*github.Team, *github.Response, error) {
			return f.client.Client.Repositories.ListTeams(ctx, owner, repo, &opts)
		})
	})
}

func (f *Fetcher) Branches(owner, repo string) *gh.Sequence[*github.Branch] {
	return gh.NewSequence(func(ctx context.Context, opts github.ListOptions) ([]*github.Branch, *github.Response, error) {
		return call(ctx, f, func() ([]*github.Branch, *github.Response, error) {
			return f.client.Client.Repositories.ListBranches(ctx, owner, repo, &github.BranchListOptions{ListOptions: opts})
		})
	})
}

// Repository looks up owner/name. Results are cached per repository.
func (f *Fetcher) Repository(ctx context.Context, owner, name string) (*github.Repository, error) {
	key := "repo:" + strings.ToLower(owner+"/"+name)
	return cached(f, key, func() (*github.Repository, error) {
		r, _, err := call(ctx, f, func() (*github.Repository, *github.Response, error) {
			return f.client.Client.Repositories.Get(ctx, owner, name)
		})
		return r, err
	})
}

// Branch looks up a branch by name, following up to Client.MaxRedirects
// rename redirects. The returned branch carries its current name.
func (f *Fetcher) Branch(ctx context.Context, owner, repo, branch string) (*github.Branch, error) {
	key := "branch:" + strings.ToLower(owner+"/"+repo) + ":" + branch
	return cached(f, key, func() (*github.Branch, error) {
		b, resp, err := call(ctx, f, func() (*github.Branch, *github.Response, error) {
			return f.client.Client.Repositories.GetBranch(ctx, owner, repo, branch, f.client.MaxRedirects)
		})
		if err != nil {
			err = branchError(resp, err)
			f.logger.Debug("branch lookup failed",
				zap.String("repo", owner+"/"+repo),
				zap.String("branch", branch),
				zap.Stringer("kind", gh.Classify(err)),
				zap.Error(err),
			)
			return nil, err
		}
		if b.GetName() != branch {
			f.logger.Debug("branch lookup redirected",
				zap.String("repo", owner+"/"+repo),
				zap.String("requested", branch),
				zap.String("resolved", b.GetName()),
			)
		}
		return b, nil
	})
}

// branchError converts the untyped status error GetBranch returns for
// non-200 responses into the go-github error types Classify understands.
func branchError(resp *github.Response, err error) error {
	if resp == nil || resp.Response == nil || gh.Classify(err) != gh.KindOther {
		return err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return err
	case http.StatusMovedPermanently, http.StatusFound:
		loc, _ := resp.Location()
		return &github.RedirectionError{Response: resp.Response, StatusCode: resp.StatusCode, Location: loc}
	default:
		return &github.ErrorResponse{Response: resp.Response, Message: err.Error()}
	}
}

func (f *Fetcher) Topics(ctx context.Context, owner, repo string) ([]string, error) {
	topics, _, err := call(ctx, f, func() ([]string, *github.Response, error) {
		return f.client.Client.Repositories.ListAllTopics(ctx, owner, repo)
	})
	return topics, err
}

// RequiredStatusChecks returns the raw JSON of the branch's required status
// checks as GitHub reports them.
func (f *Fetcher) RequiredStatusChecks(ctx context.Context, owner, repo, branch string) (json.RawMessage, error) {
	checks, _, err := call(ctx, f, func() (*github.RequiredStatusChecks, *github.Response, error) {
		return f.client.Client.Repositories.GetRequiredStatusChecks(ctx, owner, repo, branch)
	})
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(checks)
	if err != nil {
		return nil, fmt.Errorf("encode required status checks: %w", err)
	}
	return raw, nil
}
