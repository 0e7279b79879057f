package audit

import (
	"context"

	"orgaudit/internal/config"
	gh "orgaudit/internal/github"
	"orgaudit/internal/protection"

	"github.com/google/go-github/v81/github"
)

// repoHandle exposes a GitHub repository to the protection inspector.
type repoHandle struct {
	repo *github.Repository
}

func (h repoHandle) FullName() string      { return h.repo.GetFullName() }
func (h repoHandle) DefaultBranch() string { return h.repo.GetDefaultBranch() }
func (h repoHandle) Archived() bool        { return h.repo.GetArchived() }

// LookupBranch implements protection.BranchLookup on top of the fetcher.
// Only a definitive not-found maps to LookupNotFound; everything else
// (denied, rate limited, transport errors) is a failed lookup.
func (c *Collector) LookupBranch(ctx context.Context, repo protection.Repository, branch string) protection.Lookup {
	owner, name, err := config.SplitOwnerRepo(repo.FullName())
	if err != nil {
		return protection.Failed(err)
	}

	b, err := c.fetcher.Branch(ctx, owner, name, branch)
	if err != nil {
		if gh.IsNotFound(err) {
			return protection.NotFound(err)
		}
		return protection.Failed(err)
	}
	return protection.Found(protection.BranchInfo{Name: b.GetName(), Protected: b.GetProtected()})
}

// hasAdmin reports whether the listing token's team holds admin permission
// on repo, as reported in the repository's permissions block.
func hasAdmin(repo *github.Repository) bool {
	return repo.GetPermissions()["admin"]
}
