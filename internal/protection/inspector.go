// Package protection reports branch protection for a repository's default
// branch and the conventional main/master branches.
package protection

import "context"

// DefaultCandidates are the branch names checked in addition to the default
// branch, in scan order.
var DefaultCandidates = []string{"main", "master"}

// Status is the protection state of the default branch. Known is false when
// the default branch could not be looked up; Err then holds the cause.
type Status struct {
	Known  bool
	Branch BranchInfo
	Err    error
}

// Report is the inspection result for one repository.
type Report struct {
	Repo     string
	Archived bool
	Primary  Status
	Extra    []BranchInfo
}

// Branches returns every branch recorded in the report: the default branch
// (when known) followed by the extra candidates in scan order.
func (r Report) Branches() []BranchInfo {
	out := make([]BranchInfo, 0, len(r.Extra)+1)
	if r.Primary.Known {
		out = append(out, r.Primary.Branch)
	}
	return append(out, r.Extra...)
}

type Inspector struct {
	lookup     BranchLookup
	candidates []string
}

func NewInspector(lookup BranchLookup) *Inspector {
	return &Inspector{lookup: lookup, candidates: DefaultCandidates}
}

// Inspect never fails: lookup errors degrade the primary status to unknown
// or skip the candidate.
func (i *Inspector) Inspect(ctx context.Context, repo Repository) Report {
	report := Report{
		Repo:     repo.FullName(),
		Archived: repo.Archived(),
	}
	seen := make(map[string]struct{}, len(i.candidates)+1)

	def := i.lookup.LookupBranch(ctx, repo, repo.DefaultBranch())
	if def.Kind == LookupFound {
		seen[def.Branch.Name] = struct{}{}
		report.Primary = Status{Known: true, Branch: def.Branch}
	} else {
		report.Primary = Status{Err: def.Err}
	}

	for _, candidate := range i.candidates {
		if _, ok := seen[candidate]; ok {
			continue
		}
		// One resolved fallback is enough; master is only probed when main
		// produced nothing.
		if candidate == "master" && len(report.Extra) > 0 {
			continue
		}

		res := i.lookup.LookupBranch(ctx, repo, candidate)
		if res.Kind != LookupFound {
			continue
		}
		if _, ok := seen[res.Branch.Name]; ok {
			// The API redirected a renamed branch onto one already recorded.
			break
		}
		seen[res.Branch.Name] = struct{}{}
		report.Extra = append(report.Extra, res.Branch)
	}

	return report
}
