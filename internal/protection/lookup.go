package protection

import (
	"context"
	"fmt"
)

// BranchInfo is the protection state of a single branch as returned by the API.
// Name is the branch's actual name, which may differ from the requested name
// when the API follows a rename redirect.
type BranchInfo struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
}

// LookupKind classifies the outcome of a branch lookup.
type LookupKind int

const (
	LookupFound LookupKind = iota
	LookupNotFound
	LookupFailed
)

func (k LookupKind) String() string {
	switch k {
	case LookupFound:
		return "found"
	case LookupNotFound:
		return "not-found"
	case LookupFailed:
		return "failed"
	default:
		return fmt.Sprintf("LookupKind(%d)", int(k))
	}
}

// Lookup is the result of fetching one named branch.
type Lookup struct {
	Kind   LookupKind
	Branch BranchInfo
	Err    error
}

func Found(b BranchInfo) Lookup {
	return Lookup{Kind: LookupFound, Branch: b}
}

func NotFound(err error) Lookup {
	return Lookup{Kind: LookupNotFound, Err: err}
}

func Failed(err error) Lookup {
	return Lookup{Kind: LookupFailed, Err: err}
}

// Repository is the subset of repository metadata the inspector needs.
type Repository interface {
	FullName() string
	DefaultBranch() string
	Archived() bool
}

// BranchLookup fetches a branch of repo by name.
//
// Implementations must not panic on API errors; every failure is reported
// through the returned Lookup.
type BranchLookup interface {
	LookupBranch(ctx context.Context, repo Repository, branch string) Lookup
}

// BranchLookupFunc adapts a function to BranchLookup.
type BranchLookupFunc func(ctx context.Context, repo Repository, branch string) Lookup

func (f BranchLookupFunc) LookupBranch(ctx context.Context, repo Repository, branch string) Lookup {
	return f(ctx, repo, branch)
}
