package config

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeRepoSelector reduces the accepted repository notations to
// OWNER/REPO:
//
//	owner/repo
//	https://github.com/owner/repo(.git)(/tree/main)
//	github.com/owner/repo
//	git@github.com:owner/repo.git
func NormalizeRepoSelector(sel string) (string, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return "", fmt.Errorf("empty repo selector; expected owner/name")
	}

	if strings.HasPrefix(sel, "github.com/") || strings.HasPrefix(sel, "www.github.com/") {
		sel = "https://" + sel
	}

	var owner, repo string
	switch {
	case strings.HasPrefix(sel, "git@github.com:"):
		parts := strings.Split(strings.Trim(strings.TrimPrefix(sel, "git@github.com:"), "/"), "/")
		if len(parts) < 2 {
			return "", fmt.Errorf("invalid repo selector %q; expected owner/name", sel)
		}
		owner, repo = parts[0], parts[1]
	case strings.HasPrefix(sel, "http://") || strings.HasPrefix(sel, "https://"):
		u, err := url.Parse(sel)
		if err != nil {
			return "", fmt.Errorf("invalid repo selector %q; expected owner/name", sel)
		}
		host := strings.ToLower(u.Hostname())
		if host != "github.com" && host != "www.github.com" {
			return "", fmt.Errorf("invalid repo selector %q; only github.com URLs are supported", sel)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) < 2 {
			return "", fmt.Errorf("invalid repo selector %q; expected owner/name", sel)
		}
		owner, repo = parts[0], parts[1]
	default:
		o, r, err := SplitOwnerRepo(sel)
		if err != nil {
			return "", err
		}
		owner, repo = o, r
	}

	repo = strings.TrimSuffix(repo, ".git")
	if owner == "" || repo == "" {
		return "", fmt.Errorf("invalid repo selector %q; expected owner/name", sel)
	}
	return owner + "/" + repo, nil
}

// SplitOwnerRepo splits an exact OWNER/REPO string.
func SplitOwnerRepo(sel string) (owner string, name string, err error) {
	parts := strings.Split(sel, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo selector %q; expected owner/name", sel)
	}
	return parts[0], parts[1], nil
}
