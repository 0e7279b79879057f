package audit

import (
	"strings"

	"github.com/google/go-github/v81/github"
)

// Team identifies a GitHub team by display name and slug.
type Team struct {
	Name string
	Slug string
}

func teamFrom(t *github.Team) Team {
	return Team{Name: t.GetName(), Slug: t.GetSlug()}
}

// AssumedOwners returns the names of teams whose name literally equals one of
// the topics, in team order. Matching is case-sensitive.
func AssumedOwners(topics []string, teams []Team) []string {
	set := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}
	var owners []string
	for _, team := range teams {
		if _, ok := set[team.Name]; ok {
			owners = append(owners, team.Name)
		}
	}
	return owners
}

// TeamSlug derives the URL slug GitHub assigns to a team name, so both
// "Platform Team" and "platform-team" address the same team.
func TeamSlug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
