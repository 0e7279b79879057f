package output

import (
	"encoding/json"

	"orgaudit/internal/protection"
)

// Event types, as emitted in JSON and NDJSON output.
const (
	EventMessage    = "message"
	EventError      = "error"
	EventTeam       = "team"
	EventProtection = "repo.protection"
	EventDetails    = "repo.details"
)

// Message is a free-form progress line. It is not part of the JSON aggregate.
type Message struct {
	Text string
}

// ErrorMessage is a user-facing problem that does not abort the command.
type ErrorMessage struct {
	Repo string
	Text string
	Err  error
}

// Team is one team of an organization listing.
type Team struct {
	Org  string
	Name string
	Slug string
}

// Protection is one repository's protection line.
type Protection struct {
	// Prefix is printed before the repository name in text output (e.g. "*").
	Prefix string
	// MarkArchived appends the archived marker for archived repositories.
	MarkArchived bool
	// Section groups lines in structured output, e.g. "admin" or "owned".
	Section string
	Report  protection.Report
}

// RepoDetails is the detail block of `repo-status --details`. Error fields
// hold the reason a part could not be read.
type RepoDetails struct {
	Repo                      string          `json:"repo"`
	Topics                    []string        `json:"topics"`
	TopicsError               string          `json:"topics_error,omitempty"`
	Teams                     []string        `json:"teams,omitempty"`
	AssumedOwners             []string        `json:"assumed_owners,omitempty"`
	TeamsError                string          `json:"teams_error,omitempty"`
	Branches                  []string        `json:"branches"`
	BranchesError             string          `json:"branches_error,omitempty"`
	DefaultBranch             string          `json:"default_branch"`
	Protected                 *bool           `json:"protected,omitempty"`
	DefaultBranchError        string          `json:"default_branch_error,omitempty"`
	RequiredStatusChecks      json.RawMessage `json:"required_status_checks,omitempty"`
	RequiredStatusChecksError string          `json:"required_status_checks_error,omitempty"`
}

// BranchStatus is the default branch part of a protection event.
type BranchStatus struct {
	Known     bool   `json:"known"`
	Name      string `json:"name,omitempty"`
	Protected bool   `json:"protected"`
	Error     string `json:"error,omitempty"`
}

// Event is the structured form of every record written to a sink.
type Event struct {
	Type          string                  `json:"type"`
	Org           string                  `json:"org,omitempty"`
	Repo          string                  `json:"repo,omitempty"`
	Team          string                  `json:"team,omitempty"`
	Section       string                  `json:"section,omitempty"`
	Message       string                  `json:"message,omitempty"`
	Error         string                  `json:"error,omitempty"`
	Archived      bool                    `json:"archived,omitempty"`
	DefaultBranch *BranchStatus           `json:"default_branch,omitempty"`
	ExtraBranches []protection.BranchInfo `json:"extra_branches,omitempty"`
	Details       *RepoDetails            `json:"details,omitempty"`
}

// eventFrom converts a record into its Event. Unknown values report false.
func eventFrom(v any) (Event, bool) {
	switch t := v.(type) {
	case Event:
		return t, true
	case Message:
		return Event{Type: EventMessage, Message: t.Text}, true
	case ErrorMessage:
		e := Event{Type: EventError, Repo: t.Repo, Message: t.Text}
		if t.Err != nil {
			e.Error = t.Err.Error()
		}
		return e, true
	case Team:
		return Event{Type: EventTeam, Org: t.Org, Team: t.Name}, true
	case Protection:
		r := t.Report
		status := &BranchStatus{Known: r.Primary.Known}
		if r.Primary.Known {
			status.Name = r.Primary.Branch.Name
			status.Protected = r.Primary.Branch.Protected
		} else if r.Primary.Err != nil {
			status.Error = r.Primary.Err.Error()
		}
		return Event{
			Type:          EventProtection,
			Repo:          r.Repo,
			Section:       t.Section,
			Archived:      r.Archived,
			DefaultBranch: status,
			ExtraBranches: r.Extra,
		}, true
	case RepoDetails:
		d := t
		return Event{Type: EventDetails, Repo: t.Repo, Details: &d}, true
	default:
		return Event{}, false
	}
}
