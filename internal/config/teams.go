package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// TeamsConfiguration is the batch input of the branch-protection command:
//
//	teams:
//	  - name: platform
//	    repos:
//	      - acme/api
//	      - acme/web
type TeamsConfiguration struct {
	Teams []TeamEntry `yaml:"teams"`
}

type TeamEntry struct {
	Name  string   `yaml:"name"`
	Repos []string `yaml:"repos"`

	// Line is the 1-based line of the entry in the source document.
	Line int `yaml:"-"`
}

func (e *TeamEntry) UnmarshalYAML(value *yaml.Node) error {
	type plain TeamEntry
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*e = TeamEntry(p)
	e.Line = value.Line
	return nil
}

// RepoCount is the number of repositories across all teams.
func (c *TeamsConfiguration) RepoCount() int {
	n := 0
	for _, t := range c.Teams {
		n += len(t.Repos)
	}
	return n
}

// ParseError reports a malformed teams configuration. Line and Column are
// zero when the problem has no position in the document.
type ParseError struct {
	Source  string
	Line    int
	Column  int
	Problem string
}

func (e *ParseError) Error() string {
	if mark := e.Mark(); mark != "" {
		return mark + ": " + e.Problem
	}
	return e.Problem
}

// Mark describes where the problem is, e.g. `in "teams.yaml", line 3, column 7`.
func (e *ParseError) Mark() string {
	var parts []string
	if e.Source != "" {
		parts = append(parts, fmt.Sprintf("in %q", e.Source))
	}
	if e.Line > 0 {
		parts = append(parts, fmt.Sprintf("line %d", e.Line))
	}
	if e.Column > 0 {
		parts = append(parts, fmt.Sprintf("column %d", e.Column))
	}
	return strings.Join(parts, ", ")
}

// LoadTeamsConfigurationFile reads and validates the configuration at path.
func LoadTeamsConfigurationFile(path string) (*TeamsConfiguration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open teams configuration: %w", err)
	}
	defer f.Close()

	cfg, err := LoadTeamsConfiguration(f)
	var perr *ParseError
	if errors.As(err, &perr) {
		perr.Source = path
	}
	return cfg, err
}

// LoadTeamsConfiguration parses a YAML teams configuration. Syntax errors
// and invalid entries are returned as *ParseError; keys other than `teams`,
// `name` and `repos` are ignored. Repository entries are normalized to
// OWNER/REPO.
func LoadTeamsConfiguration(r io.Reader) (*TeamsConfiguration, error) {
	dec := yaml.NewDecoder(r)

	var cfg TeamsConfiguration
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Problem: "configuration is empty; expected a top-level `teams` list"}
		}
		return nil, newParseError(err)
	}

	if len(cfg.Teams) == 0 {
		return nil, &ParseError{Problem: "missing or empty top-level key `teams`"}
	}
	for i := range cfg.Teams {
		team := &cfg.Teams[i]
		team.Name = strings.TrimSpace(team.Name)
		if team.Name == "" {
			return nil, &ParseError{Line: team.Line, Problem: fmt.Sprintf("team entry %d has no `name`", i+1)}
		}
		for j, raw := range team.Repos {
			norm, err := NormalizeRepoSelector(raw)
			if err != nil {
				return nil, &ParseError{Line: team.Line, Problem: fmt.Sprintf("team %q: %v", team.Name, err)}
			}
			team.Repos[j] = norm
		}
	}
	return &cfg, nil
}

var (
	syntaxErrorPattern = regexp.MustCompile(`^yaml: line (\d+)(?:, column (\d+))?: (.+)$`)
	typeErrorPattern   = regexp.MustCompile(`^line (\d+)(?:, column (\d+))?: (.+)$`)
)

func newParseError(err error) *ParseError {
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) && len(typeErr.Errors) > 0 {
		return parseErrorFrom(typeErrorPattern, strings.TrimSpace(typeErr.Errors[0]))
	}
	return parseErrorFrom(syntaxErrorPattern, err.Error())
}

func parseErrorFrom(pattern *regexp.Regexp, msg string) *ParseError {
	m := pattern.FindStringSubmatch(msg)
	if m == nil {
		return &ParseError{Problem: strings.TrimPrefix(msg, "yaml: ")}
	}
	line, _ := strconv.Atoi(m[1])
	col, _ := strconv.Atoi(m[2])
	return &ParseError{Line: line, Column: col, Problem: m[3]}
}
