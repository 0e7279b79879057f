package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fatih/color"
)

const (
	// ErrorPrefix starts every user-facing error line.
	ErrorPrefix = "[ERROR]"

	// ArchivedMarker is appended to protection lines of archived repositories.
	ArchivedMarker = "🗃 ARCHIVED"

	// nameWidth is the dotted column width of repository names.
	nameWidth = 60
)

type ConsoleSink struct {
	writer io.Writer
	format string // "text", "json", "ndjson"
	mu     sync.Mutex
	events []Event // For JSON array output

	good *color.Color
	bad  *color.Color
	warn *color.Color
	dim  *color.Color
}

// NewConsoleSink returns a sink writing format to w. Colors only apply to
// text output.
func NewConsoleSink(w io.Writer, format string, colored bool) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}

	s := &ConsoleSink{
		writer: w,
		format: format,
		good:   color.New(color.FgGreen),
		bad:    color.New(color.FgRed, color.Bold),
		warn:   color.New(color.FgYellow),
		dim:    color.New(color.Faint),
	}
	for _, c := range []*color.Color{s.good, s.bad, s.warn, s.dim} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}

func (s *ConsoleSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(v)
}

func (s *ConsoleSink) writeLocked(v any) error {
	switch s.format {
	case "json":
		e, ok := eventFrom(v)
		if !ok || e.Type == EventMessage {
			// Progress lines are not part of the aggregate.
			return nil
		}
		s.events = append(s.events, e)
		return nil
	case "ndjson":
		e, ok := eventFrom(v)
		if !ok {
			return nil
		}
		if err := json.NewEncoder(s.writer).Encode(e); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	case "text":
		lines, ok := s.text(v)
		if !ok {
			return nil
		}
		for _, line := range lines {
			if _, err := fmt.Fprintln(s.writer, line); err != nil {
				return err
			}
		}
		return flushIfPossible(s.writer)
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == "json" {
		encoder := json.NewEncoder(s.writer)
		encoder.SetIndent("", "  ")
		events := s.events
		if events == nil {
			events = []Event{}
		}
		if err := encoder.Encode(events); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	}
	if s.format != "text" && s.format != "ndjson" {
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
	return nil
}

func (s *ConsoleSink) text(v any) ([]string, bool) {
	switch t := v.(type) {
	case Message:
		return []string{t.Text}, true
	case ErrorMessage:
		return []string{s.errorLine(t.Text, t.Err)}, true
	case Team:
		return []string{"* " + t.Name}, true
	case Protection:
		return []string{s.protectionLine(t)}, true
	case RepoDetails:
		return s.detailLines(t), true
	case Event:
		if t.Type == EventMessage {
			return []string{t.Message}, true
		}
		return nil, false
	default:
		return nil, false
	}
}

func (s *ConsoleSink) errorLine(text string, err error) string {
	line := s.bad.Sprint(ErrorPrefix)
	if text != "" {
		line += " " + text
	}
	if err != nil {
		line += " " + err.Error()
	}
	return line
}

// protectionLine renders
//
//	<prefix> <repo padded with dots> <status>[, also ... branch `x`] [marker]
func (s *ConsoleSink) protectionLine(p Protection) string {
	r := p.Report
	parts := make([]string, 0, 4)
	if p.Prefix != "" {
		parts = append(parts, p.Prefix)
	}
	parts = append(parts, padDots(r.Repo, nameWidth))

	var status string
	if r.Primary.Known {
		b := r.Primary.Branch
		if b.Protected {
			status = s.good.Sprint("🛡 has protected") + fmt.Sprintf(" default-branch `%s`", b.Name)
		} else {
			status = s.bad.Sprint("🚨 has no protection on") + fmt.Sprintf(" default-branch `%s`", b.Name)
		}
	} else {
		status = s.warn.Sprint("⭕ unknown default-branch") + " " + s.errorLine("", r.Primary.Err)
	}
	for _, b := range r.Extra {
		if b.Protected {
			status += fmt.Sprintf(", also protected branch `%s`", b.Name)
		} else {
			status += fmt.Sprintf(", also unprotected branch `%s`", b.Name)
		}
	}
	parts = append(parts, status)

	if p.MarkArchived && r.Archived {
		parts = append(parts, s.dim.Sprint(ArchivedMarker))
	}
	return strings.Join(parts, " ")
}

func (s *ConsoleSink) detailLines(d RepoDetails) []string {
	lines := []string{d.Repo + " - details:"}

	if d.TopicsError != "" {
		lines = append(lines, s.errorLine("Topics for this repo not accessible!", stringError(d.TopicsError)))
	} else {
		lines = append(lines, "Topics: "+formatList(d.Topics))
	}

	if d.TeamsError != "" {
		lines = append(lines, s.errorLine("GitHub denied access: Teams for this repo not accessible!", stringError(d.TeamsError)))
	} else {
		lines = append(lines,
			"Accessible by teams: "+formatList(d.Teams),
			"Assumed owner teams (matching topics): "+formatList(d.AssumedOwners),
		)
	}

	if d.BranchesError != "" {
		lines = append(lines, s.errorLine("Branches for this repo not accessible!", stringError(d.BranchesError)))
	} else {
		lines = append(lines, "Branches: "+formatList(d.Branches))
	}

	lines = append(lines, "Default branch: "+d.DefaultBranch)
	switch {
	case d.Protected != nil:
		lines = append(lines, fmt.Sprintf("- has protection-status: %t", *d.Protected))
	case d.DefaultBranchError != "":
		lines = append(lines, "- has protection-status: unknown "+s.errorLine("", stringError(d.DefaultBranchError)))
	}

	if d.RequiredStatusChecksError != "" {
		lines = append(lines, s.errorLine("GitHub denied access: Branch-Protection for this repo not accessible!", stringError(d.RequiredStatusChecksError)))
	} else if len(d.RequiredStatusChecks) > 0 {
		lines = append(lines, "- has required-status-checks: "+string(d.RequiredStatusChecks))
	}
	return lines
}

// padDots left-aligns name in a column of width runes filled with dots.
// Longer names are not truncated.
func padDots(name string, width int) string {
	n := utf8.RuneCountInString(name)
	if n >= width {
		return name
	}
	return name + strings.Repeat(".", width-n)
}

func formatList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = "'" + it + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

type stringError string

func (e stringError) Error() string { return string(e) }
