package audit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"orgaudit/internal/config"
	"orgaudit/internal/fetcher"
	gh "orgaudit/internal/github"
	"orgaudit/internal/output"
	"orgaudit/internal/protection"
)

func newTestCollector(t *testing.T, mux *http.ServeMux, opts ...Option) (*Collector, *bytes.Buffer) {
	t.Helper()

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := gh.NewClient(context.Background(), "dummy-token")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	baseURL, err := url.Parse(server.URL + "/")
	if err != nil {
		t.Fatalf("parse server URL: %v", err)
	}
	client.Client.BaseURL = baseURL
	client.Client.UploadURL = baseURL

	var buf bytes.Buffer
	mgr := output.NewManager()
	if err := mgr.AddSink(output.NewConsoleSink(&buf, "text", false)); err != nil {
		t.Fatalf("AddSink: %v", err)
	}

	f := fetcher.NewFetcher(client, fetcher.NewRequestBudget(nil), nil)
	return NewCollector(f, mgr, nil, opts...), &buf
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

func statusHandler(status int, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"message":%q}`, message)
	}
}

func dots(name string) string {
	return name + strings.Repeat(".", 60-len(name))
}

func lines(s ...string) string {
	return strings.Join(s, "\n") + "\n"
}

func TestCollector_Login(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", jsonHandler(`{"login":"octocat"}`))
	c, buf := newTestCollector(t, mux)

	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if buf.String() != "User octocat logged in.\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestCollector_Login_InvalidToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", statusHandler(http.StatusUnauthorized, "Bad credentials"))
	c, buf := newTestCollector(t, mux)

	err := c.Login(context.Background())
	if !errors.Is(err, ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed, got %v", err)
	}
	if gh.Classify(err) != gh.KindUnauthorized {
		t.Fatalf("expected the API error to stay wrapped, got %s", gh.Classify(err))
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestCollector_Teams(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/acme", jsonHandler(`{"login":"acme","name":"Acme Corp"}`))
	mux.HandleFunc("/orgs/acme/teams", jsonHandler(`[{"name":"platform","slug":"platform"},{"name":"Data Eng","slug":"data-eng"}]`))
	c, buf := newTestCollector(t, mux)

	if err := c.Teams(context.Background(), "acme"); err != nil {
		t.Fatalf("Teams: %v", err)
	}
	want := lines(
		"Found 2 teams for org Acme Corp:",
		"* platform",
		"* Data Eng",
	)
	if buf.String() != want {
		t.Fatalf("output mismatch\nwant: %q\n got: %q", want, buf.String())
	}
}

func TestCollector_Teams_UnknownOrg(t *testing.T) {
	mux := http.NewServeMux()
	c, buf := newTestCollector(t, mux)

	if err := c.Teams(context.Background(), "nope"); err != nil {
		t.Fatalf("Teams: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "[ERROR] Org `nope` not found") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestCollector_OrgRepos(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/acme", jsonHandler(`{"login":"acme"}`))
	mux.HandleFunc("/orgs/acme/repos", jsonHandler(`[
		{"full_name":"acme/svc","default_branch":"main"},
		{"full_name":"acme/old","default_branch":"master","archived":true}
	]`))
	mux.HandleFunc("/repos/acme/svc/branches/main", jsonHandler(`{"name":"main","protected":true}`))
	mux.HandleFunc("/repos/acme/old/branches/master", jsonHandler(`{"name":"master","protected":false}`))
	c, buf := newTestCollector(t, mux)

	if err := c.OrgRepos(context.Background(), "acme"); err != nil {
		t.Fatalf("OrgRepos: %v", err)
	}
	want := lines(
		"Listing all repositories (this can take a while) ..",
		"Found 2 repositories for org acme:",
		"* "+dots("acme/svc")+" 🛡 has protected default-branch `main`",
		"* "+dots("acme/old")+" 🚨 has no protection on default-branch `master` "+output.ArchivedMarker,
	)
	if buf.String() != want {
		t.Fatalf("output mismatch\nwant: %q\n got: %q", want, buf.String())
	}
}

func TestCollector_TeamRepos(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/acme/teams/platform", jsonHandler(`{"name":"platform","slug":"platform"}`))
	mux.HandleFunc("/orgs/acme/teams/platform/repos", jsonHandler(`[
		{"full_name":"acme/api","default_branch":"main","topics":["platform"],"permissions":{"admin":true,"push":true}},
		{"full_name":"acme/web","default_branch":"main","topics":["frontend"],"permissions":{"admin":false,"push":true}},
		{"full_name":"acme/tools","default_branch":"main","topics":["platform"],"archived":true,"permissions":{"admin":false}}
	]`))
	mux.HandleFunc("/repos/acme/api/branches/main", jsonHandler(`{"name":"main","protected":true}`))
	mux.HandleFunc("/repos/acme/web/branches/main", jsonHandler(`{"name":"main","protected":false}`))
	mux.HandleFunc("/repos/acme/tools/branches/main", jsonHandler(`{"name":"main","protected":true}`))
	c, buf := newTestCollector(t, mux)

	if err := c.TeamRepos(context.Background(), "acme", "Platform"); err != nil {
		t.Fatalf("TeamRepos: %v", err)
	}
	want := lines(
		"Found 3 repositories accessible for team platform.",
		"Filtering out repos with admin-permissions by platform ..",
		"Filtered 1 repos administered by platform:",
		"* "+dots("acme/api")+" 🛡 has protected default-branch `main`",
		"Assume ownership for 2 repos:",
		dots("acme/api")+" 🛡 has protected default-branch `main`",
		dots("acme/tools")+" 🛡 has protected default-branch `main`",
	)
	if buf.String() != want {
		t.Fatalf("output mismatch\nwant: %q\n got: %q", want, buf.String())
	}
}

func TestCollector_TeamRepos_UnknownTeam(t *testing.T) {
	mux := http.NewServeMux()
	c, buf := newTestCollector(t, mux)

	if err := c.TeamRepos(context.Background(), "acme", "ghosts"); err != nil {
		t.Fatalf("TeamRepos: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "[ERROR] Team `ghosts` not found in org `acme`") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestCollector_RepoStatus_RenameRedirectIsNotDuplicated(t *testing.T) {
	mux := http.NewServeMux()
	var masterCalls atomic.Int32
	mux.HandleFunc("/repos/acme/renamed", jsonHandler(`{"full_name":"acme/renamed","default_branch":"main"}`))
	mux.HandleFunc("/repos/acme/renamed/branches/main", jsonHandler(`{"name":"main","protected":true}`))
	mux.HandleFunc("/repos/acme/renamed/branches/master", func(w http.ResponseWriter, r *http.Request) {
		masterCalls.Add(1)
		http.Redirect(w, r, "/repos/acme/renamed/branches/main", http.StatusMovedPermanently)
	})
	c, buf := newTestCollector(t, mux)

	if err := c.RepoStatus(context.Background(), "https://github.com/acme/renamed.git", false); err != nil {
		t.Fatalf("RepoStatus: %v", err)
	}
	want := dots("acme/renamed") + " 🛡 has protected default-branch `main`\n"
	if buf.String() != want {
		t.Fatalf("output mismatch\nwant: %q\n got: %q", want, buf.String())
	}
	if masterCalls.Load() != 1 {
		t.Fatalf("expected master to be probed once, got %d", masterCalls.Load())
	}
}

func TestCollector_RepoStatus_DevelopDefaultWithMain(t *testing.T) {
	mux := http.NewServeMux()
	var masterCalls atomic.Int32
	mux.HandleFunc("/repos/acme/dev", jsonHandler(`{"full_name":"acme/dev","default_branch":"develop"}`))
	mux.HandleFunc("/repos/acme/dev/branches/develop", jsonHandler(`{"name":"develop","protected":false}`))
	mux.HandleFunc("/repos/acme/dev/branches/main", jsonHandler(`{"name":"main","protected":true}`))
	mux.HandleFunc("/repos/acme/dev/branches/master", func(w http.ResponseWriter, r *http.Request) {
		masterCalls.Add(1)
		jsonHandler(`{"name":"master","protected":false}`)(w, r)
	})
	c, buf := newTestCollector(t, mux)

	if err := c.RepoStatus(context.Background(), "acme/dev", false); err != nil {
		t.Fatalf("RepoStatus: %v", err)
	}
	want := dots("acme/dev") + " 🚨 has no protection on default-branch `develop`, also protected branch `main`\n"
	if buf.String() != want {
		t.Fatalf("output mismatch\nwant: %q\n got: %q", want, buf.String())
	}
	if masterCalls.Load() != 0 {
		t.Fatalf("master must not be probed once main resolved, got %d calls", masterCalls.Load())
	}
}

func TestCollector_RepoStatus_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/missing", statusHandler(http.StatusNotFound, "Not Found"))
	c, buf := newTestCollector(t, mux)

	if err := c.RepoStatus(context.Background(), "acme/missing", true); err != nil {
		t.Fatalf("RepoStatus: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "[ERROR] Repo `acme/missing` not found: Please verify the name and your access permissions!") {
		t.Fatalf("unexpected output %q", out)
	}
	if strings.Contains(out, "details") {
		t.Fatalf("details must not be printed for a missing repo: %q", out)
	}
}

func TestCollector_RepoStatus_UnknownDefaultBranch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/flaky", jsonHandler(`{"full_name":"acme/flaky","default_branch":"trunk"}`))
	mux.HandleFunc("/repos/acme/flaky/branches/trunk", statusHandler(http.StatusInternalServerError, "boom"))
	c, buf := newTestCollector(t, mux)

	if err := c.RepoStatus(context.Background(), "acme/flaky", false); err != nil {
		t.Fatalf("RepoStatus: %v", err)
	}
	prefix := dots("acme/flaky") + " ⭕ unknown default-branch [ERROR] "
	if !strings.HasPrefix(buf.String(), prefix) || !strings.Contains(buf.String(), "500") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestCollector_RepoStatus_Details(t *testing.T) {
	mux := http.NewServeMux()
	var mainCalls atomic.Int32
	mux.HandleFunc("/repos/acme/api", jsonHandler(`{"full_name":"acme/api","default_branch":"main"}`))
	mux.HandleFunc("/repos/acme/api/branches/main", func(w http.ResponseWriter, r *http.Request) {
		mainCalls.Add(1)
		jsonHandler(`{"name":"main","protected":true}`)(w, r)
	})
	mux.HandleFunc("/repos/acme/api/topics", jsonHandler(`{"names":["platform","go"]}`))
	mux.HandleFunc("/repos/acme/api/teams", jsonHandler(`[{"name":"infra","slug":"infra"},{"name":"platform","slug":"platform"}]`))
	mux.HandleFunc("/repos/acme/api/branches", jsonHandler(`[{"name":"dev"},{"name":"main","protected":true}]`))
	mux.HandleFunc("/repos/acme/api/branches/main/protection/required_status_checks", jsonHandler(`{"strict":true,"contexts":["ci/build"]}`))
	c, buf := newTestCollector(t, mux)

	if err := c.RepoStatus(context.Background(), "acme/api", true); err != nil {
		t.Fatalf("RepoStatus: %v", err)
	}

	got := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	wantPrefix := []string{
		dots("acme/api") + " 🛡 has protected default-branch `main`",
		"acme/api - details:",
		"Topics: ['platform', 'go']",
		"Accessible by teams: ['infra', 'platform']",
		"Assumed owner teams (matching topics): ['platform']",
		"Branches: ['dev', 'main']",
		"Default branch: main",
		"- has protection-status: true",
	}
	if len(got) != len(wantPrefix)+1 {
		t.Fatalf("expected %d lines, got %d:\n%s", len(wantPrefix)+1, len(got), buf.String())
	}
	for i, want := range wantPrefix {
		if got[i] != want {
			t.Fatalf("line %d mismatch\nwant: %q\n got: %q", i, want, got[i])
		}
	}
	last := got[len(got)-1]
	if !strings.HasPrefix(last, "- has required-status-checks: ") || !strings.Contains(last, `"strict":true`) || !strings.Contains(last, "ci/build") {
		t.Fatalf("unexpected status checks line %q", last)
	}
	if mainCalls.Load() != 1 {
		t.Fatalf("expected the default branch to be fetched once, got %d", mainCalls.Load())
	}
}

func TestCollector_RepoStatus_DetailsDenied(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/api", jsonHandler(`{"full_name":"acme/api","default_branch":"main"}`))
	mux.HandleFunc("/repos/acme/api/branches/main", jsonHandler(`{"name":"main","protected":false}`))
	mux.HandleFunc("/repos/acme/api/topics", jsonHandler(`{"names":[]}`))
	mux.HandleFunc("/repos/acme/api/teams", statusHandler(http.StatusForbidden, "Must have admin rights to Repository."))
	mux.HandleFunc("/repos/acme/api/branches", jsonHandler(`[{"name":"main"}]`))
	mux.HandleFunc("/repos/acme/api/branches/main/protection/required_status_checks", statusHandler(http.StatusNotFound, "Branch not protected"))
	c, buf := newTestCollector(t, mux)

	if err := c.RepoStatus(context.Background(), "acme/api", true); err != nil {
		t.Fatalf("RepoStatus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"[ERROR] GitHub denied access: Teams for this repo not accessible!",
		"Branches: ['main']",
		"- has protection-status: false",
		"[ERROR] GitHub denied access: Branch-Protection for this repo not accessible!",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Accessible by teams") {
		t.Fatalf("teams must not be listed when denied:\n%s", out)
	}
}

func TestCollector_BranchProtection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/api", jsonHandler(`{"full_name":"acme/api","default_branch":"main"}`))
	mux.HandleFunc("/repos/acme/api/branches/main", jsonHandler(`{"name":"main","protected":true}`))
	mux.HandleFunc("/repos/acme/legacy", jsonHandler(`{"full_name":"acme/legacy","default_branch":"master"}`))
	mux.HandleFunc("/repos/acme/legacy/branches/master", jsonHandler(`{"name":"master","protected":false}`))
	c, buf := newTestCollector(t, mux)

	cfg, err := config.LoadTeamsConfiguration(strings.NewReader(`teams:
  - name: platform
    repos:
      - acme/api
      - acme/gone
  - name: legacy
    repos:
      - https://github.com/acme/legacy
`))
	if err != nil {
		t.Fatalf("LoadTeamsConfiguration: %v", err)
	}

	if err := c.BranchProtection(context.Background(), cfg); err != nil {
		t.Fatalf("BranchProtection: %v", err)
	}
	got := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(got) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(got), buf.String())
	}
	if got[0] != "Collecting 2 repositories for team 'platform'" {
		t.Fatalf("unexpected line 0 %q", got[0])
	}
	if got[1] != dots("acme/api")+" 🛡 has protected default-branch `main`" {
		t.Fatalf("unexpected line 1 %q", got[1])
	}
	if !strings.HasPrefix(got[2], "[ERROR] Repo `acme/gone` not found") {
		t.Fatalf("unexpected line 2 %q", got[2])
	}
	if got[3] != "Collecting 1 repositories for team 'legacy'" {
		t.Fatalf("unexpected line 3 %q", got[3])
	}
	if got[4] != dots("acme/legacy")+" 🚨 has no protection on default-branch `master`" {
		t.Fatalf("unexpected line 4 %q", got[4])
	}
}

func TestCollector_LookupBranch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/api/branches/main", jsonHandler(`{"name":"main","protected":true}`))
	mux.HandleFunc("/repos/acme/api/branches/denied", statusHandler(http.StatusForbidden, "Forbidden"))
	mux.HandleFunc("/repos/acme/api/branches/broken", statusHandler(http.StatusInternalServerError, "boom"))
	c, _ := newTestCollector(t, mux)

	repo := fakeRepo{name: "acme/api"}
	tests := []struct {
		branch string
		want   protection.LookupKind
	}{
		{branch: "main", want: protection.LookupFound},
		{branch: "missing", want: protection.LookupNotFound},
		{branch: "denied", want: protection.LookupFailed},
		{branch: "broken", want: protection.LookupFailed},
	}
	for _, tt := range tests {
		t.Run(tt.branch, func(t *testing.T) {
			got := c.LookupBranch(context.Background(), repo, tt.branch)
			if got.Kind != tt.want {
				t.Fatalf("want %s, got %s (%v)", tt.want, got.Kind, got.Err)
			}
			if tt.want == protection.LookupFound && (got.Branch.Name != "main" || !got.Branch.Protected) {
				t.Fatalf("unexpected branch %+v", got.Branch)
			}
		})
	}

	bad := c.LookupBranch(context.Background(), fakeRepo{name: "no-slash"}, "main")
	if bad.Kind != protection.LookupFailed {
		t.Fatalf("invalid full name should fail the lookup, got %s", bad.Kind)
	}
}

type fakeRepo struct {
	name string
}

func (r fakeRepo) FullName() string      { return r.name }
func (r fakeRepo) DefaultBranch() string { return "main" }
func (r fakeRepo) Archived() bool        { return false }
