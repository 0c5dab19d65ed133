package jira

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/herald-labs/herald/pkg/tracker"
)

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Config{
		BaseURL:  srv.URL,
		Username: "herald",
		Password: "secret",
	})
}

func TestListProjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/project" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "herald" || pass != "secret" {
			t.Errorf("basic auth = %q/%q ok=%v", user, pass, ok)
		}
		w.Write([]byte(`[{"key":"PBL","name":"Public Backlog"},{"key":"OPS","name":"Operations"}]`))
	}))
	defer srv.Close()

	projects, err := newTestClient(srv).ListProjects(context.Background())
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("got %d projects, want 2", len(projects))
	}
	if projects[0].Key != "PBL" || projects[0].Name != "Public Backlog" {
		t.Errorf("projects[0] = %+v", projects[0])
	}
}

func TestFindIssue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue/PBL-7" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{
			"key": "PBL-7",
			"fields": {
				"summary": "Fix the flux capacitor",
				"issuetype": {"name": "Bug"},
				"priority": {"name": "Major"},
				"status": {"name": "Open"},
				"assignee": {"name": "jdoe", "displayName": "Jane Doe"},
				"created": "2023-04-01T09:30:00.000+0000",
				"updated": "2023-04-02T10:15:00.000+0000"
			}
		}`))
	}))
	defer srv.Close()

	issue, err := newTestClient(srv).FindIssue(context.Background(), "PBL-7")
	if err != nil {
		t.Fatalf("FindIssue: %v", err)
	}

	if issue.Key != "PBL-7" || issue.Summary != "Fix the flux capacitor" {
		t.Errorf("issue = %+v", issue)
	}
	if issue.Type != "Bug" || issue.Priority != "Major" || issue.Status != "Open" {
		t.Errorf("named fields = %q/%q/%q", issue.Type, issue.Priority, issue.Status)
	}
	if issue.Assignee != "jdoe" || issue.AssigneeName != "Jane Doe" {
		t.Errorf("assignee = %q/%q", issue.Assignee, issue.AssigneeName)
	}
	wantCreated := time.Date(2023, 4, 1, 9, 30, 0, 0, time.UTC)
	if !issue.Created.Equal(wantCreated) {
		t.Errorf("created = %v, want %v", issue.Created, wantCreated)
	}
}

func TestFindIssueNullFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"key":"PBL-8","fields":{"summary":"Sparse","issuetype":null,"priority":null,"status":null,"assignee":null}}`))
	}))
	defer srv.Close()

	issue, err := newTestClient(srv).FindIssue(context.Background(), "PBL-8")
	if err != nil {
		t.Fatalf("FindIssue: %v", err)
	}
	if issue.Type != "" || issue.Assignee != "" {
		t.Errorf("null sub-fields should stay empty, got %+v", issue)
	}
	if !issue.Created.IsZero() {
		t.Errorf("created = %v, want zero", issue.Created)
	}
}

func TestFindIssueNotFound(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"errorMessages":["Issue Does Not Exist"]}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).FindIssue(context.Background(), "PBL-404")
	if !errors.Is(err, tracker.ErrNotFound) {
		t.Fatalf("err = %v, want tracker.ErrNotFound", err)
	}
	if calls != 1 {
		t.Errorf("server saw %d calls, want 1 (404 must not retry)", calls)
	}
}

func TestServerErrorRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv).ListProjects(context.Background()); err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if calls != 3 {
		t.Errorf("server saw %d calls, want 3", calls)
	}
}

func TestUpdateIssue(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]map[string]map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := newTestClient(srv).UpdateIssue(context.Background(), "PBL-7", tracker.IssueUpdate{Assignee: "jdoe"})
	if err != nil {
		t.Fatalf("UpdateIssue: %v", err)
	}

	if gotMethod != http.MethodPut || gotPath != "/rest/api/2/issue/PBL-7" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	if got := gotBody["fields"]["assignee"]["name"]; got != "jdoe" {
		t.Errorf("assignee name = %q, want jdoe", got)
	}
}

func TestUpdateIssueForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no permission", http.StatusForbidden)
	}))
	defer srv.Close()

	err := newTestClient(srv).UpdateIssue(context.Background(), "PBL-7", tracker.IssueUpdate{Assignee: "jdoe"})
	if err == nil {
		t.Fatal("expected an error for a 403 response")
	}
	if errors.Is(err, tracker.ErrNotFound) {
		t.Errorf("403 must not map to ErrNotFound, got %v", err)
	}
}
