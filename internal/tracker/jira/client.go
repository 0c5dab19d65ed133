// Package jira implements the issue-tracker client against the JIRA
// REST API (v2).
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/herald-labs/herald/pkg/tracker"
)

// jiraTimeFormat is the timestamp layout JIRA emits for created/updated.
const jiraTimeFormat = "2006-01-02T15:04:05.000-0700"

// Config holds JIRA connection settings.
type Config struct {
	BaseURL  string // e.g., https://jira.example.com
	Username string
	Password string // password or API token

	// Timeout for a single HTTP attempt (default 30s). Retries are on
	// top of this.
	Timeout time.Duration
}

// Client talks to a JIRA server. Implements tracker.Client.
type Client struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

// NewClient creates a JIRA client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		client:   &http.Client{Timeout: timeout},
	}
}

// --- Wire types ---

type jiraProject struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type jiraIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary   string     `json:"summary"`
		IssueType *namedItem `json:"issuetype"`
		Priority  *namedItem `json:"priority"`
		Status    *namedItem `json:"status"`
		Assignee  *struct {
			Name        string `json:"name"`
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
		Created string `json:"created"`
		Updated string `json:"updated"`
	} `json:"fields"`
}

type namedItem struct {
	Name string `json:"name"`
}

// ListProjects returns all projects visible to the bot's account.
func (c *Client) ListProjects(ctx context.Context) ([]tracker.Project, error) {
	var raw []jiraProject
	if err := c.get(ctx, "/rest/api/2/project", &raw); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	projects := make([]tracker.Project, 0, len(raw))
	for _, p := range raw {
		projects = append(projects, tracker.Project{Key: p.Key, Name: p.Name})
	}
	return projects, nil
}

// FindIssue fetches one issue by key. Returns tracker.ErrNotFound when
// the key does not resolve.
func (c *Client) FindIssue(ctx context.Context, key string) (*tracker.Issue, error) {
	path := fmt.Sprintf("/rest/api/2/issue/%s?fields=summary,issuetype,priority,status,assignee,created,updated", key)

	var raw jiraIssue
	if err := c.get(ctx, path, &raw); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, tracker.ErrNotFound
		}
		return nil, fmt.Errorf("find issue %s: %w", key, err)
	}

	issue := &tracker.Issue{
		Key:     raw.Key,
		Summary: raw.Fields.Summary,
		Created: parseJiraTime(raw.Fields.Created),
		Updated: parseJiraTime(raw.Fields.Updated),
	}
	if raw.Fields.IssueType != nil {
		issue.Type = raw.Fields.IssueType.Name
	}
	if raw.Fields.Priority != nil {
		issue.Priority = raw.Fields.Priority.Name
	}
	if raw.Fields.Status != nil {
		issue.Status = raw.Fields.Status.Name
	}
	if raw.Fields.Assignee != nil {
		issue.Assignee = raw.Fields.Assignee.Name
		issue.AssigneeName = raw.Fields.Assignee.DisplayName
	}
	return issue, nil
}

// UpdateIssue applies an update to one issue.
func (c *Client) UpdateIssue(ctx context.Context, key string, update tracker.IssueUpdate) error {
	body := map[string]any{
		"fields": map[string]any{
			"assignee": map[string]string{"name": update.Assignee},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal issue update: %w", err)
	}

	if err := c.do(ctx, http.MethodPut, "/rest/api/2/issue/"+key, payload, nil); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return tracker.ErrNotFound
		}
		return fmt.Errorf("update issue %s: %w", key, err)
	}
	return nil
}

// --- HTTP plumbing ---

// statusError carries a non-2xx response status.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

func isStatus(err error, status int) bool {
	var se *statusError
	return errors.As(err, &se) && se.Status == status
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// do performs one API call with bounded retries. Client errors other
// than 429 are not retried: the request will not get better.
func (c *Client) do(ctx context.Context, method, path string, payload []byte, out any) error {
	url := c.baseURL + path

	err := retry.Do(
		func() error {
			var body io.Reader = http.NoBody
			if payload != nil {
				body = bytes.NewReader(payload)
			}

			req, err := http.NewRequestWithContext(ctx, method, url, body)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.SetBasicAuth(c.username, c.password)
			req.Header.Set("Accept", "application/json")
			if payload != nil {
				req.Header.Set("Content-Type", "application/json")
			}

			resp, err := c.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				serr := &statusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
				if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					return retry.Unrecoverable(serr)
				}
				return serr
			}

			if out == nil {
				io.Copy(io.Discard, resp.Body)
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode response: %w", err))
			}
			return nil
		},
		retry.Attempts(4),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(10*time.Second),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			slog.Info("retrying jira request", "method", method, "path", path, "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return err
	}
	return nil
}

// parseJiraTime parses a JIRA timestamp, returning the zero time when
// the field is missing or malformed.
func parseJiraTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(jiraTimeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
