// Package tracker defines the interface for issue-tracker clients.
package tracker

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by FindIssue when the tracker has no issue
// with the requested key.
var ErrNotFound = errors.New("issue not found")

// Project is one project known to the tracker.
type Project struct {
	Key  string // short uppercase prefix, e.g. "PBL"
	Name string
}

// Issue is the flat view of a tracker issue that notifications need.
// Missing sub-fields are empty strings / zero times; rendering decides
// the placeholder.
type Issue struct {
	Key      string
	Summary  string
	Type     string
	Priority string
	Status   string

	// Assignee is the tracker username, AssigneeName the display name.
	// Both empty when unassigned.
	Assignee     string
	AssigneeName string

	Created time.Time
	Updated time.Time
}

// IssueUpdate carries the fields an update may change.
type IssueUpdate struct {
	// Assignee is the tracker username to assign the issue to.
	Assignee string
}

// Client is the interface for an issue-tracker backend.
type Client interface {
	// ListProjects returns all projects visible to the bot's account.
	ListProjects(ctx context.Context) ([]Project, error)

	// FindIssue fetches one issue by key. Returns ErrNotFound when the
	// key does not resolve.
	FindIssue(ctx context.Context, key string) (*Issue, error)

	// UpdateIssue applies an update to one issue.
	UpdateIssue(ctx context.Context, key string, update IssueUpdate) error
}
