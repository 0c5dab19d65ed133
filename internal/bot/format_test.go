package bot

import (
	"context"
	"testing"
	"time"

	"github.com/herald-labs/herald/pkg/chat"
	"github.com/herald-labs/herald/pkg/tracker"
)

func fieldValue(t *testing.T, fields []chat.Field, title string) string {
	t.Helper()
	for _, f := range fields {
		if f.Title == title {
			return f.Value
		}
	}
	t.Fatalf("no field titled %q", title)
	return ""
}

func TestNotificationPlaceholders(t *testing.T) {
	b, _, _ := newTestBot(t)

	issue := &tracker.Issue{Key: "ABC-1", Summary: "Sparse issue"}
	content := b.notification(context.Background(), issue)

	if content.Text != "ABC-1: Sparse issue" {
		t.Errorf("headline = %q", content.Text)
	}
	for _, title := range []string{"Type", "Priority", "Status", "Created", "Updated"} {
		if got := fieldValue(t, content.Fields, title); got != "Unknown" {
			t.Errorf("%s = %q, want Unknown", title, got)
		}
	}
	if got := fieldValue(t, content.Fields, "Assignee"); got != "None" {
		t.Errorf("Assignee = %q, want None", got)
	}
}

func TestNotificationPopulatedFields(t *testing.T) {
	b, _, _ := newTestBot(t)

	issue := &tracker.Issue{
		Key:          "ABC-2",
		Summary:      "Full issue",
		Type:         "Task",
		Priority:     "Minor",
		Status:       "In Progress",
		Assignee:     "jdoe",
		AssigneeName: "Jane Doe",
		Created:      time.Date(2023, 4, 1, 9, 30, 0, 0, time.UTC),
		Updated:      time.Date(2023, 4, 2, 10, 15, 0, 0, time.UTC),
	}
	content := b.notification(context.Background(), issue)

	if got := fieldValue(t, content.Fields, "Status"); got != "In Progress" {
		t.Errorf("Status = %q", got)
	}
	if got := fieldValue(t, content.Fields, "Assignee"); got != "Jane Doe" {
		t.Errorf("Assignee = %q, want Jane Doe (no binding)", got)
	}
	if got := fieldValue(t, content.Fields, "Created"); got != "2023-04-01 09:30" {
		t.Errorf("Created = %q", got)
	}
	if got := fieldValue(t, content.Fields, "Updated"); got != "2023-04-02 10:15" {
		t.Errorf("Updated = %q", got)
	}
	if content.Link != "https://jira.example.com/browse/ABC-2" {
		t.Errorf("Link = %q", content.Link)
	}
}

func TestAssigneeAugmentedWithChatHandle(t *testing.T) {
	b, _, _ := newTestBot(t)
	ctx := context.Background()

	if err := b.mentions.BindIdentity(ctx, "U1", "jdoe"); err != nil {
		t.Fatalf("BindIdentity: %v", err)
	}

	issue := &tracker.Issue{
		Key: "ABC-3", Summary: "Bound assignee",
		Assignee: "jdoe", AssigneeName: "Jane Doe",
	}
	content := b.notification(ctx, issue)

	if got := fieldValue(t, content.Fields, "Assignee"); got != "Jane Doe (@Jane Doe)" {
		t.Errorf("Assignee = %q, want augmented with chat handle", got)
	}
}

func TestTicketLinkWithoutURLRoot(t *testing.T) {
	b, _, _ := newTestBot(t)
	b.urlRoot = ""

	issue := &tracker.Issue{Key: "ABC-4", Summary: "No link"}
	content := b.notification(context.Background(), issue)

	if content.Link != "" {
		t.Errorf("Link = %q, want empty when no URL root is configured", content.Link)
	}
}
