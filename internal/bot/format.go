package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/herald-labs/herald/pkg/chat"
	"github.com/herald-labs/herald/pkg/tracker"
)

// Placeholders for missing issue sub-fields. Field values are never
// empty: a reader should see "Unknown", not a blank cell.
const (
	valueUnknown = "Unknown"
	valueNone    = "None"
)

// notification builds the outgoing summary for an issue. The content is
// transport-neutral; each transport renders the link and fields in its
// own markup.
func (b *Bot) notification(ctx context.Context, issue *tracker.Issue) chat.Content {
	return chat.Content{
		Text: fmt.Sprintf("%s: %s", issue.Key, issue.Summary),
		Link: b.ticketLink(issue.Key),
		Fields: []chat.Field{
			{Title: "Type", Value: orUnknown(issue.Type), Short: true},
			{Title: "Priority", Value: orUnknown(issue.Priority), Short: true},
			{Title: "Status", Value: orUnknown(issue.Status), Short: true},
			{Title: "Assignee", Value: b.assigneeDisplay(ctx, issue), Short: true},
			{Title: "Created", Value: formatDate(issue.Created), Short: true},
			{Title: "Updated", Value: formatDate(issue.Updated), Short: true},
		},
		Fallback: fmt.Sprintf("%s: %s", issue.Key, issue.Summary),
	}
}

// ticketLink returns the browse URL for a ticket, or "" when no URL
// root is configured.
func (b *Bot) ticketLink(key string) string {
	if b.urlRoot == "" {
		return ""
	}
	return b.urlRoot + key
}

// assigneeDisplay renders the assignee field. Unassigned issues show
// "None"; when the assignee's tracker username is bound to a chat user,
// the chat handle is appended so teammates know who to ping.
func (b *Bot) assigneeDisplay(ctx context.Context, issue *tracker.Issue) string {
	if issue.Assignee == "" && issue.AssigneeName == "" {
		return valueNone
	}

	display := issue.AssigneeName
	if display == "" {
		display = issue.Assignee
	}

	if issue.Assignee != "" {
		chatUser, err := b.mentions.ChatUserFor(ctx, issue.Assignee)
		if err == nil && chatUser != "" {
			if user, err := b.chat.UserInfo(ctx, chatUser); err == nil && user.DisplayName != "" {
				return fmt.Sprintf("%s (@%s)", display, user.DisplayName)
			}
		}
	}
	return display
}

func orUnknown(s string) string {
	if s == "" {
		return valueUnknown
	}
	return s
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return valueUnknown
	}
	return t.Format("2006-01-02 15:04")
}
