package bot

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/herald-labs/herald/pkg/chat"
	"github.com/herald-labs/herald/pkg/tracker"
)

var (
	// "i am jdoe"; tracker usernames are alphanumeric plus dots.
	bindPattern = regexp.MustCompile(`(?i)\bi am (?P<username>[0-9a-z.]+)`)

	// "assign that to me", "assign PBL-12 to <@U123>". Anchored at the
	// end: trailing text after the assignee invalidates the command.
	assignPattern = regexp.MustCompile(`(?i)assign (?P<ticket>that|[A-Z]{2,8}-[0-9]{1,8}) to (?P<assignee>me|<@[0-9A-Z]+>)$`)
)

// assignCommand is the parsed form of an assignment command.
type assignCommand struct {
	ticket    string // literal ticket key; empty when anaphoric
	anaphoric bool   // "that": resolve via the channel's last ticket
	self      bool   // "me": assign to the message author
	assignee  string // mentioned chat user ID; empty when self
}

// parseAssign extracts an assignCommand from text, or reports no match.
func parseAssign(text string) (assignCommand, bool) {
	m := assignPattern.FindStringSubmatch(text)
	if m == nil {
		return assignCommand{}, false
	}

	var cmd assignCommand
	ticket := m[assignPattern.SubexpIndex("ticket")]
	if strings.EqualFold(ticket, "that") {
		cmd.anaphoric = true
	} else {
		cmd.ticket = ticket
	}

	assignee := m[assignPattern.SubexpIndex("assignee")]
	if strings.EqualFold(assignee, "me") {
		cmd.self = true
	} else {
		cmd.assignee = strings.TrimSuffix(strings.TrimPrefix(assignee, "<@"), ">")
	}
	return cmd, true
}

// handleBindIdentity claims "i am <username>" messages directed at the
// bot and records the chat-user → tracker-username binding.
func (b *Bot) handleBindIdentity(ctx context.Context, msg chat.Message) (bool, error) {
	if !b.directedAtMe(msg) {
		return false, nil
	}
	m := bindPattern.FindStringSubmatch(msg.Text)
	if m == nil {
		return false, nil
	}
	username := m[bindPattern.SubexpIndex("username")]

	if err := b.mentions.BindIdentity(ctx, msg.UserID, username); err != nil {
		b.post(ctx, msg.ChannelID, chat.Content{
			Text: "Sorry, I could not save that right now — please try again later.",
		})
		return true, fmt.Errorf("bind identity: %w", err)
	}

	slog.Info("identity bound", "user", msg.UserID, "tracker_username", username)
	b.post(ctx, msg.ChannelID, chat.Content{
		Text: fmt.Sprintf("Got it! I will remember that %s is %s.",
			b.displayName(ctx, msg.UserID), username),
	})
	return true, nil
}

// handleAssignTicket claims "assign (that|TICKET) to (me|@mention)"
// messages directed at the bot. A recognized command always claims,
// even when execution fails; failures are reported in-channel, never
// retried automatically.
func (b *Bot) handleAssignTicket(ctx context.Context, msg chat.Message) (bool, error) {
	if !b.directedAtMe(msg) {
		return false, nil
	}
	cmd, ok := parseAssign(msg.Text)
	if !ok {
		return false, nil
	}

	ticket := cmd.ticket
	if cmd.anaphoric {
		last, err := b.mentions.LastTicket(ctx, msg.ChannelID)
		if err != nil {
			b.post(ctx, msg.ChannelID, chat.Content{
				Text: "Sorry, I could not look up the last ticket mentioned here.",
			})
			return true, fmt.Errorf("resolve last ticket: %w", err)
		}
		if last == "" {
			b.post(ctx, msg.ChannelID, chat.Content{
				Text: "Sorry, I do not know which ticket you mean — none has been mentioned here recently.",
			})
			return true, nil
		}
		ticket = last
	}

	assigneeID := cmd.assignee
	if cmd.self {
		assigneeID = msg.UserID
	}

	username, err := b.mentions.IdentityFor(ctx, assigneeID)
	if err != nil {
		b.post(ctx, msg.ChannelID, chat.Content{
			Text: "Sorry, I could not look up that user's tracker identity.",
		})
		return true, fmt.Errorf("resolve identity binding: %w", err)
	}
	if username == "" {
		b.post(ctx, msg.ChannelID, chat.Content{
			Text: fmt.Sprintf("Sorry, I do not know the tracker username for %s. They can tell me with %s i am <username>.",
				b.displayName(ctx, assigneeID), b.chat.SelfMention()),
		})
		return true, nil
	}

	if err := b.tracker.UpdateIssue(ctx, ticket, tracker.IssueUpdate{Assignee: username}); err != nil {
		b.post(ctx, msg.ChannelID, chat.Content{
			Text: fmt.Sprintf("Sorry, I could not assign %s — the tracker rejected the update.", ticket),
		})
		return true, fmt.Errorf("update issue %s: %w", ticket, err)
	}

	slog.Info("issue assigned", "ticket", ticket, "assignee", username, "channel", msg.ChannelID)
	b.post(ctx, msg.ChannelID, chat.Content{
		Text: fmt.Sprintf("Okay! I have assigned %s to %s.", ticket, b.displayName(ctx, assigneeID)),
	})
	return true, nil
}

// handleTicketInfo is the terminal handler: it extracts the distinct
// ticket references from the text and posts a summary for each one that
// passes the cool-down gate. References are processed strictly
// sequentially, one outstanding tracker call at a time, output in
// mention order. A failed or missing ticket is skipped; the rest of the
// references still go out.
func (b *Bot) handleTicketInfo(ctx context.Context, msg chat.Message) (bool, error) {
	for _, ref := range b.matcher.References(msg.Text) {
		if !b.throttle.ShouldNotify(ctx, msg.ChannelID, ref, b.now()) {
			continue
		}

		issue, err := b.tracker.FindIssue(ctx, ref)
		if err != nil {
			slog.Warn("issue fetch failed, skipping reference",
				"ticket", ref, "channel", msg.ChannelID, "error", err)
			continue
		}
		if issue == nil {
			continue
		}

		if err := b.chat.Post(ctx, msg.ChannelID, b.notification(ctx, issue)); err != nil {
			slog.Warn("notification post failed",
				"ticket", ref, "channel", msg.ChannelID, "error", err)
			continue
		}

		slog.Info("notification posted", "ticket", ref, "channel", msg.ChannelID)
		if err := b.mentions.RecordLastTicket(ctx, msg.ChannelID, ref); err != nil {
			slog.Warn("last-ticket record failed", "ticket", ref, "error", err)
		}
		if err := b.throttle.MarkNotified(ctx, msg.ChannelID, ref, b.now()); err != nil {
			slog.Warn("throttle mark failed", "ticket", ref, "error", err)
		}
	}
	// Terminal handler: claims even when nothing was posted.
	return true, nil
}

// post sends content and logs delivery failures. Used for command
// replies, where a lost message is reported but not retried.
func (b *Bot) post(ctx context.Context, channelID string, content chat.Content) {
	if err := b.chat.Post(ctx, channelID, content); err != nil {
		slog.Warn("reply post failed", "channel", channelID, "error", err)
	}
}

// displayName resolves a chat user's display name, falling back to the
// raw ID when the lookup fails.
func (b *Bot) displayName(ctx context.Context, userID string) string {
	user, err := b.chat.UserInfo(ctx, userID)
	if err != nil || user.DisplayName == "" {
		return userID
	}
	return user.DisplayName
}
