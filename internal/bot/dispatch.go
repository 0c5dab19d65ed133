package bot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/herald-labs/herald/pkg/chat"
)

// commandHandler is one step in the pipeline. handle reports whether it
// claimed the message; a claim stops further evaluation.
type commandHandler struct {
	name   string
	handle func(ctx context.Context, msg chat.Message) (bool, error)
}

// HandleInboundMessage is the dispatcher entry point for one message
// event. It filters inapplicable messages, then tries command handlers
// in priority order, stopping at the first claim. The returned error is
// for the caller to log; it never aborts the session.
func (b *Bot) HandleInboundMessage(ctx context.Context, msg chat.Message) error {
	if !b.applicable(ctx, msg) {
		return nil
	}

	for _, h := range b.pipeline {
		claimed, err := h.handle(ctx, msg)
		if err != nil {
			slog.Warn("command handler failed",
				"handler", h.name,
				"channel", msg.ChannelID,
				"error", err,
			)
		}
		if claimed {
			slog.Debug("message claimed", "handler", h.name, "channel", msg.ChannelID)
			return err
		}
	}
	return nil
}

// applicable runs the filter stage: self-authored, bot-authored,
// ignored-channel, and empty messages are dropped with no side effects.
func (b *Bot) applicable(ctx context.Context, msg chat.Message) bool {
	if msg.UserID == b.chat.SelfID() {
		return false
	}
	if _, skip := b.ignored[msg.ChannelID]; skip {
		return false
	}
	user, err := b.chat.UserInfo(ctx, msg.UserID)
	if err != nil {
		slog.Warn("user lookup failed, skipping message",
			"user", msg.UserID, "error", err)
		return false
	}
	if user.IsBot {
		return false
	}
	return msg.Text != ""
}

// directedAtMe reports whether the message opens by addressing the bot.
func (b *Bot) directedAtMe(msg chat.Message) bool {
	mention := b.chat.SelfMention()
	return mention != "" && strings.HasPrefix(strings.TrimSpace(msg.Text), mention)
}
