// Package slack implements the Slack chat transport over Socket Mode.
package slack

import (
	"context"
	"fmt"
	"log/slog"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/herald-labs/herald/pkg/chat"
)

// Config holds Slack transport configuration.
type Config struct {
	BotToken string // xoxb-...
	AppToken string // xapp-..., required for Socket Mode
	Debug    bool
}

// Client implements chat.Transport for Slack.
type Client struct {
	api    *slackapi.Client
	socket *socketmode.Client
	selfID string
}

// New creates a Slack transport. The connection is established by Start.
func New(cfg Config) *Client {
	api := slackapi.New(
		cfg.BotToken,
		slackapi.OptionAppLevelToken(cfg.AppToken),
	)
	return &Client{
		api:    api,
		socket: socketmode.New(api, socketmode.OptionDebug(cfg.Debug)),
	}
}

// Name returns the transport identifier.
func (c *Client) Name() string { return "slack" }

// SelfID returns the bot's own user ID. Valid after Start.
func (c *Client) SelfID() string { return c.selfID }

// SelfMention returns the token that addresses the bot in a message.
func (c *Client) SelfMention() string {
	if c.selfID == "" {
		return ""
	}
	return "<@" + c.selfID + ">"
}

// Start authenticates, connects Socket Mode, and delivers message
// events to handler one at a time. Blocks until ctx is cancelled.
func (c *Client) Start(ctx context.Context, handler chat.MessageHandler) error {
	auth, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	c.selfID = auth.UserID
	slog.Info("slack bot authenticated", "user_id", c.selfID, "team", auth.Team)

	go c.handleEvents(ctx, handler)

	return c.socket.RunContext(ctx)
}

// handleEvents drains the Socket Mode event channel. Events are handled
// on this single goroutine, so the dispatcher sees one message at a
// time in delivery order.
func (c *Client) handleEvents(ctx context.Context, handler chat.MessageHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-c.socket.Events:
			if !ok {
				return
			}
			c.handleEvent(ctx, evt, handler)
		}
	}
}

func (c *Client) handleEvent(ctx context.Context, evt socketmode.Event, handler chat.MessageHandler) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		slog.Info("slack socket mode connecting")

	case socketmode.EventTypeConnected:
		slog.Info("slack socket mode connected")

	case socketmode.EventTypeConnectionError:
		slog.Error("slack socket mode connection error")

	case socketmode.EventTypeEventsAPI:
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		c.socket.Ack(*evt.Request)
		c.handleEventsAPI(ctx, apiEvent, handler)
	}
}

func (c *Client) handleEventsAPI(ctx context.Context, event slackevents.EventsAPIEvent, handler chat.MessageHandler) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	ev, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	// Skip message subtypes (edits, deletes, joins); only fresh
	// user messages are dispatched.
	if ev.SubType != "" {
		return
	}

	msg := chat.Message{
		Source:    "slack",
		UserID:    ev.User,
		ChannelID: ev.Channel,
		Text:      ev.Text,
	}
	if err := handler(ctx, msg); err != nil {
		slog.Error("message handler error", "channel", ev.Channel, "error", err)
	}
}

// Post sends content to a channel. Fields are rendered as a native
// Slack attachment; the headline becomes a hyperlink when a link is
// set.
func (c *Client) Post(ctx context.Context, channelID string, content chat.Content) error {
	headline := content.Text
	if content.Link != "" {
		headline = fmt.Sprintf("<%s|%s>", content.Link, content.Text)
	}

	opts := []slackapi.MsgOption{
		slackapi.MsgOptionText(headline, false),
		slackapi.MsgOptionAsUser(true),
	}

	if len(content.Fields) > 0 {
		fields := make([]slackapi.AttachmentField, 0, len(content.Fields))
		for _, f := range content.Fields {
			fields = append(fields, slackapi.AttachmentField{
				Title: f.Title,
				Value: f.Value,
				Short: f.Short,
			})
		}
		opts = append(opts, slackapi.MsgOptionAttachments(slackapi.Attachment{
			Fallback: content.Fallback,
			Fields:   fields,
		}))
	}

	_, _, err := c.api.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return fmt.Errorf("slack post to %s: %w", channelID, err)
	}
	return nil
}

// UserInfo looks up a workspace user.
func (c *Client) UserInfo(ctx context.Context, userID string) (chat.UserInfo, error) {
	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return chat.UserInfo{}, fmt.Errorf("slack user lookup %s: %w", userID, err)
	}

	name := user.Name
	if user.RealName != "" {
		name = user.RealName
	}
	return chat.UserInfo{
		ID:          user.ID,
		DisplayName: name,
		IsBot:       user.IsBot,
	}, nil
}

// Stop gracefully shuts down the transport. Socket Mode stops when the
// Start context is cancelled; nothing else to release.
func (c *Client) Stop() error { return nil }
