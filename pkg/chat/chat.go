// Package chat defines the interface for chat transports.
// Transports are how Herald talks to a workspace: Slack, Matrix, or a
// test fake. The bot core never touches a concrete chat API.
package chat

import "context"

// Message represents an incoming message event from any transport.
type Message struct {
	// Source identifies the transport (e.g., "slack", "matrix")
	Source string

	// UserID is the transport-specific author identifier
	UserID string

	// ChannelID is the transport-specific channel/room identifier
	ChannelID string

	// Text is the raw message text
	Text string

	// Timestamp is the message timestamp in milliseconds
	Timestamp int64
}

// Field is one titled value in a rich notification. Short fields may be
// laid out side by side where the transport supports it.
type Field struct {
	Title string
	Value string
	Short bool
}

// Content is an outgoing message. Markup is the transport's business:
// the core supplies plain text, an optional link target for the headline,
// and structured fields; each transport renders them natively.
type Content struct {
	// Text is the headline line
	Text string

	// Link, when set, is the URL the headline should point at
	Link string

	// Fields are structured attachment fields
	Fields []Field

	// Fallback is the plain-text rendering for clients that cannot
	// display rich content
	Fallback string
}

// UserInfo describes a workspace user.
type UserInfo struct {
	ID          string
	DisplayName string
	IsBot       bool
}

// Transport is the interface a chat backend implements.
type Transport interface {
	// Name returns the transport identifier (e.g., "slack").
	Name() string

	// Start connects and begins listening. Blocks until ctx is cancelled.
	// Events are delivered to the handler one at a time, in order.
	Start(ctx context.Context, handler MessageHandler) error

	// Post sends content to a channel.
	Post(ctx context.Context, channelID string, content Content) error

	// UserInfo looks up a workspace user.
	UserInfo(ctx context.Context, userID string) (UserInfo, error)

	// SelfID returns the bot's own user ID. Valid after Start has
	// authenticated.
	SelfID() string

	// SelfMention returns the token that addresses the bot at the start
	// of a message (e.g., "<@U012345>" on Slack).
	SelfMention() string

	// Stop gracefully shuts down the transport.
	Stop() error
}

// MessageHandler is called for each message event received.
type MessageHandler func(ctx context.Context, msg Message) error
