// Package matrix implements the Matrix chat transport using mautrix-go.
package matrix

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/herald-labs/herald/pkg/chat"
)

// Config holds Matrix transport configuration.
type Config struct {
	Homeserver string
	UserID     string // localpart, e.g., "herald"
	Password   string
	ServerName string // e.g., "matrix.example.com"
	DataDir    string
}

// Client implements chat.Transport for Matrix.
type Client struct {
	config    Config
	client    *mautrix.Client
	startTime int64

	// Persistent state
	credFile string
}

// credentials holds saved Matrix login state.
type credentials struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	DeviceID    string `json:"device_id"`
}

// New creates a Matrix transport. The connection is established by Start.
func New(cfg Config) *Client {
	return &Client{
		config:   cfg,
		credFile: filepath.Join(cfg.DataDir, "matrix_credentials.json"),
	}
}

// Name returns the transport identifier.
func (c *Client) Name() string { return "matrix" }

// SelfID returns the bot's full Matrix user ID.
func (c *Client) SelfID() string {
	return fmt.Sprintf("@%s:%s", c.config.UserID, c.config.ServerName)
}

// SelfMention returns the token that addresses the bot in message text.
func (c *Client) SelfMention() string { return c.SelfID() }

// Start connects to Matrix and begins listening for messages.
// Retries login with exponential backoff on failure.
func (c *Client) Start(ctx context.Context, handler chat.MessageHandler) error {
	c.startTime = time.Now().UnixMilli()

	os.MkdirAll(c.config.DataDir, 0o755)

	client, err := mautrix.NewClient(c.config.Homeserver, id.UserID(c.SelfID()), "")
	if err != nil {
		return fmt.Errorf("create matrix client: %w", err)
	}
	c.client = client

	// In-memory sync store; resyncing on restart is fine
	client.Store = mautrix.NewMemorySyncStore()

	if err := c.loginWithRetry(ctx); err != nil {
		return err
	}

	syncer := client.Syncer.(*mautrix.DefaultSyncer)

	syncer.OnEventType(event.EventMessage, func(ctx context.Context, evt *event.Event) {
		c.onMessage(ctx, evt, handler)
	})

	// Auto-join rooms the bot is invited to
	syncer.OnEventType(event.StateMember, func(ctx context.Context, evt *event.Event) {
		c.onMemberEvent(ctx, evt)
	})

	slog.Info("matrix transport ready, starting sync")

	// Sync loop with reconnection
	for {
		err := client.SyncWithContext(ctx)
		if ctx.Err() != nil {
			return nil // graceful shutdown
		}
		if err != nil {
			slog.Warn("matrix sync error, reconnecting in 15s", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(15 * time.Second):
			}
		}
	}
}

// loginWithRetry handles Matrix login with exponential backoff.
// Tries saved credentials first, then password login with retry.
func (c *Client) loginWithRetry(ctx context.Context) error {
	if err := c.loadCredentials(); err == nil {
		slog.Info("loaded saved matrix credentials", "user", c.SelfID())
		return nil
	}

	backoff := 2 * time.Second
	maxBackoff := 2 * time.Minute
	maxAttempts := 10

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		slog.Info("logging into matrix",
			"user", c.SelfID(),
			"homeserver", c.config.Homeserver,
			"attempt", attempt,
		)

		resp, err := c.client.Login(ctx, &mautrix.ReqLogin{
			Type: mautrix.AuthTypePassword,
			Identifier: mautrix.UserIdentifier{
				Type: mautrix.IdentifierTypeUser,
				User: c.config.UserID,
			},
			Password:         c.config.Password,
			StoreCredentials: true,
		})

		if err == nil {
			slog.Info("logged into matrix", "user", resp.UserID, "device", resp.DeviceID)
			c.saveCredentials(credentials{
				AccessToken: resp.AccessToken,
				UserID:      string(resp.UserID),
				DeviceID:    string(resp.DeviceID),
			})
			return nil
		}

		errStr := err.Error()
		if strings.Contains(errStr, "M_FORBIDDEN") ||
			strings.Contains(errStr, "M_UNKNOWN_TOKEN") ||
			strings.Contains(errStr, "M_INVALID_PARAM") {
			return fmt.Errorf("matrix login: %w (non-retryable)", err)
		}

		if attempt == maxAttempts {
			return fmt.Errorf("matrix login: %w (after %d attempts)", err, maxAttempts)
		}

		slog.Warn("matrix login failed, retrying",
			"error", err,
			"attempt", attempt,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	return fmt.Errorf("matrix login: exhausted retries")
}

// Post sends content to a room. Matrix has no attachment fields, so the
// structured fields are rendered as "Title: Value" lines under the
// headline. Long messages are split.
func (c *Client) Post(ctx context.Context, channelID string, content chat.Content) error {
	const maxLen = 4000

	text := renderContent(content)
	roomID := id.RoomID(channelID)

	if len(text) <= maxLen {
		_, err := c.client.SendText(ctx, roomID, text)
		if err != nil {
			slog.Error("matrix send failed", "room", roomID, "len", len(text), "error", err)
			return fmt.Errorf("matrix post to %s: %w", channelID, err)
		}
		return nil
	}

	chunks := splitMessage(text, maxLen)
	for i, chunk := range chunks {
		prefix := fmt.Sprintf("[%d/%d] ", i+1, len(chunks))
		if _, err := c.client.SendText(ctx, roomID, prefix+chunk); err != nil {
			slog.Error("matrix send failed", "room", roomID, "chunk", i+1, "error", err)
			return fmt.Errorf("matrix post to %s: %w", channelID, err)
		}
		if i < len(chunks)-1 {
			time.Sleep(500 * time.Millisecond)
		}
	}
	return nil
}

// renderContent flattens structured content into message text.
func renderContent(content chat.Content) string {
	var sb strings.Builder
	sb.WriteString(content.Text)
	if content.Link != "" {
		sb.WriteString(" — ")
		sb.WriteString(content.Link)
	}
	for _, f := range content.Fields {
		sb.WriteString("\n")
		sb.WriteString(f.Title)
		sb.WriteString(": ")
		sb.WriteString(f.Value)
	}
	return sb.String()
}

// UserInfo looks up a user's display name. Matrix has no is-bot flag,
// so IsBot is always false; the dispatcher's self filter still applies.
func (c *Client) UserInfo(ctx context.Context, userID string) (chat.UserInfo, error) {
	info := chat.UserInfo{ID: userID, DisplayName: localpart(userID)}
	resp, err := c.client.GetDisplayName(ctx, id.UserID(userID))
	if err == nil && resp.DisplayName != "" {
		info.DisplayName = resp.DisplayName
	}
	return info, nil
}

// Stop gracefully shuts down the transport.
func (c *Client) Stop() error {
	if c.client != nil {
		c.client.StopSync()
	}
	return nil
}

// --- Event Handlers ---

func (c *Client) onMessage(ctx context.Context, evt *event.Event, handler chat.MessageHandler) {
	// Skip messages from before we started
	if evt.Timestamp < c.startTime {
		return
	}

	msgContent := evt.Content.AsMessage()
	if msgContent == nil {
		return
	}

	msg := chat.Message{
		Source:    "matrix",
		UserID:    string(evt.Sender),
		ChannelID: string(evt.RoomID),
		Text:      msgContent.Body,
		Timestamp: evt.Timestamp,
	}

	if err := handler(ctx, msg); err != nil {
		slog.Error("message handler error", "room", evt.RoomID, "error", err)
	}
}

func (c *Client) onMemberEvent(ctx context.Context, evt *event.Event) {
	// Only handle invites for us
	if evt.GetStateKey() != c.SelfID() {
		return
	}

	memberContent := evt.Content.AsMember()
	if memberContent == nil || memberContent.Membership != event.MembershipInvite {
		return
	}

	slog.Info("accepting room invite", "room", evt.RoomID, "from", evt.Sender)
	if _, err := c.client.JoinRoomByID(ctx, evt.RoomID); err != nil {
		slog.Error("failed to join room", "room", evt.RoomID, "error", err)
	}
}

// --- Credentials ---

func (c *Client) loadCredentials() error {
	data, err := os.ReadFile(c.credFile)
	if err != nil {
		return err
	}
	var creds credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return err
	}
	c.client.AccessToken = creds.AccessToken
	c.client.UserID = id.UserID(creds.UserID)
	c.client.DeviceID = id.DeviceID(creds.DeviceID)
	return nil
}

func (c *Client) saveCredentials(creds credentials) {
	data, _ := json.MarshalIndent(creds, "", "  ")
	os.WriteFile(c.credFile, data, 0o600)
}

// --- Helpers ---

func localpart(userID string) string {
	s := strings.TrimPrefix(userID, "@")
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i]
	}
	return s
}

func splitMessage(s string, maxLen int) []string {
	var chunks []string
	for len(s) > maxLen {
		chunks = append(chunks, s[:maxLen])
		s = s[maxLen:]
	}
	if len(s) > 0 {
		chunks = append(chunks, s)
	}
	return chunks
}
