// Package mention tracks per-channel "last mentioned ticket" state and
// chat-user → tracker-username identity bindings.
package mention

import (
	"context"
	"fmt"
	"strings"

	"github.com/herald-labs/herald/pkg/store"
)

const (
	lastTicketPrefix = "lastticket:"
	identityPrefix   = "identity:"
)

// Tracker stores last-ticket and identity-binding state in an injected
// store. Absence is a valid state everywhere: reads return "" rather
// than an error when nothing is recorded.
type Tracker struct {
	store store.Store
}

// NewTracker creates a tracker over st.
func NewTracker(st store.Store) *Tracker {
	return &Tracker{store: st}
}

// RecordLastTicket overwrites the most recently notified ticket for a
// channel.
func (t *Tracker) RecordLastTicket(ctx context.Context, channelID, ticketID string) error {
	if err := t.store.Set(ctx, lastTicketPrefix+channelID, ticketID); err != nil {
		return fmt.Errorf("record last ticket for %s: %w", channelID, err)
	}
	return nil
}

// LastTicket returns the most recently notified ticket in a channel,
// or "" when none has been recorded.
func (t *Tracker) LastTicket(ctx context.Context, channelID string) (string, error) {
	return t.store.Get(ctx, lastTicketPrefix+channelID)
}

// BindIdentity associates a chat user with a tracker username.
// Last write wins; there is no history.
func (t *Tracker) BindIdentity(ctx context.Context, chatUserID, trackerUsername string) error {
	if err := t.store.Set(ctx, identityPrefix+chatUserID, trackerUsername); err != nil {
		return fmt.Errorf("bind identity for %s: %w", chatUserID, err)
	}
	return nil
}

// IdentityFor returns the tracker username bound to a chat user, or ""
// when no binding exists.
func (t *Tracker) IdentityFor(ctx context.Context, chatUserID string) (string, error) {
	return t.store.Get(ctx, identityPrefix+chatUserID)
}

// ChatUserFor reverse-looks-up the chat user bound to a tracker
// username, or "" when no binding matches. Scans all bindings; the
// binding set is bounded by workspace membership.
func (t *Tracker) ChatUserFor(ctx context.Context, trackerUsername string) (string, error) {
	bindings, err := t.store.All(ctx, identityPrefix)
	if err != nil {
		return "", fmt.Errorf("scan identity bindings: %w", err)
	}
	for key, username := range bindings {
		if username == trackerUsername {
			return strings.TrimPrefix(key, identityPrefix), nil
		}
	}
	return "", nil
}
