// Package throttle gates duplicate ticket notifications. Each
// (channel, ticket) pair may produce at most one notification per
// cool-down window.
package throttle

import (
	"context"
	"log/slog"
	"time"

	"github.com/herald-labs/herald/pkg/store"
)

// DefaultCoolDown is the minimum gap between notifications for the
// same (channel, ticket) pair.
const DefaultCoolDown = 30 * time.Minute

const keyPrefix = "notified:"

// Gate decides whether a ticket reference should produce a fresh
// notification. Timestamps live in the injected store, keyed strictly
// by the (channel, ticket) pair.
type Gate struct {
	store    store.Store
	coolDown time.Duration
}

// NewGate creates a gate over st. A non-positive coolDown uses
// DefaultCoolDown.
func NewGate(st store.Store, coolDown time.Duration) *Gate {
	if coolDown <= 0 {
		coolDown = DefaultCoolDown
	}
	return &Gate{store: st, coolDown: coolDown}
}

// CoolDown returns the configured cool-down window.
func (g *Gate) CoolDown() time.Duration {
	return g.coolDown
}

// ShouldNotify reports whether a notification for (channelID, ticketID)
// may be emitted at now: true when no timestamp is recorded or the
// recorded one is at least a cool-down old. Pure decision, no side
// effect. A store failure fails closed: the pair is treated as already
// notified.
func (g *Gate) ShouldNotify(ctx context.Context, channelID, ticketID string, now time.Time) bool {
	val, err := g.store.Get(ctx, key(channelID, ticketID))
	if err != nil {
		slog.Warn("throttle read failed, suppressing notification",
			"channel", channelID, "ticket", ticketID, "error", err)
		return false
	}
	if val == "" {
		return true
	}

	recorded, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		slog.Warn("throttle entry unparseable, suppressing notification",
			"channel", channelID, "ticket", ticketID, "value", val)
		return false
	}
	return now.Sub(recorded) >= g.coolDown
}

// MarkNotified records now as the last-notified instant for the pair,
// overwriting any previous entry. Callers invoke it only after a
// notification was actually posted, so a failed lookup never suppresses
// a later retry.
func (g *Gate) MarkNotified(ctx context.Context, channelID, ticketID string, now time.Time) error {
	return g.store.Set(ctx, key(channelID, ticketID), now.Format(time.RFC3339Nano))
}

func key(channelID, ticketID string) string {
	return keyPrefix + channelID + ":" + ticketID
}
