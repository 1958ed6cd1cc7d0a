// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

// Package delivery is the single point business logic uses to nudge
// connected recipients after a write has committed.
//
// Delivery is best effort and at most once. An offline recipient is not an
// error, and a failed push never rolls back or retries the write that
// triggered it.
package delivery

import (
	"context"

	"github.com/tomtom215/parley/internal/logging"
	"github.com/tomtom215/parley/internal/metrics"
	"github.com/tomtom215/parley/internal/presence"
)

// Pusher delivers an event to one live connection.
type Pusher interface {
	Push(h presence.Handle, event string, payload any) bool
}

// RoomBroadcaster fans an event out to a group room, skipping the
// connection whose handle id equals exclude.
type RoomBroadcaster interface {
	Broadcast(groupID, event string, payload any, exclude string) int
}

// Notifier resolves users and groups to live connections.
type Notifier struct {
	dir   presence.Directory
	push  Pusher
	rooms RoomBroadcaster
}

// NewNotifier creates a Notifier.
func NewNotifier(dir presence.Directory, push Pusher, rooms RoomBroadcaster) *Notifier {
	return &Notifier{dir: dir, push: push, rooms: rooms}
}

// NotifyUser pushes event to the user's current connection. The result is
// for logging only; false means the user was offline or unreachable.
func (n *Notifier) NotifyUser(ctx context.Context, userID, event string, payload any) bool {
	h, ok := n.dir.Lookup(ctx, userID)
	if !ok {
		logging.Ctx(ctx).Debug().Str("user_id", userID).Str("event", event).Msg("Recipient offline, not delivered")
		metrics.RecordDelivery(event, false)
		return false
	}

	delivered := n.push.Push(h, event, payload)
	if !delivered {
		logging.Ctx(ctx).Debug().Str("user_id", userID).Str("event", event).Str("instance", h.Instance).
			Msg("Recipient connection not reachable from this process")
	}
	metrics.RecordDelivery(event, delivered)
	return delivered
}

// NotifyGroup broadcasts event to the group's room. When excludeUserID is
// set and that user is online, their current connection is skipped. It
// returns the number of connections reached.
func (n *Notifier) NotifyGroup(ctx context.Context, groupID, event string, payload any, excludeUserID string) int {
	var exclude string
	if excludeUserID != "" {
		if h, ok := n.dir.Lookup(ctx, excludeUserID); ok {
			exclude = h.ID
		}
	}

	reached := n.rooms.Broadcast(groupID, event, payload, exclude)
	metrics.RecordDelivery(event, reached > 0)
	logging.Ctx(ctx).Debug().Str("group_id", groupID).Str("event", event).Int("reached", reached).Msg("Group notification sent")
	return reached
}
