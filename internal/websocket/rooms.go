// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package websocket

import (
	"sort"
	"sync"

	"github.com/tomtom215/parley/internal/logging"
)

// sendFunc delivers msg to the connection with the given handle id and
// reports whether it was accepted.
type sendFunc func(handleID string, msg Message) bool

// Rooms tracks which connections subscribed to which group broadcast rooms.
// It keeps a forward index (group -> handle ids) for fan-out and a reverse
// index (handle id -> groups) so LeaveAll does not scan every room.
//
// Room subscription is a transport concern only: callers check persisted
// group membership before the data reaches a room.
type Rooms struct {
	mu      sync.RWMutex
	groups  map[string]map[string]struct{}
	handles map[string]map[string]struct{}
	send    sendFunc
}

// NewRooms creates an empty room manager delivering through send.
func NewRooms(send sendFunc) *Rooms {
	return &Rooms{
		groups:  make(map[string]map[string]struct{}),
		handles: make(map[string]map[string]struct{}),
		send:    send,
	}
}

// Join subscribes handleID to groupID. Joining twice is a no-op.
func (r *Rooms) Join(handleID, groupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.groups[groupID]
	if !ok {
		members = make(map[string]struct{})
		r.groups[groupID] = members
	}
	members[handleID] = struct{}{}

	joined, ok := r.handles[handleID]
	if !ok {
		joined = make(map[string]struct{})
		r.handles[handleID] = joined
	}
	joined[groupID] = struct{}{}
}

// Leave unsubscribes handleID from groupID. It is idempotent.
func (r *Rooms) Leave(handleID, groupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(handleID, groupID)
}

// LeaveAll unsubscribes handleID from every room and returns how many it left.
func (r *Rooms) LeaveAll(handleID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined := r.handles[handleID]
	n := len(joined)
	for groupID := range joined {
		r.leaveLocked(handleID, groupID)
	}
	return n
}

func (r *Rooms) leaveLocked(handleID, groupID string) {
	if members, ok := r.groups[groupID]; ok {
		delete(members, handleID)
		if len(members) == 0 {
			delete(r.groups, groupID)
		}
	}
	if joined, ok := r.handles[handleID]; ok {
		delete(joined, groupID)
		if len(joined) == 0 {
			delete(r.handles, handleID)
		}
	}
}

// Members returns the handle ids subscribed to groupID in sorted order.
func (r *Rooms) Members(groupID string) []string {
	r.mu.RLock()
	members := r.groups[groupID]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// GroupsOf returns the rooms handleID has joined in sorted order.
func (r *Rooms) GroupsOf(handleID string) []string {
	r.mu.RLock()
	joined := r.handles[handleID]
	groups := make([]string, 0, len(joined))
	for g := range joined {
		groups = append(groups, g)
	}
	r.mu.RUnlock()

	sort.Strings(groups)
	return groups
}

// Broadcast delivers event to every subscriber of groupID except the
// connection whose handle id equals exclude (empty excludes nobody). It
// returns the number of connections that accepted the event.
func (r *Rooms) Broadcast(groupID, event string, payload any, exclude string) int {
	msg := Message{Type: event, Data: payload}

	delivered := 0
	for _, id := range r.Members(groupID) {
		if id == exclude {
			continue
		}
		if r.send(id, msg) {
			delivered++
		}
	}

	if delivered == 0 {
		logging.Debug().Str("group", groupID).Str("event", event).Msg("Room broadcast reached no connections")
	}
	return delivered
}
