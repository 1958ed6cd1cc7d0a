// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

// Package typing manages debounced "is typing" indicators.
//
// Each (actor, target) pair owns at most one expiry timer. A repeated
// typing=true replaces the timer, typing=false cancels it and emits the
// stopped event immediately, and a disconnecting actor has every timer it
// owns cancelled without emitting anything. Expired timers that lost a race
// with a replacement detect it by identity and do nothing.
package typing

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/parley/internal/logging"
	"github.com/tomtom215/parley/internal/metrics"
	"github.com/tomtom215/parley/internal/presence"
)

// Outbound event names.
const (
	EventUserTyping      = "userTyping"
	EventUserGroupTyping = "userGroupTyping"
)

// DefaultTimeout is the expiry window after the last typing=true.
const DefaultTimeout = 3000 * time.Millisecond

// Kind discriminates direct-message targets from group targets.
type Kind uint8

const (
	KindDirect Kind = iota + 1
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Key identifies one typing state. Ids are compared as whole fields so no
// separator inside an id can collide with another key.
type Key struct {
	Actor  string
	Kind   Kind
	Target string
}

// DirectEvent is the payload of userTyping.
type DirectEvent struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// GroupEvent is the payload of userGroupTyping.
type GroupEvent struct {
	UserID   string `json:"userId"`
	GroupID  string `json:"groupId"`
	IsTyping bool   `json:"isTyping"`
}

// Pusher delivers an event to one live connection. It reports whether the
// connection is attached to this process and accepted the event.
type Pusher interface {
	Push(h presence.Handle, event string, payload any) bool
}

// RoomBroadcaster fans an event out to a group room, skipping the connection
// whose handle id equals exclude. It returns the number of recipients.
type RoomBroadcaster interface {
	Broadcast(groupID, event string, payload any, exclude string) int
}

type entry struct {
	timer    *time.Timer
	deadline time.Time
}

// Coordinator owns every pending typing timer of the process.
type Coordinator struct {
	dir     presence.Directory
	push    Pusher
	rooms   RoomBroadcaster
	timeout time.Duration

	mu      sync.Mutex
	timers  map[Key]*entry
	byActor map[string]map[Key]struct{}
}

// NewCoordinator creates a Coordinator. A non-positive timeout uses DefaultTimeout.
func NewCoordinator(dir presence.Directory, push Pusher, rooms RoomBroadcaster, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Coordinator{
		dir:     dir,
		push:    push,
		rooms:   rooms,
		timeout: timeout,
		timers:  make(map[Key]*entry),
		byActor: make(map[string]map[Key]struct{}),
	}
}

// Timeout returns the expiry window.
func (c *Coordinator) Timeout() time.Duration {
	return c.timeout
}

// SetDirect records that actor started or stopped typing to receiver.
// When receiver is offline a typing=true is dropped; typing=false always
// clears the pending timer.
func (c *Coordinator) SetDirect(ctx context.Context, actor, receiver string, isTyping bool) {
	key := Key{Actor: actor, Kind: KindDirect, Target: receiver}
	recipient, online := c.dir.Lookup(ctx, receiver)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !isTyping {
		c.cancelLocked(key)
		if online {
			c.push.Push(recipient, EventUserTyping, DirectEvent{UserID: actor, IsTyping: false})
		}
		return
	}

	if !online {
		logging.Debug().Str("actor", actor).Str("receiver", receiver).Msg("Typing target offline, dropped")
		return
	}

	c.push.Push(recipient, EventUserTyping, DirectEvent{UserID: actor, IsTyping: true})
	c.armLocked(key, func() {
		c.push.Push(recipient, EventUserTyping, DirectEvent{UserID: actor, IsTyping: false})
	})
}

// SetGroup records that actor started or stopped typing in group. The
// actor's own connection, identified by actorHandle, never receives the event.
func (c *Coordinator) SetGroup(_ context.Context, actor, actorHandle, group string, isTyping bool) {
	key := Key{Actor: actor, Kind: KindGroup, Target: group}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !isTyping {
		c.cancelLocked(key)
		c.rooms.Broadcast(group, EventUserGroupTyping, GroupEvent{UserID: actor, GroupID: group}, actorHandle)
		return
	}

	n := c.rooms.Broadcast(group, EventUserGroupTyping,
		GroupEvent{UserID: actor, GroupID: group, IsTyping: true}, actorHandle)
	if n == 0 {
		logging.Debug().Str("actor", actor).Str("group", group).Msg("Group typing has no recipients, dropped")
		return
	}

	c.armLocked(key, func() {
		c.rooms.Broadcast(group, EventUserGroupTyping, GroupEvent{UserID: actor, GroupID: group}, actorHandle)
	})
}

// PurgeActor cancels every timer owned by actor without emitting stopped
// events and returns how many were cancelled.
func (c *Coordinator) PurgeActor(actor string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.byActor[actor]
	n := len(keys)
	for key := range keys {
		if e, ok := c.timers[key]; ok {
			e.timer.Stop()
			delete(c.timers, key)
		}
	}
	delete(c.byActor, actor)

	if n > 0 {
		metrics.TypingTimersActive.Set(float64(len(c.timers)))
		logging.Debug().Str("actor", actor).Int("count", n).Msg("Cleaned up typing timers")
	}
	return n
}

// Active returns the number of pending timers.
func (c *Coordinator) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Deadline returns when the timer for key expires.
func (c *Coordinator) Deadline(key Key) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.timers[key]
	if !ok {
		return time.Time{}, false
	}
	return e.deadline, true
}

// armLocked replaces the timer for key. onExpire runs with c.mu held, so a
// stopped event cannot overtake a later started event for the same key.
func (c *Coordinator) armLocked(key Key, onExpire func()) {
	c.cancelLocked(key)

	e := &entry{deadline: time.Now().Add(c.timeout)}
	e.timer = time.AfterFunc(c.timeout, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		// Superseded or cancelled after the timer had already fired.
		if cur, ok := c.timers[key]; !ok || cur != e {
			return
		}
		c.removeLocked(key)
		onExpire()
	})

	c.timers[key] = e
	actorKeys, ok := c.byActor[key.Actor]
	if !ok {
		actorKeys = make(map[Key]struct{})
		c.byActor[key.Actor] = actorKeys
	}
	actorKeys[key] = struct{}{}
	metrics.TypingTimersActive.Set(float64(len(c.timers)))
}

func (c *Coordinator) cancelLocked(key Key) {
	e, ok := c.timers[key]
	if !ok {
		return
	}
	e.timer.Stop()
	c.removeLocked(key)
}

func (c *Coordinator) removeLocked(key Key) {
	delete(c.timers, key)
	if actorKeys, ok := c.byActor[key.Actor]; ok {
		delete(actorKeys, key)
		if len(actorKeys) == 0 {
			delete(c.byActor, key.Actor)
		}
	}
	metrics.TypingTimersActive.Set(float64(len(c.timers)))
}
