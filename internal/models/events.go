// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package models

import "time"

// Reaction actions carried by MessageReactionEvent.
const (
	ReactionAdd    = "add"
	ReactionRemove = "remove"
)

// MessageEditedEvent is the payload of messageEdited.
type MessageEditedEvent struct {
	MessageID string    `json:"messageId"`
	Text      string    `json:"text"`
	EditedAt  time.Time `json:"editedAt"`
}

// MessageDeletedEvent is the payload of messageDeleted.
type MessageDeletedEvent struct {
	MessageID string    `json:"messageId"`
	DeletedAt time.Time `json:"deletedAt"`
}

// MessageReactionEvent is the payload of messageReaction.
type MessageReactionEvent struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	Emoji     string `json:"emoji"`
	Action    string `json:"action"`
}

// MessagesReadEvent is the payload of messagesRead.
type MessagesReadEvent struct {
	ReadBy string    `json:"readBy"`
	ReadAt time.Time `json:"readAt"`
}
