// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package websocket

import (
	"errors"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/parley/internal/validation"
)

// Inbound event types (client -> server).
const (
	EventJoinGroup   = "joinGroup"
	EventLeaveGroup  = "leaveGroup"
	EventTyping      = "typing"
	EventGroupTyping = "groupTyping"
	EventPing        = "ping"
)

// Outbound event types (server -> client).
const (
	EventOnlineUsers     = "getOnlineUsers"
	EventNewMessage      = "newMessage"
	EventNewGroupMessage = "newGroupMessage"
	EventMessageEdited   = "messageEdited"
	EventMessageDeleted  = "messageDeleted"
	EventMessageReaction = "messageReaction"
	EventMessagesRead    = "messagesRead"
	EventPong            = "pong"
)

// Message is the envelope of every outbound frame.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// inbound is the envelope of every client frame. Data is decoded per type.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TypingPayload is the data of a typing event.
type TypingPayload struct {
	ReceiverID string `json:"receiverId" validate:"required,max=128"`
	IsTyping   *bool  `json:"isTyping" validate:"required"`
}

// GroupTypingPayload is the data of a groupTyping event.
type GroupTypingPayload struct {
	GroupID  string `json:"groupId" validate:"required,max=128"`
	IsTyping *bool  `json:"isTyping" validate:"required"`
}

// GroupPayload is the data of joinGroup and leaveGroup. Clients may send
// either the bare group id string or an object carrying groupId.
type GroupPayload struct {
	GroupID string `json:"groupId" validate:"required,max=128"`
}

var errEmptyPayload = errors.New("empty payload")

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

func decodeInbound(raw []byte) (inbound, error) {
	var env inbound
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, err
	}
	if env.Type == "" {
		return env, errors.New("missing event type")
	}
	return env, nil
}

func decodeGroupPayload(data json.RawMessage) (GroupPayload, error) {
	var p GroupPayload
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return p, errEmptyPayload
	}
	if strings.HasPrefix(trimmed, `"`) {
		if err := json.Unmarshal(data, &p.GroupID); err != nil {
			return p, err
		}
	} else if err := json.Unmarshal(data, &p); err != nil {
		return p, err
	}
	if verr := validation.ValidateStruct(&p); verr != nil {
		return p, verr
	}
	return p, nil
}

// decodePayload unmarshals data into dst and validates it.
func decodePayload(data json.RawMessage, dst interface{}) error {
	if len(data) == 0 {
		return errEmptyPayload
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return err
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		return verr
	}
	return nil
}
