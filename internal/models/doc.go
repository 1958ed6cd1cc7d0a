// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

/*
Package models defines the data structures shared by the store, the chat
services, the HTTP API and the realtime channel.

Key Components:

  - User, Message, Group: persisted entities (JSON values in badger)
  - MessagePage, SidebarEntry: read models returned by the API
  - MessageEditedEvent, MessageDeletedEvent, MessageReactionEvent,
    MessagesReadEvent: realtime payloads
  - APIResponse, APIError, Metadata: HTTP response envelope

Entity and event fields use camelCase JSON names because browser clients
consume both over the same code paths.
*/
package models
