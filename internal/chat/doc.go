// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

/*
Package chat holds the business logic of accounts, direct and group messages,
and groups.

Every write commits to the store first and then hands the change to a
Notifier, which pushes it to whoever is connected:

	newMessage       receiver of a direct message
	newGroupMessage  group room, without the sender
	messageEdited    other side of the conversation, or the group room
	messageDeleted   same as messageEdited
	messageReaction  same as messageEdited
	messagesRead     sender of the messages that were read

Caller mistakes are returned as *Error with a Kind the HTTP layer maps to a
status code. Any other error is internal.
*/
package chat
