// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

/*
Package store persists users, messages and groups in BadgerDB.

Values are JSON documents; indexes are empty-valued keys whose suffix is the
id of the indexed entity:

	user:<id>                       user document
	user_email:<email>              -> user id
	msg:<id>                        message document
	conv:<a>:<b>:<msgID>            direct conversation index, a < b
	gmsg:<groupID>:<msgID>          group conversation index
	group:<id>                      group document
	member:<userID>:<groupID>       groups of a user

Message ids are UUIDv7 strings, so iterating an index in key order visits
messages in creation order. History pages walk the index in reverse from the
cursor and return the page oldest first.

Read-modify-write operations run in a single badger transaction and are
retried when a concurrent transaction wins the conflict check.
*/
package store
