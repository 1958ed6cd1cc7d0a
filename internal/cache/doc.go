// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

/*
Package cache provides a thread-safe LRU cache with TTL expiry.

The store keeps recently read user records here so the authentication
middleware and websocket handshake do not hit badger on every request.

# Usage Example

	users := cache.NewLRU[models.User](10000, time.Minute)
	users.Add(u.ID, *u)
	if u, ok := users.Get(id); ok {
	    // cached copy
	}

Upsert replaces an entry only when the caller's predicate accepts the new
value, which lets writers keep the newest version under concurrent reads.

# Thread Safety

All methods are safe for concurrent use. Get moves an entry to the front of
the recency list, so it takes the write lock.
*/
package cache
