// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

/*
Package websocket is the connection gateway of the realtime channel.

Key Components:

  - Handler: authenticates the credential (cookie, Bearer header or token
    query) and upgrades the request. Bad credentials get 401 before upgrade.
  - Hub: registry of live connections on this process. Its run loop
    serializes connect and disconnect so presence and the online roster
    stay consistent.
  - Client: one connection with read and write pumps. The read pump routes
    joinGroup, leaveGroup, typing, groupTyping and ping events.
  - Rooms: ephemeral group broadcast rooms keyed by connection handle.

Frames are JSON envelopes in both directions:

	{"type": "typing", "data": {"receiverId": "u2", "isTyping": true}}
	{"type": "userTyping", "data": {"userId": "u1", "isTyping": true}}

Delivery is at most once per connection. A client whose send buffer is full
is disconnected rather than allowed to stall the hub.

Usage:

	sel := presence.Select(ctx, cfg.Presence, opener)
	hub := websocket.NewHub(sel.Directory, websocket.OptionsFromConfig(cfg.Realtime))
	go hub.RunWithContext(ctx)

	mux.Handle("/ws", websocket.NewHandler(hub, resolver, websocket.HandlerConfig{
	    CookieName:     cfg.Security.CookieName,
	    AllowedOrigins: cfg.AllowedOrigins(),
	}))
*/
package websocket
