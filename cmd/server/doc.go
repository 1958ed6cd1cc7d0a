// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

/*
Package main is the entry point for the Parley server.

Parley is a realtime chat backend: direct and group conversations over a
REST API, with live delivery, typing indicators and presence over a
websocket gateway.

# Application Architecture

The server runs under a Suture v4 supervisor tree:

	RootSupervisor ("parley")
	├── DataSupervisor ("data-layer")
	│   ├── Store GC (badger value log)
	│   └── Embedded NATS watchdog (optional)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket Hub (connection gateway)
	│   └── Presence Refresher (shared mode with entry TTL)
	└── APISupervisor ("api-layer")
	    └── HTTP Server

Component initialization order:

 1. Configuration: Koanf v2 with defaults, config.yaml and environment variables
 2. Logging: zerolog, bridged to slog for the supervisor
 3. Store: badger database for users, messages and groups
 4. Presence: backend selection with a single bounded probe of the shared store
 5. Gateway: websocket hub, group rooms and typing coordinator
 6. Services: auth, messages and groups, delivering through the notifier
 7. HTTP: chi router with CORS, rate limits, metrics and the /ws endpoint

# Presence Backends

PRESENCE_BACKEND selects the directory:

	memory  in-process map, single instance only
	nats    NATS JetStream key-value bucket shared by all instances
	auto    nats when NATS_URL or NATS_EMBEDDED is set, memory otherwise

If the shared store cannot be reached within PRESENCE_PROBE_TIMEOUT the
server logs a warning and runs in degraded single-process mode. The choice
is made once at startup.

# Configuration

Commonly used variables:

	PORT                 HTTP port (default 5001)
	NODE_ENV             development or production
	CLIENT_URL           browser origin allowed for CORS and websockets
	JWT_SECRET           token signing secret, at least 32 characters
	BADGER_PATH          data directory
	NATS_URL             shared presence store
	NATS_EMBEDDED        run an in-process NATS server
	LOG_LEVEL            trace, debug, info, warn or error

# Signal Handling

SIGINT and SIGTERM cancel the root context. The supervisor stops the HTTP
server within SHUTDOWN_TIMEOUT, the hub closes every
connection, and the presence store and database are closed on exit.
*/
package main
