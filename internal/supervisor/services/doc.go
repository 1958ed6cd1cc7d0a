// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

/*
Package services adapts Parley components to suture.Service.

  - HTTPServerService: ListenAndServe plus graceful Shutdown
  - WebSocketHubService: the gateway hub run loop
  - EmbeddedNATSService: health watch and shutdown of the in-process NATS server

Services with their own Serve method (store.GCService, presence.Refresher)
are added to the tree directly.
*/
package services
