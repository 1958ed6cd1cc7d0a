// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

/*
Package supervisor runs Parley's long-lived services under suture v4.

	RootSupervisor ("parley")
	├── DataSupervisor ("data-layer")
	│   ├── store.GCService
	│   └── services.EmbeddedNATSService (presence.embedded_server)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── services.WebSocketHubService
	│   └── presence.Refresher (shared presence with entry_ttl > 0)
	└── APISupervisor ("api-layer")
	    └── services.HTTPServerService

A crashed service is restarted with suture's backoff. Canceling the Serve
context stops every layer; services that miss ShutdownTimeout show up in
UnstoppedServiceReport.

Supervisor events go to zerolog through sutureslog and logging.NewSlogLogger:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(store.NewGCService(db, cfg.Storage.GCInterval))
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	err = tree.Serve(ctx)
*/
package supervisor
