// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/parley/internal/api"
	"github.com/tomtom215/parley/internal/auth"
	"github.com/tomtom215/parley/internal/authz"
	"github.com/tomtom215/parley/internal/chat"
	"github.com/tomtom215/parley/internal/config"
	"github.com/tomtom215/parley/internal/delivery"
	"github.com/tomtom215/parley/internal/logging"
	"github.com/tomtom215/parley/internal/presence"
	"github.com/tomtom215/parley/internal/store"
	"github.com/tomtom215/parley/internal/supervisor"
	"github.com/tomtom215/parley/internal/supervisor/services"
	ws "github.com/tomtom215/parley/internal/websocket"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("presence_backend", cfg.Presence.Backend).
		Bool("storage_in_memory", cfg.Storage.InMemory).
		Msg("Starting Parley")

	db, err := store.Open(cfg.Storage)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Presence: the embedded server, when enabled, is the shared store.
	var embedded *presence.EmbeddedServer
	opener := presence.NATSOpener(cfg.Presence, cfg.Presence.NATSURL)
	if cfg.Presence.EmbeddedServer {
		embedded, err = presence.StartEmbeddedServer(cfg.Presence.EmbeddedStoreDir)
		if err != nil {
			logging.Error().Err(err).Msg("Failed to start embedded NATS server")
			startErr := err
			opener = func(context.Context) (presence.KVStore, error) { return nil, startErr }
		} else {
			logging.Info().Str("url", embedded.ClientURL()).Msg("Embedded NATS server started")
			opener = presence.NATSOpener(cfg.Presence, embedded.ClientURL())
		}
	}

	selection := presence.Select(ctx, cfg.Presence, opener)
	defer func() {
		if err := selection.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing presence store")
		}
	}()

	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create authorization enforcer")
	}

	hub := ws.NewHub(selection.Directory, ws.OptionsFromConfig(cfg.Realtime))
	notifier := delivery.NewNotifier(selection.Directory, hub, hub.Rooms())

	authService := chat.NewAuthService(db, cfg.Security.BcryptCost)
	messageService := chat.NewMessageService(db, notifier, enforcer, cfg.Limits)
	groupService := chat.NewGroupService(db, enforcer, cfg.Limits)

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create JWT manager")
	}
	sessions := auth.NewMiddleware(jwtManager, db, auth.CookieConfig{
		Name:   cfg.Security.CookieName,
		Secure: cfg.Security.CookieSecure || cfg.IsProduction(),
		TTL:    cfg.Security.TokenTTL,
	})

	gateway := ws.NewHandler(hub, sessions, ws.HandlerConfig{
		CookieName:     cfg.Security.CookieName,
		AllowedOrigins: cfg.AllowedOrigins(),
	})

	handler := api.NewHandler(api.Dependencies{
		Auth:     authService,
		Messages: messageService,
		Groups:   groupService,
		Sessions: sessions,
		Store:    db,
		Presence: selection.Directory,
		Gateway:  hub,
	})
	router := api.NewRouter(handler, sessions, gateway, api.ChiMiddlewareConfigFrom(cfg))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Data layer
	tree.AddDataService(store.NewGCService(db, cfg.Storage.GCInterval))
	if embedded != nil {
		tree.AddDataService(services.NewEmbeddedNATSService(embedded, cfg.Server.ShutdownTimeout))
	}

	// Messaging layer
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	if selection.Shared != nil && cfg.Presence.EntryTTL > 0 {
		tree.AddMessagingService(presence.NewRefresher(selection.Shared, cfg.Presence.EntryTTL))
	}

	// API layer
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().Str("presence_mode", string(selection.Mode)).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for supervisor to finish")
		err = <-errCh
	case err = <-errCh:
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}

	logging.Info().Msg("Parley stopped")
}
