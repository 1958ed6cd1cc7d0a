// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package presence

import (
	"context"

	"github.com/tomtom215/parley/internal/config"
	"github.com/tomtom215/parley/internal/logging"
	"github.com/tomtom215/parley/internal/metrics"
)

// Opener dials the shared store. It is called at most once, inside the
// bounded probe window.
type Opener func(ctx context.Context) (KVStore, error)

// NATSOpener returns an Opener for the NATS bucket described by cfg at url.
func NATSOpener(cfg config.PresenceConfig, url string) Opener {
	return func(ctx context.Context) (KVStore, error) {
		return OpenNATSKV(ctx, NATSKVConfig{
			URL:            url,
			Bucket:         cfg.Bucket,
			TTL:            cfg.EntryTTL,
			ConnectTimeout: cfg.ProbeTimeout,
		})
	}
}

// Selection is the backend decision made at startup. It does not change for
// the life of the process.
type Selection struct {
	Directory Directory
	Mode      Mode

	// Shared is set only in ModeShared.
	Shared *SharedDirectory
}

// Close releases the shared store connection, if any.
func (s *Selection) Close() error {
	if s.Shared == nil {
		return nil
	}
	return s.Shared.Close()
}

// Select picks the presence backend. When cfg asks for the shared store it
// opens and pings it once within cfg.ProbeTimeout; any failure selects an
// in-process directory in ModeDegraded. There is no retry.
func Select(ctx context.Context, cfg config.PresenceConfig, open Opener) *Selection {
	logger := logging.WithComponent("presence")

	if !cfg.SharedPresence() || open == nil {
		logger.Info().Str("mode", string(ModeMemory)).Msg("Presence directory selected")
		return newLocalSelection(ModeMemory)
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
	defer cancel()

	kv, err := open(probeCtx)
	if err == nil {
		if err = kv.Ping(probeCtx); err != nil {
			_ = kv.Close()
		}
	}
	if err != nil {
		logger.Warn().Err(err).Dur("probe_timeout", cfg.ProbeTimeout).
			Msg("Shared presence store unavailable, running in degraded single-process mode")
		return newLocalSelection(ModeDegraded)
	}

	shared := NewSharedDirectory(kv, cfg.Breaker)
	metrics.SetPresenceMode(string(ModeShared))
	logger.Info().Str("mode", string(ModeShared)).Str("bucket", cfg.Bucket).
		Dur("entry_ttl", cfg.EntryTTL).Msg("Presence directory selected")

	return &Selection{Directory: shared, Mode: ModeShared, Shared: shared}
}

func newLocalSelection(mode Mode) *Selection {
	metrics.SetPresenceMode(string(mode))
	return &Selection{Directory: NewMemoryDirectory(mode), Mode: mode}
}
