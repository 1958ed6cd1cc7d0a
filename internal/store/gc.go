// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package store

import (
	"context"
	"time"

	"github.com/tomtom215/parley/internal/logging"
)

// GCService periodically reclaims value log space. It implements
// suture.Service.
type GCService struct {
	store    *Store
	interval time.Duration
}

// NewGCService creates a GC service running every interval.
func NewGCService(store *Store, interval time.Duration) *GCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &GCService{store: store, interval: interval}
}

// Serve runs the GC loop until ctx is canceled.
func (g *GCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", g.interval).Msg("Store GC started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Store GC stopped")
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := g.store.RunGC(); err != nil {
				logging.Error().Err(err).Msg("Store GC failed")
				continue
			}
			logging.Debug().Dur("duration", time.Since(start)).Msg("Store GC pass complete")
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (g *GCService) String() string {
	return "store-gc"
}
