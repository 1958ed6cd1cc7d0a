// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package presence

import (
	"context"
	"time"

	"github.com/tomtom215/parley/internal/logging"
)

// Refresher periodically rewrites the entries a SharedDirectory owns so
// they outlive the bucket TTL while entries of crashed processes expire.
type Refresher struct {
	dir      *SharedDirectory
	interval time.Duration
}

// NewRefresher refreshes dir every ttl/3.
func NewRefresher(dir *SharedDirectory, ttl time.Duration) *Refresher {
	interval := ttl / 3
	if interval < time.Second {
		interval = time.Second
	}
	return &Refresher{dir: dir, interval: interval}
}

// Interval returns the refresh period.
func (r *Refresher) Interval() time.Duration {
	return r.interval
}

// Serve implements suture.Service.
func (r *Refresher) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.dir.Refresh(ctx); err != nil {
				logging.Debug().Err(err).Int("owned", r.dir.LocalCount()).Msg("Presence refresh incomplete")
			}
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (r *Refresher) String() string {
	return "presence-refresher"
}
