// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package presence

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/parley/internal/logging"
	"github.com/tomtom215/parley/internal/metrics"
)

// MemoryDirectory is a process-local Directory. It is only correct for
// single-process deployments.
type MemoryDirectory struct {
	mu      sync.RWMutex
	entries map[string]Handle
	mode    Mode
}

// NewMemoryDirectory creates an empty in-process directory. mode is
// ModeMemory when chosen by configuration and ModeDegraded when the shared
// store was unavailable at startup.
func NewMemoryDirectory(mode Mode) *MemoryDirectory {
	if mode != ModeDegraded {
		mode = ModeMemory
	}
	return &MemoryDirectory{
		entries: make(map[string]Handle),
		mode:    mode,
	}
}

// AddOnline implements Directory.
func (d *MemoryDirectory) AddOnline(_ context.Context, userID string, h Handle) {
	if userID == "" {
		return
	}
	d.mu.Lock()
	prev, replaced := d.entries[userID]
	d.entries[userID] = h
	d.mu.Unlock()

	if replaced && prev.ID != h.ID {
		logging.Debug().Str("user_id", userID).Str("previous", prev.ID).Str("handle", h.ID).
			Msg("Presence entry replaced by newer connection")
	}
	metrics.RecordPresenceOp(string(d.mode), "add", false)
}

// RemoveOnline implements Directory.
func (d *MemoryDirectory) RemoveOnline(_ context.Context, userID string) {
	d.mu.Lock()
	delete(d.entries, userID)
	d.mu.Unlock()
	metrics.RecordPresenceOp(string(d.mode), "remove", false)
}

// RemoveIfCurrent implements Directory.
func (d *MemoryDirectory) RemoveIfCurrent(_ context.Context, userID string, h Handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur, ok := d.entries[userID]
	if !ok || cur.ID != h.ID {
		return false
	}
	delete(d.entries, userID)
	return true
}

// Lookup implements Directory.
func (d *MemoryDirectory) Lookup(_ context.Context, userID string) (Handle, bool) {
	d.mu.RLock()
	h, ok := d.entries[userID]
	d.mu.RUnlock()
	return h, ok
}

// ListOnline implements Directory.
func (d *MemoryDirectory) ListOnline(_ context.Context) []string {
	d.mu.RLock()
	users := make([]string, 0, len(d.entries))
	for userID := range d.entries {
		users = append(users, userID)
	}
	d.mu.RUnlock()

	sort.Strings(users)
	return users
}

// Mode implements Directory.
func (d *MemoryDirectory) Mode() Mode {
	return d.mode
}
