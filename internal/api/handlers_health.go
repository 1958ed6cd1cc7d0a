// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/parley/internal/models"
	"github.com/tomtom215/parley/internal/presence"
)

// Health reports store connectivity, the presence backend mode and gateway
// load. Degraded presence still reports healthy: the process serves its own
// connections correctly.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	storeConnected := h.store != nil && h.store.Ping(r.Context()) == nil

	status := "healthy"
	if !storeConnected {
		status = "degraded"
	}

	health := models.HealthStatus{
		Status:         status,
		Version:        Version,
		StoreConnected: storeConnected,
		Uptime:         time.Since(h.startTime).Seconds(),
	}
	if h.presence != nil {
		health.PresenceMode = string(h.presence.Mode())
		health.OnlineUsers = len(h.presence.ListOnline(r.Context()))
	}
	if h.gateway != nil {
		health.Connections = h.gateway.GetClientCount()
	}

	respondSuccess(w, r, http.StatusOK, health)
}

// HealthLive returns 200 while the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady returns 200 when the store answers and 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, r, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Store not initialized", nil)
		return
	}
	if err := h.store.Ping(r.Context()); err != nil {
		respondError(w, r, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Store not available", err)
		return
	}

	mode := presence.ModeMemory
	if h.presence != nil {
		mode = h.presence.Mode()
	}
	respondSuccess(w, r, http.StatusOK, map[string]interface{}{
		"ready":        true,
		"presenceMode": string(mode),
	})
}
