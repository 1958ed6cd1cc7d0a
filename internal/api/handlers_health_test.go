// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tomtom215/parley/internal/models"
	"github.com/tomtom215/parley/internal/presence"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeGateway int

func (g fakeGateway) GetClientCount() int { return int(g) }

func TestHealth_ReportsPresenceMode(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, env := ts.do(t, http.MethodGet, "/api/health", nil, nil)
	expect(t, rec, http.StatusOK)
	health := decode[models.HealthStatus](t, env)
	if health.Status != "healthy" || !health.StoreConnected || health.PresenceMode != string(presence.ModeMemory) {
		t.Errorf("health = %+v", health)
	}

	rec, env = ts.do(t, http.MethodGet, "/api/health/ready", nil, nil)
	expect(t, rec, http.StatusOK)
	if got := decode[map[string]interface{}](t, env)["presenceMode"]; got != "memory" {
		t.Errorf("ready presenceMode = %v", got)
	}

	rec, _ = ts.do(t, http.MethodGet, "/api/health/live", nil, nil)
	expect(t, rec, http.StatusOK)
}

func TestHealth_StoreDown(t *testing.T) {
	dir := presence.NewMemoryDirectory(presence.ModeDegraded)
	dir.AddOnline(context.Background(), "u1", presence.Handle{ID: "h1", UserID: "u1"})
	h := NewHandler(Dependencies{
		Store:    fakePinger{err: errors.New("closed")},
		Presence: dir,
		Gateway:  fakeGateway(3),
	})

	rec := httptest.NewRecorder()
	h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))
	expect(t, rec, http.StatusServiceUnavailable)

	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	expect(t, rec, http.StatusOK)
	var env envelope
	if err := decodeBody(rec, &env); err != nil {
		t.Fatal(err)
	}
	health := decode[models.HealthStatus](t, env)
	want := models.HealthStatus{Status: "degraded", Version: Version, PresenceMode: "degraded", Connections: 3, OnlineUsers: 1}
	health.Uptime = 0
	if health != want {
		t.Errorf("health = %+v, want %+v", health, want)
	}
}
