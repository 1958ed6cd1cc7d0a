// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/parley/internal/auth"
	"github.com/tomtom215/parley/internal/authz"
	"github.com/tomtom215/parley/internal/chat"
	"github.com/tomtom215/parley/internal/config"
	"github.com/tomtom215/parley/internal/logging"
	"github.com/tomtom215/parley/internal/models"
	"github.com/tomtom215/parley/internal/presence"
	"github.com/tomtom215/parley/internal/store"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

const testSecret = "test-secret-that-is-at-least-32-characters"

type sent struct {
	target string
	event  string
}

// notes records deliveries requested by the services.
type notes struct {
	mu  sync.Mutex
	got []sent
}

func (n *notes) NotifyUser(_ context.Context, userID, event string, _ any) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, sent{target: userID, event: event})
	return true
}

func (n *notes) NotifyGroup(_ context.Context, groupID, event string, _ any, _ string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, sent{target: groupID, event: event})
	return 1
}

func (n *notes) has(target, event string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range n.got {
		if s.target == target && s.event == event {
			return true
		}
	}
	return false
}

type testServer struct {
	handler http.Handler
	store   *store.Store
	notes   *notes
}

type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

func newTestServer(t *testing.T, mw *ChiMiddlewareConfig) *testServer {
	t.Helper()
	return newTestServerWithGateway(t, mw, nil)
}

func newTestServerWithGateway(t *testing.T, mw *ChiMiddlewareConfig, gateway http.Handler) *testServer {
	t.Helper()

	s, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	jwtManager, err := auth.NewJWTManager(&config.SecurityConfig{JWTSecret: testSecret, TokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}

	limits := config.LimitsConfig{
		MaxMessageLength: 2000,
		EditWindow:       15 * time.Minute,
		MaxGroupMembers:  50,
		DefaultPageSize:  50,
		MaxPageSize:      100,
	}
	n := &notes{}
	authService := chat.NewAuthService(s, bcrypt.MinCost)
	sessions := auth.NewMiddleware(jwtManager, authService, auth.CookieConfig{Name: "jwt_T"})

	handler := NewHandler(Dependencies{
		Auth:     authService,
		Messages: chat.NewMessageService(s, n, enforcer, limits),
		Groups:   chat.NewGroupService(s, enforcer, limits),
		Sessions: sessions,
		Store:    s,
		Presence: presence.NewMemoryDirectory(presence.ModeMemory),
	})

	if mw == nil {
		mw = DefaultChiMiddlewareConfig()
		mw.RateLimitDisabled = true
	}
	return &testServer{
		handler: NewRouter(handler, sessions, gateway, mw).SetupChi(),
		store:   s,
		notes:   n,
	}
}

// do sends a request and decodes the envelope. body may be nil.
func (ts *testServer) do(t *testing.T, method, path string, body any, cookie *http.Cookie) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: invalid JSON %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, env
}

// expect fails the test unless the response has the wanted status.
func expect(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, want, rec.Body.String())
	}
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return v
}

type session struct {
	user   models.PublicUser
	cookie *http.Cookie
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "jwt_T" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func (ts *testServer) signup(t *testing.T, name, email string) session {
	t.Helper()
	rec, env := ts.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"fullName": name,
		"email":    email,
		"password": "secret123",
	}, nil)
	expect(t, rec, http.StatusCreated)
	return session{
		user:   decode[userResponse](t, env).User,
		cookie: sessionCookie(t, rec),
	}
}

func decodeBody(rec *httptest.ResponseRecorder, v any) error {
	return json.Unmarshal(rec.Body.Bytes(), v)
}
