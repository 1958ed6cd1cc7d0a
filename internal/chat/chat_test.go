// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package chat

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/parley/internal/authz"
	"github.com/tomtom215/parley/internal/config"
	"github.com/tomtom215/parley/internal/logging"
	"github.com/tomtom215/parley/internal/models"
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

type notification struct {
	user    string
	group   string
	exclude string
	event   string
	payload any
}

// recorder is a Notifier that remembers every call.
type recorder struct {
	mu  sync.Mutex
	got []notification
}

func (r *recorder) NotifyUser(_ context.Context, userID, event string, payload any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, notification{user: userID, event: event, payload: payload})
	return true
}

func (r *recorder) NotifyGroup(_ context.Context, groupID, event string, payload any, excludeUserID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, notification{group: groupID, exclude: excludeUserID, event: event, payload: payload})
	return 1
}

func (r *recorder) last(t *testing.T) notification {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.got) == 0 {
		t.Fatal("no notification sent")
	}
	return r.got[len(r.got)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

type fixture struct {
	store    *store.Store
	notes    *recorder
	auth     *AuthService
	messages *MessageService
	groups   *GroupService
}

func testLimits() config.LimitsConfig {
	return config.LimitsConfig{
		MaxMessageLength: 2000,
		EditWindow:       15 * time.Minute,
		MaxGroupMembers:  50,
		DefaultPageSize:  50,
		MaxPageSize:      100,
	}
}

func newFixture(t *testing.T) *fixture {
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

	notes := &recorder{}
	return &fixture{
		store:    s,
		notes:    notes,
		auth:     NewAuthService(s, bcrypt.MinCost),
		messages: NewMessageService(s, notes, enforcer, testLimits()),
		groups:   NewGroupService(s, enforcer, testLimits()),
	}
}

func (f *fixture) signup(t *testing.T, name, email string) *models.User {
	t.Helper()
	u, err := f.auth.Signup(context.Background(), SignupInput{FullName: name, Email: email, Password: "secret123"})
	if err != nil {
		t.Fatalf("Signup(%s) error = %v", email, err)
	}
	return u
}

func (f *fixture) send(t *testing.T, from, to, text string) *models.Message {
	t.Helper()
	msg, err := f.messages.SendDirect(context.Background(), from, to, SendInput{Text: text})
	if err != nil {
		t.Fatalf("SendDirect() error = %v", err)
	}
	return msg
}

func wantKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if got := KindOf(err); got != kind {
		t.Fatalf("error = %v (kind %q), want kind %q", err, got, kind)
	}
}

func strPtr(s string) *string { return &s }
