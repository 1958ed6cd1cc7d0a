// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package websocket

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/tomtom215/parley/internal/config"
	"github.com/tomtom215/parley/internal/presence"
	"github.com/tomtom215/parley/internal/typing"
)

func TestNewHub(t *testing.T) {
	hub := NewHub(presence.NewMemoryDirectory(presence.ModeMemory), Options{})

	checks := []struct {
		name   string
		check  bool
		errMsg string
	}{
		{"clients map", hub.clients != nil, "clients map not initialized"},
		{"broadcast channel", hub.broadcast != nil, "broadcast channel not initialized"},
		{"Register channel", hub.Register != nil, "Register channel not initialized"},
		{"Unregister channel", hub.Unregister != nil, "Unregister channel not initialized"},
		{"rooms", hub.Rooms() != nil, "rooms not initialized"},
		{"typing", hub.Typing() != nil, "typing coordinator not initialized"},
		{"empty clients", hub.GetClientCount() == 0, "clients map should be empty"},
		{"instance", hub.Options().Instance != "", "instance should default"},
		{"typing timeout", hub.Typing().Timeout() == typing.DefaultTimeout, "typing timeout should default to 3s"},
	}

	for _, c := range checks {
		if !c.check {
			t.Errorf("%s: %s", c.name, c.errMsg)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.RealtimeConfig{
		TypingTimeout:   time.Second,
		SendBuffer:      8,
		EventsPerSecond: 5,
		EventBurst:      10,
		WriteWait:       time.Second,
		PongWait:        2 * time.Second,
		MaxMessageSize:  1024,
	}
	opts := OptionsFromConfig(cfg).withDefaults()

	if opts.TypingTimeout != time.Second || opts.SendBuffer != 8 || opts.EventBurst != 10 ||
		opts.PongWait != 2*time.Second || opts.MaxMessageSize != 1024 {
		t.Errorf("unexpected options %+v", opts)
	}
}

func TestHub_RegisterAddsPresenceAndBroadcastsRoster(t *testing.T) {
	dir := presence.NewMemoryDirectory(presence.ModeMemory)
	hub := startHub(t, dir)

	alice := registered(t, hub, "alice")
	bob := registered(t, hub, "bob")

	if h, ok := dir.Lookup(context.Background(), "alice"); !ok || h.ID != alice.handle.ID {
		t.Errorf("alice lookup = %v, %v; want her handle", h, ok)
	}

	waitFor(t, time.Second, "roster delivered", func() bool { return len(alice.send) >= 2 })
	rosters := ofType(drain(alice), EventOnlineUsers)
	if len(rosters) != 2 {
		t.Fatalf("alice got %d rosters, want 2", len(rosters))
	}
	if got := rosters[0].Data.([]string); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Errorf("first roster = %v, want [alice]", got)
	}
	if got := rosters[1].Data.([]string); !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Errorf("second roster = %v, want [alice bob]", got)
	}

	bobRosters := ofType(drain(bob), EventOnlineUsers)
	if len(bobRosters) != 1 {
		t.Fatalf("bob got %d rosters, want 1", len(bobRosters))
	}
}

func TestHub_UnregisterCleansUp(t *testing.T) {
	dir := presence.NewMemoryDirectory(presence.ModeMemory)
	hub := startHub(t, dir)

	alice := registered(t, hub, "alice")
	bob := registered(t, hub, "bob")

	hub.Rooms().Join(alice.handle.ID, "g1")
	hub.Rooms().Join(alice.handle.ID, "g2")
	hub.Typing().SetDirect(context.Background(), "alice", "bob", true)
	if hub.Typing().Active() != 1 {
		t.Fatalf("typing timers = %d, want 1", hub.Typing().Active())
	}
	drain(bob)

	hub.Unregister <- alice
	waitFor(t, time.Second, "alice unregistered", func() bool { return alice.State() == StateDisconnected })

	if _, ok := dir.Lookup(context.Background(), "alice"); ok {
		t.Error("alice still online after disconnect")
	}
	if n := hub.Typing().Active(); n != 0 {
		t.Errorf("typing timers = %d after disconnect, want 0", n)
	}
	if groups := hub.Rooms().GroupsOf(alice.handle.ID); len(groups) != 0 {
		t.Errorf("alice still in rooms %v", groups)
	}

	// No expiry-driven stop may reach bob after alice left.
	time.Sleep(2 * testOptions().TypingTimeout)
	for _, m := range drain(bob) {
		if m.Type == typing.EventUserTyping {
			t.Errorf("bob received %s after alice disconnected", m.Type)
		}
		if m.Type == EventOnlineUsers {
			if got := m.Data.([]string); !reflect.DeepEqual(got, []string{"bob"}) {
				t.Errorf("roster after disconnect = %v, want [bob]", got)
			}
		}
	}

	// Second unregister of the same client is ignored.
	hub.Unregister <- alice
	if hub.GetClientCount() != 1 {
		t.Errorf("client count = %d, want 1", hub.GetClientCount())
	}
}

func TestHub_StaleDisconnectKeepsNewerConnection(t *testing.T) {
	dir := presence.NewMemoryDirectory(presence.ModeMemory)
	hub := startHub(t, dir)

	oldConn := registered(t, hub, "alice")
	newConn := registered(t, hub, "alice")

	hub.Unregister <- oldConn
	waitFor(t, time.Second, "old connection released", func() bool { return oldConn.State() == StateDisconnected })

	h, ok := dir.Lookup(context.Background(), "alice")
	if !ok || h.ID != newConn.handle.ID {
		t.Fatalf("lookup = %v, %v; want the newer handle %s", h, ok, newConn.handle.ID)
	}
}

func TestHub_PushOnlyReachesTargetHandle(t *testing.T) {
	hub := startHub(t, nil)
	alice := registered(t, hub, "alice")
	bob := registered(t, hub, "bob")
	drain(alice)
	drain(bob)

	if !hub.Push(bob.handle, EventNewMessage, map[string]string{"text": "hi"}) {
		t.Fatal("Push to a live handle returned false")
	}
	if got := ofType(drain(bob), EventNewMessage); len(got) != 1 {
		t.Errorf("bob got %d messages, want 1", len(got))
	}
	if got := drain(alice); len(got) != 0 {
		t.Errorf("alice got %d messages, want 0", len(got))
	}

	if hub.Push(presence.Handle{}, EventNewMessage, nil) {
		t.Error("Push to zero handle returned true")
	}
	if hub.Push(presence.NewHandle("bob", "other"), EventNewMessage, nil) {
		t.Error("Push to a handle on another instance returned true")
	}
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	hub := startHub(t, nil)
	alice := registered(t, hub, "alice")

	for i := 0; i < cap(alice.send)*2; i++ {
		hub.Push(alice.handle, EventNewMessage, i)
	}
	if hub.Push(alice.handle, EventNewMessage, "overflow") {
		t.Error("Push into a full buffer returned true")
	}
}

func TestHub_BroadcastJSON(t *testing.T) {
	hub := startHub(t, nil)
	alice := registered(t, hub, "alice")
	bob := registered(t, hub, "bob")
	drain(alice)
	drain(bob)

	hub.BroadcastJSON("announcement", map[string]string{"text": "maintenance"})

	waitFor(t, time.Second, "broadcast delivered", func() bool {
		return len(alice.send) == 1 && len(bob.send) == 1
	})
}

func TestHub_ShutdownReleasesPresence(t *testing.T) {
	dir := presence.NewMemoryDirectory(presence.ModeMemory)
	hub := NewHub(dir, testOptions())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- hub.RunWithContext(ctx) }()

	registered(t, hub, "alice")
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	if got := dir.ListOnline(context.Background()); len(got) != 0 {
		t.Errorf("online after shutdown = %v, want none", got)
	}
	select {
	case <-hub.Done():
	default:
		t.Error("Done() not closed after shutdown")
	}
}

func TestGetShutdownReason(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	expired, cancel2 := context.WithTimeout(context.Background(), 0)
	defer cancel2()

	if got := getShutdownReason(canceled); got != ShutdownReasonContextCanceled {
		t.Errorf("canceled reason = %s", got)
	}
	if got := getShutdownReason(expired); got != ShutdownReasonContextDeadline {
		t.Errorf("deadline reason = %s", got)
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateConnecting:     "connecting",
		StateAuthenticating: "authenticating",
		StateAuthenticated:  "authenticated",
		StateDisconnected:   "disconnected",
		State(99):           "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
